// Package netod converts before/after pixel statistics into net
// optical density (NetOD), the logarithmic measure of film darkening
// that calibration curves map to absorbed dose.
//
// Two computation modes exist. Simple uses only the pre- and
// post-irradiation values of the film itself. Calc additionally
// corrects for the scanner dark signal (background) and for scanner
// drift between the two scan sessions (an unirradiated control film
// scanned alongside the main films).
//
// Each mode has a scalar path and a map path. The scalar path operates
// on region statistics and fails fast on physically invalid input. The
// map path operates on a whole post-irradiation channel at once and
// propagates NaN or infinite values per pixel instead of failing, so
// that one bad pixel cannot abort an entire image analysis.
package netod

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ln10 converts natural-log error terms to the base-10 scale of the
// optical density.
var ln10 = math.Log(10)

// Simple computes NetOD and its standard error from the mean pixel
// value before (pvb) and after (pva) irradiation:
//
//	netOD = log10(pvb / pva)
//
// spvb and spva are the standard errors of pvb and pva. Both pixel
// values must be positive; darkened film attenuates light, it does not
// produce negative intensities.
func Simple(pvb, pva, spvb, spva float64) (float64, float64, error) {
	if pvb <= 0 || pva <= 0 {
		return 0, 0, fmt.Errorf("non-positive pixel value (pvb=%g, pva=%g)", pvb, pva)
	}

	dn := math.Log10(pvb / pva)
	sn := (1.0 / ln10) * math.Sqrt(math.Pow(spvb/pvb, 2)+math.Pow(spva/pva, 2))
	return dn, sn, nil
}

// Calc computes NetOD with background and control correction. All four
// signal values are background-subtracted before the ratio is taken,
// and the optical density of the control pair is subtracted to remove
// scanner drift:
//
//	netOD = log10((pvb-pvbk)/(pva-pvbk)) - log10((pvcb-pvbk)/(pvca-pvbk))
//
// The propagated variance carries relative-error terms for the main
// and control pairs plus two cross terms for the shared background
// uncertainty spvbk. Every background-subtracted value must be
// positive.
func Calc(pvb, pva, pvcb, pvca, pvbk, spvb, spva, spvcb, spvca, spvbk float64) (float64, float64, error) {
	pvbBk := pvb - pvbk
	pvaBk := pva - pvbk
	pvcbBk := pvcb - pvbk
	pvcaBk := pvca - pvbk

	if pvbBk <= 0 || pvaBk <= 0 || pvcbBk <= 0 || pvcaBk <= 0 {
		return 0, 0, fmt.Errorf(
			"non-positive background-subtracted pixel value (pvb-pvbk=%g, pva-pvbk=%g, pvcb-pvbk=%g, pvca-pvbk=%g)",
			pvbBk, pvaBk, pvcbBk, pvcaBk)
	}

	dn := math.Log10(pvbBk/pvaBk) - math.Log10(pvcbBk/pvcaBk)

	l1 := math.Pow(spvb/pvbBk, 2) + math.Pow(spva/pvaBk, 2)
	l2 := math.Pow(pvb-pva, 2) / math.Pow(pvbBk*pvaBk, 2) * spvbk * spvbk
	l3 := math.Pow(spvcb/pvcbBk, 2) + math.Pow(spvca/pvcaBk, 2)
	l4 := math.Pow(pvcb-pvca, 2) / math.Pow(pvcbBk*pvcaBk, 2) * spvbk * spvbk

	sn := (1.0 / ln10) * math.Sqrt(l1+l2+l3+l4)
	return dn, sn, nil
}

// SimpleMap is the per-pixel variant of Simple: pvb and its standard
// error are scalars (the pooled pre-irradiation reference level) while
// pva is a full channel matrix. spva is the standard error applied to
// every pixel of pva.
//
// Pixels whose value makes the logarithm or square root undefined
// yield NaN or infinities in the output rather than an error; callers
// filter those when interpreting the map.
func SimpleMap(pvb float64, pva *mat.Dense, spvb, spva float64) (*mat.Dense, *mat.Dense) {
	rows, cols := pva.Dims()

	dn := mat.NewDense(rows, cols, nil)
	dn.Apply(func(i, j int, v float64) float64 {
		return math.Log10(pvb / v)
	}, pva)

	sn := mat.NewDense(rows, cols, nil)
	sn.Apply(func(i, j int, v float64) float64 {
		return (1.0 / ln10) * math.Sqrt(math.Pow(spvb/pvb, 2)+math.Pow(spva/v, 2))
	}, pva)

	return dn, sn
}

// CalcMap is the per-pixel variant of Calc: pva is a full channel
// matrix, every other input is a scalar. Invalid pixels propagate as
// NaN or infinities, exactly as in SimpleMap.
func CalcMap(pvb float64, pva *mat.Dense, pvcb, pvca, pvbk, spvb, spva, spvcb, spvca, spvbk float64) (*mat.Dense, *mat.Dense) {
	rows, cols := pva.Dims()

	pvbBk := pvb - pvbk
	pvcbBk := pvcb - pvbk
	pvcaBk := pvca - pvbk
	controlOD := math.Log10(pvcbBk / pvcaBk)
	l3 := math.Pow(spvcb/pvcbBk, 2) + math.Pow(spvca/pvcaBk, 2)
	l4 := math.Pow(pvcb-pvca, 2) / math.Pow(pvcbBk*pvcaBk, 2) * spvbk * spvbk

	dn := mat.NewDense(rows, cols, nil)
	dn.Apply(func(i, j int, v float64) float64 {
		return math.Log10(pvbBk/(v-pvbk)) - controlOD
	}, pva)

	sn := mat.NewDense(rows, cols, nil)
	sn.Apply(func(i, j int, v float64) float64 {
		pvaBk := v - pvbk
		l1 := math.Pow(spvb/pvbBk, 2) + math.Pow(spva/pvaBk, 2)
		l2 := math.Pow(pvb-v, 2) / math.Pow(pvbBk*pvaBk, 2) * spvbk * spvbk
		return (1.0 / ln10) * math.Sqrt(l1+l2+l3+l4)
	}, pva)

	return dn, sn
}
