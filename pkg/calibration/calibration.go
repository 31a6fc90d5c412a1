// Package calibration fits and evaluates the dose-response curve of a
// radiochromic film batch. The curve relates net optical density to
// absorbed dose as
//
//	Dw = a*netOD + b*netOD^c
//
// with parameters fitted by nonlinear least squares from reference
// exposures of known dose. A fitted calibration is immutable; it can
// be evaluated, plotted and persisted, but never refitted in place.
package calibration

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"radscan/internal/models"
)

// ErrNoConvergence is returned when the least-squares solver cannot
// reduce the residuals from the initial guess within its iteration
// budget. No automatic retry with alternate guesses is attempted.
var ErrNoConvergence = errors.New("calibration fit did not converge")

// DefaultGuess is the initial parameter guess (a, b, c) used when the
// caller does not supply one. It suits EBT-type film calibrated in Gy
// over the clinical dose range.
var DefaultGuess = [3]float64{20, 40, 3}

// Options carries the descriptive metadata of a calibration and the
// initial guess for the fit. The zero value is usable: an anonymous
// lot, the red channel and the default guess.
type Options struct {
	// Lot is the manufacturer lot number of the film batch. It is kept
	// as a string since lot numbers may carry leading zeros.
	Lot string

	// Date is the calibration date as free text.
	Date string

	// Channel is the color channel the reference exposures were
	// analyzed in.
	Channel models.Channel

	// Guess is the initial (a, b, c) for the solver; the zero value
	// selects DefaultGuess.
	Guess [3]float64
}

// Calibration is a fitted dose-response curve together with the
// reference data it was fitted from and its descriptive metadata.
type Calibration struct {
	// Doses and NetODs are the reference pairs, index for index.
	Doses  []float64
	NetODs []float64

	// Lot, Date and Channel describe the film batch and scan setup.
	Lot     string
	Date    string
	Channel models.Channel

	// A, B and C are the fitted curve parameters.
	A, B, C float64
}

// New fits a calibration curve to the given reference pairs. The
// arrays must be equal length and hold at least three points, since
// three parameters are fitted. The solver minimizes the sum of squared
// residuals between the measured doses and the curve evaluated at the
// measured NetODs; failure to improve on the initial guess is reported
// as ErrNoConvergence.
func New(doses, netODs []float64, opts Options) (*Calibration, error) {
	if len(doses) != len(netODs) {
		return nil, fmt.Errorf("dose and NetOD arrays differ in length: %d vs %d", len(doses), len(netODs))
	}
	if len(doses) < 3 {
		return nil, fmt.Errorf("need at least 3 reference points to fit 3 parameters, got %d", len(doses))
	}

	guess := opts.Guess
	if guess == [3]float64{} {
		guess = DefaultGuess
	}
	if opts.Lot == "" {
		opts.Lot = "00000000"
	}

	residual := func(p []float64) float64 {
		var ssr float64
		for i, nod := range netODs {
			d := curve(nod, p[0], p[1], p[2])
			r := doses[i] - d
			ssr += r * r
		}
		return ssr
	}

	initial := []float64{guess[0], guess[1], guess[2]}
	initialSSR := residual(initial)

	problem := optimize.Problem{Func: residual}
	result, err := optimize.Minimize(problem, initial, nil, &optimize.NelderMead{})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoConvergence, err)
	}
	if math.IsNaN(result.F) || result.F > initialSSR {
		return nil, fmt.Errorf("%w: residual %g not reduced from initial %g", ErrNoConvergence, result.F, initialSSR)
	}

	c := &Calibration{
		Doses:   append([]float64(nil), doses...),
		NetODs:  append([]float64(nil), netODs...),
		Lot:     opts.Lot,
		Date:    opts.Date,
		Channel: opts.Channel,
		A:       result.X[0],
		B:       result.X[1],
		C:       result.X[2],
	}
	return c, nil
}

// curve evaluates the calibration function Dw = a*x + b*x^c.
func curve(netOD, a, b, c float64) float64 {
	return a*netOD + b*math.Pow(netOD, c)
}

// Dose converts a NetOD value to dose using the fitted parameters.
// The evaluation is pure; invalid NetOD values (for which the power
// term is undefined) yield NaN.
func (c *Calibration) Dose(netOD float64) float64 {
	return curve(netOD, c.A, c.B, c.C)
}

// DoseMap converts a whole NetOD map to a dose map, pixel by pixel.
// NaN and infinite NetOD pixels propagate into the result.
func (c *Calibration) DoseMap(netOD *mat.Dense) *mat.Dense {
	rows, cols := netOD.Dims()
	out := mat.NewDense(rows, cols, nil)
	out.Apply(func(i, j int, v float64) float64 {
		return curve(v, c.A, c.B, c.C)
	}, netOD)
	return out
}

// FitString formats the fitted equation for display. The string is
// not used in any computation.
func (c *Calibration) FitString() string {
	return fmt.Sprintf("Dw = %.3f * netOD + %.3f * netOD^%.3f", c.A, c.B, c.C)
}
