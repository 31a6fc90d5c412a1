package calibration

import (
	"fmt"
	"os"

	"github.com/wcharczuk/go-chart/v2"
	"gonum.org/v1/gonum/floats"
)

// WritePlot renders the calibration curve together with the reference
// data points and saves it as a PNG file. The curve is sampled over
// [netODmin, netODmax]; passing 0, 0 selects the default range
// [0, 1.1] which covers EBT film up to saturation.
func (c *Calibration) WritePlot(path string, netODmin, netODmax float64) error {
	if netODmin == 0 && netODmax == 0 {
		netODmax = 1.1
	}
	if netODmax <= netODmin {
		return fmt.Errorf("invalid plot range [%g, %g]", netODmin, netODmax)
	}

	xs := make([]float64, 100)
	floats.Span(xs, netODmin, netODmax)
	ys := make([]float64, len(xs))
	for i, x := range xs {
		ys[i] = c.Dose(x)
	}

	graph := chart.Chart{
		Title: fmt.Sprintf("Calibration Curve - Lot %s", c.Lot),
		XAxis: chart.XAxis{
			Name: "Net Optical Density (NetOD)",
		},
		YAxis: chart.YAxis{
			Name: "Dose (Gy)",
		},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name:    c.FitString(),
				XValues: xs,
				YValues: ys,
			},
			chart.ContinuousSeries{
				Name:    "Reference points",
				XValues: c.NetODs,
				YValues: c.Doses,
				Style: chart.Style{
					StrokeWidth: chart.Disabled,
					DotWidth:    4,
				},
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create plot file %s: %w", path, err)
	}
	defer f.Close()

	if err := graph.Render(chart.PNG, f); err != nil {
		return fmt.Errorf("failed to render calibration plot: %v", err)
	}
	return nil
}
