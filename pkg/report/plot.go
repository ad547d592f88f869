package report

import (
	"fmt"

	pkgerrors "github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/charlie0129/vcxoscan/pkg/calibration"
)

const (
	plotWidth  = 6 * vg.Inch
	plotHeight = 4 * vg.Inch
)

// Series returns the settled reading number k (zero-based) of every point
// against the control value normalized to clamp. Points without such a reading
// are skipped.
func Series(res *calibration.SweepResult, discard, k int) plotter.XYs {
	ladder := calibration.Ladder{Clamp: res.Clamp}
	xys := make(plotter.XYs, 0, len(res.Points))
	for _, p := range res.Points {
		s := p.Settled(discard)
		if k >= len(s) {
			continue
		}
		xys = append(xys, plotter.XY{X: ladder.Normalize(p.Value), Y: s[k]})
	}
	return xys
}

// NewPlot builds the characterization plot: the first two settled readings of
// every point against the normalized control value.
func NewPlot(res *calibration.SweepResult, discard int) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "Ethernet VCXO characterization"
	p.X.Label.Text = "Control (normalized)"
	p.Y.Label.Text = "Frequency offset (ppm)"
	p.Add(plotter.NewGrid())

	var lines []interface{}
	for k := range 2 {
		xys := Series(res, discard, k)
		if len(xys) == 0 {
			continue
		}
		lines = append(lines, fmt.Sprintf("reading %d", discard+k+1), xys)
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("nothing to plot: no point has settled readings")
	}
	if err := plotutil.AddLinePoints(p, lines...); err != nil {
		return nil, pkgerrors.Wrap(err, "failed to add plot lines")
	}
	return p, nil
}

// SavePlot renders the characterization plot to path. The format follows the
// file extension (png, svg, pdf, ...).
func SavePlot(res *calibration.SweepResult, discard int, path string) error {
	p, err := NewPlot(res, discard)
	if err != nil {
		return err
	}
	if err := p.Save(plotWidth, plotHeight, path); err != nil {
		return pkgerrors.Wrapf(err, "failed to save plot to %s", path)
	}
	return nil
}
