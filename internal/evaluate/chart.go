package evaluate

import (
	"fmt"

	"github.com/rotisserie/eris"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// PlotROC renders the sweep curve with the chance diagonal.
func PlotROC(rep *Report) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("ROC %s (%s) AUC=%.3f", rep.Selection.ExportKey(), rep.Method, rep.AUC)
	p.X.Label.Text = "False positive rate"
	p.Y.Label.Text = "True positive rate"
	p.X.Min, p.X.Max = 0, 1
	p.Y.Min, p.Y.Max = 0, 1
	p.Add(plotter.NewGrid())

	chance := plotter.NewFunction(func(x float64) float64 { return x })
	chance.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}
	p.Add(chance)

	if len(rep.Results) == 0 {
		return p, nil
	}
	pts := make(plotter.XYs, len(rep.Results))
	for i, r := range rep.Results {
		pts[i].X, pts[i].Y = r.FPR, r.TPR
	}
	line, scatter, err := plotter.NewLinePoints(pts)
	if err != nil {
		return nil, eris.Wrap(err, "evaluate: roc points")
	}
	p.Add(line, scatter)
	p.Legend.Add("sweep", line, scatter)

	if rep.Best != nil {
		best, err := plotter.NewScatter(plotter.XYs{{X: rep.Best.FPR, Y: rep.Best.TPR}})
		if err != nil {
			return nil, eris.Wrap(err, "evaluate: best point")
		}
		best.GlyphStyle.Radius = vg.Points(5)
		p.Add(best)
		p.Legend.Add(fmt.Sprintf("best %s", rep.Best.Params.SweepKey("roc")), best)
	}
	return p, nil
}

// SaveROC writes the ROC chart to path. The format follows the extension.
func SaveROC(rep *Report, path string) error {
	p, err := PlotROC(rep)
	if err != nil {
		return err
	}
	if err := p.Save(6*vg.Inch, 6*vg.Inch, path); err != nil {
		return eris.Wrapf(err, "evaluate: save roc chart %s", path)
	}
	return nil
}
