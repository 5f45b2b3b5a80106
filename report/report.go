// Package report renders evaluation charts.
package report

import (
	"fmt"
	"image/color"
	"io"
	"math"
	"path/filepath"
	"strings"

	"github.com/samber/lo"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/taxifare/metrics"
	"github.com/YuminosukeSato/taxifare/pkg/errors"
)

// Size is the default chart width and height.
const Size = 5 * vg.Inch

// SupportedFormats lists the file extensions Save accepts.
var SupportedFormats = []string{"png", "svg", "pdf", "jpg", "jpeg", "eps", "tif", "tiff"}

// PredictionPlot builds a predicted-vs-actual scatter with the identity line.
// The title carries the RMSE of the predictions.
func PredictionPlot(actual, predicted []float64) (*plot.Plot, error) {
	rmse, err := metrics.RMSE(actual, predicted)
	if err != nil {
		return nil, err
	}
	if floats.HasNaN(actual) || floats.HasNaN(predicted) {
		return nil, errors.NewNumericalInstabilityError("report.PredictionPlot", []float64{rmse}, -1)
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Predicted vs actual fare (RMSE %.3f)", rmse)
	p.X.Label.Text = "actual fare"
	p.Y.Label.Text = "predicted fare"
	p.Add(plotter.NewGrid())

	pts := make(plotter.XYs, len(actual))
	for i := range actual {
		pts[i].X = actual[i]
		pts[i].Y = predicted[i]
	}
	s, err := plotter.NewScatter(pts)
	if err != nil {
		return nil, errors.Wrap(err, "scatter")
	}
	s.GlyphStyle.Color = color.RGBA{R: 50, G: 50, B: 255, A: 255}
	s.GlyphStyle.Radius = vg.Points(2)
	p.Add(s)

	lower := math.Min(floats.Min(actual), floats.Min(predicted))
	upper := math.Max(floats.Max(actual), floats.Max(predicted))
	l, err := plotter.NewLine(plotter.XYs{{X: lower, Y: lower}, {X: upper, Y: upper}})
	if err != nil {
		return nil, errors.Wrap(err, "identity line")
	}
	l.LineStyle.Color = color.RGBA{R: 255, A: 255}
	l.LineStyle.Width = vg.Points(1)
	p.Add(l)

	p.Legend.Add("rides", s)
	p.Legend.Add("y = x", l)
	p.Legend.Top = true
	p.Legend.Left = true
	return p, nil
}

// Save writes the prediction chart to path. The format follows the extension.
func Save(path string, actual, predicted []float64) error {
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if !isSupported(format) {
		return errors.NewValidationError("plot path", "unsupported image format", path)
	}
	p, err := PredictionPlot(actual, predicted)
	if err != nil {
		return err
	}
	if err := p.Save(Size, Size, path); err != nil {
		return errors.Wrapf(err, "save plot %s", path)
	}
	return nil
}

// Write renders the prediction chart to w in format ("png", "svg", ...).
func Write(w io.Writer, format string, actual, predicted []float64) error {
	if !isSupported(format) {
		return errors.NewValidationError("format", "unsupported image format", format)
	}
	p, err := PredictionPlot(actual, predicted)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(Size, Size, format)
	if err != nil {
		return errors.Wrap(err, "render plot")
	}
	if _, err := wt.WriteTo(w); err != nil {
		return errors.Wrap(err, "write plot")
	}
	return nil
}

func isSupported(format string) bool {
	return lo.Contains(SupportedFormats, format)
}
