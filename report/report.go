// Package report renders the model report of a training run as a JSON
// document and as a bar chart image.
package report

import (
	"encoding/json"
	"image/color"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/regpipe/pkg/errors"
)

// Bar is one labelled value of a bar chart.
type Bar struct {
	Label string
	Value float64
}

// WriteJSON writes v as indented JSON to path, creating parent directories.
func WriteJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode report")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "create directory for %s", path)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	return nil
}

// ReadJSON decodes the JSON document at path into v.
func ReadJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "read %s", path)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.Wrapf(err, "decode %s", path)
	}
	return nil
}

// WriteBarChart draws one bar per entry plus a horizontal line at threshold
// and saves the chart to path. The image format follows the file extension.
// Non-finite values are drawn as zero.
func WriteBarChart(path, title string, bars []Bar, threshold float64) error {
	if len(bars) == 0 {
		return errors.NewValueError("report.WriteBarChart", "no bars to draw")
	}

	values := make(plotter.Values, len(bars))
	labels := make([]string, len(bars))
	for i, b := range bars {
		labels[i] = b.Label
		if !math.IsNaN(b.Value) && !math.IsInf(b.Value, 0) {
			values[i] = b.Value
		}
	}

	p := plot.New()
	p.Title.Text = title
	p.Y.Label.Text = "R2 (test)"
	p.X.Tick.Label.Rotation = math.Pi / 6
	p.X.Tick.Label.XAlign = -0.9
	p.X.Tick.Label.YAlign = -0.5

	chart, err := plotter.NewBarChart(values, vg.Points(24))
	if err != nil {
		return errors.Wrap(err, "build bar chart")
	}
	chart.LineStyle.Width = vg.Length(0)
	chart.Color = color.RGBA{R: 66, G: 114, B: 196, A: 255}
	p.Add(chart)
	p.NominalX(labels...)

	line, err := plotter.NewLine(plotter.XYs{
		{X: -0.5, Y: threshold},
		{X: float64(len(bars)) - 0.5, Y: threshold},
	})
	if err != nil {
		return errors.Wrap(err, "build threshold line")
	}
	line.LineStyle.Width = vg.Points(1.5)
	line.LineStyle.Color = color.RGBA{R: 204, G: 51, B: 51, A: 255}
	line.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(3)}
	p.Add(line)
	p.Legend.Add("threshold", line)
	p.Legend.Top = true

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "create directory for %s", path)
	}
	width := vg.Length(math.Max(6, 1.2*float64(len(bars)))) * vg.Inch
	if err := p.Save(width, 4*vg.Inch, path); err != nil {
		return errors.Wrapf(err, "save chart %s", path)
	}
	return nil
}
