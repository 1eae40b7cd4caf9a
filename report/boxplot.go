// Package report renders benchmark scores as images.
package report

import (
	"os"
	"path/filepath"
	"sort"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/mlbench/pkg/errors"
)

const boxWidth = 20

// BoxPlot draws one box per strategy from its fold scores and saves the
// image to path. The format follows the file extension (.png, .svg, .pdf).
func BoxPlot(scores map[string][]float64, title, path string) error {
	p, err := NewBoxPlot(scores, title)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "create directory for %s", path)
		}
	}
	width := vg.Length(len(scores)) * vg.Inch
	if width < 4*vg.Inch {
		width = 4 * vg.Inch
	}
	if err := p.Save(width, 4*vg.Inch, path); err != nil {
		return errors.Wrapf(err, "save plot %s", path)
	}
	return nil
}

// NewBoxPlot builds the plot without saving it. Strategies are placed in
// name order.
func NewBoxPlot(scores map[string][]float64, title string) (*plot.Plot, error) {
	if len(scores) == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "BoxPlot")
	}
	names := make([]string, 0, len(scores))
	for name, s := range scores {
		if len(s) == 0 {
			return nil, errors.NewValueError("BoxPlot", "strategy "+name+" has no scores")
		}
		names = append(names, name)
	}
	sort.Strings(names)

	p := plot.New()
	p.Title.Text = title
	p.Y.Label.Text = "Score"

	for i, name := range names {
		box, err := plotter.NewBoxPlot(vg.Points(boxWidth), float64(i), plotter.Values(scores[name]))
		if err != nil {
			return nil, errors.Wrapf(err, "box for %s", name)
		}
		p.Add(box)
	}
	p.NominalX(names...)
	return p, nil
}
