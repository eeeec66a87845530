package render

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"github.com/drakos74/free-som/internal/som/view"
	"github.com/rs/zerolog/log"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

const defaultSize = 8

// Options defines the image size in inches.
type Options struct {
	Width  float64 `yaml:"width" json:"width"`
	Height float64 `yaml:"height" json:"height"`
}

func (o Options) size() (vg.Length, vg.Length) {
	w, h := o.Width, o.Height
	if w <= 0 {
		w = defaultSize
	}
	if h <= 0 {
		h = defaultSize
	}
	return vg.Length(w) * vg.Inch, vg.Length(h) * vg.Inch
}

// fieldGrid exposes a field as a plotter.GridXYZ.
// Lattice rows grow downwards, so row 0 is drawn at the top.
type fieldGrid struct {
	f view.Field
}

func (g fieldGrid) Dims() (c, r int) {
	return g.f.Cols, g.f.Rows
}

func (g fieldGrid) row(r int) int {
	return g.f.Rows - 1 - r
}

func (g fieldGrid) Z(c, r int) float64 {
	return g.f.At(g.row(r), c)
}

func (g fieldGrid) X(c int) float64 {
	return float64(g.f.Col0 + c)
}

func (g fieldGrid) Y(r int) float64 {
	return -float64(g.f.Row0 + g.row(r))
}

// PNG draws the frame field as a heat map with the markers on top, colored by class.
func PNG(frame view.Frame, path string, opts Options) error {
	if frame.Field.Rows == 0 || frame.Field.Cols == 0 {
		return fmt.Errorf("nothing to render for '%s'", frame.Field.Name)
	}
	p := plot.New()
	p.Title.Text = frame.Field.Name
	p.X.Label.Text = "col"
	p.Y.Label.Text = "-row"

	hm := plotter.NewHeatMap(fieldGrid{f: frame.Field}, palette.Heat(12, 1))
	if hm.Max == hm.Min {
		hm.Max = hm.Min + 1
	}
	p.Add(hm)

	scale := frame.Scale
	if scale < 1 {
		scale = 1
	}
	groups := make(map[int]plotter.XYs)
	order := make([]int, 0)
	for _, m := range frame.Markers {
		if _, ok := groups[m.Class]; !ok {
			order = append(order, m.Class)
		}
		groups[m.Class] = append(groups[m.Class], plotter.XY{
			X: float64(m.Col * scale),
			Y: -float64(m.Row * scale),
		})
	}
	for _, class := range order {
		scatter, err := plotter.NewScatter(groups[class])
		if err != nil {
			return fmt.Errorf("could not create markers for class %d: %w", class, err)
		}
		scatter.GlyphStyle.Radius = vg.Length(2)
		scatter.GlyphStyle.Shape = draw.CircleGlyph{}
		scatter.GlyphStyle.Color = classColor(class)
		p.Add(scatter)
		if class >= 0 && class < len(frame.Classes) {
			p.Legend.Add(frame.Classes[class], scatter)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("could not create output directory: %w", err)
	}
	w, h := opts.size()
	if err := p.Save(w, h, path); err != nil {
		return fmt.Errorf("could not save '%s': %w", path, err)
	}
	log.Debug().
		Str("field", frame.Field.Name).
		Int("markers", len(frame.Markers)).
		Str("path", path).
		Msg("rendered")
	return nil
}

func classColor(class int) color.Color {
	if class < 0 {
		return color.Black
	}
	return plotutil.Color(class)
}
