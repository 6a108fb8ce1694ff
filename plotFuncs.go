package main

import (
	"fmt"
	"image/color"
	"math"
	"strings"

	"github.com/google/renameio/v2"
	"github.com/insar-tools/ddphase/profile"
	xfont "golang.org/x/image/font"
	"gonum.org/v1/plot"

	// Liberation fonts register automatically on import
	_ "gonum.org/v1/plot/font/liberation"

	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// FigureOptions controls the size and encoding of a rendered figure.
type FigureOptions struct {
	WidthIn  float64
	HeightIn float64
	DPI      float64
	Format   string // jpeg, jpg or png
}

// Panel is one phase image of the three-panel figure.
type Panel struct {
	Title string
	Phase []float64 // row-major, rows x cols, radians
}

// jetColorMap is the classic jet colormap (blue, cyan, yellow, red) over [min, max].
type jetColorMap struct {
	min, max, alpha float64
}

func newJetColorMap(min, max float64) *jetColorMap {
	return &jetColorMap{min: min, max: max, alpha: 1}
}

func (j *jetColorMap) At(v float64) (color.Color, error) {
	switch {
	case math.IsNaN(v):
		return nil, palette.ErrNaN
	case v < j.min:
		return nil, palette.ErrUnderflow
	case v > j.max:
		return nil, palette.ErrOverflow
	}
	return jet((v-j.min)/(j.max-j.min), j.alpha), nil
}

func (j *jetColorMap) Max() float64       { return j.max }
func (j *jetColorMap) SetMax(v float64)   { j.max = v }
func (j *jetColorMap) Min() float64       { return j.min }
func (j *jetColorMap) SetMin(v float64)   { j.min = v }
func (j *jetColorMap) Alpha() float64     { return j.alpha }
func (j *jetColorMap) SetAlpha(a float64) { j.alpha = a }

func (j *jetColorMap) Palette(n int) palette.Palette {
	cols := make(colorList, n)
	for i := range cols {
		t := 0.0
		if n > 1 {
			t = float64(i) / float64(n-1)
		}
		cols[i] = jet(t, j.alpha)
	}
	return cols
}

type colorList []color.Color

func (c colorList) Colors() []color.Color { return c }

// jet maps t in [0, 1] to the piecewise linear jet ramp.
func jet(t, alpha float64) color.NRGBA {
	channel := func(center float64) uint8 {
		v := 1.5 - math.Abs(4*t-center)
		v = math.Max(0, math.Min(1, v))
		return uint8(math.Round(v * 255))
	}
	return color.NRGBA{R: channel(3), G: channel(2), B: channel(1), A: uint8(math.Round(alpha * 255))}
}

// rasterGrid adapts a row-major raster to plotter.GridXYZ. Grid rows run
// bottom to top, so raster row 0 (north) is drawn at the top.
type rasterGrid struct {
	data       []float64
	cols, rows int
	x, y       func(i int) float64
}

func (g rasterGrid) Dims() (c, r int)   { return g.cols, g.rows }
func (g rasterGrid) Z(c, r int) float64 { return g.data[(g.rows-1-r)*g.cols+c] }
func (g rasterGrid) X(c int) float64    { return g.x(c) }
func (g rasterGrid) Y(r int) float64    { return g.y(r) }
func (g rasterGrid) Min() float64       { return -math.Pi }
func (g rasterGrid) Max() float64       { return math.Pi }

// pixelGrid places pixel (row, col) at x = col, y = rows-1-row.
func pixelGrid(data []float64, cols, rows int) rasterGrid {
	return rasterGrid{
		data: data, cols: cols, rows: rows,
		x: func(c int) float64 { return float64(c) },
		y: func(r int) float64 { return float64(r) },
	}
}

// rowTicks labels a pixelGrid y axis with raster row numbers, 0 at the top.
type rowTicks struct{ rows int }

func (t rowTicks) Ticks(min, max float64) []plot.Tick {
	top := float64(t.rows - 1)
	ticks := plot.DefaultTicks{}.Ticks(top-max, top-min)
	for i := range ticks {
		ticks[i].Value = top - ticks[i].Value
	}
	return ticks
}

func setLiberationFonts(p *plot.Plot) {
	p.Title.TextStyle.Font.Typeface = "Liberation"
	p.Title.TextStyle.Font.Variant = "Sans"
	p.Title.TextStyle.Font.Size = vg.Points(12)

	p.X.Label.TextStyle.Font.Typeface = "Liberation"
	p.X.Label.TextStyle.Font.Variant = "Sans"
	p.X.Label.TextStyle.Font.Size = vg.Points(12)

	p.Y.Label.TextStyle.Font.Typeface = "Liberation"
	p.Y.Label.TextStyle.Font.Variant = "Sans"
	p.Y.Label.TextStyle.Font.Size = vg.Points(12)

	p.X.Tick.Label.Font.Typeface = "Liberation"
	p.X.Tick.Label.Font.Variant = "Sans"
	p.X.Tick.Label.Font.Size = vg.Points(10)

	p.Y.Tick.Label.Font.Typeface = "Liberation"
	p.Y.Tick.Label.Font.Variant = "Sans"
	p.Y.Tick.Label.Font.Size = vg.Points(10)
}

// dottedGrid is a grid of dotted black lines at 30% opacity.
func dottedGrid() *plotter.Grid {
	g := plotter.NewGrid()
	style := draw.LineStyle{
		Color:  color.NRGBA{A: 77},
		Width:  vg.Points(0.5),
		Dashes: []vg.Length{vg.Points(1), vg.Points(2)},
	}
	g.Vertical = style
	g.Horizontal = style
	return g
}

func newHeatMap(grid rasterGrid, cmap *jetColorMap) *plotter.HeatMap {
	h := plotter.NewHeatMap(grid, cmap.Palette(256))
	h.Min = cmap.Min()
	h.Max = cmap.Max()
	h.NaN = color.Transparent
	h.Rasterized = true
	return h
}

func newPhasePanel(title string, grid rasterGrid, cmap *jetColorMap) *plot.Plot {
	p := plot.New()
	setLiberationFonts(p)
	p.Title.Text = title
	p.Title.TextStyle.Font.Weight = xfont.WeightBold
	p.Y.Tick.Marker = rowTicks{rows: grid.rows}

	hm := newHeatMap(grid, cmap)
	p.Add(hm)
	p.Add(dottedGrid())

	xmin, xmax, ymin, ymax := hm.DataRange()
	p.X.Min, p.X.Max = xmin, xmax
	p.Y.Min, p.Y.Max = ymin, ymax
	return p
}

// newColorBarPlot returns a colour bar plot labelled "Rad" with ticks at -π, 0 and π.
func newColorBarPlot(cmap *jetColorMap, vertical bool) *plot.Plot {
	p := plot.New()
	setLiberationFonts(p)
	p.Add(&plotter.ColorBar{ColorMap: cmap, Vertical: vertical})
	p.X.Label.TextStyle.Font.Weight = xfont.WeightBold
	p.Y.Label.TextStyle.Font.Weight = xfont.WeightBold
	if vertical {
		p.HideX()
		p.Y.Label.Text = "Rad"
		p.Y.Tick.Marker = profile.PiTicks{}
	} else {
		p.HideY()
		p.X.Label.Text = "Rad"
		p.X.Tick.Marker = profile.PiTicks{}
	}
	return p
}

// fitAspect shrinks c around its center so that width/height equals aspect.
func fitAspect(c draw.Canvas, aspect float64) draw.Canvas {
	w := c.Max.X - c.Min.X
	h := c.Max.Y - c.Min.Y
	if w <= 0 || h <= 0 || aspect <= 0 {
		return c
	}
	if float64(w/h) > aspect {
		excess := (w - h*vg.Length(aspect)) / 2
		return draw.Crop(c, excess, -excess, 0, 0)
	}
	excess := (h - w/vg.Length(aspect)) / 2
	return draw.Crop(c, 0, 0, excess, -excess)
}

func newFigureCanvas(opts FigureOptions) *vgimg.Canvas {
	return vgimg.NewWith(
		vgimg.UseWH(vg.Length(opts.WidthIn)*vg.Inch, vg.Length(opts.HeightIn)*vg.Inch),
		vgimg.UseDPI(int(math.Round(opts.DPI))),
		vgimg.UseBackgroundColor(color.White),
	)
}

// saveCanvas encodes c in the requested format and atomically replaces path.
func saveCanvas(path string, c *vgimg.Canvas, format string) (err error) {
	pending, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o644))
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := pending.Cleanup(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	switch strings.ToLower(format) {
	case "jpeg", "jpg":
		_, err = vgimg.JpegCanvas{Canvas: c}.WriteTo(pending)
	case "png":
		_, err = vgimg.PngCanvas{Canvas: c}.WriteTo(pending)
	default:
		return fmt.Errorf("unsupported figure format %q", format)
	}
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return pending.CloseAtomicallyReplace()
}

// MakeDoubleDifferenceFigure draws the panels side by side, each with a
// horizontal colour bar underneath, and writes the figure to path.
func MakeDoubleDifferenceFigure(path string, panels []Panel, cols, rows int, opts FigureOptions) error {
	if len(panels) == 0 {
		return fmt.Errorf("no panels to draw")
	}
	for _, pn := range panels {
		if len(pn.Phase) != cols*rows {
			return fmt.Errorf("panel %q has %d pixels, want %d", pn.Title, len(pn.Phase), cols*rows)
		}
	}

	cmap := newJetColorMap(-math.Pi, math.Pi)

	c := newFigureCanvas(opts)
	dc := draw.New(c)

	tiles := draw.Tiles{
		Rows:      1,
		Cols:      len(panels),
		PadX:      vg.Points(12),
		PadTop:    vg.Points(6),
		PadBottom: vg.Points(6),
		PadLeft:   vg.Points(6),
		PadRight:  vg.Points(6),
	}

	for i, pn := range panels {
		tile := tiles.At(dc, i, 0)
		h := tile.Max.Y - tile.Min.Y

		imageArea := draw.Crop(tile, 0, 0, h*0.22, 0)
		barArea := draw.Crop(tile, 0, 0, 0, -h*0.82)

		panel := newPhasePanel(pn.Title, pixelGrid(pn.Phase, cols, rows), cmap)
		panel.Draw(fitAspect(imageArea, float64(cols)/float64(rows)))

		bar := newColorBarPlot(cmap, false)
		bar.Draw(barArea)
	}

	return saveCanvas(path, c, opts.Format)
}
