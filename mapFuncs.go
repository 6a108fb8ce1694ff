package main

import (
	"errors"
	"fmt"
	"image/color"
	"math"

	"github.com/insar-tools/ddphase/geotiff"
	"github.com/paulmach/orb"
	xfont "golang.org/x/image/font"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/font"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/text"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// ErrOutsideExtent is returned when no raster pixel falls inside the map extent.
var ErrOutsideExtent = errors.New("raster does not overlap the map extent")

const (
	meridianStepDeg = 1.0
	parallelStepDeg = 0.2
	graticuleSteps  = 64
)

// MapOptions controls the projected map figure.
type MapOptions struct {
	Title     string
	ExtentDeg [4]float64 // lon min, lon max, lat min, lat max
	FigureOptions
}

// projectedExtent returns the bounding box, in the projector's CRS, of the
// lon/lat rectangle ext. Edges are densified because straight lines of
// constant latitude are curved in a polar projection.
func projectedExtent(proj *geotiff.Projector, ext [4]float64) (xmin, xmax, ymin, ymax float64, err error) {
	var lon, lat []float64
	lons := Linspace(ext[0], ext[1], graticuleSteps+1)
	lats := Linspace(ext[2], ext[3], graticuleSteps+1)
	for i := range lons {
		lon = append(lon, lons[i], lons[i], ext[0], ext[1])
		lat = append(lat, ext[2], ext[3], lats[i], lats[i])
	}
	x, y, err := proj.Forward(lon, lat)
	if err != nil {
		return 0, 0, 0, 0, err
	}
	xmin, xmax = math.Inf(1), math.Inf(-1)
	ymin, ymax = math.Inf(1), math.Inf(-1)
	for i := range x {
		xmin, xmax = math.Min(xmin, x[i]), math.Max(xmax, x[i])
		ymin, ymax = math.Min(ymin, y[i]), math.Max(ymax, y[i])
	}
	return xmin, xmax, ymin, ymax, nil
}

// subsetGrid keeps the pixels of r whose centers fall inside the box and
// returns them as a projected rasterGrid.
func subsetGrid(r *geotiff.Raster, data []float64, xmin, xmax, ymin, ymax float64) (rasterGrid, error) {
	xc := r.XCenters()
	yc := r.YCenters()

	var cols, rows []int
	for c, x := range xc {
		if x >= xmin && x <= xmax {
			cols = append(cols, c)
		}
	}
	for row, y := range yc {
		if y >= ymin && y <= ymax {
			rows = append(rows, row)
		}
	}
	if len(cols) == 0 || len(rows) == 0 {
		return rasterGrid{}, ErrOutsideExtent
	}

	nc, nr := len(cols), len(rows)
	sub := make([]float64, 0, nc*nr)
	for _, row := range rows {
		for _, c := range cols {
			sub = append(sub, data[row*r.XSize+c])
		}
	}
	c0, r0 := cols[0], rows[0]
	return rasterGrid{
		data: sub, cols: nc, rows: nr,
		x: func(c int) float64 { return xc[c0+c] },
		y: func(i int) float64 { return yc[r0+nr-1-i] },
	}, nil
}

// formatDMS formats an angle in degrees as 61°W or 80°24'N.
func formatDMS(v float64, pos, neg string) string {
	hemi := pos
	if v < 0 {
		hemi = neg
	}
	a := math.Abs(v)
	deg := math.Floor(a)
	minutes := math.Round((a - deg) * 60)
	if minutes == 60 {
		deg++
		minutes = 0
	}
	if minutes == 0 {
		return fmt.Sprintf("%.0f°%s", deg, hemi)
	}
	return fmt.Sprintf("%.0f°%02.0f'%s", deg, minutes, hemi)
}

// Linspace This is provided to match numpy's linspace()
func Linspace(start, end float64, n int) []float64 {
	if n <= 1 {
		return []float64{start}
	}

	step := (end - start) / float64(n-1)

	x := make([]float64, n)
	for i := 0; i < n; i++ {
		x[i] = start + float64(i)*step
	}
	return x
}

func constant(v float64, n int) []float64 {
	x := make([]float64, n)
	for i := range x {
		x[i] = v
	}
	return x
}

// graticuleValues returns multiples of step within [lo, hi].
func graticuleValues(lo, hi, step float64) []float64 {
	var out []float64
	for k := math.Ceil(lo/step - 1e-9); k*step <= hi+1e-9; k++ {
		out = append(out, math.Round(k*step*1e6)/1e6)
	}
	return out
}

func graticuleStyle() draw.LineStyle {
	return draw.LineStyle{
		Color:  color.NRGBA{R: 80, G: 80, B: 80, A: 200},
		Width:  vg.Points(0.6),
		Dashes: []vg.Length{vg.Points(1), vg.Points(2)},
	}
}

func labelStyle() text.Style {
	return text.Style{
		Color:   color.Black,
		Font:    font.From(font.Font{Typeface: "Liberation", Variant: "Sans"}, vg.Points(8)),
		Handler: plot.DefaultTextHandler,
		XAlign:  text.XCenter,
	}
}

// addGraticule adds dotted meridians and parallels of ext to p, with labels
// along the southern and western edges.
func addGraticule(p *plot.Plot, proj *geotiff.Projector, ext [4]float64) error {
	var labels plotter.XYLabels

	line := func(lon, lat []float64) error {
		x, y, err := proj.Forward(lon, lat)
		if err != nil {
			return err
		}
		xys := make(plotter.XYs, len(x))
		for i := range x {
			xys[i] = plotter.XY{X: x[i], Y: y[i]}
		}
		l, err := plotter.NewLine(xys)
		if err != nil {
			return err
		}
		l.LineStyle = graticuleStyle()
		p.Add(l)
		return nil
	}

	edgeLat := ext[2] + 0.02*(ext[3]-ext[2])
	edgeLon := ext[0] + 0.08*(ext[1]-ext[0])

	for _, lonV := range graticuleValues(ext[0], ext[1], meridianStepDeg) {
		lat := Linspace(ext[2], ext[3], graticuleSteps+1)
		lon := constant(lonV, len(lat))
		if err := line(lon, lat); err != nil {
			return err
		}
		x, y, err := proj.Forward([]float64{lonV}, []float64{edgeLat})
		if err != nil {
			return err
		}
		labels.XYs = append(labels.XYs, plotter.XY{X: x[0], Y: y[0]})
		labels.Labels = append(labels.Labels, formatDMS(lonV, "E", "W"))
	}

	for _, latV := range graticuleValues(ext[2], ext[3], parallelStepDeg) {
		lon := Linspace(ext[0], ext[1], graticuleSteps+1)
		lat := constant(latV, len(lon))
		if err := line(lon, lat); err != nil {
			return err
		}
		x, y, err := proj.Forward([]float64{edgeLon}, []float64{latV})
		if err != nil {
			return err
		}
		labels.XYs = append(labels.XYs, plotter.XY{X: x[0], Y: y[0]})
		labels.Labels = append(labels.Labels, formatDMS(latV, "N", "S"))
	}

	if len(labels.Labels) == 0 {
		return nil
	}
	l, err := plotter.NewLabels(labels)
	if err != nil {
		return err
	}
	for i := range l.TextStyle {
		l.TextStyle[i] = labelStyle()
	}
	p.Add(l)
	return nil
}

func addOutlines(p *plot.Plot, outlines []orb.Ring) error {
	for _, ring := range outlines {
		if len(ring) < 2 {
			continue
		}
		xys := make(plotter.XYs, len(ring))
		for i, pt := range ring {
			xys[i] = plotter.XY{X: pt[0], Y: pt[1]}
		}
		l, err := plotter.NewLine(xys)
		if err != nil {
			return err
		}
		l.Color = color.Black
		l.Width = vg.Points(0.8)
		p.Add(l)
	}
	return nil
}

// MakeMapFigure draws phase (on the grid of r) in the raster's projected CRS,
// limited to the lon/lat extent in opts, with outlines, a graticule and a
// vertical colour bar, and writes the figure to path.
func MakeMapFigure(path string, r *geotiff.Raster, phase []float64, outlines []orb.Ring, opts MapOptions) error {
	if r.EPSG == 0 {
		return errors.New("raster has no EPSG code, cannot place it on a map")
	}
	if len(phase) != r.Len() {
		return fmt.Errorf("have %d pixels for a %dx%d raster", len(phase), r.XSize, r.YSize)
	}

	proj, err := geotiff.NewProjector(r.EPSG)
	if err != nil {
		return err
	}
	defer proj.Close()

	xmin, xmax, ymin, ymax, err := projectedExtent(proj, opts.ExtentDeg)
	if err != nil {
		return fmt.Errorf("map extent: %w", err)
	}
	grid, err := subsetGrid(r, phase, xmin, xmax, ymin, ymax)
	if err != nil {
		return err
	}

	cmap := newJetColorMap(-math.Pi, math.Pi)

	p := plot.New()
	setLiberationFonts(p)
	p.Title.Text = opts.Title
	p.Title.TextStyle.Font.Weight = xfont.WeightBold
	p.HideAxes()

	p.Add(newHeatMap(grid, cmap))
	if err := addOutlines(p, outlines); err != nil {
		return err
	}
	if err := addGraticule(p, proj, opts.ExtentDeg); err != nil {
		return err
	}

	p.X.Min, p.X.Max = xmin, xmax
	p.Y.Min, p.Y.Max = ymin, ymax

	c := newFigureCanvas(opts.FigureOptions)
	dc := draw.New(c)
	w := dc.Max.X - dc.Min.X
	h := dc.Max.Y - dc.Min.Y

	mapArea := draw.Crop(dc, 0, -w*0.2, 0, 0)
	barArea := draw.Crop(dc, w*0.82, -w*0.02, h*0.2, -h*0.2)

	p.Draw(fitAspect(mapArea, (xmax-xmin)/(ymax-ymin)))
	newColorBarPlot(cmap, true).Draw(barArea)

	return saveCanvas(path, c, opts.Format)
}
