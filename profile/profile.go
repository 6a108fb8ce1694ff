// Package profile extracts wrapped phase values along a straight transect of a
// raster, plots the resulting profile, and marks the transect on a quicklook image.
package profile

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"math/cmplx"

	"github.com/google/renameio/v2"
	"gonum.org/v1/plot"
	_ "gonum.org/v1/plot/font/liberation"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	vgdraw "gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// PathPoint represents a point along the transect with x, y coordinates
// and distance from the start of the transect.
type PathPoint struct {
	X                 float64 // X coordinate in raster pixels (column)
	Y                 float64 // Y coordinate in raster pixels (row)
	DistanceFromStart float64 // Distance from transect start in pixels
}

// Point represents a single sample of the extracted profile.
type Point struct {
	Distance float64 // Distance from transect start (metres when PixelSize is set, else pixels)
	Phase    float64 // Wrapped phase in radians, NaN where undefined
}

// Transect defines the straight line along which the profile is extracted.
type Transect struct {
	StartX, StartY float64 // Start point in fractional pixel coordinates
	EndX, EndY     float64 // End point in fractional pixel coordinates
	PixelSize      float64 // Ground size of one pixel; 0 reports distances in pixels

	SamplePoints []PathPoint // Computed sample points along the transect
}

// ErrOutsideRaster is returned when a transect end point lies outside the raster.
var ErrOutsideRaster = errors.New("transect end point lies outside the raster")

// ErrZeroLength is returned when the transect start and end coincide.
var ErrZeroLength = errors.New("transect has zero length")

// Validate checks the transect against a raster of rows x cols pixels.
func (t *Transect) Validate(rows, cols int) error {
	for _, p := range [][2]float64{{t.StartX, t.StartY}, {t.EndX, t.EndY}} {
		if p[0] < 0 || p[1] < 0 || p[0] > float64(cols-1) || p[1] > float64(rows-1) {
			return fmt.Errorf("(%g, %g) in %dx%d: %w", p[0], p[1], cols, rows, ErrOutsideRaster)
		}
	}
	if t.Length() == 0 {
		return ErrZeroLength
	}
	return nil
}

// Length returns the transect length in pixels.
func (t *Transect) Length() float64 {
	return math.Hypot(t.EndX-t.StartX, t.EndY-t.StartY)
}

// ComputeSamplePoints fills SamplePoints with points spaced at most one pixel
// apart, including both end points.
func (t *Transect) ComputeSamplePoints() {
	length := t.Length()
	n := int(math.Ceil(length)) + 1
	t.SamplePoints = make([]PathPoint, n)
	if n == 1 {
		t.SamplePoints[0] = PathPoint{X: t.StartX, Y: t.StartY}
		return
	}
	dx := (t.EndX - t.StartX) / float64(n-1)
	dy := (t.EndY - t.StartY) / float64(n-1)
	step := length / float64(n-1)
	for i := range n {
		k := float64(i)
		t.SamplePoints[i] = PathPoint{
			X:                 t.StartX + k*dx,
			Y:                 t.StartY + k*dy,
			DistanceFromStart: k * step,
		}
	}
}

// interpolate performs bilinear interpolation of a wrapped phase matrix at
// fractional pixel coordinates (x, y). Interpolation is done on the unit
// phasors so values are not smeared across the ±π discontinuity. NaN is
// returned if any of the four neighbours is NaN.
func interpolate(matrix [][]float64, x, y float64) float64 {
	rows := len(matrix)
	if rows == 0 || len(matrix[0]) == 0 {
		return math.NaN()
	}
	cols := len(matrix[0])

	x = math.Max(0, math.Min(x, float64(cols-1)))
	y = math.Max(0, math.Min(y, float64(rows-1)))

	x0 := int(x)
	y0 := int(y)
	x1 := min(x0+1, cols-1)
	y1 := min(y0+1, rows-1)

	xFrac := x - float64(x0)
	yFrac := y - float64(y0)

	v00 := matrix[y0][x0]
	v01 := matrix[y0][x1]
	v10 := matrix[y1][x0]
	v11 := matrix[y1][x1]
	if math.IsNaN(v00) || math.IsNaN(v01) || math.IsNaN(v10) || math.IsNaN(v11) {
		return math.NaN()
	}

	phasor := func(v float64) complex128 { return cmplx.Rect(1, v) }
	z0 := phasor(v00)*complex(1-xFrac, 0) + phasor(v01)*complex(xFrac, 0)
	z1 := phasor(v10)*complex(1-xFrac, 0) + phasor(v11)*complex(xFrac, 0)
	z := z0*complex(1-yFrac, 0) + z1*complex(yFrac, 0)
	if cmplx.Abs(z) < 1e-12 {
		return math.NaN()
	}
	return cmplx.Phase(z)
}

// Extract samples phaseMatrix (rows of wrapped phase) along the transect.
func Extract(phaseMatrix [][]float64, t *Transect) []Point {
	if len(t.SamplePoints) == 0 {
		t.ComputeSamplePoints()
	}

	scale := t.PixelSize
	if scale <= 0 {
		scale = 1
	}

	profile := make([]Point, len(t.SamplePoints))
	for i, pt := range t.SamplePoints {
		profile[i] = Point{
			Distance: pt.DistanceFromStart * scale,
			Phase:    interpolate(phaseMatrix, pt.X, pt.Y),
		}
	}
	return profile
}

// FindWrapJumps returns the distances at which consecutive profile samples
// differ by more than threshold radians, which marks a fringe wrap (or noise).
func FindWrapJumps(profile []Point, threshold float64) []float64 {
	var jumps []float64
	for i := 1; i < len(profile); i++ {
		a, b := profile[i-1].Phase, profile[i].Phase
		if math.IsNaN(a) || math.IsNaN(b) {
			continue
		}
		if math.Abs(b-a) > threshold {
			jumps = append(jumps, 0.5*(profile[i-1].Distance+profile[i].Distance))
		}
	}
	return jumps
}

// PiTicks labels the axis at -π, 0 and π.
type PiTicks struct{}

func (PiTicks) Ticks(min, max float64) []plot.Tick {
	var ticks []plot.Tick
	for _, t := range []plot.Tick{{Value: -math.Pi, Label: "-π"}, {Value: 0, Label: "0"}, {Value: math.Pi, Label: "π"}} {
		if t.Value >= min && t.Value <= max {
			ticks = append(ticks, t)
		}
	}
	return ticks
}

// PlotProfile creates a plot of the phase profile with wrap jumps marked as
// red dashed vertical lines. Returns the plot as an image.Image.
func PlotProfile(profile []Point, jumps []float64, title, xLabel string, wPx, hPx float64) (image.Image, error) {
	if len(profile) == 0 {
		return nil, errors.New("empty profile")
	}

	p := plot.New()

	p.Y.Min = -math.Pi - 0.3
	p.Y.Max = math.Pi + 0.3

	// Font settings
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

	span := profile[len(profile)-1].Distance

	p.Title.Text = title
	p.X.Label.Text = xLabel
	p.Y.Label.Text = "Rad"
	p.Y.Tick.Marker = PiTicks{}
	p.Add(plotter.NewGrid())

	// NaN samples break the line into separate segments.
	var segment plotter.XYs
	flush := func() error {
		if len(segment) == 0 {
			return nil
		}
		scatter, err := plotter.NewScatter(segment)
		if err != nil {
			return err
		}
		scatter.GlyphStyle.Shape = vgdraw.CircleGlyph{}
		scatter.GlyphStyle.Radius = vg.Points(1.5)
		scatter.GlyphStyle.Color = color.RGBA{R: 0, G: 0, B: 255, A: 255}
		p.Add(scatter)
		segment = nil
		return nil
	}
	for _, pt := range profile {
		if math.IsNaN(pt.Phase) {
			if err := flush(); err != nil {
				return nil, err
			}
			continue
		}
		segment = append(segment, plotter.XY{X: pt.Distance, Y: pt.Phase})
	}
	if err := flush(); err != nil {
		return nil, err
	}

	for _, jump := range jumps {
		vpts := plotter.XYs{
			{X: jump, Y: -math.Pi},
			{X: jump, Y: math.Pi},
		}
		vline, err := plotter.NewLine(vpts)
		if err != nil {
			return nil, err
		}
		vline.Dashes = []vg.Length{vg.Points(6), vg.Points(4)}
		vline.Color = color.RGBA{R: 255, G: 0, B: 0, A: 255}
		p.Add(vline)
	}

	// Add a zero line
	hpts := plotter.XYs{
		{X: 0.0, Y: 0.0},
		{X: span, Y: 0.0},
	}
	hline, err := plotter.NewLine(hpts)
	if err != nil {
		return nil, err
	}
	hline.Dashes = []vg.Length{vg.Points(6), vg.Points(4)}
	hline.Color = color.RGBA{R: 0, G: 0, B: 0, A: 255}
	p.Add(hline)

	// Render to image
	const dpi = 96
	width := vg.Length(wPx) * vg.Inch / dpi
	height := vg.Length(hPx) * vg.Inch / dpi

	c := vgimg.New(width, height)
	dc := vgdraw.New(c)
	p.Draw(dc)

	return c.Image(), nil
}

// SaveProfilePlot creates the profile plot and writes it to filename as PNG.
func SaveProfilePlot(filename string, profile []Point, jumps []float64, title, xLabel string, wPx, hPx float64) error {
	img, err := PlotProfile(profile, jumps, title, xLabel, wPx, hPx)
	if err != nil {
		return err
	}
	return SaveImageToFile(filename, img)
}

// DrawTransectOnImage draws the transect on a copy of sourceImage.
// The transect is drawn as a red line with a red dot at the start and a green dot at the end.
func DrawTransectOnImage(sourceImage image.Image, t *Transect) *image.RGBA {
	bounds := sourceImage.Bounds()

	result := image.NewRGBA(bounds)
	draw.Draw(result, bounds, sourceImage, bounds.Min, draw.Src)

	drawLine(result, t.StartX, t.StartY, t.EndX, t.EndY, color.RGBA{R: 255, A: 255})
	drawDot(result, t.StartX, t.StartY, 3, color.RGBA{R: 255, A: 255})
	drawDot(result, t.EndX, t.EndY, 3, color.RGBA{G: 255, A: 255})

	return result
}

// drawLine draws a line on the image using Bresenham's algorithm.
func drawLine(img *image.RGBA, x1, y1, x2, y2 float64, col color.Color) {
	x1, y1, x2, y2 = math.Round(x1), math.Round(y1), math.Round(x2), math.Round(y2)
	dx := math.Abs(x2 - x1)
	dy := math.Abs(y2 - y1)
	sx := -1.0
	if x1 < x2 {
		sx = 1.0
	}
	sy := -1.0
	if y1 < y2 {
		sy = 1.0
	}
	err := dx - dy

	for {
		px, py := int(x1), int(y1)
		if image.Pt(px, py).In(img.Bounds()) {
			img.Set(px, py, col)
		}

		if x1 == x2 && y1 == y2 {
			break
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x1 += sx
		}
		if e2 < dx {
			err += dx
			y1 += sy
		}
	}
}

// drawDot draws a filled circle on the image.
func drawDot(img *image.RGBA, cx, cy float64, radius int, col color.Color) {
	for y := -radius; y <= radius; y++ {
		for x := -radius; x <= radius; x++ {
			if x*x+y*y <= radius*radius {
				px := int(math.Round(cx)) + x
				py := int(math.Round(cy)) + y
				if image.Pt(px, py).In(img.Bounds()) {
					img.Set(px, py, col)
				}
			}
		}
	}
}

// SaveImageToFile atomically writes an image to a PNG file.
func SaveImageToFile(filename string, img image.Image) error {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return fmt.Errorf("failed to encode %s: %w", filename, err)
	}
	if err := renameio.WriteFile(filename, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filename, err)
	}
	return nil
}
