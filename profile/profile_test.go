package profile

import (
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeSamplePointsIncludesEnds(t *testing.T) {
	tr := &Transect{StartX: 1, StartY: 1, EndX: 4, EndY: 5}
	tr.ComputeSamplePoints()

	require.Len(t, tr.SamplePoints, 6)
	first := tr.SamplePoints[0]
	last := tr.SamplePoints[len(tr.SamplePoints)-1]
	assert.Equal(t, PathPoint{X: 1, Y: 1}, first)
	assert.InDelta(t, 4, last.X, 1e-12)
	assert.InDelta(t, 5, last.Y, 1e-12)
	assert.InDelta(t, 5, last.DistanceFromStart, 1e-12)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, (&Transect{EndX: 9, EndY: 4}).Validate(5, 10))
	assert.ErrorIs(t, (&Transect{EndX: 10, EndY: 4}).Validate(5, 10), ErrOutsideRaster)
	assert.ErrorIs(t, (&Transect{StartX: -1}).Validate(5, 10), ErrOutsideRaster)
	assert.ErrorIs(t, (&Transect{StartX: 2, StartY: 2, EndX: 2, EndY: 2}).Validate(5, 10), ErrZeroLength)
}

func TestInterpolateAcrossBranchCut(t *testing.T) {
	m := [][]float64{
		{math.Pi - 0.1, -math.Pi + 0.1},
		{math.Pi - 0.1, -math.Pi + 0.1},
	}
	v := interpolate(m, 0.5, 0.5)
	assert.InDelta(t, math.Pi, math.Abs(v), 1e-9)
}

func TestInterpolateNaNNeighbour(t *testing.T) {
	m := [][]float64{
		{0, math.NaN()},
		{0, 0},
	}
	assert.True(t, math.IsNaN(interpolate(m, 0.5, 0.5)))
	assert.Equal(t, 0.0, interpolate(m, 0, 1))
	assert.True(t, math.IsNaN(interpolate(nil, 0, 0)))
}

func TestFindWrapJumps(t *testing.T) {
	prof := []Point{
		{Distance: 0, Phase: 2.5},
		{Distance: 1, Phase: 3.0},
		{Distance: 2, Phase: -3.0},
		{Distance: 3, Phase: math.NaN()},
		{Distance: 4, Phase: -2.5},
	}
	jumps := FindWrapJumps(prof, math.Pi)
	assert.Equal(t, []float64{1.5}, jumps)
}

func TestSaveProfilePlot(t *testing.T) {
	prof := []Point{
		{Distance: 0, Phase: 0},
		{Distance: 10, Phase: 1},
		{Distance: 20, Phase: math.NaN()},
		{Distance: 30, Phase: -1},
	}
	path := filepath.Join(t.TempDir(), "profile.png")
	require.NoError(t, SaveProfilePlot(path, prof, []float64{15}, "profile", "m", 480, 240))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 480, img.Bounds().Dx())
	assert.Equal(t, 240, img.Bounds().Dy())

	_, err = PlotProfile(nil, nil, "", "", 10, 10)
	assert.Error(t, err)
}

func TestDrawTransectOnImage(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 20, 10))
	out := DrawTransectOnImage(src, &Transect{StartX: 2, StartY: 5, EndX: 17, EndY: 5})

	assert.Equal(t, color.RGBA{R: 255, A: 255}, out.RGBAAt(10, 5))
	assert.Equal(t, color.RGBA{G: 255, A: 255}, out.RGBAAt(17, 5))
	assert.Equal(t, color.RGBA{A: 255}, out.RGBAAt(10, 0))
}
