package main

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"math"
	"sort"

	"github.com/google/renameio/v2"
)

// MatrixToGrayFixed maps [lo, hi] linearly to 0..255 and clamps. NaN and Inf
// pixels are written as 0.
func MatrixToGrayFixed(m [][]float64, lo, hi float64) (*image.Gray, error) {
	h, w, err := rectSize(m)
	if err != nil {
		return nil, err
	}
	if h == 0 || w == 0 {
		return nil, errors.New("empty matrix")
	}
	if hi <= lo {
		return nil, errors.New("hi must be > lo")
	}

	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		row := y * img.Stride
		for x := 0; x < w; x++ {
			v := m[y][x]
			if math.IsNaN(v) || math.IsInf(v, 0) {
				img.Pix[row+x] = 0
				continue
			}
			t := (v - lo) / (hi - lo)
			t = math.Max(0, math.Min(1, t))
			img.Pix[row+x] = uint8(math.Round(t * 255.0))
		}
	}
	return img, nil
}

// MatrixToGrayViewPercentile -------------------- View PNG (Gray8, auto-stretch) --------------------
// Percentile stretch: map pLow to pHigh to 0..255 and clamp.
func MatrixToGrayViewPercentile(m [][]float64, pLow, pHigh float64) (*image.Gray, error) {
	h, w, err := rectSize(m)
	if err != nil {
		return nil, err
	}
	if h == 0 || w == 0 {
		return nil, errors.New("empty matrix")
	}
	if !(0 <= pLow && pLow < pHigh && pHigh <= 100) {
		return nil, errors.New("percentiles must satisfy 0 <= pLow < pHigh <= 100")
	}

	// Collect finite values for percentile computation
	vals := make([]float64, 0, h*w)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := m[y][x]
			if !math.IsNaN(v) && !math.IsInf(v, 0) {
				vals = append(vals, v)
			}
		}
	}
	if len(vals) == 0 {
		return nil, errors.New("matrix has no finite values")
	}

	sort.Float64s(vals)

	percentile := func(p float64) float64 {
		if p <= 0 {
			return vals[0]
		}
		if p >= 100 {
			return vals[len(vals)-1]
		}
		pos := (p / 100.0) * float64(len(vals)-1)
		i := int(math.Floor(pos))
		f := pos - float64(i)
		if i >= len(vals)-1 {
			return vals[len(vals)-1]
		}
		return vals[i]*(1-f) + vals[i+1]*f
	}

	lo := percentile(pLow)
	hi := percentile(pHigh)
	if hi == lo {
		hi = lo + 1 // avoid divide-by-zero; image becomes mostly constant
	}

	return MatrixToGrayFixed(m, lo, hi)
}

// SaveImagePNG atomically writes img to filename as PNG.
func SaveImagePNG(filename string, img image.Image) error {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return fmt.Errorf("encode %s: %w", filename, err)
	}
	return renameio.WriteFile(filename, buf.Bytes(), 0o644)
}

// Reshape1DTo2D splits a row-major slice into rows of cols values.
func Reshape1DTo2D[T any](v []T, rows, cols int) ([][]T, error) {
	if len(v) != rows*cols {
		return nil, fmt.Errorf("size mismatch: have %d, want %d", len(v), rows*cols)
	}

	m := make([][]T, rows)
	k := 0
	for i := 0; i < rows; i++ {
		m[i] = make([]T, cols)
		copy(m[i], v[k:k+cols])
		k += cols
	}
	return m, nil
}
