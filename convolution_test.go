package main

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvolveComplexFFTIdentityKernel(t *testing.T) {
	img := [][]complex128{
		{1, 2i, 3},
		{4, 5, 6 - 1i},
	}
	out, err := ConvolveComplexFFT(img, [][]float64{{1}}, ConvSame, PadZeros)
	require.NoError(t, err)
	for y := range img {
		for x := range img[y] {
			assert.InDelta(t, real(img[y][x]), real(out[y][x]), 1e-12)
			assert.InDelta(t, imag(img[y][x]), imag(out[y][x]), 1e-12)
		}
	}
}

func TestConvolveComplexFFTModes(t *testing.T) {
	img := makeComplex2D(4, 5)
	k := BoxcarKernel(3)

	full, err := ConvolveComplexFFT(img, k, ConvFull, PadZeros)
	require.NoError(t, err)
	assert.Len(t, full, 6)
	assert.Len(t, full[0], 7)

	valid, err := ConvolveComplexFFT(img, k, ConvValid, PadZeros)
	require.NoError(t, err)
	assert.Len(t, valid, 2)
	assert.Len(t, valid[0], 3)

	_, err = ConvolveComplexFFT(img, BoxcarKernel(7), ConvValid, PadZeros)
	assert.Error(t, err)

	_, err = ConvolveComplexFFT([][]complex128{{1, 2}, {3}}, k, ConvSame, PadZeros)
	assert.Error(t, err)
}

func TestSmoothComplexConstantField(t *testing.T) {
	const rows, cols = 6, 7
	c := cmplx.Rect(1, 0.8)
	z := make([]complex128, rows*cols)
	for i := range z {
		z[i] = c
	}

	out, err := SmoothComplex(z, rows, cols, 3)
	require.NoError(t, err)
	for i, v := range out {
		assert.InDelta(t, real(c), real(v), 1e-9, "pixel %d", i)
		assert.InDelta(t, imag(c), imag(v), 1e-9, "pixel %d", i)
	}
}

func TestSmoothComplexKeepsNaN(t *testing.T) {
	const rows, cols = 5, 5
	z := make([]complex128, rows*cols)
	for i := range z {
		z[i] = 1
	}
	z[12] = cmplx.NaN()

	out, err := SmoothComplex(z, rows, cols, 4)
	require.NoError(t, err)
	assert.True(t, cmplx.IsNaN(out[12]))
	// Neighbours average only the valid samples.
	assert.InDelta(t, 1, real(out[11]), 1e-9)
	assert.InDelta(t, 0, imag(out[11]), 1e-9)
}

func TestSmoothComplexRejectsBadInput(t *testing.T) {
	_, err := SmoothComplex(make([]complex128, 4), 2, 2, 0)
	assert.Error(t, err)
	_, err = SmoothComplex(make([]complex128, 3), 2, 2, 3)
	assert.Error(t, err)
}

func TestPhaseConsistency(t *testing.T) {
	const rows, cols = 4, 6
	constant := make([]complex128, rows*cols)
	alternating := make([]complex128, rows*cols)
	for i := range constant {
		constant[i] = cmplx.Rect(1, -2)
		// Checkerboard of opposite phasors cancels out.
		if (i/cols+i%cols)%2 == 0 {
			alternating[i] = 1
		} else {
			alternating[i] = -1
		}
	}

	got, err := PhaseConsistency(constant, rows, cols, 3)
	require.NoError(t, err)
	for _, v := range got {
		assert.InDelta(t, 1, v, 1e-9)
	}

	got, err = PhaseConsistency(alternating, rows, cols, 3)
	require.NoError(t, err)
	// Interior pixels see 5 of one sign and 4 of the other.
	assert.InDelta(t, 1.0/9, got[1*cols+1], 1e-9)

	constant[0] = cmplx.NaN()
	got, err = PhaseConsistency(constant, rows, cols, 3)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(got[0]))
}

func TestPaddingIndices(t *testing.T) {
	assert.Equal(t, []int{2, 1, 0, 1, 2, 3, 4, 3, 2}, []int{
		reflectIndex(-2, 5), reflectIndex(-1, 5), reflectIndex(0, 5), reflectIndex(1, 5),
		reflectIndex(2, 5), reflectIndex(3, 5), reflectIndex(4, 5), reflectIndex(5, 5), reflectIndex(6, 5),
	})
	assert.Equal(t, 4, mod(-1, 5))
	assert.Equal(t, 0, clamp(-3, 0, 4))
	assert.Equal(t, 4, clamp(9, 0, 4))
	assert.Equal(t, 8, nextPow2(5))
	assert.Equal(t, 1, nextPow2(0))

	img := [][]float64{{1, 2}, {3, 4}}
	assert.Equal(t, 0.0, sample2D(img, -1, 0, PadZeros))
	assert.Equal(t, 1.0, sample2D(img, -1, -1, PadReplicate))
	assert.Equal(t, 4.0, sample2D(img, -1, -1, PadCircular))
	assert.Equal(t, 1.0, sample2D(img, 2, 2, PadReflect))
}

// directConvolve is the textbook sum over the kernel, used as a reference.
func directConvolve(img [][]complex128, k [][]float64, mode ConvMode, pad PaddingMode) [][]complex128 {
	H, W := len(img), len(img[0])
	Kh, Kw := len(k), len(k[0])
	outH, outW, offY, offX := H, W, Kh/2, Kw/2
	switch mode {
	case ConvFull:
		outH, outW, offY, offX = H+Kh-1, W+Kw-1, 0, 0
	case ConvValid:
		outH, outW, offY, offX = H-Kh+1, W-Kw+1, Kh-1, Kw-1
	}
	out := makeComplex2D(outH, outW)
	for y := 0; y < outH; y++ {
		for x := 0; x < outW; x++ {
			for ky := 0; ky < Kh; ky++ {
				for kx := 0; kx < Kw; kx++ {
					v := sample2D(img, y+offY-ky, x+offX-kx, pad)
					out[y][x] += v * complex(k[ky][kx], 0)
				}
			}
		}
	}
	return out
}

func TestConvolveComplexFFTMatchesDirectSum(t *testing.T) {
	img := makeComplex2D(5, 7)
	for y := range img {
		for x := range img[y] {
			img[y][x] = cmplx.Rect(1+0.1*float64(y), 0.3*float64(x)-0.2*float64(y))
		}
	}
	// Asymmetric so a flipped or shifted kernel shows up.
	kernel := [][]float64{{0.1, 0.2, 0.05}, {0.3, 0.0, 0.15}, {0.05, 0.1, 0.05}}

	for _, pad := range []PaddingMode{PadZeros, PadReflect, PadReplicate, PadCircular} {
		for _, mode := range []ConvMode{ConvSame, ConvFull, ConvValid} {
			got, err := ConvolveComplexFFT(img, kernel, mode, pad)
			require.NoError(t, err)
			want := directConvolve(img, kernel, mode, pad)
			require.Len(t, got, len(want))
			for y := range want {
				require.Len(t, got[y], len(want[y]))
				for x := range want[y] {
					assert.InDelta(t, real(want[y][x]), real(got[y][x]), 1e-9, "pad %d mode %d (%d, %d)", pad, mode, x, y)
					assert.InDelta(t, imag(want[y][x]), imag(got[y][x]), 1e-9, "pad %d mode %d (%d, %d)", pad, mode, x, y)
				}
			}
		}
	}
}

func TestSmoothComplexReplicatesEdges(t *testing.T) {
	const n = 8
	z := make([]complex128, n)
	for i := range z {
		z[i] = cmplx.Rect(1, 0.3*float64(i))
	}

	out, err := SmoothComplex(z, 1, n, 3)
	require.NoError(t, err)

	// The ends average with a copy of themselves, never with the far side.
	first := (2*z[0] + z[1]) / 3
	last := (z[n-2] + 2*z[n-1]) / 3
	assert.InDelta(t, real(first), real(out[0]), 1e-9)
	assert.InDelta(t, imag(first), imag(out[0]), 1e-9)
	assert.InDelta(t, real(last), real(out[n-1]), 1e-9)
	assert.InDelta(t, imag(last), imag(out[n-1]), 1e-9)
	mid := (z[3] + z[4] + z[5]) / 3
	assert.InDelta(t, real(mid), real(out[4]), 1e-9)
	assert.InDelta(t, imag(mid), imag(out[4]), 1e-9)
}
