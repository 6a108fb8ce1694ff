package main

import (
	"errors"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

type ConvMode int

const (
	ConvSame ConvMode = iota
	ConvFull
	ConvValid
)

type PaddingMode int

const (
	PadZeros PaddingMode = iota
	PadReflect
	PadReplicate
	PadCircular
)

// BoxcarKernel returns a size x size kernel of equal weights that sum to 1.
func BoxcarKernel(size int) [][]float64 {
	w := 1.0 / float64(size*size)
	k := make([][]float64, size)
	for row := range k {
		k[row] = make([]float64, size)
		for col := range k[row] {
			k[row][col] = w
		}
	}
	return k
}

// ConvolveComplexFFT convolves a complex image with a real kernel using 2D FFT.
//
// image:  HxW
// kernel: KhxKw, stored with its center at (Kh/2, Kw/2)
// mode:   Same, Full, Valid
// pad:    Zeros, Reflect, Replicate, Circular
func ConvolveComplexFFT(image [][]complex128, kernel [][]float64, mode ConvMode, pad PaddingMode) ([][]complex128, error) {
	H, W, err := rectSize(image)
	if err != nil {
		return nil, err
	}
	Kh, Kw, err := rectSize(kernel)
	if err != nil {
		return nil, err
	}
	if H == 0 || W == 0 || Kh == 0 || Kw == 0 {
		return nil, errors.New("empty image or kernel")
	}

	var outH, outW int
	switch mode {
	case ConvSame:
		outH, outW = H, W
	case ConvFull:
		outH, outW = H+Kh-1, W+Kw-1
	case ConvValid:
		outH, outW = H-Kh+1, W-Kw+1
		if outH <= 0 || outW <= 0 {
			return nil, errors.New("valid convolution requested but kernel larger than image")
		}
	default:
		return nil, errors.New("unknown ConvMode")
	}

	// Image sits at (Kh-1, Kw-1) inside the grid.
	padY, padX := Kh-1, Kw-1

	// FFT grid: image plus a margin on both sides, rounded up to a power of two.
	FH := nextPow2(H + 2*padY)
	FW := nextPow2(W + 2*padX)

	A := makeComplex2D(FH, FW)
	B := makeComplex2D(FH, FW)

	// Samples outside the image follow the padding policy.
	for y := 0; y < FH; y++ {
		for x := 0; x < FW; x++ {
			A[y][x] = sample2D(image, y-padY, x-padX, pad)
		}
	}
	for y := 0; y < Kh; y++ {
		for x := 0; x < Kw; x++ {
			B[y][x] = complex(kernel[y][x], 0)
		}
	}

	fft2InPlace(A, true)
	fft2InPlace(B, true)

	for y := 0; y < FH; y++ {
		for x := 0; x < FW; x++ {
			A[y][x] *= B[y][x]
		}
	}

	fft2InPlace(A, false)

	// Gonum transforms are unnormalized: forward then inverse multiplies by FH*FW.
	scale := complex(float64(FH*FW), 0)

	offY, offX := padY, padX
	switch mode {
	case ConvSame:
		offY, offX = padY+Kh/2, padX+Kw/2
	case ConvValid:
		offY, offX = padY+Kh-1, padX+Kw-1
	}

	out := make([][]complex128, outH)
	for y := 0; y < outH; y++ {
		out[y] = make([]complex128, outW)
		for x := 0; x < outW; x++ {
			out[y][x] = A[y+offY][x+offX] / scale
		}
	}
	return out, nil
}

// SmoothComplex averages z (rows x cols, row-major) over a window x window
// boxcar. NaN samples are excluded from every average and remain NaN in the
// output. An even window is widened by one pixel so the kernel stays centered.
func SmoothComplex(z []complex128, rows, cols, window int) ([]complex128, error) {
	if window < 1 {
		return nil, errors.New("window must be at least 1 pixel")
	}
	if len(z) != rows*cols {
		return nil, errors.New("size mismatch between data and grid")
	}
	if window%2 == 0 {
		window++
	}

	data := make([][]complex128, rows)
	weight := make([][]complex128, rows)
	for y := 0; y < rows; y++ {
		data[y] = make([]complex128, cols)
		weight[y] = make([]complex128, cols)
		for x := 0; x < cols; x++ {
			v := z[y*cols+x]
			if cmplx.IsNaN(v) {
				continue
			}
			data[y][x] = v
			weight[y][x] = 1
		}
	}

	kernel := BoxcarKernel(window)
	sum, err := ConvolveComplexFFT(data, kernel, ConvSame, PadReplicate)
	if err != nil {
		return nil, err
	}
	norm, err := ConvolveComplexFFT(weight, kernel, ConvSame, PadReplicate)
	if err != nil {
		return nil, err
	}

	out := make([]complex128, rows*cols)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			i := y*cols + x
			w := real(norm[y][x])
			if cmplx.IsNaN(z[i]) || w < 1e-9 {
				out[i] = cmplx.NaN()
				continue
			}
			out[i] = cleanZero(sum[y][x] / complex(w, 0))
		}
	}
	return out, nil
}

// PhaseConsistency returns |<exp(i*phi)>| over a window x window boxcar, a value
// in [0, 1] that is 1 where the phase is locally constant.
func PhaseConsistency(unit []complex128, rows, cols, window int) ([]float64, error) {
	smoothed, err := SmoothComplex(unit, rows, cols, window)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(smoothed))
	for i, v := range smoothed {
		if cmplx.IsNaN(v) {
			out[i] = math.NaN()
			continue
		}
		out[i] = math.Min(cmplx.Abs(v), 1)
	}
	return out, nil
}

// -------------------- FFT helpers --------------------

func fft2InPlace(a [][]complex128, forward bool) {
	h := len(a)
	w := len(a[0])

	rowFFT := fourier.NewCmplxFFT(w)
	colFFT := fourier.NewCmplxFFT(h)

	// rows
	tmp := make([]complex128, w)
	for y := 0; y < h; y++ {
		copy(tmp, a[y])
		if forward {
			rowFFT.Coefficients(tmp, tmp)
		} else {
			rowFFT.Sequence(tmp, tmp)
		}
		copy(a[y], tmp)
	}

	// cols
	col := make([]complex128, h)
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			col[y] = a[y][x]
		}
		if forward {
			colFFT.Coefficients(col, col)
		} else {
			colFFT.Sequence(col, col)
		}
		for y := 0; y < h; y++ {
			a[y][x] = col[y]
		}
	}
}

// -------------------- Padding --------------------

func sample2D[T float64 | complex128](img [][]T, y, x int, mode PaddingMode) T {
	H := len(img)
	W := len(img[0])

	if 0 <= y && y < H && 0 <= x && x < W {
		return img[y][x]
	}

	switch mode {
	case PadReplicate:
		return img[clamp(y, 0, H-1)][clamp(x, 0, W-1)]
	case PadReflect:
		return img[reflectIndex(y, H)][reflectIndex(x, W)]
	case PadCircular:
		return img[mod(y, H)][mod(x, W)]
	}

	var zero T
	return zero
}

// -------------------- utility --------------------

func rectSize[T any](m [][]T) (h, w int, err error) {
	h = len(m)
	if h == 0 {
		return 0, 0, nil
	}
	w = len(m[0])
	for i := 1; i < h; i++ {
		if len(m[i]) != w {
			return 0, 0, errors.New("ragged matrix")
		}
	}
	return h, w, nil
}

func makeComplex2D(h, w int) [][]complex128 {
	m := make([][]complex128, h)
	for i := range m {
		m[i] = make([]complex128, w)
	}
	return m
}

func nextPow2(n int) int {
	if n <= 1 {
		return 1
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func mod(i, n int) int {
	r := i % n
	if r < 0 {
		r += n
	}
	return r
}

// reflectIndex implements "reflect" padding without repeating edge pixels.
// Example for n=5 indices: ... 2 1 0 1 2 3 4 3 2 1 0 1 ...
func reflectIndex(i, n int) int {
	if n <= 1 {
		return 0
	}
	period := 2*n - 2
	i = mod(i, period)
	if i >= n {
		i = period - i
	}
	return i
}

// cleanZero removes FFT round-off from components that should be exactly zero.
func cleanZero(z complex128) complex128 {
	re, im := real(z), imag(z)
	if math.Abs(re) < 1e-15 {
		re = 0
	}
	if math.Abs(im) < 1e-15 {
		im = 0
	}
	return complex(re, im)
}
