// Package phase provides per-pixel arithmetic on wrapped interferometric phase:
// conversion of phase rasters to complex polar form, the complex (double)
// difference of two coregistered interferograms, phase wrapping and summary
// statistics of a phase field.
//
// All functions operate on row-major slices. NaN marks an invalid pixel and
// propagates through every operation.
package phase

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"
)

// Mode selects how two complex interferograms are combined.
type Mode int

const (
	// ModeConjugate multiplies the reference by the complex conjugate of the
	// secondary. The angle of the product is the wrapped phase difference.
	ModeConjugate Mode = iota
	// ModeSubtract subtracts the secondary from the reference in the complex plane.
	ModeSubtract
)

var (
	// ErrShapeMismatch is returned when two inputs do not hold the same number of samples.
	ErrShapeMismatch = errors.New("inputs have different sizes")
	// ErrEmpty is returned when an input holds no samples.
	ErrEmpty = errors.New("empty input")
)

// String returns the name used for the mode in parameter files.
func (m Mode) String() string {
	switch m {
	case ModeConjugate:
		return "conjugate"
	case ModeSubtract:
		return "subtract"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode converts a parameter file name ("conjugate" or "subtract") to a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "conjugate":
		return ModeConjugate, nil
	case "subtract":
		return ModeSubtract, nil
	}
	return 0, fmt.Errorf("unknown difference mode %q", s)
}

var nanComplex = cmplx.NaN()

// ToComplex converts wrapped phase values (radians) to unit complex numbers exp(i*phi).
func ToComplex(phi []float64) []complex128 {
	z := make([]complex128, len(phi))
	for i, v := range phi {
		if math.IsNaN(v) {
			z[i] = nanComplex
			continue
		}
		s, c := math.Sincos(v)
		z[i] = complex(c, s)
	}
	return z
}

// Conjugate returns ref * conj(sec) element by element.
func Conjugate(ref, sec []complex128) ([]complex128, error) {
	if err := checkPair(len(ref), len(sec)); err != nil {
		return nil, err
	}
	out := make([]complex128, len(ref))
	for i := range ref {
		out[i] = ref[i] * cmplx.Conj(sec[i])
	}
	return out, nil
}

// Subtract returns ref - sec element by element.
func Subtract(ref, sec []complex128) ([]complex128, error) {
	if err := checkPair(len(ref), len(sec)); err != nil {
		return nil, err
	}
	out := make([]complex128, len(ref))
	for i := range ref {
		out[i] = ref[i] - sec[i]
	}
	return out, nil
}

// Combine applies mode to a pair of complex interferograms.
func Combine(ref, sec []complex128, mode Mode) ([]complex128, error) {
	switch mode {
	case ModeConjugate:
		return Conjugate(ref, sec)
	case ModeSubtract:
		return Subtract(ref, sec)
	}
	return nil, fmt.Errorf("unsupported mode %v", mode)
}

// Angle returns the argument of each value in [-pi, pi].
func Angle(z []complex128) []float64 {
	out := make([]float64, len(z))
	for i, v := range z {
		if cmplx.IsNaN(v) {
			out[i] = math.NaN()
			continue
		}
		out[i] = math.Atan2(imag(v), real(v))
	}
	return out
}

// DoubleDifference computes the wrapped phase of the complex difference of two
// wrapped phase rasters: angle(exp(i*ref) * conj(exp(i*sec))) for ModeConjugate.
func DoubleDifference(ref, sec []float64, mode Mode) ([]float64, error) {
	if err := checkPair(len(ref), len(sec)); err != nil {
		return nil, err
	}
	z, err := Combine(ToComplex(ref), ToComplex(sec), mode)
	if err != nil {
		return nil, err
	}
	return Angle(z), nil
}

// Wrap maps x to the interval [-pi, pi).
func Wrap(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return math.NaN()
	}
	w := math.Mod(x+math.Pi, 2*math.Pi)
	if w < 0 {
		w += 2 * math.Pi
	}
	return w - math.Pi
}

// MaskNoData replaces every sample equal to nodata with NaN, in place.
// It returns the number of samples masked.
func MaskNoData(data []float64, nodata float64) int {
	n := 0
	for i, v := range data {
		if v == nodata {
			data[i] = math.NaN()
			n++
		}
	}
	return n
}

// MaskNoDataComplex is the complex counterpart of MaskNoData. A sample is masked
// when its real part equals nodata.
func MaskNoDataComplex(data []complex128, nodata float64) int {
	n := 0
	for i, v := range data {
		if real(v) == nodata {
			data[i] = nanComplex
			n++
		}
	}
	return n
}

// Normalize scales each complex sample to unit magnitude. Zero and NaN samples become NaN.
func Normalize(z []complex128) []complex128 {
	out := make([]complex128, len(z))
	for i, v := range z {
		a := cmplx.Abs(v)
		if a == 0 || math.IsNaN(a) {
			out[i] = nanComplex
			continue
		}
		out[i] = v / complex(a, 0)
	}
	return out
}

func checkPair(a, b int) error {
	if a == 0 || b == 0 {
		return ErrEmpty
	}
	if a != b {
		return fmt.Errorf("%w: %d vs %d samples", ErrShapeMismatch, a, b)
	}
	return nil
}
