package phase

import (
	"encoding/json"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Stats summarizes the valid (non-NaN) samples of a phase field.
type Stats struct {
	Valid    int     `json:"valid_pixels"`
	Invalid  int     `json:"invalid_pixels"`
	Min      float64 `json:"min_rad"`
	Max      float64 `json:"max_rad"`
	Mean     float64 `json:"mean_rad"`
	StdDev   float64 `json:"std_rad"`
	RMS      float64 `json:"rms_rad"`
	CircMean float64 `json:"circular_mean_rad"`
	// Resultant is the mean resultant length |<exp(i*phi)>|, 1 for a constant field.
	Resultant float64 `json:"mean_resultant_length"`
}

// Summarize computes Stats over phi. Linear statistics treat the values as
// plain numbers; CircMean and Resultant account for the 2*pi ambiguity.
// A field without valid samples yields NaN statistics.
func Summarize(phi []float64) Stats {
	valid := make([]float64, 0, len(phi))
	for _, v := range phi {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			valid = append(valid, v)
		}
	}
	s := Stats{Valid: len(valid), Invalid: len(phi) - len(valid)}
	if len(valid) == 0 {
		nan := math.NaN()
		s.Min, s.Max, s.Mean, s.StdDev, s.RMS, s.CircMean, s.Resultant = nan, nan, nan, nan, nan, nan, nan
		return s
	}

	s.Min = floats.Min(valid)
	s.Max = floats.Max(valid)
	s.Mean, s.StdDev = stat.MeanStdDev(valid, nil)
	if len(valid) == 1 {
		s.StdDev = 0
	}
	s.RMS = math.Sqrt(floats.Dot(valid, valid) / float64(len(valid)))

	sines := make([]float64, len(valid))
	cosines := make([]float64, len(valid))
	for i, v := range valid {
		sines[i], cosines[i] = math.Sincos(v)
	}
	sumSin := floats.Sum(sines)
	sumCos := floats.Sum(cosines)
	s.CircMean = math.Atan2(sumSin, sumCos)
	s.Resultant = math.Hypot(sumSin, sumCos) / float64(len(valid))
	return s
}

// MarshalJSON encodes undefined (NaN) statistics as null.
func (s Stats) MarshalJSON() ([]byte, error) {
	finite := func(v float64) *float64 {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil
		}
		return &v
	}
	return json.Marshal(struct {
		Valid     int      `json:"valid_pixels"`
		Invalid   int      `json:"invalid_pixels"`
		Min       *float64 `json:"min_rad"`
		Max       *float64 `json:"max_rad"`
		Mean      *float64 `json:"mean_rad"`
		StdDev    *float64 `json:"std_rad"`
		RMS       *float64 `json:"rms_rad"`
		CircMean  *float64 `json:"circular_mean_rad"`
		Resultant *float64 `json:"mean_resultant_length"`
	}{
		s.Valid, s.Invalid,
		finite(s.Min), finite(s.Max), finite(s.Mean), finite(s.StdDev),
		finite(s.RMS), finite(s.CircMean), finite(s.Resultant),
	})
}
