package phase_test

import (
	"fmt"
	"log"
	"math"

	"github.com/insar-tools/ddphase/phase"
)

// Example shows the double difference of two small wrapped phase rasters.
// The second pixel crosses the +pi/-pi branch cut, which a plain subtraction
// of the phase values would get wrong.
func Example() {
	reference := []float64{0.5, 3.0, -1.0, math.NaN()}
	secondary := []float64{0.25, -3.0, -1.0, 0.0}

	dd, err := phase.DoubleDifference(reference, secondary, phase.ModeConjugate)
	if err != nil {
		log.Fatal(err)
	}

	for i, v := range dd {
		fmt.Printf("pixel %d: %.4f rad\n", i, v)
	}

	stats := phase.Summarize(dd)
	fmt.Printf("valid pixels: %d of %d\n", stats.Valid, len(dd))

	// Output:
	// pixel 0: 0.2500 rad
	// pixel 1: -0.2832 rad
	// pixel 2: 0.0000 rad
	// pixel 3: NaN rad
	// valid pixels: 3 of 4
}
