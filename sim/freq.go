package sim

import (
	"log"
)

// Freq defines the type of frequency
type Freq float64

// Defines the unit of frequency
const (
	Hz  Freq = 1
	KHz Freq = 1e3
	MHz Freq = 1e6
	GHz Freq = 1e9
)

// Period returns the time between two consecutive ticks in seconds.
func (f Freq) Period() float64 {
	if f == 0 {
		log.Panic("frequency cannot be 0")
	}

	return 1.0 / float64(f)
}

// Seconds converts a number of cycles to seconds.
func (f Freq) Seconds(cycles VTimeInCycle) float64 {
	return float64(cycles) * f.Period()
}

// NCyclesLater returns the time after N cycles.
func NCyclesLater(n int, now VTimeInCycle) VTimeInCycle {
	if n < 0 {
		log.Panicf("cannot go back %d cycles", -n)
	}

	return now + VTimeInCycle(n)
}
