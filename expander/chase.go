package expander

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/antongulenko/mcp23s17/mcp23s17"
	"periph.io/x/conn/v3/gpio"
)

var DefaultChaseSequence = ChaseSequence{
	Bounce:         false,
	NumPins:        mcp23s17.NumPins,
	PeakRadius:     2,
	Threshold:      0.5,
	SleepTime:      50 * time.Millisecond,
	PeakTravelTime: 1600 * time.Millisecond,
}

// ChaseSequence is a running light: a brightness peak travels around the pins,
// every pin close enough to the peak is High.
type ChaseSequence struct {
	Bounce         bool
	NumPins        int
	PeakRadius     int           // Number of pins around the peak with a brightness above zero
	Threshold      float64       // Minimum brightness (0..1) for a High pin
	SleepTime      time.Duration // Time resolution for pin updates
	PeakTravelTime time.Duration // Time for the peak to travel all pins
}

func (s *ChaseSequence) Run(numRounds int, callback func(sleepTime time.Duration, levels []gpio.Level) error) error {
	if s.SleepTime <= 0 || s.PeakTravelTime < s.SleepTime {
		return errors.New("Chase sequence needs a sleep time shorter than the peak travel time")
	}
	if s.NumPins <= 0 || s.NumPins > mcp23s17.NumPins {
		return fmt.Errorf("Chase sequence needs 1..%v pins, not %v", mcp23s17.NumPins, s.NumPins)
	}
	stepsPerRound := float64(s.PeakTravelTime / s.SleepTime)
	timeStep := float64(s.NumPins) / stepsPerRound

	values := make([]float64, s.NumPins)
	levels := make([]gpio.Level, s.NumPins)
	numSteps := stepsPerRound * float64(numRounds)
	for i := float64(0); i < numSteps; i++ {
		s.setValues(timeStep, i, values)
		for pin, val := range values {
			levels[pin] = val > 0 && val >= s.Threshold
		}
		if err := callback(s.SleepTime, levels); err != nil {
			return fmt.Errorf("Error during chase sequence, step %v of %v: %v", i, numSteps, err)
		}
	}
	return nil
}

func (s *ChaseSequence) setValues(timeStep float64, x float64, values []float64) {
	if s.Bounce {
		max := 3.2 * float64(len(values))
		x = x - math.Floor(x/max)*max
		if x > max/2 {
			x = max - x
		}
	}

	t := x * timeStep
	max := float64(len(values))
	mid := t - math.Floor(t/max)*max

	for i := range values {
		x := float64(i) - mid

		// Distance wrapping around 0 and max
		x2 := max - mid + float64(i)
		if x < 0 && x2 < math.Abs(x) {
			x = -x2
		}
		x3 := max - float64(i) + mid
		if x3 < x {
			x = -x3
		}

		if math.Abs(x) > float64(s.PeakRadius) {
			values[i] = 0
		} else {
			v := math.Cos(x / float64(s.PeakRadius) * math.Pi)
			values[i] = (v + 1) / 2 // Map to 0..1
		}
	}
}
