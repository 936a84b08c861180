package main

import (
	"flag"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/antongulenko/golib"
	"github.com/antongulenko/mcp23s17/expander"
	"github.com/antongulenko/mcp23s17/mcp23s17"
	log "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/gpio"
)

type commandFunc func() error

var (
	e         = expander.DefaultExpander
	chase     = expander.DefaultChaseSequence
	benchTime = 3 * time.Second
	benchPin  = uint(0)
	rounds    = 0
	command   = "cache"
	commands  = map[string]commandFunc{
		"none":  func() error { return nil },
		"mode":  setMode,
		"write": write,
		"read":  read,
		"chase": runChase,
		"bench": bench,
		"cache": printCache,
	}
	modes = map[string]mcp23s17.Mode{
		"output": mcp23s17.Output,
		"input":  mcp23s17.Input,
		"pullup": mcp23s17.InputPullup,
	}
)

func main() {
	e.RegisterFlags()
	flag.StringVar(&command, "c", command, fmt.Sprintf("Command to execute, one of: %v", commandNames()))
	flag.DurationVar(&benchTime, "benchTime", benchTime, "Benchmark time (bench command)")
	flag.UintVar(&benchPin, "benchPin", benchPin, "Output pin toggled by the bench command")
	flag.IntVar(&rounds, "rounds", rounds, "Number of rounds for the chase command (0: forever)")
	flag.IntVar(&chase.NumPins, "chasePins", chase.NumPins, "Number of pins used by the chase command, starting at pin 0")
	flag.DurationVar(&chase.PeakTravelTime, "chaseTime", chase.PeakTravelTime, "Time for one round of the chase command")
	golib.RegisterLogFlags()
	flag.Parse()
	golib.ConfigureLogging()
	golib.Checkerr(doMain())
}

func doMain() error {
	fn, ok := commands[command]
	if !ok {
		return fmt.Errorf("Unknown command %v, available commands: %v", command, commandNames())
	}
	defer e.Cleanup()
	if err := e.Setup(); err != nil {
		return err
	}
	return fn()
}

func commandNames() []string {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func parsePin(str string) (uint8, error) {
	pin, err := strconv.ParseUint(str, 10, 8)
	if err != nil {
		return 0, fmt.Errorf("Failed to parse pin '%v': %v", str, err)
	}
	if pin >= mcp23s17.NumPins {
		return 0, fmt.Errorf("Pin %v out of range (0..%v)", pin, mcp23s17.NumPins-1)
	}
	return uint8(pin), nil
}

func setMode() error {
	args := flag.Args()
	if len(args) != 2 {
		return fmt.Errorf("Usage: -c mode <pin> <output|input|pullup>")
	}
	pin, err := parsePin(args[0])
	if err != nil {
		return err
	}
	mode, ok := modes[args[1]]
	if !ok {
		return fmt.Errorf("Unknown pin mode '%v'", args[1])
	}
	log.Printf("Setting pin %v to %v", pin, mode)
	return e.PinMode(pin, mode)
}

// write configures the pin as output before setting it, since a fresh chip has all pins as inputs.
func write() error {
	args := flag.Args()
	if len(args) != 2 {
		return fmt.Errorf("Usage: -c write <pin> <0|1>")
	}
	pin, err := parsePin(args[0])
	if err != nil {
		return err
	}
	value, err := strconv.ParseBool(args[1])
	if err != nil {
		return fmt.Errorf("Failed to parse level '%v': %v", args[1], err)
	}
	if err := e.PinMode(pin, mcp23s17.Output); err != nil {
		return err
	}
	log.Printf("Writing %v to pin %v", gpio.Level(value), pin)
	return e.DigitalWrite(pin, gpio.Level(value))
}

func read() error {
	args := flag.Args()
	if len(args) == 0 {
		return fmt.Errorf("Usage: -c read <pin>...")
	}
	for _, arg := range args {
		pin, err := parsePin(arg)
		if err != nil {
			return err
		}
		if err := e.PinMode(pin, mcp23s17.Input); err != nil {
			return err
		}
		level, err := e.DigitalRead(pin)
		if err != nil {
			return err
		}
		log.Printf("Pin %v: %v", pin, level)
	}
	return nil
}

func runChase() error {
	for pin := 0; pin < chase.NumPins; pin++ {
		if err := e.PinMode(uint8(pin), mcp23s17.Output); err != nil {
			return err
		}
	}
	numRounds := rounds
	if numRounds <= 0 {
		numRounds = math.MaxInt32
	}
	log.Printf("Running chase sequence on %v pins", chase.NumPins)
	return chase.Run(numRounds, func(sleepTime time.Duration, levels []gpio.Level) error {
		for pin, level := range levels {
			if err := e.DigitalWrite(uint8(pin), level); err != nil {
				return err
			}
		}
		time.Sleep(sleepTime)
		return nil
	})
}

// bench toggles one output pin as fast as possible. Every toggle is one 3 byte frame.
func bench() error {
	if benchPin >= mcp23s17.NumPins {
		return fmt.Errorf("Pin %v out of range (0..%v)", benchPin, mcp23s17.NumPins-1)
	}
	pin := uint8(benchPin)
	if err := e.PinMode(pin, mcp23s17.Output); err != nil {
		return err
	}
	log.Printf("Measuring writes to pin %v for %v...", pin, benchTime)
	start := time.Now()
	level := gpio.Low
	frames := 0
	for i := 0; ; i++ {
		level = !level
		if err := e.DigitalWrite(pin, level); err != nil {
			return err
		}
		frames++
		if i%20 == 0 {
			if duration := time.Now().Sub(start); duration > benchTime {
				log.Println(benchResult(frames, duration))
				break
			}
		}
	}
	return nil
}

func benchResult(frames int, duration time.Duration) string {
	transmitted := frames * mcp23s17.FrameLen
	bps := float64(transmitted) * 8 / duration.Seconds()
	return fmt.Sprintf("Transmitted %v frames (%v byte) in %v -> %.0f bps, %.1f writes/s",
		frames, transmitted, duration, bps, float64(frames)/duration.Seconds())
}

func printCache() error {
	cache, err := e.Cache()
	if err != nil {
		return err
	}
	for reg := mcp23s17.Register(0); int(reg) < mcp23s17.NumRegisters; reg++ {
		log.Printf("%-9v (%#02x): %#02x", reg, cache.AddressOf(reg), cache.Get(reg))
	}
	if chip := e.Dummy(); chip != nil {
		for _, frame := range chip.Frames() {
			log.Debugln("Frame:", frame)
		}
	}
	return nil
}
