package ft260

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
)

const (
	ReportID_GPIO = 0xB0 // Feature
)

// ReportID_GPIO Feature In and Out
type ReportGpio struct {
	Value   byte // GPIO 0-5 bits
	Dir     byte // GPIO 0-5 direction bits (1: output)
	ValueEx byte // GPIO A-H bits
	DirEx   byte // GPIO A-H direction bits (1: output)
}

func (r *ReportGpio) ReportID() byte {
	return ReportID_GPIO
}

func (r *ReportGpio) ReportLen() int {
	return 4
}

func (r *ReportGpio) Marshall(b []byte) error {
	b[0] = r.Value
	b[1] = r.Dir
	b[2] = r.ValueEx
	b[3] = r.DirEx
	return nil
}

func (r *ReportGpio) Unmarshall(b []byte) error {
	r.Value = b[0]
	r.Dir = b[1]
	r.ValueEx = b[2]
	r.DirEx = b[3]
	return nil
}

// Line is one GPIO pin of the FT260
type Line struct {
	Extended bool  // GPIO A-H instead of GPIO 0-5
	Bit      uint8 // 0..5 or 0..7 (A..H)
}

var (
	GPIO0 = Line{Bit: 0}
	GPIO1 = Line{Bit: 1}
	GPIO2 = Line{Bit: 2}
	GPIO3 = Line{Bit: 3}
	GPIO4 = Line{Bit: 4}
	GPIO5 = Line{Bit: 5}
	GPIOA = Line{Extended: true, Bit: 0}
	GPIOB = Line{Extended: true, Bit: 1}
	GPIOE = Line{Extended: true, Bit: 4}
	GPIOG = Line{Extended: true, Bit: 6}
	GPIOH = Line{Extended: true, Bit: 7}
)

func (l Line) String() string {
	if l.Extended {
		return fmt.Sprintf("GPIO%c", 'A'+l.Bit)
	}
	return fmt.Sprintf("GPIO%d", l.Bit)
}

func (l Line) mask() byte {
	return 1 << l.Bit
}

func (l Line) level(r *ReportGpio) gpio.Level {
	if l.Extended {
		return r.ValueEx&l.mask() != 0
	}
	return r.Value&l.mask() != 0
}

func (l Line) set(r *ReportGpio, level gpio.Level) {
	val := &r.Value
	if l.Extended {
		val = &r.ValueEx
	}
	if level {
		*val |= l.mask()
	} else {
		*val &^= l.mask()
	}
}

func (l Line) setOutput(r *ReportGpio, output bool) {
	dir := &r.Dir
	if l.Extended {
		dir = &r.DirEx
	}
	if output {
		*dir |= l.mask()
	} else {
		*dir &^= l.mask()
	}
}

// Default wiring of a SPI device to the FT260 GPIO pins. GPIO0 and GPIO1 stay reserved for I2C.
var DefaultSpiLines = SpiLines{
	ClockLine:  GPIO2,
	MosiLine:   GPIO3,
	SelectLine: GPIO4,
	MisoLine:   GPIO5,
}

// SpiLines maps the SPI signals to GPIO lines. It implements spibb.Lines.
// The output state of all lines is cached, so that every level change costs one
// report write, and reading MISO costs one report read.
type SpiLines struct {
	Dev ReportDevice

	ClockLine  Line
	MosiLine   Line
	MisoLine   Line
	SelectLine Line

	state ReportGpio
}

// Init reads the current GPIO state, configures the directions of the four lines
// and releases the chip select.
func (s *SpiLines) Init() error {
	if err := s.Dev.Read(&s.state); err != nil {
		return err
	}
	for _, out := range []Line{s.ClockLine, s.MosiLine, s.SelectLine} {
		out.setOutput(&s.state, true)
	}
	s.MisoLine.setOutput(&s.state, false)
	s.SelectLine.set(&s.state, gpio.High)
	s.ClockLine.set(&s.state, gpio.Low)
	return s.Dev.Write(&s.state)
}

func (s *SpiLines) SetClock(l gpio.Level) error {
	return s.setLine(s.ClockLine, l)
}

func (s *SpiLines) SetMOSI(l gpio.Level) error {
	return s.setLine(s.MosiLine, l)
}

func (s *SpiLines) SetCS(l gpio.Level) error {
	return s.setLine(s.SelectLine, l)
}

func (s *SpiLines) MISO() (gpio.Level, error) {
	var report ReportGpio
	if err := s.Dev.Read(&report); err != nil {
		return gpio.Low, err
	}
	return s.MisoLine.level(&report), nil
}

func (s *SpiLines) setLine(line Line, l gpio.Level) error {
	if line.level(&s.state) == l {
		return nil
	}
	next := s.state
	line.set(&next, l)
	if err := s.Dev.Write(&next); err != nil {
		return err
	}
	s.state = next
	return nil
}
