// Package spibb is a bit-bang implementation of a SPI master, hardcoded to mode 0
// (clock idle low, data sampled on the rising edge) and MSB first.
//
// It is used for SPI devices connected to plain GPIO lines, e.g. on a FT260 USB bridge,
// which has no SPI engine of its own.
package spibb

import (
	"errors"
	"time"

	"periph.io/x/conn/v3/gpio"
)

// Lines gives access to the four SPI signals.
type Lines interface {
	SetClock(l gpio.Level) error
	SetMOSI(l gpio.Level) error
	SetCS(l gpio.Level) error
	MISO() (gpio.Level, error)
}

type Master struct {
	Lines Lines

	// Time to wait after each clock edge. Slow lines (like USB round trips) need none.
	HalfPeriod time.Duration
}

func (m *Master) Begin() (err error) {
	if m.Lines == nil {
		return errors.New("spibb: no lines configured")
	}
	set(&err, m.Lines.SetCS, gpio.High)
	set(&err, m.Lines.SetClock, gpio.Low)
	set(&err, m.Lines.SetMOSI, gpio.Low)
	return
}

func (m *Master) Select() error {
	return m.Lines.SetCS(gpio.Low)
}

func (m *Master) Release() (err error) {
	set(&err, m.Lines.SetClock, gpio.Low)
	set(&err, m.Lines.SetCS, gpio.High)
	return
}

// Transfer clocks out b and returns the byte clocked in at the same time.
func (m *Master) Transfer(b byte) (byte, error) {
	var result byte
	for bit := 7; bit >= 0; bit-- {
		var err error
		set(&err, m.Lines.SetMOSI, b&(1<<uint(bit)) != 0)
		m.wait()
		set(&err, m.Lines.SetClock, gpio.High)
		if err != nil {
			return 0, err
		}
		in, err := m.Lines.MISO()
		if err != nil {
			return 0, err
		}
		if in {
			result |= 1 << uint(bit)
		}
		m.wait()
		if err := m.Lines.SetClock(gpio.Low); err != nil {
			return 0, err
		}
	}
	return result, nil
}

func (m *Master) wait() {
	if m.HalfPeriod > 0 {
		time.Sleep(m.HalfPeriod)
	}
}

func set(outErr *error, setter func(gpio.Level) error, l gpio.Level) {
	if *outErr == nil {
		*outErr = setter(l)
	}
}
