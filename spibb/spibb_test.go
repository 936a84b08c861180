package spibb

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"periph.io/x/conn/v3/gpio"
)

// shiftRegister is a mode 0 slave: it samples MOSI on the rising edge and shifts
// out its next bit on the falling edge. The reply for the next byte is the
// inverse of the last received byte.
type shiftRegister struct {
	cs, clk, mosi gpio.Level
	in, out       byte
	bits          int
	received      []byte
	csChanges     int
	failMISO      bool
}

func (s *shiftRegister) SetClock(l gpio.Level) error {
	if !s.cs && l != s.clk {
		if l {
			s.in <<= 1
			if s.mosi {
				s.in |= 1
			}
		} else {
			s.bits++
			if s.bits == 8 {
				s.received = append(s.received, s.in)
				s.out = ^s.in
				s.bits = 0
			}
		}
	}
	s.clk = l
	return nil
}

func (s *shiftRegister) SetMOSI(l gpio.Level) error {
	s.mosi = l
	return nil
}

func (s *shiftRegister) SetCS(l gpio.Level) error {
	if l != s.cs {
		s.csChanges++
	}
	s.cs = l
	return nil
}

func (s *shiftRegister) MISO() (gpio.Level, error) {
	if s.failMISO {
		return gpio.Low, errors.New("line broken")
	}
	return s.out&(0x80>>uint(s.bits)) != 0, nil
}

func TestMasterTransfer(t *testing.T) {
	a := assert.New(t)
	lines := &shiftRegister{cs: gpio.Low, clk: gpio.High, out: 0xA5}
	m := &Master{Lines: lines}

	a.NoError(m.Begin())
	a.Equal(gpio.High, lines.cs)
	a.Equal(gpio.Low, lines.clk)

	a.NoError(m.Select())
	b, err := m.Transfer(0x3C)
	a.NoError(err)
	a.Equal(byte(0xA5), b)
	b, err = m.Transfer(0x81)
	a.NoError(err)
	a.Equal(byte(0xC3), b)
	a.NoError(m.Release())

	a.Equal([]byte{0x3C, 0x81}, lines.received)
	a.Equal(gpio.Low, lines.clk, "clock must idle low")
	a.Equal(gpio.High, lines.cs)
	a.Equal(3, lines.csChanges)
}

func TestMasterErrors(t *testing.T) {
	a := assert.New(t)
	a.Error(new(Master).Begin())

	lines := &shiftRegister{failMISO: true}
	m := &Master{Lines: lines}
	a.NoError(m.Begin())
	a.NoError(m.Select())
	_, err := m.Transfer(0x00)
	a.Error(err)
}
