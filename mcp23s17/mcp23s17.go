// Package mcp23s17 drives the Microchip MCP23S17 16 bit SPI I/O expander pin by pin.
//
// All register values written by the driver are kept in a RegisterCache, so that
// redundant writes never reach the bus. The cache is never refreshed from the chip:
// the driver must be the only writer of the device registers.
//
// Dev does no locking. Concurrent callers must serialize access to a Dev and to the
// SPI bus it uses.
package mcp23s17

import (
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/gpio"
)

// Mode is the configuration of a single pin
type Mode byte

const (
	Output = Mode(iota)
	Input
	InputPullup
)

func (m Mode) String() string {
	switch m {
	case Output:
		return "output"
	case Input:
		return "input"
	case InputPullup:
		return "input-pullup"
	default:
		return fmt.Sprintf("Mode(%d)", byte(m))
	}
}

type Dev struct {
	t     Transport
	addr  HardwareAddress
	cache RegisterCache
}

// New initializes the transport and returns a device handle, assuming the chip
// is in its power-on-reset state.
func New(t Transport, addr HardwareAddress) (*Dev, error) {
	if addr > MaxHardwareAddress {
		return nil, fmt.Errorf("mcp23s17: invalid hardware address %v (must be 0..%v)", addr, MaxHardwareAddress)
	}
	if t == nil {
		return nil, errors.New("mcp23s17: missing transport")
	}
	if err := t.Begin(); err != nil {
		return nil, fmt.Errorf("mcp23s17: failed to initialize transport: %w", err)
	}
	return &Dev{
		t:     t,
		addr:  addr,
		cache: NewRegisterCache(),
	}, nil
}

func (d *Dev) Address() HardwareAddress {
	return d.addr
}

// Cache returns a copy of the register values last written by the driver.
func (d *Dev) Cache() RegisterCache {
	return d.cache
}

func (d *Dev) String() string {
	return fmt.Sprintf("mcp23s17.Dev{addr=%d}", d.addr)
}

// PinMode configures the direction and pull-up of the given pin (0..15).
// The direction register is only written when its value changes. The pull-up
// register is written for every input mode, even if unchanged.
func (d *Dev) PinMode(pin uint8, mode Mode) error {
	dirReg := directionRegister(pin)
	pullReg := pullupRegister(pin)
	mask := bitMask(pin)

	dir := d.cache.Get(dirReg)
	pull := d.cache.Get(pullReg)
	switch mode {
	case Output:
		dir &^= mask
	case Input:
		dir |= mask
		pull &^= mask
	case InputPullup:
		dir |= mask
		pull |= mask
	default:
		return fmt.Errorf("mcp23s17: unknown pin mode %v", mode)
	}

	if dir != d.cache.Get(dirReg) {
		if err := d.writeRegister(dirReg, dir); err != nil {
			return err
		}
	}
	if mode == Output {
		d.cache.Set(pullReg, pull)
		return nil
	}
	return d.writeRegister(pullReg, pull)
}

// DigitalWrite sets the output latch of the given pin. Pins configured as input
// are left untouched, and nothing is sent if the latch already holds the value.
func (d *Dev) DigitalWrite(pin uint8, level gpio.Level) error {
	mask := bitMask(pin)
	if d.cache.Get(directionRegister(pin))&mask != 0 {
		return nil
	}

	latchReg := latchRegister(pin)
	latch := d.cache.Get(latchReg)
	if level {
		latch |= mask
	} else {
		latch &^= mask
	}
	if latch == d.cache.Get(latchReg) {
		return nil
	}
	return d.writeRegister(latchReg, latch)
}

// DigitalRead returns the level of the given input pin. Pins configured as output
// always read as Low without any bus access.
func (d *Dev) DigitalRead(pin uint8) (gpio.Level, error) {
	mask := bitMask(pin)
	if d.cache.Get(directionRegister(pin))&mask == 0 {
		return gpio.Low, nil
	}
	val, err := d.readRegister(latchRegister(pin))
	if err != nil {
		return gpio.Low, err
	}
	return val&mask != 0, nil
}

// EnableHardwareAddressing sets IOCON.HAEN, so the chip only answers to opcodes
// carrying its own A2..A0 address. Needed when several chips share a chip select line.
func (d *Dev) EnableHardwareAddressing() error {
	iocon := d.cache.Get(IOCONA) | IOCON_BIT_HAEN
	if iocon == d.cache.Get(IOCONA) {
		return nil
	}
	if err := d.writeRegister(IOCONA, iocon); err != nil {
		return err
	}
	// Both addresses map to the same register
	d.cache.Set(IOCONB, iocon)
	return nil
}

// writeRegister sends the value and updates the cache once the frame went through.
func (d *Dev) writeRegister(reg Register, val byte) error {
	frame := EncodeWrite(d.addr, d.cache.AddressOf(reg), val)
	log.Debugf("mcp23s17 %v: writing %v = %#02x (frame % x)", d.addr, reg, val, frame)
	if _, err := exchange(d.t, frame); err != nil {
		return fmt.Errorf("mcp23s17: failed to write %v: %w", reg, err)
	}
	d.cache.Set(reg, val)
	return nil
}

func (d *Dev) readRegister(reg Register) (byte, error) {
	frame := EncodeRead(d.addr, d.cache.AddressOf(reg))
	received, err := exchange(d.t, frame)
	if err != nil {
		return 0, fmt.Errorf("mcp23s17: failed to read %v: %w", reg, err)
	}
	val := DecodeRead(received)
	log.Debugf("mcp23s17 %v: read %v = %#02x (received % x)", d.addr, reg, val, received)
	return val, nil
}
