package mcp23s17

import "fmt"

// Default bits all zero, except IODIR

// ============== General IO configuration
// IODIR: 0: output, 1: input
// IPOL: 1: GPIO reflects inverted value of the pin
// GPIO: Reading reads pin values. Writing modifies to OLAT.
// OLAT: Output values ("latches")
// GPPU: 1: enable internal pull-up for input pins (100 kOhm)

// ============== Interrupt configuration
// GPINTEN: 1: enable interrupt-on-change. Pins must also be input.
// DEFVAL: opposite value on input pin will cause interrupt (if INTCON is set)
// INTCON: for interrupt: 0: pins compared to previous value 1: pins compared to DEFVAL
// INTF: (read only) interrupt flags. Cleared when INTCAP or GPIO is read.
// INTCAP: (read only) state of pins when interrupt occurs. Remains unchanged until read (or GPIO is read)

// Register is one of the control registers, numbered by its address with IOCON.BANK cleared (the default).
type Register byte

const (
	IODIRA = Register(iota)
	IODIRB
	IPOLA
	IPOLB
	GPINTENA
	GPINTENB
	DEFVALA
	DEFVALB
	INTCONA
	INTCONB
	IOCONA
	IOCONB // Same physical register as IOCONA
	GPPUA
	GPPUB
	INTFA
	INTFB
	INTCAPA
	INTCAPB
	GPIOA
	GPIOB
	OLATA
	OLATB

	NumRegisters = int(iota)
)

var registerNames = [NumRegisters]string{
	"IODIRA", "IODIRB", "IPOLA", "IPOLB", "GPINTENA", "GPINTENB", "DEFVALA", "DEFVALB",
	"INTCONA", "INTCONB", "IOCONA", "IOCONB", "GPPUA", "GPPUB", "INTFA", "INTFB",
	"INTCAPA", "INTCAPB", "GPIOA", "GPIOB", "OLATA", "OLATB",
}

func (r Register) String() string {
	if int(r) < NumRegisters {
		return registerNames[r]
	}
	return fmt.Sprintf("Register(%#02x)", byte(r))
}

const (
	_                = byte(1 << iota)
	IOCON_BIT_INTPOL // 1: INT pins active-high 0: INT pins active-low
	IOCON_BIT_ODR    // (overrides INTPOL) 1: INT pins are open-drain 0: active output (INTPOL sets polarity)
	IOCON_BIT_HAEN   // Enable hardware address pins (A2..A0 are ignored otherwise)
	IOCON_BIT_DISSLW // 0: slew rate control for SDA output enabled 1: disabled
	IOCON_BIT_SEQOP  // 0: sequential operation enabled 1: disabled (address stays after read/write)
	IOCON_BIT_MIRROR // 0: INT pins not mirrored 1: INT pins mirrored (both high if one is high)
	IOCON_BIT_BANK   // 1: registers grouped in banks 0: registers paired
)

const (
	// Power-on values of the IODIR registers: all pins are inputs
	IODIR_RESET = byte(0xFF)

	NumPins     = 16
	PinsPerPort = 8
)

// RegisterCache mirrors the last value written to every control register.
// It is never refreshed from the device.
type RegisterCache [NumRegisters]byte

// NewRegisterCache returns a cache holding the power-on-reset state of the chip.
func NewRegisterCache() RegisterCache {
	var c RegisterCache
	c[IODIRA] = IODIR_RESET
	c[IODIRB] = IODIR_RESET
	return c
}

func (c RegisterCache) Get(r Register) byte {
	return c[r]
}

func (c *RegisterCache) Set(r Register, val byte) {
	c[r] = val
}

// AddressOf returns the SPI register address. With IOCON.BANK=0 this is the register ordinal.
func (c RegisterCache) AddressOf(r Register) byte {
	return byte(r)
}

// Port offset for the given pin: 0..7 use port A, all other pins use port B
func portOffset(pin uint8) Register {
	if pin < PinsPerPort {
		return 0
	}
	return 1
}

func directionRegister(pin uint8) Register {
	return IODIRA + portOffset(pin)
}

func pullupRegister(pin uint8) Register {
	return GPPUA + portOffset(pin)
}

func latchRegister(pin uint8) Register {
	return GPIOA + portOffset(pin)
}

func bitMask(pin uint8) byte {
	return 1 << (pin % PinsPerPort)
}
