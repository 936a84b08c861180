// Package sim emulates the SPI side of a MCP23S17, so the driver can run without hardware.
//
// A Chip is a mcp23s17.Transport: every byte passed to Transfer is clocked into the
// emulated chip, and the returned byte is what the chip shifts out at the same time.
// Like the real device, the value of a register is only available one byte after its
// address was received.
package sim

import (
	"errors"
	"fmt"
	"sync"

	"github.com/antongulenko/mcp23s17/mcp23s17"
	log "github.com/sirupsen/logrus"
)

// Frame is one completed chip select cycle.
type Frame struct {
	Opcode   byte
	Register mcp23s17.Register
	Sent     []byte // All bytes, including opcode and register address
	Received []byte
	Ignored  bool // The opcode did not address this chip
}

func (f Frame) Transaction() mcp23s17.Transaction {
	return mcp23s17.Transaction(f.Opcode & 0x01)
}

func (f Frame) String() string {
	return fmt.Sprintf("%v %v: sent % x, received % x", f.Transaction(), f.Register, f.Sent, f.Received)
}

type Chip struct {
	// Value of the A2..A0 pins. Only compared when IOCON.HAEN is set, as on the real chip.
	Address mcp23s17.HardwareAddress

	lock      sync.Mutex
	regs      mcp23s17.RegisterCache
	inputs    [2]byte
	begun     int
	selects   int
	selected  bool
	transfers int
	current   Frame
	pointer   byte
	frames    []Frame
}

func NewChip(addr mcp23s17.HardwareAddress) *Chip {
	return &Chip{
		Address: addr,
		regs:    mcp23s17.NewRegisterCache(),
	}
}

func (c *Chip) Begin() error {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.begun++
	return nil
}

func (c *Chip) Select() error {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.selected {
		return errors.New("sim: chip is already selected")
	}
	c.selected = true
	c.selects++
	c.current = Frame{}
	return nil
}

func (c *Chip) Transfer(b byte) (byte, error) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if !c.selected {
		return 0, errors.New("sim: transfer without chip select")
	}
	c.transfers++
	reply := c.clock(b)
	c.current.Sent = append(c.current.Sent, b)
	c.current.Received = append(c.current.Received, reply)
	return reply, nil
}

func (c *Chip) Release() error {
	c.lock.Lock()
	defer c.lock.Unlock()
	if !c.selected {
		return errors.New("sim: chip is not selected")
	}
	c.selected = false
	if len(c.current.Sent) > 0 {
		log.Debugf("sim %v: %v", c.Address, c.current)
		c.frames = append(c.frames, c.current)
	}
	return nil
}

// clock processes one received byte and returns the byte shifted out at the same time.
func (c *Chip) clock(b byte) byte {
	pos := len(c.current.Sent)
	switch {
	case pos == 0:
		c.current.Opcode = b
		c.current.Ignored = !c.addressed(b)
		return 0
	case c.current.Ignored:
		return 0
	case pos == 1:
		c.current.Register = mcp23s17.Register(b)
		c.pointer = b
		return 0
	}

	// Data bytes. With IOCON.SEQOP cleared the address pointer advances after each byte.
	reg := mcp23s17.Register(c.pointer)
	var reply byte
	if c.current.Transaction() == mcp23s17.Read {
		reply = c.readRegister(reg)
	} else {
		c.writeRegister(reg, b)
	}
	if c.regs.Get(mcp23s17.IOCONA)&mcp23s17.IOCON_BIT_SEQOP == 0 {
		c.pointer = (c.pointer + 1) % byte(mcp23s17.NumRegisters)
	}
	return reply
}

func (c *Chip) addressed(opcode byte) bool {
	if opcode&0xF0 != mcp23s17.OPCODE_BASE {
		return false
	}
	if c.regs.Get(mcp23s17.IOCONA)&mcp23s17.IOCON_BIT_HAEN == 0 {
		return true
	}
	return mcp23s17.HardwareAddress((opcode>>1)&0x07) == c.Address
}

func (c *Chip) readRegister(reg mcp23s17.Register) byte {
	if int(reg) >= mcp23s17.NumRegisters {
		return 0
	}
	switch reg {
	case mcp23s17.GPIOA, mcp23s17.GPIOB:
		port := reg - mcp23s17.GPIOA
		return c.portLevels(port)
	}
	return c.regs.Get(reg)
}

func (c *Chip) writeRegister(reg mcp23s17.Register, val byte) {
	switch reg {
	case mcp23s17.GPIOA, mcp23s17.GPIOB:
		// Writing GPIO modifies the output latch
		c.regs.Set(reg, val)
		c.regs.Set(mcp23s17.OLATA+(reg-mcp23s17.GPIOA), val)
	case mcp23s17.OLATA, mcp23s17.OLATB:
		c.regs.Set(reg, val)
		c.regs.Set(mcp23s17.GPIOA+(reg-mcp23s17.OLATA), val)
	case mcp23s17.IOCONA, mcp23s17.IOCONB:
		c.regs.Set(mcp23s17.IOCONA, val)
		c.regs.Set(mcp23s17.IOCONB, val)
	case mcp23s17.INTFA, mcp23s17.INTFB, mcp23s17.INTCAPA, mcp23s17.INTCAPB:
		// Read-only
	default:
		if int(reg) < mcp23s17.NumRegisters {
			c.regs.Set(reg, val)
		}
	}
}

// portLevels combines the external levels of input pins with the latch of output pins.
func (c *Chip) portLevels(port mcp23s17.Register) byte {
	dir := c.regs.Get(mcp23s17.IODIRA + port)
	inputs := c.inputs[port] ^ c.regs.Get(mcp23s17.IPOLA+port)
	olat := c.regs.Get(mcp23s17.OLATA + port)
	return inputs&dir | olat&^dir
}

// SetInputs sets the levels applied externally to the pins of a port (0: A, 1: B).
func (c *Chip) SetInputs(port int, levels byte) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.inputs[port] = levels
}

// Register returns the current content of a register inside the emulated chip.
func (c *Chip) Register(reg mcp23s17.Register) byte {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.regs.Get(reg)
}

// Outputs returns the levels driven on the pins of a port configured as outputs.
func (c *Chip) Outputs(port int) byte {
	c.lock.Lock()
	defer c.lock.Unlock()
	p := mcp23s17.Register(port)
	return c.regs.Get(mcp23s17.OLATA+p) &^ c.regs.Get(mcp23s17.IODIRA+p)
}

func (c *Chip) Frames() []Frame {
	c.lock.Lock()
	defer c.lock.Unlock()
	return append([]Frame(nil), c.frames...)
}

func (c *Chip) ClearFrames() {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.frames = nil
	c.transfers = 0
}

// Transfers returns the number of exchanged bytes since the last ClearFrames.
func (c *Chip) Transfers() int {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.transfers
}

func (c *Chip) Selects() int {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.selects
}

func (c *Chip) Begun() int {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.begun
}

func (c *Chip) Selected() bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.selected
}

func (c *Chip) String() string {
	return fmt.Sprintf("simulated MCP23S17 (address %v)", c.Address)
}
