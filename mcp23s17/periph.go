package mcp23s17

import (
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
)

// Maximum SCK frequency of the MCP23S17
const DefaultFrequency = 10 * physic.MegaHertz

// PeriphTransport implements Transport on a periph.io SPI port. The chip select line
// is driven as a separate GPIO, because the kernel chip select would be toggled
// around every single byte.
type PeriphTransport struct {
	Port      spi.Port
	CS        gpio.PinOut
	Frequency physic.Frequency // DefaultFrequency if zero

	conn spi.Conn
	buf  [2][1]byte
}

func (p *PeriphTransport) Begin() error {
	if p.Port == nil || p.CS == nil {
		return errors.New("mcp23s17: SPI port and chip select pin are required")
	}
	freq := p.Frequency
	if freq == 0 {
		freq = DefaultFrequency
	}
	log.Printf("Connecting to SPI port %v at %v (chip select %v)...", p.Port, freq, p.CS)
	conn, err := p.Port.Connect(freq, spi.Mode0|spi.NoCS, 8)
	if err != nil {
		return err
	}
	p.conn = conn
	return p.CS.Out(gpio.High)
}

func (p *PeriphTransport) Select() error {
	return p.CS.Out(gpio.Low)
}

func (p *PeriphTransport) Transfer(b byte) (byte, error) {
	if p.conn == nil {
		return 0, errors.New("mcp23s17: SPI port not connected")
	}
	w, r := p.buf[0][:], p.buf[1][:]
	w[0] = b
	if err := p.conn.Tx(w, r); err != nil {
		return 0, err
	}
	return r[0], nil
}

func (p *PeriphTransport) Release() error {
	return p.CS.Out(gpio.High)
}

// Close halts the chip select pin and closes the port, if it can be closed.
func (p *PeriphTransport) Close() error {
	var err error
	if p.CS != nil {
		err = p.CS.Halt()
	}
	if closer, ok := p.Port.(spi.PortCloser); ok {
		if closeErr := closer.Close(); err == nil {
			err = closeErr
		}
	}
	return err
}

func (p *PeriphTransport) String() string {
	return fmt.Sprintf("SPI %v (CS %v)", p.Port, p.CS)
}
