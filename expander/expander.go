// Package expander runs one MCP23S17 on a configurable hardware backend and
// serializes all pin operations through a single goroutine.
package expander

import (
	"flag"
	"fmt"
	"time"

	"github.com/antongulenko/golib"
	"github.com/antongulenko/hid"
	"github.com/antongulenko/mcp23s17/ft260"
	"github.com/antongulenko/mcp23s17/mcp23s17"
	"github.com/antongulenko/mcp23s17/sim"
	log "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

const (
	BackendPeriph = "periph" // SPI port of the host, e.g. a Raspberry Pi
	BackendFt260  = "ft260"  // Bit-banged SPI on the GPIO pins of a FT260 USB bridge
	BackendDummy  = "dummy"  // Emulated chip, no hardware
)

var DefaultExpander = Expander{
	Backend:      BackendPeriph,
	SpiDevice:    "",
	CSPin:        "GPIO8", // CE0 of SPI0 on a Raspberry Pi
	SpiFreq:      mcp23s17.DefaultFrequency,
	Address:      0,
	RequestQueue: 20,
}

type Expander struct {
	Backend string

	SpiDevice string
	CSPin     string
	SpiFreq   physic.Frequency

	UsbDevice  string
	HalfPeriod time.Duration

	Address      uint
	HAEN         bool
	RequestQueue int
	NoSequencer  bool

	dev       *mcp23s17.Dev
	sequencer *pinSequencer
	periph    *mcp23s17.PeriphTransport
	usb       usbDevice
	chip      *sim.Chip
}

// usbDevice is implemented by *ft260.Ft260
type usbDevice interface {
	ft260.ReportDevice
	Close() error
}

var hidShutdown = hid.Shutdown

func (e *Expander) RegisterFlags() {
	flag.StringVar(&e.Backend, "backend", e.Backend, fmt.Sprintf("Hardware backend, one of: %v, %v, %v", BackendPeriph, BackendFt260, BackendDummy))
	flag.StringVar(&e.SpiDevice, "spi", e.SpiDevice, "SPI port name for the periph backend (empty for default)")
	flag.StringVar(&e.CSPin, "cs", e.CSPin, "GPIO pin name driving the chip select line (periph backend)")
	flag.Var(&e.SpiFreq, "freq", "SPI clock frequency (periph backend)")
	flag.StringVar(&e.UsbDevice, "dev", e.UsbDevice, "Specify a USB path for FT260")
	flag.DurationVar(&e.HalfPeriod, "half-period", e.HalfPeriod, "Delay after every SPI clock edge (ft260 backend)")
	flag.UintVar(&e.Address, "addr", e.Address, "Hardware address of the MCP23S17 (A2..A0 pins, 0-7)")
	flag.BoolVar(&e.HAEN, "haen", e.HAEN, "Enable hardware addressing (IOCON.HAEN), needed when multiple chips share the chip select line")
	flag.IntVar(&e.RequestQueue, "queue", e.RequestQueue, "Length of the pin request queue")
	flag.BoolVar(&e.NoSequencer, "no-sequencer", e.NoSequencer, "Disable the extra goroutine for sequencing pin requests")
}

// Setup opens the configured backend and initializes the chip. Everything opened
// so far is closed again if it fails.
func (e *Expander) Setup() error {
	if err := e.setup(); err != nil {
		e.Cleanup()
		return err
	}
	return nil
}

func (e *Expander) setup() error {
	if e.Address > uint(mcp23s17.MaxHardwareAddress) {
		return fmt.Errorf("Invalid hardware address %v (must be 0..%v)", e.Address, mcp23s17.MaxHardwareAddress)
	}
	addr := mcp23s17.HardwareAddress(e.Address)

	var transport mcp23s17.Transport
	var err error
	switch e.Backend {
	case BackendPeriph:
		transport, err = e.openPeriph()
	case BackendFt260:
		transport, err = e.openFt260()
	case BackendDummy:
		log.Println("Dummy expander: emulating the MCP23S17, no hardware is accessed")
		e.chip = sim.NewChip(addr)
		transport = e.chip
	default:
		err = fmt.Errorf("Unknown backend %q, available backends: %v, %v, %v", e.Backend, BackendPeriph, BackendFt260, BackendDummy)
	}
	if err != nil {
		return err
	}

	dev, err := mcp23s17.New(transport, addr)
	if err != nil {
		return err
	}
	if e.HAEN {
		log.Printf("Enabling hardware addressing on %v", dev)
		if err := dev.EnableHardwareAddressing(); err != nil {
			return err
		}
	}
	e.dev = dev
	e.sequencer = &pinSequencer{
		dev:   dev,
		queue: make(chan *PinRequest, e.RequestQueue),
	}
	if !e.NoSequencer {
		go e.sequencer.handlePinRequests()
	}
	log.Printf("Successfully initialized %v (backend %v)", dev, e.Backend)
	return nil
}

func (e *Expander) openPeriph() (mcp23s17.Transport, error) {
	if _, err := host.Init(); err != nil {
		return nil, err
	}
	port, err := spireg.Open(e.SpiDevice)
	if err != nil {
		return nil, err
	}
	cs := gpioreg.ByName(e.CSPin)
	if cs == nil {
		golib.Printerr(port.Close())
		return nil, fmt.Errorf("GPIO pin %v not found", e.CSPin)
	}
	e.periph = &mcp23s17.PeriphTransport{
		Port:      port,
		CS:        cs,
		Frequency: e.SpiFreq,
	}
	return e.periph, nil
}

// Dummy returns the emulated chip of the dummy backend, or nil.
func (e *Expander) Dummy() *sim.Chip {
	return e.chip
}

// ResetOutputs drives all pins configured as output to Low.
func (e *Expander) ResetOutputs() error {
	cache, err := e.Cache()
	if err != nil {
		return err
	}
	for pin := uint8(0); pin < mcp23s17.NumPins; pin++ {
		dir := cache.Get(mcp23s17.IODIRA)
		bit := pin
		if pin >= mcp23s17.PinsPerPort {
			dir = cache.Get(mcp23s17.IODIRB)
			bit -= mcp23s17.PinsPerPort
		}
		if dir&(1<<bit) == 0 {
			if err := e.DigitalWrite(pin, gpio.Low); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *Expander) Cleanup() {
	if e.dev != nil {
		golib.Printerr(e.ResetOutputs())
		if !e.NoSequencer {
			close(e.sequencer.queue)
		}
		e.dev = nil
	}
	if e.periph != nil {
		golib.Printerr(e.periph.Close())
		e.periph = nil
	}
	if e.usb != nil {
		golib.Printerr(e.usb.Close())
		golib.Printerr(hidShutdown())
		e.usb = nil
	}
}
