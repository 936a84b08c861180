// Package ft260 talks to the FTDI FT260 USB HID bridge.
// Only system configuration and the GPIO lines are used: the FT260 has no SPI engine,
// so SPI devices are connected to its GPIO pins and driven through package spibb.
package ft260

import (
	"errors"
	"fmt"

	"github.com/antongulenko/hid"
	log "github.com/sirupsen/logrus"
)

const (
	FTDIVendorId   = 0x0403
	FT260ProductId = 0x6030
)

type Ft260Driver struct {
	Vendor  uint16
	Product uint16
	Path    string // Optional USB path, if multiple devices are connected
}

func (d *Ft260Driver) Open() (*Ft260, error) {
	vendor, product := d.Vendor, d.Product
	if vendor == 0 {
		vendor = FTDIVendorId
	}
	if product == 0 {
		product = FT260ProductId
	}
	devices := hid.Enumerate(vendor, product)
	if d.Path != "" {
		var matching []hid.DeviceInfo
		for _, info := range devices {
			if info.Path == d.Path {
				matching = append(matching, info)
			}
		}
		devices = matching
	}
	if len(devices) == 0 {
		return nil, fmt.Errorf("No USB HID device found with vendorID=%04x productID=%04x path=%q", vendor, product, d.Path)
	}
	if len(devices) > 1 {
		log.Warnf("Multiple devices connected with vendorID=%04x productID=%04x, using first", vendor, product)
	}
	info := devices[0]
	log.Printf("Opening USB HID device %v (USB %v): %v (%04x) from %v (%04x), Release %v",
		info.Path, info.Interface, info.Product, info.ProductID, info.Manufacturer, info.VendorID, info.Release)
	dev, err := info.Open()
	if err != nil {
		return nil, err
	}
	return &Ft260{
		Device: dev,
	}, nil
}

func Open() (*Ft260, error) {
	return (&Ft260Driver{}).Open()
}

func OpenPath(path string) (*Ft260, error) {
	return (&Ft260Driver{Path: path}).Open()
}

type Ft260 struct {
	*hid.Device
}

// ReportIn is a report received from the device. Unmarshall receives the payload without the report ID.
type ReportIn interface {
	Unmarshall(payload []byte) error
	ReportID() byte
	ReportLen() int
}

// ReportOut is a report sent to the device. Marshall fills the payload without the report ID.
type ReportOut interface {
	Marshall(payload []byte) error
	ReportID() byte
	ReportLen() int
}

// ReportDevice is implemented by *Ft260
type ReportDevice interface {
	Write(input interface{}) error
	Read(report ReportIn) error
}

func (f *Ft260) Write(input interface{}) error {
	var data []byte
	switch v := input.(type) {
	case []byte:
		data = v
	case ReportOut:
		var err error
		if data, err = MarshallReport(v); err != nil {
			return err
		}
	default:
		return fmt.Errorf("Unexpected type for writing to FT260: %T", input)
	}
	n, err := f.Device.Write(data)
	if err == nil && n != len(data) {
		err = fmt.Errorf("ft260: wrong write len (%v instead of %v)", n, len(data))
	}
	return err
}

func (f *Ft260) Read(report ReportIn) error {
	data := make([]byte, report.ReportLen()+1)
	data[0] = report.ReportID()
	n, err := f.Device.Read(data)
	if err == nil && n != len(data) {
		err = fmt.Errorf("ft260: wrong read len (%v instead of %v)", n, len(data))
	}
	if err != nil {
		return err
	}
	return UnmarshallReport(report, data)
}

func MarshallReport(report ReportOut) ([]byte, error) {
	data := make([]byte, report.ReportLen()+1)
	data[0] = report.ReportID()
	if err := report.Marshall(data[1:]); err != nil {
		return nil, err
	}
	return data, nil
}

func UnmarshallReport(report ReportIn, data []byte) error {
	if len(data) != report.ReportLen()+1 {
		return fmt.Errorf("ft260: report %02x has %v byte (expected %v)", report.ReportID(), len(data), report.ReportLen()+1)
	}
	if data[0] != report.ReportID() {
		return fmt.Errorf("Unexpected report id (expected %v, received %v)", report.ReportID(), data[0])
	}
	return report.Unmarshall(data[1:])
}

func _readBool(b []byte, index int, e *error) bool {
	if *e == nil {
		val := b[index]
		if val == 0 {
			return false
		} else if val == 1 {
			return true
		} else {
			*e = fmt.Errorf("Expected 0 or 1 for byte at index %v, but got %02x", index, val)
		}
	}
	return false
}

var errNotImplemented = errors.New("ft260: not implemented")
