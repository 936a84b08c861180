package expander

import (
	"errors"
	"fmt"

	"github.com/antongulenko/golib"
	"github.com/antongulenko/hid"
	"github.com/antongulenko/mcp23s17/ft260"
	"github.com/antongulenko/mcp23s17/mcp23s17"
	"github.com/antongulenko/mcp23s17/spibb"
	log "github.com/sirupsen/logrus"
)

func (e *Expander) openFt260() (mcp23s17.Transport, error) {
	// Prepare Usb HID library, open FT260 device
	if err := hid.Init(); err != nil {
		return nil, err
	}
	usb, err := ft260.OpenPath(e.UsbDevice)
	if err != nil {
		golib.Printerr(hidShutdown())
		return nil, err
	}
	e.usb = usb

	// Configure and validate system settings
	if err := validateFt260ChipCode(usb); err != nil {
		return nil, err
	}
	if err := configureFt260(usb); err != nil {
		return nil, err
	}
	if err := validateFt260(usb); err != nil {
		return nil, err
	}

	lines := ft260.DefaultSpiLines
	lines.Dev = usb
	log.Printf("Initializing SPI lines on FT260: SCK %v, MOSI %v, MISO %v, CS %v",
		lines.ClockLine, lines.MosiLine, lines.MisoLine, lines.SelectLine)
	if err := lines.Init(); err != nil {
		return nil, err
	}
	return &spibb.Master{
		Lines:      &lines,
		HalfPeriod: e.HalfPeriod,
	}, nil
}

func validateFt260ChipCode(usb ft260.ReportDevice) error {
	var code ft260.ReportChipCode
	if err := usb.Read(&code); err != nil {
		return err
	}
	if code.ChipCode != ft260.FT260_CHIP_CODE {
		return fmt.Errorf("Unexpected chip code %04x (expected %04x)", code.ChipCode, ft260.FT260_CHIP_CODE)
	}
	return nil
}

func configureFt260(usb ft260.ReportDevice) (err error) {
	writeConfigValue(usb, &err, ft260.SetSystemSetting_Clock, ft260.Clock48MHz)
	writeConfigValue(usb, &err, ft260.SetSystemSetting_GPIO_2, ft260.GPIO_2_Normal) // SCK
	writeConfigValue(usb, &err, ft260.SetSystemSetting_EnableWakeupInt, false)      // MOSI on GPIO3
	writeConfigValue(usb, &err, ft260.SetSystemSetting_EnableUartDcdRi, false)      // CS and MISO on GPIO4 and GPIO5
	return
}

func writeConfigValue(usb ft260.ReportDevice, outErr *error, address byte, val interface{}) {
	if *outErr == nil {
		*outErr = usb.Write(&ft260.SetSystemStatus{
			Request: address,
			Value:   val,
		})
	}
}

func validateFt260(usb ft260.ReportDevice) error {
	var status ft260.ReportSystemStatus
	if err := usb.Read(&status); err != nil {
		return err
	}
	if status.Clock != ft260.Clock48MHz {
		return fmt.Errorf("FT260: unexpected clock value %02x (expected %02x)", status.Clock, ft260.Clock48MHz)
	}
	if status.GPIO2Function != ft260.GPIO_2_Normal {
		return fmt.Errorf("FT260: unexpected GPIO 2 function %02x (expected %02x)", status.GPIO2Function, ft260.GPIO_2_Normal)
	}
	if status.EnableWakeupInt {
		return fmt.Errorf("FT260: unexpected wakeup/interrupt setting %v (expected %v)", status.EnableWakeupInt, false)
	}
	if status.Suspended {
		return errors.New("FT260: device is suspended")
	}
	if !status.PowerStatus {
		return errors.New("FT260: device is powered off")
	}
	return nil
}
