package mcp23s17

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"periph.io/x/conn/v3/gpio"
)

// recordingTransport records all bytes and chip select changes. Replies are
// returned in order, one per transferred byte.
type recordingTransport struct {
	begun     int
	beginErr  error
	selected  bool
	csChanges []bool // true: selected, false: released
	sent      []byte
	replies   []byte
	failAfter int // Fail the transfer with this (1-based) index, 0: never fail
	failErr   error
}

func (r *recordingTransport) Begin() error {
	r.begun++
	return r.beginErr
}

func (r *recordingTransport) Select() error {
	r.selected = true
	r.csChanges = append(r.csChanges, true)
	return nil
}

func (r *recordingTransport) Transfer(b byte) (byte, error) {
	if !r.selected {
		return 0, errors.New("transfer without chip select")
	}
	r.sent = append(r.sent, b)
	if r.failAfter > 0 && len(r.sent) == r.failAfter {
		return 0, r.failErr
	}
	var reply byte
	if len(r.replies) > 0 {
		reply, r.replies = r.replies[0], r.replies[1:]
	}
	return reply, nil
}

func (r *recordingTransport) Release() error {
	r.selected = false
	r.csChanges = append(r.csChanges, false)
	return nil
}

func (r *recordingTransport) reset() {
	r.csChanges = nil
	r.sent = nil
}

type devSuite struct {
	t *testing.T
	*require.Assertions

	transport *recordingTransport
	dev       *Dev
}

func (s *devSuite) T() *testing.T {
	return s.t
}

func (s *devSuite) SetT(t *testing.T) {
	s.t = t
	s.Assertions = require.New(t)
}

func (s *devSuite) SetupTest() {
	s.transport = new(recordingTransport)
	dev, err := New(s.transport, 0)
	s.NoError(err)
	s.dev = dev
}

func TestDev(t *testing.T) {
	suite.Run(t, new(devSuite))
}

func (s *devSuite) frame(reg Register, val byte) []byte {
	return []byte{Opcode(s.dev.addr, Write), byte(reg), val}
}

// ============== Construction

func (s *devSuite) TestNewBeginsTransport() {
	s.Equal(1, s.transport.begun)
	s.Empty(s.transport.sent, "construction must not touch the bus")
	s.Equal(NewRegisterCache(), s.dev.Cache())
	s.Equal(HardwareAddress(0), s.dev.Address())
	s.Equal("mcp23s17.Dev{addr=0}", s.dev.String())
}

func (s *devSuite) TestNewInvalidAddress() {
	dev, err := New(new(recordingTransport), 8)
	s.Error(err)
	s.Nil(dev)
}

func (s *devSuite) TestNewBeginFails() {
	dev, err := New(&recordingTransport{beginErr: errors.New("no bus")}, 1)
	s.Error(err)
	s.Contains(err.Error(), "no bus")
	s.Nil(dev)
}

func (s *devSuite) TestNewMissingTransport() {
	_, err := New(nil, 0)
	s.Error(err)
}

func (s *devSuite) TestHardwareAddressInOpcode() {
	tr := new(recordingTransport)
	dev, err := New(tr, 6)
	s.NoError(err)
	s.NoError(dev.PinMode(0, Output))
	s.Equal([]byte{0x4C, byte(IODIRA), 0xFE}, tr.sent)

	tr.reset()
	s.NoError(dev.PinMode(1, Input))
	s.Equal([]byte{0x4C, byte(GPPUA), 0x00}, tr.sent)
	tr.reset()
	_, err = dev.DigitalRead(1)
	s.NoError(err)
	s.Equal(byte(0x4D), tr.sent[0])
}

// ============== PinMode

func (s *devSuite) TestPinModeOutputPortA() {
	s.NoError(s.dev.PinMode(3, Output))
	s.Equal(s.frame(IODIRA, 0xF7), s.transport.sent)
	s.Equal([]bool{true, false}, s.transport.csChanges)
	s.Equal(byte(0xF7), s.dev.Cache().Get(IODIRA))
	s.Equal(byte(0xFF), s.dev.Cache().Get(IODIRB))
}

func (s *devSuite) TestPinModeOutputPortB() {
	s.NoError(s.dev.PinMode(11, Output))
	s.Equal(s.frame(IODIRB, 0xF7), s.transport.sent)
	s.Equal(byte(0xFF), s.dev.Cache().Get(IODIRA))
}

func (s *devSuite) TestPinModeOutputTwice() {
	s.NoError(s.dev.PinMode(5, Output))
	s.Len(s.transport.sent, FrameLen)
	s.transport.reset()

	s.NoError(s.dev.PinMode(5, Output))
	s.Empty(s.transport.sent)
	s.Empty(s.transport.csChanges)
}

func (s *devSuite) TestPinModeInputOnDefaultPin() {
	// Direction is already input: only the pull-up register is written
	s.NoError(s.dev.PinMode(2, Input))
	s.Equal(s.frame(GPPUA, 0x00), s.transport.sent)
	s.Equal([]bool{true, false}, s.transport.csChanges)
}

func (s *devSuite) TestPinModeInputAfterOutput() {
	s.NoError(s.dev.PinMode(12, Output))
	s.transport.reset()

	s.NoError(s.dev.PinMode(12, Input))
	expected := append(s.frame(IODIRB, 0xFF), s.frame(GPPUB, 0x00)...)
	s.Equal(expected, s.transport.sent)
	s.Equal([]bool{true, false, true, false}, s.transport.csChanges)
}

func (s *devSuite) TestPinModeInputPullupAlwaysWritesPullup() {
	s.NoError(s.dev.PinMode(6, InputPullup))
	s.Equal(s.frame(GPPUA, 0x40), s.transport.sent)
	s.Equal(byte(0x40), s.dev.Cache().Get(GPPUA))
	s.transport.reset()

	// Nothing changed, but the pull-up register is sent again
	s.NoError(s.dev.PinMode(6, InputPullup))
	s.Equal(s.frame(GPPUA, 0x40), s.transport.sent)
}

func (s *devSuite) TestPinModeInputPullupAfterOutput() {
	s.NoError(s.dev.PinMode(9, Output))
	s.transport.reset()

	s.NoError(s.dev.PinMode(9, InputPullup))
	expected := append(s.frame(IODIRB, 0xFF), s.frame(GPPUB, 0x02)...)
	s.Equal(expected, s.transport.sent)
	s.Equal([]bool{true, false, true, false}, s.transport.csChanges)
}

func (s *devSuite) TestPinModeInputClearsPullup() {
	s.NoError(s.dev.PinMode(0, InputPullup))
	s.NoError(s.dev.PinMode(1, InputPullup))
	s.transport.reset()

	s.NoError(s.dev.PinMode(0, Input))
	s.Equal(s.frame(GPPUA, 0x02), s.transport.sent)
}

func (s *devSuite) TestPinModeOutputKeepsPullup() {
	s.NoError(s.dev.PinMode(4, InputPullup))
	s.transport.reset()

	s.NoError(s.dev.PinMode(4, Output))
	s.Equal(s.frame(IODIRA, 0xEF), s.transport.sent)
	s.Equal(byte(0x10), s.dev.Cache().Get(GPPUA))
}

func (s *devSuite) TestPinModeIsolation() {
	s.NoError(s.dev.PinMode(0, Output))
	s.NoError(s.dev.PinMode(1, Output))
	s.NoError(s.dev.PinMode(8, Output))
	s.Equal(byte(0xFC), s.dev.Cache().Get(IODIRA))
	s.Equal(byte(0xFE), s.dev.Cache().Get(IODIRB))
	s.transport.reset()

	s.NoError(s.dev.PinMode(0, Input))
	s.Equal(byte(0xFD), s.dev.Cache().Get(IODIRA), "pin 1 must remain an output")
	s.Equal(byte(0xFE), s.dev.Cache().Get(IODIRB))
	s.Equal(byte(0xFD), s.transport.sent[2])
}

func (s *devSuite) TestPinModeUnknown() {
	s.Error(s.dev.PinMode(0, Mode(7)))
	s.Empty(s.transport.sent)
}

// ============== DigitalWrite

func (s *devSuite) TestDigitalWriteInputPin() {
	s.NoError(s.dev.DigitalWrite(3, gpio.High))
	s.NoError(s.dev.DigitalWrite(13, gpio.High))
	s.Empty(s.transport.sent)
	s.Empty(s.transport.csChanges)
	s.Equal(byte(0), s.dev.Cache().Get(GPIOA))
}

func (s *devSuite) TestDigitalWritePortA() {
	s.NoError(s.dev.PinMode(2, Output))
	s.transport.reset()

	s.NoError(s.dev.DigitalWrite(2, gpio.High))
	s.Equal(s.frame(GPIOA, 0x04), s.transport.sent)
	s.Equal([]bool{true, false}, s.transport.csChanges)
	s.transport.reset()

	s.NoError(s.dev.DigitalWrite(2, gpio.High))
	s.Empty(s.transport.sent, "unchanged latch must not be sent")
	s.transport.reset()

	s.NoError(s.dev.DigitalWrite(2, gpio.Low))
	s.Equal(s.frame(GPIOA, 0x00), s.transport.sent)
}

func (s *devSuite) TestDigitalWritePortB() {
	s.NoError(s.dev.PinMode(15, Output))
	s.transport.reset()

	s.NoError(s.dev.DigitalWrite(15, gpio.High))
	s.Equal(s.frame(GPIOB, 0x80), s.transport.sent)
	s.Equal(byte(0x80), s.dev.Cache().Get(GPIOB))
	s.Equal(byte(0x00), s.dev.Cache().Get(GPIOA))
}

func (s *devSuite) TestDigitalWriteLowOnFreshPin() {
	s.NoError(s.dev.PinMode(7, Output))
	s.transport.reset()

	s.NoError(s.dev.DigitalWrite(7, gpio.Low))
	s.Empty(s.transport.sent, "latch already low after reset")
}

func (s *devSuite) TestDigitalWriteIsolation() {
	for _, pin := range []uint8{0, 1, 8} {
		s.NoError(s.dev.PinMode(pin, Output))
	}
	s.NoError(s.dev.DigitalWrite(0, gpio.High))
	s.NoError(s.dev.DigitalWrite(8, gpio.High))
	s.transport.reset()

	s.NoError(s.dev.DigitalWrite(1, gpio.High))
	s.Equal(s.frame(GPIOA, 0x03), s.transport.sent)
	s.transport.reset()

	s.NoError(s.dev.DigitalWrite(0, gpio.Low))
	s.Equal(s.frame(GPIOA, 0x02), s.transport.sent)
	s.Equal(byte(0x01), s.dev.Cache().Get(GPIOB))
}

// ============== DigitalRead

func (s *devSuite) TestDigitalReadOutputPin() {
	s.NoError(s.dev.PinMode(4, Output))
	s.transport.reset()
	s.transport.replies = []byte{0xFF, 0xFF, 0xFF}

	level, err := s.dev.DigitalRead(4)
	s.NoError(err)
	s.Equal(gpio.Low, level)
	s.Empty(s.transport.sent)
	s.Empty(s.transport.csChanges)
}

func (s *devSuite) TestDigitalReadUsesThirdByte() {
	// The second reply is the inverse of the port value. Using it would flip every result.
	s.transport.replies = []byte{0x00, 0x35, 0xCA}
	level, err := s.dev.DigitalRead(3)
	s.NoError(err)
	s.Equal(gpio.High, level)
	s.Equal([]byte{0x41, byte(GPIOA), byte(GPIOA)}, s.transport.sent)
	s.Equal([]bool{true, false}, s.transport.csChanges)

	s.transport.reset()
	s.transport.replies = []byte{0xFF, 0x35, 0xCA}
	level, err = s.dev.DigitalRead(0)
	s.NoError(err)
	s.Equal(gpio.Low, level)
	s.Len(s.transport.sent, FrameLen)
}

func (s *devSuite) TestDigitalReadPortB() {
	s.transport.replies = []byte{0x00, 0x00, 0x80}
	level, err := s.dev.DigitalRead(15)
	s.NoError(err)
	s.Equal(gpio.High, level)
	s.Equal([]byte{0x41, byte(GPIOB), byte(GPIOB)}, s.transport.sent)
}

func (s *devSuite) TestDigitalReadKeepsCache() {
	s.transport.replies = []byte{0x00, 0x00, 0xFF}
	_, err := s.dev.DigitalRead(1)
	s.NoError(err)
	s.Equal(NewRegisterCache(), s.dev.Cache())
}

// ============== Transport errors

func (s *devSuite) TestWriteErrorKeepsCache() {
	s.transport.failAfter = 2
	s.transport.failErr = errors.New("bus fault")

	err := s.dev.PinMode(3, Output)
	s.Error(err)
	s.True(errors.Is(err, s.transport.failErr))
	s.Equal(byte(0xFF), s.dev.Cache().Get(IODIRA))
	s.Equal([]bool{true, false}, s.transport.csChanges, "chip select must be released after a failure")
}

func (s *devSuite) TestReadError() {
	s.transport.failAfter = 3
	s.transport.failErr = errors.New("bus fault")

	level, err := s.dev.DigitalRead(0)
	s.Error(err)
	s.Equal(gpio.Low, level)
	s.False(s.transport.selected)
}

// ============== IOCON

func (s *devSuite) TestEnableHardwareAddressing() {
	s.NoError(s.dev.EnableHardwareAddressing())
	s.Equal(s.frame(IOCONA, IOCON_BIT_HAEN), s.transport.sent)
	s.Equal(IOCON_BIT_HAEN, s.dev.Cache().Get(IOCONA))
	s.Equal(IOCON_BIT_HAEN, s.dev.Cache().Get(IOCONB))
	s.transport.reset()

	s.NoError(s.dev.EnableHardwareAddressing())
	s.Empty(s.transport.sent)
}
