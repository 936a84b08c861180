package mcp23s17

// SPI control byte: 0| 1| 0| 0|A2|A1|A0|RW
const (
	OPCODE_BASE = byte(0x40)

	// Every register access exchanges exactly this many bytes: opcode, register address, data
	FrameLen = 3

	MaxHardwareAddress = HardwareAddress(7)
)

// HardwareAddress is the value of the A2..A0 address pins (0..7).
type HardwareAddress byte

// Transaction is the R/W bit of the opcode.
type Transaction byte

const (
	Write = Transaction(0)
	Read  = Transaction(1)
)

func (t Transaction) String() string {
	if t == Read {
		return "read"
	}
	return "write"
}

// Opcode returns the control byte that starts every frame for the device at addr.
func Opcode(addr HardwareAddress, tx Transaction) byte {
	return OPCODE_BASE | byte(addr)<<1 | byte(tx)&0x01
}

// EncodeWrite builds the frame that stores value in the register at regAddr.
func EncodeWrite(addr HardwareAddress, regAddr byte, value byte) [FrameLen]byte {
	return [FrameLen]byte{Opcode(addr, Write), regAddr, value}
}

// EncodeRead builds the frame that reads the register at regAddr.
// The reply to every byte arrives one transfer later, so the register value is
// returned while the third byte is clocked out. The content of that byte is ignored
// by the chip; the register address is repeated.
func EncodeRead(addr HardwareAddress, regAddr byte) [FrameLen]byte {
	return [FrameLen]byte{Opcode(addr, Read), regAddr, regAddr}
}

// DecodeRead extracts the register value from the bytes received during a read frame.
func DecodeRead(received [FrameLen]byte) byte {
	return received[FrameLen-1]
}
