package mcp23s17

// Transport is the SPI link to one chip select line.
// Transfer is full-duplex: the returned byte was clocked in while b was clocked out.
type Transport interface {
	Begin() error
	Select() error
	Transfer(b byte) (byte, error)
	Release() error
}

// exchange runs one frame with the chip selected. The chip select is released
// even if a transfer fails.
func exchange(t Transport, frame [FrameLen]byte) (received [FrameLen]byte, err error) {
	if err = t.Select(); err != nil {
		return
	}
	for i, b := range frame {
		if received[i], err = t.Transfer(b); err != nil {
			break
		}
	}
	if releaseErr := t.Release(); err == nil {
		err = releaseErr
	}
	return
}
