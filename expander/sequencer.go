package expander

import (
	"errors"
	"fmt"
	"sync"

	"github.com/antongulenko/mcp23s17/mcp23s17"
	log "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/gpio"
)

const (
	PinModeRequest = iota + 1
	DigitalWriteRequest
	DigitalReadRequest
	CacheRequest
)

var errNotSetUp = errors.New("expander: not set up")

type PinRequest struct {
	Type  int
	Pin   uint8
	Mode  mcp23s17.Mode          // Only for PinModeRequest
	Level gpio.Level             // Value for DigitalWriteRequest, result of DigitalReadRequest
	Cache mcp23s17.RegisterCache // Only for CacheRequest
	Error error

	done bool
	wait *sync.Cond
}

func (r *PinRequest) init() {
	r.wait = &sync.Cond{L: new(sync.Mutex)}
}

func (r *PinRequest) Wait() {
	r.wait.L.Lock()
	defer r.wait.L.Unlock()
	for !r.done {
		r.wait.Wait()
	}
}

func (r *PinRequest) notifyDone() {
	r.wait.L.Lock()
	defer r.wait.L.Unlock()
	r.done = true
	r.wait.Broadcast()
}

// pinSequencer is the only user of the Dev, so the driver never sees concurrent calls.
type pinSequencer struct {
	dev   *mcp23s17.Dev
	queue chan *PinRequest
	lock  sync.Mutex // Only used without the sequencer goroutine
}

func (s *pinSequencer) handlePinRequests() {
	for req := range s.queue {
		s.execute(req)
		req.notifyDone()
	}
}

func (s *pinSequencer) execute(req *PinRequest) {
	switch req.Type {
	case PinModeRequest:
		req.Error = s.dev.PinMode(req.Pin, req.Mode)
	case DigitalWriteRequest:
		req.Error = s.dev.DigitalWrite(req.Pin, req.Level)
	case DigitalReadRequest:
		req.Level, req.Error = s.dev.DigitalRead(req.Pin)
	case CacheRequest:
		req.Cache = s.dev.Cache()
	default:
		log.Errorln("Ignoring invalid pin request with type", req.Type)
		req.Error = fmt.Errorf("expander: invalid pin request type %v", req.Type)
	}
}

func (e *Expander) QueuePinRequest(req *PinRequest) error {
	if e.dev == nil {
		return errNotSetUp
	}
	req.init()
	if e.NoSequencer {
		e.sequencer.lock.Lock()
		defer e.sequencer.lock.Unlock()
		e.sequencer.execute(req)
		req.notifyDone()
	} else {
		e.sequencer.queue <- req
	}
	return nil
}

func (e *Expander) PinRequest(req *PinRequest) {
	if err := e.QueuePinRequest(req); err != nil {
		req.Error = err
		return
	}
	req.Wait()
}

func (e *Expander) PinMode(pin uint8, mode mcp23s17.Mode) error {
	req := &PinRequest{
		Type: PinModeRequest,
		Pin:  pin,
		Mode: mode,
	}
	e.PinRequest(req)
	return req.Error
}

func (e *Expander) DigitalWrite(pin uint8, level gpio.Level) error {
	req := &PinRequest{
		Type:  DigitalWriteRequest,
		Pin:   pin,
		Level: level,
	}
	e.PinRequest(req)
	return req.Error
}

func (e *Expander) DigitalRead(pin uint8) (gpio.Level, error) {
	req := &PinRequest{
		Type: DigitalReadRequest,
		Pin:  pin,
	}
	e.PinRequest(req)
	return req.Level, req.Error
}

// Cache returns a copy of the register values written to the chip so far.
func (e *Expander) Cache() (mcp23s17.RegisterCache, error) {
	req := &PinRequest{
		Type: CacheRequest,
	}
	e.PinRequest(req)
	return req.Cache, req.Error
}
