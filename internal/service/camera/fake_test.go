package camera

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"deepfakedetector/internal/model"
)

// fakeStream is a scripted Stream. readyErr is returned from WaitReady;
// blockReady makes WaitReady wait for its context instead.
type fakeStream struct {
	devices    *fakeDevices
	readyErr   error
	blockReady bool
	width      int
	height     int
	enough     bool
	frame      []byte
	encodeErr  error
	released   atomic.Bool
}

func (s *fakeStream) WaitReady(ctx context.Context) error {
	if s.blockReady {
		<-ctx.Done()
		return ctx.Err()
	}
	return s.readyErr
}

func (s *fakeStream) Dimensions() (int, int) { return s.width, s.height }
func (s *fakeStream) HasEnoughData() bool    { return s.enough }

func (s *fakeStream) EncodeFrame() ([]byte, error) {
	if s.encodeErr != nil {
		return nil, s.encodeErr
	}
	return s.frame, nil
}

func (s *fakeStream) Release() {
	if s.released.CompareAndSwap(false, true) && s.devices != nil {
		s.devices.live.Add(-1)
	}
}

// result is one scripted answer to Request.
type result struct {
	stream *fakeStream
	err    error
	gate   chan struct{} // when set, Request waits for it to close
	// ignoreCtx keeps Request waiting on gate after its context ends, like a
	// backend that cannot abort an open in progress.
	ignoreCtx bool
}

type call struct {
	at          time.Time
	constraints Constraints
}

type fakeDevices struct {
	mu      sync.Mutex
	script  []result
	calls   []call
	live    atomic.Int32
	maxLive atomic.Int32
}

func newFakeDevices(script ...result) *fakeDevices {
	return &fakeDevices{script: script}
}

func (d *fakeDevices) Request(ctx context.Context, c Constraints) (Stream, error) {
	d.mu.Lock()
	d.calls = append(d.calls, call{at: time.Now(), constraints: c})
	if len(d.script) == 0 {
		d.mu.Unlock()
		return nil, errors.New("fake: script exhausted")
	}
	r := d.script[0]
	d.script = d.script[1:]
	d.mu.Unlock()

	if r.gate != nil && r.ignoreCtx {
		<-r.gate
	} else if r.gate != nil {
		select {
		case <-r.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if r.err != nil {
		return nil, r.err
	}

	r.stream.devices = d
	n := d.live.Add(1)
	for {
		peak := d.maxLive.Load()
		if n <= peak || d.maxLive.CompareAndSwap(peak, n) {
			break
		}
	}
	return r.stream, nil
}

func (d *fakeDevices) callLog() []call {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]call, len(d.calls))
	copy(out, d.calls)
	return out
}

func readyStream() *fakeStream {
	return &fakeStream{width: 1280, height: 720, enough: true, frame: []byte{0xFF, 0xD8, 0xFF, 0xD9}}
}

// events records published events.
type events struct {
	mu  sync.Mutex
	all []model.Event
}

func (e *events) Publish(ev model.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.all = append(e.all, ev)
}

func (e *events) list() []model.Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]model.Event, len(e.all))
	copy(out, e.all)
	return out
}

func (e *events) states() []model.CameraState {
	var out []model.CameraState
	for _, ev := range e.list() {
		if ev.Type == model.EventCamera {
			out = append(out, ev.Camera.State)
		}
	}
	return out
}
