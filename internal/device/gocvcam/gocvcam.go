// Package gocvcam provides camera streams backed by OpenCV video capture.
package gocvcam

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"deepfakedetector/internal/config"
	"deepfakedetector/internal/logger"
	"deepfakedetector/internal/model"
	"deepfakedetector/internal/service/camera"

	"gocv.io/x/gocv"
)

const (
	maxReadFailures = 50
	readRetryDelay  = 20 * time.Millisecond
)

var errNoFrames = errors.New("device stopped delivering frames")

// Devices opens OpenCV capture devices by index. The front and back cameras
// map onto configured device indices.
type Devices struct {
	frontID int
	backID  int
	logger  *logger.Logger
}

func NewDevices(cfg *config.Config, logger *logger.Logger) *Devices {
	return &Devices{
		frontID: cfg.CameraFrontID,
		backID:  cfg.CameraBackID,
		logger:  logger,
	}
}

func (d *Devices) deviceID(c camera.Constraints) int {
	if !c.Minimal && c.Facing == model.FacingBack {
		return d.backID
	}
	return d.frontID
}

// Request opens the device for the requested facing and starts reading frames.
func (d *Devices) Request(ctx context.Context, c camera.Constraints) (camera.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	id := d.deviceID(c)
	vc, err := gocv.OpenVideoCapture(id)
	if err != nil {
		return nil, &camera.DeviceError{Name: camera.NameNotFound, Message: err.Error(), Err: err}
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, &camera.DeviceError{Name: camera.NameNotFound, Message: fmt.Sprintf("device %d did not open", id)}
	}

	if !c.Minimal && c.IdealWidth > 0 && c.IdealHeight > 0 {
		vc.Set(gocv.VideoCaptureFrameWidth, float64(c.IdealWidth))
		vc.Set(gocv.VideoCaptureFrameHeight, float64(c.IdealHeight))
	}

	d.logger.Info("gocvcam: opened device %d (minimal=%t)", id, c.Minimal)

	s := &stream{
		id:     id,
		vc:     vc,
		latest: gocv.NewMat(),
		ready:  make(chan struct{}),
		done:   make(chan struct{}),
		exited: make(chan struct{}),
		logger: d.logger,
	}
	go s.read()
	return s, nil
}

type stream struct {
	id     int
	vc     *gocv.VideoCapture
	logger *logger.Logger

	mu      sync.Mutex
	latest  gocv.Mat
	readErr error

	ready     chan struct{}
	readyOnce sync.Once
	done      chan struct{}
	exited    chan struct{}
	closeOnce sync.Once
}

func (s *stream) read() {
	defer close(s.exited)

	frame := gocv.NewMat()
	defer frame.Close()

	failures := 0
	for {
		select {
		case <-s.done:
			return
		default:
		}

		if ok := s.vc.Read(&frame); !ok || frame.Empty() {
			failures++
			if failures >= maxReadFailures {
				s.mu.Lock()
				s.readErr = errNoFrames
				s.mu.Unlock()
				s.logger.Warning("gocvcam: device %d: %v", s.id, errNoFrames)
				return
			}
			time.Sleep(readRetryDelay)
			continue
		}
		failures = 0

		s.mu.Lock()
		err := frame.CopyTo(&s.latest)
		s.mu.Unlock()
		if err != nil {
			s.logger.Error("gocvcam: device %d: copying frame: %v", s.id, err)
			continue
		}
		s.readyOnce.Do(func() { close(s.ready) })
	}
}

// WaitReady blocks until the first frame has been read.
func (s *stream) WaitReady(ctx context.Context) error {
	select {
	case <-s.ready:
		return nil
	case <-s.exited:
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.readErr != nil {
			return &camera.DeviceError{Name: camera.NameNotReadable, Message: s.readErr.Error(), Err: s.readErr}
		}
		return errors.New("stream released")
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *stream) Dimensions() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest.Cols(), s.latest.Rows()
}

func (s *stream) HasEnoughData() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.latest.Empty()
}

// EncodeFrame encodes the most recent frame as JPEG.
func (s *stream) EncodeFrame() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.latest.Empty() {
		return nil, errors.New("no frame available")
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, s.latest)
	if err != nil {
		return nil, fmt.Errorf("encoding frame: %w", err)
	}
	defer buf.Close()

	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}

// Release stops the reader and closes the device.
func (s *stream) Release() {
	s.closeOnce.Do(func() {
		close(s.done)
		<-s.exited

		s.mu.Lock()
		s.latest.Close()
		s.mu.Unlock()

		if err := s.vc.Close(); err != nil {
			s.logger.Warning("gocvcam: closing device %d: %v", s.id, err)
		}
		s.logger.Info("gocvcam: released device %d", s.id)
	})
}
