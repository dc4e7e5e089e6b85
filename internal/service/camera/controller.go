// Package camera sequences camera acquisition: it negotiates a stream with the
// device primitive, classifies failures, runs the one-shot minimal-constraints
// fallback, switches between front and back cameras and turns the live feed
// into capture requests.
//
// The controller holds at most one stream. Every start, stop and flip bumps an
// attempt counter and cancels the acquisition in flight; an acquisition that
// completes for an older attempt releases its stream instead of installing it.
// A new acquisition does not begin until the abandoned one has returned.
package camera

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"deepfakedetector/internal/config"
	"deepfakedetector/internal/logger"
	"deepfakedetector/internal/model"
)

// Status details published alongside state changes.
const (
	DetailRequesting = "Requesting camera access..."
	DetailReady      = "Ready to capture"
	DetailSwitching  = "Switching camera..."
	DetailCapturing  = "Capturing frame..."
	DetailAnalyzing  = "Analyzing..."
)

// Constraints is what the controller asks the device primitive for. Minimal
// drops every hint and asks for any video source.
type Constraints struct {
	Facing      model.Facing
	IdealWidth  int
	IdealHeight int
	Minimal     bool
}

// MediaDevices is the device-media acquisition primitive.
type MediaDevices interface {
	Request(ctx context.Context, c Constraints) (Stream, error)
}

// Stream is a live video source plus the sink it plays into.
type Stream interface {
	// WaitReady blocks until metadata is loaded and playback has started.
	WaitReady(ctx context.Context) error
	// Dimensions reports the natural size of the current frame.
	Dimensions() (width, height int)
	// HasEnoughData reports whether a current frame can be read.
	HasEnoughData() bool
	// EncodeFrame returns the current frame as a JPEG.
	EncodeFrame() ([]byte, error)
	// Release stops every track of the stream. Safe to call twice.
	Release()
}

// CaptureHandler receives frames captured from the live stream.
type CaptureHandler func(req model.CaptureRequest)

// Config holds the acquisition timing and preferred resolution.
type Config struct {
	ReadyTimeout  time.Duration
	FallbackDelay time.Duration
	IdealWidth    int
	IdealHeight   int
}

// ConfigFrom extracts the camera settings from the application config.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		ReadyTimeout:  cfg.VideoReadyTimeout(),
		FallbackDelay: cfg.FallbackDelay(),
		IdealWidth:    cfg.CameraWidth,
		IdealHeight:   cfg.CameraHeight,
	}
}

type Controller struct {
	cfg       Config
	devices   MediaDevices
	publisher model.Publisher
	logger    *logger.Logger

	mu        sync.Mutex
	state     model.CameraState
	facing    model.Facing
	detail    string
	lastErr   *Error
	stream    Stream
	attempt   uint64
	onCapture CaptureHandler

	// cancel aborts the acquisition in flight; pending is closed once that
	// acquisition has returned and released anything it opened.
	cancel  context.CancelFunc
	pending chan struct{}
}

// NewController creates an idle controller. devices may be nil when the host
// has no capture backend; Start then fails with ErrUnsupportedEnvironment.
func NewController(cfg Config, devices MediaDevices, publisher model.Publisher, logger *logger.Logger) *Controller {
	if publisher == nil {
		publisher = model.Discard
	}
	return &Controller{
		cfg:       cfg,
		devices:   devices,
		publisher: publisher,
		logger:    logger,
		state:     model.CameraIdle,
		facing:    model.FacingFront,
	}
}

// SetCaptureHandler installs the receiver of captured frames.
func (c *Controller) SetCaptureHandler(h CaptureHandler) {
	c.mu.Lock()
	c.onCapture = h
	c.mu.Unlock()
}

// Status returns the current state snapshot.
func (c *Controller) Status() model.CameraStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked()
}

// State returns the current state.
func (c *Controller) State() model.CameraState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err returns the error behind the Error state, or nil.
func (c *Controller) Err() *Error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != model.CameraError {
		return nil
	}
	return c.lastErr
}

// Start requests a stream with the current facing. It blocks until the
// camera is Active or the attempt has failed, including the fallback retry.
// The acquisition does not depend on ctx: when ctx ends first Start returns
// ctx.Err() and the attempt carries on until it settles or Stop abandons it.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	for c.pending != nil && c.state != model.CameraRequesting {
		done := c.pending
		c.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
		c.mu.Lock()
	}

	switch c.state {
	case model.CameraActive:
		c.mu.Unlock()
		return nil
	case model.CameraRequesting:
		c.mu.Unlock()
		return ErrAcquisitionInProgress
	}

	if c.devices == nil {
		err := newError(model.ReasonUnsupportedEnvironment, nil)
		c.failLocked(err)
		c.mu.Unlock()
		return err
	}

	attempt := c.abandonLocked()
	cons := c.constraintsLocked()
	c.lastErr = nil
	c.setStateLocked(model.CameraRequesting, DetailRequesting)
	result := c.launchLocked(ctx, attempt, cons)
	c.mu.Unlock()

	return await(ctx, result)
}

// Retry re-enters the start sequence after an error.
func (c *Controller) Retry(ctx context.Context) error {
	c.logger.Info("camera: retry requested from %s", c.State())
	return c.Start(ctx)
}

// Stop releases the stream and returns to Idle. It is a no-op when idle and
// abandons any acquisition still in flight.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == model.CameraIdle && c.stream == nil {
		return
	}
	c.abandonLocked()
	c.releaseLocked()
	c.lastErr = nil
	c.setStateLocked(model.CameraIdle, "")
}

// Flip switches to the opposite camera. The current stream is released before
// the new one is requested. Without a live stream Flip does nothing.
func (c *Controller) Flip(ctx context.Context) error {
	c.mu.Lock()
	if c.state != model.CameraActive || c.stream == nil {
		c.mu.Unlock()
		return nil
	}

	c.facing = c.facing.Opposite()
	attempt := c.abandonLocked()
	c.releaseLocked()
	cons := c.constraintsLocked()
	c.setStateLocked(model.CameraRequesting, DetailSwitching)
	result := c.launchLocked(ctx, attempt, cons)
	c.mu.Unlock()

	return await(ctx, result)
}

// Capture grabs the current frame and hands it to the capture handler.
// It fails with ErrCaptureNotReady, leaving the state untouched, unless the
// camera is Active and the sink has a decodable frame.
func (c *Controller) Capture() (model.CaptureRequest, error) {
	c.mu.Lock()

	if c.state != model.CameraActive || c.stream == nil {
		err := &Error{Reason: model.ReasonCaptureNotReady, Message: msgNoStream}
		c.noticeLocked(err)
		c.mu.Unlock()
		return model.CaptureRequest{}, err
	}

	w, h := c.stream.Dimensions()
	if w == 0 || h == 0 || !c.stream.HasEnoughData() {
		err := &Error{Reason: model.ReasonCaptureNotReady, Message: msgNotReady}
		c.noticeLocked(err)
		c.mu.Unlock()
		return model.CaptureRequest{}, err
	}

	c.setDetailLocked(DetailCapturing)
	payload, encErr := c.stream.EncodeFrame()
	if encErr != nil {
		err := &Error{Reason: model.ReasonCaptureNotReady, Message: msgEncodeFailed, Err: encErr}
		c.noticeLocked(err)
		c.setDetailLocked(DetailReady)
		c.mu.Unlock()
		return model.CaptureRequest{}, err
	}

	req := model.CaptureRequest{
		Kind:     model.SourceLiveFrame,
		Label:    model.LiveCaptureLabel,
		MIMEType: "image/jpeg",
		Payload:  payload,
	}
	c.logger.Info("camera: captured %dx%d frame (%d bytes)", w, h, len(payload))
	c.setDetailLocked(DetailAnalyzing)
	handler := c.onCapture
	c.mu.Unlock()

	if handler != nil {
		handler(req)
	}
	return req, nil
}

// MarkReady restores the "Ready to capture" detail once a live analysis has
// finished, provided the stream is still up.
func (c *Controller) MarkReady() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == model.CameraActive && c.detail != DetailReady {
		c.setDetailLocked(DetailReady)
	}
}

// abandonLocked starts a new attempt, cancelling the one in flight.
func (c *Controller) abandonLocked() uint64 {
	c.attempt++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	return c.attempt
}

// launchLocked runs the acquisition for attempt on a context owned by the
// controller. Only abandonLocked cancels it.
func (c *Controller) launchLocked(ctx context.Context, attempt uint64, cons Constraints) <-chan error {
	actx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	c.cancel = cancel
	c.pending = done

	result := make(chan error, 1)
	go func() {
		err := c.acquire(actx, attempt, cons)
		cancel()

		c.mu.Lock()
		if c.pending == done {
			c.pending = nil
			c.cancel = nil
		}
		close(done)
		c.mu.Unlock()

		result <- err
	}()
	return result
}

func await(ctx context.Context, result <-chan error) error {
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// acquire runs one acquisition attempt and, for unsatisfiable constraints,
// the single minimal-constraints fallback. ctx is cancelled only when the
// attempt is abandoned.
func (c *Controller) acquire(ctx context.Context, attempt uint64, cons Constraints) error {
	stream, err := c.open(ctx, cons)
	if err == nil {
		return c.install(attempt, stream)
	}

	reason := Classify(err)
	if reason != model.ReasonConstraintsNotSatisfiable || cons.Minimal {
		return c.fail(attempt, newError(reason, err))
	}

	c.mu.Lock()
	if c.attempt != attempt {
		c.mu.Unlock()
		return ErrAborted
	}
	c.logger.Warning("camera: constraints not satisfiable (%v), retrying with defaults in %v", err, c.cfg.FallbackDelay)
	c.noticeLocked(newError(reason, err))
	c.setDetailLocked(msgConstraints)
	c.mu.Unlock()

	timer := time.NewTimer(c.cfg.FallbackDelay)
	select {
	case <-timer.C:
	case <-ctx.Done():
		timer.Stop()
		return ErrAborted
	}

	if c.currentAttempt() != attempt {
		return ErrAborted
	}

	stream, err = c.open(ctx, Constraints{Minimal: true})
	if err != nil {
		return c.fail(attempt, &Error{Reason: model.ReasonUnknown, Message: msgFallbackFailed, Fallback: true, Err: err})
	}
	return c.install(attempt, stream)
}

// open requests a stream and waits, bounded by ReadyTimeout, for it to play.
func (c *Controller) open(ctx context.Context, cons Constraints) (Stream, error) {
	stream, err := c.devices.Request(ctx, cons)
	if err != nil {
		return nil, fmt.Errorf("requesting stream: %w", err)
	}

	readyCtx, cancel := context.WithTimeout(ctx, c.cfg.ReadyTimeout)
	defer cancel()

	if err := stream.WaitReady(readyCtx); err != nil {
		stream.Release()
		if errors.Is(readyCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, &DeviceError{Name: NamePlaybackTimeout, Message: "video load timeout", Err: err}
		}
		return nil, fmt.Errorf("starting playback: %w", err)
	}
	return stream, nil
}

func (c *Controller) install(attempt uint64, stream Stream) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.attempt != attempt {
		stream.Release()
		c.logger.Info("camera: dropped stream from superseded attempt %d", attempt)
		return ErrAborted
	}

	c.stream = stream
	c.setStateLocked(model.CameraActive, DetailReady)
	return nil
}

func (c *Controller) fail(attempt uint64, err *Error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.attempt != attempt {
		return ErrAborted
	}
	c.failLocked(err)
	return err
}

func (c *Controller) failLocked(err *Error) {
	c.lastErr = err
	c.logger.Error("camera: %v", err)
	c.setStateLocked(model.CameraError, err.Message)
}

func (c *Controller) currentAttempt() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempt
}

func (c *Controller) constraintsLocked() Constraints {
	return Constraints{
		Facing:      c.facing,
		IdealWidth:  c.cfg.IdealWidth,
		IdealHeight: c.cfg.IdealHeight,
	}
}

func (c *Controller) releaseLocked() {
	if c.stream != nil {
		c.stream.Release()
		c.stream = nil
	}
}

func (c *Controller) statusLocked() model.CameraStatus {
	st := model.CameraStatus{
		State:  c.state,
		Facing: c.facing,
		Detail: c.detail,
	}
	if c.state == model.CameraError && c.lastErr != nil {
		st.Reason = c.lastErr.Reason
		st.Fallback = c.lastErr.Fallback
	}
	return st
}

func (c *Controller) setStateLocked(state model.CameraState, detail string) {
	prev := c.state
	c.state = state
	c.detail = detail
	if prev != state {
		c.logger.Info("camera: %s -> %s (%s)", prev, state, c.facing)
	}
	c.publishLocked()
}

func (c *Controller) setDetailLocked(detail string) {
	c.detail = detail
	c.publishLocked()
}

func (c *Controller) publishLocked() {
	status := c.statusLocked()
	c.publisher.Publish(model.Event{Type: model.EventCamera, Camera: &status})
}

func (c *Controller) noticeLocked(err *Error) {
	c.logger.Warning("camera: %s", err.Message)
	c.publisher.Publish(model.Event{
		Type:    model.EventNotice,
		Reason:  err.Reason,
		Message: err.Message,
	})
}
