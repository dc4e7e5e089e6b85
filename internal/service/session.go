package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"deepfakedetector/internal/logger"
	"deepfakedetector/internal/model"
	"deepfakedetector/internal/service/camera"
	"deepfakedetector/internal/service/pipeline"
)

// InvalidFileTypeMessage is shown when an upload does not match the mode.
const InvalidFileTypeMessage = "Please upload a valid file type for the selected mode."

var (
	ErrInvalidFileType = errors.New("file type does not match the selected mode")
	ErrNotCameraMode   = errors.New("camera controls are only available in camera mode")
	ErrEmptyFile       = errors.New("uploaded file is empty")
)

// Analyzer runs analysis jobs; *pipeline.Pipeline implements it.
type Analyzer interface {
	Start(req model.CaptureRequest) *pipeline.JobHandle
	Current() *pipeline.JobHandle
	Close()
}

// Camera is the live capture controller; *camera.Controller implements it.
type Camera interface {
	Start(ctx context.Context) error
	Retry(ctx context.Context) error
	Stop()
	Flip(ctx context.Context) error
	Capture() (model.CaptureRequest, error)
	MarkReady()
	Status() model.CameraStatus
	SetCaptureHandler(h camera.CaptureHandler)
}

// HistoryReader lists the recent verdicts.
type HistoryReader interface {
	List() []model.HistoryEntry
}

// Session ties the input mode, the analysis pipeline and the camera together.
// There is one Session per running detector.
type Session struct {
	analyzer  Analyzer
	camera    Camera
	history   HistoryReader
	publisher model.Publisher
	logger    *logger.Logger

	mu   sync.Mutex
	mode model.Mode

	wg     sync.WaitGroup
	closed chan struct{}
	once   sync.Once
}

func NewSession(analyzer Analyzer, cam Camera, history HistoryReader, publisher model.Publisher, logger *logger.Logger) *Session {
	if publisher == nil {
		publisher = model.Discard
	}
	s := &Session{
		analyzer:  analyzer,
		camera:    cam,
		history:   history,
		publisher: publisher,
		logger:    logger,
		mode:      model.ModeImage,
		closed:    make(chan struct{}),
	}
	cam.SetCaptureHandler(s.handleCapture)

	logger.Info("Session started in %s mode", s.mode)
	return s
}

// Mode returns the current input mode.
func (s *Session) Mode() model.Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// SetMode switches the input mode. Any camera stream is stopped; a running
// analysis is left alone.
func (s *Session) SetMode(mode model.Mode) {
	s.mu.Lock()
	s.mode = mode
	s.publisher.Publish(model.Event{Type: model.EventMode, Mode: mode})
	s.mu.Unlock()

	s.camera.Stop()
	s.logger.Info("Mode set to %s", mode)
}

// SubmitFile starts an analysis of an uploaded file. The declared MIME type
// must match the current mode.
func (s *Session) SubmitFile(name, mimeType string, data []byte) (*pipeline.JobHandle, error) {
	s.mu.Lock()
	mode := s.mode
	s.mu.Unlock()

	if !mode.Accepts(mimeType) {
		s.logger.Warning("Rejected %q (%s) in %s mode", name, mimeType, mode)
		s.publisher.Publish(model.Event{Type: model.EventNotice, Message: InvalidFileTypeMessage})
		return nil, ErrInvalidFileType
	}
	if len(data) == 0 {
		return nil, ErrEmptyFile
	}

	return s.analyzer.Start(model.CaptureRequest{
		Kind:     mode.SourceKind(),
		Label:    name,
		MIMEType: mimeType,
		Payload:  data,
	}), nil
}

func (s *Session) StartCamera(ctx context.Context) error {
	if err := s.requireCameraMode(); err != nil {
		return err
	}
	return s.camera.Start(ctx)
}

func (s *Session) RetryCamera(ctx context.Context) error {
	if err := s.requireCameraMode(); err != nil {
		return err
	}
	return s.camera.Retry(ctx)
}

func (s *Session) FlipCamera(ctx context.Context) error {
	if err := s.requireCameraMode(); err != nil {
		return err
	}
	return s.camera.Flip(ctx)
}

// StopCamera releases the stream. It works from any mode.
func (s *Session) StopCamera() {
	s.camera.Stop()
}

// Capture grabs a frame from the live stream; the analysis is started by the
// capture handler.
func (s *Session) Capture() (model.CaptureRequest, error) {
	if err := s.requireCameraMode(); err != nil {
		return model.CaptureRequest{}, err
	}
	return s.camera.Capture()
}

func (s *Session) requireCameraMode() error {
	if s.Mode() != model.ModeCamera {
		return ErrNotCameraMode
	}
	return nil
}

func (s *Session) handleCapture(req model.CaptureRequest) {
	h := s.analyzer.Start(req)

	s.wg.Add(1)
	go s.watchLive(h)
}

// watchLive restores the camera's ready status once a live analysis ends,
// unless another live analysis has taken its place.
func (s *Session) watchLive(h *pipeline.JobHandle) {
	defer s.wg.Done()

	select {
	case <-h.Done():
	case <-s.closed:
		return
	}

	if h.State() == model.JobCompleted {
		s.camera.MarkReady()
		return
	}
	if cur := s.analyzer.Current(); cur == nil || cur.Kind != model.SourceLiveFrame {
		s.camera.MarkReady()
	}
}

// JobInfo describes the running analysis.
type JobInfo struct {
	ID        string           `json:"id"`
	Kind      model.SourceKind `json:"kind"`
	Label     string           `json:"label"`
	State     model.JobState   `json:"state"`
	StartedAt time.Time        `json:"started_at"`
}

// Snapshot is everything a renderer needs to draw the page on connect.
type Snapshot struct {
	Mode    model.Mode           `json:"mode"`
	Camera  model.CameraStatus   `json:"camera"`
	Job     *JobInfo             `json:"job,omitempty"`
	History []model.HistoryEntry `json:"history"`
}

func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{
		Mode:    s.Mode(),
		Camera:  s.camera.Status(),
		History: s.history.List(),
	}
	if h := s.analyzer.Current(); h != nil {
		snap.Job = &JobInfo{
			ID:        h.ID,
			Kind:      h.Kind,
			Label:     h.Label,
			State:     h.State(),
			StartedAt: h.StartedAt,
		}
	}
	return snap
}

// History returns the recent verdicts, newest first.
func (s *Session) History() []model.HistoryEntry {
	return s.history.List()
}

// Close stops the camera and cancels any running analysis.
func (s *Session) Close() {
	s.once.Do(func() {
		close(s.closed)
		s.camera.Stop()
		s.analyzer.Close()
		s.wg.Wait()
		s.logger.Info("Session closed")
	})
}
