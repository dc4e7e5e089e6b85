package service

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"deepfakedetector/internal/logger"
	"deepfakedetector/internal/model"
	"deepfakedetector/internal/service/ai"
	"deepfakedetector/internal/service/camera"
	"deepfakedetector/internal/service/history"
	"deepfakedetector/internal/service/pipeline"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubCamera records calls and hands out a fixed frame on Capture.
type stubCamera struct {
	mu         sync.Mutex
	stops      int
	starts     int
	markReady  int
	status     model.CameraStatus
	captureErr error
	handler    camera.CaptureHandler
}

func (c *stubCamera) Start(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.starts++
	c.status.State = model.CameraActive
	return nil
}

func (c *stubCamera) Retry(ctx context.Context) error { return c.Start(ctx) }
func (c *stubCamera) Flip(context.Context) error      { return nil }

func (c *stubCamera) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stops++
	c.status.State = model.CameraIdle
}

func (c *stubCamera) Capture() (model.CaptureRequest, error) {
	c.mu.Lock()
	if c.captureErr != nil {
		err := c.captureErr
		c.mu.Unlock()
		return model.CaptureRequest{}, err
	}
	req := model.CaptureRequest{Kind: model.SourceLiveFrame, Label: model.LiveCaptureLabel, MIMEType: "image/jpeg", Payload: []byte{1}}
	h := c.handler
	c.mu.Unlock()

	h(req)
	return req, nil
}

func (c *stubCamera) MarkReady() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.markReady++
}

func (c *stubCamera) Status() model.CameraStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *stubCamera) SetCaptureHandler(h camera.CaptureHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = h
}

func (c *stubCamera) counts() (stops, markReady int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stops, c.markReady
}

type eventLog struct {
	mu  sync.Mutex
	all []model.Event
}

func (l *eventLog) Publish(e model.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.all = append(l.all, e)
}

func (l *eventLog) ofType(t model.EventType) []model.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []model.Event
	for _, e := range l.all {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func newTestSession(t *testing.T) (*Session, *stubCamera, *eventLog) {
	t.Helper()
	events := &eventLog{}
	hist := history.NewLog(history.DefaultCapacity)
	p := pipeline.NewPipeline(pipeline.Config{
		ProgressInterval: 5 * time.Millisecond,
		ProgressStepMax:  15,
		ProgressCap:      95,
		MinDuration:      40 * time.Millisecond,
		MaxDuration:      60 * time.Millisecond,
	}, ai.NewGeneratorWithSource(rand.NewSource(1)), hist, events, logger.Discard())

	cam := &stubCamera{}
	s := NewSession(p, cam, hist, events, logger.Discard())
	t.Cleanup(s.Close)
	return s, cam, events
}

func waitJob(t *testing.T, h *pipeline.JobHandle) {
	t.Helper()
	select {
	case <-h.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("job did not finish")
	}
}

func TestSubmitFile_MatchingMode(t *testing.T) {
	s, _, _ := newTestSession(t)

	h, err := s.SubmitFile("portrait.png", "image/png", []byte("png"))
	require.NoError(t, err)
	assert.Equal(t, model.SourceImage, h.Kind)
	assert.Equal(t, "portrait.png", h.Label)
	waitJob(t, h)

	entries := s.History()
	require.Len(t, entries, 1)
	assert.Equal(t, "Image", entries[0].Category)
}

func TestSubmitFile_RejectsMismatchedType(t *testing.T) {
	s, _, events := newTestSession(t)

	tests := []struct {
		mode model.Mode
		mime string
	}{
		{model.ModeImage, "video/mp4"},
		{model.ModeVideo, "image/jpeg"},
		{model.ModeCamera, "image/jpeg"},
		{model.ModeImage, "application/pdf"},
	}

	for _, tt := range tests {
		s.SetMode(tt.mode)
		h, err := s.SubmitFile("f", tt.mime, []byte("x"))
		assert.ErrorIs(t, err, ErrInvalidFileType, "%s/%s", tt.mode, tt.mime)
		assert.Nil(t, h)
	}

	notices := events.ofType(model.EventNotice)
	require.Len(t, notices, len(tests))
	assert.Equal(t, InvalidFileTypeMessage, notices[0].Message)
	assert.Empty(t, s.History())
}

func TestSubmitFile_VideoMode(t *testing.T) {
	s, _, _ := newTestSession(t)
	s.SetMode(model.ModeVideo)

	h, err := s.SubmitFile("clip.mov", "video/quicktime", []byte("mov"))
	require.NoError(t, err)
	assert.Equal(t, model.SourceVideo, h.Kind)
	waitJob(t, h)

	v, ok := h.Verdict()
	require.True(t, ok)
	assert.GreaterOrEqual(t, v.FrameCount, 15)
}

func TestSubmitFile_Empty(t *testing.T) {
	s, _, _ := newTestSession(t)
	_, err := s.SubmitFile("empty.png", "image/png", nil)
	assert.ErrorIs(t, err, ErrEmptyFile)
}

func TestSetMode_StopsCamera(t *testing.T) {
	s, cam, events := newTestSession(t)

	s.SetMode(model.ModeCamera)
	require.NoError(t, s.StartCamera(context.Background()))
	assert.Equal(t, model.CameraActive, s.Snapshot().Camera.State)

	s.SetMode(model.ModeImage)

	stops, _ := cam.counts()
	assert.Equal(t, 2, stops)
	assert.Equal(t, model.CameraIdle, s.Snapshot().Camera.State)

	modes := events.ofType(model.EventMode)
	require.Len(t, modes, 2)
	assert.Equal(t, model.ModeImage, modes[1].Mode)
}

func TestCameraControls_RequireCameraMode(t *testing.T) {
	s, _, _ := newTestSession(t)

	assert.ErrorIs(t, s.StartCamera(context.Background()), ErrNotCameraMode)
	assert.ErrorIs(t, s.FlipCamera(context.Background()), ErrNotCameraMode)
	assert.ErrorIs(t, s.RetryCamera(context.Background()), ErrNotCameraMode)
	_, err := s.Capture()
	assert.ErrorIs(t, err, ErrNotCameraMode)
}

func TestCapture_StartsLiveAnalysisAndRestoresReady(t *testing.T) {
	s, cam, events := newTestSession(t)
	s.SetMode(model.ModeCamera)
	require.NoError(t, s.StartCamera(context.Background()))

	req, err := s.Capture()
	require.NoError(t, err)
	assert.Equal(t, model.SourceLiveFrame, req.Kind)

	snap := s.Snapshot()
	require.NotNil(t, snap.Job)
	assert.Equal(t, model.SourceLiveFrame, snap.Job.Kind)
	assert.Equal(t, model.LiveCaptureLabel, snap.Job.Label)

	require.Eventually(t, func() bool {
		_, ready := cam.counts()
		return ready == 1
	}, 2*time.Second, 5*time.Millisecond)

	verdicts := events.ofType(model.EventVerdict)
	require.Len(t, verdicts, 1)
	assert.Equal(t, "1 frame analyzed", verdicts[0].Frames)

	entries := s.History()
	require.Len(t, entries, 1)
	assert.Equal(t, "Live", entries[0].Category)
}

func TestCapture_NotReadyStartsNothing(t *testing.T) {
	s, cam, _ := newTestSession(t)
	s.SetMode(model.ModeCamera)
	cam.captureErr = camera.ErrCaptureNotReady

	_, err := s.Capture()
	assert.ErrorIs(t, err, camera.ErrCaptureNotReady)
	assert.Nil(t, s.Snapshot().Job)
}

func TestCapture_SupersededLiveJobKeepsAnalyzing(t *testing.T) {
	s, cam, _ := newTestSession(t)
	s.SetMode(model.ModeCamera)
	require.NoError(t, s.StartCamera(context.Background()))

	_, err := s.Capture()
	require.NoError(t, err)
	_, err = s.Capture()
	require.NoError(t, err)

	// Only the surviving job restores the ready status.
	require.Eventually(t, func() bool {
		_, ready := cam.counts()
		return ready == 1
	}, 2*time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	_, ready := cam.counts()
	assert.Equal(t, 1, ready)
	assert.Len(t, s.History(), 1)
}

func TestSnapshot_Idle(t *testing.T) {
	s, _, _ := newTestSession(t)

	snap := s.Snapshot()
	assert.Equal(t, model.ModeImage, snap.Mode)
	assert.Nil(t, snap.Job)
	assert.Empty(t, snap.History)
}
