// Package pipeline runs the simulated analysis job. It owns a single job
// slot: starting a job cancels whichever job is still running, and every
// goroutine checks the slot's generation before it publishes anything.
package pipeline

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"deepfakedetector/internal/config"
	"deepfakedetector/internal/logger"
	"deepfakedetector/internal/model"

	"github.com/google/uuid"
)

// Generator produces the verdict for a finished job.
type Generator interface {
	Generate(kind model.SourceKind) model.Verdict
}

// History receives every completed verdict.
type History interface {
	Append(kind model.SourceKind, verdict model.Verdict) model.HistoryEntry
	List() []model.HistoryEntry
}

// Config holds the pipeline timing.
type Config struct {
	ProgressInterval time.Duration
	ProgressStepMax  float64
	ProgressCap      float64
	MinDuration      time.Duration
	MaxDuration      time.Duration
}

// ConfigFrom extracts the pipeline settings from the application config.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		ProgressInterval: cfg.ProgressInterval(),
		ProgressStepMax:  cfg.ProgressStepMax,
		ProgressCap:      cfg.ProgressCap,
		MinDuration:      cfg.JobMinDuration(),
		MaxDuration:      cfg.JobMaxDuration(),
	}
}

type Pipeline struct {
	cfg       Config
	generator Generator
	history   History
	publisher model.Publisher
	logger    *logger.Logger

	mu         sync.Mutex
	rng        *rand.Rand
	generation uint64
	current    *JobHandle
}

// NewPipeline wires a pipeline. A nil publisher drops events.
func NewPipeline(cfg Config, generator Generator, history History, publisher model.Publisher, logger *logger.Logger) *Pipeline {
	if publisher == nil {
		publisher = model.Discard
	}
	return &Pipeline{
		cfg:       cfg,
		generator: generator,
		history:   history,
		publisher: publisher,
		logger:    logger,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// WithRandSource replaces the source used for progress steps and durations.
func (p *Pipeline) WithRandSource(src rand.Source) *Pipeline {
	p.mu.Lock()
	p.rng = rand.New(src)
	p.mu.Unlock()
	return p
}

// Start cancels any running job and begins a new one for req.
func (p *Pipeline) Start(req model.CaptureRequest) *JobHandle {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current != nil {
		p.cancelLocked(p.current, "superseded")
	}

	p.generation++
	h := &JobHandle{
		ID:        uuid.NewString(),
		Kind:      req.Kind,
		Label:     req.Label,
		StartedAt: time.Now(),
		Duration:  p.drawDurationLocked(),
		pipeline:  p,
		gen:       p.generation,
		state:     model.JobRunning,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	p.current = h

	p.logger.Info("analysis %s started: %s %q (%d bytes), duration %v",
		h.ID, h.Kind, h.Label, len(req.Payload), h.Duration)

	go p.run(h)
	return h
}

// Current returns the running job, or nil.
func (p *Pipeline) Current() *JobHandle {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Close cancels the running job, if any.
func (p *Pipeline) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current != nil {
		p.cancelLocked(p.current, "shutdown")
	}
}

func (p *Pipeline) drawDurationLocked() time.Duration {
	span := p.cfg.MaxDuration - p.cfg.MinDuration
	if span <= 0 {
		return p.cfg.MinDuration
	}
	return p.cfg.MinDuration + time.Duration(p.rng.Int63n(int64(span)))
}

// run drives one job's ticks and completion timer.
func (p *Pipeline) run(h *JobHandle) {
	ticker := time.NewTicker(p.cfg.ProgressInterval)
	defer ticker.Stop()
	timer := time.NewTimer(h.Duration)
	defer timer.Stop()

	progress := 0.0
	for {
		select {
		case <-h.stop:
			return
		case <-ticker.C:
			if !p.tick(h, &progress) {
				return
			}
		case <-timer.C:
			p.complete(h)
			return
		}
	}
}

func (p *Pipeline) tick(h *JobHandle, progress *float64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.liveLocked(h) {
		return false
	}

	*progress += p.rng.Float64() * p.cfg.ProgressStepMax
	if *progress > p.cfg.ProgressCap {
		*progress = p.cfg.ProgressCap
	}

	percent := int(math.Round(*progress))
	p.publisher.Publish(model.Event{
		Type:    model.EventProgress,
		JobID:   h.ID,
		Percent: &percent,
	})
	return true
}

func (p *Pipeline) complete(h *JobHandle) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.liveLocked(h) {
		return
	}

	verdict := p.generator.Generate(h.Kind)
	h.verdict = verdict
	h.state = model.JobCompleted
	p.current = nil

	kind := h.Kind
	p.publisher.Publish(model.Event{
		Type:    model.EventVerdict,
		JobID:   h.ID,
		Kind:    &kind,
		Label:   h.Label,
		Verdict: &verdict,
		Frames:  verdict.FrameLabel(h.Kind),
	})

	p.history.Append(h.Kind, verdict)
	p.publisher.Publish(model.Event{
		Type:    model.EventHistory,
		History: p.history.List(),
	})

	p.logger.Info("analysis %s completed: %s %s%% in %ss",
		h.ID, verdict.Badge(), verdict.ConfidenceLabel(), verdict.ProcessingTimeLabel())
	close(h.done)
}

// liveLocked reports whether h still owns the job slot.
func (p *Pipeline) liveLocked(h *JobHandle) bool {
	return h.gen == p.generation && h.state == model.JobRunning
}

func (p *Pipeline) cancelLocked(h *JobHandle, why string) {
	if h.state != model.JobRunning {
		return
	}
	p.generation++
	h.state = model.JobCancelled
	if p.current == h {
		p.current = nil
	}
	close(h.stop)
	close(h.done)

	p.publisher.Publish(model.Event{
		Type:    model.EventCancelled,
		JobID:   h.ID,
		Message: why,
	})
	p.logger.Info("analysis %s cancelled (%s)", h.ID, why)
}

// JobHandle is the caller's view of one analysis job.
type JobHandle struct {
	ID        string
	Kind      model.SourceKind
	Label     string
	StartedAt time.Time
	Duration  time.Duration

	pipeline *Pipeline
	gen      uint64
	stop     chan struct{}
	done     chan struct{}

	// guarded by pipeline.mu
	state   model.JobState
	verdict model.Verdict
}

// Done is closed once the job completes or is cancelled.
func (h *JobHandle) Done() <-chan struct{} {
	return h.done
}

// State returns the job's current lifecycle stage.
func (h *JobHandle) State() model.JobState {
	h.pipeline.mu.Lock()
	defer h.pipeline.mu.Unlock()
	return h.state
}

// Verdict returns the result once the job has completed.
func (h *JobHandle) Verdict() (model.Verdict, bool) {
	h.pipeline.mu.Lock()
	defer h.pipeline.mu.Unlock()
	return h.verdict, h.state == model.JobCompleted
}

// Cancel stops the job if it is still running and reports whether it did.
func (h *JobHandle) Cancel() bool {
	h.pipeline.mu.Lock()
	defer h.pipeline.mu.Unlock()
	if h.state != model.JobRunning {
		return false
	}
	h.pipeline.cancelLocked(h, "cancelled")
	return true
}
