package ai

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"deepfakedetector/internal/model"
)

// Probability that a simulated verdict comes out authentic.
const AuthenticProbability = 0.65

// scoreRange is a half-open integer range [Min, Min+Width).
type scoreRange struct {
	Min   int
	Width int
}

func (r scoreRange) Max() int { return r.Min + r.Width - 1 }

// Feature channel ranges. No channel is tied to the verdict.
var (
	FacialRange      = scoreRange{Min: 40, Width: 55}
	BlendingRange    = scoreRange{Min: 45, Width: 50}
	TemporalRange    = scoreRange{Min: 50, Width: 45}
	AttentionRange   = scoreRange{Min: 55, Width: 40}
	TextureRange     = scoreRange{Min: 40, Width: 55}
	CompressionRange = scoreRange{Min: 45, Width: 50}
)

const (
	confidenceMin = 75.0
	confidenceMax = 99.0

	liveTimeMin = 0.8
	liveTimeMax = 1.5
	fileTimeMin = 0.5
	fileTimeMax = 2.5

	videoFramesMin   = 15
	videoFramesWidth = 105
)

// Generator stands in for the detection model. It is stateless apart from its
// random source, which is guarded so one Generator can serve every caller.
type Generator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewGenerator seeds a Generator from the clock.
func NewGenerator() *Generator {
	return NewGeneratorWithSource(rand.NewSource(time.Now().UnixNano()))
}

// NewGeneratorWithSource makes results reproducible for a given source.
func NewGeneratorWithSource(src rand.Source) *Generator {
	return &Generator{rng: rand.New(src)}
}

// Generate draws a fresh verdict for a capture of the given kind.
func (g *Generator) Generate(kind model.SourceKind) model.Verdict {
	g.mu.Lock()
	defer g.mu.Unlock()

	v := model.Verdict{
		IsAuthentic:   g.rng.Float64() < AuthenticProbability,
		ConfidencePct: round(g.uniform(confidenceMin, confidenceMax), 1),
		FrameCount:    1,
	}

	if kind == model.SourceLiveFrame {
		v.ProcessingTimeSec = round(g.uniform(liveTimeMin, liveTimeMax), 2)
	} else {
		v.ProcessingTimeSec = round(g.uniform(fileTimeMin, fileTimeMax), 2)
	}

	if kind == model.SourceVideo {
		v.FrameCount = videoFramesMin + g.rng.Intn(videoFramesWidth)
	}

	v.Features = model.FeatureScores{
		Facial:      g.score(FacialRange),
		Blending:    g.score(BlendingRange),
		Temporal:    g.score(TemporalRange),
		Attention:   g.score(AttentionRange),
		Texture:     g.score(TextureRange),
		Compression: g.score(CompressionRange),
	}
	return v
}

func (g *Generator) uniform(lo, hi float64) float64 {
	return lo + g.rng.Float64()*(hi-lo)
}

func (g *Generator) score(r scoreRange) int {
	return r.Min + g.rng.Intn(r.Width)
}

// round keeps digits decimals. A draw just under an upper bound rounds to
// the bound itself, never past it.
func round(v float64, digits int) float64 {
	p := math.Pow(10, float64(digits))
	return math.Round(v*p) / p
}
