package ai

import (
	"math"
	"math/rand"
	"testing"

	"deepfakedetector/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allKinds = []model.SourceKind{model.SourceImage, model.SourceVideo, model.SourceLiveFrame}

func inRange(t *testing.T, name string, v int, lo, hi int) {
	t.Helper()
	assert.GreaterOrEqual(t, v, lo, name)
	assert.LessOrEqual(t, v, hi, name)
}

func TestGenerate_Ranges(t *testing.T) {
	g := NewGeneratorWithSource(rand.NewSource(1))

	for _, kind := range allKinds {
		for i := 0; i < 2000; i++ {
			v := g.Generate(kind)

			require.GreaterOrEqual(t, v.ConfidencePct, 75.0)
			require.LessOrEqual(t, v.ConfidencePct, 99.0)
			assert.Equal(t, v.ConfidencePct, math.Round(v.ConfidencePct*10)/10, "one decimal")

			if kind == model.SourceLiveFrame {
				require.GreaterOrEqual(t, v.ProcessingTimeSec, 0.8)
				require.LessOrEqual(t, v.ProcessingTimeSec, 1.5)
			} else {
				require.GreaterOrEqual(t, v.ProcessingTimeSec, 0.5)
				require.LessOrEqual(t, v.ProcessingTimeSec, 2.5)
			}

			if kind == model.SourceVideo {
				inRange(t, "frames", v.FrameCount, 15, 119)
			} else {
				require.Equal(t, 1, v.FrameCount)
			}

			inRange(t, "facial", v.Features.Facial, 40, 95)
			inRange(t, "blending", v.Features.Blending, 45, 95)
			inRange(t, "temporal", v.Features.Temporal, 50, 95)
			inRange(t, "attention", v.Features.Attention, 55, 95)
			inRange(t, "texture", v.Features.Texture, 40, 95)
			inRange(t, "compression", v.Features.Compression, 45, 95)
		}
	}
}

func TestGenerate_AuthenticRatio(t *testing.T) {
	g := NewGeneratorWithSource(rand.NewSource(42))

	const n = 20000
	authentic := 0
	for i := 0; i < n; i++ {
		if g.Generate(model.SourceImage).IsAuthentic {
			authentic++
		}
	}

	ratio := float64(authentic) / n
	assert.InDelta(t, AuthenticProbability, ratio, 0.02)
}

func TestGenerate_FeaturesIndependentOfVerdict(t *testing.T) {
	g := NewGeneratorWithSource(rand.NewSource(7))

	// Fakes still get plausible scores: every channel can go high for either verdict.
	var maxFacial = map[bool]int{}
	for i := 0; i < 5000; i++ {
		v := g.Generate(model.SourceVideo)
		if v.Features.Facial > maxFacial[v.IsAuthentic] {
			maxFacial[v.IsAuthentic] = v.Features.Facial
		}
	}
	assert.GreaterOrEqual(t, maxFacial[true], 90)
	assert.GreaterOrEqual(t, maxFacial[false], 90)
}

func TestGenerate_Deterministic(t *testing.T) {
	a := NewGeneratorWithSource(rand.NewSource(99))
	b := NewGeneratorWithSource(rand.NewSource(99))

	for i := 0; i < 50; i++ {
		assert.Equal(t, a.Generate(model.SourceVideo), b.Generate(model.SourceVideo))
	}
}

func TestScoreRange_Max(t *testing.T) {
	assert.Equal(t, 94, FacialRange.Max())
	assert.Equal(t, 94, AttentionRange.Max())
}
