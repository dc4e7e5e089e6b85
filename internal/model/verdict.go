package model

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// FeatureScores are the six simulated sub-scores, each an integer percentage.
type FeatureScores struct {
	Facial      int `json:"facial"`
	Blending    int `json:"blending"`
	Temporal    int `json:"temporal"`
	Attention   int `json:"attention"`
	Texture     int `json:"texture"`
	Compression int `json:"compression"`
}

// Verdict is the outcome of one simulated analysis.
type Verdict struct {
	IsAuthentic       bool          `json:"is_authentic"`
	ConfidencePct     float64       `json:"confidence"`
	ProcessingTimeSec float64       `json:"processing_time"`
	FrameCount        int           `json:"frames"`
	Features          FeatureScores `json:"features"`
}

// ConfidenceLabel formats the confidence with one decimal digit.
func (v Verdict) ConfidenceLabel() string {
	return strconv.FormatFloat(v.ConfidencePct, 'f', 1, 64)
}

// ProcessingTimeLabel formats the processing time with two decimal digits.
func (v Verdict) ProcessingTimeLabel() string {
	return strconv.FormatFloat(v.ProcessingTimeSec, 'f', 2, 64)
}

// Result is the history result word.
func (v Verdict) Result() string {
	if v.IsAuthentic {
		return ResultReal
	}
	return ResultFake
}

// Badge is the headline shown on the results card.
func (v Verdict) Badge() string {
	if v.IsAuthentic {
		return "Real"
	}
	return "Deepfake"
}

// FrameLabel is the frame caption for a verdict produced from kind.
func (v Verdict) FrameLabel(kind SourceKind) string {
	switch kind {
	case SourceLiveFrame:
		return "1 frame analyzed"
	case SourceImage:
		return "1 frame"
	default:
		return fmt.Sprintf("%d frames", v.FrameCount)
	}
}

// MarshalJSON keeps the fixed-precision strings the renderer displays.
func (v Verdict) MarshalJSON() ([]byte, error) {
	type Alias Verdict
	return json.Marshal(&struct {
		ConfidencePct     string `json:"confidence"`
		ProcessingTimeSec string `json:"processing_time"`
		Badge             string `json:"badge"`
		Alias
	}{
		ConfidencePct:     v.ConfidenceLabel(),
		ProcessingTimeSec: v.ProcessingTimeLabel(),
		Badge:             v.Badge(),
		Alias:             (Alias)(v),
	})
}
