package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// SourceKind tells the pipeline what sort of media a capture carries.
type SourceKind int

const (
	SourceImage SourceKind = iota
	SourceVideo
	SourceLiveFrame
)

// String returns the lowercase wire name of the kind.
func (k SourceKind) String() string {
	switch k {
	case SourceImage:
		return "image"
	case SourceVideo:
		return "video"
	case SourceLiveFrame:
		return "live"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Category is the label shown in the history list.
func (k SourceKind) Category() string {
	switch k {
	case SourceVideo:
		return CategoryVideo
	case SourceLiveFrame:
		return CategoryLive
	default:
		return CategoryImage
	}
}

func (k SourceKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// CaptureRequest is one unit of user-submitted media. It is built once and
// handed to the pipeline, which drops it when the job starts.
type CaptureRequest struct {
	Kind     SourceKind `json:"kind"`
	Label    string     `json:"label"`
	MIMEType string     `json:"mime_type,omitempty"`
	Payload  []byte     `json:"-"`
}

// LiveCaptureLabel is the label attached to camera snapshots.
const LiveCaptureLabel = "Camera Capture"

// Mode is the input mode the UI is currently in.
type Mode string

const (
	ModeImage  Mode = "image"
	ModeVideo  Mode = "video"
	ModeCamera Mode = "camera"
)

// ParseMode accepts the wire names of the three modes.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeImage, ModeVideo, ModeCamera:
		return m, nil
	default:
		return "", fmt.Errorf("unknown mode %q", s)
	}
}

// Accepts reports whether a file with the declared MIME type may be
// submitted while in mode m. Camera mode takes no files.
func (m Mode) Accepts(mimeType string) bool {
	mimeType = strings.ToLower(mimeType)
	switch m {
	case ModeImage:
		return strings.HasPrefix(mimeType, "image/")
	case ModeVideo:
		return strings.HasPrefix(mimeType, "video/")
	default:
		return false
	}
}

// SourceKind maps a file mode to the capture kind it produces.
func (m Mode) SourceKind() SourceKind {
	if m == ModeVideo {
		return SourceVideo
	}
	return SourceImage
}

// JobState is the lifecycle stage of one analysis job.
type JobState int

const (
	JobRunning JobState = iota
	JobCompleted
	JobCancelled
)

func (s JobState) String() string {
	switch s {
	case JobRunning:
		return "running"
	case JobCompleted:
		return "completed"
	case JobCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

func (s JobState) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}
