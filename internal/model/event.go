package model

// EventType names the messages sent to the presentation boundary.
type EventType string

const (
	EventProgress  EventType = "progress"
	EventVerdict   EventType = "verdict"
	EventCancelled EventType = "cancelled"
	EventHistory   EventType = "history"
	EventCamera    EventType = "camera"
	EventNotice    EventType = "notice"
	EventMode      EventType = "mode"
)

// Event is the envelope every core notification travels in. Only the fields
// relevant to Type are set.
type Event struct {
	Type    EventType      `json:"type"`
	JobID   string         `json:"job_id,omitempty"`
	Kind    *SourceKind    `json:"kind,omitempty"`
	Label   string         `json:"label,omitempty"`
	Percent *int           `json:"percent,omitempty"`
	Verdict *Verdict       `json:"verdict,omitempty"`
	Frames  string         `json:"frames,omitempty"`
	History []HistoryEntry `json:"history,omitempty"`
	Camera  *CameraStatus  `json:"camera,omitempty"`
	Mode    Mode           `json:"mode,omitempty"`
	Message string         `json:"message,omitempty"`
	Reason  ErrorReason    `json:"reason,omitempty"`
}

// Publisher receives core events. Implementations must not block and must
// not call back into the component that publishes.
type Publisher interface {
	Publish(Event)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(Event)

func (f PublisherFunc) Publish(e Event) { f(e) }

// Discard drops every event.
var Discard Publisher = PublisherFunc(func(Event) {})
