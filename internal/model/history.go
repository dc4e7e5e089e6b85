package model

// History categories and results.
const (
	CategoryImage = "Image"
	CategoryVideo = "Video"
	CategoryLive  = "Live"

	ResultReal = "Real"
	ResultFake = "Fake"
)

// HistoryTimeLayout renders timestamps like "Oct 19, 2026, 3:04 PM".
const HistoryTimeLayout = "Jan 2, 2006, 3:04 PM"

// HistoryEntry is one row of the detection history. Entries are never mutated.
type HistoryEntry struct {
	Timestamp     string `json:"timestamp"`
	Category      string `json:"type"`
	Result        string `json:"result"`
	ConfidencePct string `json:"confidence"`
}
