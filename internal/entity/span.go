package entity

import (
	"time"
)

// Span is an annotation as held by a view: a half-open rune range [Start, End) of the
// current view text plus a comment.
type Span struct {
	ID        string `json:"id"`
	Start     int    `json:"start"`
	End       int    `json:"end"`
	Comment   string `json:"comment"`
	Persisted bool   `json:"persisted"`
	// Strategy names the relocation strategy that produced Start/End on load.
	Strategy string `json:"strategy,omitempty"`
}

// Len returns the number of characters covered.
func (s Span) Len() int { return s.End - s.Start }

// PersistedSpan represents a stored annotation for data transfer between layers.
// Start and End are relative to FullText, not to whatever text is displayed now.
type PersistedSpan struct {
	ID        string      `json:"id"`
	Context   ViewContext `json:"context"`
	Start     int         `json:"start"`
	End       int         `json:"end"`
	Comment   string      `json:"comment"`
	FullText  string      `json:"full_text"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}
