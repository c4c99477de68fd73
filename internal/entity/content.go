package entity

import (
	"time"
)

// Content is the view text stored for one ViewContext.
type Content struct {
	Context   ViewContext `json:"context"`
	Format    string      `json:"format"`
	Text      string      `json:"text"`
	UpdatedAt time.Time   `json:"updated_at"`
}
