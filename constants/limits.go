package constants

import "time"

const (
	// MaxCommentLength bounds a span comment, in characters.
	MaxCommentLength = 8000
	// MaxViewTextLength bounds a stored view text, in characters.
	MaxViewTextLength = 2 << 20
	// LocalIDPrefix marks ids generated client-side before the backend assigns one.
	LocalIDPrefix = "local-"
	// RenderTimeout bounds one shared server-side render.
	RenderTimeout = 30 * time.Second
)
