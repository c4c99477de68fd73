package entity

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// ViewContext identifies the text a page displays: one segment (page, slice, chunk)
// of one extraction job's output for one file.
type ViewContext struct {
	FileID  uuid.UUID `json:"file_id"`
	JobID   uuid.UUID `json:"job_id"`
	Segment int       `json:"segment"`
}

// Key renders the context as "file/job/segment".
func (c ViewContext) Key() string {
	return fmt.Sprintf("%s/%s/%d", c.FileID, c.JobID, c.Segment)
}

func (c ViewContext) String() string { return c.Key() }

// ParseViewKey is the inverse of Key.
func ParseViewKey(key string) (ViewContext, error) {
	parts := strings.Split(key, "/")
	if len(parts) != 3 {
		return ViewContext{}, fmt.Errorf("view key %q: want file/job/segment", key)
	}
	fileID, err := uuid.Parse(parts[0])
	if err != nil {
		return ViewContext{}, fmt.Errorf("view key %q: file id: %w", key, err)
	}
	jobID, err := uuid.Parse(parts[1])
	if err != nil {
		return ViewContext{}, fmt.Errorf("view key %q: job id: %w", key, err)
	}
	seg, err := strconv.Atoi(parts[2])
	if err != nil || seg < 0 {
		return ViewContext{}, fmt.Errorf("view key %q: invalid segment", key)
	}
	return ViewContext{FileID: fileID, JobID: jobID, Segment: seg}, nil
}
