package dynamo

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/extract-annotator/internal/entity"
)

const (
	// SpanIDIndex is the GSI keyed by span id.
	SpanIDIndex = "span-id-index"

	filePrefix = "FILE#"
	viewPrefix = "VIEW#"
	spanPrefix = "SPAN#"
)

func filePK(fileID uuid.UUID) string {
	return filePrefix + fileID.String()
}

// viewPrefixSK sorts spans of a view together; segments are zero padded so
// a file query returns them in segment order.
func viewPrefixSK(vc entity.ViewContext) string {
	return fmt.Sprintf("%s%s#%06d#", viewPrefix, vc.JobID, vc.Segment)
}

func spanSK(vc entity.ViewContext, id string) string {
	return viewPrefixSK(vc) + spanPrefix + id
}

func spanGSIKey(id string) string {
	return spanPrefix + id
}

// newSpanID mints an id that carries its view, so the base table key can be
// rebuilt without the span-id index.
func newSpanID(vc entity.ViewContext) string {
	return fmt.Sprintf("%s.%s.%d.%s", vc.FileID, vc.JobID, vc.Segment, uuid.NewString())
}

// viewFromSpanID recovers the view of an id minted by newSpanID.
func viewFromSpanID(id string) (entity.ViewContext, bool) {
	parts := strings.Split(id, ".")
	if len(parts) != 4 {
		return entity.ViewContext{}, false
	}
	fileID, err := uuid.Parse(parts[0])
	if err != nil {
		return entity.ViewContext{}, false
	}
	jobID, err := uuid.Parse(parts[1])
	if err != nil {
		return entity.ViewContext{}, false
	}
	seg, err := strconv.Atoi(parts[2])
	if err != nil || seg < 0 {
		return entity.ViewContext{}, false
	}
	if _, err := uuid.Parse(parts[3]); err != nil {
		return entity.ViewContext{}, false
	}
	return entity.ViewContext{FileID: fileID, JobID: jobID, Segment: seg}, true
}
