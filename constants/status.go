package constants

// ReanchorStatus is the outcome of re-anchoring one persisted span against a new view text.
type ReanchorStatus string

// Stable values (logged and returned by the re-anchoring worker).
const (
	ReanchorMoved     ReanchorStatus = "MOVED"     // offsets and reference text rewritten
	ReanchorUnchanged ReanchorStatus = "UNCHANGED" // reference text already matches
	ReanchorStale     ReanchorStatus = "STALE"     // no match; original reference kept
	ReanchorDropped   ReanchorStatus = "DROPPED"   // relocated to zero width; left for review
	ReanchorFailed    ReanchorStatus = "FAILED"    // persistence error
)
