package notes

import "errors"

// Error taxonomy for one processing run. Only ErrTranscriptUnavailable and
// ErrBothGeneratorsFailed terminate a run; single-branch generation failures
// degrade to a partial result, and store failures degrade to a cache miss
// (read) or a logged warning (write).
var (
	ErrTranscriptUnavailable = errors.New("transcript unavailable")
	ErrNotesGeneration       = errors.New("notes generation failed")
	ErrToolExtraction        = errors.New("tool extraction failed")
	ErrBothGeneratorsFailed  = errors.New("both generators failed")
)
