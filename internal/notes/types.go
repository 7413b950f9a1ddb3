package notes

import "time"

// VideoMetadata describes one YouTube video. Duration is in whole seconds
// and never negative.
type VideoMetadata struct {
	VideoID  string `json:"video_id"`
	Title    string `json:"video_title"`
	Channel  string `json:"channel_name"`
	Duration int    `json:"duration"`
	URL      string `json:"video_url,omitempty"`
}

// TranscriptSegment is one caption line with its start offset in seconds.
type TranscriptSegment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
}

// Transcript is the immutable output of a transcript fetch: metadata plus
// the ordered caption segments and their concatenation.
type Transcript struct {
	Meta     VideoMetadata       `json:"metadata"`
	Segments []TranscriptSegment `json:"segments"`
	FullText string              `json:"full_text"`
}

// ToolMention is one AI tool, framework, library, model, or platform the
// extractor found in a transcript. Timestamp and Confidence are pointers so
// "absent" is distinguishable from zero.
type ToolMention struct {
	Name       string   `json:"tool_name"`
	Category   string   `json:"category,omitempty"`
	Context    string   `json:"context_snippet,omitempty"`
	Timestamp  *float64 `json:"timestamp,omitempty"`
	Confidence *float64 `json:"confidence_score,omitempty"`
	Usage      string   `json:"usage_context,omitempty"`
}

// Branch names recorded on a Result when exactly one generator failed.
const (
	BranchNotes = "notes"
	BranchTools = "tools"
)

// Result is the persisted unit of work: everything one processing run
// produced for a video. Never mutated after creation; a newer run for the
// same video supersedes it in the store (last write wins).
type Result struct {
	VideoID        string        `json:"video_id"`
	Meta           VideoMetadata `json:"video_metadata"`
	Transcript     string        `json:"transcript,omitempty"`
	Notes          string        `json:"lecture_notes"`
	Tools          []ToolMention `json:"ai_tools"`
	FailedBranch   string        `json:"failed_branch,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	ProcessingTime float64       `json:"processing_time_seconds"`
}

// NotesDelta is one increment of streamed notes text. A non-nil Err means
// the stream failed; the channel is closed after the final delta either way.
type NotesDelta struct {
	Text string
	Err  error
}
