package notes

// EventType tags one event on a processing stream. The set is closed; the
// transport rejects anything else at its boundary.
type EventType string

const (
	EventStatus        EventType = "status"
	EventMetadata      EventType = "metadata"
	EventChunk         EventType = "chunk"
	EventNotesComplete EventType = "notes_complete"
	EventTools         EventType = "tools"
	EventComplete      EventType = "complete"
	EventError         EventType = "error"
)

// Event is the closed variant type carried by a processing stream. One run
// emits, in order: metadata (≤1, first), then chunk* interleaved with the
// tools event and notes_complete, then exactly one terminal complete or
// error. An error may appear at any point and ends the stream immediately.
type Event interface {
	Type() EventType
}

// StatusEvent is a coarse progress marker for UIs ("generating").
type StatusEvent struct {
	Message string
}

// MetadataEvent carries the video metadata, emitted before any generated
// content so callers can render video information immediately. Transcript
// holds the full caption text when available.
type MetadataEvent struct {
	Meta       VideoMetadata
	Transcript string
}

// ChunkEvent is one increment of notes text. Concatenating all chunks of a
// successful run, in emission order, reproduces the final notes exactly.
type ChunkEvent struct {
	Data string
}

// NotesCompleteEvent marks the end of the notes stream. No chunk follows it.
type NotesCompleteEvent struct{}

// ToolsEvent carries the full ordered tool list once extraction finished.
type ToolsEvent struct {
	Tools []ToolMention
}

// CompleteEvent is the successful terminal event. FailedBranch is empty, or
// names the single generator branch that failed and was substituted.
type CompleteEvent struct {
	FailedBranch   string
	CacheHit       bool
	ProcessingTime float64
}

// ErrorEvent is the failing terminal event.
type ErrorEvent struct {
	Reason string
}

func (StatusEvent) Type() EventType        { return EventStatus }
func (MetadataEvent) Type() EventType      { return EventMetadata }
func (ChunkEvent) Type() EventType         { return EventChunk }
func (NotesCompleteEvent) Type() EventType { return EventNotesComplete }
func (ToolsEvent) Type() EventType         { return EventTools }
func (CompleteEvent) Type() EventType      { return EventComplete }
func (ErrorEvent) Type() EventType         { return EventError }

// IsTerminal reports whether ev ends the stream.
func IsTerminal(ev Event) bool {
	switch ev.Type() {
	case EventComplete, EventError:
		return true
	}
	return false
}
