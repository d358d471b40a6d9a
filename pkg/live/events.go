package live

// Event is a notification emitted by a live session. Consumers read them
// from Session.Events(); emission is non-blocking and events may be dropped
// if the consumer stops reading.
type Event interface {
	eventType() string
}

// TranscriptEvent signals one new transcript entry.
type TranscriptEvent struct {
	Entry TranscriptEntry
}

func (e TranscriptEvent) eventType() string { return "transcript" }

// SpeakingChangedEvent signals the playback "speaking" flag flipping.
type SpeakingChangedEvent struct {
	Speaking bool
}

func (e SpeakingChangedEvent) eventType() string { return "speaking_changed" }

// ToolBatchEvent signals that a tool-call batch was dispatched and answered.
type ToolBatchEvent struct {
	Calls     int
	Succeeded int
}

func (e ToolBatchEvent) eventType() string { return "tool_batch" }

// SnapshotSentEvent signals one workspace snapshot forwarded to the agent.
type SnapshotSentEvent struct {
	Version int64
	Bytes   int
}

func (e SnapshotSentEvent) eventType() string { return "snapshot_sent" }

// ErrorEvent carries a user-visible session error.
type ErrorEvent struct {
	Err error
}

func (e ErrorEvent) eventType() string { return "error" }

// ClosedEvent signals the session finished tearing down.
type ClosedEvent struct {
	Reason string
}

func (e ClosedEvent) eventType() string { return "closed" }
