package live

import (
	"sync"
	"time"
)

// TranscriptEntry is one finalized line of the conversation.
type TranscriptEntry struct {
	Speaker      string    `json:"speaker"`
	Text         string    `json:"text"`
	ArrivalOrder int       `json:"arrival_order"`
	At           time.Time `json:"at"`
}

// TranscriptStore is an append-only transcript shared by the session (the
// only producer) and its consumers. Entries are never reordered or rewritten;
// a new session starts with a fresh store.
type TranscriptStore struct {
	mu      sync.RWMutex
	entries []TranscriptEntry
}

// NewTranscriptStore creates an empty transcript store.
func NewTranscriptStore() *TranscriptStore {
	return &TranscriptStore{}
}

// Append adds one entry in arrival order and returns it with its order set.
func (s *TranscriptStore) Append(speaker, text string) TranscriptEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := TranscriptEntry{
		Speaker:      speaker,
		Text:         text,
		ArrivalOrder: len(s.entries),
		At:           time.Now(),
	}
	s.entries = append(s.entries, entry)
	return entry
}

// Len returns the number of entries appended so far.
func (s *TranscriptStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Entries returns a copy of all entries.
func (s *TranscriptStore) Entries() []TranscriptEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]TranscriptEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Tail returns a copy of at most the last n entries.
func (s *TranscriptStore) Tail(n int) []TranscriptEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n <= 0 || len(s.entries) == 0 {
		return nil
	}
	if n > len(s.entries) {
		n = len(s.entries)
	}
	out := make([]TranscriptEntry, n)
	copy(out, s.entries[len(s.entries)-n:])
	return out
}
