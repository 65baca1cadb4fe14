// Package session holds the in-memory state of one user session: the
// current document, its processing status and the chat transcript.
//
// State performs no I/O. Mutations are meant to be called only by the
// session controller; the read accessors return copies so callers never
// alias the transcript.
package session

import (
	"sync"

	"github.com/liliang-cn/pdfqa/internal/domain"
)

// State is the per-session state value.
type State struct {
	mu         sync.RWMutex
	document   *domain.DocumentHandle
	status     domain.ProcessingStatus
	transcript []*domain.Message
	lastError  string
}

// NewState returns an empty state with status NotUploaded.
func NewState() *State {
	return &State{status: domain.StatusNotUploaded}
}

// Document returns the current document handle, or nil.
func (s *State) Document() *domain.DocumentHandle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.document
}

// Status returns the current processing status.
func (s *State) Status() domain.ProcessingStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Transcript returns the chat messages, oldest first.
func (s *State) Transcript() []*domain.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Message, len(s.transcript))
	copy(out, s.transcript)
	return out
}

// LastError returns the most recent processing failure message.
func (s *State) LastError() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastError
}

// Snapshot is a consistent copy of State taken under one lock.
type Snapshot struct {
	Document   *domain.DocumentHandle
	Status     domain.ProcessingStatus
	Transcript []*domain.Message
	LastError  string
}

// Snapshot returns all fields as of a single point in time.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	transcript := make([]*domain.Message, len(s.transcript))
	copy(transcript, s.transcript)
	return Snapshot{
		Document:   s.document,
		Status:     s.status,
		Transcript: transcript,
		LastError:  s.lastError,
	}
}

// SetDocument replaces the current document. The status is reset to
// Uploaded and the transcript is cleared.
func (s *State) SetDocument(handle *domain.DocumentHandle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.document = handle
	s.status = domain.StatusUploaded
	s.transcript = nil
	s.lastError = ""
}

// SetStatus sets the processing status.
func (s *State) SetStatus(status domain.ProcessingStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
}

// SetLastError records (or with "" clears) the last processing failure.
func (s *State) SetLastError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastError = msg
}

// AppendMessage appends msg to the transcript.
func (s *State) AppendMessage(msg *domain.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcript = append(s.transcript, msg)
}

// ClearTranscript empties the transcript. Document and status are kept.
func (s *State) ClearTranscript() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcript = nil
}
