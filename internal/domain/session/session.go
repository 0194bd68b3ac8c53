// Package session defines the per-user conversation state: the current
// document index and the chat transcript.
package session

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/kailas-cloud/bioscope/internal/domain/index"
	"github.com/kailas-cloud/bioscope/internal/domain/transcript"
)

// State is the ingestion state of a session.
type State string

// State constants.
const (
	StateNoIndex    State = "no_index"
	StateIndexReady State = "index_ready"
)

// Session is an explicit per-session context object. Actions on one session
// are serialized with Lock/Unlock; accessors marked "locked" require it.
type Session struct {
	mu sync.Mutex

	id         string
	createdAt  time.Time
	lastActive atomic.Int64

	index      *index.Index
	sources    []string
	transcript transcript.Transcript
	closed     bool
}

// New creates an empty session with a random id.
func New(now time.Time) *Session {
	s := &Session{
		id:        uuid.NewString(),
		createdAt: now,
	}
	s.lastActive.Store(now.UnixNano())
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// CreatedAt returns the creation time.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// Lock acquires the session for one action.
func (s *Session) Lock() { s.mu.Lock() }

// Unlock releases the session.
func (s *Session) Unlock() { s.mu.Unlock() }

// TryLock acquires the session only if no action is running.
func (s *Session) TryLock() bool { return s.mu.TryLock() }

// Close drops the index and transcript. A closed session accepts no further
// actions. Locked.
func (s *Session) Close() {
	s.closed = true
	s.index = nil
	s.sources = nil
	s.transcript = transcript.Transcript{}
}

// Closed reports whether the session was deleted or evicted. Locked.
func (s *Session) Closed() bool { return s.closed }

// Touch records activity. Safe without the lock.
func (s *Session) Touch(now time.Time) { s.lastActive.Store(now.UnixNano()) }

// LastActive returns the last activity time. Safe without the lock.
func (s *Session) LastActive() time.Time { return time.Unix(0, s.lastActive.Load()) }

// IdleSince reports whether the session has been idle for at least ttl.
func (s *Session) IdleSince(now time.Time, ttl time.Duration) bool {
	return now.Sub(s.LastActive()) >= ttl
}

// Index returns the current index or nil. Locked.
func (s *Session) Index() *index.Index { return s.index }

// State returns the ingestion state. Locked.
func (s *Session) State() State {
	if s.index == nil {
		return StateNoIndex
	}
	return StateIndexReady
}

// Publish replaces the index and the source list. Locked.
func (s *Session) Publish(idx *index.Index, sources []string) {
	s.index = idx
	s.sources = append([]string(nil), sources...)
}

// Sources returns the names of the documents behind the current index. Locked.
func (s *Session) Sources() []string {
	return append([]string(nil), s.sources...)
}

// AppendExchange records a question and its answer as two turns. Locked.
func (s *Session) AppendExchange(question, answer string, at time.Time) error {
	return s.transcript.Append(
		transcript.Turn{Role: transcript.RoleUser, Content: question, At: at},
		transcript.Turn{Role: transcript.RoleAssistant, Content: answer, At: at},
	)
}

// Turns returns a copy of the transcript. Locked.
func (s *Session) Turns() []transcript.Turn { return s.transcript.Turns() }

// Snapshot is a read-only view of a session.
type Snapshot struct {
	ID         string
	CreatedAt  time.Time
	LastActive time.Time
	State      State
	Model      string
	Dimensions int
	Chunks     int
	Sources    []string
	Turns      int
}

// Snapshot captures the session's current state. Locked.
func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{
		ID:         s.id,
		CreatedAt:  s.createdAt,
		LastActive: s.LastActive(),
		State:      s.State(),
		Sources:    s.Sources(),
		Turns:      s.transcript.Len(),
	}
	if s.index != nil {
		snap.Model = s.index.Model()
		snap.Dimensions = s.index.Dimensions()
		snap.Chunks = s.index.Len()
	}
	return snap
}
