// Package transcript holds a session's append-only chat history.
package transcript

import (
	"fmt"
	"time"
)

// Role identifies who produced a turn.
type Role string

// Role constants.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message of the chat transcript.
type Turn struct {
	Role    Role
	Content string
	At      time.Time
}

// Transcript is an append-only ordered sequence of turns. The zero value is empty and usable.
type Transcript struct {
	turns []Turn
}

// Append adds turns in order. Unknown roles are rejected and nothing is appended.
func (t *Transcript) Append(turns ...Turn) error {
	for _, turn := range turns {
		if turn.Role != RoleUser && turn.Role != RoleAssistant {
			return fmt.Errorf("invalid transcript role %q", turn.Role)
		}
	}
	t.turns = append(t.turns, turns...)
	return nil
}

// Turns returns a copy of the transcript.
func (t *Transcript) Turns() []Turn {
	out := make([]Turn, len(t.turns))
	copy(out, t.turns)
	return out
}

// Len returns the number of turns.
func (t *Transcript) Len() int { return len(t.turns) }
