// Package history keeps a bounded window of conversation turns used as oracle context.
package history

import (
	"encoding/json"
	"fmt"
)

// DefaultCapacity is the number of turns sent to the oracle.
const DefaultCapacity = 4

// Role is the author of a turn.
type Role string

// Roles.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message in the conversation.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Ring is a fixed-capacity FIFO of turns. When full, Push evicts the oldest turn.
// The zero value is unusable; create with New.
type Ring struct {
	buf   []Turn
	start int
	size  int
}

// New creates an empty ring. Non-positive capacity falls back to DefaultCapacity.
func New(capacity int) *Ring {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Ring{buf: make([]Turn, capacity)}
}

// Cap returns the capacity.
func (r *Ring) Cap() int { return len(r.buf) }

// Len returns the number of stored turns.
func (r *Ring) Len() int { return r.size }

// Push appends a turn, evicting the oldest one when full.
func (r *Ring) Push(role Role, content string) {
	t := Turn{Role: role, Content: content}
	if r.size < len(r.buf) {
		r.buf[(r.start+r.size)%len(r.buf)] = t
		r.size++
		return
	}
	r.buf[r.start] = t
	r.start = (r.start + 1) % len(r.buf)
}

// Turns returns the stored turns, oldest first. The slice is a copy.
func (r *Ring) Turns() []Turn {
	out := make([]Turn, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.buf[(r.start+i)%len(r.buf)]
	}
	return out
}

// Reset drops every turn.
func (r *Ring) Reset() {
	r.start, r.size = 0, 0
}

type wireRing struct {
	Capacity int    `json:"capacity"`
	Turns    []Turn `json:"turns"`
}

// MarshalJSON encodes the ring as its capacity and ordered turns.
func (r *Ring) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireRing{Capacity: len(r.buf), Turns: r.Turns()})
}

// UnmarshalJSON restores a ring. Surplus turns keep only the newest.
func (r *Ring) UnmarshalJSON(data []byte) error {
	var w wireRing
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("decode history: %w", err)
	}
	*r = *New(w.Capacity)
	for _, t := range w.Turns {
		r.Push(t.Role, t.Content)
	}
	return nil
}
