package core

import (
	"time"

	"github.com/google/uuid"
)

// Thread is a conversation persisted across loop executions under an opaque identifier.
type Thread struct {
	ID           string        `json:"id"`
	Conversation *Conversation `json:"-"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// NewThread creates an empty thread. An empty id is replaced with a fresh one.
func NewThread(id string) *Thread {
	if id == "" {
		id = NewID()
	}
	now := time.Now().UTC()
	return &Thread{ID: id, Conversation: &Conversation{}, CreatedAt: now, UpdatedAt: now}
}

// Clone returns a deep copy of the thread.
func (t *Thread) Clone() *Thread {
	clone := *t
	if t.Conversation != nil {
		clone.Conversation = t.Conversation.Clone()
	} else {
		clone.Conversation = &Conversation{}
	}
	return &clone
}

// NewID generates a new unique identifier for threads and synthesized tool call ids.
func NewID() string { return uuid.NewString() }
