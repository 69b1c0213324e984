package message

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// MaxRetained caps the log: once full, the oldest entries are evicted.
const MaxRetained = 1000

type Kind string

const (
	KindText  Kind = "text"
	KindVoice Kind = "voice"
)

// Message is an immutable inbound log entry, independent of whether a task
// came out of it.
type Message struct {
	ID        string            `json:"id"`
	Sender    string            `json:"sender"`
	Content   string            `json:"content"`
	Kind      Kind              `json:"type"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

func New(sender, content string, kind Kind, metadata map[string]string) *Message {
	if kind == "" {
		kind = KindText
	}
	return &Message{
		ID:        ulid.Make().String(),
		Sender:    sender,
		Content:   content,
		Kind:      kind,
		Metadata:  metadata,
		Timestamp: time.Now().UTC(),
	}
}
