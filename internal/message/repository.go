package message

import (
	"context"
	"time"
)

// Query narrows a log read. A zero Query returns the whole retained log.
type Query struct {
	Sender string
	Since  time.Time
	Limit  int
}

type Repository interface {
	// Append adds a message to the log, evicting the oldest entries once
	// the retention cap is reached.
	Append(ctx context.Context, m *Message) error
	// List returns matching messages, newest first.
	List(ctx context.Context, q Query) ([]*Message, error)
}
