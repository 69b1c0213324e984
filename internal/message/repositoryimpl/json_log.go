package repositoryimpl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/changepilot/changepilot/internal/message"
	"github.com/changepilot/changepilot/pkg/cerr"
	"github.com/changepilot/changepilot/pkg/storage"
)

const logPath = "messages/log.json"

// JSONLog keeps the whole bounded log as one JSON document. The retained
// window is small enough that rewriting it on every append stays cheap.
type JSONLog struct {
	storage storage.Storage
	cap     int
	mu      sync.Mutex
}

func NewJSONLog(s storage.Storage) *JSONLog {
	return &JSONLog{storage: s, cap: message.MaxRetained}
}

func (l *JSONLog) Append(ctx context.Context, m *message.Message) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.load(ctx)
	if err != nil {
		return err
	}
	entries = append(entries, m)
	if len(entries) > l.cap {
		entries = entries[len(entries)-l.cap:]
	}

	data, err := json.Marshal(entries)
	if err != nil {
		return cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to marshal message log: %w", err))
	}
	if err := l.storage.Write(ctx, logPath, data); err != nil {
		return cerr.WrapStorageWriteError("message log", err)
	}
	return nil
}

func (l *JSONLog) List(ctx context.Context, q message.Query) ([]*message.Message, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.load(ctx)
	if err != nil {
		return nil, err
	}

	// Entries are stored oldest first; walk backwards for newest first.
	matched := make([]*message.Message, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		m := entries[i]
		if q.Sender != "" && m.Sender != q.Sender {
			continue
		}
		if !q.Since.IsZero() && m.Timestamp.Before(q.Since) {
			continue
		}
		matched = append(matched, m)
		if q.Limit > 0 && len(matched) >= q.Limit {
			break
		}
	}
	return matched, nil
}

func (l *JSONLog) load(ctx context.Context) ([]*message.Message, error) {
	data, err := l.storage.Read(ctx, logPath)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, cerr.WrapStorageReadError("message log", err)
	}
	var entries []*message.Message
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to unmarshal message log: %w", err))
	}
	return entries, nil
}
