package repositoryimpl

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/changepilot/changepilot/internal/message"
	"github.com/changepilot/changepilot/pkg/storage"
)

func newTestLog(t *testing.T) *JSONLog {
	t.Helper()
	s, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	return NewJSONLog(s)
}

func TestJSONLogAppendAndList(t *testing.T) {
	ctx := context.Background()
	log := newTestLog(t)

	require.NoError(t, log.Append(ctx, message.New("alice", "first", message.KindText, nil)))
	require.NoError(t, log.Append(ctx, message.New("bob", "second", message.KindVoice, map[string]string{"media_url": "https://example.com/v.ogg"})))
	require.NoError(t, log.Append(ctx, message.New("alice", "third", message.KindText, nil)))

	all, err := log.List(ctx, message.Query{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "third", all[0].Content, "newest first")
	assert.Equal(t, "first", all[2].Content)

	fromAlice, err := log.List(ctx, message.Query{Sender: "alice"})
	require.NoError(t, err)
	require.Len(t, fromAlice, 2)
	assert.Equal(t, "third", fromAlice[0].Content)

	limited, err := log.List(ctx, message.Query{Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "third", limited[0].Content)
}

func TestJSONLogSinceFilter(t *testing.T) {
	ctx := context.Background()
	log := newTestLog(t)

	old := message.New("alice", "old", message.KindText, nil)
	old.Timestamp = time.Now().UTC().Add(-time.Hour)
	require.NoError(t, log.Append(ctx, old))
	require.NoError(t, log.Append(ctx, message.New("alice", "fresh", message.KindText, nil)))

	recent, err := log.List(ctx, message.Query{Since: time.Now().UTC().Add(-time.Minute)})
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "fresh", recent[0].Content)
}

func TestJSONLogEviction(t *testing.T) {
	ctx := context.Background()
	log := newTestLog(t)
	log.cap = 10

	for i := 0; i < 11; i++ {
		require.NoError(t, log.Append(ctx, message.New("alice", fmt.Sprintf("msg-%02d", i), message.KindText, nil)))
	}

	all, err := log.List(ctx, message.Query{})
	require.NoError(t, err)
	require.Len(t, all, 10)
	assert.Equal(t, "msg-10", all[0].Content, "newest kept")
	assert.Equal(t, "msg-01", all[9].Content, "oldest evicted")
}
