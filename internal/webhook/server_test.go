package webhook_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/changepilot/changepilot/internal/eventbus"
	"github.com/changepilot/changepilot/internal/intent"
	"github.com/changepilot/changepilot/internal/message"
	messagerepo "github.com/changepilot/changepilot/internal/message/repositoryimpl"
	"github.com/changepilot/changepilot/internal/remote"
	"github.com/changepilot/changepilot/internal/task"
	taskrepo "github.com/changepilot/changepilot/internal/task/repositoryimpl"
	"github.com/changepilot/changepilot/internal/transcribe"
	"github.com/changepilot/changepilot/internal/webhook"
	"github.com/changepilot/changepilot/pkg/storage"
)

type stubTranscriber struct {
	text string
	err  error
}

func (s stubTranscriber) Transcribe(context.Context, string, string) (string, error) {
	return s.text, s.err
}

type fixture struct {
	server   *httptest.Server
	tasks    task.Repository
	messages message.Repository
}

func newFixture(t *testing.T, tr transcribe.Transcriber) *fixture {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	tasks := taskrepo.NewJSONRepository(store)
	messages := messagerepo.NewJSONLog(store)

	r := chi.NewRouter()
	webhook.NewServer(
		intent.NewHeuristic(nil),
		tasks,
		messages,
		tr,
		remote.Noop{},
		eventbus.New(),
	).RegisterRoutes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &fixture{server: srv, tasks: tasks, messages: messages}
}

func (f *fixture) post(t *testing.T, form url.Values) (int, string) {
	t.Helper()
	resp, err := http.PostForm(f.server.URL+"/webhook/whatsapp", form)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestWebhookCreatesTask(t *testing.T) {
	f := newFixture(t, stubTranscriber{})

	status, body := f.post(t, url.Values{
		"From": {"whatsapp:+15551234"},
		"Body": {"change the hero button text to 'Book a Free Audit'"},
	})
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "Task created")
	assert.Contains(t, body, "copy_change")
	assert.Contains(t, body, "app/components/Hero.tsx")

	created, err := f.tasks.List(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, task.StatusPending, created[0].Status)
	assert.True(t, created[0].AutoCommit)
	assert.Equal(t, "whatsapp:+15551234", created[0].Source.Sender)

	logged, err := f.messages.List(context.Background(), message.Query{})
	require.NoError(t, err)
	require.Len(t, logged, 1)
	assert.Equal(t, message.KindText, logged[0].Kind)
}

func TestWebhookEmptyBody(t *testing.T) {
	f := newFixture(t, stubTranscriber{})

	status, body := f.post(t, url.Values{
		"From": {"whatsapp:+15551234"},
		"Body": {""},
	})
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "describing the change")

	created, err := f.tasks.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, created, "no task for an empty body")
}

func TestWebhookLowConfidence(t *testing.T) {
	f := newFixture(t, stubTranscriber{})

	status, body := f.post(t, url.Values{
		"From": {"whatsapp:+15551234"},
		"Body": {"make it pop"},
	})
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "not sure what change you want")

	created, err := f.tasks.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, created)

	// The message is still logged even though no task came out of it.
	logged, err := f.messages.List(context.Background(), message.Query{})
	require.NoError(t, err)
	assert.Len(t, logged, 1)
}

func TestWebhookVoiceNote(t *testing.T) {
	f := newFixture(t, stubTranscriber{text: "change the footer color to navy"})

	status, body := f.post(t, url.Values{
		"From":              {"whatsapp:+15551234"},
		"Body":              {""},
		"NumMedia":          {"1"},
		"MediaUrl0":         {"https://media.example.com/note.ogg"},
		"MediaContentType0": {"audio/ogg"},
	})
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "Transcribed")
	assert.Contains(t, body, "Task created")

	logged, err := f.messages.List(context.Background(), message.Query{})
	require.NoError(t, err)
	require.Len(t, logged, 1)
	assert.Equal(t, message.KindVoice, logged[0].Kind)
	assert.Equal(t, "https://media.example.com/note.ogg", logged[0].Metadata["original_url"])

	created, err := f.tasks.List(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, "color_change", created[0].Type)
}

func TestWebhookTranscriptionFailure(t *testing.T) {
	f := newFixture(t, stubTranscriber{err: errors.Join(transcribe.ErrUnavailable, errors.New("boom"))})

	status, body := f.post(t, url.Values{
		"From":              {"whatsapp:+15551234"},
		"NumMedia":          {"1"},
		"MediaUrl0":         {"https://media.example.com/note.ogg"},
		"MediaContentType0": {"audio/ogg"},
	})
	require.Equal(t, http.StatusOK, status, "transcription failures still answer 200")
	assert.Contains(t, body, "couldn't understand the voice note")

	created, err := f.tasks.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, created)
}
