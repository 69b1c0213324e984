package webhook

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/changepilot/changepilot/internal/eventbus"
	"github.com/changepilot/changepilot/internal/intent"
	"github.com/changepilot/changepilot/internal/message"
	"github.com/changepilot/changepilot/internal/remote"
	"github.com/changepilot/changepilot/internal/task"
	"github.com/changepilot/changepilot/internal/transcribe"
	"github.com/changepilot/changepilot/pkg/clog"
)

// Server handles the inbound messaging webhook. Every request resolves to a
// templated reply with status 200: the messaging channel retries hard on
// error responses, so failures become reply text instead.
type Server struct {
	classifier  intent.Classifier
	tasks       task.Repository
	messages    message.Repository
	transcriber transcribe.Transcriber
	remote      remote.RecordWriter
	eventBus    *eventbus.Bus
}

func NewServer(
	classifier intent.Classifier,
	tasks task.Repository,
	messages message.Repository,
	transcriber transcribe.Transcriber,
	recordWriter remote.RecordWriter,
	eventBus *eventbus.Bus,
) *Server {
	return &Server{
		classifier:  classifier,
		tasks:       tasks,
		messages:    messages,
		transcriber: transcriber,
		remote:      recordWriter,
		eventBus:    eventBus,
	}
}

func (s *Server) RegisterRoutes(r chi.Router) {
	r.Post("/webhook/whatsapp", s.handleInbound)
}

func (s *Server) handleInbound(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := r.ParseForm(); err != nil {
		writeReply(ctx, rw, "Please send a text message or voice note describing the change you want to make.")
		return
	}

	sender := r.PostFormValue("From")
	text := r.PostFormValue("Body")
	numMedia, _ := strconv.Atoi(r.PostFormValue("NumMedia"))
	mediaURL := r.PostFormValue("MediaUrl0")
	mediaType := r.PostFormValue("MediaContentType0")
	clog.AddAttribute(ctx, "sender", sender)

	var replies []string

	if numMedia > 0 && strings.Contains(mediaType, "audio") {
		transcription, err := s.transcriber.Transcribe(ctx, mediaURL, mediaType)
		if err != nil {
			slog.WarnContext(ctx, "voice transcription failed", "error", err.Error())
			writeReply(ctx, rw, "Sorry, I couldn't understand the voice note. Please try again or send a text message.")
			return
		}
		text = transcription
		s.logMessage(ctx, message.New(sender, text, message.KindVoice, map[string]string{"original_url": mediaURL}))
		replies = append(replies, fmt.Sprintf("🎤 Transcribed: %q", transcription))
	} else {
		s.logMessage(ctx, message.New(sender, text, message.KindText, nil))
	}

	if strings.TrimSpace(text) == "" {
		writeReply(ctx, rw, "Please send a text message or voice note describing the change you want to make.")
		return
	}

	d, err := s.classifier.Classify(ctx, text)
	if err != nil {
		slog.ErrorContext(ctx, "classification failed", "error", err.Error())
		writeReply(ctx, rw, "❌ Sorry, there was an error processing your request. Please try again.")
		return
	}
	if d.Confidence < intent.ConfidenceThreshold {
		replies = append(replies,
			"🤔 I'm not sure what change you want. Please be more specific.\n\n"+
				"Example: \"Change the hero button text to 'Book a Free Audit'\"")
		writeReply(ctx, rw, replies...)
		return
	}

	t := task.New(d, task.Source{
		Message:   text,
		Sender:    sender,
		Timestamp: time.Now().UTC(),
	})
	if err := s.tasks.Create(ctx, t); err != nil {
		slog.ErrorContext(ctx, "task creation failed", "error", err.Error())
		writeReply(ctx, rw, "❌ Sorry, there was an error processing your request. Please try again.")
		return
	}

	s.eventBus.PublishNew(eventbus.TypeTaskCreated, t.ID, map[string]string{"type": t.Type})
	s.mirrorRecord(ctx, t)

	replies = append(replies, fmt.Sprintf(
		"✅ Task created!\n\n📋 Type: %s\n📝 %s\n📁 Files: %s\n\n🚀 Your editor will process this shortly.",
		t.Type, t.Description, strings.Join(t.Scope, ", ")))
	writeReply(ctx, rw, replies...)
}

func (s *Server) logMessage(ctx context.Context, m *message.Message) {
	if err := s.messages.Append(ctx, m); err != nil {
		slog.WarnContext(ctx, "failed to append message log", "error", err.Error())
		return
	}
	s.eventBus.PublishNew(eventbus.TypeMessageReceived, m.ID, map[string]string{"sender": m.Sender})
}

// mirrorRecord pushes the task record to the configured remote repository so
// an externally hosted watcher can pick it up. Best effort only.
func (s *Server) mirrorRecord(ctx context.Context, t *task.Task) {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return
	}
	path := fmt.Sprintf("tasks/%s.json", t.ID)
	if err := s.remote.WriteRecord(ctx, path, data, fmt.Sprintf("New task: %s", t.ID)); err != nil {
		slog.WarnContext(ctx, "failed to mirror task record", "task_id", t.ID, "error", err.Error())
	}
}

type twimlMessage struct {
	Body string `xml:",chardata"`
}

type twimlResponse struct {
	XMLName  xml.Name       `xml:"Response"`
	Messages []twimlMessage `xml:"Message"`
}

func writeReply(ctx context.Context, rw http.ResponseWriter, bodies ...string) {
	resp := twimlResponse{}
	for _, b := range bodies {
		resp.Messages = append(resp.Messages, twimlMessage{Body: b})
	}
	out, err := xml.Marshal(resp)
	if err != nil {
		rw.WriteHeader(http.StatusOK)
		return
	}
	rw.Header().Set("Content-Type", "text/xml; charset=utf-8")
	rw.WriteHeader(http.StatusOK)
	if _, err := rw.Write(append([]byte(xml.Header), out...)); err != nil {
		clog.AddError(ctx, err)
	}
}
