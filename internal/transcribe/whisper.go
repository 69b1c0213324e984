package transcribe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// ErrUnavailable means transcription is not configured or the media could
// not be fetched; callers degrade to a "could not transcribe" reply.
var ErrUnavailable = errors.New("transcription unavailable")

const maxMediaBytes = 25 << 20 // whisper upload limit

// Whisper downloads the voice note and transcribes it with the OpenAI
// speech-to-text API. Media URLs from the messaging provider are protected
// by basic auth with the account credentials.
type Whisper struct {
	client      openai.Client
	httpClient  *http.Client
	accountSID  string
	accountAuth string
}

func NewWhisper(apiKey, accountSID, accountAuth string, timeout time.Duration) *Whisper {
	return &Whisper{
		client:      openai.NewClient(option.WithAPIKey(apiKey)),
		httpClient:  &http.Client{Timeout: timeout},
		accountSID:  accountSID,
		accountAuth: accountAuth,
	}
}

func (w *Whisper) Transcribe(ctx context.Context, mediaURL, contentType string) (string, error) {
	body, err := w.fetchMedia(ctx, mediaURL)
	if err != nil {
		return "", errors.Join(ErrUnavailable, err)
	}
	defer body.Close()

	resp, err := w.client.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		Model: openai.AudioModelWhisper1,
		File:  openai.File(io.LimitReader(body, maxMediaBytes), fileName(contentType), contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to transcribe voice note: %w", err)
	}
	return resp.Text, nil
}

func (w *Whisper) fetchMedia(ctx context.Context, mediaURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid media url: %w", err)
	}
	if w.accountSID != "" {
		req.SetBasicAuth(w.accountSID, w.accountAuth)
	}
	resp, err := w.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch media: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("media fetch returned status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

func fileName(contentType string) string {
	switch contentType {
	case "audio/mpeg", "audio/mp3":
		return "voice.mp3"
	case "audio/mp4":
		return "voice.mp4"
	case "audio/wav", "audio/x-wav":
		return "voice.wav"
	default:
		return "voice.ogg"
	}
}
