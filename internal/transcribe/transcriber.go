package transcribe

import "context"

// Transcriber turns a voice note media reference into text.
type Transcriber interface {
	Transcribe(ctx context.Context, mediaURL, contentType string) (string, error)
}

// Disabled is used when no transcription credentials are configured. It
// returns a placeholder so the webhook can still log the message and reply.
type Disabled struct{}

func (Disabled) Transcribe(context.Context, string, string) (string, error) {
	return "", ErrUnavailable
}
