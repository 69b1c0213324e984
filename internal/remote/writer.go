package remote

import "context"

// RecordWriter mirrors task records to an external location, e.g. a GitHub
// repository that a separately hosted watcher polls. Mirroring is
// best-effort: failures are logged, never surfaced to the sender.
type RecordWriter interface {
	WriteRecord(ctx context.Context, path string, data []byte, commitMessage string) error
}

// Noop is used when no remote mirror is configured.
type Noop struct{}

func (Noop) WriteRecord(context.Context, string, []byte, string) error {
	return nil
}
