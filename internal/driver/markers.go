package driver

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Markers is the durable "already seen" set gating re-processing. A task id
// that survives a restart must not be rendered or announced a second time.
type Markers struct {
	path string
	mu   sync.Mutex
	seen map[string]struct{}
}

// LoadMarkers reads the marker file (one id per line); a missing file means
// an empty set.
func LoadMarkers(path string) (*Markers, error) {
	m := &Markers{path: path, seen: make(map[string]struct{})}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return m, nil
		}
		return nil, fmt.Errorf("failed to read marker file: %w", err)
	}
	for _, line := range strings.Split(string(data), "\n") {
		if id := strings.TrimSpace(line); id != "" {
			m.seen[id] = struct{}{}
		}
	}
	return m, nil
}

// MarkIfNew atomically checks and records an id. It returns true when the id
// was unseen, meaning the caller won the right to process it.
func (m *Markers) MarkIfNew(id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.seen[id]; ok {
		return false, nil
	}
	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return false, fmt.Errorf("failed to create marker directory: %w", err)
	}
	f, err := os.OpenFile(m.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return false, fmt.Errorf("failed to open marker file: %w", err)
	}
	defer f.Close()
	if _, err := fmt.Fprintln(f, id); err != nil {
		return false, fmt.Errorf("failed to append marker: %w", err)
	}
	m.seen[id] = struct{}{}
	return true, nil
}

// Seen reports whether an id is already marked.
func (m *Markers) Seen(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.seen[id]
	return ok
}
