package task

import (
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/changepilot/changepilot/internal/intent"
)

type Status string

const (
	StatusPending      Status = "pending"
	StatusProcessing   Status = "processing"
	StatusSuccess      Status = "success"
	StatusFailed       Status = "failed"
	StatusManualReview Status = "manual_review"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusSuccess, StatusFailed, StatusManualReview:
		return true
	}
	return false
}

// Terminal reports whether the status ends the active lifecycle and
// triggers archival.
func (s Status) Terminal() bool {
	switch s {
	case StatusSuccess, StatusFailed, StatusManualReview:
		return true
	}
	return false
}

// CanTransition reports whether the state machine allows moving from one
// status to another. Claiming twice (processing -> processing) is allowed;
// nothing moves back to pending and terminal statuses are final.
func CanTransition(from, to Status) bool {
	if from.Terminal() || to == StatusPending {
		return false
	}
	return to.Valid()
}

// Source records the provenance of a task: the originating message text,
// the sender identifier, and when the message arrived.
type Source struct {
	Message   string    `json:"message"`
	Sender    string    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
}

// Result is the outcome record filled on transition out of processing.
type Result struct {
	Status  Status         `json:"status"`
	Details string         `json:"details"`
	Data    map[string]any `json:"data,omitempty"`
}

// Task is a structured, persisted change request derived from a message.
type Task struct {
	ID          string     `json:"id"`
	Type        string     `json:"type"`
	Description string     `json:"description"`
	Scope       []string   `json:"scope"`
	Rules       []string   `json:"rules"`
	AutoCommit  bool       `json:"auto_commit"`
	TargetRepo  string     `json:"target_repo,omitempty"`
	Status      Status     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
	Source      Source     `json:"source"`
	Result      *Result    `json:"result"`
}

// New builds a pending task from a classification descriptor and its
// provenance. Scope ownership stays with the classifier; the task copies
// whatever scope the descriptor carries.
func New(d *intent.Descriptor, source Source) *Task {
	now := time.Now().UTC()
	if source.Timestamp.IsZero() {
		source.Timestamp = now
	}
	return &Task{
		ID:          ulid.Make().String(),
		Type:        string(d.Type),
		Description: d.Description,
		Scope:       append([]string(nil), d.Scope...),
		Rules:       append([]string(nil), d.Rules...),
		AutoCommit:  d.AutoCommit,
		TargetRepo:  d.TargetRepo,
		Status:      StatusPending,
		CreatedAt:   now,
		Source:      source,
	}
}
