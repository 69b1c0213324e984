package intent

import (
	"context"
	"regexp"
	"strings"
)

// Classifier turns a raw message into a change-request descriptor. It never
// fails: ambiguity comes back as a low-confidence descriptor, not an error.
type Classifier interface {
	Classify(ctx context.Context, message string) (*Descriptor, error)
}

// typeKeywords is consulted in order; the first slot with a keyword present
// in the message decides the type. Precedence: copy changes first, then
// style/color, SEO, structural reorders, additive and destructive edits.
var typeKeywords = []struct {
	t        Type
	keywords []string
}{
	{TypeCopyChange, []string{"change text", "change button", "change cta", "rename", "update text", "modify text", "button text", "text to"}},
	{TypeColorChange, []string{"color", "theme", "background"}},
	{TypeStyleChange, []string{"style", "css", "padding", "margin"}},
	{TypeSEOUpdate, []string{"seo", "meta", "title tag", "description tag"}},
	{TypeSectionReorder, []string{"reorder", "move section", "swap"}},
	{TypeAddContent, []string{"add section", "add content", "insert", "new section"}},
	{TypeRemoveContent, []string{"remove", "delete"}},
}

var targetRepoRe = regexp.MustCompile(`\s+in\s+([A-Za-z0-9][A-Za-z0-9._-]*)\s*$`)

// Heuristic is the deterministic rule-based classifier.
type Heuristic struct {
	cfg *Config
}

func NewHeuristic(cfg *Config) *Heuristic {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Heuristic{cfg: cfg}
}

func (h *Heuristic) Classify(_ context.Context, message string) (*Descriptor, error) {
	lower := strings.ToLower(message)

	taskType := TypeComponentEdit
	for _, slot := range typeKeywords {
		if containsAny(lower, slot.keywords) {
			taskType = slot.t
			break
		}
	}

	targetRepo, lower := h.extractTargetRepo(lower)

	scope, explicit := h.detectScope(lower, targetRepo)

	confidence := 0.4
	if explicit {
		confidence = 0.6
	}

	return &Descriptor{
		Type:        taskType,
		Description: message,
		Scope:       scope,
		Rules:       RulesFor(taskType),
		AutoCommit:  AutoCommitAllowed(taskType),
		Confidence:  confidence,
		TargetRepo:  targetRepo,
	}, nil
}

// extractTargetRepo strips a trailing "in <identifier>" clause naming an
// external repository. Identifiers that are scope keywords stay in the
// message ("fix the typo in footer" scopes to the footer, it does not name
// a repo called footer).
func (h *Heuristic) extractTargetRepo(lower string) (string, string) {
	m := targetRepoRe.FindStringSubmatch(lower)
	if m == nil {
		return "", lower
	}
	name := m[1]
	for _, entry := range h.cfg.Scopes {
		if name == entry.Keyword {
			return "", lower
		}
	}
	return name, strings.TrimSuffix(lower, m[0])
}

// detectScope resolves the file scope: a repo-specific override wins, then
// the first scope keyword found in config order, then the default file.
// The returned bool reports whether the match was explicit.
func (h *Heuristic) detectScope(lower, targetRepo string) ([]string, bool) {
	if targetRepo != "" {
		if override, ok := h.cfg.RepoOverrides[targetRepo]; ok {
			return append([]string(nil), override...), true
		}
	}
	for _, entry := range h.cfg.Scopes {
		if strings.Contains(lower, entry.Keyword) {
			return []string{entry.Path}, true
		}
	}
	return []string{h.cfg.DefaultScope}, false
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
