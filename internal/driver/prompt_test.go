package driver

import (
	"strings"
	"testing"
	"time"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/changepilot/changepilot/internal/task"
)

func assertTextEqual(t *testing.T, want, got string) {
	t.Helper()
	if want == got {
		return
	}
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(want),
		B:        difflib.SplitLines(got),
		FromFile: "want",
		ToFile:   "got",
		Context:  3,
	})
	require.NoError(t, err)
	t.Fatalf("rendered prompt mismatch:\n%s", diff)
}

func TestRenderPrompt(t *testing.T) {
	in := &task.Task{
		ID:          "01TEST",
		Type:        "copy_change",
		Description: "Change the hero button text to 'Book a Free Audit'",
		Scope:       []string{"app/components/Hero.tsx"},
		Rules:       []string{"Do not change layout structure", "Only modify text content"},
		Status:      task.StatusPending,
		CreatedAt:   time.Now().UTC(),
	}

	want := `Apply the following change strictly:

## Task Type
copy_change

## Description
Change the hero button text to 'Book a Free Audit'

## Target Files (ONLY modify these)
- app/components/Hero.tsx

## Rules (MUST follow)
- Do not change layout structure
- Only modify text content

## Important
- Make ONLY the requested change
- Do NOT modify any other code
- Do NOT change layout or structure unless explicitly requested
- Preserve all existing functionality
- Keep the same code style and formatting

Please apply this change now.`

	assertTextEqual(t, want, RenderPrompt(in))
}

func TestRenderPromptDeterministic(t *testing.T) {
	in := &task.Task{
		ID:          "01TEST",
		Type:        "style_change",
		Description: "More padding",
		Scope:       []string{"a.tsx", "b.tsx"},
		Rules:       []string{"r1"},
	}
	first := RenderPrompt(in)
	assert.Equal(t, first, RenderPrompt(in))
	assert.True(t, strings.Index(first, "a.tsx") < strings.Index(first, "b.tsx"), "scope order is stable")
}
