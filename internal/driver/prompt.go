package driver

import (
	"fmt"
	"strings"

	"github.com/changepilot/changepilot/internal/task"
)

// RenderPrompt builds the instruction block handed to the change-making
// agent. The template is fixed and field order is stable so the same task
// always renders the same prompt.
func RenderPrompt(t *task.Task) string {
	var scope strings.Builder
	for _, f := range t.Scope {
		fmt.Fprintf(&scope, "- %s\n", f)
	}
	var rules strings.Builder
	for _, r := range t.Rules {
		fmt.Fprintf(&rules, "- %s\n", r)
	}

	return fmt.Sprintf(`Apply the following change strictly:

## Task Type
%s

## Description
%s

## Target Files (ONLY modify these)
%s
## Rules (MUST follow)
%s
## Important
- Make ONLY the requested change
- Do NOT modify any other code
- Do NOT change layout or structure unless explicitly requested
- Preserve all existing functionality
- Keep the same code style and formatting

Please apply this change now.`, t.Type, t.Description, scope.String(), rules.String())
}
