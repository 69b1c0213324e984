// Package shellformat renders exec-style command vectors as copy-pastable
// shell one-liners. It uses mvdan.cc/sh/v3/syntax (the shfmt parser) for
// quoting, so the rendered output is valid Bash even when arguments carry
// spaces, quotes, or other shell metacharacters.
package shellformat

import (
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

const maxInlineWidth = 80

// Command renders a single argv as a shell command string.
func Command(argv []string) string {
	parts := make([]string, 0, len(argv))
	for _, arg := range argv {
		parts = append(parts, quote(arg))
	}
	return strings.Join(parts, " ")
}

// Script renders a sequence of argvs as an "&&" chain. Chains that fit
// within 80 columns stay on one line; longer chains break with backslash
// continuations, operator first, so the output can be pasted into a shell.
func Script(commands [][]string) string {
	rendered := make([]string, 0, len(commands))
	total := 0
	for _, argv := range commands {
		cmd := Command(argv)
		rendered = append(rendered, cmd)
		total += len(cmd) + len(" && ")
	}
	if len(rendered) == 0 {
		return ""
	}
	if total <= maxInlineWidth && len(rendered) <= 2 {
		return strings.Join(rendered, " && ")
	}
	var b strings.Builder
	for i, cmd := range rendered {
		if i > 0 {
			b.WriteString(" \\\n  && ")
		}
		b.WriteString(cmd)
	}
	return b.String()
}

// quote shell-quotes a single argument. Arguments that are already safe
// are returned unchanged.
func quote(arg string) string {
	if arg == "" {
		return "''"
	}
	quoted, err := syntax.Quote(arg, syntax.LangBash)
	if err != nil {
		// Control characters the parser refuses to quote; fall back to
		// single quotes with the offending bytes stripped.
		clean := strings.Map(func(r rune) rune {
			if r < 0x20 && r != '\t' && r != '\n' {
				return -1
			}
			return r
		}, arg)
		quoted, qErr := syntax.Quote(clean, syntax.LangBash)
		if qErr != nil {
			return "''"
		}
		return quoted
	}
	return quoted
}
