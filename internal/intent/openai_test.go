package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newParserOnly() *OpenAI {
	cfg := DefaultConfig()
	return &OpenAI{cfg: cfg, fallback: NewHeuristic(cfg)}
}

func TestOpenAIParse(t *testing.T) {
	o := newParserOnly()

	d, ok := o.parse(`{"type":"color_change","scope_keyword":"hero","target_repo":"","confidence":0.9}`, "make the hero blue")
	require.True(t, ok)
	assert.Equal(t, TypeColorChange, d.Type)
	assert.Equal(t, []string{"app/components/Hero.tsx"}, d.Scope)
	assert.True(t, d.AutoCommit)
	assert.Equal(t, 0.9, d.Confidence)
	assert.Equal(t, "make the hero blue", d.Description)
	assert.Equal(t, RulesFor(TypeColorChange), d.Rules)
}

func TestOpenAIParseCodeFence(t *testing.T) {
	o := newParserOnly()

	fenced := "```json\n{\"type\":\"seo_update\",\"scope_keyword\":\"seo\",\"confidence\":0.8}\n```"
	d, ok := o.parse(fenced, "tweak the seo title")
	require.True(t, ok)
	assert.Equal(t, TypeSEOUpdate, d.Type)
	assert.Equal(t, []string{"app/layout.tsx"}, d.Scope)
}

func TestOpenAIParseRejects(t *testing.T) {
	o := newParserOnly()

	_, ok := o.parse("not json at all", "msg")
	assert.False(t, ok)

	_, ok = o.parse(`{"type":"unknown_kind","confidence":0.9}`, "msg")
	assert.False(t, ok)
}

func TestOpenAIParseConfidenceDefaults(t *testing.T) {
	o := newParserOnly()

	d, ok := o.parse(`{"type":"component_edit","scope_keyword":"footer"}`, "msg")
	require.True(t, ok)
	assert.Equal(t, 0.6, d.Confidence)

	d, ok = o.parse(`{"type":"component_edit","scope_keyword":""}`, "msg")
	require.True(t, ok)
	assert.Equal(t, 0.4, d.Confidence)
	assert.Equal(t, []string{"app/components/Hero.tsx"}, d.Scope)
}

func TestOpenAIParseRepoOverride(t *testing.T) {
	o := newParserOnly()

	d, ok := o.parse(`{"type":"copy_change","scope_keyword":"hero","target_repo":"landing-page","confidence":0.7}`, "msg")
	require.True(t, ok)
	assert.Equal(t, []string{"index.html"}, d.Scope)
	assert.Equal(t, "landing-page", d.TargetRepo)
}
