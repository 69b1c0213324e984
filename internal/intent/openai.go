package intent

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/tidwall/gjson"
)

const classifySystemPrompt = `You classify website change requests into structured JSON.
Respond with a single JSON object and nothing else:
{"type": one of ["copy_change","section_reorder","color_change","seo_update","component_edit","style_change","add_content","remove_content"],
 "scope_keyword": the page section the request targets ("hero","header","footer","cta","nav","pricing","features","seo","colors") or "" if unclear,
 "target_repo": repository name if the request ends with "in <repo>", else "",
 "confidence": number between 0 and 1}`

// OpenAI classifies with a chat completion and falls back to the rule-based
// classifier when the model is unreachable or returns something unusable.
// The model only picks type, scope keyword and confidence; rules, scope paths
// and the auto-commit decision stay deterministic.
type OpenAI struct {
	client   openai.Client
	model    string
	timeout  time.Duration
	cfg      *Config
	fallback *Heuristic
}

func NewOpenAI(apiKey, model string, timeout time.Duration, cfg *Config) *OpenAI {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &OpenAI{
		client:   openai.NewClient(option.WithAPIKey(apiKey)),
		model:    model,
		timeout:  timeout,
		cfg:      cfg,
		fallback: NewHeuristic(cfg),
	}
}

func (o *OpenAI) Classify(ctx context.Context, message string) (*Descriptor, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(classifySystemPrompt),
			openai.UserMessage(message),
		},
		Temperature: openai.Float(0),
	})
	if err != nil {
		slog.WarnContext(ctx, "model classification failed, using rule-based fallback", "error", err.Error())
		return o.fallback.Classify(ctx, message)
	}
	if len(resp.Choices) == 0 {
		return o.fallback.Classify(ctx, message)
	}

	d, ok := o.parse(resp.Choices[0].Message.Content, message)
	if !ok {
		slog.WarnContext(ctx, "unusable model classification, using rule-based fallback")
		return o.fallback.Classify(ctx, message)
	}
	return d, nil
}

// parse validates the model output and assembles a descriptor from it.
// Unknown types or malformed JSON reject the whole response.
func (o *OpenAI) parse(content, message string) (*Descriptor, bool) {
	content = stripCodeFence(content)
	if !gjson.Valid(content) {
		return nil, false
	}
	body := gjson.Parse(content)

	taskType := Type(body.Get("type").String())
	if !taskType.Valid() {
		return nil, false
	}

	targetRepo := body.Get("target_repo").String()
	scope, explicit := o.resolveScope(body.Get("scope_keyword").String(), targetRepo)

	confidence := body.Get("confidence").Float()
	if confidence <= 0 || confidence > 1 {
		if explicit {
			confidence = 0.6
		} else {
			confidence = 0.4
		}
	}

	return &Descriptor{
		Type:        taskType,
		Description: message,
		Scope:       scope,
		Rules:       RulesFor(taskType),
		AutoCommit:  AutoCommitAllowed(taskType),
		Confidence:  confidence,
		TargetRepo:  targetRepo,
	}, true
}

func (o *OpenAI) resolveScope(keyword, targetRepo string) ([]string, bool) {
	if targetRepo != "" {
		if override, ok := o.cfg.RepoOverrides[targetRepo]; ok {
			return append([]string(nil), override...), true
		}
	}
	for _, entry := range o.cfg.Scopes {
		if keyword == entry.Keyword {
			return []string{entry.Path}, true
		}
	}
	return []string{o.cfg.DefaultScope}, false
}

// stripCodeFence unwraps ```json ... ``` blocks that chat models like to
// emit despite instructions.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.Index(s, "\n"); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
