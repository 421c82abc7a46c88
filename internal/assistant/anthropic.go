package assistant

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "claude-sonnet-4-5"

// DefaultMaxTokens caps a single reply.
const DefaultMaxTokens = 1024

// Anthropic is an LLM backed by the Anthropic Messages API.
type Anthropic struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	hasKey    bool
}

// NewAnthropic creates the client. An empty apiKey yields an LLM whose every
// call fails with ErrNotConfigured.
func NewAnthropic(apiKey, model string, maxTokens int64, opts ...option.RequestOption) *Anthropic {
	if model == "" {
		model = DefaultModel
	}
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &Anthropic{
		client:    anthropic.NewClient(opts...),
		model:     model,
		maxTokens: maxTokens,
		hasKey:    apiKey != "",
	}
}

// Generate implements LLM.
func (a *Anthropic) Generate(ctx context.Context, req Request) (Response, error) {
	if !a.hasKey {
		return Response{}, ErrNotConfigured
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = a.maxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: maxTokens,
		Messages:  toMessages(req.Messages),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	for _, t := range req.Tools {
		params.Tools = append(params.Tools, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        t.Name,
				Description: anthropic.String(t.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: t.Properties,
					Required:   t.Required,
				},
			},
		})
	}

	msg, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return Response{}, fmt.Errorf("failed to call messages API: %w", err)
	}

	var out Response
	var text []string
	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			text = append(text, block.Text)
		case "tool_use":
			out.Calls = append(out.Calls, ToolCall{Name: block.Name, Input: block.Input})
		}
	}
	out.Text = strings.TrimSpace(strings.Join(text, "\n"))
	return out, nil
}

// toMessages converts turns to API messages. The API requires the
// conversation to open with a user turn and to alternate roles, so leading
// assistant turns are dropped and consecutive same-role turns are merged.
func toMessages(turns []Turn) []anthropic.MessageParam {
	var merged []Turn
	for _, t := range turns {
		if strings.TrimSpace(t.Content) == "" {
			continue
		}
		if len(merged) == 0 && t.Role != "user" {
			continue
		}
		if n := len(merged); n > 0 && merged[n-1].Role == t.Role {
			merged[n-1].Content += "\n\n" + t.Content
			continue
		}
		merged = append(merged, t)
	}

	out := make([]anthropic.MessageParam, 0, len(merged))
	for _, t := range merged {
		block := anthropic.NewTextBlock(t.Content)
		if t.Role == "user" {
			out = append(out, anthropic.NewUserMessage(block))
		} else {
			out = append(out, anthropic.NewAssistantMessage(block))
		}
	}
	return out
}
