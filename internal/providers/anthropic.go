package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicProvider adapts the Anthropic Messages API to the Provider
// interface. System messages are lifted out of the transcript into the
// dedicated system parameter, as the vendor API requires.
type AnthropicProvider struct {
	client anthropic.Client
	model  string
}

// NewAnthropicProvider constructs a provider bound to apiKey/apiBase.
func NewAnthropicProvider(apiKey, apiBase, model string) *AnthropicProvider {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if apiBase != "" {
		opts = append(opts, option.WithBaseURL(apiBase))
	}
	if model == "" {
		model = "claude-sonnet-4-5-20250929"
	}
	return &AnthropicProvider{client: anthropic.NewClient(opts...), model: model}
}

func (p *AnthropicProvider) Name() string         { return "anthropic" }
func (p *AnthropicProvider) DefaultModel() string { return p.model }

func (p *AnthropicProvider) Chat(ctx context.Context, messages []Message, opts Options) (*Response, error) {
	model := opts.Model
	if model == "" {
		model = p.model
	}
	maxTokens := int64(opts.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	var system string
	var turns []anthropic.MessageParam
	for _, m := range messages {
		switch m.Role {
		case "system":
			if system != "" {
				system += "\n\n" + m.Content
			} else {
				system = m.Content
			}
		case "user":
			turns = append(turns, anthropic.NewUserMessage(contentBlocksFor(m)...))
		case "assistant":
			turns = append(turns, assistantTurn(m))
		case "tool":
			turns = append(turns, anthropic.NewUserMessage(
				anthropic.NewToolResultBlock(m.ToolCallID, m.Content, false),
			))
		}
	}

	req := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: maxTokens,
		Messages:  turns,
	}
	if system != "" {
		req.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if opts.Temperature > 0 {
		req.Temperature = anthropic.Float(opts.Temperature)
	}
	for _, t := range opts.Tools {
		req.Tools = append(req.Tools, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        t.Name,
				Description: anthropic.String(t.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: t.Parameters["properties"],
					Required:   requiredSlice(t.Parameters),
				},
			},
		})
	}

	msg, err := p.client.Messages.New(ctx, req)
	if err != nil {
		return &Response{FinishReason: FinishError, Content: fmt.Sprintf("anthropic: %v", err)}, nil
	}
	return toResponse(msg), nil
}

func requiredSlice(params map[string]interface{}) []string {
	switch raw := params["required"].(type) {
	case []string:
		return raw
	case []interface{}:
		out := make([]string, 0, len(raw))
		for _, r := range raw {
			if s, ok := r.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func contentBlocksFor(m Message) []anthropic.ContentBlockParamUnion {
	if len(m.Parts) == 0 {
		return []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(m.Content)}
	}
	blocks := make([]anthropic.ContentBlockParamUnion, 0, len(m.Parts))
	for _, part := range m.Parts {
		switch part.Type {
		case "text":
			blocks = append(blocks, anthropic.NewTextBlock(part.Text))
		case "image_url":
			mediaType, data := splitDataURI(part.ImageURL)
			blocks = append(blocks, anthropic.NewImageBlock(anthropic.Base64ImageSourceParam{
				Data:      data,
				MediaType: anthropic.Base64ImageSourceMediaType(mediaType),
			}))
		}
	}
	return blocks
}

// splitDataURI separates a "data:{mime};base64,{payload}" URI into its mime
// type and raw base64 payload, which is the shape the Messages API wants.
func splitDataURI(uri string) (mediaType, data string) {
	mediaType, data = "image/png", uri
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return
	}
	data = payload
	if mt, _, found := strings.Cut(meta, ";"); found && mt != "" {
		mediaType = mt
	} else if meta != "" {
		mediaType = meta
	}
	return
}

func assistantTurn(m Message) anthropic.MessageParam {
	var blocks []anthropic.ContentBlockParamUnion
	if m.Content != "" {
		blocks = append(blocks, anthropic.NewTextBlock(m.Content))
	}
	for _, tc := range m.ToolCalls {
		input, _ := json.Marshal(tc.Arguments)
		blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, json.RawMessage(input), tc.Name))
	}
	return anthropic.NewAssistantMessage(blocks...)
}

func toResponse(msg *anthropic.Message) *Response {
	resp := &Response{}
	if msg.Usage.InputTokens > 0 || msg.Usage.OutputTokens > 0 {
		resp.Usage = &Usage{
			PromptTokens:     int(msg.Usage.InputTokens),
			CompletionTokens: int(msg.Usage.OutputTokens),
			TotalTokens:      int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		}
	}
	for _, block := range msg.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			resp.Content += variant.Text
		case anthropic.ToolUseBlock:
			var args map[string]interface{}
			if err := json.Unmarshal(variant.Input, &args); err != nil {
				args = ParseToolArguments(string(variant.Input))
			}
			resp.ToolCalls = append(resp.ToolCalls, ToolCall{ID: variant.ID, Name: variant.Name, Arguments: args})
		}
	}
	if len(resp.ToolCalls) > 0 {
		resp.FinishReason = FinishToolCalls
	} else if string(msg.StopReason) == "max_tokens" {
		resp.FinishReason = FinishLength
	} else {
		resp.FinishReason = FinishStop
	}
	return resp
}
