// Package anthropic wraps the Anthropic Messages API for answer surface
// calls, including the native web search tool.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
)

// Client defines the Anthropic API operations used by the answer surfaces.
type Client interface {
	CreateMessage(ctx context.Context, req MessageRequest) (*MessageResponse, error)
}

// MessageRequest is our own request type for CreateMessage.
type MessageRequest struct {
	Model       string
	MaxTokens   int64
	System      string
	Messages    []Message
	// Temperature wins when both it and TopP are set; the API rejects the
	// pair.
	Temperature *float64
	TopP        *float64
	// WebSearch enables the server-side web_search tool when non-nil.
	WebSearch *WebSearchTool
}

// WebSearchTool configures the server-side web search tool.
type WebSearchTool struct {
	MaxUses int64
}

// Message represents a single conversational message.
type Message struct {
	Role    string // "user" or "assistant"
	Content string
}

// MessageResponse is our own response type from CreateMessage.
type MessageResponse struct {
	ID         string
	Model      string
	Content    []ContentBlock
	StopReason string
	Usage      TokenUsage
}

// ContentBlock is a response block. Text blocks carry Text and Citations;
// web_search_tool_result blocks carry Results.
type ContentBlock struct {
	Type      string
	Text      string
	Citations []Citation
	Results   []SearchResult
}

// Citation links a span of answer text to a web page.
type Citation struct {
	Type      string `json:"type"`
	URL       string `json:"url"`
	Title     string `json:"title"`
	CitedText string `json:"cited_text"`
}

// SearchResult is one page returned by the web search tool.
type SearchResult struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	PageAge string `json:"page_age"`
}

// TokenUsage tracks token consumption.
type TokenUsage struct {
	InputTokens       int64
	OutputTokens      int64
	WebSearchRequests int64
}

// Text joins the text blocks of the response.
func (r *MessageResponse) Text() string {
	var sb strings.Builder
	for _, b := range r.Content {
		if b.Type == "text" {
			sb.WriteString(b.Text)
		}
	}
	return strings.TrimSpace(sb.String())
}

// StatusError is returned when the API answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Err        error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("anthropic: status %d: %v", e.StatusCode, e.Err)
}

func (e *StatusError) Unwrap() error { return e.Err }

// HTTPStatus returns the response status code.
func (e *StatusError) HTTPStatus() int { return e.StatusCode }

// Option configures the client.
type Option func(*[]option.RequestOption)

// WithBaseURL points the client at a different API host.
func WithBaseURL(url string) Option {
	return func(opts *[]option.RequestOption) {
		if url != "" {
			*opts = append(*opts, option.WithBaseURL(url))
		}
	}
}

// sdkClient implements Client using the official anthropic-sdk-go.
type sdkClient struct {
	client sdk.Client
}

// NewClient creates a new Anthropic client backed by the SDK. SDK-level
// retries are disabled; callers retry through the resilience package.
func NewClient(apiKey string, opts ...Option) Client {
	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	for _, o := range opts {
		o(&reqOpts)
	}
	return &sdkClient{client: sdk.NewClient(reqOpts...)}
}

func (c *sdkClient) CreateMessage(ctx context.Context, req MessageRequest) (*MessageResponse, error) {
	params := sdk.MessageNewParams{
		Model:     sdk.Model(req.Model),
		MaxTokens: req.MaxTokens,
		Messages:  toSDKMessages(req.Messages),
	}
	if req.System != "" {
		params.System = []sdk.TextBlockParam{{Text: req.System}}
	}
	switch {
	case req.Temperature != nil:
		params.Temperature = sdk.Float(*req.Temperature)
	case req.TopP != nil:
		params.TopP = sdk.Float(*req.TopP)
	}
	if req.WebSearch != nil {
		tool := &sdk.WebSearchTool20250305Param{}
		if req.WebSearch.MaxUses > 0 {
			tool.MaxUses = sdk.Int(req.WebSearch.MaxUses)
		}
		params.Tools = []sdk.ToolUnionParam{{OfWebSearchTool20250305: tool}}
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, eris.Wrap(classify(err), "anthropic: create message")
	}

	return fromSDKMessage(msg), nil
}

// classify attaches the HTTP status of SDK API errors.
func classify(err error) error {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		return &StatusError{StatusCode: apiErr.StatusCode, Err: err}
	}
	return err
}

func toSDKMessages(msgs []Message) []sdk.MessageParam {
	out := make([]sdk.MessageParam, len(msgs))
	for i, m := range msgs {
		block := sdk.NewTextBlock(m.Content)
		switch m.Role {
		case "assistant":
			out[i] = sdk.NewAssistantMessage(block)
		default:
			out[i] = sdk.NewUserMessage(block)
		}
	}
	return out
}

// rawBlock decodes the fields we read from any content block variant.
type rawBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text"`
	Citations []Citation      `json:"citations"`
	Content   json.RawMessage `json:"content"`
}

func fromSDKMessage(msg *sdk.Message) *MessageResponse {
	blocks := make([]ContentBlock, 0, len(msg.Content))
	for _, b := range msg.Content {
		blocks = append(blocks, parseBlock(b.Type, b.Text, b.RawJSON()))
	}

	return &MessageResponse{
		ID:         msg.ID,
		Model:      string(msg.Model),
		Content:    blocks,
		StopReason: string(msg.StopReason),
		Usage: TokenUsage{
			InputTokens:       msg.Usage.InputTokens,
			OutputTokens:      msg.Usage.OutputTokens,
			WebSearchRequests: msg.Usage.ServerToolUse.WebSearchRequests,
		},
	}
}

func parseBlock(typ, text, raw string) ContentBlock {
	block := ContentBlock{Type: typ, Text: text}
	if raw == "" {
		return block
	}
	var rb rawBlock
	if err := json.Unmarshal([]byte(raw), &rb); err != nil {
		return block
	}
	if block.Type == "" {
		block.Type = rb.Type
	}
	if block.Text == "" {
		block.Text = rb.Text
	}
	for _, c := range rb.Citations {
		if c.URL != "" {
			block.Citations = append(block.Citations, c)
		}
	}
	if rb.Type == "web_search_tool_result" && len(rb.Content) > 0 {
		// An error result is an object, not a list; it yields no results.
		var results []SearchResult
		if json.Unmarshal(rb.Content, &results) == nil {
			for _, r := range results {
				if r.URL != "" {
					block.Results = append(block.Results, r)
				}
			}
		}
	}
	return block
}
