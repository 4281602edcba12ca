// Package openai wraps the OpenAI chat completions API (schema-constrained
// output) and the Responses API (native web search).
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	sdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rotisserie/eris"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "gpt-4o"
)

// Client defines the OpenAI operations used by the answer surfaces.
type Client interface {
	ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	WebSearch(ctx context.Context, req WebSearchRequest) (*WebSearchResponse, error)
}

// ChatRequest is a single-turn chat completion.
type ChatRequest struct {
	Model       string
	System      string
	Prompt      string
	Temperature *float64
	TopP        *float64
	Seed        *int64
	MaxTokens   int64
	// Schema requests json_schema structured output when set.
	Schema *JSONSchema
}

// JSONSchema names a schema document for structured output.
type JSONSchema struct {
	Name        string
	Description string
	Schema      map[string]any
}

// ChatResponse is the first choice of a chat completion.
type ChatResponse struct {
	ID           string
	Model        string
	Content      string
	InputTokens  int64
	OutputTokens int64
}

// StatusError is returned when the API answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Err        error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("openai: status %d: %v", e.StatusCode, e.Err)
}

func (e *StatusError) Unwrap() error { return e.Err }

// HTTPStatus returns the response status code.
func (e *StatusError) HTTPStatus() int { return e.StatusCode }

// Option configures the client.
type Option func(*client)

// WithBaseURL overrides the API base URL, including the /v1 path.
func WithBaseURL(url string) Option {
	return func(c *client) {
		if url != "" {
			c.baseURL = strings.TrimSuffix(url, "/")
		}
	}
}

// WithModel overrides the default model.
func WithModel(model string) Option {
	return func(c *client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithHTTPClient overrides the http.Client used for both APIs.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *client) {
		c.http = hc
	}
}

type client struct {
	apiKey  string
	baseURL string
	model   string
	http    *http.Client
	sdk     sdk.Client
}

// NewClient creates an OpenAI client. SDK-level retries are disabled;
// callers retry through the resilience package.
func NewClient(apiKey string, opts ...Option) Client {
	c := &client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		model:   defaultModel,
		http: &http.Client{
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	c.sdk = sdk.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(c.baseURL+"/"),
		option.WithHTTPClient(c.http),
		option.WithMaxRetries(0),
	)
	return c
}

func (c *client) ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}

	messages := make([]sdk.ChatCompletionMessageParamUnion, 0, 2)
	if req.System != "" {
		messages = append(messages, sdk.SystemMessage(req.System))
	}
	messages = append(messages, sdk.UserMessage(req.Prompt))

	params := sdk.ChatCompletionNewParams{
		Model:    sdk.ChatModel(model),
		Messages: messages,
	}
	if req.Temperature != nil {
		params.Temperature = sdk.Float(*req.Temperature)
	}
	if req.TopP != nil {
		params.TopP = sdk.Float(*req.TopP)
	}
	if req.Seed != nil {
		params.Seed = sdk.Int(*req.Seed)
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = sdk.Int(req.MaxTokens)
	}
	if req.Schema != nil {
		params.ResponseFormat = sdk.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &sdk.ResponseFormatJSONSchemaParam{
				JSONSchema: sdk.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:        req.Schema.Name,
					Description: sdk.String(req.Schema.Description),
					Schema:      req.Schema.Schema,
					// Optional fields (entity_ref) rule out strict mode.
					Strict: sdk.Bool(false),
				},
			},
		}
	}

	resp, err := c.sdk.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, eris.Wrap(classify(err), "openai: chat completion")
	}
	if len(resp.Choices) == 0 {
		return nil, eris.New("openai: chat completion returned no choices")
	}

	return &ChatResponse{
		ID:           resp.ID,
		Model:        resp.Model,
		Content:      resp.Choices[0].Message.Content,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}, nil
}

// classify attaches the HTTP status of SDK API errors.
func classify(err error) error {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		return &StatusError{StatusCode: apiErr.StatusCode, Err: err}
	}
	return err
}
