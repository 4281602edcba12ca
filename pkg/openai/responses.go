package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/rotisserie/eris"
)

// WebSearchRequest asks the Responses API to answer with the
// web_search_preview tool enabled.
type WebSearchRequest struct {
	Model        string
	Instructions string
	Input        string
	Temperature  *float64
	TopP         *float64
	MaxTokens    int64
	// ContextSize is "low", "medium" or "high"; empty uses the API default.
	ContextSize string
}

type responsesRequest struct {
	Model           string          `json:"model"`
	Instructions    string          `json:"instructions,omitempty"`
	Input           string          `json:"input"`
	Tools           []webSearchTool `json:"tools"`
	Temperature     *float64        `json:"temperature,omitempty"`
	TopP            *float64        `json:"top_p,omitempty"`
	MaxOutputTokens int64           `json:"max_output_tokens,omitempty"`
}

type webSearchTool struct {
	Type              string `json:"type"`
	SearchContextSize string `json:"search_context_size,omitempty"`
}

// WebSearchResponse is the subset of a Responses API result we read.
type WebSearchResponse struct {
	ID     string         `json:"id"`
	Model  string         `json:"model"`
	Status string         `json:"status"`
	Output []OutputItem   `json:"output"`
	Usage  ResponsesUsage `json:"usage"`
}

// OutputItem is one item of the response output list. Web search calls
// appear as "web_search_call" items, answers as "message" items.
type OutputItem struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Status  string          `json:"status,omitempty"`
	Content []OutputContent `json:"content,omitempty"`
}

// OutputContent is a content part of a message item.
type OutputContent struct {
	Type        string       `json:"type"`
	Text        string       `json:"text,omitempty"`
	Annotations []Annotation `json:"annotations,omitempty"`
}

// Annotation marks a span of output text. url_citation annotations carry
// the cited page.
type Annotation struct {
	Type       string `json:"type"`
	StartIndex int    `json:"start_index"`
	EndIndex   int    `json:"end_index"`
	Title      string `json:"title,omitempty"`
	URL        string `json:"url,omitempty"`
}

// ResponsesUsage reports token consumption.
type ResponsesUsage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// Text joins every output_text part of every message item.
func (r *WebSearchResponse) Text() string {
	var parts []string
	for _, item := range r.Output {
		if item.Type != "message" {
			continue
		}
		for _, c := range item.Content {
			if c.Type == "output_text" && c.Text != "" {
				parts = append(parts, c.Text)
			}
		}
	}
	return strings.Join(parts, "\n\n")
}

// Citations returns the url_citation annotations in output order.
func (r *WebSearchResponse) Citations() []Annotation {
	var out []Annotation
	for _, item := range r.Output {
		for _, c := range item.Content {
			for _, a := range c.Annotations {
				if a.Type == "url_citation" && a.URL != "" {
					out = append(out, a)
				}
			}
		}
	}
	return out
}

// SearchCalls counts the web searches the model ran.
func (r *WebSearchResponse) SearchCalls() int {
	n := 0
	for _, item := range r.Output {
		if item.Type == "web_search_call" {
			n++
		}
	}
	return n
}

func (c *client) WebSearch(ctx context.Context, req WebSearchRequest) (*WebSearchResponse, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}

	body, err := json.Marshal(responsesRequest{
		Model:           model,
		Instructions:    req.Instructions,
		Input:           req.Input,
		Tools:           []webSearchTool{{Type: "web_search_preview", SearchContextSize: req.ContextSize}},
		Temperature:     req.Temperature,
		TopP:            req.TopP,
		MaxOutputTokens: req.MaxTokens,
	})
	if err != nil {
		return nil, eris.Wrap(err, "openai: marshal web search request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/responses", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "openai: create web search request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "openai: send web search request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "openai: read web search response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{
			StatusCode: resp.StatusCode,
			Err:        eris.Errorf("web search: %s", strings.TrimSpace(string(respBody))),
		}
	}

	var out WebSearchResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, eris.Wrap(err, "openai: unmarshal web search response")
	}
	if out.Text() == "" {
		return nil, eris.New("openai: web search returned no message content")
	}
	return &out, nil
}
