package connector

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/geo-audit/internal/llmjson"
	"github.com/sells-group/geo-audit/internal/model"
)

// ConnectorContext describes one structured-mode query.
type ConnectorContext struct {
	QueryID      string
	QueryText    string
	BrandName    string
	BrandDomains []string
	Competitors  []string
	// PropertyLocation, when set, is given to the model to reduce location
	// hallucination.
	PropertyLocation string
}

// InvokeResult is the outcome of a structured call. Fallback is true when
// Answer is the fixed no_sources answer, with Reason saying why.
type InvokeResult struct {
	Answer   model.AnswerBlock
	Raw      any
	Fallback bool
	Reason   string
}

// Connector is a structured-mode connector. Invoke never fails: any
// provider, parse or schema error yields the fallback answer.
type Connector interface {
	Invoke(ctx context.Context, cc ConnectorContext) InvokeResult
}

// Structured implements Connector for one surface.
type Structured struct {
	caller
}

// NewConnector creates a structured-mode connector for s.
func NewConnector(s Surface, opts Options) *Structured {
	return &Structured{caller: newCaller(s, opts)}
}

// Invoke asks the surface for a JSON answer block.
func (c *Structured) Invoke(ctx context.Context, cc ConnectorContext) InvokeResult {
	req := Request{
		System: structuredSystemPrompt,
		Prompt: structuredPrompt(cc.QueryText, cc.PropertyLocation),
		Schema: &Schema{
			Name:        "answer_block",
			Description: "Entities, citations and summary extracted from the answer",
			Doc:         llmjson.AnswerBlockSchema(),
		},
	}

	comp, err := c.completeSearching(ctx, "structured", req)
	if err != nil {
		return c.fallback(cc, nil, err.Error())
	}
	if strings.TrimSpace(comp.Text) == "" {
		return c.fallback(cc, comp.Raw, ErrNoContent.Error())
	}

	v, step := llmjson.ExtractStep(comp.Text)
	if step == llmjson.StepNone {
		return c.fallback(cc, comp.Raw, "response is not valid JSON")
	}
	block := llmjson.CoerceAnswerBlock(v)
	if block == nil {
		reason := "response failed schema validation: no usable answer"
		if err := llmjson.ValidateAnswerBlock(v); err != nil {
			reason = "response failed schema validation: " + err.Error()
		}
		return c.fallback(cc, comp.Raw, reason)
	}

	zap.L().Debug("connector: structured answer",
		zap.String("surface", c.name()),
		zap.String("query_id", cc.QueryID),
		zap.Stringer("extract_step", step),
		zap.Int("entities", len(block.OrderedEntities)),
		zap.Int("citations", len(block.Citations)),
	)
	return InvokeResult{Answer: *block, Raw: comp.Raw}
}

func (c *Structured) fallback(cc ConnectorContext, raw any, reason string) InvokeResult {
	zap.L().Warn("connector: using fallback answer",
		zap.String("surface", c.name()),
		zap.String("query_id", cc.QueryID),
		zap.String("reason", reason),
	)
	return InvokeResult{
		Answer:   model.FallbackAnswer(),
		Raw:      raw,
		Fallback: true,
		Reason:   reason,
	}
}
