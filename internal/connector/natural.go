package connector

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/geo-audit/internal/llmjson"
	"github.com/sells-group/geo-audit/internal/model"
)

// NaturalAnalyzeContext is the input to the analysis pass.
type NaturalAnalyzeContext struct {
	NaturalResponse *model.NaturalResponse
	BrandName       string
	QueryText       string
	ExpectedCity    string
	ExpectedState   string
	BrandDomains    []string
	Competitors     []string
}

// AnalyzeResult is a validated extraction envelope and the provider reply
// it came from.
type AnalyzeResult struct {
	Envelope model.NaturalExtractionEnvelope
	Raw      any
}

// AnalyzeError reports an analyzer reply that could not be used. It wraps
// ErrNotJSON or ErrSchemaInvalid.
type AnalyzeError struct {
	Surface string
	Kind    error
	Detail  string
	// Text is the analyzer's raw reply.
	Text string
}

func (e *AnalyzeError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: %v", e.Surface, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %s", e.Surface, e.Kind, e.Detail)
}

func (e *AnalyzeError) Unwrap() error { return e.Kind }

// NaturalConnector runs the two-phase natural mode: an unprimed prose
// answer, then an analysis pass over that answer.
type NaturalConnector interface {
	GetNaturalResponse(ctx context.Context, query string) (*model.NaturalResponse, error)
	AnalyzeResponse(ctx context.Context, ac NaturalAnalyzeContext) (*AnalyzeResult, error)
}

// Natural implements NaturalConnector for one surface.
type Natural struct {
	caller
}

// NewNaturalConnector creates a natural-mode connector for s.
func NewNaturalConnector(s Surface, opts Options) *Natural {
	return &Natural{caller: newCaller(s, opts)}
}

// GetNaturalResponse asks the bare query with no brand or location context.
// It fails only when the surface cannot produce an answer at all.
func (n *Natural) GetNaturalResponse(ctx context.Context, query string) (*model.NaturalResponse, error) {
	comp, err := n.completeSearching(ctx, "natural", Request{
		System: naturalSystemPrompt,
		Prompt: query,
	})
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(comp.Text) == "" {
		return nil, eris.Wrapf(ErrNoContent, "connector: %s natural", n.name())
	}

	sources := comp.Sources
	if sources == nil {
		sources = []model.SearchSource{}
	}
	return &model.NaturalResponse{
		Text:          comp.Text,
		Model:         comp.Model,
		TokensUsed:    comp.InputTokens + comp.OutputTokens,
		UsedWebSearch: comp.UsedWebSearch,
		SearchSources: sources,
	}, nil
}

// AnalyzeResponse extracts an answer block and the richer analysis from a
// natural answer. Unlike Invoke it reports extraction failures as errors,
// so "brand absent" stays distinguishable from "extraction failed".
func (n *Natural) AnalyzeResponse(ctx context.Context, ac NaturalAnalyzeContext) (*AnalyzeResult, error) {
	if ac.NaturalResponse == nil {
		return nil, eris.New("connector: analyze requires a natural response")
	}

	comp, err := n.complete(ctx, "analyze", Request{
		System: analyzerSystemPrompt,
		Prompt: analyzerPrompt(ac),
		Schema: &Schema{
			Name:        "natural_extraction",
			Description: "Answer block and brand analysis extracted from a natural answer",
			Doc:         llmjson.EnvelopeSchema(),
		},
	})
	if err != nil {
		return nil, err
	}

	v, step := llmjson.ExtractStep(comp.Text)
	if step == llmjson.StepNone {
		return nil, &AnalyzeError{Surface: n.name(), Kind: ErrNotJSON, Text: comp.Text}
	}

	env := llmjson.CoerceEnvelope(v)
	if env == nil {
		detail := "no usable answer block"
		if err := llmjson.ValidateEnvelope(v); err != nil {
			detail = err.Error()
		}
		return nil, &AnalyzeError{Surface: n.name(), Kind: ErrSchemaInvalid, Detail: detail, Text: comp.Text}
	}

	zap.L().Debug("connector: natural analysis",
		zap.String("surface", n.name()),
		zap.Stringer("extract_step", step),
		zap.Int("entities", len(env.AnswerBlock.OrderedEntities)),
		zap.Bool("brand_mentioned", env.Analysis.BrandAnalysis.Mentioned),
		zap.Float64("confidence", env.Analysis.ExtractionConfidence),
	)
	return &AnalyzeResult{Envelope: *env, Raw: comp.Raw}, nil
}
