// Package audit runs a set of queries against every configured answer
// surface and scores the brand's visibility in the answers.
package audit

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sells-group/geo-audit/internal/connector"
	"github.com/sells-group/geo-audit/internal/cost"
	"github.com/sells-group/geo-audit/internal/model"
	"github.com/sells-group/geo-audit/internal/scorer"
)

// Audit modes.
const (
	ModeStructured = "structured"
	ModeNatural    = "natural"
)

const defaultBatchSize = 5

// Brand is the tracked brand and what an answer should say about it.
type Brand struct {
	Name        string   `json:"name"`
	Domains     []string `json:"domains"`
	Competitors []string `json:"competitors,omitempty"`
	// Location is sent with structured prompts; a query's own Geo wins.
	Location string `json:"location,omitempty"`
	City     string `json:"city,omitempty"`
	State    string `json:"state,omitempty"`
	// GenericWords overrides the default loose-match stop-list.
	GenericWords []string `json:"-"`
}

func (b Brand) evaluationContext() scorer.EvaluationContext {
	return scorer.EvaluationContext{
		BrandName:    b.Name,
		BrandDomains: b.Domains,
		Competitors:  b.Competitors,
		GenericWords: b.GenericWords,
	}
}

// Surface pairs a surface name with its connectors. Only the connector for
// the runner's mode is required.
type Surface struct {
	Name       string
	Structured connector.Connector
	Natural    connector.NaturalConnector
}

// RunnerConfig controls fan-out.
type RunnerConfig struct {
	Mode string
	// BatchSize bounds the number of jobs in flight.
	BatchSize int
	// RequestsPerSecond caps job starts. 0 disables the limit.
	RequestsPerSecond float64
}

// Runner executes audits.
type Runner struct {
	cfg      RunnerConfig
	surfaces []Surface
	limiter  *rate.Limiter
}

// NewRunner validates cfg against surfaces and creates a Runner.
func NewRunner(cfg RunnerConfig, surfaces []Surface) (*Runner, error) {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if len(surfaces) == 0 {
		return nil, eris.New("audit: no surfaces configured")
	}
	for _, s := range surfaces {
		switch cfg.Mode {
		case ModeStructured:
			if s.Structured == nil {
				return nil, eris.Errorf("audit: surface %s has no structured connector", s.Name)
			}
		case ModeNatural:
			if s.Natural == nil {
				return nil, eris.Errorf("audit: surface %s has no natural connector", s.Name)
			}
		default:
			return nil, eris.Errorf("audit: unknown mode %q", cfg.Mode)
		}
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	return &Runner{
		cfg:      cfg,
		surfaces: surfaces,
		limiter:  rate.NewLimiter(limit, cfg.BatchSize),
	}, nil
}

// JobResult is the outcome of one query on one surface. Score is nil when
// the job failed.
type JobResult struct {
	QueryID   string          `json:"query_id"`
	QueryText string          `json:"query_text"`
	QueryType model.QueryType `json:"query_type"`
	Weight    float64         `json:"weight"`
	Surface   string          `json:"surface"`

	Score       *model.ScoredAnswer    `json:"score,omitempty"`
	Bucket      model.Bucket           `json:"bucket,omitempty"`
	Answer      *model.AnswerBlock     `json:"answer,omitempty"`
	Analysis    *model.NaturalAnalysis `json:"analysis,omitempty"`
	Competitors []string               `json:"competitors_mentioned,omitempty"`

	Fallback       bool   `json:"fallback,omitempty"`
	FallbackReason string `json:"fallback_reason,omitempty"`
	UsedWebSearch  bool   `json:"used_web_search,omitempty"`
	SourceCount    int    `json:"source_count,omitempty"`

	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// Summary aggregates the scored jobs of a surface, or of the whole run.
type Summary struct {
	model.AggregateScores
	Bucket model.Bucket `json:"bucket"`
	// WeightedScore is the mean score weighted by query weight.
	WeightedScore float64 `json:"weighted_score"`
	Jobs          int     `json:"jobs"`
	Failed        int     `json:"failed"`
	Fallbacks     int     `json:"fallbacks"`
}

// Report is the result of an audit run.
type Report struct {
	Brand       Brand              `json:"brand"`
	Mode        string             `json:"mode"`
	StartedAt   time.Time          `json:"started_at"`
	CompletedAt time.Time          `json:"completed_at"`
	Overall     Summary            `json:"overall"`
	Surfaces    map[string]Summary `json:"surfaces"`
	Jobs        []JobResult        `json:"jobs"`

	// CostUSD and Usage are filled in by the caller from its cost tracker.
	CostUSD float64                      `json:"cost_usd"`
	Usage   map[string]cost.SurfaceUsage `json:"usage,omitempty"`
}

// Run sends every query to every surface. Individual job failures are
// recorded in the report; Run itself fails only when ctx ends first.
func (r *Runner) Run(ctx context.Context, brand Brand, queries []model.Query) (*Report, error) {
	log := zap.L().With(zap.String("brand", brand.Name), zap.String("mode", r.cfg.Mode))
	log.Info("audit: starting run",
		zap.Int("queries", len(queries)),
		zap.Int("surfaces", len(r.surfaces)),
	)

	report := &Report{
		Brand:     brand,
		Mode:      r.cfg.Mode,
		StartedAt: time.Now().UTC(),
		Jobs:      make([]JobResult, 0, len(queries)*len(r.surfaces)),
	}
	for _, q := range queries {
		for _, s := range r.surfaces {
			report.Jobs = append(report.Jobs, JobResult{
				QueryID:   q.ID,
				QueryText: q.Text,
				QueryType: q.Type,
				Weight:    q.Weight,
				Surface:   s.Name,
			})
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.BatchSize)

	for i := range report.Jobs {
		job := &report.Jobs[i]
		q := queries[i/len(r.surfaces)]
		s := r.surfaces[i%len(r.surfaces)]
		g.Go(func() error {
			if err := r.limiter.Wait(gctx); err != nil {
				job.Error = err.Error()
				return nil
			}
			start := time.Now()
			r.runJob(gctx, job, s, brand, q)
			job.DurationMs = time.Since(start).Milliseconds()
			return nil
		})
	}
	_ = g.Wait()

	report.CompletedAt = time.Now().UTC()
	report.Overall, report.Surfaces = summarize(report.Jobs)

	log.Info("audit: run complete",
		zap.Float64("overall_score", report.Overall.OverallScore),
		zap.Float64("visibility_pct", report.Overall.VisibilityPct),
		zap.String("bucket", string(report.Overall.Bucket)),
		zap.Int("failed", report.Overall.Failed),
		zap.Duration("elapsed", report.CompletedAt.Sub(report.StartedAt)),
	)

	if err := ctx.Err(); err != nil {
		return report, eris.Wrap(err, "audit: run interrupted")
	}
	return report, nil
}

func (r *Runner) runJob(ctx context.Context, job *JobResult, s Surface, brand Brand, q model.Query) {
	var answer *model.AnswerBlock
	switch r.cfg.Mode {
	case ModeNatural:
		answer = r.runNatural(ctx, job, s, brand, q)
	default:
		answer = r.runStructured(ctx, job, s, brand, q)
	}
	if answer == nil {
		zap.L().Warn("audit: job failed",
			zap.String("surface", s.Name),
			zap.String("query_id", q.ID),
			zap.String("error", job.Error),
		)
		return
	}

	ec := brand.evaluationContext()
	scored := scorer.ScoreAnswer(*answer, ec)
	job.Answer = answer
	job.Score = &scored
	job.Bucket = scorer.ScoreBucket(scored.Score)
	job.Competitors = scorer.CompetitorMentions(*answer, ec)
}

func (r *Runner) runStructured(ctx context.Context, job *JobResult, s Surface, brand Brand, q model.Query) *model.AnswerBlock {
	location := q.Geo
	if location == "" {
		location = brand.Location
	}
	res := s.Structured.Invoke(ctx, connector.ConnectorContext{
		QueryID:          q.ID,
		QueryText:        q.Text,
		BrandName:        brand.Name,
		BrandDomains:     brand.Domains,
		Competitors:      brand.Competitors,
		PropertyLocation: location,
	})
	job.Fallback = res.Fallback
	job.FallbackReason = res.Reason
	return &res.Answer
}

func (r *Runner) runNatural(ctx context.Context, job *JobResult, s Surface, brand Brand, q model.Query) *model.AnswerBlock {
	resp, err := s.Natural.GetNaturalResponse(ctx, q.Text)
	if err != nil {
		job.Error = err.Error()
		return nil
	}
	job.UsedWebSearch = resp.UsedWebSearch
	job.SourceCount = len(resp.SearchSources)

	res, err := s.Natural.AnalyzeResponse(ctx, connector.NaturalAnalyzeContext{
		NaturalResponse: resp,
		BrandName:       brand.Name,
		QueryText:       q.Text,
		ExpectedCity:    brand.City,
		ExpectedState:   brand.State,
		BrandDomains:    brand.Domains,
		Competitors:     brand.Competitors,
	})
	if err != nil {
		job.Error = err.Error()
		return nil
	}
	job.Analysis = &res.Envelope.Analysis
	return &res.Envelope.AnswerBlock
}

// summarize aggregates scored jobs overall and per surface.
func summarize(jobs []JobResult) (Summary, map[string]Summary) {
	bySurface := make(map[string][]JobResult)
	for _, j := range jobs {
		bySurface[j.Surface] = append(bySurface[j.Surface], j)
	}

	surfaces := make(map[string]Summary, len(bySurface))
	for name, js := range bySurface {
		surfaces[name] = summarizeJobs(js)
	}
	return summarizeJobs(jobs), surfaces
}

func summarizeJobs(jobs []JobResult) Summary {
	var (
		scored       []model.ScoredAnswer
		weighted, ws float64
	)
	s := Summary{Jobs: len(jobs)}
	for _, j := range jobs {
		if j.Fallback {
			s.Fallbacks++
		}
		if j.Score == nil {
			s.Failed++
			continue
		}
		scored = append(scored, *j.Score)
		weighted += j.Weight * j.Score.Score
		ws += j.Weight
	}

	s.AggregateScores = scorer.AggregateScores(scored)
	s.Bucket = scorer.ScoreBucket(s.OverallScore)
	if ws > 0 {
		s.WeightedScore = weighted / ws
	}
	return s
}
