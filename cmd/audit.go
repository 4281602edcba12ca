package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/geo-audit/internal/audit"
	"github.com/sells-group/geo-audit/internal/monitoring"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Run a brand visibility audit",
	Long: `Sends every query in the query file to every configured surface, scores
how visible the brand is in each answer, and prints a JSON report.

Structured mode asks each surface for a JSON answer directly. Natural mode
asks the bare question first, then runs a second analysis pass over the
prose answer.

Examples:
  # Structured audit on all configured surfaces
  audit --queries queries.yaml --brand "Acme Apartments" --domain acme.com

  # Natural mode on two surfaces with competitors and a location
  audit --queries queries.yaml --brand "Acme Apartments" --domain acme.com \
    --competitor "Beta Living" --mode natural --surfaces openai,perplexity \
    --location "Austin, TX" --output report.json`,
	RunE: runAudit,
}

func init() {
	f := auditCmd.Flags()
	f.String("queries", "", "path to the YAML query file (required)")
	f.String("brand", "", "brand name to track (required)")
	f.StringSlice("domain", nil, "brand-owned domain (repeatable)")
	f.StringSlice("competitor", nil, "competitor name (repeatable)")
	f.String("mode", "", "structured or natural (overrides config)")
	f.String("surfaces", "", "comma-separated surfaces (overrides config)")
	f.String("location", "", "brand location, e.g. \"Austin, TX\"")
	f.Bool("web-search", false, "enable native web search where supported")
	f.String("output", "", "output file path (default: stdout)")
	_ = auditCmd.MarkFlagRequired("queries")
	_ = auditCmd.MarkFlagRequired("brand")

	rootCmd.AddCommand(auditCmd)
}

func runAudit(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	applyAuditOverrides(cmd)
	if err := cfg.Validate(); err != nil {
		return err
	}

	queriesPath, _ := cmd.Flags().GetString("queries")
	queries, err := audit.LoadQueries(queriesPath)
	if err != nil {
		return err
	}

	brand := brandFromFlags(cmd)
	if len(brand.Domains) == 0 {
		zap.L().Warn("audit: no brand domain given, link rank and share of voice will be empty")
	}

	env, err := initSurfaces(cfg)
	if err != nil {
		return err
	}

	runner, err := audit.NewRunner(audit.RunnerConfig{
		Mode:              cfg.Audit.Mode,
		BatchSize:         cfg.Audit.BatchSize,
		RequestsPerSecond: cfg.Audit.RequestsPerSecond,
	}, env.Surfaces)
	if err != nil {
		return err
	}

	report, runErr := runner.Run(ctx, brand, queries)
	for name, state := range env.Breakers.States() {
		zap.L().Debug("audit: circuit state", zap.String("surface", name), zap.String("state", state.String()))
	}
	if report == nil {
		return runErr
	}
	report.CostUSD = env.Costs.Total()
	report.Usage = env.Costs.BySurface()

	alerter := monitoring.NewAlerter(cfg.Monitoring)
	if alerts := alerter.Evaluate(report); len(alerts) > 0 {
		for _, a := range alerts {
			zap.L().Warn("audit: alert", zap.String("type", string(a.Type)), zap.String("message", a.Message))
		}
		alerter.SendAlerts(ctx, alerts)
	}

	outputPath, _ := cmd.Flags().GetString("output")
	if err := writeReport(report, outputPath); err != nil {
		return err
	}
	return runErr
}

// applyAuditOverrides copies set flags over the loaded config.
func applyAuditOverrides(cmd *cobra.Command) {
	f := cmd.Flags()
	if f.Changed("mode") {
		cfg.Audit.Mode, _ = f.GetString("mode")
	}
	if f.Changed("surfaces") {
		raw, _ := f.GetString("surfaces")
		cfg.Audit.Surfaces = splitList(raw)
	}
	if f.Changed("web-search") {
		cfg.LLM.WebSearch, _ = f.GetBool("web-search")
	}
}

func brandFromFlags(cmd *cobra.Command) audit.Brand {
	f := cmd.Flags()
	name, _ := f.GetString("brand")
	domains, _ := f.GetStringSlice("domain")
	competitors, _ := f.GetStringSlice("competitor")
	location, _ := f.GetString("location")

	b := audit.Brand{
		Name:        strings.TrimSpace(name),
		Domains:     domains,
		Competitors: competitors,
		Location:    strings.TrimSpace(location),
	}
	b.City, b.State = splitLocation(b.Location)
	return b
}

// splitLocation splits "City, ST" into its parts. Anything without a comma
// is treated as a city.
func splitLocation(loc string) (city, state string) {
	city, state, _ = strings.Cut(loc, ",")
	return strings.TrimSpace(city), strings.TrimSpace(state)
}

func splitList(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(strings.ToLower(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func writeReport(report *audit.Report, path string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return eris.Wrap(err, "audit: marshal report")
	}
	data = append(data, '\n')

	if path == "" {
		_, err = os.Stdout.Write(data)
		return eris.Wrap(err, "audit: write report")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "audit: write report %s", path)
	}
	zap.L().Info("audit: report written", zap.String("path", path))
	return nil
}
