// File: cmd/run.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/campaign-probe/api/schemas"
	"github.com/xkilldash9x/campaign-probe/internal/browser/session"
	"github.com/xkilldash9x/campaign-probe/internal/browser/stealth"
	"github.com/xkilldash9x/campaign-probe/internal/capture"
	"github.com/xkilldash9x/campaign-probe/internal/config"
	"github.com/xkilldash9x/campaign-probe/internal/deeplinks"
	"github.com/xkilldash9x/campaign-probe/internal/evidence"
	"github.com/xkilldash9x/campaign-probe/internal/observability"
	"github.com/xkilldash9x/campaign-probe/internal/reporting"
	"github.com/xkilldash9x/campaign-probe/internal/runner"
)

var _ runner.BrowserSession = (*session.Session)(nil)

// errCasesFailed makes the process exit non-zero when any case failed.
var errCasesFailed = errors.New("one or more test cases failed")

const persistTimeout = 30 * time.Second

// runDeps are the collaborators of a run that tests replace.
type runDeps struct {
	newSession runner.SessionFactory
	resolver   runner.URLResolver
	provider   storeProvider
}

// runOptions are the per-invocation settings that are not part of the config.
type runOptions struct {
	reportPath string
}

func newRunCmd(provider storeProvider) *cobra.Command {
	var (
		caseFlags []string
		opts      runOptions
	)

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Runs the configured test cases and verifies their campaigns",
		Long: `Runs every test case from the config file, or the ones given with --case.
Each case drives a fresh browser through its journey, checks the personalized
home page image and records the campaign responses. A JUnit report is written
to the evidence directory.`,
		Example: `  campaign-probe run --case "BFV1:DE/de:C236"
  campaign-probe run --case "Personalized CTA 1:BE/nl_BE" --concurrency 2`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			if len(caseFlags) > 0 {
				cases, err := parseCases(caseFlags)
				if err != nil {
					return err
				}
				cfg.SetCases(cases)
			}

			allocCtx, cancel := session.NewAllocator(ctx, cfg.Browser())
			defer cancel()

			if cfg.Deeplinks().Token == "" {
				logger.Warn("No deeplinks API token configured (PROBE_DEEPLINKS_TOKEN); requests will be unauthenticated.")
			}

			deps := runDeps{
				newSession: func(ctx context.Context) (runner.BrowserSession, error) {
					s, err := session.New(allocCtx, cfg.Browser(), logger)
					if err != nil {
						return nil, err
					}
					return s, nil
				},
				resolver: deeplinks.NewClient(cfg.Deeplinks(), logger),
				provider: provider,
			}

			failed, err := runProbe(ctx, logger, cfg, deps, opts)
			if err != nil {
				return err
			}
			if failed {
				return errCasesFailed
			}
			return nil
		},
	}

	runCmd.Flags().StringArrayVar(&caseFlags, "case", nil, `Test case as "journey:MARKET/lang[:model[:test-link]]". Repeatable. Replaces the configured cases.`)
	runCmd.Flags().IntP("concurrency", "j", 0, "Number of cases run in parallel. (Overrides config/env)")
	runCmd.Flags().Int("max-attempts", 0, "Attempts per case before it fails. (Overrides config/env)")
	runCmd.Flags().Bool("headless", true, "Run the browser without a window. (Overrides config/env)")
	runCmd.Flags().String("evidence-dir", "", "Directory for screenshots, captures and the JUnit report. (Overrides config/env)")
	runCmd.Flags().Bool("screenshots", true, "Save a screenshot of every attempt. (Overrides config/env)")
	runCmd.Flags().StringVarP(&opts.reportPath, "report", "o", "", "Also write all results as JSON to this path ('stdout' for the terminal).")

	return runCmd
}

// parseCases parses --case values.
func parseCases(values []string) ([]schemas.TestCase, error) {
	cases := make([]schemas.TestCase, 0, len(values))
	for _, v := range values {
		c, err := parseCase(v)
		if err != nil {
			return nil, err
		}
		cases = append(cases, c)
	}
	return cases, nil
}

func parseCase(value string) (schemas.TestCase, error) {
	parts := strings.SplitN(value, ":", 4)
	if len(parts) < 2 || strings.TrimSpace(parts[0]) == "" || strings.TrimSpace(parts[1]) == "" {
		return schemas.TestCase{}, fmt.Errorf("invalid case %q: want journey:MARKET/lang[:model[:test-link]]", value)
	}
	c := schemas.TestCase{
		TestName:   strings.TrimSpace(parts[0]),
		MarketCode: strings.TrimSpace(parts[1]),
	}
	if len(parts) > 2 {
		c.ModelCode = strings.TrimSpace(parts[2])
	}
	if len(parts) > 3 {
		c.TestLink = parts[3]
	}
	return c, nil
}

// persona builds the browser fingerprint, keeping the configured user agent.
func persona(cfg config.BrowserConfig) stealth.Persona {
	p := stealth.DefaultPersona
	if cfg.UserAgent != "" {
		p.UserAgent = cfg.UserAgent
	}
	return p
}

// runProbe executes the configured cases, writes the reports and persists the
// results. failed reports whether any case did not pass or skip.
func runProbe(ctx context.Context, logger *zap.Logger, cfg config.Interface, deps runDeps, opts runOptions) (failed bool, err error) {
	cases := cfg.Cases()
	if len(cases) == 0 {
		return false, fmt.Errorf("no test cases configured: add 'cases' to the config file or pass --case")
	}

	writer, err := evidence.NewWriter(cfg.Evidence().Dir, logger)
	if err != nil {
		return false, err
	}

	captureCfg := capture.Config{
		TargetHost:      cfg.Capture().TargetHost,
		MaxPostDataSize: cfg.Capture().MaxPostDataSize,
		Persona:         persona(cfg.Browser()),
	}
	r := runner.New(cfg.Runner(), captureCfg, deps.newSession, deps.resolver, logger,
		runner.WithEvidence(writer, cfg.Evidence().Screenshot))

	runID := uuid.NewString()
	logger.Info("Starting run.", zap.String("run_id", runID), zap.Int("cases", len(cases)))

	results, runErr := r.Run(ctx, cases)

	if junit := cfg.Evidence().JUnitFile; junit != "" {
		if !filepath.IsAbs(junit) {
			junit = writer.Path(junit)
		}
		if err := writeReport("junit", junit, results); err != nil {
			return false, err
		}
		logger.Info("JUnit report written.", zap.String("path", junit))
	}
	if opts.reportPath != "" {
		if err := writeReport("json", opts.reportPath, results); err != nil {
			return false, err
		}
	}

	if cfg.Database().URL != "" && deps.provider != nil {
		// Partial results of an interrupted run are still worth keeping.
		persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
		defer cancel()
		if err := persistRun(persistCtx, cfg, deps.provider, runID, results); err != nil {
			return false, err
		}
	}

	if runErr != nil {
		return false, fmt.Errorf("run interrupted: %w", runErr)
	}
	return runner.Failed(results), nil
}

func persistRun(ctx context.Context, cfg config.Interface, provider storeProvider, runID string, results []schemas.RunResult) error {
	st, cleanup, err := provider.Create(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	if cleanup != nil {
		defer cleanup()
	}
	if err := st.PersistRun(ctx, runID, results); err != nil {
		return fmt.Errorf("failed to persist run %s: %w", runID, err)
	}
	return nil
}

// writeReport writes results with the reporter for format.
func writeReport(format, path string, results []schemas.RunResult) error {
	reporter, err := reporting.New(format, path)
	if err != nil {
		return fmt.Errorf("failed to initialize reporter: %w", err)
	}
	for i := range results {
		if err := reporter.Write(&results[i]); err != nil {
			_ = reporter.Close()
			return fmt.Errorf("failed to write report: %w", err)
		}
	}
	if err := reporter.Close(); err != nil {
		return fmt.Errorf("failed to close report %s: %w", path, err)
	}
	return nil
}
