// File: cmd/report.go
package cmd

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/campaign-probe/api/schemas"
	"github.com/xkilldash9x/campaign-probe/internal/config"
	"github.com/xkilldash9x/campaign-probe/internal/observability"
	"github.com/xkilldash9x/campaign-probe/internal/store"
)

// resultStore is the persistence the commands use.
type resultStore interface {
	PersistRun(ctx context.Context, runID string, results []schemas.RunResult) error
	RecentResults(ctx context.Context, limit int) ([]store.StoredResult, error)
}

// storeProvider defines an interface for components that can create a result
// store. It lets tests inject a mock store instead of a live database.
type storeProvider interface {
	// Create returns the store, a cleanup function releasing its resources,
	// and an error if the creation fails.
	Create(ctx context.Context, cfg config.Interface) (resultStore, func(), error)
}

// defaultStoreProvider connects to PostgreSQL.
type defaultStoreProvider struct{}

// NewStoreProvider returns the production store provider.
func NewStoreProvider() storeProvider {
	return &defaultStoreProvider{}
}

// Create connects to the database, makes sure the tables exist and returns
// the store with a cleanup function closing the pool.
func (p *defaultStoreProvider) Create(ctx context.Context, cfg config.Interface) (resultStore, func(), error) {
	logger := observability.GetLogger()
	if cfg.Database().URL == "" {
		return nil, nil, fmt.Errorf("database URL is not configured (PROBE_DATABASE_URL)")
	}

	pool, err := pgxpool.New(ctx, cfg.Database().URL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	storeService, err := store.New(ctx, pool, logger)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to initialize store service: %w", err)
	}
	if err := storeService.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}

	cleanup := func() {
		pool.Close()
		logger.Debug("Database connection pool closed.")
	}
	return storeService, cleanup, nil
}

// newReportCmd creates and configures the `report` command.
func newReportCmd(provider storeProvider) *cobra.Command {
	var (
		limit      int
		outputPath string
		format     string
	)

	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "Renders the most recent persisted results",
		Long: `Loads the latest results from the database and renders them as JSON or
JUnit XML. Requires database.url (PROBE_DATABASE_URL).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			return runReport(ctx, logger, cfg, limit, outputPath, format, provider)
		},
	}

	reportCmd.Flags().IntVarP(&limit, "limit", "n", 50, "Number of results to load, newest first.")
	reportCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file path. If unset, the report is printed to stdout.")
	reportCmd.Flags().StringVarP(&format, "format", "f", "json", "Format for the output report ('json' or 'junit').")

	return reportCmd
}

// runReport contains the core, testable logic for generating a report.
func runReport(
	ctx context.Context,
	logger *zap.Logger,
	cfg config.Interface,
	limit int,
	outputPath, format string,
	provider storeProvider,
) error {
	st, cleanup, err := provider.Create(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	if cleanup != nil {
		defer cleanup()
	}

	stored, err := st.RecentResults(ctx, limit)
	if err != nil {
		return fmt.Errorf("failed to load results: %w", err)
	}

	results := make([]schemas.RunResult, len(stored))
	for i, s := range stored {
		results[i] = s.Result
	}
	if err := writeReport(format, outputPath, results); err != nil {
		return err
	}

	logger.Info("Report generated.", zap.Int("results", len(results)), zap.String("format", format))
	return nil
}
