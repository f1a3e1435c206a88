// Package store persists run results to PostgreSQL.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/xkilldash9x/campaign-probe/api/schemas"
)

// DBPool is an interface that abstracts the pgxpool.Pool to allow for mocking in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS probe_runs (
    id          TEXT PRIMARY KEY,
    started_at  TIMESTAMPTZ NOT NULL,
    finished_at TIMESTAMPTZ NOT NULL,
    passed      INTEGER NOT NULL,
    failed      INTEGER NOT NULL,
    skipped     INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS probe_results (
    run_id          TEXT NOT NULL REFERENCES probe_runs(id),
    id              TEXT NOT NULL,
    test_name       TEXT NOT NULL,
    market_code     TEXT NOT NULL,
    model_code      TEXT NOT NULL,
    model_name      TEXT NOT NULL,
    body_type       TEXT NOT NULL,
    status          TEXT NOT NULL,
    message         TEXT NOT NULL,
    attempts        INTEGER NOT NULL,
    image_found     BOOLEAN NOT NULL,
    personalization TEXT NOT NULL,
    screenshot_path TEXT NOT NULL,
    capture_path    TEXT NOT NULL,
    started_at      TIMESTAMPTZ NOT NULL,
    duration_ms     BIGINT NOT NULL,
    PRIMARY KEY (run_id, id)
);
CREATE TABLE IF NOT EXISTS probe_campaigns (
    run_id          TEXT NOT NULL,
    result_id       TEXT NOT NULL,
    response_url    TEXT NOT NULL,
    campaign_name   TEXT NOT NULL,
    user_group      TEXT NOT NULL,
    experience_name TEXT NOT NULL,
    payload         JSONB NOT NULL
);`

const sqlUpsertResult = `
        INSERT INTO probe_results (run_id, id, test_name, market_code, model_code, model_name, body_type,
            status, message, attempts, image_found, personalization, screenshot_path, capture_path, started_at, duration_ms)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
        ON CONFLICT (run_id, id) DO UPDATE SET
            status = EXCLUDED.status,
            message = EXCLUDED.message,
            attempts = EXCLUDED.attempts,
            image_found = EXCLUDED.image_found,
            personalization = EXCLUDED.personalization,
            screenshot_path = EXCLUDED.screenshot_path,
            capture_path = EXCLUDED.capture_path,
            duration_ms = EXCLUDED.duration_ms;
    `

var campaignColumns = []string{"run_id", "result_id", "response_url", "campaign_name", "user_group", "experience_name", "payload"}

// StoredResult is a persisted result with the run it belongs to.
type StoredResult struct {
	RunID  string
	Result schemas.RunResult
}

// Store provides a PostgreSQL implementation of result persistence.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

// New creates a new store instance and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		pool: pool,
		log:  logger.Named("store"),
	}, nil
}

// EnsureSchema creates the tables when they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// PersistRun stores a run, its results and every matched campaign in one
// transaction.
func (s *Store) PersistRun(ctx context.Context, runID string, results []schemas.RunResult) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			s.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	if err := s.insertRun(ctx, tx, runID, results); err != nil {
		return err
	}
	if len(results) > 0 {
		if err := s.upsertResults(ctx, tx, runID, results); err != nil {
			return err
		}
		if err := s.copyCampaigns(ctx, tx, runID, results); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.log.Info("Persisted run.", zap.String("run_id", runID), zap.Int("results", len(results)))
	return nil
}

func (s *Store) insertRun(ctx context.Context, tx pgx.Tx, runID string, results []schemas.RunResult) error {
	finished := time.Now().UTC()
	started := finished
	counts := map[schemas.Status]int{}
	for _, r := range results {
		counts[r.Status]++
		if !r.StartedAt.IsZero() && r.StartedAt.Before(started) {
			started = r.StartedAt.UTC()
		}
	}

	_, err := tx.Exec(ctx,
		`INSERT INTO probe_runs (id, started_at, finished_at, passed, failed, skipped) VALUES ($1, $2, $3, $4, $5, $6)`,
		runID, started, finished,
		counts[schemas.StatusPassed], counts[schemas.StatusFailed], counts[schemas.StatusSkipped],
	)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", runID, err)
	}
	return nil
}

func (s *Store) upsertResults(ctx context.Context, tx pgx.Tx, runID string, results []schemas.RunResult) error {
	batch := &pgx.Batch{}
	for _, r := range results {
		batch.Queue(sqlUpsertResult,
			runID, r.ID, r.Case.TestName, r.Case.MarketCode, r.Case.ModelCode,
			r.Case.URLs.ModelName, r.Case.URLs.BodyType,
			string(r.Status), r.Message, r.Attempts, r.ImageFound, string(r.Personalization),
			r.ScreenshotPath, r.CapturePath, r.StartedAt.UTC(), r.Duration.Milliseconds(),
		)
	}

	br := tx.SendBatch(ctx, batch)
	if br == nil {
		return fmt.Errorf("failed to send batch: batch results is nil")
	}
	defer func() {
		_ = br.Close()
	}()

	for i := range results {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to upsert result %s (index %d): %w", results[i].ID, i, err)
		}
	}
	return nil
}

func (s *Store) copyCampaigns(ctx context.Context, tx pgx.Tx, runID string, results []schemas.RunResult) error {
	var rows [][]interface{}
	for _, r := range results {
		for _, resp := range r.Captured {
			for _, c := range resp.Body.CampaignResponses {
				payload := json.RawMessage(c)
				if len(payload) == 0 {
					payload = json.RawMessage("{}")
				}
				rows = append(rows, []interface{}{
					runID, r.ID, resp.URL, c.Name(), c.UserGroup(), c.ExperienceName(), payload,
				})
			}
		}
	}
	if len(rows) == 0 {
		return nil
	}

	n, err := tx.CopyFrom(ctx, pgx.Identifier{"probe_campaigns"}, campaignColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("failed to copy campaigns: %w", err)
	}
	if int(n) != len(rows) {
		return fmt.Errorf("mismatch in copied campaigns count: expected %d, got %d", len(rows), n)
	}
	return nil
}

// RecentResults returns the latest persisted results, newest first.
func (s *Store) RecentResults(ctx context.Context, limit int) ([]StoredResult, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
        SELECT run_id, id, test_name, market_code, model_code, model_name, body_type,
            status, message, attempts, image_found, personalization, started_at, duration_ms
        FROM probe_results
        ORDER BY started_at DESC
        LIMIT $1;
    `
	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer rows.Close()

	var out []StoredResult
	for rows.Next() {
		var (
			sr              StoredResult
			status, persona string
			durationMS      int64
		)
		r := &sr.Result
		err := rows.Scan(
			&sr.RunID, &r.ID, &r.Case.TestName, &r.Case.MarketCode, &r.Case.ModelCode,
			&r.Case.URLs.ModelName, &r.Case.URLs.BodyType,
			&status, &r.Message, &r.Attempts, &r.ImageFound, &persona, &r.StartedAt, &durationMS,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan result row: %w", err)
		}
		r.Status = schemas.Status(status)
		r.Personalization = schemas.Personalization(persona)
		r.Duration = time.Duration(durationMS) * time.Millisecond
		out = append(out, sr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return out, nil
}
