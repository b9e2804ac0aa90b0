package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	pq "github.com/lib/pq"

	"siteaudit/internal/config"
	"siteaudit/pkg/types"
)

// ReportStore persists finished audit results. It treats the AuditResult as
// already-consolidated truth: the row stores the scores for querying plus the
// full result as JSON, nothing is recomputed.
type ReportStore struct {
	db *sql.DB
}

// NewReportStore opens the report sink. A missing driver or DSN returns nil
// with no error so persistence stays optional.
func NewReportStore(cfg config.SQLConfig) (*ReportStore, error) {
	if cfg.Driver == "" || cfg.DSN == "" {
		return nil, nil
	}
	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open report store: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping report store: %w", err)
	}

	store := &ReportStore{db: db}
	if err := store.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Save inserts one audit result, keyed by run ID.
func (s *ReportStore) Save(ctx context.Context, result *types.AuditResult) error {
	if s == nil || s.db == nil {
		return nil
	}
	if result == nil {
		return errors.New("nil audit result")
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode audit result: %w", err)
	}

	if err := s.insertReport(ctx, result, payload); err != nil {
		if isUndefinedTable(err) {
			if schemaErr := s.ensureSchema(ctx); schemaErr != nil {
				return fmt.Errorf("ensure schema: %w", schemaErr)
			}
			if retryErr := s.insertReport(ctx, result, payload); retryErr != nil {
				return fmt.Errorf("insert report: %w", retryErr)
			}
			return nil
		}
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

func (s *ReportStore) insertReport(ctx context.Context, result *types.AuditResult, payload []byte) error {
	query := `
        INSERT INTO audit_reports (run_id, target_url, started_at, finished_at, status, overall_score, report)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        ON CONFLICT (run_id) DO UPDATE SET
            finished_at = EXCLUDED.finished_at,
            status = EXCLUDED.status,
            overall_score = EXCLUDED.overall_score,
            report = EXCLUDED.report
    `
	_, err := s.db.ExecContext(ctx, query,
		result.RunID,
		result.TargetURL,
		result.StartedAt,
		result.FinishedAt,
		string(result.Outcome.Status),
		result.Scores.Overall,
		payload,
	)
	return err
}

func (s *ReportStore) ensureSchema(ctx context.Context) error {
	schema := `
        CREATE TABLE IF NOT EXISTS audit_reports (
            run_id TEXT PRIMARY KEY,
            target_url TEXT NOT NULL,
            started_at TIMESTAMPTZ NOT NULL,
            finished_at TIMESTAMPTZ NOT NULL,
            status TEXT NOT NULL,
            overall_score DOUBLE PRECISION NOT NULL,
            report JSONB NOT NULL
        )
    `
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create audit_reports table: %w", err)
	}
	return nil
}

// Close closes the underlying DB connection.
func (s *ReportStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func isUndefinedTable(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "42P01"
	}
	return strings.Contains(strings.ToLower(err.Error()), "does not exist")
}
