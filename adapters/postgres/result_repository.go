package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"lassoc/domain/assoc"
	"lassoc/domain/core"
	"lassoc/internal/errors"
	"lassoc/ports"
)

// ResultRepository persists association results in PostgreSQL. Searchable
// fields live in columns; the full result travels as a JSONB payload so the
// stored shape evolves with the domain types.
type ResultRepository struct {
	db *sqlx.DB
}

var _ ports.ResultRepository = (*ResultRepository)(nil)

// NewResultRepository creates a repository over an open connection pool.
func NewResultRepository(db *sqlx.DB) *ResultRepository {
	return &ResultRepository{db: db}
}

// Connect opens a PostgreSQL pool and verifies connectivity.
func Connect(ctx context.Context, url string) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", url)
	if err != nil {
		return nil, errors.StorageError("failed to open database", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)
	if err := db.PingContext(ctx); err != nil {
		return nil, errors.StorageError("failed to ping database", err)
	}
	return db, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS association_results (
	id           UUID PRIMARY KEY,
	measure      TEXT NOT NULL,
	global_value DOUBLE PRECISION NOT NULL,
	sample_size  INTEGER NOT NULL,
	fingerprint  TEXT NOT NULL,
	tested       BOOLEAN NOT NULL DEFAULT FALSE,
	iterations   INTEGER,
	payload      JSONB NOT NULL,
	computed_at  TIMESTAMPTZ NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_association_results_computed_at
	ON association_results (computed_at DESC);
CREATE INDEX IF NOT EXISTS idx_association_results_fingerprint
	ON association_results (fingerprint);
`

// EnsureSchema creates the results table if it does not exist.
func (r *ResultRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return errors.StorageError("failed to ensure schema", err)
	}
	return nil
}

type resultRow struct {
	ID          string    `db:"id"`
	Measure     string    `db:"measure"`
	GlobalValue float64   `db:"global_value"`
	SampleSize  int       `db:"sample_size"`
	Fingerprint string    `db:"fingerprint"`
	Tested      bool      `db:"tested"`
	Iterations  *int      `db:"iterations"`
	Payload     []byte    `db:"payload"`
	ComputedAt  time.Time `db:"computed_at"`
}

const upsertQuery = `
INSERT INTO association_results
	(id, measure, global_value, sample_size, fingerprint, tested, iterations, payload, computed_at)
VALUES
	(:id, :measure, :global_value, :sample_size, :fingerprint, :tested, :iterations, :payload, :computed_at)
ON CONFLICT (id) DO UPDATE SET
	measure      = EXCLUDED.measure,
	global_value = EXCLUDED.global_value,
	sample_size  = EXCLUDED.sample_size,
	fingerprint  = EXCLUDED.fingerprint,
	tested       = EXCLUDED.tested,
	iterations   = EXCLUDED.iterations,
	payload      = EXCLUDED.payload,
	computed_at  = EXCLUDED.computed_at`

// SaveResult stores a plain association result.
func (r *ResultRepository) SaveResult(ctx context.Context, res *assoc.Result) error {
	payload, err := json.Marshal(res)
	if err != nil {
		return errors.StorageError("failed to serialize result", err)
	}
	row := resultRow{
		ID:          string(res.AnalysisID),
		Measure:     string(res.Measure),
		GlobalValue: res.Global,
		SampleSize:  res.SampleSize,
		Fingerprint: string(res.Fingerprint),
		Tested:      false,
		Payload:     payload,
		ComputedAt:  res.ComputedAt.Time(),
	}
	if _, err := r.db.NamedExecContext(ctx, upsertQuery, row); err != nil {
		return errors.StorageError("failed to save result", err)
	}
	return nil
}

// SaveTestedResult stores a permutation-tested result.
func (r *ResultRepository) SaveTestedResult(ctx context.Context, res *assoc.TestedResult) error {
	payload, err := json.Marshal(res)
	if err != nil {
		return errors.StorageError("failed to serialize tested result", err)
	}
	iterations := res.Iterations
	row := resultRow{
		ID:          string(res.AnalysisID),
		Measure:     string(res.Measure),
		GlobalValue: res.Global,
		SampleSize:  res.SampleSize,
		Fingerprint: string(res.Fingerprint),
		Tested:      true,
		Iterations:  &iterations,
		Payload:     payload,
		ComputedAt:  res.ComputedAt.Time(),
	}
	if _, err := r.db.NamedExecContext(ctx, upsertQuery, row); err != nil {
		return errors.StorageError("failed to save tested result", err)
	}
	return nil
}

// GetResult loads a result by analysis id.
func (r *ResultRepository) GetResult(ctx context.Context, id core.AnalysisID) (*assoc.Result, error) {
	var row resultRow
	err := r.db.GetContext(ctx, &row,
		`SELECT payload FROM association_results WHERE id = $1`, string(id))
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("analysis result")
	}
	if err != nil {
		return nil, errors.StorageError("failed to load result", err)
	}
	var res assoc.Result
	if err := json.Unmarshal(row.Payload, &res); err != nil {
		return nil, errors.StorageError("failed to deserialize result", err)
	}
	return &res, nil
}

// GetTestedResult loads a permutation-tested result by analysis id.
func (r *ResultRepository) GetTestedResult(ctx context.Context, id core.AnalysisID) (*assoc.TestedResult, error) {
	var row resultRow
	err := r.db.GetContext(ctx, &row,
		`SELECT payload FROM association_results WHERE id = $1 AND tested`, string(id))
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("tested analysis result")
	}
	if err != nil {
		return nil, errors.StorageError("failed to load tested result", err)
	}
	var res assoc.TestedResult
	if err := json.Unmarshal(row.Payload, &res); err != nil {
		return nil, errors.StorageError("failed to deserialize tested result", err)
	}
	return &res, nil
}

// ListResults returns the most recent results, newest first.
func (r *ResultRepository) ListResults(ctx context.Context, limit int) ([]*assoc.Result, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []resultRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT payload FROM association_results ORDER BY computed_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, errors.StorageError("failed to list results", err)
	}
	results := make([]*assoc.Result, 0, len(rows))
	for _, row := range rows {
		var res assoc.Result
		if err := json.Unmarshal(row.Payload, &res); err != nil {
			return nil, errors.StorageError("failed to deserialize result", err)
		}
		results = append(results, &res)
	}
	return results, nil
}
