package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"backtestgpt/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

type RunRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewRunRepository(pool PgxPool, tracer trace.Tracer) *RunRepository {
	return &RunRepository{pool: pool, tracer: tracer}
}

// InsertRun stores one executed backtest with its spec and metrics as JSON
// and returns the assigned id.
func (r *RunRepository) InsertRun(ctx context.Context, run domain.BacktestRun) (int64, error) {
	_, span := r.tracer.Start(ctx, "run-repo.insert-run")
	defer span.End()

	specJSON, err := json.Marshal(run.Spec)
	if err != nil {
		return 0, fmt.Errorf("encode spec: %w", err)
	}
	metricsJSON, err := json.Marshal(run.Metrics)
	if err != nil {
		return 0, fmt.Errorf("encode metrics: %w", err)
	}

	var id int64
	err = r.pool.QueryRow(ctx,
		`INSERT INTO backtest_runs (session_key, ticker, spec, metrics, created_at)
		 VALUES ($1, $2, $3, $4, NOW())
		 RETURNING id`,
		run.SessionKey, run.Ticker, specJSON, metricsJSON,
	).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

// ListRecent returns the newest runs first.
func (r *RunRepository) ListRecent(ctx context.Context, limit int) ([]domain.BacktestRun, error) {
	_, span := r.tracer.Start(ctx, "run-repo.list-recent")
	defer span.End()

	if limit <= 0 {
		limit = 20
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, session_key, ticker, spec, metrics, created_at
		 FROM backtest_runs
		 ORDER BY created_at DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []domain.BacktestRun
	for rows.Next() {
		var run domain.BacktestRun
		var specJSON, metricsJSON []byte
		if err := rows.Scan(&run.ID, &run.SessionKey, &run.Ticker, &specJSON, &metricsJSON, &run.CreatedAt); err != nil {
			return nil, err
		}
		if len(specJSON) > 0 {
			if err := json.Unmarshal(specJSON, &run.Spec); err != nil {
				return nil, fmt.Errorf("decode spec for run %d: %w", run.ID, err)
			}
		}
		if len(metricsJSON) > 0 {
			run.Metrics = &domain.Metrics{}
			if err := json.Unmarshal(metricsJSON, run.Metrics); err != nil {
				return nil, fmt.Errorf("decode metrics for run %d: %w", run.ID, err)
			}
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
