package database

import (
	"context"
	"fmt"
	"time"

	"github.com/lifely/lifely/internal/inference"
)

// InferenceLogRepository handles inference call log operations.
type InferenceLogRepository struct {
	db *DB
}

// NewInferenceLogRepository creates a new repository.
func NewInferenceLogRepository(db *DB) *InferenceLogRepository {
	return &InferenceLogRepository{db: db}
}

// CreateCall stores one call record.
func (r *InferenceLogRepository) CreateCall(ctx context.Context, rec inference.CallRecord) error {
	query := r.db.Rebind(`
		INSERT INTO inference_calls (
			id, run_id, provider, model, operation, attempt, input_tokens, output_tokens,
			latency_ms, status, error_kind, error_message, cost_usd, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)

	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx, query,
		rec.ID,
		rec.RunID,
		rec.Provider,
		rec.Model,
		rec.Operation,
		rec.Attempt,
		rec.InputTokens,
		rec.OutputTokens,
		rec.LatencyMs,
		rec.Status,
		rec.ErrorKind,
		rec.ErrorMessage,
		rec.CostUSD,
		createdAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert inference call: %w", err)
	}
	return nil
}

// CallQuery filters List results.
type CallQuery struct {
	RunID     string
	Model     string
	Operation string
	Status    string
	Limit     int
}

// List returns call records, newest first.
func (r *InferenceLogRepository) List(ctx context.Context, q CallQuery) ([]inference.CallRecord, error) {
	sqlQuery := `
		SELECT id, run_id, provider, model, operation, attempt, input_tokens, output_tokens,
		       latency_ms, status, error_kind, error_message, cost_usd, created_at
		FROM inference_calls
		WHERE 1=1
	`
	args := []interface{}{}

	if q.RunID != "" {
		sqlQuery += " AND run_id = ?"
		args = append(args, q.RunID)
	}
	if q.Model != "" {
		sqlQuery += " AND model = ?"
		args = append(args, q.Model)
	}
	if q.Operation != "" {
		sqlQuery += " AND operation = ?"
		args = append(args, q.Operation)
	}
	if q.Status != "" {
		sqlQuery += " AND status = ?"
		args = append(args, q.Status)
	}

	sqlQuery += " ORDER BY created_at DESC, id"

	if q.Limit > 0 {
		sqlQuery += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := r.db.QueryContext(ctx, r.db.Rebind(sqlQuery), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query inference calls: %w", err)
	}
	defer rows.Close()

	var calls []inference.CallRecord
	for rows.Next() {
		var rec inference.CallRecord
		err := rows.Scan(
			&rec.ID,
			&rec.RunID,
			&rec.Provider,
			&rec.Model,
			&rec.Operation,
			&rec.Attempt,
			&rec.InputTokens,
			&rec.OutputTokens,
			&rec.LatencyMs,
			&rec.Status,
			&rec.ErrorKind,
			&rec.ErrorMessage,
			&rec.CostUSD,
			&rec.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan inference call: %w", err)
		}
		calls = append(calls, rec)
	}
	return calls, rows.Err()
}

// CallStats aggregates call records.
type CallStats struct {
	TotalCalls      int     `json:"total_calls"`
	SuccessfulCalls int     `json:"successful_calls"`
	FailedCalls     int     `json:"failed_calls"`
	InputTokens     int64   `json:"input_tokens"`
	OutputTokens    int64   `json:"output_tokens"`
	TotalCostUSD    float64 `json:"total_cost_usd"`
	AvgLatencyMs    float64 `json:"avg_latency_ms"`
}

// GetStats aggregates calls, optionally for a single run.
func (r *InferenceLogRepository) GetStats(ctx context.Context, runID string) (CallStats, error) {
	query := `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN status = 'success' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'error' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(input_tokens), 0),
			COALESCE(SUM(output_tokens), 0),
			COALESCE(SUM(cost_usd), 0),
			COALESCE(AVG(latency_ms), 0)
		FROM inference_calls
	`
	var args []interface{}
	if runID != "" {
		query += " WHERE run_id = ?"
		args = append(args, runID)
	}

	var stats CallStats
	err := r.db.QueryRowContext(ctx, r.db.Rebind(query), args...).Scan(
		&stats.TotalCalls,
		&stats.SuccessfulCalls,
		&stats.FailedCalls,
		&stats.InputTokens,
		&stats.OutputTokens,
		&stats.TotalCostUSD,
		&stats.AvgLatencyMs,
	)
	if err != nil {
		return CallStats{}, fmt.Errorf("failed to get inference stats: %w", err)
	}
	return stats, nil
}
