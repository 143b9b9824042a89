package usage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/relayforge/llmrelay/llm"
)

// Store persists usage records to SQL. It implements llm.UsageSink.
// The usage_records table comes from the migrations package; callers run
// migrations before handing the database here.
type Store struct {
	db *sql.DB
}

// NewStore creates a new usage Store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// RecordUsage inserts one usage record.
func (s *Store) RecordUsage(ctx context.Context, rec llm.UsageRecord) error {
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	query := sq.Insert("usage_records").
		Columns("provider", "model", "input_tokens", "output_tokens", "latency_ms",
			"success", "error_message", "request_id", "caller_name", "caller_id",
			"task_type", "attempts", "created_at").
		Values(string(rec.Provider), rec.Model, rec.InputTokens, rec.OutputTokens,
			rec.Latency.Milliseconds(), rec.Success, rec.ErrorMessage, rec.RequestID,
			rec.CallerName, rec.CallerID, rec.TaskType, rec.Attempts, createdAt.Unix())

	queryStr, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	_, err = s.db.ExecContext(ctx, queryStr, args...)
	return err
}

// ProviderSummary aggregates one provider's recorded calls.
type ProviderSummary struct {
	Provider     llm.Provider  `json:"provider"`
	Calls        int64         `json:"calls"`
	Failures     int64         `json:"failures"`
	InputTokens  int64         `json:"input_tokens"`
	OutputTokens int64         `json:"output_tokens"`
	AvgLatency   time.Duration `json:"avg_latency"`
}

// Summary aggregates recorded usage per provider. A zero since covers
// everything; otherwise only records created at or after since count.
// Providers with the most calls come first.
func (s *Store) Summary(ctx context.Context, since time.Time) ([]ProviderSummary, error) {
	query := sq.Select(
		"provider",
		"COUNT(*) AS calls",
		"SUM(CASE WHEN success THEN 0 ELSE 1 END)",
		"COALESCE(SUM(input_tokens), 0)",
		"COALESCE(SUM(output_tokens), 0)",
		"COALESCE(AVG(latency_ms), 0)",
	).From("usage_records").
		GroupBy("provider").
		OrderBy("calls DESC", "provider ASC")
	if !since.IsZero() {
		query = query.Where(sq.GtOrEq{"created_at": since.Unix()})
	}

	queryStr, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, queryStr, args...)
	if err != nil {
		return nil, fmt.Errorf("query summary: %w", err)
	}
	defer rows.Close()

	var out []ProviderSummary
	for rows.Next() {
		var (
			sum      ProviderSummary
			provider string
			avgLatMs float64
		)
		if err := rows.Scan(&provider, &sum.Calls, &sum.Failures,
			&sum.InputTokens, &sum.OutputTokens, &avgLatMs); err != nil {
			return nil, fmt.Errorf("scan summary row: %w", err)
		}
		sum.Provider = llm.Provider(provider)
		sum.AvgLatency = time.Duration(avgLatMs * float64(time.Millisecond))
		out = append(out, sum)
	}
	return out, rows.Err()
}

// CountSince returns how many records were created at or after since.
func (s *Store) CountSince(ctx context.Context, since time.Time) (int64, error) {
	query := sq.Select("COUNT(*)").From("usage_records")
	if !since.IsZero() {
		query = query.Where(sq.GtOrEq{"created_at": since.Unix()})
	}

	queryStr, args, err := query.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}

	var count int64
	if err := s.db.QueryRowContext(ctx, queryStr, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return count, nil
}
