package analysis

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"scenecut/internal/metrics"
)

// Record implements metrics.Sink by appending to operation_metrics.
func (s *Store) Record(ctx context.Context, m metrics.Metric) error {
	var metaJSON sql.NullString
	if len(m.Metadata) > 0 {
		raw, err := json.Marshal(m.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metric metadata: %w", err)
		}
		metaJSON = sql.NullString{String: string(raw), Valid: true}
	}
	success := 0
	if m.Success {
		success = 1
	}
	_, err := s.execWithRetry(ctx,
		`INSERT INTO operation_metrics (operation, analysis_id, started_at, ended_at, duration_ms, success, error, error_kind, metadata_json)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.Operation,
		nullable(m.AnalysisID),
		m.StartedAt.UTC().Format(timeLayout),
		m.EndedAt.UTC().Format(timeLayout),
		m.Duration.Milliseconds(),
		success,
		nullable(m.Error),
		nullable(m.ErrorKind),
		metaJSON,
	)
	if err != nil {
		return fmt.Errorf("record metric: %w", err)
	}
	return nil
}

// MetricsFilter narrows a metrics query. Zero values match everything.
type MetricsFilter struct {
	Operation  string
	AnalysisID string
	Since      time.Time
	Limit      int
}

// Metrics returns recorded metrics, oldest first.
func (s *Store) Metrics(ctx context.Context, filter MetricsFilter) ([]metrics.Metric, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.Operation != "" {
		clauses = append(clauses, "operation = ?")
		args = append(args, filter.Operation)
	}
	if filter.AnalysisID != "" {
		clauses = append(clauses, "analysis_id = ?")
		args = append(args, filter.AnalysisID)
	}
	if !filter.Since.IsZero() {
		clauses = append(clauses, "started_at >= ?")
		args = append(args, filter.Since.UTC().Format(timeLayout))
	}
	query := `SELECT operation, analysis_id, started_at, ended_at, duration_ms, success, error, error_kind, metadata_json
              FROM operation_metrics`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY id"
	if filter.Limit > 0 {
		query = `SELECT * FROM (` + query + ` DESC LIMIT ?) ORDER BY started_at`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query metrics: %w", err)
	}
	defer rows.Close()

	var out []metrics.Metric
	for rows.Next() {
		var (
			m                            metrics.Metric
			analysisID, errText, errKind sql.NullString
			metaJSON                     sql.NullString
			startedRaw, endedRaw         string
			durationMS                   int64
			success                      int
		)
		if err := rows.Scan(&m.Operation, &analysisID, &startedRaw, &endedRaw, &durationMS, &success, &errText, &errKind, &metaJSON); err != nil {
			return nil, fmt.Errorf("scan metric: %w", err)
		}
		m.AnalysisID = analysisID.String
		m.StartedAt = parseTime(startedRaw)
		m.EndedAt = parseTime(endedRaw)
		m.Duration = time.Duration(durationMS) * time.Millisecond
		m.Success = success == 1
		m.Error = errText.String
		m.ErrorKind = errKind.String
		if metaJSON.Valid {
			_ = json.Unmarshal([]byte(metaJSON.String), &m.Metadata)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func nullable(value string) sql.NullString {
	value = strings.TrimSpace(value)
	if value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}
