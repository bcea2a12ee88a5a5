package telemetry

import (
	"context"
	"crypto/tls"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"
)

// Reader provides read access to the tool_executed_events table.
type Reader struct {
	conn   driver.Conn
	logger *zap.Logger
}

// NewReader opens a ClickHouse connection for read queries.
func NewReader(dsn string, logger *zap.Logger) (*Reader, error) {
	opts, err := clickhouse.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("NewReader: %w", err)
	}
	if opts.TLS == nil {
		opts.TLS = &tls.Config{}
	}

	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("NewReader: %w", err)
	}
	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("NewReader: %w", err)
	}

	return &Reader{conn: conn, logger: logger}, nil
}

// Close closes the ClickHouse connection.
func (r *Reader) Close() error {
	return r.conn.Close()
}

// ListExecutionsParams holds filters and pagination for execution listing.
type ListExecutionsParams struct {
	WorkspaceID     string
	IntegrationName *string
	ToolName        *string
	IsError         *bool
	StartTime       *time.Time
	EndTime         *time.Time
	Page            int
	PageSize        int
}

// executionFilter builds the WHERE clause and named args for params.
func executionFilter(params ListExecutionsParams) (string, []any) {
	conditions := []string{"workspace_id = @workspace_id"}
	args := []any{
		clickhouse.Named("workspace_id", params.WorkspaceID),
	}

	if params.IntegrationName != nil {
		conditions = append(conditions, "integration_name = @integration_name")
		args = append(args, clickhouse.Named("integration_name", *params.IntegrationName))
	}
	if params.ToolName != nil {
		conditions = append(conditions, "tool_name = @tool_name")
		args = append(args, clickhouse.Named("tool_name", *params.ToolName))
	}
	if params.IsError != nil {
		var v uint8
		if *params.IsError {
			v = 1
		}
		conditions = append(conditions, "is_error = @is_error")
		args = append(args, clickhouse.Named("is_error", v))
	}
	if params.StartTime != nil {
		conditions = append(conditions, "timestamp >= @start_time")
		args = append(args, clickhouse.Named("start_time", *params.StartTime))
	}
	if params.EndTime != nil {
		conditions = append(conditions, "timestamp <= @end_time")
		args = append(args, clickhouse.Named("end_time", *params.EndTime))
	}
	return strings.Join(conditions, " AND "), args
}

// ListExecutions returns paginated, filtered tool executions and the total count.
func (r *Reader) ListExecutions(ctx context.Context, params ListExecutionsParams) ([]ToolExecutedEvent, int, error) {
	where, args := executionFilter(params)
	offset := (params.Page - 1) * params.PageSize

	var total uint64
	countQuery := fmt.Sprintf("SELECT count() FROM tool_executed_events WHERE %s", where)
	if err := r.conn.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("ListExecutions count: %w", err)
	}

	dataQuery := fmt.Sprintf(
		"SELECT execution_id, workspace_id, integration_id, integration_name, "+
			"integration_type, tool_name, is_error, duration_ms, timestamp "+
			"FROM tool_executed_events WHERE %s "+
			"ORDER BY timestamp DESC "+
			"LIMIT @limit OFFSET @offset",
		where,
	)
	args = append(args,
		clickhouse.Named("limit", uint32(params.PageSize)),
		clickhouse.Named("offset", uint32(offset)),
	)

	rows, err := r.conn.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("ListExecutions query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []ToolExecutedEvent
	for rows.Next() {
		var e ToolExecutedEvent
		var isError uint8
		if err := rows.Scan(
			&e.ExecutionID, &e.WorkspaceID, &e.IntegrationID, &e.IntegrationName,
			&e.IntegrationType, &e.ToolName, &isError, &e.DurationMs, &e.Timestamp,
		); err != nil {
			return nil, 0, fmt.Errorf("ListExecutions scan: %w", err)
		}
		e.IsError = isError == 1
		events = append(events, e)
	}

	return events, int(total), rows.Err()
}

// ToolCount holds a tool and how often it ran and failed.
type ToolCount struct {
	IntegrationName string `json:"integration_name"`
	ToolName        string `json:"tool_name"`
	Executions      int    `json:"executions"`
	Errors          int    `json:"errors"`
}

// DurationStats holds execution duration percentiles in milliseconds.
type DurationStats struct {
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

// ToolStats aggregates a workspace's tool executions.
type ToolStats struct {
	Executions int           `json:"executions"`
	Errors     int           `json:"errors"`
	Durations  DurationStats `json:"durations"`
	TopTools   []ToolCount   `json:"top_tools"`
}

// GetToolStats returns aggregated execution stats for a workspace over the given number of days.
func (r *Reader) GetToolStats(ctx context.Context, workspaceID string, days int) (*ToolStats, error) {
	rangeStart := time.Now().UTC().Add(-time.Duration(days) * 24 * time.Hour)
	args := []any{
		clickhouse.Named("workspace_id", workspaceID),
		clickhouse.Named("range_start", rangeStart),
	}

	result := &ToolStats{}

	var executions, errCount uint64
	var p50, p95, p99 float64
	err := r.conn.QueryRow(ctx,
		"SELECT count() as executions, "+
			"countIf(is_error = 1) as errors, "+
			"quantile(0.5)(duration_ms) as p50, "+
			"quantile(0.95)(duration_ms) as p95, "+
			"quantile(0.99)(duration_ms) as p99 "+
			"FROM tool_executed_events "+
			"WHERE workspace_id = @workspace_id AND timestamp >= @range_start",
		args...,
	).Scan(&executions, &errCount, &p50, &p95, &p99)
	if err != nil {
		return nil, fmt.Errorf("GetToolStats summary: %w", err)
	}
	result.Executions = int(executions)
	result.Errors = int(errCount)
	result.Durations = DurationStats{P50: safeFloat(p50), P95: safeFloat(p95), P99: safeFloat(p99)}

	rows, err := r.conn.Query(ctx,
		"SELECT integration_name, tool_name, count() as executions, countIf(is_error = 1) as errors "+
			"FROM tool_executed_events "+
			"WHERE workspace_id = @workspace_id AND timestamp >= @range_start "+
			"GROUP BY integration_name, tool_name ORDER BY executions DESC LIMIT 10",
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("GetToolStats top_tools: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var tc ToolCount
		var n, e uint64
		if err := rows.Scan(&tc.IntegrationName, &tc.ToolName, &n, &e); err != nil {
			return nil, fmt.Errorf("GetToolStats top_tools scan: %w", err)
		}
		tc.Executions, tc.Errors = int(n), int(e)
		result.TopTools = append(result.TopTools, tc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("GetToolStats top_tools: %w", err)
	}

	if result.TopTools == nil {
		result.TopTools = []ToolCount{}
	}
	return result, nil
}

// safeFloat replaces NaN/Inf with 0.0.
// ClickHouse returns NaN for quantile() on empty result sets.
func safeFloat(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0.0
	}
	return f
}
