package api

import (
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/triage-ai/palisade/services/integration_engine/internal/telemetry"
)

func (d *Dependencies) handleListExecutions(w http.ResponseWriter, r *http.Request) {
	if d.Executions == nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResp{Detail: "ClickHouse not configured"})
		return
	}

	q := r.URL.Query()
	params := telemetry.ListExecutionsParams{
		WorkspaceID: workspaceID(r),
		Page:        queryInt(q, "page", 1),
		PageSize:    queryInt(q, "page_size", 50),
	}
	if params.PageSize > 200 {
		params.PageSize = 200
	}
	if params.PageSize < 1 {
		params.PageSize = 50
	}
	if params.Page < 1 {
		params.Page = 1
	}

	if v := q.Get("integration_name"); v != "" {
		params.IntegrationName = &v
	}
	if v := q.Get("tool_name"); v != "" {
		params.ToolName = &v
	}
	if v := q.Get("is_error"); v != "" {
		b := v == "true" || v == "1"
		params.IsError = &b
	}
	if v := q.Get("start_time"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			params.StartTime = &t
		}
	}
	if v := q.Get("end_time"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			params.EndTime = &t
		}
	}

	events, total, err := d.Executions.ListExecutions(r.Context(), params)
	if err != nil {
		d.Logger.Error("failed to list executions", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to list executions"})
		return
	}

	resp := ExecutionListResp{
		Executions: make([]ExecutionResp, 0, len(events)),
		Total:      total,
		Page:       params.Page,
		PageSize:   params.PageSize,
	}
	for _, e := range events {
		resp.Executions = append(resp.Executions, ExecutionResp{
			ExecutionID:     e.ExecutionID,
			IntegrationID:   e.IntegrationID,
			IntegrationName: e.IntegrationName,
			IntegrationType: e.IntegrationType,
			ToolName:        e.ToolName,
			IsError:         e.IsError,
			DurationMs:      e.DurationMs,
			Timestamp:       e.Timestamp,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (d *Dependencies) handleToolStats(w http.ResponseWriter, r *http.Request) {
	if d.Executions == nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResp{Detail: "ClickHouse not configured"})
		return
	}

	days := queryInt(r.URL.Query(), "days", 7)
	if days < 1 || days > 90 {
		days = 7
	}

	stats, err := d.Executions.GetToolStats(r.Context(), workspaceID(r), days)
	if err != nil {
		d.Logger.Error("failed to get tool stats", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to get tool stats"})
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// queryInt reads an integer query parameter with a default.
func queryInt(q url.Values, key string, def int) int {
	v := q.Get(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}
