package api

import (
	"net/http"

	"github.com/triage-ai/palisade/services/integration_engine/internal/errs"
	"github.com/triage-ai/palisade/services/integration_engine/internal/tools"
)

func (d *Dependencies) handleResolveTools(w http.ResponseWriter, r *http.Request) {
	var req ResolveToolsReq
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Invalid JSON body"})
		return
	}

	resolved, err := d.Resolver.Resolve(r.Context(), workspaceID(r), req.Tools)
	if err != nil {
		d.writeError(w, "resolve tools", err)
		return
	}

	resp := ResolveToolsResp{Tools: make(map[string]ResolvedToolResp, len(resolved))}
	for name, t := range resolved {
		resp.Tools[name] = ResolvedToolResp{Name: t.Name, Definition: t.Definition, SourceData: t.SourceData}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleExecuteTool resolves a single "integration/tool" reference and runs it.
// Tool failures are reported in the body with is_error set, not as HTTP errors.
func (d *Dependencies) handleExecuteTool(w http.ResponseWriter, r *http.Request) {
	var req ExecuteToolReq
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Invalid JSON body"})
		return
	}

	ref, err := tools.ParseReference(req.Tool)
	if err != nil {
		d.writeError(w, "execute tool", err)
		return
	}
	if ref.IsWildcard() {
		d.writeError(w, "execute tool", errs.BadRequest("cannot execute wildcard reference %q", req.Tool))
		return
	}

	resolved, err := d.Resolver.Resolve(r.Context(), workspaceID(r), []string{req.Tool})
	if err != nil {
		d.writeError(w, "resolve tool", err)
		return
	}
	tool, ok := resolved[ref.Tool]
	if !ok {
		d.writeError(w, "resolve tool", errs.NotFound("tool %q not found", req.Tool))
		return
	}

	args := req.Arguments
	if args == nil {
		args = map[string]any{}
	}
	res := tool.Execute(r.Context(), args)
	writeJSON(w, http.StatusOK, ExecuteToolResp{Value: res.Value, IsError: res.IsError})
}
