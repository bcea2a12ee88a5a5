package api

import (
	"net/http"

	"github.com/triage-ai/palisade/services/integration_engine/internal/errs"
	"github.com/triage-ai/palisade/services/integration_engine/internal/integration"
	"github.com/triage-ai/palisade/services/integration_engine/internal/trigger"
)

// handleCloneIntegrations maps the caller's integrations onto the target
// workspace and rewrites the given trigger configurations to match. The web
// layer is responsible for authorizing access to the target workspace.
func (d *Dependencies) handleCloneIntegrations(w http.ResponseWriter, r *http.Request) {
	var req CloneIntegrationsReq
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Invalid JSON body"})
		return
	}
	if req.TargetWorkspaceID == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "target_workspace_id is required"})
		return
	}

	origins, err := d.cloneOrigins(r, req.IntegrationNames)
	if err != nil {
		d.writeError(w, "load integrations", err)
		return
	}

	mapping, err := d.Cloner.CloneForWorkspace(r.Context(), origins, req.TargetWorkspaceID, req.AuthorID)
	if err != nil {
		d.writeError(w, "clone integrations", err)
		return
	}

	resp := CloneIntegrationsResp{
		Integrations: make(map[string]IntegrationResp, len(mapping.ByName)),
		Triggers:     make([]CloneTriggerResp, 0, len(req.Triggers)),
	}
	for name, target := range mapping.ByName {
		resp.Integrations[name] = integrationToResp(target)
	}
	for _, t := range req.Triggers {
		cfg, err := trigger.DecodeConfiguration(t.TriggerType, t.Configuration)
		if err != nil {
			d.writeError(w, "clone triggers", errs.BadRequest("invalid %s trigger configuration: %v", t.TriggerType, err))
			return
		}
		stripped, err := d.Stripper.StripForClone(cfg, mapping)
		if err != nil {
			d.writeError(w, "clone triggers", err)
			return
		}
		resp.Triggers = append(resp.Triggers, CloneTriggerResp{TriggerType: t.TriggerType, Configuration: stripped})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (d *Dependencies) cloneOrigins(r *http.Request, names []string) ([]*integration.Integration, error) {
	ws := workspaceID(r)
	if len(names) == 0 {
		return d.Integrations.ListIntegrations(r.Context(), ws)
	}
	origins := make([]*integration.Integration, 0, len(names))
	for _, name := range names {
		integ, err := d.Integrations.FindIntegrationByName(r.Context(), ws, name)
		if err != nil {
			return nil, err
		}
		origins = append(origins, integ)
	}
	return origins, nil
}
