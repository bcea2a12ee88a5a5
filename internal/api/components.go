package api

import (
	"net/http"
)

func (d *Dependencies) handleComponentSchema(w http.ResponseWriter, r *http.Request) {
	var req ComponentSchemaReq
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Invalid JSON body"})
		return
	}
	if req.IntegrationName == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "integration_name is required"})
		return
	}

	integ, err := d.Integrations.FindIntegrationByName(r.Context(), workspaceID(r), req.IntegrationName)
	if err != nil {
		d.writeError(w, "load integration", err)
		return
	}
	schema, err := d.Assembler.Assemble(r.Context(), r.PathValue("component_id"), integ)
	if err != nil {
		d.writeError(w, "assemble schema", err)
		return
	}
	writeJSON(w, http.StatusOK, ComponentSchemaResp{Schema: schema})
}

func (d *Dependencies) handleValidateConfiguration(w http.ResponseWriter, r *http.Request) {
	var req ValidateConfigurationReq
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Invalid JSON body"})
		return
	}
	if req.IntegrationName == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "integration_name is required"})
		return
	}

	integ, err := d.Integrations.FindIntegrationByName(r.Context(), workspaceID(r), req.IntegrationName)
	if err != nil {
		d.writeError(w, "load integration", err)
		return
	}
	schema, err := d.Validator.Validate(r.Context(), r.PathValue("component_id"), integ, req.Configuration)
	if err != nil {
		d.writeError(w, "validate configuration", err)
		return
	}
	writeJSON(w, http.StatusOK, ValidateConfigurationResp{Valid: true, Schema: schema})
}
