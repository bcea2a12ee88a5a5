package api

import (
	"net/http"

	"github.com/triage-ai/palisade/services/integration_engine/internal/trigger"
)

func (d *Dependencies) handleCreateTrigger(w http.ResponseWriter, r *http.Request) {
	var req CreateTriggerReq
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Invalid JSON body"})
		return
	}
	if req.CommitUUID == "" || req.TriggerType == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "commit_uuid and trigger_type are required"})
		return
	}

	t, err := d.Triggers.Create(r.Context(), trigger.CreateInput{
		WorkspaceID:   workspaceID(r),
		CommitUUID:    req.CommitUUID,
		DocumentUUID:  r.PathValue("document_uuid"),
		TriggerType:   req.TriggerType,
		Configuration: req.Configuration,
	})
	if err != nil {
		d.writeError(w, "create trigger", err)
		return
	}
	writeJSON(w, http.StatusCreated, triggerToResp(t))
}

func (d *Dependencies) handleUpdateTrigger(w http.ResponseWriter, r *http.Request) {
	var req UpdateTriggerReq
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Invalid JSON body"})
		return
	}
	if req.CommitUUID == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "commit_uuid is required"})
		return
	}

	t, err := d.Triggers.Update(r.Context(), trigger.UpdateInput{
		WorkspaceID:   workspaceID(r),
		CommitUUID:    req.CommitUUID,
		TriggerUUID:   r.PathValue("trigger_uuid"),
		TriggerType:   req.TriggerType,
		Configuration: req.Configuration,
	})
	if err != nil {
		d.writeError(w, "update trigger", err)
		return
	}
	writeJSON(w, http.StatusOK, triggerToResp(t))
}

func (d *Dependencies) handleDeleteTrigger(w http.ResponseWriter, r *http.Request) {
	commitUUID := r.URL.Query().Get("commit_uuid")
	if commitUUID == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "commit_uuid is required"})
		return
	}

	t, err := d.Triggers.Delete(r.Context(), trigger.DeleteInput{
		WorkspaceID: workspaceID(r),
		CommitUUID:  commitUUID,
		TriggerUUID: r.PathValue("trigger_uuid"),
	})
	if err != nil {
		d.writeError(w, "delete trigger", err)
		return
	}
	writeJSON(w, http.StatusOK, triggerToResp(t))
}
