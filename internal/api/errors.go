package api

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/triage-ai/palisade/services/integration_engine/internal/errs"
)

// writeError maps a domain error onto its HTTP status.
func (d *Dependencies) writeError(w http.ResponseWriter, op string, err error) {
	if v, ok := errs.AsValidation(err); ok {
		writeJSON(w, http.StatusUnprocessableEntity, ValidationErrorResp{
			Detail: v.Error(),
			Errors: v.Errors,
			Schema: v.Schema,
		})
		return
	}

	switch errs.KindOf(err) {
	case errs.KindBadRequest:
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: err.Error()})
	case errs.KindNotFound:
		writeJSON(w, http.StatusNotFound, ErrorResp{Detail: err.Error()})
	case errs.KindUpstream:
		d.Logger.Warn("upstream failure", zap.String("op", op), zap.Error(err))
		writeJSON(w, http.StatusBadGateway, ErrorResp{Detail: err.Error()})
	default:
		d.Logger.Error("request failed", zap.String("op", op), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to " + op})
	}
}
