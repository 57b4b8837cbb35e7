package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/stratodrive/stratodrive/internal/auth"
	"github.com/stratodrive/stratodrive/internal/logging"
	"github.com/stratodrive/stratodrive/internal/model"
	"github.com/stratodrive/stratodrive/internal/rbac"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("encode response", zap.Error(err))
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeError maps the store error taxonomy onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, model.ErrAuthenticationRequired):
		status = http.StatusUnauthorized
	case errors.Is(err, model.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, model.ErrNotFound), errors.Is(err, model.ErrBackupNotFound):
		status = http.StatusNotFound
	case errors.Is(err, model.ErrInvalidParent),
		errors.Is(err, model.ErrInvalidName):
		status = http.StatusBadRequest
	case errors.Is(err, model.ErrFolderNotEmpty):
		status = http.StatusConflict
	case errors.Is(err, model.ErrQuotaExceeded):
		status = http.StatusRequestEntityTooLarge
	}
	if status == http.StatusInternalServerError {
		logging.Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return false
	}
	return true
}

// requireAction authenticates the caller and gates by role. On failure
// the response has already been written.
func (s *Server) requireAction(w http.ResponseWriter, r *http.Request, action rbac.Action) (model.Caller, bool) {
	caller, err := auth.CallerFrom(r.Context())
	if err != nil {
		writeError(w, err)
		return model.Caller{}, false
	}
	if !rbac.Can(caller.Role, action) {
		writeJSON(w, http.StatusForbidden, errorResponse{Error: "role " + string(caller.Role) + " may not " + string(action)})
		return model.Caller{}, false
	}
	return caller, true
}

// itemTypeFromPath parses the {type} path segment.
func itemTypeFromPath(w http.ResponseWriter, r *http.Request) (model.ItemType, bool) {
	t := r.PathValue("type")
	if !model.ValidItemType(t) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "item type must be folder or file"})
		return "", false
	}
	return model.ItemType(t), true
}
