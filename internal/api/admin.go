package api

import (
	"net/http"

	"github.com/stratodrive/stratodrive/internal/model"
	"github.com/stratodrive/stratodrive/internal/rbac"
)

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireAction(w, r, rbac.ActionManageUsers); !ok {
		return
	}
	list, err := s.users.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

type createUserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireAction(w, r, rbac.ActionManageUsers); !ok {
		return
	}
	var req createUserRequest
	if !decodeBody(w, r, &req) {
		return
	}
	role := model.RoleWriter
	if req.Role != "" {
		if !model.ValidRole(req.Role) {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "unknown role " + req.Role})
			return
		}
		role = model.Role(req.Role)
	}
	if len(req.Password) < 8 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "password must be at least 8 characters"})
		return
	}
	user, err := s.users.Create(r.Context(), req.Email, req.Password, role)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

type setRoleRequest struct {
	Role string `json:"role"`
}

func (s *Server) handleSetRole(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireAction(w, r, rbac.ActionManageUsers); !ok {
		return
	}
	var req setRoleRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if !model.ValidRole(req.Role) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "unknown role " + req.Role})
		return
	}
	if err := s.users.UpdateRole(r.Context(), r.PathValue("id"), model.Role(req.Role)); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type setLimitRequest struct {
	LimitMB float64 `json:"limit_mb"`
}

func (s *Server) handleSetLimit(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireAction(w, r, rbac.ActionSetQuota); !ok {
		return
	}
	var req setLimitRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.quota.SetLimit(r.Context(), r.PathValue("id"), req.LimitMB); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.requireAction(w, r, rbac.ActionManageUsers)
	if !ok {
		return
	}
	id := r.PathValue("id")
	if id == caller.ID {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "cannot delete your own account"})
		return
	}
	blobRefs, err := s.users.Delete(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	s.releaseBlobs(r.Context(), blobRefs)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireAction(w, r, rbac.ActionManageUsers); !ok {
		return
	}
	stats, err := s.users.Stats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleAllBackups(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireAction(w, r, rbac.ActionManageUsers); !ok {
		return
	}
	backups, err := s.backups.ListAll(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, backups)
}
