package api

import (
	"net/http"

	"github.com/stratodrive/stratodrive/internal/events"
	"github.com/stratodrive/stratodrive/internal/rbac"
)

type createBackupRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleCreateBackup(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.requireAction(w, r, rbac.ActionCreateBackup)
	if !ok {
		return
	}
	var req createBackupRequest
	if !decodeBody(w, r, &req) {
		return
	}
	b, err := s.backups.Create(r.Context(), caller, req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (s *Server) handleListBackups(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.requireAction(w, r, rbac.ActionView)
	if !ok {
		return
	}
	backups, err := s.backups.List(r.Context(), caller.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, backups)
}

func (s *Server) handleGetBackup(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.requireAction(w, r, rbac.ActionView)
	if !ok {
		return
	}
	b, err := s.backups.Get(r.Context(), caller, r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleRestoreBackup(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.requireAction(w, r, rbac.ActionRestoreBackup)
	if !ok {
		return
	}
	b, err := s.backups.Restore(r.Context(), caller, r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	s.broadcaster.Publish(events.Event{Type: events.EventBackupRestored, OwnerID: b.OwnerID})
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleDeleteBackup(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.requireAction(w, r, rbac.ActionDeleteBackup)
	if !ok {
		return
	}
	if err := s.backups.Delete(r.Context(), caller, r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
