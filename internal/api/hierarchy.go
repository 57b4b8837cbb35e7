package api

import (
	"net/http"
	"strconv"

	"github.com/stratodrive/stratodrive/internal/auth"
	"github.com/stratodrive/stratodrive/internal/events"
	"github.com/stratodrive/stratodrive/internal/hierarchy"
	"github.com/stratodrive/stratodrive/internal/model"
	"github.com/stratodrive/stratodrive/internal/rbac"
)

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	caller, err := auth.CallerFrom(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	user, err := s.users.GetByID(r.Context(), caller.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

type createFolderRequest struct {
	Name     string  `json:"name"`
	ParentID *string `json:"parent_id"`
}

func (s *Server) handleCreateFolder(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.requireAction(w, r, rbac.ActionCreateFolder)
	if !ok {
		return
	}
	var req createFolderRequest
	if !decodeBody(w, r, &req) {
		return
	}
	folder, err := s.hierarchy.CreateFolder(r.Context(), caller, req.Name, req.ParentID)
	if err != nil {
		writeError(w, err)
		return
	}
	s.broadcaster.Publish(events.Event{
		Type: events.EventCreated, ItemType: model.ItemFolder,
		ItemID: folder.ID, OwnerID: folder.OwnerID,
	})
	writeJSON(w, http.StatusCreated, folder)
}

func (s *Server) handleGetFolder(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.requireAction(w, r, rbac.ActionView)
	if !ok {
		return
	}
	folder, err := s.hierarchy.GetFolder(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.authorizeRead(r, caller, model.ItemFolder, folder.ID, folder.OwnerID, folder.IsPublic); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, folder)
}

func (s *Server) handleBreadcrumbs(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.requireAction(w, r, rbac.ActionView)
	if !ok {
		return
	}
	folder, err := s.hierarchy.GetFolder(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.authorizeRead(r, caller, model.ItemFolder, folder.ID, folder.OwnerID, folder.IsPublic); err != nil {
		writeError(w, err)
		return
	}
	crumbs, err := s.hierarchy.BreadcrumbPath(r.Context(), folder.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, crumbs)
}

type colorRequest struct {
	Color *string `json:"color"`
}

func (s *Server) handleSetFolderColor(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.requireAction(w, r, rbac.ActionRename)
	if !ok {
		return
	}
	var req colorRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.hierarchy.SetFolderColor(r.Context(), caller, r.PathValue("id"), req.Color); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleList serves the main browsing surface. filter=active scopes to
// one parent; trashed/starred span the caller's hierarchy; public with
// all=true lists every user's public items.
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.requireAction(w, r, rbac.ActionView)
	if !ok {
		return
	}

	filter := hierarchy.FilterActive
	if f := r.URL.Query().Get("filter"); f != "" {
		if !hierarchy.ValidFilter(f) {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "unknown filter " + f})
			return
		}
		filter = hierarchy.Filter(f)
	}

	ownerID := caller.ID
	if filter == hierarchy.FilterPublic && r.URL.Query().Get("all") == "true" {
		ownerID = ""
	}

	var parentID *string
	if p := r.URL.Query().Get("parent_id"); p != "" {
		parentID = &p
	}

	listing, err := s.hierarchy.List(r.Context(), ownerID, parentID, filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.requireAction(w, r, rbac.ActionView)
	if !ok {
		return
	}
	term := r.URL.Query().Get("q")
	if term == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing search term"})
		return
	}
	files, err := s.hierarchy.SearchFiles(r.Context(), caller.ID, term)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, files)
}

func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.requireAction(w, r, rbac.ActionView)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	files, err := s.hierarchy.RecentFiles(r.Context(), caller.ID, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, files)
}

type renameRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleRename(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.requireAction(w, r, rbac.ActionRename)
	if !ok {
		return
	}
	t, ok := itemTypeFromPath(w, r)
	if !ok {
		return
	}
	var req renameRequest
	if !decodeBody(w, r, &req) {
		return
	}
	id := r.PathValue("id")
	if err := s.hierarchy.Rename(r.Context(), caller, t, id, req.Name); err != nil {
		writeError(w, err)
		return
	}
	s.broadcaster.Publish(events.Event{Type: events.EventRenamed, ItemType: t, ItemID: id, OwnerID: caller.ID})
	w.WriteHeader(http.StatusNoContent)
}

type moveRequest struct {
	ParentID *string `json:"parent_id"`
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.requireAction(w, r, rbac.ActionMove)
	if !ok {
		return
	}
	t, ok := itemTypeFromPath(w, r)
	if !ok {
		return
	}
	var req moveRequest
	if !decodeBody(w, r, &req) {
		return
	}
	id := r.PathValue("id")
	if err := s.hierarchy.Move(r.Context(), caller, t, id, req.ParentID); err != nil {
		writeError(w, err)
		return
	}
	s.broadcaster.Publish(events.Event{Type: events.EventMoved, ItemType: t, ItemID: id, OwnerID: caller.ID})
	w.WriteHeader(http.StatusNoContent)
}

type starredRequest struct {
	Starred bool `json:"starred"`
}

func (s *Server) handleSetStarred(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.requireAction(w, r, rbac.ActionStar)
	if !ok {
		return
	}
	t, ok := itemTypeFromPath(w, r)
	if !ok {
		return
	}
	var req starredRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.hierarchy.SetStarred(r.Context(), caller, t, r.PathValue("id"), req.Starred); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type visibilityRequest struct {
	IsPublic bool `json:"is_public"`
}

func (s *Server) handleSetPublic(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.requireAction(w, r, rbac.ActionTogglePublic)
	if !ok {
		return
	}
	t, ok := itemTypeFromPath(w, r)
	if !ok {
		return
	}
	var req visibilityRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.hierarchy.SetPublic(r.Context(), caller, t, r.PathValue("id"), req.IsPublic); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTrash(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.requireAction(w, r, rbac.ActionTrash)
	if !ok {
		return
	}
	t, ok := itemTypeFromPath(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")
	if err := s.hierarchy.MoveToTrash(r.Context(), caller, t, id); err != nil {
		writeError(w, err)
		return
	}
	s.broadcaster.Publish(events.Event{Type: events.EventTrashed, ItemType: t, ItemID: id, OwnerID: caller.ID})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRestoreFromTrash(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.requireAction(w, r, rbac.ActionRestore)
	if !ok {
		return
	}
	t, ok := itemTypeFromPath(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")
	if err := s.hierarchy.RestoreFromTrash(r.Context(), caller, t, id); err != nil {
		writeError(w, err)
		return
	}
	s.broadcaster.Publish(events.Event{Type: events.EventRestored, ItemType: t, ItemID: id, OwnerID: caller.ID})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePermanentDelete(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.requireAction(w, r, rbac.ActionPermanentDelete)
	if !ok {
		return
	}
	t, ok := itemTypeFromPath(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")
	blobRefs, err := s.hierarchy.PermanentlyDelete(r.Context(), caller, t, id)
	if err != nil {
		writeError(w, err)
		return
	}
	s.releaseBlobs(r.Context(), blobRefs)
	s.broadcaster.Publish(events.Event{Type: events.EventDeleted, ItemType: t, ItemID: id, OwnerID: caller.ID})
	w.WriteHeader(http.StatusNoContent)
}
