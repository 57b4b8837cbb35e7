package api

import (
	"net/http"

	"github.com/stratodrive/stratodrive/internal/model"
	"github.com/stratodrive/stratodrive/internal/rbac"
)

type grantRequest struct {
	ItemType     string `json:"item_type"`
	ItemID       string `json:"item_id"`
	GranteeID    string `json:"grantee_id"`
	GranteeEmail string `json:"grantee_email"`
	Permission   string `json:"permission"`
}

// handleGrant shares an item with another user, addressed by id or by
// email.
func (s *Server) handleGrant(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.requireAction(w, r, rbac.ActionShare)
	if !ok {
		return
	}
	var req grantRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if !model.ValidItemType(req.ItemType) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "item type must be folder or file"})
		return
	}
	if !model.ValidPermission(req.Permission) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "permission must be viewer, commenter or editor"})
		return
	}

	granteeID := req.GranteeID
	if granteeID == "" && req.GranteeEmail != "" {
		grantee, err := s.users.GetByEmail(r.Context(), req.GranteeEmail)
		if err != nil {
			writeError(w, err)
			return
		}
		granteeID = grantee.ID
	}
	if granteeID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "grantee_id or grantee_email required"})
		return
	}

	grant, err := s.sharing.Grant(r.Context(), caller,
		model.ItemType(req.ItemType), req.ItemID, granteeID, model.Permission(req.Permission))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, grant)
}

func (s *Server) handleRevoke(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.requireAction(w, r, rbac.ActionShare)
	if !ok {
		return
	}
	if err := s.sharing.Revoke(r.Context(), caller, r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListGrants(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.requireAction(w, r, rbac.ActionView)
	if !ok {
		return
	}
	t, ok := itemTypeFromPath(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")

	// Only the item owner (or an admin) may inspect its grant list.
	var ownerID string
	if t == model.ItemFolder {
		folder, err := s.hierarchy.GetFolder(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		ownerID = folder.OwnerID
	} else {
		file, err := s.hierarchy.GetFile(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		ownerID = file.OwnerID
	}
	if !caller.CanActOn(ownerID) {
		writeJSON(w, http.StatusForbidden, errorResponse{Error: "not the item owner"})
		return
	}

	grants, err := s.sharing.ListGrants(r.Context(), t, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, grants)
}

type sharedWithMeResponse struct {
	Folders []model.Folder `json:"folders"`
	Files   []model.File   `json:"files"`
}

func (s *Server) handleSharedWithMe(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.requireAction(w, r, rbac.ActionView)
	if !ok {
		return
	}
	folders, err := s.sharing.SharedFolders(r.Context(), caller.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	files, err := s.sharing.SharedFiles(r.Context(), caller.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sharedWithMeResponse{Folders: folders, Files: files})
}
