package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stratodrive/stratodrive/internal/events"
	"github.com/stratodrive/stratodrive/internal/hierarchy"
	"github.com/stratodrive/stratodrive/internal/logging"
	"github.com/stratodrive/stratodrive/internal/model"
	"github.com/stratodrive/stratodrive/internal/rbac"
)

// authorizeRead decides whether the caller may read an item: the owner
// and admins always, anyone if the item is public, and share grantees.
func (s *Server) authorizeRead(r *http.Request, caller model.Caller, t model.ItemType, itemID, ownerID string, isPublic bool) error {
	if caller.CanActOn(ownerID) || isPublic {
		return nil
	}
	shared, err := s.sharing.HasGrant(r.Context(), caller.ID, t, itemID)
	if err != nil {
		return err
	}
	if !shared {
		return fmt.Errorf("%s %s: %w", t, itemID, model.ErrForbidden)
	}
	return nil
}

// releaseBlobs deletes blobs whose metadata is already gone. Failures
// are logged and skipped; the next delete of the same key is a no-op
// either way.
func (s *Server) releaseBlobs(ctx context.Context, blobRefs []string) {
	for _, ref := range blobRefs {
		if err := s.blobs.Delete(ctx, ref); err != nil {
			logging.Warn("orphaned blob not released",
				zap.String("blob_ref", ref), zap.Error(err))
		}
	}
}

// handleUpload accepts a multipart upload. The blob is written first,
// then the metadata row; if the metadata insert fails (quota, bad
// parent) the blob is deleted again so no orphan survives the request.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.requireAction(w, r, rbac.ActionUploadFile)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxUploadSize)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "upload too large or malformed"})
		return
	}
	part, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing file field"})
		return
	}
	defer part.Close()

	var folderID *string
	if f := r.FormValue("folder_id"); f != "" {
		folderID = &f
	}
	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	blobRef := caller.ID + "/" + uuid.NewString()
	if err := s.blobs.Put(r.Context(), blobRef, part, header.Size); err != nil {
		writeError(w, fmt.Errorf("store blob: %w", err))
		return
	}

	file, err := s.hierarchy.CreateFile(r.Context(), caller, hierarchy.CreateFileParams{
		Name:     header.Filename,
		SizeMB:   float64(header.Size) / (1 << 20),
		MimeType: mimeType,
		BlobRef:  blobRef,
		FolderID: folderID,
	})
	if err != nil {
		// Compensate: the metadata write failed, so the blob must go.
		s.releaseBlobs(context.WithoutCancel(r.Context()), []string{blobRef})
		writeError(w, err)
		return
	}

	s.broadcaster.Publish(events.Event{
		Type: events.EventCreated, ItemType: model.ItemFile,
		ItemID: file.ID, OwnerID: file.OwnerID,
	})
	writeJSON(w, http.StatusCreated, file)
}

func (s *Server) handleGetFile(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.requireAction(w, r, rbac.ActionView)
	if !ok {
		return
	}
	file, err := s.hierarchy.GetFile(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.authorizeRead(r, caller, model.ItemFile, file.ID, file.OwnerID, file.IsPublic); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, file)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.requireAction(w, r, rbac.ActionView)
	if !ok {
		return
	}
	file, err := s.hierarchy.GetFile(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.authorizeRead(r, caller, model.ItemFile, file.ID, file.OwnerID, file.IsPublic); err != nil {
		writeError(w, err)
		return
	}

	body, size, err := s.blobs.Get(r.Context(), file.BlobRef)
	if err != nil {
		writeError(w, fmt.Errorf("fetch blob: %w", err))
		return
	}
	defer body.Close()

	if err := s.hierarchy.TouchAccessed(r.Context(), file.ID); err != nil {
		logging.Warn("touch access time", zap.String("file", file.ID), zap.Error(err))
	}

	w.Header().Set("Content-Type", file.MimeType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+file.Name+`"`)
	if size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	}
	if _, err := io.Copy(w, body); err != nil {
		logging.Debug("download aborted", zap.String("file", file.ID), zap.Error(err))
	}
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.requireAction(w, r, rbac.ActionView)
	if !ok {
		return
	}
	usage, err := s.quota.GetUsage(r.Context(), caller.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, usage)
}

func (s *Server) handleUsageCheck(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.requireAction(w, r, rbac.ActionView)
	if !ok {
		return
	}
	sizeMB, err := strconv.ParseFloat(r.URL.Query().Get("size_mb"), 64)
	if err != nil || sizeMB < 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "size_mb must be a non-negative number"})
		return
	}
	available, err := s.quota.CheckAvailable(r.Context(), caller.ID, sizeMB)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"available": available})
}
