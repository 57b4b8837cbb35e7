// Package api provides the HTTP server and handlers.
package api

import (
	"net/http"

	"github.com/stratodrive/stratodrive/internal/auth"
	"github.com/stratodrive/stratodrive/internal/backup"
	"github.com/stratodrive/stratodrive/internal/blob"
	"github.com/stratodrive/stratodrive/internal/config"
	"github.com/stratodrive/stratodrive/internal/events"
	"github.com/stratodrive/stratodrive/internal/hierarchy"
	"github.com/stratodrive/stratodrive/internal/logging"
	"github.com/stratodrive/stratodrive/internal/metrics"
	"github.com/stratodrive/stratodrive/internal/quota"
	"github.com/stratodrive/stratodrive/internal/sharing"
	"github.com/stratodrive/stratodrive/internal/users"
)

// Server is the HTTP server.
type Server struct {
	hierarchy *hierarchy.Store
	blobs     blob.Store
	users     *users.Store
	quota     *quota.Accountant
	sharing   *sharing.Store
	backups   *backup.Manager
	auth      *auth.Service
	config    *config.Config

	// SSE
	broadcaster *events.Broadcaster
}

// NewServer creates a new server.
func NewServer(
	h *hierarchy.Store,
	blobs blob.Store,
	userStore *users.Store,
	accountant *quota.Accountant,
	shares *sharing.Store,
	backups *backup.Manager,
	authService *auth.Service,
	broadcaster *events.Broadcaster,
	cfg *config.Config,
) *Server {
	return &Server{
		hierarchy:   h,
		blobs:       blobs,
		users:       userStore,
		quota:       accountant,
		sharing:     shares,
		backups:     backups,
		auth:        authService,
		broadcaster: broadcaster,
		config:      cfg,
	}
}

// Handler returns the full HTTP handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("POST /api/v1/auth/login", s.auth.HandleLogin)

	api := http.NewServeMux()

	// Caller
	api.HandleFunc("GET /api/v1/me", s.handleMe)
	api.HandleFunc("GET /api/v1/usage", s.handleUsage)
	api.HandleFunc("GET /api/v1/usage/check", s.handleUsageCheck)

	// Hierarchy
	api.HandleFunc("POST /api/v1/folders", s.handleCreateFolder)
	api.HandleFunc("GET /api/v1/folders/{id}", s.handleGetFolder)
	api.HandleFunc("GET /api/v1/folders/{id}/breadcrumbs", s.handleBreadcrumbs)
	api.HandleFunc("PUT /api/v1/folders/{id}/color", s.handleSetFolderColor)
	api.HandleFunc("GET /api/v1/list", s.handleList)
	api.HandleFunc("GET /api/v1/search", s.handleSearch)
	api.HandleFunc("GET /api/v1/recent", s.handleRecent)

	// Files
	api.HandleFunc("POST /api/v1/files", s.handleUpload)
	api.HandleFunc("GET /api/v1/files/{id}", s.handleGetFile)
	api.HandleFunc("GET /api/v1/files/{id}/download", s.handleDownload)

	// Item operations, shared across files and folders
	api.HandleFunc("PUT /api/v1/items/{type}/{id}/name", s.handleRename)
	api.HandleFunc("PUT /api/v1/items/{type}/{id}/parent", s.handleMove)
	api.HandleFunc("PUT /api/v1/items/{type}/{id}/starred", s.handleSetStarred)
	api.HandleFunc("PUT /api/v1/items/{type}/{id}/visibility", s.handleSetPublic)
	api.HandleFunc("POST /api/v1/items/{type}/{id}/trash", s.handleTrash)
	api.HandleFunc("POST /api/v1/items/{type}/{id}/restore", s.handleRestoreFromTrash)
	api.HandleFunc("DELETE /api/v1/items/{type}/{id}", s.handlePermanentDelete)

	// Sharing
	api.HandleFunc("POST /api/v1/shares", s.handleGrant)
	api.HandleFunc("DELETE /api/v1/shares/{id}", s.handleRevoke)
	api.HandleFunc("GET /api/v1/items/{type}/{id}/shares", s.handleListGrants)
	api.HandleFunc("GET /api/v1/shared-with-me", s.handleSharedWithMe)

	// Backups
	api.HandleFunc("POST /api/v1/backups", s.handleCreateBackup)
	api.HandleFunc("GET /api/v1/backups", s.handleListBackups)
	api.HandleFunc("GET /api/v1/backups/{id}", s.handleGetBackup)
	api.HandleFunc("POST /api/v1/backups/{id}/restore", s.handleRestoreBackup)
	api.HandleFunc("DELETE /api/v1/backups/{id}", s.handleDeleteBackup)

	// Events
	api.HandleFunc("GET /api/v1/events", s.handleEvents)

	// Admin
	api.HandleFunc("GET /api/v1/admin/users", s.handleListUsers)
	api.HandleFunc("POST /api/v1/admin/users", s.handleCreateUser)
	api.HandleFunc("PUT /api/v1/admin/users/{id}/role", s.handleSetRole)
	api.HandleFunc("PUT /api/v1/admin/users/{id}/limit", s.handleSetLimit)
	api.HandleFunc("DELETE /api/v1/admin/users/{id}", s.handleDeleteUser)
	api.HandleFunc("GET /api/v1/admin/stats", s.handleStats)
	api.HandleFunc("GET /api/v1/admin/backups", s.handleAllBackups)

	mux.Handle("/api/v1/", s.auth.Middleware(api))

	return logging.Middleware(metrics.Middleware(mux))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
