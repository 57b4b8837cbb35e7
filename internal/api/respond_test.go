package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stratodrive/stratodrive/internal/logging"
	"github.com/stratodrive/stratodrive/internal/model"
)

func TestWriteErrorStatusMapping(t *testing.T) {
	logging.InitDefault()

	tests := []struct {
		err    error
		status int
	}{
		{model.ErrAuthenticationRequired, http.StatusUnauthorized},
		{model.ErrForbidden, http.StatusForbidden},
		{model.ErrNotFound, http.StatusNotFound},
		{model.ErrBackupNotFound, http.StatusNotFound},
		{model.ErrInvalidParent, http.StatusBadRequest},
		{model.ErrInvalidName, http.StatusBadRequest},
		{model.ErrFolderNotEmpty, http.StatusConflict},
		{model.ErrQuotaExceeded, http.StatusRequestEntityTooLarge},
		{model.ErrRestoreFailed, http.StatusInternalServerError},
		{fmt.Errorf("plain failure"), http.StatusInternalServerError},
		// Wrapped sentinels map the same as bare ones.
		{fmt.Errorf("file xyz: %w", model.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("used 499MB + 5MB > limit 500MB: %w", model.ErrQuotaExceeded), http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		rec := httptest.NewRecorder()
		writeError(rec, tt.err)
		if rec.Code != tt.status {
			t.Errorf("writeError(%v) status = %d, want %d", tt.err, rec.Code, tt.status)
		}
		var body errorResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Errorf("writeError(%v) body not JSON: %v", tt.err, err)
		}
		if body.Error == "" {
			t.Errorf("writeError(%v) has empty error message", tt.err)
		}
	}
}

func TestAuthMiddlewareRejectsMissingToken(t *testing.T) {
	logging.InitDefault()
	// The full middleware lives in the auth package; here we only check
	// that unauthenticated handler entry surfaces as 401.
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/v1/list", nil)

	s := &Server{}
	if _, ok := s.requireAction(rec, req, "view"); ok {
		t.Fatal("requireAction succeeded without a caller in context")
	}
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}
