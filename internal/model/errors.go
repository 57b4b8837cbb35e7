package model

import "errors"

// Sentinel errors returned by the stores. Handlers map these to HTTP
// status codes with errors.Is; store methods wrap them with context via
// fmt.Errorf("...: %w", ...).
var (
	ErrAuthenticationRequired = errors.New("authentication required")
	ErrForbidden              = errors.New("forbidden")
	ErrNotFound               = errors.New("not found")
	ErrInvalidParent          = errors.New("invalid parent")
	ErrCorruptHierarchy       = errors.New("corrupt hierarchy")
	ErrQuotaExceeded          = errors.New("storage quota exceeded")
	ErrInvalidName            = errors.New("invalid name")
	ErrBackupNotFound         = errors.New("backup not found")
	ErrRestoreFailed          = errors.New("restore failed")
	ErrFolderNotEmpty         = errors.New("folder not empty")
)
