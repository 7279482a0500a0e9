package store

import "errors"

// Domain error kinds. These are normal control flow for callers: a
// handler maps them to status codes, never logs them as exceptional.
// Backend failures surface separately as kvstore.ErrBackend and are
// propagated unchanged.
var (
	ErrNotFound  = errors.New("not found")
	ErrConflict  = errors.New("conflict")
	ErrForbidden = errors.New("forbidden")
)
