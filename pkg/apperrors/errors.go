package apperrors

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrImportInProgress = errors.New("import already in progress")
	ErrAmbiguousMatch   = errors.New("ambiguous match")
	ErrInvalidSource    = errors.New("invalid import source")
)
