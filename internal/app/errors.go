package app

import "errors"

// ErrNotFound and related errors describe validation and runtime failures.
var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidStepCount  = errors.New("invalid crash step count")
	ErrInvalidImportData = errors.New("invalid import data")
	ErrUnsupportedFormat = errors.New("unsupported format")
)
