package entities

import "errors"

var (
	// ErrInvalidInput is returned for empty or unusable input, before any extraction work
	ErrInvalidInput = errors.New("invalid input")

	// ErrCatalogUnavailable means the catalog or rule store could not be queried.
	// Extraction and analysis fail as a whole when it occurs.
	ErrCatalogUnavailable = errors.New("catalog unavailable")

	// ErrNotFound is returned for unknown ingredient codes or users
	ErrNotFound = errors.New("not found")

	// ErrRecognizerUnavailable means no OCR backend is configured or reachable
	ErrRecognizerUnavailable = errors.New("recognizer unavailable")
)
