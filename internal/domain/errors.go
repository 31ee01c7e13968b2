package domain

import "errors"

// Failure categories surfaced by the pipeline. Adapters wrap their causes
// with one of these so callers can branch with errors.Is.
var (
	// ErrDecode means the image is malformed or not jpeg/png.
	ErrDecode = errors.New("image decode failed")
	// ErrBackendUnavailable means the OCR engine is missing or misconfigured.
	ErrBackendUnavailable = errors.New("ocr backend unavailable")
	// ErrAuthentication means a reasoning or lookup credential was rejected or missing.
	ErrAuthentication = errors.New("authentication failed")
	// ErrServiceUnavailable covers network and upstream backend failures.
	ErrServiceUnavailable = errors.New("service unavailable")
	// ErrQuotaExceeded means an upstream rate limit or usage quota was hit.
	ErrQuotaExceeded = errors.New("quota exceeded")
	// ErrTimeout means the analysis deadline expired.
	ErrTimeout = errors.New("analysis timed out")
)
