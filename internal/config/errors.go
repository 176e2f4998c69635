// Package config provides JobParams and its defaults and validation.
package config

import "errors"

// Sentinel errors for JobParams validation.
var (
	// ErrInvalidPath indicates an empty input or output path.
	ErrInvalidPath = errors.New("path must not be empty")

	// ErrInvalidCRF indicates a CRF value outside the valid 0-51 range.
	ErrInvalidCRF = errors.New("crf must be between 0 and 51")

	// ErrInvalidPreset indicates a preset index outside the valid 0-9 range.
	ErrInvalidPreset = errors.New("preset must be between 0 and 9")

	// ErrInvalidQueueCapacity indicates a non-positive queue capacity.
	ErrInvalidQueueCapacity = errors.New("queue capacity must be at least 1")
)
