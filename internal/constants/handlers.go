// Package constants provides shared constants used across the codebase.
package constants

// Handler constants
const (
	// DefaultPredictionLimit is the number of prediction log rows returned when no limit is given
	DefaultPredictionLimit = 50

	// MaxPredictionLimit caps the limit query parameter on the predictions endpoint
	MaxPredictionLimit = 1000
)

// File upload constants
const (
	// MaxUploadSize is the maximum file upload size in bytes (20MB)
	MaxUploadSize = 20 << 20
)
