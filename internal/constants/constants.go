// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

// Matching constants
const (
	// DefaultMatchThreshold is the minimum cosine similarity between a probe and
	// a canonical embedding for the probe to be accepted as that student
	DefaultMatchThreshold = 0.65

	// HNSWSearchCandidates is how many neighbours the HNSW matcher inspects
	// before picking the best exact cosine score
	HNSWSearchCandidates = 10
)

// Prediction status values stored in predictions_log.status
const (
	StatusMatch   = "MATCH"
	StatusNoMatch = "NO_MATCH"
)

// File naming constants
const (
	// CanonicalSuffix is appended to the enrollment number for canonical embedding files
	CanonicalSuffix = "__canonical.npy"

	// ProbeTimeLayout prefixes probe images saved in the predictions directory
	ProbeTimeLayout = "20060102_150405"
)

// Processing constants
const (
	// DefaultConcurrency is the default number of parallel workers for canonical rebuilds
	DefaultConcurrency = 4
)
