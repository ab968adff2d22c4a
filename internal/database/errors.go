package database

import (
	"errors"
	"math"
)

var (
	// ErrNotFound is returned by update/delete operations when the row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when inserting a row whose key is taken.
	ErrAlreadyExists = errors.New("already exists")
	// ErrInvalidReference is returned when a foreign key points at a missing row.
	ErrInvalidReference = errors.New("invalid reference")
)

// RoundPercent rounds a percentage to two decimal places.
func RoundPercent(p float64) float64 {
	return math.Round(p*100) / 100
}
