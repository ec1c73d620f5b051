package services

import "errors"

var (
	// ErrInsufficientData means evaluation was asked to run on fewer
	// labeled transactions than the requested procedure needs.
	ErrInsufficientData = errors.New("insufficient labeled data")

	// ErrInvalidFoldCount rejects cross-validation with fewer than 2 folds.
	ErrInvalidFoldCount = errors.New("fold count must be at least 2")
)
