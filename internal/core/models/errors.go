package models

import "errors"

// Record errors
var (
	ErrSizeMismatch      = errors.New("entity record size mismatch")
	ErrInvalidNameLength = errors.New("entity record name length out of range")
)
