package rehydrate

import "errors"

var (
	ErrDuplicateBehaviour = errors.New("behaviour already registered")
	ErrNilFactory         = errors.New("nil behaviour factory")
	ErrEmptyName          = errors.New("empty behaviour name")
)
