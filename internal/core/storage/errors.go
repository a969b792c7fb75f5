package storage

import (
	"errors"

	"github.com/zeusync/enginedb/internal/core/models"
)

// Store errors
var (
	ErrNotFound         = errors.New("not found")
	ErrCorruptMetadata  = errors.New("corrupt metadata document")
	ErrScriptAttached   = errors.New("script already attached")
	ErrUnsupportedValue = errors.New("unsupported metadata field value")
	ErrInvalidConfig    = errors.New("invalid storage configuration")

	ErrCorruptBlob    = errors.New("blob content does not match its key")
	ErrInvalidBlobKey = errors.New("invalid blob key")
	ErrUnknownKind    = errors.New("unknown blob kind")

	// ErrSizeMismatch is returned when a record file is not exactly models.RecordSize bytes.
	ErrSizeMismatch = models.ErrSizeMismatch
)
