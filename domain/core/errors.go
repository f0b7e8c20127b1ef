package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	ErrNotFound      = errors.New("resource not found")
	ErrNoModelLoaded = fmt.Errorf("%w: no model loaded for this session", ErrNotFound)

	ErrUnknownFactor = errors.New("unknown factor")
	ErrUnknownView   = errors.New("unknown view")
	ErrUnknownGroup  = errors.New("unknown group")
	ErrUnknownTable  = errors.New("unknown table")
	ErrUnknownChart  = errors.New("unknown chart")

	ErrMalformedModel = errors.New("malformed model")
	ErrNotHDF5        = errors.New("file is not an HDF5 container")
)

// ErrNoVarianceExplained is returned when the model file carries no stored R2 values
var ErrNoVarianceExplained = errors.New("model does not store variance explained")
