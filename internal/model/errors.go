package model

import (
	"github.com/m-mizutani/goerr/v2"
)

// Error taxonomy. Callers classify with errors.Is.
var (
	ErrNotFound            = goerr.New("memory entry not found")
	ErrConflict            = goerr.New("memory entry already exists")
	ErrValidation          = goerr.New("invalid memory entry")
	ErrUpstreamUnavailable = goerr.New("upstream unavailable")
)

func newValidation(msg string, key string, value any) error {
	return goerr.Wrap(ErrValidation, msg, goerr.V(key, value))
}
