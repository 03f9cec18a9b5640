package model

import (
	"fmt"

	"github.com/m-mizutani/goerr/v2"
)

// Unavailable wraps a backend I/O failure so it classifies as ErrUpstreamUnavailable
// while keeping the original cause in the chain.
func Unavailable(err error, msg string, opts ...goerr.Option) error {
	return goerr.Wrap(fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err), msg, opts...)
}
