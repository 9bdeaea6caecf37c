package sweep

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownMode  = errors.New("sweep: unknown mode")
	ErrLocked       = errors.New("sweep: another run is in progress")
	ErrNoOwnerScope = errors.New("sweep: owner scope is not configured")
	ErrNoGateway    = errors.New("sweep: no email gateway configured")
	ErrUnexpected   = errors.New("sweep: unexpected failure")
)

// UpstreamError is a failed read from the item repository or the account
// directory. The run is aborted before any dispatch.
type UpstreamError struct {
	Source string // "items" or "accounts"
	Err    error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("sweep: read %s: %v", e.Source, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }
