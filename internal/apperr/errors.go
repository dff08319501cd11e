package apperr

import "errors"

var (
	ErrNotFound    = errors.New("not found")
	ErrAmbiguous   = errors.New("ambiguous reference")
	ErrDenied      = errors.New("denied")
	ErrLoopAborted = errors.New("tool loop aborted")
)
