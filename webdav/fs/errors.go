package fs

import "errors"

// Kind classifies a backend or dispatcher failure so that the dispatcher
// can map it to the single HTTP status it is allowed to produce. Backends
// never choose status codes themselves; they return an *Error (or a
// sentinel wrapped by one) and the dispatcher does the rest.
type Kind int

const (
	KindUnexpected Kind = iota
	KindNotFound
	KindForbidden
	KindConflict
	KindLockConflict
	KindPreconditionFailed
	KindUnauthenticated
	KindBadGateway
	KindUnsupported
)

// Error is the only error type backends and the dispatcher are expected to
// return along the request path. Anything that is neither an *Error nor one
// of the sentinels below is treated as KindUnexpected and surfaces as 500.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Op
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// NewError wraps err (which may be nil) with the given Kind and operation
// label. Backends use this to classify failures for the dispatcher.
func NewError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Sentinel errors, in the teacher's style of exporting equality-comparable
// errors alongside the richer *Error type.
var (
	ErrNotFound            = errors.New("webdav: not found")
	ErrForbidden           = errors.New("webdav: forbidden")
	ErrConflict            = errors.New("webdav: conflict")
	ErrLocked              = errors.New("webdav: locked")
	ErrConfirmationFailed  = errors.New("webdav: confirmation failed")
	ErrNoSuchLock          = errors.New("webdav: no such lock")
	ErrPreconditionFailed  = errors.New("webdav: precondition failed")
	ErrUnauthenticated     = errors.New("webdav: unauthenticated")
	ErrBadGateway          = errors.New("webdav: cross-backend operation")
	ErrUnsupportedLockInfo = errors.New("webdav: unsupported lock info")
	ErrInvalidDepth        = errors.New("webdav: invalid depth")
	ErrInvalidDestination  = errors.New("webdav: invalid destination")
	ErrRecursionTooDeep    = errors.New("webdav: recursion too deep")
)

// KindOf extracts the Kind carried by err, defaulting to KindUnexpected for
// anything that isn't an *Error or one of the sentinels above.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnexpected
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrForbidden):
		return KindForbidden
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrLocked):
		return KindLockConflict
	case errors.Is(err, ErrPreconditionFailed):
		return KindPreconditionFailed
	case errors.Is(err, ErrUnauthenticated):
		return KindUnauthenticated
	case errors.Is(err, ErrBadGateway):
		return KindBadGateway
	case errors.Is(err, ErrUnsupportedLockInfo):
		return KindUnsupported
	}
	return KindUnexpected
}
