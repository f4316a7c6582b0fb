package mediaproxy

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is returned when a request misses required fields.
	ErrInvalidInput = errors.New("invalid input")
	// ErrMissingContentType is returned when an upload carries no content type.
	ErrMissingContentType = errors.New("missing content type")
	// ErrUnsupportedMediaType is returned when a content type is rejected by the upload policy.
	ErrUnsupportedMediaType = errors.New("unsupported media type")
	// ErrPayloadTooLarge is returned when an upload exceeds the configured ceiling.
	ErrPayloadTooLarge = errors.New("payload too large")
)

// Kind classifies a storage gateway failure.
type Kind int

const (
	KindOther Kind = iota
	KindNotFound
	KindForbidden
	KindTimeout
	KindInvalidKey
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindTimeout:
		return "timeout"
	case KindInvalidKey:
		return "invalid_key"
	default:
		return "other"
	}
}

// Sentinels matching gateway errors of the corresponding kind through errors.Is.
var (
	ErrNotFound   = &Error{Kind: KindNotFound}
	ErrForbidden  = &Error{Kind: KindForbidden}
	ErrTimeout    = &Error{Kind: KindTimeout}
	ErrInvalidKey = &Error{Kind: KindInvalidKey}
)

// Error is the only error type a Gateway returns. Err keeps the backend
// detail for logs; it is never shown to API callers.
type Error struct {
	Kind Kind
	Op   string
	Key  string
	Err  error
}

// NewError builds a gateway error. A nil err is allowed.
func NewError(kind Kind, op, key string, err error) *Error {
	return &Error{Kind: kind, Op: op, Key: key, Err: err}
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Key != "" {
		msg += fmt.Sprintf(" (key %q)", e.Key)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of the first *Error in err's chain. Deadline
// expiry that never passed through a gateway is reported as KindTimeout.
func KindOf(err error) Kind {
	if err == nil {
		return KindOther
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindOther
}
