package inference

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies inference failures for retry and fallback decisions.
type Kind int

const (
	// KindFatal covers everything not worth retrying: bad requests, auth
	// failures, refusals.
	KindFatal Kind = iota
	// KindRateLimited means the service rejected the call for quota reasons.
	KindRateLimited
	// KindModelUnsupported means the model does not exist or cannot serve
	// this request shape.
	KindModelUnsupported
	// KindUnavailable is a transient service or network failure.
	KindUnavailable
	// KindTimeout means the per-call deadline expired.
	KindTimeout
	// KindTruncated means the output hit its size limit before finishing.
	KindTruncated
)

func (k Kind) String() string {
	switch k {
	case KindRateLimited:
		return "rate_limited"
	case KindModelUnsupported:
		return "model_unsupported"
	case KindUnavailable:
		return "unavailable"
	case KindTimeout:
		return "timeout"
	case KindTruncated:
		return "truncated"
	default:
		return "fatal"
	}
}

// Error is a classified inference failure.
type Error struct {
	Kind       Kind
	Model      string
	StatusCode int
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("inference %s", e.Kind)
	if e.Model != "" {
		msg += " (model " + e.Model + ")"
	}
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" status %d", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError wraps err with a kind.
func NewError(kind Kind, model string, err error) *Error {
	return &Error{Kind: kind, Model: model, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or KindFatal.
func KindOf(err error) Kind {
	var ierr *Error
	if errors.As(err, &ierr) {
		return ierr.Kind
	}
	return KindFatal
}

// ErrNoModels is returned when a client is built without any model.
var ErrNoModels = errors.New("no inference models configured")
