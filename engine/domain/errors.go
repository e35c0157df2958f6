package domain

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so callers can tell retryable conditions from
// fatal ones.
type Kind int

const (
	KindUnknown Kind = iota
	// KindConfig is a bad setting or a missing input file. Fatal.
	KindConfig
	// KindConnection is an unreachable or failing graph store. Retryable.
	KindConnection
	// KindUpstream is a failure inside the query chain: the LLM call or the
	// statement it generated. Retryable.
	KindUpstream
	// KindData is malformed source data. Fatal.
	KindData
	// KindUnavailable means the service has not finished initializing.
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "configuration"
	case KindConnection:
		return "connection"
	case KindUpstream:
		return "upstream"
	case KindData:
		return "data"
	case KindUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// ErrNotReady is returned by service operations called before Init succeeds.
var ErrNotReady = &Error{Kind: KindUnavailable, Op: "service", Err: errors.New("knowledge graph not initialized")}

// Error wraps a cause with its kind and the operation that failed.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// E builds an *Error. A nil cause yields nil.
func E(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf builds an *Error from a formatted message.
func Errorf(kind Kind, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of the outermost *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsRetryable reports whether err is worth retrying later.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindConnection, KindUpstream, KindUnavailable:
		return true
	}
	return false
}
