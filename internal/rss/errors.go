package rss

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindUnreachable ErrorKind = "unreachable"
	KindTimeout     ErrorKind = "timeout"
	KindParse       ErrorKind = "parse_error"
	KindEmpty       ErrorKind = "empty"
)

// FetchError is the typed failure of one feed.
type FetchError struct {
	Kind   ErrorKind
	Source string
	Status int // HTTP status when the server answered
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("feed %q %s: %v", e.Source, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// retryable marks failures that the browser user agent fallback may fix.
func (e *FetchError) retryable() bool {
	switch e.Kind {
	case KindParse, KindEmpty:
		return true
	case KindUnreachable:
		return e.Status >= 400 && e.Status < 500
	}
	return false
}

// KindOf returns the kind of a fetch error, or "" for nil and foreign errors.
func KindOf(err error) ErrorKind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}
