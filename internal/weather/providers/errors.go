package providers

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies the outcome of a failed fetch.
type Kind int

const (
	KindInvalidParameter Kind = iota + 1
	KindRateLimited
	KindUpstream
	KindUnreachable
	KindTimedOut
	KindMalformedResponse
)

var (
	ErrInvalidParameter  = errors.New("invalid parameter")
	ErrRateLimited       = errors.New("rate limited")
	ErrUpstream          = errors.New("upstream error")
	ErrUnreachable       = errors.New("upstream unreachable")
	ErrTimedOut          = errors.New("request timed out")
	ErrMalformedResponse = errors.New("malformed response")
)

func (k Kind) String() string {
	switch k {
	case KindInvalidParameter:
		return "invalid_parameter"
	case KindRateLimited:
		return "rate_limited"
	case KindUpstream:
		return "upstream_error"
	case KindUnreachable:
		return "unreachable"
	case KindTimedOut:
		return "timed_out"
	case KindMalformedResponse:
		return "malformed_response"
	default:
		return "unknown"
	}
}

// Retryable reports whether the fetcher spends another attempt on this kind.
func (k Kind) Retryable() bool {
	return k == KindUpstream || k == KindUnreachable || k == KindTimedOut
}

func (k Kind) sentinel() error {
	switch k {
	case KindInvalidParameter:
		return ErrInvalidParameter
	case KindRateLimited:
		return ErrRateLimited
	case KindUpstream:
		return ErrUpstream
	case KindUnreachable:
		return ErrUnreachable
	case KindTimedOut:
		return ErrTimedOut
	case KindMalformedResponse:
		return ErrMalformedResponse
	}
	return nil
}

// FetchError is returned by the fetcher for every classified failure.
// It matches the sentinel of its Kind under errors.Is.
type FetchError struct {
	Kind       Kind
	StatusCode int
	// RetryAfter is only set for KindRateLimited.
	RetryAfter time.Duration
	Attempts   int
	Msg        string
	Err        error
}

func (e *FetchError) Error() string {
	msg := "fetch failed"
	if s := e.Kind.sentinel(); s != nil {
		msg = s.Error()
	}
	if e.Msg != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Msg)
	}
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func (e *FetchError) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

func invalidParameter(format string, args ...any) *FetchError {
	return &FetchError{Kind: KindInvalidParameter, Msg: fmt.Sprintf(format, args...)}
}

func malformed(format string, args ...any) *FetchError {
	return &FetchError{Kind: KindMalformedResponse, Msg: fmt.Sprintf(format, args...)}
}
