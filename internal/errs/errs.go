package errs

import (
	"errors"
	"fmt"
	"strings"

	"github.com/triage-ai/palisade/services/integration_engine/internal/props"
)

// Kind classifies a domain error.
type Kind string

const (
	KindBadRequest Kind = "bad_request"
	KindNotFound   Kind = "not_found"
	KindUpstream   Kind = "upstream_failure"
)

// Error is a classified domain error. Err, when set, is the underlying cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Kind != KindUpstream {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// BadRequest reports a malformed or forbidden request.
func BadRequest(format string, args ...any) error {
	return &Error{Kind: KindBadRequest, Message: fmt.Sprintf(format, args...)}
}

// NotFound reports a missing or not-yet-usable entity.
func NotFound(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// Upstream wraps a failure of the remote registry. The upstream message is kept verbatim.
func Upstream(err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) && e.Kind == KindUpstream {
		return err
	}
	return &Error{Kind: KindUpstream, Message: err.Error(), Err: err}
}

// Upstreamf builds an upstream failure from a message.
func Upstreamf(format string, args ...any) error {
	return &Error{Kind: KindUpstream, Message: fmt.Sprintf(format, args...)}
}

// ValidationError carries every configuration error found in one pass together
// with the schema the configuration was checked against.
type ValidationError struct {
	Errors []string
	Schema []props.ConfigurableProp
}

func (e *ValidationError) Error() string {
	return "invalid configuration: " + strings.Join(e.Errors, "; ")
}

// KindOf returns the kind of err, or "" if err is not a classified error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func IsBadRequest(err error) bool { return KindOf(err) == KindBadRequest }
func IsNotFound(err error) bool   { return KindOf(err) == KindNotFound }
func IsUpstream(err error) bool   { return KindOf(err) == KindUpstream }

// AsValidation returns the ValidationError inside err, if any.
func AsValidation(err error) (*ValidationError, bool) {
	var v *ValidationError
	if errors.As(err, &v) {
		return v, true
	}
	return nil, false
}
