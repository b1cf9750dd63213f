// Package fault defines the failure categories shared by the pipeline.
//
// Packages wrap one of these errors with their own context so that the HTTP
// boundary can pick a status code with errors.Is.
package fault

import "errors"

var (
	ErrAuthRejected          = errors.New("auth rejected")
	ErrValidation            = errors.New("validation error")
	ErrUpstreamCallFailed    = errors.New("upstream call failed")
	ErrMalformedResponse     = errors.New("malformed response")
	ErrExternalCommandFailed = errors.New("external command failed")
	ErrInternal              = errors.New("internal error")
)

// Kind returns the name of the first known category err belongs to.
// It returns "internal" for errors outside of every category.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAuthRejected):
		return "auth_rejected"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrUpstreamCallFailed):
		return "upstream_call_failed"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed_response"
	case errors.Is(err, ErrExternalCommandFailed):
		return "external_command_failed"
	default:
		return "internal"
	}
}
