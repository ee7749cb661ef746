package hubapi

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("forbidden")
	ErrUnavailable       = errors.New("conference hub api unavailable")
	ErrMalformedResponse = errors.New("malformed api response")
	ErrRejected          = errors.New("request rejected")
)

// APIError is a non-2xx response. It unwraps to one of the sentinel errors above.
type APIError struct {
	StatusCode int
	Detail     string
	kind       error
}

func newAPIError(statusCode int, detail string) *APIError {
	var kind error
	switch {
	case statusCode == 401:
		kind = ErrUnauthorized
	case statusCode == 403:
		kind = ErrForbidden
	case statusCode >= 500:
		kind = ErrUnavailable
	default:
		kind = ErrRejected
	}
	return &APIError{
		StatusCode: statusCode,
		Detail:     detail,
		kind:       kind,
	}
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: status %d", e.kind, e.StatusCode)
	}
	return fmt.Sprintf("%s: status %d: %s", e.kind, e.StatusCode, e.Detail)
}

func (e *APIError) Unwrap() error {
	return e.kind
}

// UserMessage returns the api supplied detail, or fallback when there is none.
func UserMessage(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Detail != "" {
		return apiErr.Detail
	}
	return fallback
}

type LookupOutcome string

const (
	OutcomeSuccess        LookupOutcome = "success"
	OutcomeUnauthorized   LookupOutcome = "unauthorized"
	OutcomeTransportError LookupOutcome = "transport_error"
	OutcomeMalformed      LookupOutcome = "malformed"
	OutcomeCancelled      LookupOutcome = "cancelled"
)

// Classify maps an identity lookup error to its outcome.
func Classify(err error) LookupOutcome {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, context.Canceled):
		return OutcomeCancelled
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrForbidden):
		return OutcomeUnauthorized
	case errors.Is(err, ErrMalformedResponse):
		return OutcomeMalformed
	case errors.Is(err, ErrRejected):
		// any other 4xx on the identity endpoint means the credential is unusable
		return OutcomeUnauthorized
	default:
		return OutcomeTransportError
	}
}
