package session

import "github.com/2beens/confhub/internal/hubapi"

type Status string

const (
	StatusUnauthenticated Status = "unauthenticated"
	StatusResolving       Status = "resolving"
	StatusAuthenticated   Status = "authenticated"
)

var allStatuses = []string{
	string(StatusUnauthenticated),
	string(StatusResolving),
	string(StatusAuthenticated),
}

// Reason is the diagnostic cause of an unauthenticated state.
type Reason string

const (
	ReasonNone              Reason = ""
	ReasonNoCredential      Reason = "no_credential"
	ReasonInvalidCredential Reason = "invalid_credential"
	ReasonNetworkFailure    Reason = "network_failure"
	ReasonMalformedResponse Reason = "malformed_response"
	ReasonLoggedOut         Reason = "logged_out"
)

// State is an immutable snapshot of the session.
// Identity is set iff Status is StatusAuthenticated.
type State struct {
	Status     Status       `json:"status"`
	Identity   *hubapi.User `json:"identity,omitempty"`
	Reason     Reason       `json:"reason,omitempty"`
	Generation uint64       `json:"generation"`
}

func (s State) Authenticated() bool {
	return s.Status == StatusAuthenticated && s.Identity != nil
}

func (s State) Resolving() bool {
	return s.Status == StatusResolving
}

func (s State) IsAdmin() bool {
	return s.Authenticated() && s.Identity.IsStaff
}

func reasonFor(outcome hubapi.LookupOutcome) Reason {
	switch outcome {
	case hubapi.OutcomeUnauthorized:
		return ReasonInvalidCredential
	case hubapi.OutcomeMalformed:
		return ReasonMalformedResponse
	default:
		return ReasonNetworkFailure
	}
}
