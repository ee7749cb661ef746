package access

import (
	"context"

	"github.com/2beens/confhub/internal/hubapi"
	"github.com/2beens/confhub/internal/session"
	"github.com/2beens/confhub/internal/telemetry/metrics"
)

type Capability string

const (
	CapabilityNone          Capability = "none"
	CapabilityAuthenticated Capability = "authenticated"
	CapabilityAdmin         Capability = "admin"
)

type Decision string

const (
	DecisionChecking Decision = "checking"
	DecisionAllowed  Decision = "allowed"
	DecisionDenied   Decision = "denied"
)

type DenyReason string

const (
	DenyNone                   DenyReason = ""
	DenyNoCredential           DenyReason = "no_credential"
	DenyInvalidCredential      DenyReason = "invalid_credential"
	DenyNetworkFailure         DenyReason = "network_failure"
	DenyInsufficientCapability DenyReason = "insufficient_capability"
)

type Verdict struct {
	Decision Decision
	Reason   DenyReason
	Identity *hubapi.User
}

func (v Verdict) Allowed() bool {
	return v.Decision == DecisionAllowed
}

// LoginRequired tells a denial fixable by logging in from a privilege denial.
func (v Verdict) LoginRequired() bool {
	return v.Decision == DecisionDenied && v.Reason != DenyInsufficientCapability
}

type StateSource interface {
	State() session.State
	Subscribe() (<-chan session.State, func())
}

// Guard decides from the published session state. It never looks up the identity itself.
type Guard struct {
	source  StateSource
	metrics *metrics.Manager
}

func NewGuard(source StateSource, metricsManager *metrics.Manager) *Guard {
	if metricsManager == nil {
		metricsManager = metrics.NewTestManager()
	}
	return &Guard{
		source:  source,
		metrics: metricsManager,
	}
}

// Evaluate is the non-blocking decision for a state snapshot.
func Evaluate(state session.State, capability Capability) Verdict {
	if capability == CapabilityNone {
		return Verdict{Decision: DecisionAllowed, Identity: state.Identity}
	}

	switch state.Status {
	case session.StatusResolving:
		return Verdict{Decision: DecisionChecking}
	case session.StatusAuthenticated:
		if state.Identity == nil {
			return Verdict{Decision: DecisionDenied, Reason: DenyInvalidCredential}
		}
		if capability == CapabilityAdmin && !state.Identity.IsStaff {
			return Verdict{
				Decision: DecisionDenied,
				Reason:   DenyInsufficientCapability,
				Identity: state.Identity,
			}
		}
		return Verdict{Decision: DecisionAllowed, Identity: state.Identity}
	default:
		return Verdict{Decision: DecisionDenied, Reason: denyReasonFor(state.Reason)}
	}
}

func denyReasonFor(reason session.Reason) DenyReason {
	switch reason {
	case session.ReasonInvalidCredential:
		return DenyInvalidCredential
	case session.ReasonNetworkFailure, session.ReasonMalformedResponse:
		return DenyNetworkFailure
	default:
		return DenyNoCredential
	}
}

// Check waits for the session to settle and decides. When ctx ends first the
// verdict is DecisionChecking.
func (g *Guard) Check(ctx context.Context, capability Capability) Verdict {
	verdict := g.check(ctx, capability)
	g.metrics.CounterGuardDecisions.WithLabelValues(
		string(capability),
		string(verdict.Decision),
		string(verdict.Reason),
	).Inc()
	return verdict
}

func (g *Guard) check(ctx context.Context, capability Capability) Verdict {
	if capability == CapabilityNone {
		return Evaluate(g.source.State(), capability)
	}

	updates, unsubscribe := g.source.Subscribe()
	defer unsubscribe()

	verdict := Verdict{Decision: DecisionChecking}
	for {
		select {
		case <-ctx.Done():
			return Verdict{Decision: DecisionChecking}
		case state, ok := <-updates:
			if !ok {
				return verdict
			}
			verdict = Evaluate(state, capability)
			if verdict.Decision != DecisionChecking {
				return verdict
			}
		}
	}
}
