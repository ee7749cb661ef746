package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/2beens/confhub/internal/credentials"
	"github.com/2beens/confhub/internal/hubapi"
	"github.com/2beens/confhub/internal/telemetry/metrics"
	"github.com/2beens/confhub/internal/telemetry/tracing"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var (
	ErrClosed          = errors.New("session store closed")
	ErrEmptyCredential = errors.New("empty credential")
)

type credentialSlot interface {
	Load(ctx context.Context) (credentials.Credential, error)
	Save(ctx context.Context, cred credentials.Credential) error
	Clear(ctx context.Context) error
	CompareAndSwap(ctx context.Context, old, next credentials.Credential) (bool, error)
	CompareAndClear(ctx context.Context, old credentials.Credential) (bool, error)
}

type StoreParams struct {
	Credentials    credentialSlot
	API            identityAPI
	MetricsManager *metrics.Manager
	// RefreshOnUnauthorized makes a rejected lookup try the refresh endpoint once.
	RefreshOnUnauthorized bool
	// ForgetRejectedCredential clears storage when the api rejects the credential.
	ForgetRejectedCredential bool
	// RevalidateInterval re-resolves an authenticated session periodically, 0 disables.
	RevalidateInterval time.Duration
}

// Store owns the session state of the process. The state is only changed by
// Initialize, Login, Logout, Refresh and the resolutions they start.
type Store struct {
	credentials              credentialSlot
	api                      identityAPI
	metrics                  *metrics.Manager
	refreshOnUnauthorized    bool
	forgetRejectedCredential bool
	revalidateInterval       time.Duration

	lifeCtx    context.Context
	lifeCancel context.CancelFunc

	mutex         sync.Mutex
	state         State
	generation    uint64
	resolveCancel context.CancelFunc
	changed       chan struct{}
	subscribers   map[uint64]chan State
	nextSubID     uint64
	initialized   bool
	closed        bool

	wg sync.WaitGroup
}

func NewStore(params StoreParams) (*Store, error) {
	if params.Credentials == nil {
		return nil, errors.New("credential slot not set")
	}
	if params.API == nil {
		return nil, errors.New("identity api not set")
	}

	metricsManager := params.MetricsManager
	if metricsManager == nil {
		metricsManager = metrics.NewTestManager()
	}

	lifeCtx, lifeCancel := context.WithCancel(context.Background())
	s := &Store{
		credentials:              params.Credentials,
		api:                      params.API,
		metrics:                  metricsManager,
		refreshOnUnauthorized:    params.RefreshOnUnauthorized,
		forgetRejectedCredential: params.ForgetRejectedCredential,
		revalidateInterval:       params.RevalidateInterval,
		lifeCtx:                  lifeCtx,
		lifeCancel:               lifeCancel,
		// resolving until Initialize reads the credential
		state:       State{Status: StatusResolving},
		changed:     make(chan struct{}),
		subscribers: make(map[uint64]chan State),
	}
	s.metrics.SetSessionStatus(string(StatusResolving), allStatuses...)

	return s, nil
}

// Initialize reads the persisted credential and starts resolving it.
// It returns once the state is either unauthenticated or resolving; use Await
// to wait for the resolution.
func (s *Store) Initialize(ctx context.Context) error {
	s.mutex.Lock()
	if s.closed {
		s.mutex.Unlock()
		return ErrClosed
	}
	first := !s.initialized
	s.initialized = true
	s.mutex.Unlock()

	if err := s.resolveStored(ctx, false); err != nil {
		return err
	}

	if first && s.revalidateInterval > 0 {
		s.mutex.Lock()
		defer s.mutex.Unlock()
		if !s.closed {
			s.wg.Add(1)
			go s.revalidateLoop()
		}
	}
	return nil
}

// Login persists the credential pair, overwriting any previous one, and
// resolves it. No expiry validation is done.
func (s *Store) Login(ctx context.Context, cred credentials.Credential) error {
	if cred.Empty() {
		return ErrEmptyCredential
	}
	if s.isClosed() {
		return ErrClosed
	}

	if err := s.credentials.Save(ctx, cred); err != nil {
		return fmt.Errorf("save credential: %w", err)
	}

	log.Debugln("session: credential saved, resolving identity")
	s.startResolution(cred, false)
	return nil
}

// Logout clears the session synchronously, with no network call. Any
// in-flight resolution is cancelled and its result discarded. A storage
// error is returned, but the in-memory state is cleared anyway.
func (s *Store) Logout(ctx context.Context) error {
	s.mutex.Lock()
	if s.closed {
		s.mutex.Unlock()
		return ErrClosed
	}
	s.generation++
	s.cancelResolutionLocked()
	s.setStateLocked(State{
		Status:     StatusUnauthenticated,
		Reason:     ReasonLoggedOut,
		Generation: s.generation,
	})
	s.mutex.Unlock()

	log.Debugln("session: logged out")

	if err := s.credentials.Clear(ctx); err != nil {
		return fmt.Errorf("clear credential: %w", err)
	}
	return nil
}

// Refresh re-runs the resolution against the current credential.
func (s *Store) Refresh(ctx context.Context) error {
	return s.resolveStored(ctx, false)
}

func (s *Store) State() State {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.state
}

// Subscribe returns a channel receiving the current state and then every
// transition. A slow reader only ever sees the latest state. The returned
// func unsubscribes and closes the channel.
func (s *Store) Subscribe() (<-chan State, func()) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	ch := make(chan State, 1)
	if s.closed {
		ch <- s.state
		close(ch)
		return ch, func() {}
	}

	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = ch
	ch <- s.state

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mutex.Lock()
			defer s.mutex.Unlock()
			if sub, ok := s.subscribers[id]; ok {
				delete(s.subscribers, id)
				close(sub)
			}
		})
	}
}

// Await blocks until the state is no longer resolving.
func (s *Store) Await(ctx context.Context) (State, error) {
	for {
		s.mutex.Lock()
		state, changed, closed := s.state, s.changed, s.closed
		s.mutex.Unlock()

		if !state.Resolving() {
			return state, nil
		}
		if closed {
			return state, ErrClosed
		}

		select {
		case <-ctx.Done():
			return state, ctx.Err()
		case <-changed:
		}
	}
}

// Close cancels in-flight work and closes all subscriptions. Later calls are no-ops.
func (s *Store) Close() {
	s.mutex.Lock()
	if s.closed {
		s.mutex.Unlock()
		return
	}
	s.closed = true
	s.lifeCancel()
	s.resolveCancel = nil
	for id, ch := range s.subscribers {
		close(ch)
		delete(s.subscribers, id)
	}
	close(s.changed)
	s.mutex.Unlock()

	s.wg.Wait()
	log.Debugln("session: store closed")
}

func (s *Store) isClosed() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.closed
}

func (s *Store) resolveStored(ctx context.Context, quiet bool) error {
	cred, err := s.credentials.Load(ctx)
	if err != nil {
		// unreadable storage is treated like no credential
		log.Errorf("session: load credential: %s", err)
		cred = credentials.Credential{}
	}
	if s.isClosed() {
		return ErrClosed
	}
	s.startResolution(cred, quiet)
	return nil
}

// startResolution tags a new generation and resolves cred in the background.
// A quiet resolution keeps the current state published until it completes.
func (s *Store) startResolution(cred credentials.Credential, quiet bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.closed {
		return
	}

	s.generation++
	gen := s.generation
	s.cancelResolutionLocked()

	if cred.Empty() {
		s.setStateLocked(State{
			Status:     StatusUnauthenticated,
			Reason:     ReasonNoCredential,
			Generation: gen,
		})
		return
	}

	ctx, cancel := context.WithCancel(s.lifeCtx)
	s.resolveCancel = cancel
	if !quiet {
		s.setStateLocked(State{
			Status:     StatusResolving,
			Generation: gen,
		})
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()
		s.resolve(ctx, gen, cred, quiet)
	}()
}

func (s *Store) resolve(ctx context.Context, gen uint64, cred credentials.Credential, quiet bool) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "session.resolve")
	defer span.End()
	span.SetAttributes(attribute.Int64("session.generation", int64(gen)))

	start := time.Now()
	user, err := s.api.CurrentUser(ctx)
	if err == nil && user == nil {
		err = fmt.Errorf("current user: %w: no user", hubapi.ErrMalformedResponse)
	}
	outcome := hubapi.Classify(err)

	if outcome == hubapi.OutcomeUnauthorized && s.refreshOnUnauthorized && cred.Refresh != "" {
		cred, user, err = s.refreshAndRetry(ctx, cred)
		if err == nil && user == nil {
			err = fmt.Errorf("current user: %w: no user", hubapi.ErrMalformedResponse)
		}
		outcome = hubapi.Classify(err)
	}

	s.metrics.HistogramIdentityLookupLatency.Observe(time.Since(start).Seconds())
	s.metrics.CounterIdentityLookups.WithLabelValues(string(outcome)).Inc()
	span.SetAttributes(attribute.String("session.outcome", string(outcome)))

	logger := log.WithFields(log.Fields{
		"generation": gen,
		"outcome":    outcome,
	})

	if outcome == hubapi.OutcomeCancelled {
		span.SetStatus(codes.Unset, "cancelled")
		logger.Debugln("session: resolution cancelled")
		return
	}

	if outcome == hubapi.OutcomeUnauthorized && s.forgetRejectedCredential && s.isCurrent(gen) {
		cleared, clearErr := s.credentials.CompareAndClear(ctx, cred)
		if clearErr != nil {
			logger.Errorf("session: forget rejected credential: %s", clearErr)
		} else if cleared {
			logger.Infoln("session: rejected credential forgotten")
		}
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.closed || gen != s.generation {
		logger.Debugf("session: discarding stale resolution, current generation %d", s.generation)
		return
	}
	s.resolveCancel = nil

	if outcome == hubapi.OutcomeSuccess {
		span.SetStatus(codes.Ok, "")
		logger.WithField("user", user.Username).Debugln("session: authenticated")
		s.setStateLocked(State{
			Status:     StatusAuthenticated,
			Identity:   user,
			Generation: gen,
		})
		return
	}

	span.SetStatus(codes.Error, err.Error())
	if quiet && outcome == hubapi.OutcomeTransportError {
		logger.Warnf("session: revalidation failed, keeping current state: %s", err)
		return
	}
	reason := reasonFor(outcome)
	logger.WithField("reason", reason).Warnf("session: identity lookup failed: %s", err)
	s.setStateLocked(State{
		Status:     StatusUnauthenticated,
		Reason:     reason,
		Generation: gen,
	})
}

// refreshAndRetry calls the refresh endpoint once, persists the new pair and
// retries the lookup once. It returns the credential the slot holds for this
// resolution: the refreshed pair once swapped in, cred otherwise.
func (s *Store) refreshAndRetry(ctx context.Context, cred credentials.Credential) (credentials.Credential, *hubapi.User, error) {
	refreshed, err := s.api.RefreshToken(ctx, cred.Refresh)
	if err != nil {
		s.metrics.CounterTokenRefreshes.WithLabelValues("failed").Inc()
		return cred, nil, fmt.Errorf("refresh after unauthorized: %w", err)
	}
	if refreshed.Refresh == "" {
		refreshed.Refresh = cred.Refresh
	}

	swapped, err := s.credentials.CompareAndSwap(ctx, cred, refreshed)
	if err != nil {
		s.metrics.CounterTokenRefreshes.WithLabelValues("failed").Inc()
		return cred, nil, fmt.Errorf("save refreshed credential: %w", err)
	}
	if !swapped {
		// logged out or replaced meanwhile
		s.metrics.CounterTokenRefreshes.WithLabelValues("superseded").Inc()
		return cred, nil, fmt.Errorf("refreshed credential superseded: %w", hubapi.ErrUnauthorized)
	}
	s.metrics.CounterTokenRefreshes.WithLabelValues("ok").Inc()

	user, err := s.api.CurrentUser(ctx)
	return refreshed, user, err
}

func (s *Store) isCurrent(gen uint64) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return !s.closed && gen == s.generation
}

func (s *Store) revalidateLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.revalidateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.lifeCtx.Done():
			return
		case <-ticker.C:
			if !s.State().Authenticated() {
				continue
			}
			log.Traceln("session: revalidating")
			if err := s.resolveStored(s.lifeCtx, true); err != nil {
				return
			}
		}
	}
}

func (s *Store) cancelResolutionLocked() {
	if s.resolveCancel != nil {
		s.resolveCancel()
		s.resolveCancel = nil
	}
}

func (s *Store) setStateLocked(state State) {
	s.state = state
	s.metrics.SetSessionStatus(string(state.Status), allStatuses...)

	close(s.changed)
	s.changed = make(chan struct{})

	for _, ch := range s.subscribers {
		select {
		case ch <- state:
		default:
			// drop the unread snapshot, only the latest matters
			select {
			case <-ch:
			default:
			}
			ch <- state
		}
	}
}
