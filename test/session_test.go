package test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/2beens/confhub/internal/session"
)

func (s *IntegrationTestSuite) postForm(path string, form url.Values) *http.Response {
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, serverEndpoint+path, strings.NewReader(form.Encode()))
	s.Require().NoError(err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", "test-agent")

	resp, err := s.httpClient.Do(req)
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (s *IntegrationTestSuite) get(path string) *http.Response {
	resp, err := s.httpClient.Get(serverEndpoint + path)
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (s *IntegrationTestSuite) sessionState() session.State {
	resp := s.get("/api/session")
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)
	var state session.State
	s.Require().NoError(json.Unmarshal(body, &state))
	return state
}

func (s *IntegrationTestSuite) login() {
	resp := s.postForm("/login", url.Values{
		"username": {testUsername},
		"password": {testPassword},
		"next":     {"/reservations"},
	})
	s.Require().Equal(http.StatusSeeOther, resp.StatusCode)
	s.Require().Equal("/reservations", resp.Header.Get("Location"))
}

func (s *IntegrationTestSuite) TestLogin_CredentialPersistedInRedis() {
	resp := s.get("/reservations")
	s.Equal(http.StatusSeeOther, resp.StatusCode)
	s.Equal("/login?next=%2Freservations&reason=login_required", resp.Header.Get("Location"))

	s.login()

	ctx := context.Background()
	stored, err := s.rdb.MGet(ctx, "confhub-credential||access", "confhub-credential||refresh").Result()
	s.Require().NoError(err)
	s.Equal([]any{"access-token", "refresh-token"}, stored)

	resp = s.get("/reservations")
	s.Equal(http.StatusOK, resp.StatusCode)

	// a new process resolves the stored credential once
	lookups := s.api.identityLookups()
	s.restartServer()
	state := s.awaitSettled()
	s.Equal(session.StatusAuthenticated, state.Status)
	s.Equal(testUsername, state.Identity.Username)
	s.Equal(lookups+1, s.api.identityLookups())

	resp = s.get("/reservations")
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal(lookups+1, s.api.identityLookups())
}

func (s *IntegrationTestSuite) TestLogout_ClearsRedis() {
	s.login()

	resp := s.postForm("/logout", nil)
	s.Equal(http.StatusSeeOther, resp.StatusCode)

	exists, err := s.rdb.Exists(context.Background(), "confhub-credential||access").Result()
	s.Require().NoError(err)
	s.Zero(exists)

	s.restartServer()
	state := s.awaitSettled()
	s.Equal(session.StatusUnauthenticated, state.Status)
	s.Equal(session.ReasonNoCredential, state.Reason)
}

func (s *IntegrationTestSuite) TestRevokedCredentialDeniedAfterRestart() {
	s.login()
	s.api.setRevoked(true)
	defer s.api.setRevoked(false)

	s.restartServer()
	state := s.awaitSettled()
	s.Equal(session.StatusUnauthenticated, state.Status)
	s.Equal(session.ReasonInvalidCredential, state.Reason)

	resp := s.get("/reservations")
	s.Equal(http.StatusSeeOther, resp.StatusCode)
	s.Contains(resp.Header.Get("Location"), "reason=login_required")
}

func (s *IntegrationTestSuite) TestLogin_RateLimited() {
	for i := 0; i < 5; i++ {
		resp := s.postForm("/login", url.Values{"username": {testUsername}, "password": {"wrong"}})
		s.Equal(http.StatusUnauthorized, resp.StatusCode)
	}

	resp := s.postForm("/login", url.Values{"username": {testUsername}, "password": {testPassword}})
	s.Equal(http.StatusTooManyRequests, resp.StatusCode)
	s.NotEmpty(resp.Header.Get("Retry-After"))
	s.Equal(session.StatusUnauthenticated, s.sessionState().Status)
}

func (s *IntegrationTestSuite) awaitSettled() session.State {
	var state session.State
	s.Eventually(func() bool {
		state = s.sessionState()
		return state.Status != session.StatusResolving
	}, 5*time.Second, 50*time.Millisecond)
	return state
}
