package test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/2beens/confhub/internal/hubapi"
)

const (
	testUsername = "alice"
	testPassword = "alice-pw"
)

// fakeConferenceAPI serves the identity endpoints of the conference hub api.
type fakeConferenceAPI struct {
	*httptest.Server

	mutex   sync.Mutex
	lookups int
	revoked bool
}

func newFakeConferenceAPI() *fakeConferenceAPI {
	api := &fakeConferenceAPI{}
	api.Server = httptest.NewServer(http.HandlerFunc(api.serve))
	return api
}

func (a *fakeConferenceAPI) identityLookups() int {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	return a.lookups
}

func (a *fakeConferenceAPI) setRevoked(revoked bool) {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	a.revoked = revoked
}

func (a *fakeConferenceAPI) serve(w http.ResponseWriter, r *http.Request) {
	reply := func(status int, v any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(v)
	}

	a.mutex.Lock()
	defer a.mutex.Unlock()

	switch r.Method + " " + r.URL.Path {
	case "POST /api/token/":
		body, _ := io.ReadAll(r.Body)
		var creds map[string]string
		_ = json.Unmarshal(body, &creds)
		if creds["username"] != testUsername || creds["password"] != testPassword {
			reply(http.StatusUnauthorized, map[string]string{"detail": "No active account found with the given credentials"})
			return
		}
		reply(http.StatusOK, map[string]string{"access": "access-token", "refresh": "refresh-token"})
	case "GET /api/current_user/":
		a.lookups++
		if a.revoked || strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ") != "access-token" {
			reply(http.StatusUnauthorized, map[string]string{"detail": "Given token not valid for any token type"})
			return
		}
		reply(http.StatusOK, hubapi.User{ID: 1, Username: testUsername})
	case "GET /api/rooms/":
		reply(http.StatusOK, []hubapi.Room{{ID: 1, Name: "Aurora", Capacity: 8}})
	case "GET /api/reservations/":
		reply(http.StatusOK, []hubapi.Reservation{{ID: 7, Date: "2026-11-02", StartTime: "10:00", EndTime: "11:00"}})
	default:
		http.NotFound(w, r)
	}
}
