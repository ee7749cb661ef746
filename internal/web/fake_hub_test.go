package web

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/2beens/confhub/internal/hubapi"
)

type fakeAccount struct {
	password string
	user     hubapi.User
}

// fakeHub is a small in-memory conference hub api.
type fakeHub struct {
	mutex         sync.Mutex
	accounts      map[string]*fakeAccount
	rooms         []hubapi.Room
	reservations  []hubapi.Reservation
	notifications []hubapi.Notification
	requests      []string
	bodies        map[string]string
	// set to reject every bearer token
	revoked bool
	// when set, identity lookups block until closed
	release chan struct{}
}

var idPathRegex = regexp.MustCompile(`^/api/(rooms|reservations|users|notifications)/(\d+)/$`)

func newFakeHub(t *testing.T) (*fakeHub, *httptest.Server) {
	t.Helper()
	hub := &fakeHub{
		accounts: map[string]*fakeAccount{
			"alice": {password: "alice-pw", user: hubapi.User{ID: 1, Username: "alice", Email: "alice@example.com"}},
			"admin": {password: "admin-pw", user: hubapi.User{ID: 2, Username: "admin", IsStaff: true}},
		},
		rooms: []hubapi.Room{
			{ID: 1, Name: "Aurora", Location: "1st floor", Capacity: 8},
			{ID: 2, Name: "Borealis", Location: "2nd floor", Capacity: 20},
		},
		bodies: map[string]string{},
	}
	hub.reservations = []hubapi.Reservation{
		{ID: 7, Room: &hub.rooms[0], User: &hubapi.ReservationUser{ID: 1, Username: "alice"}, Date: "2026-11-02", StartTime: "10:00", EndTime: "11:00", Status: "confirmed"},
	}
	for i := 1; i <= 7; i++ {
		hub.notifications = append(hub.notifications, hubapi.Notification{ID: i, Message: fmt.Sprintf("note %d", i), Read: i == 1})
	}

	server := httptest.NewServer(http.HandlerFunc(hub.serve))
	t.Cleanup(server.Close)
	return hub, server
}

func (h *fakeHub) recorded() []string {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return append([]string(nil), h.requests...)
}

func (h *fakeHub) count(methodAndPath string) int {
	n := 0
	for _, r := range h.recorded() {
		if r == methodAndPath {
			n++
		}
	}
	return n
}

func (h *fakeHub) body(methodAndPath string) string {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return h.bodies[methodAndPath]
}

func (h *fakeHub) setRevoked(revoked bool) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.revoked = revoked
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// caller resolves the bearer token, tokens are "access-<username>".
func (h *fakeHub) caller(r *http.Request) *hubapi.User {
	if h.revoked {
		return nil
	}
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	account, ok := h.accounts[strings.TrimPrefix(token, "access-")]
	if !ok || !strings.HasPrefix(token, "access-") {
		return nil
	}
	return &account.user
}

func (h *fakeHub) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	key := r.Method + " " + r.URL.Path

	h.mutex.Lock()
	h.requests = append(h.requests, key)
	h.bodies[key] = string(body)
	release := h.release
	h.mutex.Unlock()

	if key == "GET /api/current_user/" && release != nil {
		select {
		case <-release:
		case <-r.Context().Done():
			return
		}
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()

	switch key {
	case "POST /api/token/":
		var creds map[string]string
		_ = json.Unmarshal(body, &creds)
		account, ok := h.accounts[creds["username"]]
		if !ok || account.password != creds["password"] {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "No active account found with the given credentials"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"access": "access-" + creds["username"], "refresh": "refresh-" + creds["username"]})
		return
	case "POST /api/register/":
		var req hubapi.RegisterRequest
		_ = json.Unmarshal(body, &req)
		if _, exists := h.accounts[req.Username]; exists {
			writeJSON(w, http.StatusBadRequest, map[string][]string{"username": {"A user with that username already exists."}})
			return
		}
		user := hubapi.User{ID: len(h.accounts) + 10, Username: req.Username, Email: req.Email}
		h.accounts[req.Username] = &fakeAccount{password: req.Password, user: user}
		writeJSON(w, http.StatusCreated, user)
		return
	case "GET /api/rooms/":
		writeJSON(w, http.StatusOK, h.rooms)
		return
	}

	caller := h.caller(r)
	if caller == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Given token not valid for any token type"})
		return
	}

	switch key {
	case "GET /api/current_user/":
		writeJSON(w, http.StatusOK, caller)
		return
	case "GET /api/reservations/":
		writeJSON(w, http.StatusOK, h.reservations)
		return
	case "POST /api/reservations/":
		var req hubapi.ReservationRequest
		_ = json.Unmarshal(body, &req)
		if req.Date == "2000-01-01" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Room is already booked for that time"})
			return
		}
		reservation := hubapi.Reservation{ID: 100 + len(h.reservations), Date: req.Date, StartTime: req.StartTime, EndTime: req.EndTime}
		if req.UserID != 0 {
			reservation.User = &hubapi.ReservationUser{ID: req.UserID}
		}
		h.reservations = append(h.reservations, reservation)
		writeJSON(w, http.StatusCreated, reservation)
		return
	case "GET /api/notifications/":
		writeJSON(w, http.StatusOK, h.notifications)
		return
	}

	if strings.HasPrefix(key, "GET /api/users/") || strings.HasPrefix(key, "POST /api/rooms/") || r.Method == http.MethodDelete || r.Method == http.MethodPut {
		ownReservation := strings.HasPrefix(key, "DELETE /api/reservations/") || strings.HasPrefix(key, "PUT /api/reservations/")
		if !caller.IsStaff && !ownReservation {
			writeJSON(w, http.StatusForbidden, map[string]string{"detail": "You do not have permission to perform this action."})
			return
		}
	}

	switch key {
	case "GET /api/users/":
		users := make([]hubapi.User, 0, len(h.accounts))
		for _, a := range h.accounts {
			users = append(users, a.user)
		}
		writeJSON(w, http.StatusOK, users)
		return
	case "POST /api/rooms/":
		var req hubapi.RoomRequest
		_ = json.Unmarshal(body, &req)
		room := hubapi.Room{ID: 100 + len(h.rooms), Name: req.Name, Location: req.Location, Capacity: req.Capacity}
		h.rooms = append(h.rooms, room)
		writeJSON(w, http.StatusCreated, room)
		return
	}

	matches := idPathRegex.FindStringSubmatch(r.URL.Path)
	if matches == nil {
		http.NotFound(w, r)
		return
	}
	id, _ := strconv.Atoi(matches[2])
	switch {
	case matches[1] == "notifications" && r.Method == http.MethodPatch:
		for i := range h.notifications {
			if h.notifications[i].ID == id {
				h.notifications[i].Read = true
			}
		}
		writeJSON(w, http.StatusOK, map[string]bool{"read": true})
	case matches[1] == "reservations" && r.Method == http.MethodPut:
		var req hubapi.ReservationRequest
		_ = json.Unmarshal(body, &req)
		for i := range h.reservations {
			if h.reservations[i].ID != id {
				continue
			}
			if req.Date == "2000-01-01" {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Room is already booked for that time"})
				return
			}
			h.reservations[i].Date = req.Date
			h.reservations[i].StartTime = req.StartTime
			h.reservations[i].EndTime = req.EndTime
			for j := range h.rooms {
				if h.rooms[j].ID == req.RoomID {
					room := h.rooms[j]
					h.reservations[i].Room = &room
				}
			}
			writeJSON(w, http.StatusOK, h.reservations[i])
			return
		}
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
	case r.Method == http.MethodPut:
		writeJSON(w, http.StatusOK, map[string]int{"id": id})
	case r.Method == http.MethodDelete:
		w.WriteHeader(http.StatusNoContent)
	default:
		http.NotFound(w, r)
	}
}
