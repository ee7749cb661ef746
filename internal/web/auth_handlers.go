package web

import (
	"context"
	"net/http"
	"strings"

	"github.com/2beens/confhub/internal/hubapi"
	"github.com/2beens/confhub/internal/middleware"
	"github.com/2beens/confhub/internal/session"

	log "github.com/sirupsen/logrus"
)

var loginReasonMessages = map[string]string{
	middleware.RedirectReasonLoginRequired: "Please log in",
	middleware.RedirectReasonForbidden:     "Your account lacks the privilege for that page",
}

var noticeMessages = map[string]string{
	"logged_out":   "You have been logged out",
	"registered":   "Registration successful",
	"reserved":     "Reservation created",
	"updated":      "Reservation updated",
	"cancelled":    "Reservation cancelled",
	"room_saved":   "Room saved",
	"room_deleted": "Room deleted",
	"user_deleted": "User deleted",
}

func (h *Handler) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	data := h.newPage(r, "Login")
	data.Next = middleware.SafeNextPath(r.URL.Query().Get("next"))
	if msg, ok := loginReasonMessages[r.URL.Query().Get("reason")]; ok {
		data.Error = msg
	}
	h.render(w, http.StatusOK, "login", data)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		log.Errorf("login failed, parse form error: %s", err)
		http.Error(w, "parse form error", http.StatusBadRequest)
		return
	}

	username := strings.TrimSpace(r.Form.Get("username"))
	password := r.Form.Get("password")
	next := middleware.SafeNextPath(r.Form.Get("next"))

	data := h.newPage(r, "Login")
	data.Next = next
	data.Username = username

	if username == "" || password == "" {
		data.Error = "Username and password are required"
		h.render(w, http.StatusBadRequest, "login", data)
		return
	}

	if status, failure := h.login(r.Context(), username, password); failure != "" {
		data.Error = failure
		h.render(w, status, "login", data)
		return
	}

	if next == "" {
		next = "/"
	}
	http.Redirect(w, r, next, http.StatusSeeOther)
}

// login obtains a token pair, hands it to the session and waits a bounded
// time for the identity. A non empty failure is the message shown to the user.
func (h *Handler) login(ctx context.Context, username, password string) (int, string) {
	cred, err := h.api.ObtainToken(ctx, username, password)
	if err != nil {
		log.Infof("login [%s] failed: %s", username, err)
		if hubapi.IsTransient(err) {
			return http.StatusBadGateway, "Login failed, the service is unreachable"
		}
		return http.StatusUnauthorized, hubapi.UserMessage(err, "Login failed. Please check your credentials.")
	}

	if err := h.session.Login(ctx, cred); err != nil {
		log.Errorf("login [%s]: session login: %s", username, err)
		return http.StatusInternalServerError, "Login failed, could not store the session"
	}

	awaitCtx, cancel := context.WithTimeout(ctx, h.checkTimeout)
	defer cancel()
	state, err := h.session.Await(awaitCtx)
	if err != nil {
		// still resolving, the guard serves the loading page meanwhile
		log.Debugf("login [%s]: identity not resolved yet: %s", username, err)
		return http.StatusOK, ""
	}
	if state.Status == session.StatusUnauthenticated {
		log.Warnf("login [%s]: fresh credential not accepted: %s", username, state.Reason)
		return http.StatusBadGateway, "Login failed, your account could not be verified"
	}

	log.Infof("user [%s] logged in", username)
	return http.StatusOK, ""
}

func (h *Handler) handleRegisterPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, http.StatusOK, "register", h.newPage(r, "Register"))
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		log.Errorf("register failed, parse form error: %s", err)
		http.Error(w, "parse form error", http.StatusBadRequest)
		return
	}

	req := hubapi.RegisterRequest{
		Username: strings.TrimSpace(r.Form.Get("username")),
		Email:    strings.TrimSpace(r.Form.Get("email")),
		Password: r.Form.Get("password"),
	}
	confirm := r.Form.Get("password_confirm")

	data := h.newPage(r, "Register")
	data.Username = req.Username
	data.Email = req.Email

	switch {
	case req.Username == "" || req.Password == "":
		data.Error = "Username and password are required"
	case req.Password != confirm:
		data.Error = "Passwords do not match"
	}
	if data.Error != "" {
		h.render(w, http.StatusBadRequest, "register", data)
		return
	}

	if _, err := h.api.Register(r.Context(), req); err != nil {
		log.Infof("register [%s] failed: %s", req.Username, err)
		data.Error = hubapi.UserMessage(err, "Registration failed")
		h.render(w, apiStatus(err), "register", data)
		return
	}
	log.Infof("user [%s] registered", req.Username)

	if _, failure := h.login(r.Context(), req.Username, req.Password); failure != "" {
		// account exists, let the user log in by hand
		http.Redirect(w, r, h.loginPath+"?notice=registered", http.StatusSeeOther)
		return
	}
	redirectWithNotice(w, r, "/", "registered")
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.session.Logout(r.Context()); err != nil {
		log.Errorf("logout: %s", err)
	}
	http.Redirect(w, r, h.loginPath+"?notice=logged_out", http.StatusSeeOther)
}
