package web

import (
	"bytes"
	"context"
	"errors"
	"html/template"
	"net/http"
	"time"

	"github.com/2beens/confhub/internal/access"
	"github.com/2beens/confhub/internal/credentials"
	"github.com/2beens/confhub/internal/hubapi"
	"github.com/2beens/confhub/internal/middleware"
	"github.com/2beens/confhub/internal/session"
	"github.com/2beens/confhub/internal/telemetry/metrics"
	"github.com/2beens/confhub/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

type hubAPI interface {
	ObtainToken(ctx context.Context, username, password string) (credentials.Credential, error)
	Register(ctx context.Context, req hubapi.RegisterRequest) (*hubapi.User, error)
	ListRooms(ctx context.Context) ([]hubapi.Room, error)
	CreateRoom(ctx context.Context, req hubapi.RoomRequest) (*hubapi.Room, error)
	UpdateRoom(ctx context.Context, id int, req hubapi.RoomRequest) (*hubapi.Room, error)
	DeleteRoom(ctx context.Context, id int) error
	ListReservations(ctx context.Context) ([]hubapi.Reservation, error)
	CreateReservation(ctx context.Context, req hubapi.ReservationRequest) (*hubapi.Reservation, error)
	UpdateReservation(ctx context.Context, id int, req hubapi.ReservationRequest) (*hubapi.Reservation, error)
	CancelReservation(ctx context.Context, id int) error
	ListUsers(ctx context.Context) ([]hubapi.User, error)
	DeleteUser(ctx context.Context, id int) error
	UnreadNotifications(ctx context.Context) ([]hubapi.Notification, error)
	MarkAllRead(ctx context.Context, notifications []hubapi.Notification) error
}

type sessionController interface {
	Login(ctx context.Context, cred credentials.Credential) error
	Logout(ctx context.Context) error
	Refresh(ctx context.Context) error
	State() session.State
	Await(ctx context.Context) (session.State, error)
}

type HandlerParams struct {
	API         hubAPI
	Session     sessionController
	AccessGuard *middleware.AccessGuard
	LoginPath   string
	// CheckTimeout bounds the wait for the identity right after a login.
	CheckTimeout time.Duration

	// RateLimiter limits login and register posts per client ip, nil disables it.
	RateLimiter        middleware.RequestRateLimiter
	LoginAllowedPerMin int
	MetricsManager     *metrics.Manager
}

// Handler serves the conference hub pages.
type Handler struct {
	api          hubAPI
	session      sessionController
	accessGuard  *middleware.AccessGuard
	loginPath    string
	checkTimeout time.Duration

	rateLimiter        middleware.RequestRateLimiter
	loginAllowedPerMin int
	metricsManager     *metrics.Manager

	templates *template.Template
}

func NewHandler(params HandlerParams) (*Handler, error) {
	if params.API == nil || params.Session == nil || params.AccessGuard == nil {
		return nil, errors.New("web handler: api, session and access guard are required")
	}

	templates, err := parseTemplates()
	if err != nil {
		return nil, err
	}

	loginPath := params.LoginPath
	if loginPath == "" {
		loginPath = "/login"
	}
	checkTimeout := params.CheckTimeout
	if checkTimeout <= 0 {
		checkTimeout = 3 * time.Second
	}

	return &Handler{
		api:                params.API,
		session:            params.Session,
		accessGuard:        params.AccessGuard,
		loginPath:          loginPath,
		checkTimeout:       checkTimeout,
		rateLimiter:        params.RateLimiter,
		loginAllowedPerMin: params.LoginAllowedPerMin,
		metricsManager:     params.MetricsManager,
		templates:          templates,
	}, nil
}

func (h *Handler) SetupRoutes(r *mux.Router) {
	r.HandleFunc("/", h.handleRooms).Methods("GET").Name("home")
	r.HandleFunc("/rooms", h.handleRooms).Methods("GET").Name("rooms")

	authRouter := r.NewRoute().Subrouter()
	if h.rateLimiter != nil {
		authRouter.Use(middleware.RateLimit(
			h.rateLimiter,
			h.metricsManager,
			"login",
			h.loginAllowedPerMin,
			http.MethodPost,
		))
	}
	authRouter.HandleFunc(h.loginPath, h.handleLoginPage).Methods("GET").Name("login-page")
	authRouter.HandleFunc(h.loginPath, h.handleLogin).Methods("POST").Name("login")
	authRouter.HandleFunc("/register", h.handleRegisterPage).Methods("GET").Name("register-page")
	authRouter.HandleFunc("/register", h.handleRegister).Methods("POST").Name("register")

	r.HandleFunc("/logout", h.handleLogout).Methods("POST").Name("logout")
	r.HandleFunc("/api/session", h.handleSessionState).Methods("GET").Name("session-state")

	userRouter := r.NewRoute().Subrouter()
	userRouter.Use(h.accessGuard.Require(access.CapabilityAuthenticated))
	userRouter.HandleFunc("/reservations", h.handleReservations).Methods("GET").Name("reservations")
	userRouter.HandleFunc("/reservations", h.handleReserve).Methods("POST").Name("reserve")
	userRouter.HandleFunc("/reservations/{id}", h.handleUpdateReservation).Methods("POST").Name("update-reservation")
	userRouter.HandleFunc("/reservations/{id}/cancel", h.handleCancelReservation).Methods("POST").Name("cancel-reservation")

	notificationsRouter := r.PathPrefix("/api/notifications").Subrouter()
	notificationsRouter.Use(h.accessGuard.RequireJSON(access.CapabilityAuthenticated))
	notificationsRouter.HandleFunc("", h.handleNotifications).Methods("GET").Name("notifications")
	notificationsRouter.HandleFunc("/read", h.handleMarkNotificationsRead).Methods("POST").Name("notifications-read")

	adminRouter := r.PathPrefix("/admin").Subrouter()
	adminRouter.Use(h.accessGuard.Require(access.CapabilityAdmin))
	adminRouter.HandleFunc("", h.handleAdmin).Methods("GET").Name("admin")
	adminRouter.HandleFunc("/rooms", h.handleSaveRoom).Methods("POST").Name("admin-save-room")
	adminRouter.HandleFunc("/rooms/{id}/delete", h.handleDeleteRoom).Methods("POST").Name("admin-delete-room")
	adminRouter.HandleFunc("/reservations", h.handleAdminReserve).Methods("POST").Name("admin-reserve")
	adminRouter.HandleFunc("/reservations/{id}/cancel", h.handleAdminCancelReservation).Methods("POST").Name("admin-cancel-reservation")
	adminRouter.HandleFunc("/users/{id}/delete", h.handleDeleteUser).Methods("POST").Name("admin-delete-user")
}

type pageData struct {
	Title     string
	User      *hubapi.User
	IsAdmin   bool
	Notice    string
	Error     string
	LoginPath string

	Next     string
	Username string
	Email    string

	Rooms        []hubapi.Room
	Reservations []hubapi.Reservation
	Users        []hubapi.User
}

func (h *Handler) newPage(r *http.Request, title string) *pageData {
	data := &pageData{
		Title:     title,
		LoginPath: h.loginPath,
		Notice:    noticeMessages[r.URL.Query().Get("notice")],
	}
	if user, ok := access.IdentityFromContext(r.Context()); ok {
		data.User = user
	} else if state := h.session.State(); state.Authenticated() {
		data.User = state.Identity
	}
	data.IsAdmin = data.User != nil && data.User.IsStaff
	return data
}

func (h *Handler) render(w http.ResponseWriter, statusCode int, name string, data *pageData) {
	var buf bytes.Buffer
	if err := h.templates.ExecuteTemplate(&buf, name, data); err != nil {
		log.Errorf("render template %s: %s", name, err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.HTML, buf.Bytes(), statusCode)
}

// apiStatus maps an api error to the status the page is rendered with.
func apiStatus(err error) int {
	switch {
	case errors.Is(err, hubapi.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, hubapi.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, hubapi.ErrRejected):
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}

// credentialRejected re-resolves the session when the api stops accepting the
// credential mid-session, and sends the user to the login page.
func (h *Handler) credentialRejected(w http.ResponseWriter, r *http.Request, err error) bool {
	if !errors.Is(err, hubapi.ErrUnauthorized) {
		return false
	}
	if refreshErr := h.session.Refresh(context.WithoutCancel(r.Context())); refreshErr != nil {
		log.Warnf("refresh rejected session: %s", refreshErr)
	}
	http.Redirect(w, r, middleware.LoginRedirectURL(h.loginPath, "", middleware.RedirectReasonLoginRequired), http.StatusSeeOther)
	return true
}

func redirectWithNotice(w http.ResponseWriter, r *http.Request, path, notice string) {
	http.Redirect(w, r, path+"?notice="+notice, http.StatusSeeOther)
}
