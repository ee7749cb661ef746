package internal

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redis_rate/v9"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.uber.org/multierr"

	"github.com/2beens/confhub/internal/access"
	"github.com/2beens/confhub/internal/config"
	"github.com/2beens/confhub/internal/credentials"
	"github.com/2beens/confhub/internal/hubapi"
	"github.com/2beens/confhub/internal/middleware"
	"github.com/2beens/confhub/internal/session"
	"github.com/2beens/confhub/internal/telemetry/metrics"
	"github.com/2beens/confhub/internal/telemetry/tracing"
	"github.com/2beens/confhub/internal/web"
	"github.com/2beens/confhub/pkg"
)

type Server struct {
	httpServer        *http.Server
	metricsHttpServer *http.Server
	versionInfo       string

	config       *config.Config
	redisClient  *redis.Client
	credentials  *credentials.Slot
	apiClient    *hubapi.Client
	sessionStore *session.Store
	guard        *access.Guard

	// metrics
	metricsManager *metrics.Manager
	promRegistry   *prometheus.Registry
	otelShutdown   func()
}

type NewServerParams struct {
	Config                  *config.Config
	VersionInfo             string
	RedisPassword           string
	HoneycombTracingEnabled bool
}

func NewServer(
	ctx context.Context,
	params NewServerParams,
) (*Server, error) {
	cfg := params.Config

	promRegistry := metrics.SetupPrometheus()
	metricsManager := metrics.NewManager("confhub", "main", promRegistry)
	metricsManager.GaugeLifeSignal.Set(0)

	rdb := redis.NewClient(&redis.Options{
		Addr:     net.JoinHostPort(cfg.RedisHost, cfg.RedisPort),
		Password: params.RedisPassword,
		DB:       0, // use default DB
	})

	rdbStatus := rdb.Ping(ctx)
	if err := rdbStatus.Err(); err != nil {
		_ = rdb.Close()
		if cfg.CredentialStore == config.CredentialStoreRedis {
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		log.Warnf("--> redis unreachable, login rate limiting disabled: %s", err)
		rdb = nil
	} else {
		log.Debugf("redis ping: %s", rdbStatus.Val())
	}

	// use honeycomb distro to setup OpenTelemetry SDK
	otelShutdown, err := tracing.HoneycombSetup(params.HoneycombTracingEnabled, "confhub", rdb)
	if err != nil {
		closeRedis(rdb)
		return nil, err
	}

	slot, err := credentials.Open(ctx, credentials.OpenParams{
		Kind:           cfg.CredentialStore,
		FilePath:       cfg.CredentialFile,
		SQLiteDSN:      cfg.SQLitePath,
		Redis:          rdb,
		RedisKeyPrefix: cfg.RedisKeyPrefix,
	})
	if err != nil {
		otelShutdown()
		closeRedis(rdb)
		return nil, fmt.Errorf("open credential slot: %w", err)
	}

	apiClient := hubapi.NewClient(hubapi.ClientParams{
		BaseURL:       cfg.APIBaseURL,
		Timeout:       cfg.APITimeout,
		Credentials:   slot,
		RoomsCacheTTL: cfg.RoomsCacheTTL,
	})

	sessionStore, err := session.NewStore(session.StoreParams{
		Credentials:              slot,
		API:                      apiClient,
		MetricsManager:           metricsManager,
		RefreshOnUnauthorized:    cfg.RefreshOnUnauthorized,
		ForgetRejectedCredential: cfg.ForgetRejectedCredential,
		RevalidateInterval:       cfg.RevalidateInterval,
	})
	if err != nil {
		otelShutdown()
		_ = slot.Close()
		closeRedis(rdb)
		return nil, fmt.Errorf("new session store: %w", err)
	}

	return &Server{
		config:       cfg,
		versionInfo:  params.VersionInfo,
		redisClient:  rdb,
		credentials:  slot,
		apiClient:    apiClient,
		sessionStore: sessionStore,
		guard:        access.NewGuard(sessionStore, metricsManager),

		// telemetry
		metricsManager: metricsManager,
		promRegistry:   promRegistry,
		otelShutdown:   otelShutdown,
	}, nil
}

func (s *Server) routerSetup() (*mux.Router, error) {
	r := mux.NewRouter()
	r.Use(otelmux.Middleware("confhub-router"))

	var rateLimiter middleware.RequestRateLimiter
	if s.redisClient != nil {
		rateLimiter = redis_rate.NewLimiter(s.redisClient)
	}

	webHandler, err := web.NewHandler(web.HandlerParams{
		API:     s.apiClient,
		Session: s.sessionStore,
		AccessGuard: middleware.NewAccessGuard(
			s.guard,
			s.config.LoginPath,
			s.config.CheckTimeout,
		),
		LoginPath:          s.config.LoginPath,
		CheckTimeout:       s.config.CheckTimeout,
		RateLimiter:        rateLimiter,
		LoginAllowedPerMin: s.config.LoginRateLimitAllowedPerMin,
		MetricsManager:     s.metricsManager,
	})
	if err != nil {
		return nil, fmt.Errorf("new web handler: %w", err)
	}
	webHandler.SetupRoutes(r)

	r.HandleFunc("/healthz", s.handleHealth).Methods("GET").Name("health")

	r.Use(middleware.PanicRecovery(s.metricsManager))
	r.Use(middleware.LogRequest())
	r.Use(middleware.RequestMetrics(s.metricsManager))
	r.Use(middleware.Cors(s.config.AllowedOrigins))
	r.Use(middleware.DrainAndCloseRequest())

	return r, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	pkg.WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"session": string(s.sessionStore.State().Status),
		"version": s.versionInfo,
	})
}

// Serve reads the stored credential and starts the http and metrics listeners.
func (s *Server) Serve(ctx context.Context, host string, port int) {
	if err := s.sessionStore.Initialize(ctx); err != nil {
		log.Fatalf("initialize session: %s", err)
	}

	router, err := s.routerSetup()
	if err != nil {
		log.Fatalf("failed to setup router: %s", err)
	}

	ipAndPort := net.JoinHostPort(host, strconv.Itoa(port))
	s.httpServer = &http.Server{
		Handler:      router,
		Addr:         ipAndPort,
		WriteTimeout: time.Minute,
		ReadTimeout:  time.Minute,
	}

	metricsRouter := mux.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.InstrumentMetricHandler(
		s.promRegistry,
		promhttp.HandlerFor(s.promRegistry, promhttp.HandlerOpts{}),
	))
	metricsAddr := net.JoinHostPort(s.config.PrometheusMetricsHost, s.config.PrometheusMetricsPort)
	s.metricsHttpServer = &http.Server{
		Addr:    metricsAddr,
		Handler: metricsRouter,
	}

	go func() {
		log.Infof(" > server listening on: [%s]", ipAndPort)
		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("main service, listen and serve: %s", err)
		}
	}()

	go func() {
		log.Debugf(" > metrics listening on: [%s]", metricsAddr)
		err := s.metricsHttpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("metrics service, listen and serve: %s", err)
		}
	}()

	s.metricsManager.GaugeLifeSignal.Set(1)
}

// GracefulShutdown drains the http servers first, then closes the session
// store and the resources it depends on.
func (s *Server) GracefulShutdown() {
	log.Debug("graceful shutdown initiated ...")
	s.metricsManager.GaugeLifeSignal.Set(0)

	maxWaitDuration := time.Second * 15
	ctx, timeoutCancel := context.WithTimeout(context.Background(), maxWaitDuration)
	defer timeoutCancel()

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			log.Errorf(" >>> failed to gracefully shutdown http server: %s", err)
		}
		log.Warnln("server shut down")
	}

	if s.metricsHttpServer != nil {
		if err := s.metricsHttpServer.Shutdown(ctx); err != nil {
			log.Errorf(" >>> failed to gracefully shutdown metrics http server: %s", err)
		}
		log.Warnln("metrics server shut down")
	}

	s.sessionStore.Close()

	err := s.credentials.Close()
	if s.redisClient != nil {
		err = multierr.Append(err, s.redisClient.Close())
	}
	for _, closeErr := range multierr.Errors(err) {
		log.Errorf("shutdown: %s", closeErr)
	}

	s.otelShutdown()
	log.Trace("otel shut down ...")

	if ok := sentry.Flush(5 * time.Second); ok {
		log.Debugf("sentry flush ok: %t", ok)
	}
}

func closeRedis(rdb *redis.Client) {
	if rdb == nil {
		return
	}
	if err := rdb.Close(); err != nil {
		log.Errorf("failed to close redis client conn: %s", err)
	}
}
