package test

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/2beens/confhub/internal"
	"github.com/2beens/confhub/internal/config"

	"github.com/go-redis/redis/v8"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/stretchr/testify/suite"
)

const (
	serverPort = 9000
	serverHost = "127.0.0.1"
)

var serverEndpoint = fmt.Sprintf("http://%s:%d", serverHost, serverPort)

// IntegrationTestSuite runs the service against a real redis, holding the
// credential slot and backing the login rate limiter, and a fake conference hub api.
type IntegrationTestSuite struct {
	suite.Suite

	dockerPool *dockertest.Pool
	redisPort  string
	rdb        *redis.Client
	api        *fakeConferenceAPI
	server     *internal.Server
	httpClient *http.Client
	teardown   []func()
}

func TestIntegrationTestSuite(t *testing.T) {
	suite.Run(t, new(IntegrationTestSuite))
}

func (s *IntegrationTestSuite) SetupSuite() {
	fmt.Println("setting up test suite...")
	s.teardown = make([]func(), 0)

	var err error
	s.dockerPool, err = dockertest.NewPool("")
	if err != nil {
		s.T().Skipf("could not create new dockertest pool: %s", err)
	}
	if err = s.dockerPool.Client.Ping(); err != nil {
		s.T().Skipf("could not ping dockertest pool: %s", err)
	}
	fmt.Println("dockertest pool ping successful")

	s.redisPort, err = s.redisSetup()
	if err != nil {
		s.cleanup()
		s.T().Fatalf("failed to setup redis: %s", err)
	}
	fmt.Println("redis setup successful")

	s.api = newFakeConferenceAPI()
	s.teardown = append(s.teardown, s.api.Close)

	s.httpClient = &http.Client{
		Timeout: 10 * time.Second,
		// redirects are asserted, not followed
		CheckRedirect: func(_ *http.Request, _ []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func (s *IntegrationTestSuite) TearDownSuite() {
	s.cleanup()
}

// SetupTest starts every test logged out, with an empty rate limit.
func (s *IntegrationTestSuite) SetupTest() {
	s.Require().NoError(s.rdb.FlushAll(context.Background()).Err())
	s.restartServer()
}

func (s *IntegrationTestSuite) cleanup() {
	fmt.Println(" --> cleaning up test suite...")
	if s.server != nil {
		s.server.GracefulShutdown()
		s.server = nil
	}
	if s.rdb != nil {
		_ = s.rdb.Close()
	}
	for i := len(s.teardown) - 1; i >= 0; i-- {
		s.teardown[i]()
	}
	fmt.Println(" --> test suite cleanup done")
}

func (s *IntegrationTestSuite) testConfig() *config.Config {
	cfg := config.Default()
	cfg.Host = serverHost
	cfg.Port = serverPort
	cfg.APIBaseURL = s.api.URL + "/api"
	cfg.CredentialStore = config.CredentialStoreRedis
	cfg.RedisHost = "localhost"
	cfg.RedisPort = s.redisPort
	cfg.LoginRateLimitAllowedPerMin = 5
	cfg.PrometheusMetricsPort = "0"
	return cfg
}

func (s *IntegrationTestSuite) startServer() {
	cfg := s.testConfig()
	server, err := internal.NewServer(context.Background(), internal.NewServerParams{
		Config:      cfg,
		VersionInfo: "test-version-info",
	})
	if err != nil {
		s.cleanup()
		s.T().Fatalf("new server: %s", err)
	}
	s.server = server
	s.server.Serve(context.Background(), cfg.Host, cfg.Port)
	s.waitForServer()
}

// restartServer simulates a new process reading the persisted credential.
func (s *IntegrationTestSuite) restartServer() {
	if s.server != nil {
		s.server.GracefulShutdown()
		s.server = nil
	}
	s.startServer()
}

func (s *IntegrationTestSuite) waitForServer() {
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := s.httpClient.Get(serverEndpoint + "/healthz")
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(50 * time.Millisecond)
	}
	s.T().Fatalf("server not up at %s", serverEndpoint)
}

func (s *IntegrationTestSuite) redisSetup() (string, error) {
	redisResource, err := s.dockerPool.RunWithOptions(&dockertest.RunOptions{
		Repository: "redis",
		Tag:        "6.2",
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
	})
	if err != nil {
		return "", fmt.Errorf("run redis: %s", err)
	}

	s.teardown = append(s.teardown, func() {
		if err := redisResource.Close(); err != nil {
			fmt.Printf("redis teardown: %s\n", err)
		}
	})

	redisPort := redisResource.GetPort("6379/tcp")
	s.rdb = redis.NewClient(&redis.Options{Addr: "localhost:" + redisPort})
	if err := s.dockerPool.Retry(func() error {
		return s.rdb.Ping(context.Background()).Err()
	}); err != nil {
		return "", fmt.Errorf("connect to redis: %w", err)
	}

	return redisPort, nil
}
