package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/2beens/confhub/internal/access"
	"github.com/2beens/confhub/internal/cli"
	"github.com/2beens/confhub/internal/config"
	"github.com/2beens/confhub/internal/credentials"
	"github.com/2beens/confhub/internal/hubapi"
	"github.com/2beens/confhub/internal/logging"
	"github.com/2beens/confhub/internal/session"

	"github.com/go-redis/redis/v8"
	log "github.com/sirupsen/logrus"
)

func main() {
	env := flag.String("env", "development", "environment [prod | production | dev | development]")
	configPath := flag.String("config", "", "path for the TOML config file, built-in defaults when empty")
	apiURL := flag.String("api", "", "conference hub api base url, overrides the config")
	logLevel := flag.String("log-level", "error", "log level")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: confhubctl [flags] <command> [arguments]\n\nflags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	os.Exit(run(*env, *configPath, *apiURL, *logLevel, flag.Args()))
}

func run(env, configPath, apiURL, logLevel string, args []string) int {
	cfg := config.Default()
	if configPath != "" {
		var err error
		if cfg, err = config.Load(env, configPath); err != nil {
			fmt.Fprintf(os.Stderr, "load config: %s\n", err)
			return 1
		}
	}
	if apiURL != "" {
		cfg.APIBaseURL = apiURL
	}

	logging.Setup(logging.LoggerSetupParams{
		LogFileName: cfg.LogsPath,
		LogLevel:    logLevel,
		Environment: cfg.Environment,
	})
	if cfg.LogsPath == "" {
		// stdout carries command output
		log.SetOutput(os.Stderr)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var rdb *redis.Client
	if cfg.CredentialStore == config.CredentialStoreRedis {
		rdb = redis.NewClient(&redis.Options{
			Addr:     net.JoinHostPort(cfg.RedisHost, cfg.RedisPort),
			Password: os.Getenv("CONFHUB_REDIS_PASS"),
		})
		defer func() {
			if err := rdb.Close(); err != nil {
				log.Errorf("close redis client: %s", err)
			}
		}()
	}

	slot, err := credentials.Open(ctx, credentials.OpenParams{
		Kind:           cfg.CredentialStore,
		FilePath:       cfg.CredentialFile,
		SQLiteDSN:      cfg.SQLitePath,
		Redis:          rdb,
		RedisKeyPrefix: cfg.RedisKeyPrefix,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "open credential store: %s\n", err)
		return 1
	}
	defer func() {
		if err := slot.Close(); err != nil {
			log.Errorf("close credential store: %s", err)
		}
	}()

	apiClient := hubapi.NewClient(hubapi.ClientParams{
		BaseURL:     cfg.APIBaseURL,
		Timeout:     cfg.APITimeout,
		Credentials: slot,
	})

	store, err := session.NewStore(session.StoreParams{
		Credentials:              slot,
		API:                      apiClient,
		RefreshOnUnauthorized:    cfg.RefreshOnUnauthorized,
		ForgetRejectedCredential: cfg.ForgetRejectedCredential,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "new session store: %s\n", err)
		return 1
	}
	defer store.Close()

	app, err := cli.NewApp(cli.Params{
		API:          apiClient,
		Session:      store,
		Guard:        access.NewGuard(store, nil),
		Credentials:  slot,
		CheckTimeout: cfg.APITimeout,
		Out:          os.Stdout,
		In:           os.Stdin,
		PasswordFD:   int(os.Stdin.Fd()),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		return 1
	}

	if err := app.Run(ctx, args); err != nil {
		if !errors.Is(err, cli.ErrUsage) || len(args) > 0 {
			fmt.Fprintf(os.Stderr, "error: %s\n", err)
		}
		return 1
	}
	return 0
}
