package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/spf13/pflag"

	"github.com/phrazzld/taskmanager/internal/config"
	"github.com/phrazzld/taskmanager/internal/hub"
	"github.com/phrazzld/taskmanager/internal/hubserver"
	"github.com/phrazzld/taskmanager/internal/platform/logger"
	"github.com/phrazzld/taskmanager/internal/service/auth"
)

// application holds the hub process dependencies.
type application struct {
	config *config.Config
	logger *slog.Logger

	hub        *hub.Hub
	jwtService auth.JWTService
	router     http.Handler
}

func registerFlags(flags *pflag.FlagSet) {
	config.RegisterFlags(flags)
}

// newApplication wires the hub, the optional token check and the router.
func newApplication(cfg *config.Config, log *slog.Logger) (*application, error) {
	app := &application{
		config: cfg,
		logger: log,
	}

	if cfg.Auth.JWTSecret != "" {
		var err error
		app.jwtService, err = auth.NewJWTService(cfg.Auth)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
		}
		log.Info("hub requires access tokens",
			"token_lifetime_minutes", cfg.Auth.TokenLifetimeMinutes)
	} else {
		log.Warn("no JWT secret configured, hub accepts anonymous connections")
	}

	app.hub = hub.New(hubserver.HubOptions(cfg.Hub), log)
	app.router = hubserver.NewRouter(app.hub, app.jwtService, cfg.Hub.AllowedOrigins, log)
	return app, nil
}

// run loads configuration, starts the hub and blocks until ctx is done.
func run(ctx context.Context, args []string) error {
	flags, err := parseFlags(args)
	if err != nil {
		return err
	}

	loader := config.NewLoader(config.OptionsFromFlags(flags))
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log, closer, err := logger.Setup(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}
	defer closeQuietly(closer)

	log.Info("hub configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Log.Level,
		"jwt_secret_present", cfg.Auth.JWTSecret != "")

	if loader.Watch(func(next *config.Config, err error) {
		if err != nil {
			log.Warn("ignoring invalid config change", "error", err)
			return
		}
		logger.SetLevel(log, next.Log.Level)
	}) {
		log.Debug("watching config file for log level changes")
	}

	app, err := newApplication(cfg, log)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	server := hubserver.NewServer(addr, app.hub, app.router, cfg.Server.ShutdownTimeout, log)
	return server.ListenAndServe(ctx)
}

func closeQuietly(c io.Closer) {
	if c != nil {
		_ = c.Close()
	}
}
