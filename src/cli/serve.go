package cli

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/subcommands"
	"github.com/username/taxfolio/declaration/src/config"
	"github.com/username/taxfolio/declaration/src/handlers"
	"github.com/username/taxfolio/declaration/src/logger"
	"github.com/username/taxfolio/declaration/src/security"
)

type serveCmd struct {
	port    string
	origins string
}

func (*serveCmd) Name() string     { return "serve" }
func (*serveCmd) Synopsis() string { return "run the HTTP API" }
func (*serveCmd) Usage() string {
	return `taxdecl serve [-port <port>] [-origins <origin,...>]

  Serves the report API. Authentication is enabled when JWT_SECRET is set.
`
}

func (c *serveCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.port, "port", "", "Listen port (default PORT)")
	f.StringVar(&c.origins, "origins", "http://localhost:3000", "Comma separated browser origins allowed by CORS")
}

func (c *serveCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg := config.Cfg
	if cfg.JWTSecret != "" && len(cfg.JWTSecret) < 32 {
		logger.L.Error("JWT_SECRET configuration invalid. Must be at least 32 bytes.")
		return subcommands.ExitFailure
	}
	if cfg.JWTSecret == "" {
		logger.L.Warn("JWT_SECRET not set, the API is served without authentication")
	}

	eng, err := newEngine(cfg)
	if err != nil {
		logger.L.Error("Failed to initialize report engine", "error", err)
		return subcommands.ExitFailure
	}
	defer eng.Close()

	router := handlers.NewRouter(handlers.RouterConfig{
		Reports:            eng.service,
		Auth:               security.NewAuthService(cfg.JWTSecret, cfg.AccessTokenExpiry),
		MaxUploadSizeBytes: cfg.MaxUploadSizeBytes,
		RateLimitRPS:       cfg.RateLimitRPS,
		RateLimitBurst:     cfg.RateLimitBurst,
		AllowedOrigins:     splitList(c.origins),
	})

	port := c.port
	if port == "" {
		port = cfg.Port
	}
	srv := &http.Server{
		Addr:         ":" + strings.TrimPrefix(port, ":"),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	errCh := make(chan error, 1)
	go func() {
		logger.L.Info("Server starting", "address", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.L.Error("Server failed to start", "error", err)
			return subcommands.ExitFailure
		}
	case <-ctx.Done():
		logger.L.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.L.Error("Graceful shutdown failed", "error", err)
			return subcommands.ExitFailure
		}
	}
	return subcommands.ExitSuccess
}
