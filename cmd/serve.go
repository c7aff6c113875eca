package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/musicshare/server/internal/auth"
	"github.com/musicshare/server/internal/server"
	"github.com/musicshare/server/internal/services"
	"github.com/musicshare/server/internal/shared"
	"github.com/musicshare/server/internal/tasks"
	"github.com/urfave/cli/v3"
)

const shutdownTimeout = 10 * time.Second

// Serve wires the stores, auth manager, Spotify client, and handlers into an
// HTTP server and runs it until the context is cancelled.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	config := r.reloadConfig(cmd.String("config"))

	if cmd.Bool("verbose") {
		shared.SetLogLevel(r.logger, log.DebugLevel)
	}

	spotify := config.Credentials.Spotify
	if spotify.ClientID == "" || spotify.ClientSecret == "" {
		return fmt.Errorf("%w: spotify client_id and client_secret must be configured", shared.ErrInvalidArgument)
	}

	stateTTL := auth.DefaultStateTTL
	if config.Auth.StateTTLMinutes > 0 {
		stateTTL = time.Duration(config.Auth.StateTTLMinutes) * time.Minute
	}
	sweepInterval := auth.DefaultSweepInterval
	if config.Auth.SweepMinutes > 0 {
		sweepInterval = time.Duration(config.Auth.SweepMinutes) * time.Minute
	}
	skew := auth.DefaultRefreshSkew
	if config.Auth.RefreshSkewSecond > 0 {
		skew = time.Duration(config.Auth.RefreshSkewSecond) * time.Second
	}

	states := auth.NewMemoryStateStore(stateTTL)

	var tokens auth.TokenStore = auth.NewMemoryTokenStore()
	if config.Auth.TokenStore == "sqlite" {
		db, err := shared.NewDatabase(config.Database.Path)
		if err != nil {
			return fmt.Errorf("failed to open token database: %w", err)
		}
		defer db.Close()

		shared.ConfigureDatabase(db, config.Database.MaxOpenConns, config.Database.MaxIdleConns)
		if err := shared.RunMigrations(db); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}

		tokens = auth.NewSQLiteTokenStore(db)
		r.logger.Info("using sqlite token store", "path", config.Database.Path)
	}

	manager := auth.NewManager(auth.ManagerOpts{
		Config:     services.NewOAuthConfig(spotify.ClientID, spotify.ClientSecret, spotify.RedirectURI),
		States:     states,
		Tokens:     tokens,
		UsePKCE:    spotify.UsePKCE,
		Skew:       skew,
		HTTPClient: r.httpClient,
		Logger:     r.logger,
	})

	client := services.NewClient(services.ClientOpts{HTTPClient: r.httpClient})
	engine := tasks.NewRecommendEngine(client, r.logger)

	router := server.NewBasicRouter()
	router.Use(
		server.Recovery(r.logger),
		server.Logging(r.logger),
		server.CORS(config.Server.CORSOrigin),
	)
	router.Handler(server.NewAuthHandler(manager, config.Server.FrontendURL, r.logger))
	router.Handler(server.NewProxyHandler(manager, client, r.logger))
	router.Handler(server.NewRecommendHandler(manager, engine, r.logger))

	sweepCtx, cancelSweep := context.WithCancel(ctx)
	defer cancelSweep()
	auth.StartSweeper(sweepCtx, states, sweepInterval, r.logger)

	port := config.Server.Port
	if p := cmd.Int("port"); p > 0 {
		port = int(p)
	}
	addr := fmt.Sprintf("%s:%d", config.Server.Host, port)

	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		r.logger.Info("server listening", "addr", addr, "pkce", spotify.UsePKCE, "token_store", config.Auth.TokenStore)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		r.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown failed: %w", err)
		}
		return nil
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}
}
