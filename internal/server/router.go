// Package server wires the membrs HTTP API.
package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/membrs/membrs/internal/logging"
	"github.com/membrs/membrs/internal/server/handlers"
	"github.com/membrs/membrs/internal/server/middleware"
)

// Options configures the router.
type Options struct {
	RequestTimeout time.Duration
	AllowedOrigins []string
}

// NewRouter builds the chi router for every endpoint.
func NewRouter(d *handlers.Deps, opts Options) http.Handler {
	r := chi.NewRouter()
	r.Use(logging.Middleware)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	if opts.RequestTimeout > 0 {
		r.Use(chimiddleware.Timeout(opts.RequestTimeout))
	}
	r.Use(middleware.CORS(opts.AllowedOrigins))

	r.Get("/", handlers.IndexHandler())
	r.Get("/api/version", handlers.VersionHandler())

	// OAuth flow
	r.Get("/oauth/url", handlers.OAuthURLHandler(d))
	r.Get("/oauth", handlers.OAuthCallbackHandler(d))

	r.Route("/superuser", func(r chi.Router) {
		r.Use(middleware.SuperUserAuth(d.Store))

		r.Get("/", handlers.AuthenticateHandler())
		r.Put("/", handlers.UpdateSuperUserHandler(d))

		r.Get("/config", handlers.GetConfigHandler(d))
		r.Post("/config", handlers.SetConfigHandler(d))

		r.Get("/users", handlers.ListUsersHandler(d))
		r.Post("/users/{discordID}/refresh", handlers.RefreshUserHandler(d))

		r.Get("/bot/guilds", handlers.BotGuildsHandler(d))

		r.Post("/members/pull", handlers.StartPullHandler(d))
		r.Get("/members/pull", handlers.ListPullsHandler(d))
		r.Get("/members/pull/{jobID}", handlers.GetPullHandler(d))
		r.Delete("/members/pull/{jobID}", handlers.CancelPullHandler(d))
	})

	return r
}

// ListenAndServe serves h on addr until ctx is cancelled, then shuts down gracefully.
func ListenAndServe(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("🚀 membrs listening on http://%s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Printf("🛑 Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
