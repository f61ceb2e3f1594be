// Package server assembles the HTTP router and runs the service.
package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/adjutanthq/adjutant/internal/handler"
	"github.com/adjutanthq/adjutant/internal/handler/chat"
	"github.com/adjutanthq/adjutant/internal/handler/integration"
	"github.com/adjutanthq/adjutant/internal/handler/oauth"
	"github.com/adjutanthq/adjutant/internal/handler/session"
	"github.com/adjutanthq/adjutant/internal/handler/settings"
	"github.com/adjutanthq/adjutant/internal/logging"
	"github.com/adjutanthq/adjutant/internal/middleware"
	"github.com/adjutanthq/adjutant/internal/svc"
)

// Run starts the HTTP server and blocks until ctx is cancelled, then
// shuts down gracefully within the configured timeout.
func Run(ctx context.Context, svcCtx *svc.ServiceContext) error {
	r := NewRouter(svcCtx)

	httpServer := &http.Server{
		Addr:    svcCtx.Config.Addr(),
		Handler: r,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Infof("listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logging.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), svcCtx.Config.Server.ShutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// NewRouter builds the chi router with all routes mounted.
func NewRouter(svcCtx *svc.ServiceContext) chi.Router {
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)

	r.Get("/health", handler.HealthCheckHandler(svcCtx))

	// OAuth callbacks are bare browser redirects, so they sit outside
	// the authenticated group; the signed state carries the user.
	r.Get("/oauth/{provider}/callback", oauth.CallbackHandler(svcCtx))

	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(svcCtx.Config.Auth.JWTSecret))
		r.Get("/oauth/{provider}/connect", oauth.ConnectHandler(svcCtx))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(svcCtx.Config.Auth.JWTSecret))

		r.Post("/chat", chat.SendMessageHandler(svcCtx))

		r.Get("/sessions", session.ListSessionsHandler(svcCtx))
		r.Get("/sessions/{sessionID}/messages", session.ListMessagesHandler(svcCtx))
		r.Delete("/sessions/{sessionID}", session.DeleteSessionHandler(svcCtx))

		r.Get("/settings", settings.GetSettingsHandler(svcCtx))
		r.Put("/settings", settings.UpdateSettingsHandler(svcCtx))
		r.Put("/settings/fireflies-key", settings.SetFirefliesKeyHandler(svcCtx))
		r.Delete("/settings/fireflies-key", settings.DeleteFirefliesKeyHandler(svcCtx))

		r.Get("/integrations", integration.ListIntegrationsHandler(svcCtx))
		r.Delete("/integrations/{provider}", integration.DisconnectHandler(svcCtx))
	})

	return r
}
