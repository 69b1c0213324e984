package internal

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/changepilot/changepilot/internal/config"
	"github.com/changepilot/changepilot/internal/message"
	"github.com/changepilot/changepilot/internal/task"
	"github.com/changepilot/changepilot/internal/webhook"
	"github.com/changepilot/changepilot/pkg/cerr"
	"github.com/changepilot/changepilot/pkg/clog"
)

type Server struct {
	server        *http.Server
	env           *config.Env
	taskServer    *task.Server
	messageServer *message.Server
	webhookServer *webhook.Server
}

func NewServer(
	env *config.Env,
	taskServer *task.Server,
	messageServer *message.Server,
	webhookServer *webhook.Server,
) *Server {
	return &Server{
		env:           env,
		taskServer:    taskServer,
		messageServer: messageServer,
		webhookServer: webhookServer,
	}
}

// ListenAndServe starts the HTTP server. The provided context is used as the
// base context for all incoming requests via http.Server.BaseContext, so
// cancelling it (e.g. on shutdown signal) cancels in-flight handlers too.
func (s *Server) ListenAndServe(ctx context.Context) error {
	r := chi.NewRouter()
	r.Use(clog.SlogChiMiddleware())

	// The messaging webhook answers templated XML directly; everything else
	// goes through the JSON response middleware.
	s.webhookServer.RegisterRoutes(r)

	r.Group(func(r chi.Router) {
		r.Use(
			cerr.NewJSONResponseChiMiddleware(),
			s.apiKeyMiddleware,
		)
		s.taskServer.RegisterRoutes(r)
		s.messageServer.RegisterRoutes(r)
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			cerr.SetJSONResponse(r.Context(), map[string]string{
				"service": "changepilot",
				"status":  "running",
			})
		})
		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			cerr.SetNewJSONError(r.Context(), cerr.NotFound, "not found", nil)
		})
	})

	mux := http.NewServeMux()
	mux.Handle("/health", &HealthChecker{})
	mux.Handle("/", r)

	addr := net.JoinHostPort(s.env.HTTPHost, s.env.HTTPPort)
	slog.Info("starting server", "addr", addr)

	s.server = &http.Server{
		Addr: addr,
		Handler: h2c.NewHandler(cors.New(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"*"},
			AllowCredentials: true,
		}).Handler(mux), &http2.Server{}),
		BaseContext: func(_ net.Listener) context.Context { return ctx },
	}

	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

type HealthChecker struct{}

func (hc *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// apiKeyMiddleware guards the management API when an API key is configured.
func (s *Server) apiKeyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.env.APIKey == "" {
			next.ServeHTTP(w, r)
			return
		}
		apiKey := r.Header.Get("X-API-Key")
		if apiKey == "" {
			apiKey = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		}
		if apiKey != s.env.APIKey {
			cerr.SetNewJSONError(r.Context(), cerr.Unauthenticated, "unauthorized", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
