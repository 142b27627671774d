// Package api serves the relay's status, logs, metrics and preview over HTTP.
package api

import (
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"

	"github.com/smazurov/camrelay/internal/api/models"
	"github.com/smazurov/camrelay/internal/events"
	"github.com/smazurov/camrelay/internal/logging"
	"github.com/smazurov/camrelay/internal/relay"
	"github.com/smazurov/camrelay/internal/version"
	"github.com/smazurov/camrelay/pkg/linuxav/v4l2"
)

const authRealm = `Basic realm="camrelay"`

// StatusProvider reports the relay's current state.
type StatusProvider interface {
	Status() relay.Status
}

// PreviewSource serves the MJPEG preview and its latest still.
type PreviewSource interface {
	http.Handler
	Snapshot() []byte
}

// Options configures the API server.
type Options struct {
	AuthUsername      string
	AuthPassword      string
	Relay             StatusProvider
	EventBus          *events.Bus
	Preview           PreviewSource                     // optional
	PrometheusHandler http.Handler                      // optional
	ListDevices       func() ([]v4l2.DeviceInfo, error) // defaults to v4l2.FindOutputDevices
	CORSOrigins       []string                          // defaults to any origin
}

// Server is the Huma-based HTTP API.
type Server struct {
	api        huma.API
	mux        *http.ServeMux
	handler    http.Handler
	httpServer *http.Server
	options    *Options
	eventBus   *events.Bus
	logger     *slog.Logger
}

// NewServer creates an API server using Go 1.22+ native routing.
func NewServer(opts *Options) *Server {
	if opts.ListDevices == nil {
		opts.ListDevices = v4l2.FindOutputDevices
	}

	mux := http.NewServeMux()

	corsConfig := DefaultCORSConfig()
	if len(opts.CORSOrigins) > 0 {
		corsConfig.AllowOrigins = opts.CORSOrigins
	}

	config := huma.DefaultConfig("camrelay API", version.Version)
	config.Info.Description = "Status and preview for the MJPEG camera to virtual webcam relay"
	config.Servers = []*huma.Server{}
	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"basicAuth": {
			Type:   "http",
			Scheme: "basic",
		},
	}

	api := humago.New(mux, config)

	server := &Server{
		api:      api,
		mux:      mux,
		options:  opts,
		eventBus: opts.EventBus,
		logger:   logging.GetLogger("api"),
	}

	api.UseMiddleware(HTTPLoggingMiddleware)
	if server.authEnabled() {
		api.UseMiddleware(server.basicAuthMiddleware())
	}

	if opts.PrometheusHandler != nil {
		mux.Handle("GET /metrics", opts.PrometheusHandler)
	}
	if opts.Preview != nil {
		mux.Handle("GET /preview.mjpeg", server.requireAuth(opts.Preview))
	}

	server.registerRoutes()

	server.handler = withCORS(mux, corsConfig)
	// Built here so Stop before Serve still closes it.
	server.httpServer = &http.Server{
		Handler:           server.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return server
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// GetAPI returns the Huma API instance.
func (s *Server) GetAPI() huma.API {
	return s.api
}

// Start serves on addr until Stop is called. It returns nil after Stop.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Stop is called.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("Starting API server", "addr", ln.Addr().String())
	s.logger.Info("OpenAPI documentation available", "url", "http://"+ln.Addr().String()+"/docs")

	err := s.httpServer.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop closes the listener and every open connection, including
// long-lived preview and event streams.
func (s *Server) Stop() error {
	s.logger.Info("Stopping API server")
	return s.httpServer.Close()
}

func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "health-check",
		Method:      http.MethodGet,
		Path:        "/api/health",
		Summary:     "Health",
		Description: "Check API health status",
		Tags:        []string{"health"},
		Security:    []map[string][]string{},
	}, func(_ context.Context, _ *struct{}) (*models.HealthResponse, error) {
		return &models.HealthResponse{
			Body: models.HealthData{
				Status:  "ok",
				Message: "API is healthy",
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-version",
		Method:      http.MethodGet,
		Path:        "/api/version",
		Summary:     "Version",
		Description: "Get application version information",
		Tags:        []string{"system"},
		Security:    []map[string][]string{},
	}, func(_ context.Context, _ *struct{}) (*models.VersionResponse, error) {
		return &models.VersionResponse{Body: version.Get()}, nil
	})

	s.registerStatusRoutes()
	s.registerDeviceRoutes()
	s.registerLogRoutes()
	s.registerPreviewRoutes()
	s.registerSSERoutes()
}

func (s *Server) authEnabled() bool {
	return s.options.AuthUsername != "" && s.options.AuthPassword != ""
}

// credentials extracts user and password from a Basic Authorization header
// or, failing that, from the base64 `auth` query parameter used by
// EventSource and <img> tags, which cannot set headers.
func credentials(authHeader, queryAuth string) (user, pass string, err error) {
	encoded := queryAuth
	if authHeader != "" {
		const prefix = "Basic "
		if !strings.HasPrefix(authHeader, prefix) {
			return "", "", errors.New("invalid authentication type")
		}
		encoded = authHeader[len(prefix):]
	}
	if encoded == "" {
		return "", "", errAuthRequired
	}
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", "", errors.New("invalid credentials format")
	}
	user, pass, ok := strings.Cut(string(decoded), ":")
	if !ok {
		return "", "", errors.New("invalid credentials format")
	}
	return user, pass, nil
}

var errAuthRequired = errors.New("authentication required")

func (s *Server) authorized(authHeader, queryAuth string) (bool, string) {
	user, pass, err := credentials(authHeader, queryAuth)
	if err != nil {
		return false, err.Error()
	}
	if user != s.options.AuthUsername || pass != s.options.AuthPassword {
		return false, "invalid credentials"
	}
	return true, ""
}

// basicAuthMiddleware checks credentials on operations that declare security.
func (s *Server) basicAuthMiddleware() func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		op := ctx.Operation()
		if op != nil && len(op.Security) == 0 {
			next(ctx)
			return
		}

		if ok, reason := s.authorized(ctx.Header("Authorization"), ctx.Query("auth")); !ok {
			ctx.SetHeader("WWW-Authenticate", authRealm)
			huma.WriteErr(s.api, ctx, http.StatusUnauthorized, reason)
			return
		}
		next(ctx)
	}
}

// requireAuth guards plain mux handlers with the same credentials.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	if !s.authEnabled() {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ok, reason := s.authorized(r.Header.Get("Authorization"), r.URL.Query().Get("auth")); !ok {
			w.Header().Set("WWW-Authenticate", authRealm)
			http.Error(w, reason, http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withAuth returns the security requirement for basic auth.
func withAuth() []map[string][]string {
	return []map[string][]string{
		{"basicAuth": {}},
	}
}
