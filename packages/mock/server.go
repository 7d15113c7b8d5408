// Package mock serves the canned responses declared by endpoint mock blocks.
package mock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/sarathm09/vibranium/packages/core/scenario"
	"github.com/sarathm09/vibranium/packages/core/template"
	"github.com/sarathm09/vibranium/packages/logging"
)

// Server is a mock HTTP server built from compiled scenarios.
type Server struct {
	router    *Router
	port      int
	delay     time.Duration
	verbose   bool
	templates *template.Engine
}

// Option is a functional option for Server
type Option func(*Server)

func WithPort(port int) Option {
	return func(s *Server) {
		s.port = port
	}
}

// WithDelay adds a delay to all responses
func WithDelay(delay time.Duration) Option {
	return func(s *Server) {
		s.delay = delay
	}
}

func WithVerbose(verbose bool) Option {
	return func(s *Server) {
		s.verbose = verbose
	}
}

// WithTemplates sets the engine resolving placeholders in mock bodies.
func WithTemplates(e *template.Engine) Option {
	return func(s *Server) {
		s.templates = e
	}
}

func NewServer(opts ...Option) *Server {
	s := &Server{
		router:    NewRouter(),
		port:      3000,
		templates: template.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load registers a route for every non-ignored endpoint declaring a mock and
// returns how many were added.
func (s *Server) Load(scenarios []*scenario.Scenario) int {
	added := 0
	for _, sc := range scenarios {
		for _, ep := range sc.Endpoints {
			if ep.Mock == nil || ep.Ignore {
				continue
			}
			s.router.AddRoute(newRoute(sc.Ref(ep.Name), ep))
			added++
		}
	}
	return added
}

func newRoute(ref scenario.Ref, ep *scenario.Endpoint) *Route {
	pattern := extractPathPattern(ep.URL)
	return &Route{
		Method:      ep.HTTPMethod(),
		PathPattern: pattern,
		PathRegex:   createPathRegex(pattern),
		Ref:         ref,
		Response:    ep.Mock,
	}
}

// Routes returns all registered routes
func (s *Server) Routes() []*Route {
	return s.router.Routes()
}

// Handler returns the http.Handler serving the loaded routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRequest)
	return mux
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logging.Warn("Mock", "shutdown: %v", err)
		}
	}()

	logging.Info("Mock", "mock server starting on http://localhost:%d with %d routes", s.port, len(s.router.routes))
	if s.verbose {
		for _, route := range s.router.routes {
			logging.Info("Mock", "  %s %s -> %s", route.Method, route.PathPattern, route.Ref)
		}
	}

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleRequest(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	route, params := s.router.Match(r.Method, r.URL.Path)
	if route == nil {
		if s.verbose {
			logging.Info("Mock", "%s %s -> 404 (%s)", r.Method, r.URL.Path, time.Since(start))
		}
		http.NotFound(w, r)
		return
	}

	resp := route.Response
	delay := s.delay + time.Duration(resp.Delay)*time.Millisecond
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}

	body, contentType, err := s.renderBody(resp.Body, params)
	if err != nil {
		logging.Error("Mock", err, "render body for %s", route.Ref)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}

	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		logging.Debug("Mock", "write response: %v", err)
	}

	if s.verbose {
		logging.Info("Mock", "%s %s -> %d (%s)", r.Method, r.URL.Path, status, time.Since(start))
	}
}

// renderBody resolves placeholders against the captured path values. String
// bodies are sent as text, anything else as JSON.
func (s *Server) renderBody(body any, params map[string]string) ([]byte, string, error) {
	values := make(map[string]any, len(params))
	for k, v := range params {
		values[k] = v
	}
	scope := template.NewScope(values)

	switch b := body.(type) {
	case nil:
		return nil, "", nil
	case string:
		return []byte(s.templates.Substitute(b, scope)), "text/plain; charset=utf-8", nil
	}

	resolved, err := s.templates.Resolve(body, scope)
	if err != nil {
		return nil, "", err
	}
	data, err := json.Marshal(resolved)
	if err != nil {
		return nil, "", err
	}
	return data, "application/json", nil
}
