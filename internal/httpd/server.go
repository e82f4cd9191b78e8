// Package httpd serves the health and status endpoints.
package httpd

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/nhle/uni-helper/internal/model"
)

// StatusSource reports the live state of the running service.
type StatusSource interface {
	QueueStatus() model.QueueStatus
	MailboxState() model.ConnectionState
}

// Status is the body of GET /status.
type Status struct {
	Queue   model.QueueStatus     `json:"queue"`
	Mailbox model.ConnectionState `json:"mailbox"`
}

// Server is the status HTTP server.
type Server struct {
	addr   string
	src    StatusSource
	log    zerolog.Logger
	router *mux.Router
	server *http.Server
}

// New builds a Server and its routes.
func New(addr string, src StatusSource, logger zerolog.Logger) *Server {
	s := &Server{
		addr: addr,
		src:  src,
		log:  logger.With().Str("module", "httpd").Logger(),
	}

	r := mux.NewRouter()
	r.Path("/healthz").HandlerFunc(s.health).Name("Health").Methods("GET")
	r.Path("/status").HandlerFunc(s.status).Name("Status").Methods("GET")
	r.NotFoundHandler = s.noMatch(http.StatusNotFound, "No route matches URI path")
	r.MethodNotAllowedHandler = s.noMatch(http.StatusMethodNotAllowed, "Method not allowed for URI path")
	r.Use(s.requestLogging)
	s.router = r

	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Start listens on the configured address and serves until ctx is cancelled
// or Shutdown is called. It returns once the listener is open.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}

	s.server = &http.Server{
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	s.log.Info().Str("addr", ln.Addr().String()).Msg("HTTP listening")
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error().Err(err).Msg("HTTP server failed")
		}
	}()
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) status(w http.ResponseWriter, req *http.Request) {
	body := Status{
		Queue:   s.src.QueueStatus(),
		Mailbox: s.src.MailboxState(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Error().Str("path", req.RequestURI).Err(err).Msg("Error encoding status")
	}
}

// noMatch logs requests the router could not route.
func (s *Server) noMatch(code int, message string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		s.log.Warn().Str("remote", req.RemoteAddr).Str("method", req.Method).
			Str("path", req.RequestURI).Msg(message)
		w.WriteHeader(code)
	})
}

func (s *Server) requestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		s.log.Debug().Str("remote", req.RemoteAddr).Str("method", req.Method).
			Str("path", req.RequestURI).Msg("Request")
		next.ServeHTTP(w, req)
	})
}
