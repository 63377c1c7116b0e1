package api

import (
	"context"
	"net/http"

	"github.com/ashgrove/geolocated/internal/archive"
	"github.com/ashgrove/geolocated/internal/geodb"
	"github.com/ashgrove/geolocated/internal/geolookup"
	"github.com/ashgrove/geolocated/internal/tzdb"
	"github.com/ashgrove/geolocated/internal/updater"
)

// Server wraps the HTTP server and mux for the geolocation API.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
}

// NewServer wires every route onto a fresh mux. loop may be nil if
// auto-update (and therefore the manual trigger) is disabled.
func NewServer(
	addr string,
	apiKey string,
	facade *geolookup.Facade,
	store *archive.Store,
	pool *geodb.Pool,
	tz *tzdb.Table,
	loop *updater.Loop,
	editions []string,
) *Server {
	mux := http.NewServeMux()

	mux.Handle("GET /healthz", HandleHealthz())

	v1 := http.NewServeMux()
	v1.Handle("GET /v1/status", HandleStatus(facade, editions))
	v1.Handle("GET /v1/lookup", HandleLookup(facade))
	v1.Handle("POST /v1/lookup", HandleLookupBatch(facade))
	v1.Handle("GET /v1/whoami", HandleWhoami(facade))
	v1.Handle("GET /v1/timezones", HandleTimezones(tz))
	v1.Handle("GET /v1/editions/{tag}/archive", HandleArchiveDownload(store, pool))
	if loop != nil {
		v1.Handle("POST /v1/editions/{tag}/actions/update-now", HandleUpdateNow(loop))
	}

	mux.Handle("/v1/", AuthMiddleware(apiKey, v1))

	return &Server{
		httpServer: &http.Server{Addr: addr, Handler: mux},
		mux:        mux,
	}
}

// ListenAndServe starts the HTTP server. It blocks until the server stops.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler returns the underlying http.Handler for testing.
func (s *Server) Handler() http.Handler {
	return s.mux
}
