// Package inspect serves a read-only view of a state.Store over HTTP.
//
// Routes:
//
//	GET /             HTML overview
//	GET /state        all entries as JSON
//	GET /state/{key}  one entry as JSON, 404 if absent
//	GET /events       websocket feed of store events (?format=msgpack for binary frames)
//	GET /metrics      Prometheus exposition, when WithGatherer is set
//
// Nothing here writes to the store.
package inspect

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vango-dev/sharedstate/pkg/state"
)

// ErrUnknownFormat is returned for an unsupported event encoding.
var ErrUnknownFormat = errors.New("inspect: unknown event format")

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger. If nil, slog.Default() is used.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithHub enables the /events feed.
func WithHub(h *Hub) Option {
	return func(s *Server) {
		s.hub = h
	}
}

// WithGatherer enables /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// WithFormat sets the feed encoding used when the request does not ask for
// one. Default: FormatJSON.
func WithFormat(f Format) Option {
	return func(s *Server) {
		s.format = f
	}
}

// WithWriteTimeout bounds each websocket write. Default: 10s.
func WithWriteTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.writeTimeout = d
	}
}

// WithCheckOrigin sets the websocket origin check.
// Default: same-origin requests only.
func WithCheckOrigin(fn func(*http.Request) bool) Option {
	return func(s *Server) {
		s.upgrader.CheckOrigin = fn
	}
}

// Server is the inspector's http.Handler.
type Server struct {
	store        *state.Store
	hub          *Hub
	gatherer     prometheus.Gatherer
	format       Format
	writeTimeout time.Duration
	upgrader     websocket.Upgrader
	logger       *slog.Logger
	router       chi.Router
}

// New creates a Server over store.
func New(store *state.Store, opts ...Option) *Server {
	s := &Server{
		store:        store,
		format:       FormatJSON,
		writeTimeout: 10 * time.Second,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Get("/", s.handleIndex)
	r.Get("/state", s.handleList)
	r.Get("/state/{key}", s.handleEntry)
	if s.hub != nil {
		r.Get("/events", s.handleEvents)
	}
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// EntryView is the JSON shape of an entry.
type EntryView struct {
	Key         string `json:"key"`
	Type        string `json:"type"`
	Set         bool   `json:"set"`
	Version     uint64 `json:"version"`
	Subscribers int    `json:"subscribers"`
	Value       string `json:"value,omitempty"`
}

func viewOf(info state.Info, withValue bool) EntryView {
	v := EntryView{
		Key:         info.Key,
		Type:        info.Type,
		Set:         info.Set,
		Version:     info.Version,
		Subscribers: info.Subscribers,
	}
	if withValue && info.Set {
		v.Value = fmt.Sprintf("%+v", info.Value)
	}
	return v
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	templ.Handler(page(s.store.Snapshots(), s.hub != nil)).ServeHTTP(w, r)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	infos := s.store.Snapshots()
	views := make([]EntryView, 0, len(infos))
	for _, info := range infos {
		views = append(views, viewOf(info, false))
	}
	s.writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleEntry(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if r.URL.RawPath != "" {
		// chi matched the escaped path, so an escaped "/" is still encoded.
		unescaped, err := url.PathUnescape(key)
		if err != nil {
			s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad key"})
			return
		}
		key = unescaped
	}
	info, ok := s.store.Snapshot(key)
	if !ok {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "no such key"})
		return
	}
	s.writeJSON(w, http.StatusOK, viewOf(info, true))
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("write response", "error", err)
	}
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	format := s.format
	if q := r.URL.Query().Get("format"); q != "" {
		f, err := ParseFormat(q)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		format = f
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	events, cancel := s.hub.Subscribe()
	defer cancel()
	s.logger.Debug("feed client connected", "remote", r.RemoteAddr, "format", format)

	// The feed is write-only; reading detects the client going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				s.logger.Warn("feed client dropped", "remote", r.RemoteAddr)
				conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "too slow"))
				return
			}
			typ, payload, err := format.encode(ev)
			if err != nil {
				s.logger.Error("encode event", "error", err)
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			if err := conn.WriteMessage(typ, payload); err != nil {
				s.logger.Debug("feed write failed", "error", err)
				return
			}
		case <-gone:
			s.logger.Debug("feed client disconnected", "remote", r.RemoteAddr)
			return
		case <-r.Context().Done():
			return
		}
	}
}
