package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"neucal/internal/calendar"
	"neucal/internal/config"
	"neucal/internal/feed"
	appLog "neucal/internal/log"
	"neucal/internal/metrics"
	"neucal/internal/model"
	"neucal/internal/render"
)

// Tool call statuses recorded in metrics.
const (
	statusOK          = "ok"
	statusBadRequest  = "bad_request"
	statusUnavailable = "unavailable"
	statusError       = "error"
)

const maxArgsBytes = 64 << 10

// StatsSource reports on the cached feed snapshot.
type StatsSource interface {
	Stats() feed.Stats
}

// Server exposes the calendar tools over HTTP.
type Server struct {
	cfg     *config.Config
	svc     *calendar.Service
	stats   StatsSource
	metrics *metrics.Metrics
	mux     *http.ServeMux
	tools   map[string]tool
	order   []string
}

// NewServer constructs a new Server. stats and m may be nil.
func NewServer(cfg *config.Config, svc *calendar.Service, stats StatsSource, m *metrics.Metrics) *Server {
	s := &Server{
		cfg:     cfg,
		svc:     svc,
		stats:   stats,
		metrics: m,
		mux:     http.NewServeMux(),
		tools:   make(map[string]tool),
	}
	for _, t := range toolTable() {
		s.tools[t.Name] = t
		s.order = append(s.order, t.Name)
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty credentials disable auth rather than locking everyone out.
	if s.cfg.BasicAuth.Username == "" || s.cfg.BasicAuth.Password == "" {
		return false
	}
	return true
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="neucal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Run serves on cfg.Listen until ctx is canceled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("GET /about", s.handleAbout)
	s.mux.HandleFunc("GET /help", s.handleHelp)
	s.mux.HandleFunc("GET /api/tools", s.handleListTools)
	s.mux.HandleFunc("POST /api/tools/{name}", s.handleCallTool)
	s.mux.HandleFunc("GET /api/events", s.handleEvents)
	if s.metrics != nil {
		s.mux.Handle("GET /metrics", s.metrics.Handler())
	}
}

// healthResponse is the JSON reply of /health. Feed is omitted when the
// server has no stats source.
type healthResponse struct {
	Status string      `json:"status"`
	Feed   *feedHealth `json:"feed,omitempty"`
}

type feedHealth struct {
	Loaded     bool       `json:"loaded"`
	FetchedAt  *time.Time `json:"fetched_at"`
	AgeSeconds float64    `json:"age_seconds"`
	Fresh      bool       `json:"fresh"`
	TTLSeconds float64    `json:"ttl_seconds"`
}

// handleHealth always answers 200. A cold or stale feed is reported in the
// body only.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{Status: "ok"}
	if s.stats != nil {
		st := s.stats.Stats()
		fh := &feedHealth{
			Loaded:     st.Loaded,
			Fresh:      st.Fresh,
			TTLSeconds: st.TTL.Seconds(),
		}
		if st.Loaded {
			at := st.FetchedAt
			fh.FetchedAt = &at
			fh.AgeSeconds = st.Age.Seconds()
		}
		resp.Feed = fh
	}
	writeJSON(w, http.StatusOK, resp)
}

const aboutText = "# University Calendar Service\n\n" +
	"Tools for reading and searching the public university event calendar. " +
	"Events come from the calendar's ICS feed, which is cached and refreshed on demand.\n\n" +
	"## Available Tools\n\n" +
	"- `get_today_events`: Get all events happening today\n" +
	"- `get_upcoming_events`: Get events for the next N days\n" +
	"- `search_events`: Search for events matching a query\n" +
	"- `get_events_by_category`: Get events in a specific category\n" +
	"- `get_event_details`: Get detailed information about a specific event\n" +
	"- `list_categories`: List all available event categories\n"

func (s *Server) handleAbout(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	_, _ = io.WriteString(w, aboutText+"\nData source: "+s.cfg.FeedURL+"\n")
}

const helpText = "# Using the calendar tools\n\n" +
	"List the tools with `GET /api/tools`. Call one with `POST /api/tools/{name}` and a JSON body " +
	"of its arguments; the reply is `{\"text\": ...}`. `GET /api/events?tool={name}&...` takes the " +
	"same arguments as query parameters and returns the matching events as JSON.\n\n" +
	"- `get_today_events`: no arguments\n" +
	"- `get_upcoming_events`: `days` (default 7)\n" +
	"- `search_events`: `query`, `days` (default 30)\n" +
	"- `get_events_by_category`: `category`, `days` (default 30); see `list_categories` for names\n" +
	"- `get_event_details`: `event_name`, matched against titles of all events\n" +
	"- `list_categories`: no arguments\n"

func (s *Server) handleHelp(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	_, _ = io.WriteString(w, helpText)
}

func (s *Server) handleListTools(w http.ResponseWriter, _ *http.Request) {
	out := make([]toolDescriptor, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.tools[name].toolDescriptor)
	}
	writeJSON(w, http.StatusOK, map[string]any{"tools": out})
}

// toolResponse is the JSON reply of POST /api/tools/{name}.
type toolResponse struct {
	Text  string `json:"text"`
	Error bool   `json:"error,omitempty"`
}

// handleCallTool runs a tool and returns its rendered text.
//
// POST /api/tools/search_events
//
//	{"query": "robotics", "days": 14}
//
// An empty body means "no arguments".
func (s *Server) handleCallTool(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	t, ok := s.tools[name]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown tool: "+name)
		return
	}

	var args toolArgs
	dec := json.NewDecoder(io.LimitReader(r.Body, maxArgsBytes))
	if err := dec.Decode(&args); err != nil && !errors.Is(err, io.EOF) {
		s.countCall(name, statusBadRequest)
		writeError(w, http.StatusBadRequest, "invalid arguments: "+err.Error())
		return
	}

	res, err := s.call(r.Context(), t, args)
	if err != nil {
		status, code := classify(err)
		s.countCall(name, status)
		writeJSON(w, code, toolResponse{Text: render.Failure(t.action, err), Error: true})
		return
	}
	s.countCall(name, statusOK)
	writeJSON(w, http.StatusOK, toolResponse{Text: res.text})
}

// eventsResponse is the JSON reply of GET /api/events.
type eventsResponse struct {
	Tool       string        `json:"tool"`
	Today      string        `json:"today"`
	Events     []model.Event `json:"events"`
	Categories []string      `json:"categories,omitempty"`
}

// handleEvents runs a tool and returns its structured result instead of
// text.
//
// GET /api/events?tool=get_upcoming_events&days=3
//   - tool:  tool name (default get_upcoming_events)
//   - days, query, category, event_name: tool arguments
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	name := q.Get("tool")
	if name == "" {
		name = ToolUpcoming
	}
	t, ok := s.tools[name]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown tool: "+name)
		return
	}

	args := toolArgs{
		Query:     q.Get("query"),
		Category:  q.Get("category"),
		EventName: q.Get("event_name"),
	}
	if raw := q.Get("days"); raw != "" {
		days, err := strconv.Atoi(raw)
		if err != nil {
			s.countCall(name, statusBadRequest)
			writeError(w, http.StatusBadRequest, "days must be an integer")
			return
		}
		args.Days = &days
	}

	res, err := s.call(r.Context(), t, args)
	if err != nil {
		status, code := classify(err)
		s.countCall(name, status)
		writeError(w, code, render.Failure(t.action, err))
		return
	}
	s.countCall(name, statusOK)

	resp := eventsResponse{Tool: name, Today: s.svc.Today(), Events: res.events, Categories: res.categories}
	if resp.Events == nil {
		resp.Events = []model.Event{}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) call(ctx context.Context, t tool, args toolArgs) (toolResult, error) {
	start := time.Now()
	res, err := t.run(ctx, s.svc, args)
	if err != nil {
		appLog.Error("tool call failed", err, "tool", t.Name)
		return toolResult{}, err
	}
	appLog.Debug("tool call", "tool", t.Name, "events", len(res.events), "took", time.Since(start))
	return res, nil
}

// classify maps a tool error to a metrics status and HTTP code.
func classify(err error) (string, int) {
	var argErr *ArgError
	switch {
	case errors.As(err, &argErr):
		return statusBadRequest, http.StatusBadRequest
	case errors.Is(err, feed.ErrFetchFailed):
		return statusUnavailable, http.StatusServiceUnavailable
	default:
		return statusError, http.StatusInternalServerError
	}
}

func (s *Server) countCall(name, status string) {
	if s.metrics == nil {
		return
	}
	s.metrics.ToolCalls.WithLabelValues(name, status).Inc()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
