// Package server hosts the rotation for browser overlays: a JSON control API,
// a websocket event stream and Prometheus metrics.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/mmcdole/marquee/internal/domain"
	"github.com/mmcdole/marquee/internal/metrics"
	"github.com/mmcdole/marquee/internal/rotation"
	"github.com/mmcdole/marquee/internal/selector"
)

// ListCacher exposes the raw list file text of the last load
type ListCacher interface {
	ListCache(session selector.Session) string
}

// Server wires the coordinator to HTTP
type Server struct {
	coord    *rotation.Coordinator
	renderer *RemoteRenderer
	lists    ListCacher
	session  selector.Session
	hub      *Hub
	metrics  *metrics.Metrics
	logger   *slog.Logger
	upgrader websocket.Upgrader
	ctx      context.Context
}

// Options configures a Server
type Options struct {
	Session selector.Session
	// AllowedOrigin limits websocket origins; empty accepts any
	AllowedOrigin string
}

// New creates a server. The hub must be running for /ws to work.
func New(ctx context.Context, coord *rotation.Coordinator, renderer *RemoteRenderer, lists ListCacher, hub *Hub, m *metrics.Metrics, opts Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		coord:    coord,
		renderer: renderer,
		lists:    lists,
		session:  opts.Session,
		hub:      hub,
		metrics:  m,
		logger:   logger,
		ctx:      ctx,
	}
	s.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			if opts.AllowedOrigin == "" {
				return true
			}
			return r.Header.Get("Origin") == opts.AllowedOrigin
		},
	}
	return s
}

// Router builds the chi router with all routes
func (s *Server) Router(middlewares ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	for _, mw := range middlewares {
		r.Use(mw)
	}

	r.Get("/healthz", s.handleHealth)
	r.Get("/ws", s.handleWS)
	if s.metrics != nil {
		r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			s.metrics.Handler(func() {
				sel := s.coord.Selection()
				s.metrics.SetSlides(sel.PlannedTotal, sel.CreatedCount)
			}).ServeHTTP(w, r)
		})
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/state", s.handleState)
		r.Get("/slides", s.handleSlides)
		r.Get("/list-cache", s.handleListCache)
		r.Post("/rebuild", s.handleRebuild)
		r.Post("/navigate", s.handleNavigate)
		r.Post("/pause", s.handlePause)
		r.Post("/resume", s.handleResume)
		r.Post("/next", s.handleNext)
		r.Post("/prev", s.handlePrev)
	})
	return r
}

// OnEvent forwards rotation events to connected overlays
func (s *Server) OnEvent(e rotation.Event) {
	switch ev := e.(type) {
	case rotation.EventSlideEntered:
		s.hub.Publish(e.EventName(), slidePayload(ev.Index, ev.Item))
	case rotation.EventRebuildFinished:
		payload := map[string]any{"reason": ev.Reason, "slides": ev.Slides}
		if ev.Err != nil {
			payload["error"] = ev.Err.Error()
		}
		s.hub.Publish(e.EventName(), payload)
	default:
		s.hub.Publish(e.EventName(), e)
	}
}

// HandleCommand applies a control message received over /ws
func (s *Server) HandleCommand(cmd Command) {
	switch cmd.Type {
	case "pause", "resume":
		source, err := parsePauseSource(cmd.Source)
		if err != nil {
			s.logger.Warn("ws command rejected", "type", cmd.Type, "error", err)
			return
		}
		if cmd.Type == "pause" {
			s.coord.Pause(source)
		} else {
			s.coord.Resume(source)
		}
	case "next":
		s.coord.Next()
	case "prev":
		s.coord.Prev()
	case "lost":
		s.renderer.ReportLost(cmd.Detail)
	case "navigate":
		if err := validateView(cmd.View); err != nil {
			s.logger.Warn("ws command rejected", "type", cmd.Type, "error", err)
			return
		}
		s.navigate(cmd.View)
	default:
		s.logger.Debug("unknown ws command", "type", cmd.Type)
	}
}

type stateResponse struct {
	State          string  `json:"state"`
	Timer          string  `json:"timer"`
	Index          int     `json:"index"`
	RemainingMs    int64   `json:"remainingMs"`
	PlannedTotal   int     `json:"plannedTotal"`
	CreatedCount   int     `json:"createdCount"`
	CycleExpired   bool    `json:"cycleExpired"`
	CycleStartedAt *string `json:"cycleStartedAt,omitempty"`
	Paused         bool    `json:"paused"`
	PauseSource    string  `json:"pauseSource,omitempty"`
	Visible        bool    `json:"visible"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "marquee",
	})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	snap := s.coord.Snapshot()
	resp := stateResponse{
		State:        snap.State.String(),
		Timer:        snap.TimerState.String(),
		Index:        snap.Index,
		RemainingMs:  snap.Remaining.Milliseconds(),
		PlannedTotal: snap.PlannedTotal,
		CreatedCount: snap.CreatedCount,
		CycleExpired: snap.CycleExpired,
		Paused:       snap.Paused,
		PauseSource:  string(snap.PauseSource),
		Visible:      s.renderer.Visible(),
	}
	if !snap.CycleStartedAt.IsZero() {
		at := snap.CycleStartedAt.UTC().Format(time.RFC3339Nano)
		resp.CycleStartedAt = &at
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSlides(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"active": s.renderer.Active(),
		"slides": s.renderer.Slides(),
	})
}

func (s *Server) handleListCache(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(s.lists.ListCache(s.session)))
}

func (s *Server) handleRebuild(w http.ResponseWriter, r *http.Request) {
	if s.coord.State() == rotation.StateIdle && !s.renderer.Visible() {
		writeError(w, http.StatusConflict, domain.ErrNotVisible.Error())
		return
	}
	if !s.coord.RequestRebuild(rotation.ReasonManual) {
		writeError(w, http.StatusConflict, "rebuild already in progress")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"accepted": true})
}

type navigateRequest struct {
	View string `json:"view"`
}

func (s *Server) handleNavigate(w http.ResponseWriter, r *http.Request) {
	var req navigateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := validateView(req.View); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rebuilding := s.navigate(req.View)
	writeJSON(w, http.StatusOK, map[string]any{
		"view":       req.View,
		"rebuilding": rebuilding,
	})
}

func validateView(view string) error {
	if view != "home" && view != "other" {
		return errors.New(`view must be "home" or "other"`)
	}
	return nil
}

// navigate applies a view change and reports whether a rebuild was started
func (s *Server) navigate(view string) bool {
	if view == "home" {
		s.renderer.SetVisible(true)
		return s.coord.NavigatedHome()
	}
	s.renderer.SetVisible(false)
	s.coord.NavigatedAway()
	return false
}

type sourceRequest struct {
	Source string `json:"source"`
}

func (s *Server) pauseSource(r *http.Request) (rotation.PauseSource, error) {
	var req sourceRequest
	if r.ContentLength == 0 {
		return rotation.SourceAPI, nil
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return "", errors.New("invalid JSON body")
	}
	return parsePauseSource(req.Source)
}

// parsePauseSource maps an empty source to "api" and rejects unknown ones
func parsePauseSource(source string) (rotation.PauseSource, error) {
	switch src := rotation.PauseSource(source); src {
	case "":
		return rotation.SourceAPI, nil
	case rotation.SourceTabHidden, rotation.SourcePointerHover, rotation.SourceFocusLost, rotation.SourceAPI:
		return src, nil
	default:
		return "", errors.New("unknown pause source " + source)
	}
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	src, err := s.pauseSource(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"changed": s.coord.Pause(src), "source": src})
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	src, err := s.pauseSource(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"changed": s.coord.Resume(src), "source": src})
}

func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"changed": s.coord.Next()})
}

func (s *Server) handlePrev(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"changed": s.coord.Prev()})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("ws upgrade failed", "error", err)
		return
	}

	client := &Client{
		hub:  s.hub,
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}

	// queued before registering: once the hub owns send it may close it
	welcome, err := json.Marshal(Message{Type: "welcome", Payload: map[string]any{
		"now":    time.Now().UTC().Format(time.RFC3339Nano),
		"active": s.renderer.Active(),
		"slides": s.renderer.Slides(),
	}})
	if err == nil {
		client.send <- welcome
	}

	select {
	case s.hub.register <- client:
	case <-s.ctx.Done():
		_ = conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
