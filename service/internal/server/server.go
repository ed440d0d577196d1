// internal/server/server.go
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/jason-s-yu/mazesim/engine"
	"github.com/jason-s-yu/mazesim/engine/maze"
	"github.com/jason-s-yu/mazesim/service/internal/models"
	"github.com/jason-s-yu/mazesim/service/internal/sim"
	"github.com/jason-s-yu/mazesim/service/internal/store"
	"github.com/sirupsen/logrus"
)

// EventType names a message sent on the run stream.
type EventType string

const (
	EventStep  EventType = "step"  // one committed step
	EventEnd   EventType = "end"   // run finished, carries the summary
	EventError EventType = "error" // run aborted
)

// Event is the JSON message written to stream clients.
type Event struct {
	Type    EventType          `json:"type"`
	RunID   uuid.UUID          `json:"runId"`
	Step    *models.StepRecord `json:"step,omitempty"`
	Summary *sim.Summary       `json:"summary,omitempty"`
	Error   string             `json:"error,omitempty"`
}

// Server exposes stored runs over HTTP and streams new runs over a websocket.
type Server struct {
	store    store.Store
	log      logrus.FieldLogger
	maxSteps int // per streamed run; 0 uses the scenario's rules
}

// New returns a Server backed by st.
func New(st store.Store, log logrus.FieldLogger, maxSteps int) *Server {
	return &Server{store: st, log: log, maxSteps: maxSteps}
}

// Handler returns the routes:
//
//	GET /runs             stored runs, oldest first
//	GET /runs/{id}/steps  step records of one run
//	GET /runs/stream      websocket; runs a scenario and streams its steps
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /runs", s.handleRuns)
	mux.HandleFunc("GET /runs/stream", s.handleStream)
	mux.HandleFunc("GET /runs/{id}/steps", s.handleSteps)
	return mux
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.log.WithField("addr", addr).Info("listening")

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.store.Runs(r.Context())
	if err != nil {
		s.fail(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, runs)
}

func (s *Server) handleSteps(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.fail(w, http.StatusBadRequest, fmt.Errorf("invalid run id: %w", err))
		return
	}
	steps, err := s.store.Steps(r.Context(), id)
	if errors.Is(err, store.ErrRunNotFound) {
		s.fail(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		s.fail(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, steps)
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	cfg, err := scenarioFromQuery(r)
	if err != nil {
		s.fail(w, http.StatusBadRequest, err)
		return
	}
	sess, err := sim.NewSession(cfg, s.store, s.log)
	if err != nil {
		s.fail(w, http.StatusBadRequest, err)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.log.WithError(err).Warn("websocket accept failed")
		return
	}
	defer conn.CloseNow()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	log := s.log.WithField("run_id", sess.ID.String())

	var writeErr error
	sess.OnStep = func(_ engine.StepResult, rec models.StepRecord) {
		if writeErr != nil {
			return
		}
		if err := wsjson.Write(ctx, conn, Event{Type: EventStep, RunID: sess.ID, Step: &rec}); err != nil {
			writeErr = err
			cancel()
		}
	}

	sum, err := sess.Run(ctx, s.maxSteps)
	if writeErr != nil {
		log.WithError(writeErr).Info("stream client went away")
		return
	}
	if err != nil {
		_ = wsjson.Write(ctx, conn, Event{Type: EventError, RunID: sess.ID, Error: err.Error()})
		conn.Close(websocket.StatusInternalError, "run failed")
		return
	}
	if err := wsjson.Write(ctx, conn, Event{Type: EventEnd, RunID: sess.ID, Summary: &sum}); err != nil {
		log.WithError(err).Info("stream client went away")
		return
	}
	conn.Close(websocket.StatusNormalClosure, "")
}

// scenarioFromQuery builds a scenario from the request. A "scenario" parameter
// holds a JSON maze.Config; otherwise the default maze is used. "horizon"
// overrides every agent's horizon and "parallel" the turn order.
func scenarioFromQuery(r *http.Request) (maze.Config, error) {
	q := r.URL.Query()
	cfg := maze.DefaultConfig()
	if raw := q.Get("scenario"); raw != "" {
		cfg = maze.Config{}
		if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
			return cfg, fmt.Errorf("invalid scenario: %w", err)
		}
		cfg.Rules = engine.DefaultRules()
	}
	if raw := q.Get("horizon"); raw != "" {
		h, err := strconv.Atoi(raw)
		if err != nil {
			return cfg, fmt.Errorf("invalid horizon %q: %w", raw, err)
		}
		for i := range cfg.Agents {
			cfg.Agents[i].Horizon = h
		}
	}
	if raw := q.Get("parallel"); raw != "" {
		p, err := strconv.ParseBool(raw)
		if err != nil {
			return cfg, fmt.Errorf("invalid parallel %q: %w", raw, err)
		}
		cfg.Parallel = p
	}
	return cfg, cfg.Validate()
}

func (s *Server) fail(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.log.WithError(err).Error("request failed")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
