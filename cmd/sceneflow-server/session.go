package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/sceneflow/sceneflow/internal/app/dto"
	"github.com/sceneflow/sceneflow/internal/app/runtime"
	"github.com/sceneflow/sceneflow/pkg/sceneflow"
)

var errNoSession = errors.New("no session started")

// sessionManager holds the one play session the server drives.
type sessionManager struct {
	rt     *sceneflow.Runtime
	logger *slog.Logger

	mu      sync.Mutex
	session *sceneflow.Session
}

func newSessionManager(rt *sceneflow.Runtime, logger *slog.Logger) *sessionManager {
	return &sessionManager{rt: rt, logger: logger}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": dto.NewError(err)})
}

func (m *sessionManager) current() *sceneflow.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// start replaces any running session. With ?flow=<name> that flow is
// played directly; otherwise the active flow is.
func (m *sessionManager) start(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	host := runtime.NewHeadlessHost(m.logger)
	s := m.rt.NewSession(host)

	var err error
	if name := r.URL.Query().Get("flow"); name != "" {
		g, loadErr := m.rt.Flows().Load(ctx, name)
		if loadErr != nil {
			s.Close()
			status := http.StatusInternalServerError
			if dto.NewError(loadErr).Code == dto.CodeNotFound {
				status = http.StatusNotFound
			}
			writeError(w, status, loadErr)
			return
		}
		err = s.Play(ctx, g)
	} else {
		err = s.Start(ctx)
	}
	if err != nil {
		s.Close()
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	m.mu.Lock()
	prev := m.session
	m.session = s
	m.mu.Unlock()
	if prev != nil {
		prev.Close()
	}
	writeJSON(w, http.StatusCreated, s.State())
}

func (m *sessionManager) state(w http.ResponseWriter, _ *http.Request) {
	s := m.current()
	if s == nil {
		writeError(w, http.StatusNotFound, errNoSession)
		return
	}
	writeJSON(w, http.StatusOK, s.State())
}

type triggerResponse struct {
	Outcome dto.TriggerOutcome `json:"outcome"`
	Session dto.SessionState   `json:"session"`
}

func (m *sessionManager) trigger(w http.ResponseWriter, r *http.Request) {
	s := m.current()
	if s == nil {
		writeError(w, http.StatusConflict, errNoSession)
		return
	}
	outcome, err := s.TriggerFlow(r.Context(), r.PathValue("id"))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, dto.ErrSessionClosed) {
			status = http.StatusConflict
		}
		writeError(w, status, err)
		return
	}
	writeJSON(w, http.StatusOK, triggerResponse{Outcome: outcome, Session: s.State()})
}

func (m *sessionManager) close() {
	m.mu.Lock()
	s := m.session
	m.session = nil
	m.mu.Unlock()
	if s != nil {
		s.Close()
	}
}
