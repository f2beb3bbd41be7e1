package agent

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/Sternrassler/offline-agent/pkg/metrics"
	"github.com/Sternrassler/offline-agent/pkg/notify"
	"github.com/Sternrassler/offline-agent/pkg/pending"
	"github.com/Sternrassler/offline-agent/pkg/trigger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// maxRecordBytes bounds a POST /_agent/pending body.
const maxRecordBytes = 1 << 20

// Status is the body of GET /_agent/health.
type Status struct {
	Status     string `json:"status"`
	State      State  `json:"state"`
	Version    string `json:"version,omitempty"`
	Controlled bool   `json:"controlled"`
	Pending    int    `json:"pending"`
	Syncing    bool   `json:"syncing"`
	Clients    int    `json:"clients"`
}

// enqueueRequest is the body of POST /_agent/pending.
type enqueueRequest struct {
	Key     string          `json:"key,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

// Routes returns the agent router: the /_agent control API and the gateway
// for everything else.
func (a *Agent) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/_agent", func(r chi.Router) {
		r.Get("/health", a.handleHealth)
		r.Handle("/metrics", metrics.Handler())
		r.Get("/generations", a.handleGenerations)
		r.Post("/pending", a.handleEnqueue)
		r.Post("/sync/{tag}", a.handleSync)
		r.Post("/control", a.handleControl)
		r.Handle("/clients", a.hub.Handler())
	})

	r.Handle("/*", a)

	return r
}

func (a *Agent) handleHealth(w http.ResponseWriter, r *http.Request) {
	st := Status{
		Status:     "ok",
		State:      a.State(),
		Version:    a.Version(),
		Controlled: a.Controlled(),
		Syncing:    a.dispatcher.Running(),
		Clients:    a.hub.Clients(),
	}

	count, err := a.pending.Count(r.Context())
	if err != nil {
		a.logger.Warn().Err(err).Msg("Failed to count pending records")
		st.Status = "degraded"
	}
	st.Pending = count

	writeJSON(w, http.StatusOK, st)
}

func (a *Agent) handleGenerations(w http.ResponseWriter, r *http.Request) {
	names, err := a.cache.Names(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"current":     a.Version(),
		"generations": names,
	})
}

func (a *Agent) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	var req enqueueRequest
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRecordBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if len(body) > maxRecordBytes {
		writeError(w, http.StatusRequestEntityTooLarge, errors.New("record too large"))
		return
	}
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	rec, err := a.Enqueue(r.Context(), pending.Record{Key: req.Key, Payload: req.Payload})
	switch {
	case errors.Is(err, pending.ErrDuplicateKey):
		writeError(w, http.StatusConflict, err)
		return
	case errors.Is(err, pending.ErrInvalidPayload):
		writeError(w, http.StatusBadRequest, err)
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"key": rec.Key})
}

func (a *Agent) handleSync(w http.ResponseWriter, r *http.Request) {
	tag := chi.URLParam(r, "tag")
	if !a.OnSyncTrigger(tag, trigger.SourceHTTP) {
		writeJSON(w, http.StatusOK, map[string]any{"tag": tag, "accepted": false})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"tag": tag, "accepted": true})
}

func (a *Agent) handleControl(w http.ResponseWriter, r *http.Request) {
	var msg notify.Message
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRecordBytes)).Decode(&msg); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if msg.Type != notify.TypeSkipWaiting {
		writeError(w, http.StatusBadRequest, errors.New("unknown control message "+msg.Type))
		return
	}

	err := a.SkipWaiting(r.Context())
	switch {
	case errors.Is(err, ErrNotWaiting):
		writeError(w, http.StatusConflict, err)
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"state": string(a.State()), "version": a.Version()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
