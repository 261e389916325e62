package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/lexiqai/meeting-listener/internal/capture"
	"github.com/lexiqai/meeting-listener/internal/llm"
	"github.com/lexiqai/meeting-listener/internal/meeting"
	"github.com/lexiqai/meeting-listener/internal/observability"
	"github.com/lexiqai/meeting-listener/internal/session"
	"github.com/rs/zerolog"
)

// Session is the part of the session controller the API drives
type Session interface {
	Start(ctx context.Context) error
	Stop()
	State() session.State
	Snapshot() session.Snapshot
	SetPresence(speaker string, participants []string)
}

// Handler serves the control surface
type Handler struct {
	session Session
	meeting *meeting.Service
	live    http.Handler
	logger  zerolog.Logger
}

// NewHandler creates the API handler. live serves the websocket feed and may be nil.
func NewHandler(s Session, m *meeting.Service, live http.Handler, logger zerolog.Logger) *Handler {
	return &Handler{session: s, meeting: m, live: live, logger: logger.With().Str("component", "api").Logger()}
}

// Register mounts every route on mux
func (h *Handler) Register(mux *http.ServeMux) {
	mux.Handle("POST /api/session/start", h.wrap(h.startSession))
	mux.Handle("POST /api/session/stop", h.wrap(h.stopSession))
	mux.Handle("GET /api/session/state", h.wrap(h.sessionState))

	mux.Handle("GET /api/live/state", h.wrap(h.liveState))
	mux.Handle("POST /api/live/presence", h.wrap(h.setPresence))
	if h.live != nil {
		mux.Handle("GET /api/live/ws", h.live)
	}

	mux.Handle("GET /api/meeting/info", h.wrap(h.meetingInfo))
	mux.Handle("PUT /api/meeting/info", h.wrap(h.updateMeetingInfo))
	mux.Handle("POST /api/meeting/actions", h.wrap(h.addAction))
	mux.Handle("GET /api/meeting/report", h.wrap(h.exportReport))
	mux.Handle("POST /api/meeting/qa", h.wrap(h.answer))
}

type handlerFunc func(w http.ResponseWriter, r *http.Request, logger zerolog.Logger)

// wrap tags each request with a correlation ID and logs its outcome
func (h *Handler) wrap(fn handlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Correlation-ID")
		if id == "" {
			id = observability.NewCorrelationID()
		}
		w.Header().Set("X-Correlation-ID", id)
		logger := h.logger.With().Str("correlation_id", id).Str("method", r.Method).Str("path", r.URL.Path).Logger()

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		fn(rec, r, logger)
		logger.Debug().Int("status", rec.status).Dur("latency", time.Since(start)).Msg("Request served")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (h *Handler) startSession(w http.ResponseWriter, r *http.Request, logger zerolog.Logger) {
	if err := h.session.Start(r.Context()); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, capture.ErrDeviceUnavailable) {
			status = http.StatusServiceUnavailable
		}
		logger.Error().Err(err).Msg("Failed to start session")
		observability.RecordError("session_start", "api")
		writeError(w, status, err.Error())
		return
	}

	info, err := h.meeting.Info(r.Context())
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to load meeting info")
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"state":   h.session.State(),
		"meeting": info,
	})
}

func (h *Handler) stopSession(w http.ResponseWriter, r *http.Request, logger zerolog.Logger) {
	h.session.Stop()

	report, err := h.meeting.FinalReport(r.Context())
	if err != nil {
		logger.Error().Err(err).Msg("Failed to build final report")
		writeError(w, http.StatusInternalServerError, "failed to build final report")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":           true,
		"state":        h.session.State(),
		"final_report": report,
	})
}

func (h *Handler) sessionState(w http.ResponseWriter, r *http.Request, logger zerolog.Logger) {
	writeJSON(w, http.StatusOK, h.session.State())
}

func (h *Handler) liveState(w http.ResponseWriter, r *http.Request, logger zerolog.Logger) {
	snap := h.session.Snapshot()
	state, err := h.meeting.LiveState(r.Context(), string(snap.Status), snap.Speaker, snap.Participants)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to build live state")
		writeError(w, http.StatusInternalServerError, "failed to load live state")
		return
	}
	writeJSON(w, http.StatusOK, state)
}

type presenceRequest struct {
	Speaker      string   `json:"speaker"`
	Participants []string `json:"participants"`
}

func (h *Handler) setPresence(w http.ResponseWriter, r *http.Request, logger zerolog.Logger) {
	var req presenceRequest
	if !decode(w, r, &req) {
		return
	}
	h.session.SetPresence(req.Speaker, req.Participants)
	writeJSON(w, http.StatusOK, h.session.Snapshot())
}

func (h *Handler) meetingInfo(w http.ResponseWriter, r *http.Request, logger zerolog.Logger) {
	info, err := h.meeting.Info(r.Context())
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load meeting info")
		writeError(w, http.StatusInternalServerError, "failed to load meeting info")
		return
	}
	writeJSON(w, http.StatusOK, info)
}

type infoRequest struct {
	MeetLink     string   `json:"meet_link"`
	Participants []string `json:"participants"`
}

func (h *Handler) updateMeetingInfo(w http.ResponseWriter, r *http.Request, logger zerolog.Logger) {
	var req infoRequest
	if !decode(w, r, &req) {
		return
	}
	info, err := h.meeting.UpdateInfo(r.Context(), req.MeetLink, req.Participants)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to update meeting info")
		writeError(w, http.StatusInternalServerError, "failed to save meeting info")
		return
	}
	writeJSON(w, http.StatusOK, info)
}

type actionRequest struct {
	Item string `json:"item"`
}

func (h *Handler) addAction(w http.ResponseWriter, r *http.Request, logger zerolog.Logger) {
	var req actionRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.meeting.AddAction(r.Context(), req.Item); err != nil {
		if errors.Is(err, meeting.ErrEmptyAction) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		logger.Error().Err(err).Msg("Failed to add action item")
		writeError(w, http.StatusInternalServerError, "failed to add action item")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"ok": true})
}

func (h *Handler) exportReport(w http.ResponseWriter, r *http.Request, logger zerolog.Logger) {
	report, err := h.meeting.Export(r.Context())
	if err != nil {
		logger.Error().Err(err).Msg("Failed to export report")
		writeError(w, http.StatusInternalServerError, "failed to export report")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

type qaRequest struct {
	Question string `json:"question"`
}

func (h *Handler) answer(w http.ResponseWriter, r *http.Request, logger zerolog.Logger) {
	var req qaRequest
	if !decode(w, r, &req) {
		return
	}
	answer, err := h.meeting.Answer(r.Context(), req.Question)
	switch {
	case errors.Is(err, meeting.ErrEmptyQuestion):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, llm.ErrUnavailable):
		logger.Warn().Err(err).Msg("Language model unavailable for QA")
		writeError(w, http.StatusBadGateway, "language model unavailable")
	case err != nil:
		logger.Error().Err(err).Msg("Failed to answer question")
		writeError(w, http.StatusInternalServerError, "failed to answer question")
	default:
		writeJSON(w, http.StatusOK, map[string]string{"answer": answer})
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
