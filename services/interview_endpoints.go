package services

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type InterviewEndpoints struct {
	conductor *Conductor
	sessions  *SessionManager
}

type StartInterviewRequest struct {
	UserID        string `json:"user_id" validate:"required"`
	JobID         string `json:"job_id" validate:"required"`
	ApplicationID string `json:"application_id" validate:"required"`
}

type TurnRequest struct {
	Input string `json:"input"`
	End   bool   `json:"end"`
}

type AbandonRequest struct {
	Reason string `json:"reason"`
}

func NewInterviewEndpoints(conductor *Conductor, sessions *SessionManager) *InterviewEndpoints {
	return &InterviewEndpoints{
		conductor: conductor,
		sessions:  sessions,
	}
}

func (e *InterviewEndpoints) RegisterRoutes(r chi.Router) {
	r.Route("/interviews", func(r chi.Router) {
		r.Post("/", e.StartInterviewHandler)
		r.Get("/{id}", e.GetSessionHandler)
		r.Post("/{id}/turns", e.TurnHandler)
		r.Post("/{id}/end", e.EndHandler)
		r.Post("/{id}/abandon", e.AbandonHandler)
	})
}

func (e *InterviewEndpoints) StartInterviewHandler(w http.ResponseWriter, r *http.Request) {
	var req StartInterviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.UserID == "" || req.JobID == "" || req.ApplicationID == "" {
		http.Error(w, "user_id, job_id and application_id are required", http.StatusBadRequest)
		return
	}

	result, err := e.conductor.Start(r.Context(), req.UserID, req.JobID, req.ApplicationID)
	if err != nil {
		slog.Error("Failed to start interview", "error", err, "user_id", req.UserID, "job_id", req.JobID)
		http.Error(w, "Failed to start interview", http.StatusInternalServerError)
		return
	}

	status := http.StatusCreated
	if result.Resumed {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(result)
}

func (e *InterviewEndpoints) GetSessionHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")

	sctx, err := e.sessions.GetSession(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			http.Error(w, "Session not found", http.StatusNotFound)
			return
		}
		slog.Error("Failed to get session", "error", err, "session_id", sessionID)
		http.Error(w, "Failed to get session", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sctx)
}

func (e *InterviewEndpoints) TurnHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")

	var req TurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result, err := e.conductor.Continue(r.Context(), sessionID, req.Input, req.End)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			http.Error(w, "Session not found", http.StatusNotFound)
			return
		}
		slog.Error("Failed to advance interview", "error", err, "session_id", sessionID)
		http.Error(w, "Failed to advance interview", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

func (e *InterviewEndpoints) EndHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")

	result, err := e.conductor.End(r.Context(), sessionID)
	if err != nil {
		switch {
		case errors.Is(err, ErrSessionNotFound):
			http.Error(w, "Session not found", http.StatusNotFound)
		case errors.Is(err, ErrSessionNotActive):
			http.Error(w, "Session is no longer active", http.StatusConflict)
		default:
			slog.Error("Failed to end interview", "error", err, "session_id", sessionID)
			http.Error(w, "Failed to end interview", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

func (e *InterviewEndpoints) AbandonHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")

	var req AbandonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Reason == "" {
		req.Reason = "candidate cancelled"
	}

	if err := e.conductor.Abandon(r.Context(), sessionID, req.Reason); err != nil {
		switch {
		case errors.Is(err, ErrSessionNotFound):
			http.Error(w, "Session not found", http.StatusNotFound)
		case errors.Is(err, ErrSessionNotActive):
			http.Error(w, "Session is no longer active", http.StatusConflict)
		default:
			slog.Error("Failed to abandon interview", "error", err, "session_id", sessionID)
			http.Error(w, "Failed to abandon interview", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Interview abandoned", "session_id": sessionID})
}
