package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/openhire/interview-engine/models"
	"github.com/openhire/interview-engine/repository"
)

var (
	// ErrSessionNotFound means the session id is unknown.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionNotActive means the session is in an absorbing state and can
	// no longer be mutated.
	ErrSessionNotActive = errors.New("session not active")
)

// SessionContext is a fully hydrated view of one session: record,
// conversation and progress statistics.
type SessionContext struct {
	Session      *models.InterviewSession `json:"session"`
	Conversation []repository.QAPair      `json:"conversation"`
	Stats        *repository.SessionStats `json:"stats"`
}

// SessionManager owns the session lifecycle and delegates all persistence to
// the store. Transitions are monotonic: once a session reaches COMPLETED,
// EXPIRED or TERMINATED it stays there, and further transition attempts
// surface ErrSessionNotActive instead of corrupting state.
type SessionManager struct {
	store Store
	cfg   InterviewConfig
}

func NewSessionManager(store Store, cfg InterviewConfig) *SessionManager {
	return &SessionManager{store: store, cfg: cfg}
}

// CreateSession creates a new session in STARTED/INITIALIZATION with
// expires_at = now + the job's configured duration (engine default when the
// job doesn't set one). The metadata map carries display snapshots only;
// everything the state machine reads is a typed column.
func (m *SessionManager) CreateSession(ctx context.Context, job *models.Job, application *models.Application, userID string) (*models.InterviewSession, error) {
	durationMinutes := job.InterviewDurationMinutes
	if durationMinutes <= 0 {
		durationMinutes = m.cfg.DefaultDurationMinutes
	}

	now := time.Now()
	session := &models.InterviewSession{
		ID:              uuid.New().String(),
		JobID:           job.ID,
		UserID:          userID,
		ApplicationID:   application.ID,
		Status:          models.StatusStarted,
		Phase:           models.PhaseInitialization,
		StartedAt:       now,
		ExpiresAt:       now.Add(time.Duration(durationMinutes) * time.Minute),
		DurationSeconds: durationMinutes * 60,
		Metadata: map[string]string{
			"job_title":      job.Title,
			"job_difficulty": job.Difficulty,
			"candidate_name": application.CandidateName,
		},
	}

	if err := m.store.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return session, nil
}

// GetSession hydrates the full session context, including the ordered
// conversation and statistics.
func (m *SessionManager) GetSession(ctx context.Context, sessionID string) (*SessionContext, error) {
	session, err := m.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}

	conversation, err := m.store.GetConversation(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	stats, err := m.store.GetSessionStats(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	return &SessionContext{
		Session:      session,
		Conversation: conversation,
		Stats:        stats,
	}, nil
}

// UpdatePhase moves an active session to a new phase, merging any extra
// metadata. Status is never touched here.
func (m *SessionManager) UpdatePhase(ctx context.Context, sessionID string, phase models.SessionPhase, extra map[string]string) error {
	var notActive bool
	session, err := m.store.TransitionSession(ctx, sessionID, func(s *models.InterviewSession) bool {
		if !s.Status.Active() {
			notActive = true
			return false
		}
		s.Phase = phase
		if len(extra) > 0 {
			if s.Metadata == nil {
				s.Metadata = make(map[string]string, len(extra))
			}
			for k, v := range extra {
				s.Metadata[k] = v
			}
		}
		return true
	})
	if err != nil {
		return err
	}
	if session == nil {
		return ErrSessionNotFound
	}
	if notActive {
		return ErrSessionNotActive
	}
	slog.Info("Session phase updated", "session_id", sessionID, "phase", string(phase))
	return nil
}

// CompleteSession finishes a session normally: evaluation stored, status
// COMPLETED, phase COMPLETION, ended_at stamped.
func (m *SessionManager) CompleteSession(ctx context.Context, sessionID string, evaluation *models.Evaluation) error {
	return m.finalize(ctx, sessionID, models.StatusCompleted, evaluation, "")
}

// ExpireSession finishes a session whose time budget elapsed.
func (m *SessionManager) ExpireSession(ctx context.Context, sessionID string, evaluation *models.Evaluation) error {
	return m.finalize(ctx, sessionID, models.StatusExpired, evaluation, "time budget exhausted")
}

// TerminateSession finishes a session forcibly, recording the reason.
func (m *SessionManager) TerminateSession(ctx context.Context, sessionID string, evaluation *models.Evaluation, reason string) error {
	return m.finalize(ctx, sessionID, models.StatusTerminated, evaluation, reason)
}

// AbandonSession terminates a session on explicit candidate cancellation.
func (m *SessionManager) AbandonSession(ctx context.Context, sessionID, reason string) error {
	return m.finalize(ctx, sessionID, models.StatusTerminated, nil, "abandoned: "+reason)
}

// HandleSessionError records an operational failure on the session without
// crashing the caller. Best-effort: its own failures are logged and
// swallowed.
func (m *SessionManager) HandleSessionError(ctx context.Context, sessionID string, opErr error) {
	_, err := m.store.TransitionSession(ctx, sessionID, func(s *models.InterviewSession) bool {
		if !s.Status.Active() {
			return false
		}
		if s.Metadata == nil {
			s.Metadata = make(map[string]string, 1)
		}
		s.Metadata["last_error"] = opErr.Error()
		return true
	})
	if err != nil {
		slog.Error("Failed to record session error", "error", err, "session_id", sessionID, "operation_error", opErr)
	}
}

// finalize writes the evaluation first, then flips status as the last write,
// so a failure part-way leaves the session active and retryable rather than
// terminal without an evaluation.
func (m *SessionManager) finalize(ctx context.Context, sessionID string, status models.SessionStatus, evaluation *models.Evaluation, reason string) error {
	current, err := m.store.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if current == nil {
		return ErrSessionNotFound
	}
	if !current.Status.Active() {
		return ErrSessionNotActive
	}

	if evaluation != nil {
		evaluation.SessionID = sessionID
		if err := m.store.CreateEvaluation(ctx, evaluation); err != nil {
			return fmt.Errorf("failed to store evaluation: %w", err)
		}
	}

	var notActive bool
	session, err := m.store.TransitionSession(ctx, sessionID, func(s *models.InterviewSession) bool {
		if !s.Status.Active() {
			notActive = true
			return false
		}
		now := time.Now()
		s.Status = status
		s.Phase = models.PhaseCompletion
		s.EndedAt = &now
		if reason != "" {
			if s.Metadata == nil {
				s.Metadata = make(map[string]string, 1)
			}
			s.Metadata["completion_reason"] = reason
		}
		return true
	})
	if err != nil {
		return err
	}
	if session == nil {
		return ErrSessionNotFound
	}
	if notActive {
		return ErrSessionNotActive
	}

	slog.Info("Session finalized", "session_id", sessionID, "status", string(status), "reason", reason)
	return nil
}
