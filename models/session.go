package models

import (
	"time"

	"gorm.io/gorm"
)

// SessionStatus tracks the outer lifecycle of an interview session.
type SessionStatus string

const (
	StatusStarted    SessionStatus = "STARTED"
	StatusInProgress SessionStatus = "INPROGRESS"
	StatusCompleted  SessionStatus = "COMPLETED"
	StatusExpired    SessionStatus = "EXPIRED"
	StatusTerminated SessionStatus = "TERMINATED"
)

// Active reports whether the session is still mutable. COMPLETED, EXPIRED
// and TERMINATED are absorbing states.
func (s SessionStatus) Active() bool {
	return s == StatusStarted || s == StatusInProgress
}

// SessionPhase tracks where the session sits in the Q&A/evaluation pipeline.
// It is orthogonal to SessionStatus: status is the outer lifecycle, phase is
// pipeline position.
type SessionPhase string

const (
	PhaseInitialization SessionPhase = "INITIALIZATION"
	PhaseQuestioning    SessionPhase = "QUESTIONING"
	PhaseEvaluation     SessionPhase = "EVALUATION"
	PhaseCompletion     SessionPhase = "COMPLETION"
)

// InterviewSession records one timed interview attempt by one candidate for
// one job. Fields the state machine reads (status, phase, expiry, violation
// score) are first-class columns; Metadata holds only optional display data
// such as job and candidate snapshots.
type InterviewSession struct {
	ID            string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	JobID         string `gorm:"type:uuid;not null;index" json:"job_id"`
	UserID        string `gorm:"type:uuid;not null;index" json:"user_id"`
	ApplicationID string `gorm:"type:uuid;not null;index" json:"application_id"`

	Status SessionStatus `gorm:"type:varchar(16);not null;default:'STARTED';check:status IN ('STARTED', 'INPROGRESS', 'COMPLETED', 'EXPIRED', 'TERMINATED')" json:"status"`
	Phase  SessionPhase  `gorm:"type:varchar(16);not null;default:'INITIALIZATION';check:phase IN ('INITIALIZATION', 'QUESTIONING', 'EVALUATION', 'COMPLETION')" json:"phase"`

	StartedAt       time.Time  `gorm:"not null" json:"started_at"`
	ExpiresAt       time.Time  `gorm:"not null;index" json:"expires_at"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
	DurationSeconds int        `gorm:"not null" json:"duration_seconds"`

	// ViolationScore is the weighted violation total accumulated across all
	// responses in the session.
	ViolationScore int `gorm:"not null;default:0" json:"violation_score"`

	Metadata  map[string]string `gorm:"serializer:json" json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
	DeletedAt gorm.DeletedAt    `gorm:"index" json:"-"`

	// Relationships
	Questions  []Question  `gorm:"foreignKey:SessionID" json:"questions,omitempty"`
	Evaluation *Evaluation `gorm:"foreignKey:SessionID" json:"evaluation,omitempty"`
}

// Remaining returns the time left on the session's budget at the given
// instant, negative once the deadline has passed.
func (s *InterviewSession) Remaining(now time.Time) time.Duration {
	return s.ExpiresAt.Sub(now)
}

// Expired reports whether the session's time budget has elapsed.
func (s *InterviewSession) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// TotalDuration returns the session's configured time budget.
func (s *InterviewSession) TotalDuration() time.Duration {
	return time.Duration(s.DurationSeconds) * time.Second
}
