package models

import (
	"time"

	"gorm.io/gorm"
)

// Job is the listing an interview session is conducted for. The orchestration
// engine only reads jobs; listing management lives elsewhere.
type Job struct {
	ID          string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Title       string `gorm:"not null" json:"title"`
	Description string `gorm:"type:text" json:"description"`
	Difficulty  string `gorm:"size:20;default:'medium'" json:"difficulty"`

	// InterviewDurationMinutes is the session time budget for this job.
	InterviewDurationMinutes int  `gorm:"not null;default:60" json:"interview_duration_minutes"`
	IsActive                 bool `gorm:"default:true" json:"is_active"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// Relationships
	Applications []Application      `gorm:"foreignKey:JobID" json:"applications,omitempty"`
	Sessions     []InterviewSession `gorm:"foreignKey:JobID" json:"sessions,omitempty"`
}

// Application links a candidate to a job and carries the profile snapshot the
// question generator personalizes against. Its status is propagated to
// COMPLETED when the session finishes.
type Application struct {
	ID     string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	JobID  string `gorm:"type:uuid;not null;index" json:"job_id"`
	UserID string `gorm:"type:uuid;not null;index" json:"user_id"`

	Status        string `gorm:"size:30;not null;default:'SUBMITTED'" json:"status"`
	CandidateName string `gorm:"size:255" json:"candidate_name,omitempty"`
	ResumeSummary string `gorm:"type:text" json:"resume_summary,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// Relationships
	Job Job `gorm:"foreignKey:JobID" json:"job,omitempty"`
}
