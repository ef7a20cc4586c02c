package models

import (
	"time"

	"gorm.io/gorm"
)

// QuestionType classifies what role a question plays in the interview.
type QuestionType string

const (
	QuestionOpener     QuestionType = "opener"
	QuestionTechnical  QuestionType = "technical"
	QuestionBehavioral QuestionType = "behavioral"
	QuestionScenario   QuestionType = "scenario"
	QuestionClosing    QuestionType = "closing"
)

// Question is a single generated interview question. Questions are ordered
// within a session by a monotonically increasing QuestionNumber and carry
// generation provenance alongside the text itself.
type Question struct {
	ID        string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	SessionID string `gorm:"type:uuid;not null;index;uniqueIndex:idx_session_question_number,priority:1" json:"session_id"`

	QuestionNumber int          `gorm:"not null;uniqueIndex:idx_session_question_number,priority:2" json:"question_number"`
	Type           QuestionType `gorm:"type:varchar(16);not null;check:type IN ('opener', 'technical', 'behavioral', 'scenario', 'closing')" json:"type"`
	Text           string       `gorm:"type:text;not null" json:"text"`
	Difficulty     string       `gorm:"size:20" json:"difficulty,omitempty"`
	FocusArea      string       `gorm:"size:100" json:"focus_area,omitempty"`

	// Generation provenance
	Provider string `gorm:"size:50" json:"provider,omitempty"`
	Model    string `gorm:"size:100" json:"model,omitempty"`
	Intent   string `gorm:"type:text" json:"intent,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// Relationships
	Session  InterviewSession `gorm:"foreignKey:SessionID" json:"-"`
	Response *Response        `gorm:"foreignKey:QuestionID" json:"response,omitempty"`
}

// Response is a candidate's answer to exactly one Question. The unique index
// on QuestionID enforces one answer per question at the schema level, which
// is what makes duplicate-resend suppression safe to rely on.
type Response struct {
	ID         string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	QuestionID string `gorm:"type:uuid;not null;uniqueIndex" json:"question_id"`
	SessionID  string `gorm:"type:uuid;not null;index" json:"session_id"`

	Text       string    `gorm:"type:text;not null" json:"text"`
	AnsweredAt time.Time `gorm:"not null" json:"answered_at"`

	// Per-category violation counts scored at persistence time, plus their
	// weighted sum.
	ProfanityCount int `gorm:"not null;default:0" json:"profanity_count"`
	SexualCount    int `gorm:"not null;default:0" json:"sexual_count"`
	PoliticalCount int `gorm:"not null;default:0" json:"political_count"`
	OffTopicCount  int `gorm:"not null;default:0" json:"off_topic_count"`
	ViolationTotal int `gorm:"not null;default:0" json:"violation_total"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// Relationships
	Question Question `gorm:"foreignKey:QuestionID" json:"-"`
}
