package models

import (
	"time"

	"gorm.io/gorm"
)

// HireRecommendation is the evaluator's final verdict for a session.
type HireRecommendation string

const (
	RecommendStrongYes HireRecommendation = "strong_yes"
	RecommendYes       HireRecommendation = "yes"
	RecommendMaybe     HireRecommendation = "maybe"
	RecommendNo        HireRecommendation = "no"
	RecommendStrongNo  HireRecommendation = "strong_no"
)

// Evaluation stores the final scoring for a finished session. Every terminal
// session carries exactly one evaluation; violation terminations get a
// synthetic zero-score one.
type Evaluation struct {
	ID        string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	SessionID string `gorm:"type:uuid;not null;uniqueIndex" json:"session_id"`

	// OverallScore is 0-100; the four sub-scores are 0-25 each.
	OverallScore        int `gorm:"not null;check:overall_score >= 0 AND overall_score <= 100" json:"overall_score"`
	TechnicalScore      int `gorm:"not null;default:0" json:"technical_score"`
	CommunicationScore  int `gorm:"not null;default:0" json:"communication_score"`
	ProblemSolvingScore int `gorm:"not null;default:0" json:"problem_solving_score"`
	CultureFitScore     int `gorm:"not null;default:0" json:"culture_fit_score"`

	HireRecommendation HireRecommendation `gorm:"type:varchar(16);not null;check:hire_recommendation IN ('strong_yes', 'yes', 'maybe', 'no', 'strong_no')" json:"hire_recommendation"`
	Feedback           string             `gorm:"type:text" json:"feedback"`

	// Completion statistics
	QuestionsAsked    int     `gorm:"not null;default:0" json:"questions_asked"`
	QuestionsAnswered int     `gorm:"not null;default:0" json:"questions_answered"`
	CompletionRate    float64 `gorm:"type:decimal(5,2);not null;default:0" json:"completion_rate"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// Relationships
	Session InterviewSession `gorm:"foreignKey:SessionID" json:"-"`
}
