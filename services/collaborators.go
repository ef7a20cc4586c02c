package services

import (
	"context"
	"time"

	"github.com/openhire/interview-engine/models"
	"github.com/openhire/interview-engine/repository"
)

// Store is the persistence surface the orchestration engine depends on.
// *repository.InterviewStore satisfies it; tests substitute in-memory fakes.
type Store interface {
	CreateSession(ctx context.Context, session *models.InterviewSession) error
	GetSession(ctx context.Context, sessionID string) (*models.InterviewSession, error)
	FindActiveSession(ctx context.Context, userID, jobID string) (*models.InterviewSession, error)
	FindExpiredActive(ctx context.Context, now time.Time) ([]models.InterviewSession, error)
	UpdateSession(ctx context.Context, session *models.InterviewSession) error
	TransitionSession(ctx context.Context, sessionID string, mutate func(*models.InterviewSession) bool) (*models.InterviewSession, error)

	AppendQuestion(ctx context.Context, question *models.Question) error
	GetQuestions(ctx context.Context, sessionID string) ([]models.Question, error)
	LatestQuestion(ctx context.Context, sessionID string) (*models.Question, error)
	CreateResponse(ctx context.Context, response *models.Response) error
	SessionViolationTotal(ctx context.Context, sessionID string) (int, error)

	CreateEvaluation(ctx context.Context, evaluation *models.Evaluation) error
	GetEvaluation(ctx context.Context, sessionID string) (*models.Evaluation, error)

	GetConversation(ctx context.Context, sessionID string) ([]repository.QAPair, error)
	GetSessionStats(ctx context.Context, sessionID string) (*repository.SessionStats, error)
}

// GeneratedQuestion is the question generator's output contract.
type GeneratedQuestion struct {
	Text       string              `json:"text"`
	Type       models.QuestionType `json:"type"`
	Difficulty string              `json:"difficulty"`
	FocusArea  string              `json:"focus_area"`
	Provider   string              `json:"provider"`
	Model      string              `json:"model"`
	Intent     string              `json:"intent"`
}

// QuestionGenerator produces the next interview question. Failures abort the
// current Start/Continue call; the engine itself never retries.
type QuestionGenerator interface {
	GenerateQuestion(ctx context.Context, job *models.Job, application *models.Application, history []models.Message, difficulty string) (*GeneratedQuestion, error)
}

// EvaluationResult is the transcript evaluator's output contract.
type EvaluationResult struct {
	OverallScore        int                       `json:"overall_score"`
	TechnicalScore      int                       `json:"technical_score"`
	CommunicationScore  int                       `json:"communication_score"`
	ProblemSolvingScore int                       `json:"problem_solving_score"`
	CultureFitScore     int                       `json:"culture_fit_score"`
	HireRecommendation  models.HireRecommendation `json:"hire_recommendation"`
	Feedback            string                    `json:"feedback"`
}

// TranscriptEvaluator scores a finished conversation. On failure the engine
// falls back to a default evaluation rather than blocking completion.
type TranscriptEvaluator interface {
	EvaluateTranscript(ctx context.Context, history []models.Message, job *models.Job, application *models.Application) (*EvaluationResult, error)
}

// ApplicationStatusUpdater propagates the owning application's status.
// Best-effort: failures are logged, never fatal to the interview flow.
type ApplicationStatusUpdater interface {
	UpdateApplicationStatus(ctx context.Context, applicationID, status string) error
}

// JobLookup is the read-only fetch of job and application context used at
// session start.
type JobLookup interface {
	GetJob(ctx context.Context, jobID string) (*models.Job, error)
	GetApplication(ctx context.Context, applicationID string) (*models.Application, error)
}
