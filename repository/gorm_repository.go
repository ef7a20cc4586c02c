package repository

import (
	"context"
	"log/slog"
	"time"

	"github.com/openhire/interview-engine/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// InterviewStore is the single source of truth for sessions, questions,
// responses and evaluations. The orchestration layer never caches session
// state across calls; every operation re-reads through here.
type InterviewStore struct {
	db *gorm.DB
}

func NewInterviewStore(db *gorm.DB) *InterviewStore {
	return &InterviewStore{db: db}
}

// AutoMigrate runs database migrations
func (s *InterviewStore) AutoMigrate() error {
	return s.db.AutoMigrate(
		&models.Job{},
		&models.Application{},
		&models.InterviewSession{},
		&models.Question{},
		&models.Response{},
		&models.Evaluation{},
	)
}

// Session operations

func (s *InterviewStore) CreateSession(ctx context.Context, session *models.InterviewSession) error {
	if err := s.db.WithContext(ctx).Create(session).Error; err != nil {
		slog.Error("Failed to create interview session", "error", err, "user_id", session.UserID, "job_id", session.JobID)
		return err
	}
	slog.Info("Interview session created", "session_id", session.ID, "user_id", session.UserID, "job_id", session.JobID)
	return nil
}

func (s *InterviewStore) GetSession(ctx context.Context, sessionID string) (*models.InterviewSession, error) {
	var session models.InterviewSession
	if err := s.db.WithContext(ctx).Where("id = ?", sessionID).First(&session).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		slog.Error("Failed to get interview session", "error", err, "session_id", sessionID)
		return nil, err
	}
	return &session, nil
}

// FindActiveSession returns the non-absorbing session for a (user, job) pair
// if one exists. Used by Start for resumption.
func (s *InterviewStore) FindActiveSession(ctx context.Context, userID, jobID string) (*models.InterviewSession, error) {
	var session models.InterviewSession
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND job_id = ? AND status IN ?", userID, jobID,
			[]models.SessionStatus{models.StatusStarted, models.StatusInProgress}).
		Order("created_at DESC").
		First(&session).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		slog.Error("Failed to find active session", "error", err, "user_id", userID, "job_id", jobID)
		return nil, err
	}
	return &session, nil
}

// FindExpiredActive returns still-active sessions whose deadline has passed.
// The sweeper scans these on every tick.
func (s *InterviewStore) FindExpiredActive(ctx context.Context, now time.Time) ([]models.InterviewSession, error) {
	var sessions []models.InterviewSession
	err := s.db.WithContext(ctx).
		Where("status IN ? AND expires_at < ?",
			[]models.SessionStatus{models.StatusStarted, models.StatusInProgress}, now).
		Find(&sessions).Error
	if err != nil {
		slog.Error("Failed to scan for expired sessions", "error", err)
		return nil, err
	}
	return sessions, nil
}

// UpdateSession persists session mutations. Status transitions go through
// TransitionSession instead so the status write stays atomic per row.
func (s *InterviewStore) UpdateSession(ctx context.Context, session *models.InterviewSession) error {
	if err := s.db.WithContext(ctx).Save(session).Error; err != nil {
		slog.Error("Failed to update interview session", "error", err, "session_id", session.ID)
		return err
	}
	return nil
}

// TransitionSession re-reads the session under a row lock and applies mutate
// inside a transaction. The status write is the last step of the transaction,
// so a failed transition never leaves the row ambiguous. mutate returning
// false aborts without writing.
func (s *InterviewStore) TransitionSession(ctx context.Context, sessionID string, mutate func(*models.InterviewSession) bool) (*models.InterviewSession, error) {
	var updated *models.InterviewSession
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var session models.InterviewSession
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", sessionID).First(&session).Error; err != nil {
			return err
		}
		if !mutate(&session) {
			updated = &session
			return nil
		}
		if err := tx.Save(&session).Error; err != nil {
			return err
		}
		updated = &session
		return nil
	})
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		slog.Error("Failed to transition interview session", "error", err, "session_id", sessionID)
		return nil, err
	}
	return updated, nil
}

// Question operations

// AppendQuestion assigns the next question_number for the session and
// persists the question in one transaction.
func (s *InterviewStore) AppendQuestion(ctx context.Context, question *models.Question) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var maxNumber int64
		if err := tx.Model(&models.Question{}).
			Where("session_id = ?", question.SessionID).
			Select("COALESCE(MAX(question_number), 0)").
			Scan(&maxNumber).Error; err != nil {
			return err
		}
		question.QuestionNumber = int(maxNumber) + 1
		return tx.Create(question).Error
	})
	if err != nil {
		slog.Error("Failed to append question", "error", err, "session_id", question.SessionID)
		return err
	}
	slog.Info("Question persisted", "question_id", question.ID, "session_id", question.SessionID, "question_number", question.QuestionNumber, "type", question.Type)
	return nil
}

func (s *InterviewStore) GetQuestions(ctx context.Context, sessionID string) ([]models.Question, error) {
	var questions []models.Question
	err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("question_number").
		Find(&questions).Error
	if err != nil {
		slog.Error("Failed to get questions", "error", err, "session_id", sessionID)
		return nil, err
	}
	return questions, nil
}

// LatestQuestion returns the highest-numbered question for a session, or nil
// if none has been generated yet.
func (s *InterviewStore) LatestQuestion(ctx context.Context, sessionID string) (*models.Question, error) {
	var question models.Question
	err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("question_number DESC").
		First(&question).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		slog.Error("Failed to get latest question", "error", err, "session_id", sessionID)
		return nil, err
	}
	return &question, nil
}

// Response operations

func (s *InterviewStore) CreateResponse(ctx context.Context, response *models.Response) error {
	if err := s.db.WithContext(ctx).Create(response).Error; err != nil {
		slog.Error("Failed to create response", "error", err, "question_id", response.QuestionID, "session_id", response.SessionID)
		return err
	}
	slog.Info("Response persisted", "response_id", response.ID, "question_id", response.QuestionID, "violation_total", response.ViolationTotal)
	return nil
}

// SessionViolationTotal sums the weighted violation totals across every
// response in the session.
func (s *InterviewStore) SessionViolationTotal(ctx context.Context, sessionID string) (int, error) {
	var total int64
	err := s.db.WithContext(ctx).Model(&models.Response{}).
		Where("session_id = ?", sessionID).
		Select("COALESCE(SUM(violation_total), 0)").
		Scan(&total).Error
	if err != nil {
		slog.Error("Failed to sum session violations", "error", err, "session_id", sessionID)
		return 0, err
	}
	return int(total), nil
}

// Evaluation operations

func (s *InterviewStore) CreateEvaluation(ctx context.Context, evaluation *models.Evaluation) error {
	if err := s.db.WithContext(ctx).Create(evaluation).Error; err != nil {
		slog.Error("Failed to create evaluation", "error", err, "session_id", evaluation.SessionID)
		return err
	}
	slog.Info("Evaluation created", "evaluation_id", evaluation.ID, "session_id", evaluation.SessionID, "overall_score", evaluation.OverallScore)
	return nil
}

func (s *InterviewStore) GetEvaluation(ctx context.Context, sessionID string) (*models.Evaluation, error) {
	var evaluation models.Evaluation
	if err := s.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&evaluation).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		slog.Error("Failed to get evaluation", "error", err, "session_id", sessionID)
		return nil, err
	}
	return &evaluation, nil
}

// Job and application lookups (read-only collaborator contracts)

func (s *InterviewStore) GetJob(ctx context.Context, jobID string) (*models.Job, error) {
	var job models.Job
	if err := s.db.WithContext(ctx).Where("id = ? AND is_active = ?", jobID, true).First(&job).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		slog.Error("Failed to get job", "error", err, "job_id", jobID)
		return nil, err
	}
	return &job, nil
}

func (s *InterviewStore) ListJobs(ctx context.Context) ([]models.Job, error) {
	var jobs []models.Job
	if err := s.db.WithContext(ctx).Where("is_active = ?", true).Find(&jobs).Error; err != nil {
		slog.Error("Failed to list jobs", "error", err)
		return nil, err
	}
	return jobs, nil
}

func (s *InterviewStore) CreateJob(ctx context.Context, job *models.Job) error {
	if err := s.db.WithContext(ctx).Create(job).Error; err != nil {
		slog.Error("Failed to create job", "error", err, "title", job.Title)
		return err
	}
	slog.Info("Job created", "job_id", job.ID, "title", job.Title)
	return nil
}

func (s *InterviewStore) GetApplication(ctx context.Context, applicationID string) (*models.Application, error) {
	var application models.Application
	if err := s.db.WithContext(ctx).Where("id = ?", applicationID).First(&application).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		slog.Error("Failed to get application", "error", err, "application_id", applicationID)
		return nil, err
	}
	return &application, nil
}

func (s *InterviewStore) UpdateApplicationStatus(ctx context.Context, applicationID, status string) error {
	result := s.db.WithContext(ctx).Model(&models.Application{}).
		Where("id = ?", applicationID).
		Update("status", status)
	if result.Error != nil {
		slog.Error("Failed to update application status", "error", result.Error, "application_id", applicationID, "status", status)
		return result.Error
	}
	slog.Info("Application status updated", "application_id", applicationID, "status", status)
	return nil
}
