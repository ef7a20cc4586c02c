package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/openhire/interview-engine/models"
	"github.com/openhire/interview-engine/repository"
)

// ApplicationStatusCompleted is written to the owning application whenever a
// session reaches any terminal state.
const ApplicationStatusCompleted = "INTERVIEW_COMPLETED"

// StartResult is the contract of Conductor.Start. Resumed is true when an
// active session already existed and no new session was created.
type StartResult struct {
	Session  *models.InterviewSession `json:"session"`
	Question *models.Question         `json:"question"`
	Resumed  bool                     `json:"resumed"`
}

// TurnResult is the contract of Conductor.Continue. Exactly one of Question
// or Message is populated: Question when the interview keeps going, Message
// when this turn ended the session. Success is false only for outcomes the
// candidate should read as a failure (violation termination, expiry).
type TurnResult struct {
	SessionID string               `json:"session_id"`
	Status    models.SessionStatus `json:"status"`
	Done      bool                 `json:"done"`
	Success   bool                 `json:"success"`
	Question  *models.Question     `json:"question,omitempty"`
	Message   string               `json:"message,omitempty"`
	Reason    string               `json:"reason,omitempty"`
	Violation *ViolationScore      `json:"violation,omitempty"`

	RemainingSeconds int                      `json:"remaining_seconds"`
	Stats            *repository.SessionStats `json:"stats,omitempty"`
	Conversation     []repository.QAPair      `json:"conversation,omitempty"`
	Evaluation       *models.Evaluation       `json:"evaluation,omitempty"`
}

// Conductor drives interview sessions turn by turn. It owns no state of its
// own: every decision is derived from the persisted conversation, which is
// what makes Start and Continue safe to retry.
type Conductor struct {
	sessions  *SessionManager
	store     Store
	jobs      JobLookup
	generator QuestionGenerator
	evaluator TranscriptEvaluator
	appStatus ApplicationStatusUpdater
	detector  *ViolationDetector
	cfg       InterviewConfig

	// now is swapped in tests to pin the clock.
	now func() time.Time
}

func NewConductor(sessions *SessionManager, store Store, jobs JobLookup, generator QuestionGenerator, evaluator TranscriptEvaluator, appStatus ApplicationStatusUpdater, detector *ViolationDetector, cfg InterviewConfig) *Conductor {
	return &Conductor{
		sessions:  sessions,
		store:     store,
		jobs:      jobs,
		generator: generator,
		evaluator: evaluator,
		appStatus: appStatus,
		detector:  detector,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Start begins an interview for the given application, or resumes the
// candidate's existing active session for the same job. Retrying a Start
// request never produces a second live session.
func (c *Conductor) Start(ctx context.Context, userID, jobID, applicationID string) (result *StartResult, err error) {
	var sessionID string
	defer func() {
		if r := recover(); r != nil {
			panicErr := fmt.Errorf("panic during start: %v", r)
			slog.Error("Recovered from panic in Start", "user_id", userID, "job_id", jobID, "panic", r)
			if sessionID != "" {
				c.sessions.HandleSessionError(context.WithoutCancel(ctx), sessionID, panicErr)
			}
			result, err = nil, panicErr
		}
	}()

	existing, err := c.store.FindActiveSession(ctx, userID, jobID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		// A session discovered past its deadline is finalized now, exactly
		// as an interactive Continue would, and a fresh one is created.
		if existing.Expired(c.now()) {
			if err := c.FinalizeExpired(ctx, existing.ID); err != nil && !errors.Is(err, ErrSessionNotActive) {
				return nil, err
			}
		} else {
			sessionID = existing.ID
			latest, err := c.store.LatestQuestion(ctx, existing.ID)
			if err != nil {
				return nil, err
			}
			if latest != nil {
				pairs, err := c.store.GetConversation(ctx, existing.ID)
				if err != nil {
					return nil, err
				}
				// All questions answered means grading is pending, not that
				// another question is owed.
				if len(pairs) > 0 && pairs[len(pairs)-1].Answered() {
					existing.Phase = models.PhaseEvaluation
					latest = nil
				}
			}
			slog.Info("Resuming active interview session", "session_id", existing.ID, "user_id", userID, "job_id", jobID)
			return &StartResult{Session: existing, Question: latest, Resumed: true}, nil
		}
	}

	job, err := c.jobs.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, fmt.Errorf("job %s not found or inactive", jobID)
	}
	application, err := c.jobs.GetApplication(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if application == nil {
		return nil, fmt.Errorf("application %s not found", applicationID)
	}
	if application.JobID != jobID || application.UserID != userID {
		return nil, fmt.Errorf("application %s does not match job %s and user %s", applicationID, jobID, userID)
	}

	session, err := c.sessions.CreateSession(ctx, job, application, userID)
	if err != nil {
		return nil, err
	}
	sessionID = session.ID
	if err := c.sessions.UpdatePhase(ctx, session.ID, models.PhaseQuestioning, nil); err != nil {
		return nil, err
	}
	session.Phase = models.PhaseQuestioning

	question, err := c.generateAndPersist(ctx, session, job, application, nil)
	if err != nil {
		c.sessions.HandleSessionError(ctx, session.ID, err)
		return nil, err
	}

	slog.Info("Interview session started", "session_id", session.ID, "job_id", jobID, "expires_at", session.ExpiresAt)
	return &StartResult{Session: session, Question: question}, nil
}

// Continue advances a session by one turn: persist the candidate's answer if
// one is due, enforce the violation threshold, handle the closing handshake
// and time budget, and otherwise produce the next question. endRequested is
// the candidate explicitly finishing early.
func (c *Conductor) Continue(ctx context.Context, sessionID, input string, endRequested bool) (result *TurnResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			panicErr := fmt.Errorf("panic during turn: %v", r)
			slog.Error("Recovered from panic in Continue", "session_id", sessionID, "panic", r)
			c.sessions.HandleSessionError(context.WithoutCancel(ctx), sessionID, panicErr)
			result, err = nil, panicErr
		}
	}()

	sctx, err := c.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	session := sctx.Session

	if !session.Status.Active() {
		return c.hydrate(ctx, &TurnResult{
			SessionID: sessionID,
			Status:    session.Status,
			Done:      true,
			Success:   session.Status == models.StatusCompleted,
			Message:   terminalMessage(session),
			Reason:    "session already finished",
		}, session), nil
	}

	now := c.now()
	if session.Expired(now) {
		return c.finishExpired(ctx, sctx, now)
	}

	job, application, err := c.loadJobContext(ctx, session)
	if err != nil {
		return nil, err
	}

	if endRequested {
		return c.finishCompleted(ctx, sctx, job, application, "candidate ended the interview")
	}

	input = strings.TrimSpace(input)
	history := repository.Messages(sctx.Conversation)
	decision := AnalyzeTurn(history, input != "")
	slog.Info("Turn analyzed", "session_id", sessionID, "action", string(decision.Action), "strip_input", decision.StripInput, "reason", decision.Reason)

	if decision.Action == ActionWaitForResponse {
		latest, err := c.store.LatestQuestion(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		return c.hydrate(ctx, &TurnResult{
			SessionID: sessionID,
			Status:    session.Status,
			Success:   true,
			Question:  latest,
			Reason:    decision.Reason,
		}, session), nil
	}

	var violation *ViolationScore
	if decision.Action == ActionSaveAndGenerate && !decision.StripInput {
		violation, err = c.saveResponse(ctx, session, job, input, now)
		if err != nil {
			return nil, err
		}
		history = append(history, models.Message{Speaker: models.SpeakerUser, Content: input, At: now})

		total, err := c.store.SessionViolationTotal(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		if total >= c.cfg.ViolationThreshold {
			return c.finishTerminated(ctx, sctx, total, violation)
		}
	}

	// The answer to the sign-off is the end of the interview, no matter what
	// it says. Without this, "yes, what does the team do?" would be fed back
	// to the question generator and the interview would never end.
	if lastAssistant := lastAssistantMessage(history); lastAssistant != nil && IsClosingMessage(lastAssistant.Content) {
		res, err := c.finishCompleted(ctx, sctx, job, application, "user_question_after_closing")
		if err != nil {
			return nil, err
		}
		res.Violation = violation
		return res, nil
	}

	if c.inClosingWindow(session, now) {
		question, err := c.persistClosing(ctx, session)
		if err != nil {
			return nil, err
		}
		slog.Info("Closing window reached, asking the sign-off question", "session_id", sessionID, "remaining", session.Remaining(now))
		return c.hydrate(ctx, &TurnResult{
			SessionID: sessionID,
			Status:    session.Status,
			Success:   true,
			Question:  question,
			Reason:    "time budget nearly exhausted",
			Violation: violation,
		}, session), nil
	}

	question, err := c.generateAndPersist(ctx, session, job, application, history)
	if err != nil {
		c.sessions.HandleSessionError(ctx, sessionID, err)
		return nil, err
	}
	return c.hydrate(ctx, &TurnResult{
		SessionID: sessionID,
		Status:    session.Status,
		Success:   true,
		Question:  question,
		Reason:    decision.Reason,
		Violation: violation,
	}, session), nil
}

// End finishes a session on explicit request, running the full evaluation
// sequence.
func (c *Conductor) End(ctx context.Context, sessionID string) (*TurnResult, error) {
	sctx, err := c.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !sctx.Session.Status.Active() {
		return c.hydrate(ctx, &TurnResult{
			SessionID: sessionID,
			Status:    sctx.Session.Status,
			Done:      true,
			Success:   sctx.Session.Status == models.StatusCompleted,
			Message:   terminalMessage(sctx.Session),
			Reason:    "session already finished",
		}, sctx.Session), nil
	}
	job, application, err := c.loadJobContext(ctx, sctx.Session)
	if err != nil {
		return nil, err
	}
	return c.finishCompleted(ctx, sctx, job, application, "end requested")
}

// Abandon terminates a session on explicit candidate cancellation without
// running the evaluator.
func (c *Conductor) Abandon(ctx context.Context, sessionID, reason string) error {
	if err := c.sessions.AbandonSession(ctx, sessionID, reason); err != nil {
		return err
	}
	c.updateApplicationStatus(ctx, sessionID)
	return nil
}

// FinalizeExpired runs the expiry sequence for a session whose deadline has
// passed. The sweeper calls this under its per-session lock; the interactive
// path reaches the same sequence through Continue.
func (c *Conductor) FinalizeExpired(ctx context.Context, sessionID string) error {
	sctx, err := c.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if !sctx.Session.Status.Active() {
		return ErrSessionNotActive
	}
	_, err = c.finishExpired(ctx, sctx, c.now())
	return err
}

func (c *Conductor) loadJobContext(ctx context.Context, session *models.InterviewSession) (*models.Job, *models.Application, error) {
	job, err := c.jobs.GetJob(ctx, session.JobID)
	if err != nil {
		return nil, nil, err
	}
	application, err := c.jobs.GetApplication(ctx, session.ApplicationID)
	if err != nil {
		return nil, nil, err
	}
	if job == nil || application == nil {
		return nil, nil, fmt.Errorf("job or application missing for session %s", session.ID)
	}
	return job, application, nil
}

// saveResponse scores and persists the candidate's answer against the most
// recent question, bumping the session to INPROGRESS and accumulating the
// violation total on the session row.
func (c *Conductor) saveResponse(ctx context.Context, session *models.InterviewSession, job *models.Job, input string, now time.Time) (*ViolationScore, error) {
	latest, err := c.store.LatestQuestion(ctx, session.ID)
	if err != nil {
		return nil, err
	}
	if latest == nil {
		return nil, fmt.Errorf("no question to answer in session %s", session.ID)
	}

	score := c.detector.Score(input, job.Description)
	response := &models.Response{
		QuestionID:     latest.ID,
		SessionID:      session.ID,
		Text:           input,
		AnsweredAt:     now,
		ProfanityCount: score.PerCategory[CategoryProfanity],
		SexualCount:    score.PerCategory[CategorySexual],
		PoliticalCount: score.PerCategory[CategoryPolitical],
		OffTopicCount:  score.PerCategory[CategoryOffTopic],
		ViolationTotal: score.Total,
	}
	if err := c.store.CreateResponse(ctx, response); err != nil {
		return nil, err
	}

	updated, err := c.store.TransitionSession(ctx, session.ID, func(s *models.InterviewSession) bool {
		if !s.Status.Active() {
			return false
		}
		s.Status = models.StatusInProgress
		s.ViolationScore += score.Total
		return true
	})
	if err != nil {
		return nil, err
	}
	if updated != nil {
		*session = *updated
	}

	if score.Total > 0 {
		slog.Warn("Violations detected in response", "session_id", session.ID, "total", score.Total, "risk_level", string(score.RiskLevel))
	}
	return &score, nil
}

func (c *Conductor) generateAndPersist(ctx context.Context, session *models.InterviewSession, job *models.Job, application *models.Application, history []models.Message) (*models.Question, error) {
	generated, err := c.generator.GenerateQuestion(ctx, job, application, history, job.Difficulty)
	if err != nil {
		return nil, fmt.Errorf("failed to generate question: %w", err)
	}
	question := &models.Question{
		SessionID:  session.ID,
		Text:       generated.Text,
		Type:       generated.Type,
		Difficulty: generated.Difficulty,
		FocusArea:  generated.FocusArea,
		Provider:   generated.Provider,
		Model:      generated.Model,
		Intent:     generated.Intent,
	}
	if err := c.store.AppendQuestion(ctx, question); err != nil {
		return nil, err
	}
	return question, nil
}

func (c *Conductor) persistClosing(ctx context.Context, session *models.InterviewSession) (*models.Question, error) {
	question := &models.Question{
		SessionID:  session.ID,
		Text:       ClosingMessage,
		Type:       models.QuestionClosing,
		Difficulty: "n/a",
		FocusArea:  "wrap-up",
		Intent:     "signal the end of the session and invite candidate questions",
	}
	if err := c.store.AppendQuestion(ctx, question); err != nil {
		return nil, err
	}
	return question, nil
}

// inClosingWindow reports whether the remaining budget is at or below the
// configured percentage of the total.
func (c *Conductor) inClosingWindow(session *models.InterviewSession, now time.Time) bool {
	threshold := session.TotalDuration() * time.Duration(c.cfg.ClosingThresholdPct) / 100
	return session.Remaining(now) <= threshold
}

// finishCompleted runs the normal end sequence: evaluation phase, transcript
// scoring (with a human-review fallback on evaluator failure), COMPLETED
// status and best-effort application status propagation.
func (c *Conductor) finishCompleted(ctx context.Context, sctx *SessionContext, job *models.Job, application *models.Application, reason string) (*TurnResult, error) {
	session := sctx.Session
	if err := c.sessions.UpdatePhase(ctx, session.ID, models.PhaseEvaluation, nil); err != nil {
		return nil, err
	}

	evaluation := c.evaluate(ctx, session.ID, job, application)
	if err := c.sessions.CompleteSession(ctx, session.ID, evaluation); err != nil {
		return nil, err
	}
	c.updateApplicationStatus(ctx, session.ID)

	slog.Info("Interview session completed", "session_id", session.ID, "overall_score", evaluation.OverallScore, "reason", reason)
	result := &TurnResult{
		SessionID:  session.ID,
		Status:     models.StatusCompleted,
		Done:       true,
		Success:    true,
		Message:    "Thank you for your time today. The interview is now complete and your responses have been submitted for review.",
		Reason:     reason,
		Evaluation: evaluation,
	}
	return c.hydrate(ctx, result, session), nil
}

// finishExpired runs the expiry sequence. The transcript is still evaluated:
// an interrupted interview is reviewed on whatever was answered.
func (c *Conductor) finishExpired(ctx context.Context, sctx *SessionContext, now time.Time) (*TurnResult, error) {
	session := sctx.Session
	if err := c.sessions.UpdatePhase(ctx, session.ID, models.PhaseEvaluation, nil); err != nil {
		return nil, err
	}

	job, application, err := c.loadJobContext(ctx, session)
	if err != nil {
		slog.Error("Failed to load job context for expired session, evaluating without it", "error", err, "session_id", session.ID)
	}

	evaluation := c.evaluate(ctx, session.ID, job, application)
	if err := c.sessions.ExpireSession(ctx, session.ID, evaluation); err != nil {
		return nil, err
	}
	c.updateApplicationStatus(ctx, session.ID)

	overBy := now.Sub(session.ExpiresAt).Round(time.Minute)
	minutes := int(overBy.Minutes())
	if minutes < 1 {
		minutes = 1
	}
	slog.Info("Interview session expired", "session_id", session.ID, "over_by", overBy)
	result := &TurnResult{
		SessionID:  session.ID,
		Status:     models.StatusExpired,
		Done:       true,
		Message:    fmt.Sprintf("This interview session expired %d minutes ago. Your answers up to that point have been submitted for review.", minutes),
		Reason:     "time budget exhausted",
		Evaluation: evaluation,
	}
	return c.hydrate(ctx, result, session), nil
}

// finishTerminated ends a session that crossed the violation threshold. The
// evaluator is deliberately not consulted: the verdict is a fixed zero-score
// strong_no, so a policy violation can never be argued back up by a strong
// transcript.
func (c *Conductor) finishTerminated(ctx context.Context, sctx *SessionContext, total int, violation *ViolationScore) (*TurnResult, error) {
	session := sctx.Session
	stats, err := c.store.GetSessionStats(ctx, session.ID)
	if err != nil {
		return nil, err
	}

	evaluation := &models.Evaluation{
		SessionID:          session.ID,
		OverallScore:       0,
		HireRecommendation: models.RecommendStrongNo,
		Feedback:           fmt.Sprintf("Interview terminated: the candidate's responses accumulated a violation score of %d, at or above the configured threshold of %d.", total, c.cfg.ViolationThreshold),
		QuestionsAsked:     stats.QuestionsAsked,
		QuestionsAnswered:  stats.QuestionsAnswered,
		CompletionRate:     stats.CompletionRate,
	}
	reason := fmt.Sprintf("violation threshold exceeded (%d >= %d)", total, c.cfg.ViolationThreshold)
	if err := c.sessions.TerminateSession(ctx, session.ID, evaluation, reason); err != nil {
		return nil, err
	}
	c.updateApplicationStatus(ctx, session.ID)

	slog.Warn("Interview session terminated for violations", "session_id", session.ID, "violation_total", total, "threshold", c.cfg.ViolationThreshold)
	result := &TurnResult{
		SessionID:  session.ID,
		Status:     models.StatusTerminated,
		Done:       true,
		Message:    "This interview has been ended because your responses did not meet our conduct guidelines. The session is now closed.",
		Reason:     reason,
		Violation:  violation,
		Evaluation: evaluation,
	}
	return c.hydrate(ctx, result, session), nil
}

// evaluate scores the transcript, falling back to a neutral needs-review
// evaluation when the evaluator fails. Completion must never block on the
// evaluator. The conversation is re-read so an answer persisted earlier in
// the same turn is part of what gets scored.
func (c *Conductor) evaluate(ctx context.Context, sessionID string, job *models.Job, application *models.Application) *models.Evaluation {
	pairs, err := c.store.GetConversation(ctx, sessionID)
	if err != nil {
		slog.Error("Failed to load conversation for evaluation", "error", err, "session_id", sessionID)
	}
	stats, err := c.store.GetSessionStats(ctx, sessionID)
	if err != nil {
		slog.Error("Failed to load stats for evaluation", "error", err, "session_id", sessionID)
		stats = &repository.SessionStats{}
	}
	history := repository.Messages(pairs)

	var result *EvaluationResult
	if job == nil || application == nil {
		// The job context can disappear mid-session (deactivated or soft
		// deleted). The evaluator needs it, so the fallback is stored instead
		// of feeding it nils.
		slog.Error("Job context unavailable, storing fallback evaluation", "session_id", sessionID)
	} else {
		result, err = c.evaluator.EvaluateTranscript(ctx, history, job, application)
		if err != nil {
			slog.Error("Transcript evaluation failed, storing fallback evaluation", "error", err, "session_id", sessionID)
			result = nil
		}
	}
	if result == nil {
		result = &EvaluationResult{
			OverallScore:       65,
			HireRecommendation: models.RecommendMaybe,
			Feedback:           "Automated evaluation was unavailable for this session; it needs human review.",
		}
	}

	return &models.Evaluation{
		SessionID:           sessionID,
		OverallScore:        result.OverallScore,
		TechnicalScore:      result.TechnicalScore,
		CommunicationScore:  result.CommunicationScore,
		ProblemSolvingScore: result.ProblemSolvingScore,
		CultureFitScore:     result.CultureFitScore,
		HireRecommendation:  result.HireRecommendation,
		Feedback:            result.Feedback,
		QuestionsAsked:      stats.QuestionsAsked,
		QuestionsAnswered:   stats.QuestionsAnswered,
		CompletionRate:      stats.CompletionRate,
	}
}

// updateApplicationStatus propagates the terminal outcome to the owning
// application. Best-effort only.
func (c *Conductor) updateApplicationStatus(ctx context.Context, sessionID string) {
	session, err := c.store.GetSession(ctx, sessionID)
	if err != nil || session == nil {
		slog.Error("Failed to load session for application status update", "error", err, "session_id", sessionID)
		return
	}
	if err := c.appStatus.UpdateApplicationStatus(ctx, session.ApplicationID, ApplicationStatusCompleted); err != nil {
		slog.Error("Failed to update application status", "error", err, "application_id", session.ApplicationID)
	}
}

// hydrate fills the metadata the caller displays alongside every result:
// remaining time, progress counts and the full conversation. Best-effort;
// the core result stands even if a metadata read fails.
func (c *Conductor) hydrate(ctx context.Context, result *TurnResult, session *models.InterviewSession) *TurnResult {
	if !result.Done {
		if remaining := session.Remaining(c.now()); remaining > 0 {
			result.RemainingSeconds = int(remaining.Seconds())
		}
	}
	if pairs, err := c.store.GetConversation(ctx, session.ID); err == nil {
		result.Conversation = pairs
	}
	if stats, err := c.store.GetSessionStats(ctx, session.ID); err == nil {
		result.Stats = stats
	}
	return result
}

func lastAssistantMessage(history []models.Message) *models.Message {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Speaker == models.SpeakerAssistant {
			return &history[i]
		}
	}
	return nil
}

func terminalMessage(session *models.InterviewSession) string {
	switch session.Status {
	case models.StatusCompleted:
		return "This interview is already complete."
	case models.StatusExpired:
		return "This interview session has expired."
	case models.StatusTerminated:
		return "This interview session has been closed."
	default:
		return "This interview session is no longer active."
	}
}
