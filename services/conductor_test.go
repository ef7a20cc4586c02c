package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/openhire/interview-engine/models"
)

func TestConductorStartCreatesSessionAndFirstQuestion(t *testing.T) {
	store := newFakeStore()
	generator := &fakeGenerator{}
	conductor := newTestConductor(store, generator, &fakeEvaluator{}, testInterviewConfig())
	job, app := seedJobAndApplication(store, 60)

	result, err := conductor.Start(context.Background(), "user-1", job.ID, app.ID)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if result.Resumed {
		t.Error("expected a fresh session, got resumed")
	}
	if result.Question == nil || result.Question.Text != "Question 1" {
		t.Fatalf("expected first question, got %+v", result.Question)
	}
	if result.Question.Type != models.QuestionOpener {
		t.Errorf("first question type = %q, expected opener", result.Question.Type)
	}

	session, _ := store.GetSession(context.Background(), result.Session.ID)
	if session.Status != models.StatusStarted {
		t.Errorf("status = %q, expected STARTED", session.Status)
	}
	if session.Phase != models.PhaseQuestioning {
		t.Errorf("phase = %q, expected QUESTIONING", session.Phase)
	}
	wantExpiry := session.StartedAt.Add(60 * time.Minute)
	if !session.ExpiresAt.Equal(wantExpiry) {
		t.Errorf("expires_at = %v, expected %v", session.ExpiresAt, wantExpiry)
	}
}

func TestConductorStartResumesActiveSession(t *testing.T) {
	store := newFakeStore()
	generator := &fakeGenerator{}
	conductor := newTestConductor(store, generator, &fakeEvaluator{}, testInterviewConfig())
	job, app := seedJobAndApplication(store, 60)

	first, err := conductor.Start(context.Background(), "user-1", job.ID, app.ID)
	if err != nil {
		t.Fatalf("first Start failed: %v", err)
	}
	second, err := conductor.Start(context.Background(), "user-1", job.ID, app.ID)
	if err != nil {
		t.Fatalf("second Start failed: %v", err)
	}

	if !second.Resumed {
		t.Error("expected second Start to resume")
	}
	if second.Session.ID != first.Session.ID {
		t.Errorf("resumed session %s, expected %s", second.Session.ID, first.Session.ID)
	}
	if second.Question == nil || second.Question.ID != first.Question.ID {
		t.Error("expected the pending question on resume")
	}
	if generator.calls != 1 {
		t.Errorf("generator called %d times, expected 1", generator.calls)
	}
	if len(store.sessions) != 1 {
		t.Errorf("found %d sessions, expected 1", len(store.sessions))
	}
}

func TestConductorStartFinalizesExpiredSessionAndCreatesFresh(t *testing.T) {
	store := newFakeStore()
	conductor := newTestConductor(store, &fakeGenerator{}, &fakeEvaluator{}, testInterviewConfig())
	job, app := seedJobAndApplication(store, 60)

	first, err := conductor.Start(context.Background(), "user-1", job.ID, app.ID)
	if err != nil {
		t.Fatalf("first Start failed: %v", err)
	}

	conductor.now = func() time.Time {
		return first.Session.ExpiresAt.Add(10 * time.Minute)
	}

	second, err := conductor.Start(context.Background(), "user-1", job.ID, app.ID)
	if err != nil {
		t.Fatalf("second Start failed: %v", err)
	}
	if second.Resumed {
		t.Error("an expired session must not be resumed")
	}
	if second.Session.ID == first.Session.ID {
		t.Error("expected a new session id")
	}

	old, _ := store.GetSession(context.Background(), first.Session.ID)
	if old.Status != models.StatusExpired {
		t.Errorf("old session status = %q, expected EXPIRED", old.Status)
	}
	if evaluation, _ := store.GetEvaluation(context.Background(), first.Session.ID); evaluation == nil {
		t.Error("expired session should have been evaluated on finalization")
	}
}

func TestConductorStartReportsEvaluationPhaseWhenAllAnswered(t *testing.T) {
	store := newFakeStore()
	conductor := newTestConductor(store, &fakeGenerator{}, &fakeEvaluator{}, testInterviewConfig())
	job, app := seedJobAndApplication(store, 60)

	started, err := conductor.Start(context.Background(), "user-1", job.ID, app.ID)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := store.CreateResponse(context.Background(), &models.Response{
		QuestionID: started.Question.ID,
		SessionID:  started.Session.ID,
		Text:       "I led the migration to event-driven ingestion.",
		AnsweredAt: time.Now(),
	}); err != nil {
		t.Fatalf("failed to seed response: %v", err)
	}

	resumed, err := conductor.Start(context.Background(), "user-1", job.ID, app.ID)
	if err != nil {
		t.Fatalf("resuming Start failed: %v", err)
	}
	if !resumed.Resumed {
		t.Fatal("expected resumption")
	}
	if resumed.Question != nil {
		t.Errorf("expected no pending question, got %+v", resumed.Question)
	}
	if resumed.Session.Phase != models.PhaseEvaluation {
		t.Errorf("phase = %q, expected EVALUATION when every question is answered", resumed.Session.Phase)
	}
}

func TestConductorContinueRoundTrip(t *testing.T) {
	store := newFakeStore()
	generator := &fakeGenerator{}
	conductor := newTestConductor(store, generator, &fakeEvaluator{}, testInterviewConfig())
	job, app := seedJobAndApplication(store, 60)

	started, err := conductor.Start(context.Background(), "user-1", job.ID, app.ID)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	sessionID := started.Session.ID

	answers := []string{
		"I spent five years building Go services.",
		"I would shard the queue by tenant.",
		"I profile before optimizing.",
	}
	for i, answer := range answers {
		result, err := conductor.Continue(context.Background(), sessionID, answer, false)
		if err != nil {
			t.Fatalf("Continue %d failed: %v", i+1, err)
		}
		if result.Done {
			t.Fatalf("Continue %d unexpectedly finished the session", i+1)
		}
		if result.Question == nil {
			t.Fatalf("Continue %d returned no question", i+1)
		}
	}

	pairs, _ := store.GetConversation(context.Background(), sessionID)
	if len(pairs) != 4 {
		t.Fatalf("found %d questions, expected 4", len(pairs))
	}
	for i, pair := range pairs {
		if pair.Question.QuestionNumber != i+1 {
			t.Errorf("question %d has number %d", i, pair.Question.QuestionNumber)
		}
		if i < len(answers) {
			if pair.Response == nil {
				t.Errorf("question %d has no response", i+1)
			} else if pair.Response.Text != answers[i] {
				t.Errorf("question %d response = %q, expected %q", i+1, pair.Response.Text, answers[i])
			}
		} else if pair.Response != nil {
			t.Errorf("question %d should be pending", i+1)
		}
	}

	session, _ := store.GetSession(context.Background(), sessionID)
	if session.Status != models.StatusInProgress {
		t.Errorf("status = %q, expected INPROGRESS", session.Status)
	}
}

func TestConductorContinueWaitsWithoutInput(t *testing.T) {
	store := newFakeStore()
	generator := &fakeGenerator{}
	conductor := newTestConductor(store, generator, &fakeEvaluator{}, testInterviewConfig())
	job, app := seedJobAndApplication(store, 60)

	started, _ := conductor.Start(context.Background(), "user-1", job.ID, app.ID)

	result, err := conductor.Continue(context.Background(), started.Session.ID, "", false)
	if err != nil {
		t.Fatalf("Continue failed: %v", err)
	}
	if result.Question == nil || result.Question.ID != started.Question.ID {
		t.Error("expected the pending question to be returned")
	}
	if generator.calls != 1 {
		t.Errorf("generator called %d times, expected 1", generator.calls)
	}
}

func TestConductorContinueSuppressesDuplicateResend(t *testing.T) {
	store := newFakeStore()
	generator := &fakeGenerator{}
	conductor := newTestConductor(store, generator, &fakeEvaluator{}, testInterviewConfig())
	job, app := seedJobAndApplication(store, 60)

	started, _ := conductor.Start(context.Background(), "user-1", job.ID, app.ID)
	sessionID := started.Session.ID

	// Simulate a retried request whose answer was already persisted but
	// whose next question never reached the client.
	answer := "I have five years of Go experience."
	if err := store.CreateResponse(context.Background(), &models.Response{
		QuestionID: started.Question.ID,
		SessionID:  sessionID,
		Text:       answer,
		AnsweredAt: time.Now(),
	}); err != nil {
		t.Fatalf("failed to seed response: %v", err)
	}

	result, err := conductor.Continue(context.Background(), sessionID, answer, false)
	if err != nil {
		t.Fatalf("Continue failed: %v", err)
	}
	if result.Question == nil {
		t.Fatal("expected a new question")
	}

	stats, _ := store.GetSessionStats(context.Background(), sessionID)
	if stats.QuestionsAnswered != 1 {
		t.Errorf("answers = %d, expected 1 (duplicate must not be saved twice)", stats.QuestionsAnswered)
	}
	if stats.QuestionsAsked != 2 {
		t.Errorf("questions = %d, expected 2", stats.QuestionsAsked)
	}
}

func TestConductorTerminatesAtViolationThreshold(t *testing.T) {
	store := newFakeStore()
	evaluator := &fakeEvaluator{}
	conductor := newTestConductor(store, &fakeGenerator{}, evaluator, testInterviewConfig())
	job, app := seedJobAndApplication(store, 60)

	started, _ := conductor.Start(context.Background(), "user-1", job.ID, app.ID)
	sessionID := started.Session.ID

	// One profanity hit is weighted 2, below the threshold of 3.
	result, err := conductor.Continue(context.Background(), sessionID, "That damn outage taught me monitoring.", false)
	if err != nil {
		t.Fatalf("first Continue failed: %v", err)
	}
	if result.Done {
		t.Fatal("session terminated below the threshold")
	}

	// Second hit brings the accumulated total to 4.
	result, err = conductor.Continue(context.Background(), sessionID, "Damn right I fixed it.", false)
	if err != nil {
		t.Fatalf("second Continue failed: %v", err)
	}
	if !result.Done || result.Status != models.StatusTerminated {
		t.Fatalf("expected termination, got %+v", result)
	}

	session, _ := store.GetSession(context.Background(), sessionID)
	if session.Status != models.StatusTerminated {
		t.Errorf("status = %q, expected TERMINATED", session.Status)
	}

	evaluation, _ := store.GetEvaluation(context.Background(), sessionID)
	if evaluation == nil {
		t.Fatal("expected a violation evaluation")
	}
	if evaluation.OverallScore != 0 {
		t.Errorf("overall score = %d, expected 0", evaluation.OverallScore)
	}
	if evaluation.HireRecommendation != models.RecommendStrongNo {
		t.Errorf("recommendation = %q, expected strong_no", evaluation.HireRecommendation)
	}
	if evaluator.calls != 0 {
		t.Error("transcript evaluator must not run for violation terminations")
	}

	application, _ := store.GetApplication(context.Background(), app.ID)
	if application.Status != ApplicationStatusCompleted {
		t.Errorf("application status = %q, expected %q", application.Status, ApplicationStatusCompleted)
	}
}

func TestConductorClosingSequence(t *testing.T) {
	store := newFakeStore()
	evaluator := &fakeEvaluator{}
	conductor := newTestConductor(store, &fakeGenerator{}, evaluator, testInterviewConfig())
	job, app := seedJobAndApplication(store, 60)

	started, _ := conductor.Start(context.Background(), "user-1", job.ID, app.ID)
	sessionID := started.Session.ID

	// Pin the clock inside the final 10% of the budget.
	conductor.now = func() time.Time {
		return started.Session.ExpiresAt.Add(-5 * time.Minute)
	}

	result, err := conductor.Continue(context.Background(), sessionID, "My last project was a scheduler.", false)
	if err != nil {
		t.Fatalf("Continue failed: %v", err)
	}
	if result.Done {
		t.Fatal("closing question should not finish the session yet")
	}
	if result.Question == nil || result.Question.Type != models.QuestionClosing {
		t.Fatalf("expected the closing question, got %+v", result.Question)
	}
	if result.Question.Text != ClosingMessage {
		t.Error("closing question must use the canonical closing message")
	}

	// Whatever the candidate replies to the sign-off ends the interview,
	// even if it reads like a question.
	final, err := conductor.Continue(context.Background(), sessionID, "Yes, what does the team ship next quarter?", false)
	if err != nil {
		t.Fatalf("final Continue failed: %v", err)
	}
	if !final.Done || final.Status != models.StatusCompleted {
		t.Fatalf("expected completion, got %+v", final)
	}

	evaluation, _ := store.GetEvaluation(context.Background(), sessionID)
	if evaluation == nil {
		t.Fatal("expected an evaluation")
	}
	if evaluation.OverallScore != 80 {
		t.Errorf("overall score = %d, expected 80", evaluation.OverallScore)
	}
	if evaluation.QuestionsAsked != 2 || evaluation.QuestionsAnswered != 2 {
		t.Errorf("stats = %d/%d, expected 2/2", evaluation.QuestionsAnswered, evaluation.QuestionsAsked)
	}

	application, _ := store.GetApplication(context.Background(), app.ID)
	if application.Status != ApplicationStatusCompleted {
		t.Errorf("application status = %q, expected %q", application.Status, ApplicationStatusCompleted)
	}
}

func TestConductorExpiredSessionFinalizedOnInteraction(t *testing.T) {
	store := newFakeStore()
	conductor := newTestConductor(store, &fakeGenerator{}, &fakeEvaluator{}, testInterviewConfig())
	job, app := seedJobAndApplication(store, 60)

	started, _ := conductor.Start(context.Background(), "user-1", job.ID, app.ID)
	sessionID := started.Session.ID

	conductor.now = func() time.Time {
		return started.Session.ExpiresAt.Add(7 * time.Minute)
	}

	result, err := conductor.Continue(context.Background(), sessionID, "Am I too late?", false)
	if err != nil {
		t.Fatalf("Continue failed: %v", err)
	}
	if !result.Done || result.Status != models.StatusExpired {
		t.Fatalf("expected expiry, got %+v", result)
	}
	if !strings.Contains(result.Message, "expired 7 minutes ago") {
		t.Errorf("message = %q, expected it to state how long ago it expired", result.Message)
	}

	session, _ := store.GetSession(context.Background(), sessionID)
	if session.Status != models.StatusExpired {
		t.Errorf("status = %q, expected EXPIRED", session.Status)
	}
	if evaluation, _ := store.GetEvaluation(context.Background(), sessionID); evaluation == nil {
		t.Error("expired session should still be evaluated")
	}

	// The late answer must not be persisted.
	stats, _ := store.GetSessionStats(context.Background(), sessionID)
	if stats.QuestionsAnswered != 0 {
		t.Errorf("answers = %d, expected 0", stats.QuestionsAnswered)
	}
}

func TestConductorEndRequestCompletesSession(t *testing.T) {
	store := newFakeStore()
	conductor := newTestConductor(store, &fakeGenerator{}, &fakeEvaluator{}, testInterviewConfig())
	job, app := seedJobAndApplication(store, 60)

	started, _ := conductor.Start(context.Background(), "user-1", job.ID, app.ID)

	result, err := conductor.Continue(context.Background(), started.Session.ID, "", true)
	if err != nil {
		t.Fatalf("Continue failed: %v", err)
	}
	if !result.Done || result.Status != models.StatusCompleted {
		t.Fatalf("expected completion, got %+v", result)
	}
}

func TestConductorEvaluatorFailureFallsBack(t *testing.T) {
	store := newFakeStore()
	evaluator := &fakeEvaluator{err: errors.New("model unavailable")}
	conductor := newTestConductor(store, &fakeGenerator{}, evaluator, testInterviewConfig())
	job, app := seedJobAndApplication(store, 60)

	started, _ := conductor.Start(context.Background(), "user-1", job.ID, app.ID)

	result, err := conductor.End(context.Background(), started.Session.ID)
	if err != nil {
		t.Fatalf("End failed: %v", err)
	}
	if !result.Done || result.Status != models.StatusCompleted {
		t.Fatalf("expected completion despite evaluator failure, got %+v", result)
	}

	evaluation, _ := store.GetEvaluation(context.Background(), started.Session.ID)
	if evaluation == nil {
		t.Fatal("expected a fallback evaluation")
	}
	if evaluation.OverallScore != 65 {
		t.Errorf("fallback score = %d, expected 65", evaluation.OverallScore)
	}
	if !strings.Contains(evaluation.Feedback, "human review") {
		t.Errorf("fallback feedback = %q, expected a human review flag", evaluation.Feedback)
	}
}

func TestFinalizeExpiredWithMissingJobStoresFallback(t *testing.T) {
	store := newFakeStore()
	evaluator := &fakeEvaluator{}
	conductor := newTestConductor(store, &fakeGenerator{}, evaluator, testInterviewConfig())
	job, app := seedJobAndApplication(store, 60)

	started, err := conductor.Start(context.Background(), "user-1", job.ID, app.ID)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// The job is deactivated mid-session, so the lookup comes back empty
	// when the sweeper finalizes the expired session.
	store.mu.Lock()
	store.jobs[job.ID].IsActive = false
	store.mu.Unlock()
	conductor.now = func() time.Time {
		return started.Session.ExpiresAt.Add(2 * time.Minute)
	}

	if err := conductor.FinalizeExpired(context.Background(), started.Session.ID); err != nil {
		t.Fatalf("FinalizeExpired failed: %v", err)
	}

	if evaluator.calls != 0 {
		t.Error("evaluator must not be consulted without job context")
	}

	session, _ := store.GetSession(context.Background(), started.Session.ID)
	if session.Status != models.StatusExpired {
		t.Errorf("status = %q, expected EXPIRED", session.Status)
	}
	evaluation, _ := store.GetEvaluation(context.Background(), started.Session.ID)
	if evaluation == nil {
		t.Fatal("expected a fallback evaluation")
	}
	if evaluation.OverallScore != 65 {
		t.Errorf("fallback score = %d, expected 65", evaluation.OverallScore)
	}
	if !strings.Contains(evaluation.Feedback, "human review") {
		t.Errorf("fallback feedback = %q, expected a human review flag", evaluation.Feedback)
	}
}

func TestConductorStartRecoversFromPanic(t *testing.T) {
	store := newFakeStore()
	generator := &fakeGenerator{panicMsg: "generator exploded"}
	conductor := newTestConductor(store, generator, &fakeEvaluator{}, testInterviewConfig())
	job, app := seedJobAndApplication(store, 60)

	result, err := conductor.Start(context.Background(), "user-1", job.ID, app.ID)
	if err == nil {
		t.Fatal("expected an error from the recovered panic")
	}
	if result != nil {
		t.Errorf("expected a nil result, got %+v", result)
	}
	if !strings.Contains(err.Error(), "generator exploded") {
		t.Errorf("error = %q, expected it to carry the panic message", err)
	}

	// The half-created session records the failure instead of dangling
	// silently.
	session, _ := store.FindActiveSession(context.Background(), "user-1", job.ID)
	if session == nil {
		t.Fatal("expected the created session to survive for retry")
	}
	if !strings.Contains(session.Metadata["last_error"], "generator exploded") {
		t.Errorf("last_error = %q, expected the panic message", session.Metadata["last_error"])
	}
}

func TestConductorRejectsInteractionAfterTerminal(t *testing.T) {
	store := newFakeStore()
	conductor := newTestConductor(store, &fakeGenerator{}, &fakeEvaluator{}, testInterviewConfig())
	job, app := seedJobAndApplication(store, 60)

	started, _ := conductor.Start(context.Background(), "user-1", job.ID, app.ID)
	if _, err := conductor.End(context.Background(), started.Session.ID); err != nil {
		t.Fatalf("End failed: %v", err)
	}

	result, err := conductor.Continue(context.Background(), started.Session.ID, "One more thing!", false)
	if err != nil {
		t.Fatalf("Continue on finished session errored: %v", err)
	}
	if !result.Done {
		t.Fatal("expected a terminal result")
	}

	stats, _ := store.GetSessionStats(context.Background(), started.Session.ID)
	if stats.QuestionsAnswered != 0 {
		t.Errorf("answers = %d, expected 0 after completion", stats.QuestionsAnswered)
	}

	// A finished session can be started fresh for the same job.
	again, err := conductor.Start(context.Background(), "user-1", job.ID, app.ID)
	if err != nil {
		t.Fatalf("Start after completion failed: %v", err)
	}
	if again.Resumed {
		t.Error("completed session must not be resumed")
	}
	if again.Session.ID == started.Session.ID {
		t.Error("expected a new session id")
	}
}
