package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/openhire/interview-engine/models"
	"github.com/openhire/interview-engine/repository"
)

// fakeStore is an in-memory Store, JobLookup and ApplicationStatusUpdater
// used by the engine tests.
type fakeStore struct {
	mu           sync.Mutex
	sessions     map[string]*models.InterviewSession
	questions    map[string][]*models.Question
	responses    map[string]*models.Response // by question ID
	evaluations  map[string]*models.Evaluation
	jobs         map[string]*models.Job
	applications map[string]*models.Application
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		sessions:     make(map[string]*models.InterviewSession),
		questions:    make(map[string][]*models.Question),
		responses:    make(map[string]*models.Response),
		evaluations:  make(map[string]*models.Evaluation),
		jobs:         make(map[string]*models.Job),
		applications: make(map[string]*models.Application),
	}
}

func (f *fakeStore) addJob(job *models.Job) *models.Job {
	f.mu.Lock()
	defer f.mu.Unlock()
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	f.jobs[job.ID] = job
	return job
}

func (f *fakeStore) addApplication(app *models.Application) *models.Application {
	f.mu.Lock()
	defer f.mu.Unlock()
	if app.ID == "" {
		app.ID = uuid.New().String()
	}
	f.applications[app.ID] = app
	return app
}

func (f *fakeStore) CreateSession(ctx context.Context, session *models.InterviewSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if session.ID == "" {
		session.ID = uuid.New().String()
	}
	clone := *session
	f.sessions[session.ID] = &clone
	return nil
}

func (f *fakeStore) GetSession(ctx context.Context, sessionID string) (*models.InterviewSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	clone := *session
	return &clone, nil
}

func (f *fakeStore) FindActiveSession(ctx context.Context, userID, jobID string) (*models.InterviewSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, session := range f.sessions {
		if session.UserID == userID && session.JobID == jobID && session.Status.Active() {
			clone := *session
			return &clone, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) FindExpiredActive(ctx context.Context, now time.Time) ([]models.InterviewSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var expired []models.InterviewSession
	for _, session := range f.sessions {
		if session.Status.Active() && now.After(session.ExpiresAt) {
			expired = append(expired, *session)
		}
	}
	return expired, nil
}

func (f *fakeStore) UpdateSession(ctx context.Context, session *models.InterviewSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	clone := *session
	f.sessions[session.ID] = &clone
	return nil
}

func (f *fakeStore) TransitionSession(ctx context.Context, sessionID string, mutate func(*models.InterviewSession) bool) (*models.InterviewSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	clone := *session
	if mutate(&clone) {
		f.sessions[sessionID] = &clone
	}
	result := clone
	return &result, nil
}

func (f *fakeStore) AppendQuestion(ctx context.Context, question *models.Question) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if question.ID == "" {
		question.ID = uuid.New().String()
	}
	question.QuestionNumber = len(f.questions[question.SessionID]) + 1
	clone := *question
	f.questions[question.SessionID] = append(f.questions[question.SessionID], &clone)
	return nil
}

func (f *fakeStore) GetQuestions(ctx context.Context, sessionID string) ([]models.Question, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var questions []models.Question
	for _, q := range f.questions[sessionID] {
		questions = append(questions, *q)
	}
	return questions, nil
}

func (f *fakeStore) LatestQuestion(ctx context.Context, sessionID string) (*models.Question, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	list := f.questions[sessionID]
	if len(list) == 0 {
		return nil, nil
	}
	clone := *list[len(list)-1]
	return &clone, nil
}

func (f *fakeStore) CreateResponse(ctx context.Context, response *models.Response) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.responses[response.QuestionID]; exists {
		return fmt.Errorf("question %s already answered", response.QuestionID)
	}
	if response.ID == "" {
		response.ID = uuid.New().String()
	}
	clone := *response
	f.responses[response.QuestionID] = &clone
	return nil
}

func (f *fakeStore) SessionViolationTotal(ctx context.Context, sessionID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, q := range f.questions[sessionID] {
		if response, ok := f.responses[q.ID]; ok {
			total += response.ViolationTotal
		}
	}
	return total, nil
}

func (f *fakeStore) CreateEvaluation(ctx context.Context, evaluation *models.Evaluation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.evaluations[evaluation.SessionID]; exists {
		return fmt.Errorf("session %s already evaluated", evaluation.SessionID)
	}
	if evaluation.ID == "" {
		evaluation.ID = uuid.New().String()
	}
	clone := *evaluation
	f.evaluations[evaluation.SessionID] = &clone
	return nil
}

func (f *fakeStore) GetEvaluation(ctx context.Context, sessionID string) (*models.Evaluation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	evaluation, ok := f.evaluations[sessionID]
	if !ok {
		return nil, nil
	}
	clone := *evaluation
	return &clone, nil
}

func (f *fakeStore) GetConversation(ctx context.Context, sessionID string) ([]repository.QAPair, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var pairs []repository.QAPair
	for _, q := range f.questions[sessionID] {
		pair := repository.QAPair{Question: *q}
		if response, ok := f.responses[q.ID]; ok {
			clone := *response
			pair.Response = &clone
		}
		pairs = append(pairs, pair)
	}
	return pairs, nil
}

func (f *fakeStore) GetSessionStats(ctx context.Context, sessionID string) (*repository.SessionStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stats := &repository.SessionStats{}
	for _, q := range f.questions[sessionID] {
		stats.QuestionsAsked++
		if response, ok := f.responses[q.ID]; ok {
			stats.QuestionsAnswered++
			stats.ViolationTotal += response.ViolationTotal
		}
	}
	if stats.QuestionsAsked > 0 {
		stats.CompletionRate = float64(stats.QuestionsAnswered) / float64(stats.QuestionsAsked) * 100
	}
	return stats, nil
}

func (f *fakeStore) GetJob(ctx context.Context, jobID string) (*models.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[jobID]
	if !ok || !job.IsActive {
		return nil, nil
	}
	clone := *job
	return &clone, nil
}

func (f *fakeStore) GetApplication(ctx context.Context, applicationID string) (*models.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	app, ok := f.applications[applicationID]
	if !ok {
		return nil, nil
	}
	clone := *app
	return &clone, nil
}

func (f *fakeStore) UpdateApplicationStatus(ctx context.Context, applicationID, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	app, ok := f.applications[applicationID]
	if !ok {
		return fmt.Errorf("application %s not found", applicationID)
	}
	app.Status = status
	return nil
}

// fakeGenerator returns numbered questions and counts its calls.
type fakeGenerator struct {
	mu       sync.Mutex
	calls    int
	err      error
	panicMsg string
}

func (g *fakeGenerator) GenerateQuestion(ctx context.Context, job *models.Job, application *models.Application, history []models.Message, difficulty string) (*GeneratedQuestion, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.panicMsg != "" {
		panic(g.panicMsg)
	}
	if g.err != nil {
		return nil, g.err
	}
	g.calls++
	questionType := models.QuestionTechnical
	if len(history) == 0 {
		questionType = models.QuestionOpener
	}
	return &GeneratedQuestion{
		Text:       fmt.Sprintf("Question %d", g.calls),
		Type:       questionType,
		Difficulty: difficulty,
		Provider:   "fake",
		Model:      "fake-model",
	}, nil
}

// fakeEvaluator returns a fixed result or error.
type fakeEvaluator struct {
	result *EvaluationResult
	err    error
	calls  int
}

func (e *fakeEvaluator) EvaluateTranscript(ctx context.Context, history []models.Message, job *models.Job, application *models.Application) (*EvaluationResult, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	if e.result != nil {
		return e.result, nil
	}
	return &EvaluationResult{
		OverallScore:        80,
		TechnicalScore:      20,
		CommunicationScore:  20,
		ProblemSolvingScore: 20,
		CultureFitScore:     20,
		HireRecommendation:  models.RecommendYes,
		Feedback:            "Solid interview.",
	}, nil
}

// fakeLocker implements Locker with an in-process map so sweeper tests can
// race two sweepers without Redis.
type fakeLocker struct {
	mu       sync.Mutex
	held     map[string]string
	acquires int
	releases int
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{held: make(map[string]string)}
}

func (l *fakeLocker) Acquire(ctx context.Context, sessionID string) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[sessionID]; ok {
		return "", false, nil
	}
	token := uuid.New().String()
	l.held[sessionID] = token
	l.acquires++
	return token, true, nil
}

func (l *fakeLocker) Release(ctx context.Context, sessionID, token string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[sessionID] == token {
		delete(l.held, sessionID)
		l.releases++
	}
}

func (l *fakeLocker) heldCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.held)
}

// newTestConductor wires a conductor over the fakes with a controllable
// clock.
func newTestConductor(store *fakeStore, generator *fakeGenerator, evaluator *fakeEvaluator, cfg InterviewConfig) *Conductor {
	sessions := NewSessionManager(store, cfg)
	detector := NewViolationDetector(cfg)
	return NewConductor(sessions, store, store, generator, evaluator, store, detector, cfg)
}

func seedJobAndApplication(store *fakeStore, durationMinutes int) (*models.Job, *models.Application) {
	job := store.addJob(&models.Job{
		Title:                    "Backend Engineer",
		Description:              "Build Go services for our hiring platform.",
		Difficulty:               "medium",
		InterviewDurationMinutes: durationMinutes,
		IsActive:                 true,
	})
	app := store.addApplication(&models.Application{
		JobID:         job.ID,
		UserID:        "user-1",
		Status:        "SUBMITTED",
		CandidateName: "Alex Doe",
	})
	return job, app
}
