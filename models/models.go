package models

// This file serves as the central export point for all database models
// Import this package to access all model types

// All models are automatically exported from their respective files:
// - InterviewSession, SessionStatus, SessionPhase from session.go
// - Question, Response from question.go
// - Evaluation, HireRecommendation from evaluation.go
// - Job, Application from job.go

// Database schema overview:
// 1. jobs - Listings interviews are conducted for; source of the session time budget
// 2. applications - A candidate's application to a job, with the profile snapshot
// 3. interview_sessions - One timed interview attempt per candidate per job
// 4. questions - Generated questions, ordered by question_number within a session
// 5. responses - At most one answer per question, with per-category violation counts
// 6. evaluations - Exactly one final scoring per terminal session
