package services

import (
	"context"
	"log/slog"

	"github.com/openhire/interview-engine/models"
	"github.com/openhire/interview-engine/repository"
)

// DatabaseSeeder handles database seeding operations
type DatabaseSeeder struct {
	repo *repository.InterviewStore
}

// NewDatabaseSeeder creates a new database seeder
func NewDatabaseSeeder(repo *repository.InterviewStore) *DatabaseSeeder {
	return &DatabaseSeeder{repo: repo}
}

// SeedDatabase seeds the database with sample job listings (idempotent)
func (s *DatabaseSeeder) SeedDatabase() error {
	ctx := context.Background()

	existing, err := s.repo.ListJobs(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		slog.Info("Database seeding already completed, skipping", "jobs", len(existing))
		return nil
	}

	jobs := []models.Job{
		{
			Title:                    "Backend Engineer",
			Description:              "Design and operate Go services, PostgreSQL schemas and Redis-backed infrastructure for a high-traffic hiring platform.",
			Difficulty:               "medium",
			InterviewDurationMinutes: 60,
			IsActive:                 true,
		},
		{
			Title:                    "Senior Platform Engineer",
			Description:              "Own distributed systems concerns: queueing, locking, scheduling and observability across a multi-region deployment.",
			Difficulty:               "hard",
			InterviewDurationMinutes: 90,
			IsActive:                 true,
		},
		{
			Title:                    "Junior Software Developer",
			Description:              "Work with senior engineers on well-scoped features across our web stack, with an emphasis on learning and code quality.",
			Difficulty:               "easy",
			InterviewDurationMinutes: 30,
			IsActive:                 true,
		},
	}

	for i := range jobs {
		if err := s.repo.CreateJob(ctx, &jobs[i]); err != nil {
			slog.Error("Failed to seed job", "title", jobs[i].Title, "error", err)
			continue
		}
		slog.Info("Seeded job", "job_id", jobs[i].ID, "title", jobs[i].Title)
	}

	slog.Info("Database seeding completed", "jobs", len(jobs))
	return nil
}
