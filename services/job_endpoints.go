package services

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/openhire/interview-engine/models"
	"github.com/openhire/interview-engine/repository"
)

// JobEndpoints exposes read-only job listings. Listing management is out of
// scope for the engine; these exist so candidates can see what they are
// interviewing for.
type JobEndpoints struct {
	repo *repository.InterviewStore
}

type GetJobsResponse struct {
	Jobs  []models.Job `json:"jobs"`
	Count int          `json:"count"`
}

func NewJobEndpoints(repo *repository.InterviewStore) *JobEndpoints {
	return &JobEndpoints{repo: repo}
}

func (e *JobEndpoints) RegisterRoutes(r chi.Router) {
	r.Route("/jobs", func(r chi.Router) {
		r.Get("/", e.GetJobsHandler)
		r.Get("/{id}", e.GetJobHandler)
	})
}

func (e *JobEndpoints) GetJobsHandler(w http.ResponseWriter, r *http.Request) {
	jobs, err := e.repo.ListJobs(r.Context())
	if err != nil {
		slog.Error("Failed to list jobs", "error", err)
		http.Error(w, "Failed to list jobs", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(GetJobsResponse{Jobs: jobs, Count: len(jobs)})
}

func (e *JobEndpoints) GetJobHandler(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")

	job, err := e.repo.GetJob(r.Context(), jobID)
	if err != nil {
		slog.Error("Failed to get job", "error", err, "job_id", jobID)
		http.Error(w, "Failed to get job", http.StatusInternalServerError)
		return
	}
	if job == nil {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(job)
}
