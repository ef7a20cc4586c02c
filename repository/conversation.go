package repository

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/openhire/interview-engine/models"
)

// QAPair is one question with its optional response, in question_number
// order. The conversation of a session is the ordered list of its pairs.
type QAPair struct {
	Question models.Question `json:"question"`
	Response *models.Response `json:"response,omitempty"`
}

// Answered reports whether the pair's question has been answered.
func (p QAPair) Answered() bool {
	return p.Response != nil
}

// Messages flattens ordered Q/A pairs into the conversation transcript the
// turn analyzer and the question generator consume.
func Messages(pairs []QAPair) []models.Message {
	messages := make([]models.Message, 0, len(pairs)*2)
	for _, pair := range pairs {
		messages = append(messages, models.Message{
			Speaker: models.SpeakerAssistant,
			Content: pair.Question.Text,
			At:      pair.Question.CreatedAt,
		})
		if pair.Response != nil {
			messages = append(messages, models.Message{
				Speaker: models.SpeakerUser,
				Content: pair.Response.Text,
				At:      pair.Response.AnsweredAt,
			})
		}
	}
	return messages
}

// SessionStats summarizes conversation progress for a session.
type SessionStats struct {
	QuestionsAsked    int     `json:"questions_asked"`
	QuestionsAnswered int     `json:"questions_answered"`
	CompletionRate    float64 `json:"completion_rate"`
	ViolationTotal    int     `json:"violation_total"`
}

// GetConversation loads the full conversation for a session as ordered Q/A
// pairs with their responses populated.
func (s *InterviewStore) GetConversation(ctx context.Context, sessionID string) ([]QAPair, error) {
	var questions []models.Question
	err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("question_number").
		Preload("Response").
		Find(&questions).Error
	if err != nil {
		slog.Error("Failed to get conversation", "error", err, "session_id", sessionID)
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}

	pairs := make([]QAPair, 0, len(questions))
	for _, question := range questions {
		response := question.Response
		question.Response = nil
		pairs = append(pairs, QAPair{Question: question, Response: response})
	}
	return pairs, nil
}

// GetSessionStats returns progress statistics derived from the persisted
// conversation.
func (s *InterviewStore) GetSessionStats(ctx context.Context, sessionID string) (*SessionStats, error) {
	var stats SessionStats

	var asked int64
	if err := s.db.WithContext(ctx).Model(&models.Question{}).
		Where("session_id = ?", sessionID).
		Count(&asked).Error; err != nil {
		slog.Error("Failed to count questions", "error", err, "session_id", sessionID)
		return nil, fmt.Errorf("failed to count questions: %w", err)
	}

	var answered int64
	if err := s.db.WithContext(ctx).Model(&models.Response{}).
		Where("session_id = ?", sessionID).
		Count(&answered).Error; err != nil {
		slog.Error("Failed to count responses", "error", err, "session_id", sessionID)
		return nil, fmt.Errorf("failed to count responses: %w", err)
	}

	stats.QuestionsAsked = int(asked)
	stats.QuestionsAnswered = int(answered)
	if asked > 0 {
		stats.CompletionRate = float64(answered) / float64(asked)
	}

	total, err := s.SessionViolationTotal(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to sum violations: %w", err)
	}
	stats.ViolationTotal = total

	return &stats, nil
}
