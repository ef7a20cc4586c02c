package services

import (
	"testing"
	"time"

	"github.com/openhire/interview-engine/models"
)

func msg(speaker models.Speaker, content string) models.Message {
	return models.Message{Speaker: speaker, Content: content, At: time.Now()}
}

func TestAnalyzeTurn(t *testing.T) {
	tests := []struct {
		name       string
		history    []models.Message
		hasInput   bool
		wantTurn   models.Speaker
		wantAction TurnAction
		wantStrip  bool
	}{
		{
			name:       "empty conversation generates the first question",
			history:    nil,
			hasInput:   false,
			wantTurn:   models.SpeakerAssistant,
			wantAction: ActionGenerateQuestion,
		},
		{
			name:       "empty conversation ignores stray input",
			history:    nil,
			hasInput:   true,
			wantTurn:   models.SpeakerAssistant,
			wantAction: ActionGenerateQuestion,
		},
		{
			name: "question pending with new input saves and continues",
			history: []models.Message{
				msg(models.SpeakerAssistant, "Tell me about yourself."),
			},
			hasInput:   true,
			wantTurn:   models.SpeakerUser,
			wantAction: ActionSaveAndGenerate,
		},
		{
			name: "question pending without input waits",
			history: []models.Message{
				msg(models.SpeakerAssistant, "Tell me about yourself."),
			},
			hasInput:   false,
			wantTurn:   models.SpeakerUser,
			wantAction: ActionWaitForResponse,
		},
		{
			name: "answer already persisted strips duplicate input",
			history: []models.Message{
				msg(models.SpeakerAssistant, "Tell me about yourself."),
				msg(models.SpeakerUser, "I have five years of Go experience."),
			},
			hasInput:   true,
			wantTurn:   models.SpeakerAssistant,
			wantAction: ActionGenerateQuestion,
			wantStrip:  true,
		},
		{
			name: "answer persisted without input generates the next question",
			history: []models.Message{
				msg(models.SpeakerAssistant, "Tell me about yourself."),
				msg(models.SpeakerUser, "I have five years of Go experience."),
			},
			hasInput:   false,
			wantTurn:   models.SpeakerAssistant,
			wantAction: ActionGenerateQuestion,
		},
		{
			name: "unknown speaker recovers with question generation",
			history: []models.Message{
				msg(models.Speaker("system"), "???"),
			},
			hasInput:   false,
			wantTurn:   models.SpeakerAssistant,
			wantAction: ActionGenerateQuestion,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision := AnalyzeTurn(tt.history, tt.hasInput)

			if decision.WhoseTurn != tt.wantTurn {
				t.Errorf("WhoseTurn = %q, expected %q", decision.WhoseTurn, tt.wantTurn)
			}
			if decision.Action != tt.wantAction {
				t.Errorf("Action = %q, expected %q", decision.Action, tt.wantAction)
			}
			if decision.StripInput != tt.wantStrip {
				t.Errorf("StripInput = %v, expected %v", decision.StripInput, tt.wantStrip)
			}
			if decision.Reason == "" {
				t.Error("expected a non-empty reason")
			}
		})
	}
}

func TestAnalyzeTurnIsDeterministic(t *testing.T) {
	history := []models.Message{
		msg(models.SpeakerAssistant, "Question one"),
		msg(models.SpeakerUser, "Answer one"),
	}

	first := AnalyzeTurn(history, true)
	for i := 0; i < 10; i++ {
		if got := AnalyzeTurn(history, true); got != first {
			t.Fatalf("AnalyzeTurn not deterministic: %+v vs %+v", got, first)
		}
	}
}
