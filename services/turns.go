package services

import (
	"log/slog"

	"github.com/openhire/interview-engine/models"
)

// TurnAction is what the conductor should do with the current request.
type TurnAction string

const (
	ActionGenerateQuestion TurnAction = "generate_question"
	ActionSaveAndGenerate  TurnAction = "save_and_generate"
	ActionWaitForResponse  TurnAction = "wait_for_response"
)

// TurnDecision is the result of analyzing whose turn it is. StripInput set
// means the incoming text duplicates an already-persisted answer and must not
// be saved again.
type TurnDecision struct {
	WhoseTurn  models.Speaker `json:"whose_turn"`
	Action     TurnAction     `json:"action"`
	StripInput bool           `json:"strip_input"`
	Reason     string         `json:"reason"`
}

// AnalyzeTurn decides whose turn it is from the persisted conversation alone.
// The decisive signal is the speaker of the last persisted message, never
// client-side state; that is what makes a retried network request unable to
// double-count an answer.
func AnalyzeTurn(history []models.Message, hasInput bool) TurnDecision {
	if len(history) == 0 {
		return TurnDecision{
			WhoseTurn: models.SpeakerAssistant,
			Action:    ActionGenerateQuestion,
			Reason:    "conversation is empty, generate the first question",
		}
	}

	last := history[len(history)-1]
	switch last.Speaker {
	case models.SpeakerAssistant:
		if hasInput {
			return TurnDecision{
				WhoseTurn: models.SpeakerUser,
				Action:    ActionSaveAndGenerate,
				Reason:    "last message is a question and new input arrived, save the answer and continue",
			}
		}
		return TurnDecision{
			WhoseTurn: models.SpeakerUser,
			Action:    ActionWaitForResponse,
			Reason:    "last message is a question, waiting for the candidate",
		}
	case models.SpeakerUser:
		if hasInput {
			return TurnDecision{
				WhoseTurn:  models.SpeakerAssistant,
				Action:     ActionGenerateQuestion,
				StripInput: true,
				Reason:     "last message is already an answer, treating new input as a duplicate resend",
			}
		}
		return TurnDecision{
			WhoseTurn: models.SpeakerAssistant,
			Action:    ActionGenerateQuestion,
			Reason:    "last message is an answer, generate the next question",
		}
	default:
		// Data-integrity anomaly: recover rather than fail the interview.
		slog.Warn("Unknown speaker in conversation history, defaulting to question generation", "speaker", string(last.Speaker))
		return TurnDecision{
			WhoseTurn: models.SpeakerAssistant,
			Action:    ActionGenerateQuestion,
			Reason:    "unrecognized last speaker, recovering by generating a question",
		}
	}
}
