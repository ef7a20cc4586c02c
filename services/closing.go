package services

import "strings"

// ClosingMessage is the single canonical sign-off question. It is persisted
// as a question of type closing, and the firewall below recognizes candidate
// replies to it. Message and detector phrases live in this file on purpose:
// they must change together or the firewall starts missing its own sign-off.
const ClosingMessage = "We're approaching the end of our scheduled time, so this will be our final question. " +
	"Thank you for your thoughtful answers today. " +
	"Before we wrap up, do you have any questions for me about the role or the team?"

// closingPhrases are substrings of ClosingMessage; matching any of them in
// the most recent assistant message identifies it as the sign-off.
var closingPhrases = []string{
	"end of our scheduled time",
	"this will be our final question",
	"do you have any questions for me",
}

// IsClosingMessage reports whether text is the canonical closing question.
func IsClosingMessage(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range closingPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}
