package service

import (
	"strings"

	"github.com/soft-kiwi/converse/internal/domain"
)

const systemPreamble = "You are a helpful assistant in a web chat. " +
	"Answer the user's latest message, using the conversation so far for context. " +
	"Keep responses concise and conversational."

// BuildPrompt assembles the flat instruction string sent to the model: fixed
// preamble, prior turns in chronological order, optional shared file text,
// then the new user turn with a trailing assistant cue. Pure concatenation,
// no truncation beyond whatever cap the caller applied to history.
func BuildPrompt(history []domain.Message, userText, fileText string) string {
	var b strings.Builder
	b.WriteString(systemPreamble)
	b.WriteString("\n\n")

	for _, m := range history {
		switch m.Role {
		case domain.RoleAssistant:
			b.WriteString("Assistant: ")
		default:
			b.WriteString("User: ")
		}
		b.WriteString(m.Content)
		b.WriteString("\n")
	}

	if fileText != "" {
		b.WriteString("\nThe user has shared a file with the following content:\n")
		b.WriteString(fileText)
		b.WriteString("\n")
	}

	b.WriteString("User: ")
	b.WriteString(userText)
	b.WriteString("\nAssistant:")
	return b.String()
}
