package preset

import (
	"strings"

	"github.com/mtben82-coder/voicebubble-backend/internal/llm"
)

// systemPrompt is the shared writing-engine instruction prepended to
// every rewrite. Input text usually comes from speech-to-text, so the
// model must repair transcription noise before applying the preset's
// style, without ever changing the user's meaning.
const systemPrompt = `You are the VoiceBubble Smart Writing Engine.

Your job:
1. Understand exactly what the user tried to say, even when the
   speech-to-text result is messy (wrong words, repetitions, filler
   sounds, broken grammar).
2. Clean and repair the transcription, keeping only what is clearly
   implied.
3. Rewrite it according to the preset rules below.

You NEVER change the user's meaning.
You NEVER invent new meaning.
You NEVER add facts or opinions the user didn't imply.

Return ONLY the rewritten text, no explanations.`

// BuildMessages assembles the chat messages for a rewrite: shared
// system prompt + preset behaviour, the preset's worked examples as
// few-shot turns, then the user's text. A non-empty language adds an
// output-language instruction.
func BuildMessages(p Preset, text, language string) []llm.Message {
	var sys strings.Builder
	sys.WriteString(systemPrompt)
	sys.WriteString("\n\nPRESET RULES:\n")
	sys.WriteString(strings.TrimSpace(p.Behaviour))

	if language != "" && language != "en" {
		sys.WriteString("\n\nOUTPUT LANGUAGE: ")
		sys.WriteString(LanguageName(language))
		sys.WriteString(". The rewritten text must be in this language.")
	}

	messages := make([]llm.Message, 0, 2+2*len(p.Examples))
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: sys.String()})

	for _, ex := range p.Examples {
		messages = append(messages,
			llm.Message{Role: llm.RoleUser, Content: ex.Input},
			llm.Message{Role: llm.RoleAssistant, Content: ex.Output},
		)
	}

	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: text})
	return messages
}
