package preset

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mtben82-coder/voicebubble-backend/internal/llm"
)

// Action is one ad-hoc text transformation, a thin prompt-templated
// wrapper around the completion API. Wire values match what the mobile
// client sends.
type Action string

const (
	ActionRewrite          Action = "rewrite"
	ActionExpand           Action = "expand"
	ActionShorten          Action = "shorten"
	ActionMakeProfessional Action = "makeProfessional"
	ActionMakeCasual       Action = "makeCasual"
	ActionFixGrammar       Action = "fixGrammar"
	ActionMakeCreative     Action = "makeCreative"
	ActionMakePersuasive   Action = "makePersuasive"
	ActionSummarize        Action = "summarize"
	ActionTranslate        Action = "translate"
)

var transformPrompts = map[Action]string{
	ActionRewrite: `You are an elite writing assistant. Rewrite the given text to be clearer,
more engaging, and better structured while preserving the original
meaning and tone. Return ONLY the rewritten text, no explanations.`,

	ActionExpand: `You are an expert content developer. Expand the given text with relevant
details, examples, and context while maintaining the original style and
purpose. Comprehensive, not verbose. Return ONLY the expanded text.`,

	ActionShorten: `You are a master editor. Condense the given text to its essential
points, removing redundancy while keeping every piece of key
information. Return ONLY the shortened text.`,

	ActionMakeProfessional: `You are a business communication expert. Transform the given text into
professional, formal language suitable for business contexts, clear and
respectful. Return ONLY the professional version.`,

	ActionMakeCasual: `You are a conversational writing expert. Transform the given text into
casual, friendly language with contractions and natural phrasing,
keeping the core message intact. Return ONLY the casual version.`,

	ActionFixGrammar: `You are an elite grammar and style expert. Correct all grammatical
errors, punctuation, and sentence structure while preserving the
original voice and meaning. Return ONLY the corrected text.`,

	ActionMakeCreative: `You are a creative writing expert. Make the given text more
imaginative, vivid, and memorable while maintaining the core message.
Return ONLY the creative version.`,

	ActionMakePersuasive: `You are a master of persuasion. Make the given text more compelling
and convincing while maintaining credibility and authenticity. Return
ONLY the persuasive version.`,

	ActionSummarize: `You are an expert summarizer. Create a concise, well-structured summary
capturing all key points of the given text. Return ONLY the summary.`,

	ActionTranslate: `You are a professional translator. Translate the given text to the
target language, preserving meaning, tone, and style. Return ONLY the
translated text.`,
}

// ValidAction reports whether a is a known transformation.
func ValidAction(a Action) bool {
	_, ok := transformPrompts[a]
	return ok
}

// TransformMessages builds the chat messages for one transformation.
// docContext and targetLanguage are optional; targetLanguage only
// applies to the translate action.
func TransformMessages(action Action, text, docContext, targetLanguage string) ([]llm.Message, error) {
	sys, ok := transformPrompts[action]
	if !ok {
		return nil, fmt.Errorf("preset: unknown action %q", action)
	}

	var user strings.Builder
	fmt.Fprintf(&user, "Text to transform: %q", text)
	if ctx := strings.TrimSpace(docContext); ctx != "" {
		fmt.Fprintf(&user, "\n\nDocument context: %q", ctx)
	}
	if action == ActionTranslate && targetLanguage != "" {
		fmt.Fprintf(&user, "\n\nTarget language: %s", LanguageName(targetLanguage))
	}

	return []llm.Message{
		{Role: llm.RoleSystem, Content: sys},
		{Role: llm.RoleUser, Content: user.String()},
	}, nil
}

// TransformParams returns the sampling parameters for an action.
// Grammar fixing runs near-deterministic; everything else slightly
// above. Output budget scales with input length, capped at 4000.
func TransformParams(action Action, textLen int) llm.Params {
	temperature := float32(0.3)
	if action == ActionFixGrammar {
		temperature = 0.1
	}

	maxTokens := textLen * 3
	if maxTokens > 4000 {
		maxTokens = 4000
	}
	if maxTokens < 256 {
		maxTokens = 256
	}

	return llm.Params{Temperature: temperature, MaxTokens: maxTokens}
}

var languageNames = map[string]string{
	"en": "English", "es": "Spanish", "fr": "French", "de": "German",
	"it": "Italian", "pt": "Portuguese", "ru": "Russian", "ja": "Japanese",
	"ko": "Korean", "zh": "Chinese", "ar": "Arabic", "hi": "Hindi",
	"fa": "Farsi (Persian)", "tr": "Turkish", "vi": "Vietnamese",
	"nl": "Dutch", "pl": "Polish", "uk": "Ukrainian", "he": "Hebrew",
}

// LanguageName maps an ISO 639-1 code to the human name used in
// prompts, defaulting to English for unknown codes.
func LanguageName(code string) string {
	if name, ok := languageNames[code]; ok {
		return name
	}
	return "English"
}

// Language is one supported translation target.
type Language struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Languages lists the supported translation targets, sorted by code.
func Languages() []Language {
	out := make([]Language, 0, len(languageNames))
	for code, name := range languageNames {
		out = append(out, Language{Code: code, Name: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}
