package preset

import (
	"github.com/mtben82-coder/voicebubble-backend/internal/llm"
)

// smartActionsPrompt drives the action extraction endpoint: the model
// reads raw voice input and returns every actionable item as JSON.
const smartActionsPrompt = `You are a SMART ACTION EXTRACTION ENGINE.

Analyze the voice input and extract ALL actionable items:

CALENDAR EVENTS: meetings, calls, appointments with a specific time.
Extract title, date/time, duration, location, attendees.

EMAILS: "email X", "send to Y", "write to Z". Extract recipient,
subject (inferred from context), body.

TASKS/TODOS: "need to", "have to", "must", "remember to". Extract task,
due date if mentioned, priority ("urgent"/"ASAP" = high).

NOTES: information to remember, lists, ideas without a time.

MESSAGES: "tell the team", "post in Slack". Extract platform,
recipient, content.

RULES:
1. Extract EVERY actionable item (one input can contain several).
2. Resolve relative dates ("tomorrow") to concrete dates.
3. Infer missing details sensibly (subject line from email body).
4. Include all context needed to carry out the action.

Return ONLY valid JSON (no markdown, no explanation):
{
  "actions": [
    {
      "type": "calendar|email|todo|note|message",
      "title": "Short title",
      "description": "Full details (optional)",
      "datetime": "ISO 8601 datetime (if applicable)",
      "location": "Place (if applicable)",
      "attendees": ["person1", "person2"],
      "recipient": "email recipient (if applicable)",
      "subject": "email subject (if applicable)",
      "body": "email/message body (if applicable)",
      "priority": "high|normal|low (if applicable)",
      "platform": "Slack|Discord|WhatsApp (if mentioned)",
      "formatted": "Formatted text ready for export"
    }
  ]
}`

// SmartActionMessages builds the extraction request. A non-auto
// language pins the output language of formatted text.
func SmartActionMessages(text, language string) []llm.Message {
	sys := smartActionsPrompt
	if language != "" && language != "auto" {
		name := LanguageName(language)
		sys += "\n\nOUTPUT LANGUAGE: " + name + ". All formatted text must be in " + name + "."
	}

	return []llm.Message{
		{Role: llm.RoleSystem, Content: sys},
		{Role: llm.RoleUser, Content: text},
	}
}
