package pipeline

import "fmt"

// SystemPrompt is the assistant persona shared by every generation call.
const SystemPrompt = `You are Jarvis, a concise, professional, and witty AI assistant for a university student.

Responsibilities:
- Organize notes/assignments, track deadlines/reminders, answer queries fast.
- Ask for clarification if details are missing; confirm when tasks are logged.

Style:
- Address the user as "sir" once per message.
- Keep replies brief, prefer bullets, use emojis sparingly (📚 📝 📅 ⏰).
- Always sign off with "- Jarvis".
`

const intentPrompt = `Classify the email intent as NOTE, ASSIGNMENT, QUERY, or GENERAL.

Subject: %s
Body: %s

Return JSON:
{
  "intent": "NOTE|ASSIGNMENT|QUERY|GENERAL",
  "confidence": 0.0-1.0,
  "reasoning": "brief explanation"
}`

const assignmentPrompt = `Extract assignment details.

Subject: %s
Body: %s
Current date: %s

Return JSON:
{
  "class_name": "string or null",
  "due_date": "YYYY-MM-DDTHH:MM:SS or null (if date only, set 23:59:00)",
  "title": "brief title",
  "description": "summary or null",
  "priority": "high|medium|low"
}`

const notePrompt = `Extract note details.

Subject: %s
Body: %s

Return JSON:
{
  "class_name": "string or null",
  "content": "clean summary",
  "note_type": "concept|definition|example|general",
  "tags": ["tag1", "tag2", "tag3"]
}`

const queryPrompt = `Analyze the query.

Query: %s

Return JSON:
{
  "query_type": "assignments_due|notes_search|class_info|general",
  "time_filter": "today|tomorrow|this_week|next_week|all|null",
  "class_filter": "class name or null",
  "search_terms": ["term1", "term2"]
}`

const queryResponsePrompt = `Respond as Jarvis.

Original Query: %s
Retrieved Data: %s

Guidelines: concise, bullet-first, one "sir", light emojis (📚 📝 📅 ⏰), sign "- Jarvis", mention if no data and suggest next steps.
`

const assignmentConfirmation = `Assignment logged, sir.

📚 %s - %s
📅 Due: %s
⏰ Reminder set for %s

%s

- Jarvis
`

const noteConfirmation = `Noted under %s, sir.

📝 %s

Filed in your knowledge base for future reference.
%s
- Jarvis
`

const errorResponse = `I encountered an issue processing your request, sir.

❌ %s

%s

- Jarvis
`

// GeneralResponse is sent for messages that need no extraction.
const GeneralResponse = `Acknowledged, sir.

I've received your message. If you need me to:
- Save an assignment: Include the due date
- Save notes: Share the content you'd like filed
- Query information: Ask me what you'd like to know

How may I assist you?

- Jarvis
`

const highPriorityNote = "⚠️  This appears to be high priority. I recommend starting soon."

// Date layouts used in replies.
const (
	DueDateLayout      = "January 02, 2006 at 03:04 PM"
	ReminderDateLayout = "January 02 at 03:04 PM"
)

func formatIntentPrompt(subject, body string) string {
	return fmt.Sprintf(intentPrompt, subject, body)
}

func formatAssignmentPrompt(subject, body, currentDate string) string {
	return fmt.Sprintf(assignmentPrompt, subject, body, currentDate)
}

func formatNotePrompt(subject, body string) string {
	return fmt.Sprintf(notePrompt, subject, body)
}

func formatQueryPrompt(query string) string {
	return fmt.Sprintf(queryPrompt, query)
}

func formatQueryResponsePrompt(query, data string) string {
	return fmt.Sprintf(queryResponsePrompt, query, data)
}

// ErrorMessage renders the user-facing failure reply.
func ErrorMessage(problem, suggestion string) string {
	return fmt.Sprintf(errorResponse, problem, suggestion)
}
