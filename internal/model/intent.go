package model

import "strings"

// Intent is the coarse category assigned to an inbound message.
type Intent string

const (
	IntentAssignment Intent = "ASSIGNMENT"
	IntentNote       Intent = "NOTE"
	IntentQuery      Intent = "QUERY"
	IntentGeneral    Intent = "GENERAL"
)

// ParseIntent maps a model-produced label onto an Intent. Anything it does
// not recognise is GENERAL.
func ParseIntent(s string) Intent {
	switch Intent(strings.ToUpper(strings.TrimSpace(s))) {
	case IntentAssignment:
		return IntentAssignment
	case IntentNote:
		return IntentNote
	case IntentQuery:
		return IntentQuery
	default:
		return IntentGeneral
	}
}

// IntentResult is the classifier output.
type IntentResult struct {
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// AssignmentFields is the extraction result for ASSIGNMENT messages.
type AssignmentFields struct {
	ClassName   *string `json:"class_name"`
	DueDate     *string `json:"due_date"`
	Title       string  `json:"title"`
	Description *string `json:"description"`
	Priority    string  `json:"priority"`
}

// NoteFields is the extraction result for NOTE messages.
type NoteFields struct {
	ClassName *string  `json:"class_name"`
	Content   string   `json:"content"`
	NoteType  string   `json:"note_type"`
	Tags      []string `json:"tags"`
}

// Query types produced by query understanding.
const (
	QueryAssignmentsDue = "assignments_due"
	QueryNotesSearch    = "notes_search"
	QueryClassInfo      = "class_info"
	QueryGeneral        = "general"
)

// QueryAnalysis is the structured reading of a QUERY message.
type QueryAnalysis struct {
	QueryType   string   `json:"query_type"`
	TimeFilter  *string  `json:"time_filter"`
	ClassFilter *string  `json:"class_filter"`
	SearchTerms []string `json:"search_terms"`
}

// Outcome is the uniform result of processing one message. Message is
// always populated so the sender has something to reply with.
type Outcome struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	Error        string `json:"error,omitempty"`
	Intent       Intent `json:"intent"`
	AssignmentID int64  `json:"assignment_id,omitempty"`
	NoteID       int64  `json:"note_id,omitempty"`
}
