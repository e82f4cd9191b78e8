// Package pipeline classifies inbound messages and routes them to the
// assignment, note, query, or general handling branch.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/nhle/uni-helper/internal/llm"
	"github.com/nhle/uni-helper/internal/model"
	"github.com/nhle/uni-helper/internal/notes"
	"github.com/nhle/uni-helper/internal/store"
)

// Token budgets per stage.
const (
	intentMaxTokens     = 200
	extractionMaxTokens = 500
	queryMaxTokens      = 300
	responseMaxTokens   = 800

	responseTemperature = 0.7
	noteSearchLimit     = 10
)

// Error codes reported in Outcome.Error.
const (
	ErrNoDueDate      = "no_due_date"
	ErrInvalidDueDate = "invalid_due_date"
	ErrStorage        = "storage_error"
)

// Generator is the subset of llm.Generator the pipeline uses.
type Generator interface {
	Generate(ctx context.Context, system, user string, maxTokens int, temperature float64) (string, error)
	GenerateJSON(ctx context.Context, system, user string, maxTokens int) llm.Result
}

// Store is the persistence the pipeline writes to and queries.
type Store interface {
	GetOrCreateClass(ctx context.Context, name string) (*model.Class, error)
	GetClasses(ctx context.Context) ([]model.Class, error)
	CreateAssignment(ctx context.Context, a model.Assignment) (int64, error)
	UpcomingAssignments(ctx context.Context, filter store.AssignmentFilter) ([]model.Assignment, error)
	CreateNote(ctx context.Context, n model.Note) (int64, error)
	SearchNotes(ctx context.Context, filter store.NoteFilter) ([]model.Note, error)
	SetNoteFile(ctx context.Context, id int64, path string) error
	CreateAttachment(ctx context.Context, a model.AttachmentRecord) (int64, error)
}

// NoteWriter saves a formatted copy of a note and returns its path.
type NoteWriter interface {
	Write(e notes.Entry) (string, error)
}

// Pipeline turns a parsed message into an Outcome.
type Pipeline struct {
	gen           Generator
	store         Store
	notes         NoteWriter
	log           zerolog.Logger
	reminderHours int
	now           func() time.Time
}

// New creates a Pipeline. reminderHours is how long before the due date
// the reminder fires; values below one mean 24.
func New(gen Generator, st Store, reminderHours int, logger zerolog.Logger) *Pipeline {
	if reminderHours < 1 {
		reminderHours = 24
	}
	return &Pipeline{
		gen:           gen,
		store:         st,
		log:           logger.With().Str("module", "pipeline").Logger(),
		reminderHours: reminderHours,
		now:           time.Now,
	}
}

// SetNoteWriter enables formatted note files. A nil writer disables them.
func (p *Pipeline) SetNoteWriter(w NoteWriter) {
	p.notes = w
}

// Process classifies msg and dispatches it. The returned Outcome always
// carries a reply message.
func (p *Pipeline) Process(ctx context.Context, msg model.ParsedMessage) model.Outcome {
	logger := p.log.With().Str("message_id", msg.MessageID).Logger()

	ir := p.Classify(ctx, msg.Subject, msg.Body)
	intent := model.ParseIntent(ir.Intent)
	logger.Info().Str("intent", string(intent)).Float64("confidence", ir.Confidence).
		Str("reasoning", ir.Reasoning).Msg("Classified message")

	var out model.Outcome
	switch intent {
	case model.IntentAssignment:
		out = p.processAssignment(ctx, msg)
	case model.IntentNote:
		out = p.processNote(ctx, msg)
	case model.IntentQuery:
		out = p.processQuery(ctx, msg)
	default:
		out = model.Outcome{Success: true, Message: GeneralResponse}
	}
	out.Intent = intent

	if !out.Success {
		logger.Warn().Str("error", out.Error).Msg("Message not handled")
	}
	return out
}

// Classify asks the model for the message intent. Backend failures fall
// back to GENERAL.
func (p *Pipeline) Classify(ctx context.Context, subject, body string) model.IntentResult {
	fallback := model.IntentResult{
		Intent:     string(model.IntentGeneral),
		Confidence: 0.5,
		Reasoning:  "classification failed",
	}

	res := p.gen.GenerateJSON(ctx, SystemPrompt, formatIntentPrompt(subject, body), intentMaxTokens)
	if res.Status == llm.StatusBackendFailed {
		p.log.Error().Err(res.Err).Msg("Intent classification failed")
		return fallback
	}

	f, err := res.Fields()
	if err != nil || f.String("intent") == "" {
		p.log.Error().Err(err).Msg("Intent classification returned unusable data")
		return fallback
	}

	ir := model.IntentResult{
		Intent:     f.String("intent"),
		Confidence: f.Float("confidence", 0.5),
		Reasoning:  f.String("reasoning"),
	}
	if ir.Confidence < 0 {
		ir.Confidence = 0
	} else if ir.Confidence > 1 {
		ir.Confidence = 1
	}
	return ir
}

func (p *Pipeline) extractAssignment(ctx context.Context, subject, body string) model.AssignmentFields {
	prompt := formatAssignmentPrompt(subject, body, p.now().Format("2006-01-02T15:04:05"))
	res := p.gen.GenerateJSON(ctx, SystemPrompt, prompt, extractionMaxTokens)

	f, err := res.Fields()
	if res.Status == llm.StatusBackendFailed || err != nil {
		p.log.Error().Err(res.Err).Msg("Assignment extraction failed")
		title := subject
		if title == "" {
			title = "Untitled Assignment"
		}
		desc := truncate(body, 200)
		return model.AssignmentFields{Title: title, Description: &desc, Priority: "medium"}
	}
	return model.AssignmentFields{
		ClassName:   f.OptString("class_name"),
		DueDate:     f.OptString("due_date"),
		Title:       f.String("title"),
		Description: f.OptString("description"),
		Priority:    f.String("priority"),
	}
}

func (p *Pipeline) processAssignment(ctx context.Context, msg model.ParsedMessage) model.Outcome {
	f := p.extractAssignment(ctx, msg.Subject, msg.Body)

	if f.DueDate == nil || strings.TrimSpace(*f.DueDate) == "" {
		return model.Outcome{
			Error: ErrNoDueDate,
			Message: ErrorMessage(
				"I couldn't find a due date in your email.",
				"Please include the deadline (e.g., 'due October 20th at 11:59 PM').",
			),
		}
	}

	due, err := ParseDueDate(*f.DueDate, time.Local)
	if err != nil {
		return model.Outcome{
			Error: ErrInvalidDueDate,
			Message: ErrorMessage(
				"I couldn't parse the due date.",
				"Please use a clear format like 'October 20, 2024 at 11:59 PM'.",
			),
		}
	}

	className := "General"
	if f.ClassName != nil && strings.TrimSpace(*f.ClassName) != "" {
		className = strings.TrimSpace(*f.ClassName)
	}
	title := strings.TrimSpace(f.Title)
	if title == "" {
		title = msg.Subject
	}
	if title == "" {
		title = "Untitled Assignment"
	}

	class, err := p.store.GetOrCreateClass(ctx, className)
	if err != nil {
		return p.storageFailure(err)
	}
	id, err := p.store.CreateAssignment(ctx, model.Assignment{
		ClassID:       class.ID,
		Title:         title,
		Description:   f.Description,
		DueDate:       due,
		ReminderHours: p.reminderHours,
	})
	if err != nil {
		return p.storageFailure(err)
	}

	reminder := due.Add(-time.Duration(p.reminderHours) * time.Hour)
	additional := ""
	if strings.EqualFold(f.Priority, "high") {
		additional = highPriorityNote
	}

	return model.Outcome{
		Success: true,
		Message: fmt.Sprintf(assignmentConfirmation,
			class.Name, title,
			due.Format(DueDateLayout),
			reminder.Format(ReminderDateLayout),
			additional,
		),
		AssignmentID: id,
	}
}

func (p *Pipeline) processNote(ctx context.Context, msg model.ParsedMessage) model.Outcome {
	res := p.gen.GenerateJSON(ctx, SystemPrompt, formatNotePrompt(msg.Subject, msg.Body), extractionMaxTokens)

	f := p.noteFields(res)

	content := strings.TrimSpace(f.Content)
	if content == "" {
		content = msg.Body
	}
	noteType := f.NoteType
	if noteType == "" {
		noteType = "general"
	}
	tags := f.Tags
	if tags == nil {
		tags = []string{}
	}
	className := "General"
	if f.ClassName != nil && strings.TrimSpace(*f.ClassName) != "" {
		className = strings.TrimSpace(*f.ClassName)
	}

	class, err := p.store.GetOrCreateClass(ctx, className)
	if err != nil {
		return p.storageFailure(err)
	}

	var receivedAt string
	if !msg.Date.IsZero() {
		receivedAt = msg.Date.Format(time.RFC3339)
	}

	noteID, err := p.store.CreateNote(ctx, model.Note{
		ClassID:  class.ID,
		Content:  content,
		NoteType: noteType,
		Metadata: map[string]any{
			"note_type":         noteType,
			"tags":              tags,
			"source":            "email",
			"subject":           msg.Subject,
			"attachments_count": len(msg.Attachments),
			"email_id":          msg.MessageID,
			"received_at":       receivedAt,
		},
	})
	if err != nil {
		return p.storageFailure(err)
	}

	var filed []notes.Attachment
	for _, a := range msg.Attachments {
		id := noteID
		_, err := p.store.CreateAttachment(ctx, model.AttachmentRecord{
			EmailID:  msg.MessageID,
			Filename: a.Filename,
			Filepath: a.Path,
			NoteID:   &id,
		})
		if err != nil {
			p.log.Error().Err(err).Str("filename", a.Filename).Msg("Recording attachment failed")
			continue
		}
		filed = append(filed, notes.Attachment{Filename: a.Filename, Path: a.Path})
	}

	var extra []string
	if len(filed) > 0 {
		extra = append(extra, fmt.Sprintf("📎 Filed %d attachment(s) with this note.", len(filed)))
	}
	if path := p.writeNoteFile(ctx, notes.Entry{
		NoteID:      noteID,
		ClassName:   class.Name,
		Subject:     msg.Subject,
		Content:     content,
		Body:        msg.Body,
		Source:      "email",
		Tags:        tags,
		EmailDate:   msg.Date,
		Attachments: filed,
	}); path != "" {
		extra = append(extra, fmt.Sprintf("📂 Saved to notes folder as %s.", filepath.Base(path)))
	}

	preview := truncate(content, 100)
	if len([]rune(content)) > 100 {
		preview += "..."
	}

	return model.Outcome{
		Success: true,
		Message: fmt.Sprintf(noteConfirmation, class.Name, preview, extraLines(extra)),
		NoteID:  noteID,
	}
}

// writeNoteFile saves the formatted copy and records its path. Failures
// are logged and leave the note without a file.
func (p *Pipeline) writeNoteFile(ctx context.Context, e notes.Entry) string {
	if p.notes == nil {
		return ""
	}
	path, err := p.notes.Write(e)
	if err != nil {
		p.log.Warn().Err(err).Int64("note_id", e.NoteID).Msg("Writing note file failed")
		return ""
	}
	if err := p.store.SetNoteFile(ctx, e.NoteID, path); err != nil {
		p.log.Warn().Err(err).Int64("note_id", e.NoteID).Msg("Recording note file failed")
	}
	return path
}

func extraLines(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return "\n" + strings.Join(lines, "\n") + "\n"
}

func (p *Pipeline) noteFields(res llm.Result) model.NoteFields {
	f, err := res.Fields()
	if res.Status == llm.StatusBackendFailed || err != nil {
		p.log.Error().Err(res.Err).Msg("Note extraction failed")
		return model.NoteFields{Tags: []string{}}
	}
	return model.NoteFields{
		ClassName: f.OptString("class_name"),
		Content:   f.String("content"),
		NoteType:  f.String("note_type"),
		Tags:      f.Strings("tags"),
	}
}

func (p *Pipeline) storageFailure(err error) model.Outcome {
	p.log.Error().Err(err).Msg("Persisting message data failed")
	return model.Outcome{
		Error: ErrStorage,
		Message: ErrorMessage(
			"I couldn't save that to your records.",
			"Please try sending it again in a few minutes.",
		),
	}
}

// ParseDueDate accepts the ISO-8601 forms the extractor produces. Naive
// values are read in loc; a bare date means 23:59 that day.
func ParseDueDate(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}

	layouts := []string{
		"2006-01-02T15:04:05",
		"2006-01-02T15:04:05.999999",
		"2006-01-02T15:04",
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
	}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}

	if t, err := time.ParseInLocation("2006-01-02", s, loc); err == nil {
		return t.Add(23*time.Hour + 59*time.Minute), nil
	}

	return time.Time{}, fmt.Errorf("unrecognised due date %q", s)
}

// truncate shortens s to at most n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
