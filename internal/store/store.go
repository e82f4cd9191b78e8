package store

import (
	"context"
	"time"

	"github.com/nhle/uni-helper/internal/model"
)

// AssignmentFilter narrows assignment lookups to a window starting now.
type AssignmentFilter struct {
	Within    time.Duration // lookahead from now; zero means 30 days
	ClassName *string       // case-insensitive class match, nil for all
}

// NoteFilter controls note searches.
type NoteFilter struct {
	Query     string  // substring match on content, empty for all
	ClassName *string // case-insensitive class match, nil for all
	Limit     int     // zero means 10
}

// Store defines the persistence interface for processed-message dedup,
// classes, assignments, notes, and saved attachments.
type Store interface {
	// === Processed messages ===

	IsProcessed(ctx context.Context, messageID string) (bool, error)
	MarkProcessed(ctx context.Context, messageID, subject string) error

	// === Classes ===

	GetOrCreateClass(ctx context.Context, name string) (*model.Class, error)
	GetClasses(ctx context.Context) ([]model.Class, error)

	// === Assignments ===

	CreateAssignment(ctx context.Context, a model.Assignment) (int64, error)
	UpcomingAssignments(ctx context.Context, filter AssignmentFilter) ([]model.Assignment, error)
	DueForReminder(ctx context.Context, within time.Duration) ([]model.Assignment, error)
	MarkReminded(ctx context.Context, id int64) error
	CompleteAssignment(ctx context.Context, id int64) error

	// === Notes ===

	CreateNote(ctx context.Context, n model.Note) (int64, error)
	SearchNotes(ctx context.Context, filter NoteFilter) ([]model.Note, error)
	SetNoteFile(ctx context.Context, id int64, path string) error

	// === Attachments ===

	CreateAttachment(ctx context.Context, a model.AttachmentRecord) (int64, error)
	GetAttachmentsForNote(ctx context.Context, noteID int64) ([]model.AttachmentRecord, error)
}
