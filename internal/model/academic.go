package model

import "time"

// Assignment statuses.
const (
	AssignmentPending   = "pending"
	AssignmentCompleted = "completed"
)

// Class is a course that assignments and notes are filed under.
type Class struct {
	ID        int64     `db:"id"`
	Name      string    `db:"name"`
	Code      *string   `db:"code"`
	CreatedAt time.Time `db:"created_at"`
}

// Assignment is a deadline extracted from a message.
type Assignment struct {
	ID            int64      `db:"id"`
	ClassID       int64      `db:"class_id"`
	ClassName     string     `db:"class_name"`
	Title         string     `db:"title"`
	Description   *string    `db:"description"`
	DueDate       time.Time  `db:"due_date"`
	ReminderHours int        `db:"reminder_hours"`
	Status        string     `db:"status"`
	CreatedAt     time.Time  `db:"created_at"`
	RemindedAt    *time.Time `db:"reminded_at"`
}

// Note is a piece of course material filed from a message.
type Note struct {
	ID        int64          `db:"id"`
	ClassID   int64          `db:"class_id"`
	ClassName string         `db:"class_name"`
	Content   string         `db:"content"`
	NoteType  string         `db:"note_type"`
	Metadata  map[string]any `db:"-"`
	CreatedAt time.Time      `db:"created_at"`

	// FormattedFilePath is the rendered .txt copy in the notes folder.
	FormattedFilePath *string `db:"formatted_file_path"`
}

// AttachmentRecord links a stored attachment to the note it arrived with.
type AttachmentRecord struct {
	ID        int64     `db:"id"`
	EmailID   string    `db:"email_id"`
	Filename  string    `db:"filename"`
	Filepath  string    `db:"filepath"`
	NoteID    *int64    `db:"note_id"`
	CreatedAt time.Time `db:"created_at"`
}
