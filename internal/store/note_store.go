package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"github.com/nhle/uni-helper/internal/model"
)

// noteRow is the database shape of a note; metadata is stored as JSON.
type noteRow struct {
	model.Note
	MetadataJSON string `db:"metadata"`
}

// CreateNote inserts a note and returns its ID.
func (s *SQLiteStore) CreateNote(ctx context.Context, n model.Note) (int64, error) {
	if n.ClassID == 0 {
		return 0, fmt.Errorf("note must belong to a class")
	}
	if n.NoteType == "" {
		n.NoteType = "general"
	}

	meta := "{}"
	if len(n.Metadata) > 0 {
		data, err := json.Marshal(n.Metadata)
		if err != nil {
			return 0, fmt.Errorf("marshaling note metadata: %w", err)
		}
		meta = string(data)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO notes (class_id, content, note_type, metadata, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		n.ClassID, n.Content, n.NoteType, meta, dbTime(s.now()),
	)
	if err != nil {
		return 0, fmt.Errorf("creating note: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading note id: %w", err)
	}
	return id, nil
}

// SearchNotes returns the newest notes matching the filter.
func (s *SQLiteStore) SearchNotes(ctx context.Context, filter NoteFilter) ([]model.Note, error) {
	var conditions []string
	var args []interface{}

	if q := strings.TrimSpace(filter.Query); q != "" {
		conditions = append(conditions, "n.content LIKE ?")
		args = append(args, "%"+q+"%")
	}
	if filter.ClassName != nil && *filter.ClassName != "" {
		conditions = append(conditions, "c.name = ? COLLATE NOCASE")
		args = append(args, *filter.ClassName)
	}

	query := `
		SELECT n.id, n.class_id, c.name AS class_name, n.content,
			n.note_type, n.metadata, n.created_at, n.formatted_file_path
		FROM notes n JOIN classes c ON c.id = n.class_id`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 10
	}
	query += fmt.Sprintf(" ORDER BY n.created_at DESC, n.id DESC LIMIT %d", limit)

	var rows []noteRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("searching notes: %w", err)
	}

	notes := make([]model.Note, 0, len(rows))
	for _, r := range rows {
		n := r.Note
		if r.MetadataJSON != "" {
			if err := json.Unmarshal([]byte(r.MetadataJSON), &n.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshaling metadata for note %d: %w", n.ID, err)
			}
		}
		notes = append(notes, n)
	}
	return notes, nil
}

// SetNoteFile records where the formatted copy of a note was written.
func (s *SQLiteStore) SetNoteFile(ctx context.Context, id int64, path string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE notes SET formatted_file_path = ? WHERE id = ?", path, id)
	if err != nil {
		return fmt.Errorf("setting file for note %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("note %d not found", id)
	}
	return nil
}

// CreateAttachment records a saved attachment file.
func (s *SQLiteStore) CreateAttachment(ctx context.Context, a model.AttachmentRecord) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO attachments (email_id, filename, filepath, note_id, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		a.EmailID, a.Filename, a.Filepath, a.NoteID, dbTime(s.now()),
	)
	if err != nil {
		return 0, fmt.Errorf("creating attachment %s: %w", a.Filename, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading attachment id: %w", err)
	}
	return id, nil
}

// GetAttachmentsForNote lists attachments linked to a note.
func (s *SQLiteStore) GetAttachmentsForNote(ctx context.Context, noteID int64) ([]model.AttachmentRecord, error) {
	var out []model.AttachmentRecord
	err := s.db.SelectContext(ctx, &out,
		"SELECT * FROM attachments WHERE note_id = ? ORDER BY id", noteID)
	if err != nil {
		return nil, fmt.Errorf("listing attachments for note %d: %w", noteID, err)
	}
	return out, nil
}
