package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nhle/uni-helper/internal/model"
)

const assignmentColumns = `
	a.id, a.class_id, c.name AS class_name, a.title, a.description,
	a.due_date, a.reminder_hours, a.status, a.created_at, a.reminded_at`

// CreateAssignment inserts a new pending assignment and returns its ID.
func (s *SQLiteStore) CreateAssignment(ctx context.Context, a model.Assignment) (int64, error) {
	if strings.TrimSpace(a.Title) == "" {
		return 0, fmt.Errorf("assignment title must not be empty")
	}
	if a.ClassID == 0 {
		return 0, fmt.Errorf("assignment must belong to a class")
	}
	if a.Status == "" {
		a.Status = model.AssignmentPending
	}
	if a.ReminderHours <= 0 {
		a.ReminderHours = 24
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO assignments (
			class_id, title, description, due_date,
			reminder_hours, status, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ClassID, a.Title, a.Description, dbTime(a.DueDate),
		a.ReminderHours, a.Status, dbTime(s.now()),
	)
	if err != nil {
		return 0, fmt.Errorf("creating assignment: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading assignment id: %w", err)
	}
	return id, nil
}

// UpcomingAssignments returns pending assignments due between now and
// now+filter.Within, soonest first.
func (s *SQLiteStore) UpcomingAssignments(
	ctx context.Context,
	filter AssignmentFilter,
) ([]model.Assignment, error) {
	within := filter.Within
	if within <= 0 {
		within = 30 * 24 * time.Hour
	}
	now := dbTime(s.now())

	conditions := []string{"a.status = ?", "a.due_date >= ?", "a.due_date <= ?"}
	args := []interface{}{model.AssignmentPending, now, now.Add(within)}

	if filter.ClassName != nil && *filter.ClassName != "" {
		conditions = append(conditions, "c.name = ? COLLATE NOCASE")
		args = append(args, *filter.ClassName)
	}

	query := "SELECT" + assignmentColumns + `
		FROM assignments a JOIN classes c ON c.id = a.class_id
		WHERE ` + strings.Join(conditions, " AND ") + `
		ORDER BY a.due_date ASC`

	var out []model.Assignment
	if err := s.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("querying upcoming assignments: %w", err)
	}
	return out, nil
}

// DueForReminder returns pending assignments due within the window that
// have not been reminded yet.
func (s *SQLiteStore) DueForReminder(ctx context.Context, within time.Duration) ([]model.Assignment, error) {
	now := dbTime(s.now())

	var out []model.Assignment
	err := s.db.SelectContext(ctx, &out, "SELECT"+assignmentColumns+`
		FROM assignments a JOIN classes c ON c.id = a.class_id
		WHERE a.status = ?
			AND a.reminded_at IS NULL
			AND a.due_date >= ?
			AND a.due_date <= ?
		ORDER BY a.due_date ASC`,
		model.AssignmentPending, now, now.Add(within),
	)
	if err != nil {
		return nil, fmt.Errorf("querying assignments due for reminder: %w", err)
	}
	return out, nil
}

// MarkReminded stamps an assignment so it is not reminded again.
func (s *SQLiteStore) MarkReminded(ctx context.Context, id int64) error {
	return s.updateAssignment(ctx, id, "reminded_at = ?", dbTime(s.now()))
}

// CompleteAssignment marks an assignment as completed.
func (s *SQLiteStore) CompleteAssignment(ctx context.Context, id int64) error {
	return s.updateAssignment(ctx, id, "status = ?", model.AssignmentCompleted)
}

func (s *SQLiteStore) updateAssignment(ctx context.Context, id int64, set string, value interface{}) error {
	result, err := s.db.ExecContext(ctx, "UPDATE assignments SET "+set+" WHERE id = ?", value, id)
	if err != nil {
		return fmt.Errorf("updating assignment %d: %w", id, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("assignment %d not found", id)
	}
	return nil
}
