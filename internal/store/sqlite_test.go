package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/uni-helper/internal/model"
	"github.com/nhle/uni-helper/internal/store"
	"github.com/nhle/uni-helper/tests/testutil"
)

var fixedNow = time.Date(2024, 10, 20, 12, 0, 0, 0, time.UTC)

func newStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s := testutil.NewTestStore(t)
	s.SetClock(func() time.Time { return fixedNow })
	return s
}

func strPtr(s string) *string { return &s }

func TestProcessedEmails(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	ok, err := s.IsProcessed(ctx, "42")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.MarkProcessed(ctx, "42", "Hello"))
	require.NoError(t, s.MarkProcessed(ctx, "42", "Hello again"), "duplicate mark must be ignored")

	ok, err = s.IsProcessed(ctx, "42")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGetOrCreateClassIsCaseInsensitive(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	a, err := s.GetOrCreateClass(ctx, "Data Mining")
	require.NoError(t, err)
	b, err := s.GetOrCreateClass(ctx, "data mining")
	require.NoError(t, err)
	assert.Equal(t, a.ID, b.ID)
	assert.Equal(t, "Data Mining", b.Name)

	_, err = s.GetOrCreateClass(ctx, "Algorithms")
	require.NoError(t, err)

	classes, err := s.GetClasses(ctx)
	require.NoError(t, err)
	require.Len(t, classes, 2)
	assert.Equal(t, "Algorithms", classes[0].Name)

	_, err = s.GetOrCreateClass(ctx, "  ")
	assert.Error(t, err)
}

func TestUpcomingAssignments(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	dm, err := s.GetOrCreateClass(ctx, "Data Mining")
	require.NoError(t, err)
	alg, err := s.GetOrCreateClass(ctx, "Algorithms")
	require.NoError(t, err)

	mk := func(classID int64, title string, due time.Time) int64 {
		id, err := s.CreateAssignment(ctx, model.Assignment{ClassID: classID, Title: title, DueDate: due})
		require.NoError(t, err)
		return id
	}
	mk(dm.ID, "tomorrow", fixedNow.Add(20*time.Hour))
	mk(alg.ID, "next week", fixedNow.Add(6*24*time.Hour))
	mk(dm.ID, "far", fixedNow.Add(60*24*time.Hour))
	mk(dm.ID, "past", fixedNow.Add(-time.Hour))
	done := mk(alg.ID, "done", fixedNow.Add(2*time.Hour))
	require.NoError(t, s.CompleteAssignment(ctx, done))

	got, err := s.UpcomingAssignments(ctx, store.AssignmentFilter{Within: 24 * time.Hour})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "tomorrow", got[0].Title)
	assert.Equal(t, "Data Mining", got[0].ClassName)
	assert.Equal(t, model.AssignmentPending, got[0].Status)
	assert.True(t, got[0].DueDate.Equal(fixedNow.Add(20*time.Hour)))

	got, err = s.UpcomingAssignments(ctx, store.AssignmentFilter{})
	require.NoError(t, err)
	require.Len(t, got, 2, "default window is 30 days")
	assert.Equal(t, "tomorrow", got[0].Title)
	assert.Equal(t, "next week", got[1].Title)

	got, err = s.UpcomingAssignments(ctx, store.AssignmentFilter{
		Within:    14 * 24 * time.Hour,
		ClassName: strPtr("algorithms"),
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "next week", got[0].Title)
}

func TestReminderLifecycle(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	c, err := s.GetOrCreateClass(ctx, "Physics")
	require.NoError(t, err)
	id, err := s.CreateAssignment(ctx, model.Assignment{
		ClassID: c.ID, Title: "Lab report", DueDate: fixedNow.Add(10 * time.Hour),
	})
	require.NoError(t, err)

	due, err := s.DueForReminder(ctx, 24*time.Hour)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, id, due[0].ID)
	assert.Nil(t, due[0].RemindedAt)
	assert.Equal(t, 24, due[0].ReminderHours)

	require.NoError(t, s.MarkReminded(ctx, id))

	due, err = s.DueForReminder(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Empty(t, due)

	assert.Error(t, s.MarkReminded(ctx, 9999))
}

func TestCreateAssignmentValidation(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	_, err := s.CreateAssignment(ctx, model.Assignment{ClassID: 1})
	assert.Error(t, err)
	_, err = s.CreateAssignment(ctx, model.Assignment{Title: "x"})
	assert.Error(t, err)
}

func TestNotesAndAttachments(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	dm, err := s.GetOrCreateClass(ctx, "Data Mining")
	require.NoError(t, err)
	gen, err := s.GetOrCreateClass(ctx, "General")
	require.NoError(t, err)

	first, err := s.CreateNote(ctx, model.Note{
		ClassID:  dm.ID,
		Content:  "Apriori algorithm finds frequent itemsets",
		NoteType: "lecture",
		Metadata: map[string]any{"tags": []string{"apriori"}, "source": "email"},
	})
	require.NoError(t, err)
	_, err = s.CreateNote(ctx, model.Note{ClassID: gen.ID, Content: "Library hours changed"})
	require.NoError(t, err)

	notes, err := s.SearchNotes(ctx, store.NoteFilter{Query: "apriori"})
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, first, notes[0].ID)
	assert.Equal(t, "Data Mining", notes[0].ClassName)
	assert.Equal(t, "lecture", notes[0].NoteType)
	assert.Equal(t, "email", notes[0].Metadata["source"])

	notes, err = s.SearchNotes(ctx, store.NoteFilter{ClassName: strPtr("general")})
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "general", notes[0].NoteType)

	notes, err = s.SearchNotes(ctx, store.NoteFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, notes, 1)

	_, err = s.CreateAttachment(ctx, model.AttachmentRecord{
		EmailID: "7", Filename: "slides.pdf", Filepath: "/tmp/7/slides.pdf", NoteID: &first,
	})
	require.NoError(t, err)

	atts, err := s.GetAttachmentsForNote(ctx, first)
	require.NoError(t, err)
	require.Len(t, atts, 1)
	assert.Equal(t, "slides.pdf", atts[0].Filename)
}

func TestSetNoteFile(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	dm, err := s.GetOrCreateClass(ctx, "Data Mining")
	require.NoError(t, err)
	id, err := s.CreateNote(ctx, model.Note{ClassID: dm.ID, Content: "Decision trees split on entropy"})
	require.NoError(t, err)

	notes, err := s.SearchNotes(ctx, store.NoteFilter{})
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Nil(t, notes[0].FormattedFilePath)

	path := "/notes/Data_Mining/2026-10-16_decision-trees.txt"
	require.NoError(t, s.SetNoteFile(ctx, id, path))

	notes, err = s.SearchNotes(ctx, store.NoteFilter{})
	require.NoError(t, err)
	require.NotNil(t, notes[0].FormattedFilePath)
	assert.Equal(t, path, *notes[0].FormattedFilePath)

	assert.Error(t, s.SetNoteFile(ctx, id+100, path))
}
