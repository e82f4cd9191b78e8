package notes

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 10, 16, 14, 30, 5, 0, time.UTC)

func newFormatter(t *testing.T) (*Formatter, string) {
	t.Helper()
	dir := t.TempDir()
	f := New(dir, zerolog.Nop())
	f.now = func() time.Time { return fixedNow }
	return f, dir
}

func TestSlug(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Data Mining", "data-mining"},
		{"  Lecture 5: Decision Trees!! ", "lecture-5-decision-trees"},
		{"Fwd: Re: Notes", "fwd-re-notes"},
		{"Café résumé", "caf-r-sum"},
		{"???", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Slug(tt.in))
		})
	}
}

func TestSlugTruncates(t *testing.T) {
	long := ""
	for i := 0; i < 30; i++ {
		long += "abc "
	}
	got := Slug(long)
	assert.LessOrEqual(t, len(got), maxSlugLen)
	assert.NotEqual(t, '-', rune(got[len(got)-1]))
}

func TestWriteCreatesClassFolder(t *testing.T) {
	f, dir := newFormatter(t)

	path, err := f.Write(Entry{
		NoteID:    7,
		ClassName: "Data Mining",
		Subject:   "Lecture 5: Decision Trees",
		Content:   "Decision trees split on information gain.",
		Body:      "Full lecture notes below.",
		Tags:      []string{"trees", "entropy"},
		EmailDate: fixedNow.Add(-time.Hour),
		Attachments: []Attachment{
			{Filename: "slides.pdf", Path: "/data/attachments/7/slides.pdf"},
		},
	})
	require.NoError(t, err)

	wantDir := filepath.Join(dir, "data-mining")
	assert.Equal(t, wantDir, filepath.Dir(path))
	assert.Equal(t, "20261016-143005-lecture-5-decision-trees-note7.txt", filepath.Base(path))
	assert.True(t, filepath.IsAbs(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "Class: Data Mining\n")
	assert.Contains(t, text, "Note ID: 7\n")
	assert.Contains(t, text, "Created: 2026-10-16 14:30:05\n")
	assert.Contains(t, text, "Source: email\n")
	assert.Contains(t, text, "Tags: trees, entropy\n")
	assert.Contains(t, text, "Attachments: 1\n")
	assert.Contains(t, text, "--- Summary ---\nDecision trees split on information gain.\n")
	assert.Contains(t, text, "--- Original Email Body ---\nFull lecture notes below.\n")
	assert.Contains(t, text, "[slides.pdf]\nFile: /data/attachments/7/slides.pdf")
}

func TestWriteDedupesFileNames(t *testing.T) {
	f, _ := newFormatter(t)
	e := Entry{NoteID: 1, ClassName: "General", Subject: "Reminder"}

	first, err := f.Write(e)
	require.NoError(t, err)
	second, err := f.Write(e)
	require.NoError(t, err)
	third, err := f.Write(e)
	require.NoError(t, err)

	assert.Equal(t, "20261016-143005-reminder-note1.txt", filepath.Base(first))
	assert.Equal(t, "20261016-143005-reminder-note1_1.txt", filepath.Base(second))
	assert.Equal(t, "20261016-143005-reminder-note1_2.txt", filepath.Base(third))
}

func TestRenderDefaults(t *testing.T) {
	text := Render(Entry{NoteID: 3}, fixedNow)

	assert.Contains(t, text, "Class: General\n")
	assert.Contains(t, text, "Subject: No Subject\n")
	assert.Contains(t, text, "No content provided.")
	assert.Contains(t, text, "No email body captured.")
	assert.NotContains(t, text, "Tags:")
	assert.NotContains(t, text, "Email Date:")
	assert.NotContains(t, text, "--- Attachments ---")
}

func TestWriteEmptyNamesUseDefaults(t *testing.T) {
	f, dir := newFormatter(t)

	path, err := f.Write(Entry{NoteID: 9, Subject: "!!!"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "general"), filepath.Dir(path))
	assert.Equal(t, "20261016-143005-note-note9.txt", filepath.Base(path))
}
