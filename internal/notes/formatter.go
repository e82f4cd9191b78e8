// Package notes writes a readable .txt copy of each filed note into a
// per-class folder.
package notes

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/rs/zerolog"
)

const (
	maxSlugLen  = 80
	maxDedupe   = 1000
	stampLayout = "20060102-150405"
)

// Attachment is a file filed alongside a note.
type Attachment struct {
	Filename string
	Path     string
}

// Entry is everything rendered into a note file.
type Entry struct {
	NoteID      int64
	ClassName   string
	Subject     string
	Content     string
	Body        string
	Source      string
	Tags        []string
	EmailDate   time.Time
	Attachments []Attachment
}

// Formatter renders entries under a base directory, one subfolder per
// class.
type Formatter struct {
	dir string
	log zerolog.Logger
	now func() time.Time
}

// New creates a Formatter rooted at dir. Folders are created on first
// write.
func New(dir string, logger zerolog.Logger) *Formatter {
	return &Formatter{
		dir: dir,
		log: logger.With().Str("module", "notes").Logger(),
		now: time.Now,
	}
}

// Write renders e and stores it as
// <dir>/<class>/<timestamp>-<subject>-note<id>.txt. A name that already
// exists gets a _1, _2, ... suffix. It returns the absolute path written.
func (f *Formatter) Write(e Entry) (string, error) {
	classDir := filepath.Join(f.dir, slugOr(e.ClassName, "general"))
	if err := os.MkdirAll(classDir, 0o755); err != nil {
		return "", fmt.Errorf("creating note folder %s: %w", classDir, err)
	}

	now := f.now()
	base := fmt.Sprintf("%s-%s-note%d", now.Format(stampLayout), slugOr(e.Subject, "note"), e.NoteID)

	file, path, err := createUnique(classDir, base, ".txt")
	if err != nil {
		return "", err
	}
	if _, err := file.WriteString(Render(e, now)); err != nil {
		file.Close()
		return "", fmt.Errorf("writing note file %s: %w", path, err)
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("closing note file %s: %w", path, err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	f.log.Debug().Str("path", abs).Int64("note_id", e.NoteID).Msg("Wrote note file")
	return abs, nil
}

// Render returns the file text for e: a header block followed by the
// summary, the original body, and the attachment list.
func Render(e Entry, created time.Time) string {
	className := orDefault(e.ClassName, "General")
	subject := orDefault(e.Subject, "No Subject")
	source := orDefault(e.Source, "email")

	var b strings.Builder
	fmt.Fprintf(&b, "Class: %s\n", className)
	fmt.Fprintf(&b, "Subject: %s\n", subject)
	fmt.Fprintf(&b, "Note ID: %d\n", e.NoteID)
	fmt.Fprintf(&b, "Created: %s\n", created.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Source: %s\n", source)
	if !e.EmailDate.IsZero() {
		fmt.Fprintf(&b, "Email Date: %s\n", e.EmailDate.Format(time.RFC1123Z))
	}
	if len(e.Tags) > 0 {
		fmt.Fprintf(&b, "Tags: %s\n", strings.Join(e.Tags, ", "))
	}
	if len(e.Attachments) > 0 {
		fmt.Fprintf(&b, "Attachments: %d\n", len(e.Attachments))
	}

	section(&b, "Summary", orDefault(e.Content, "No content provided."))
	section(&b, "Original Email Body", orDefault(e.Body, "No email body captured."))

	if len(e.Attachments) > 0 {
		lines := make([]string, 0, len(e.Attachments)*2)
		for _, a := range e.Attachments {
			lines = append(lines, "["+orDefault(a.Filename, "attachment")+"]")
			if a.Path != "" {
				lines = append(lines, "File: "+a.Path)
			}
		}
		section(&b, "Attachments", strings.Join(lines, "\n"))
	}
	return b.String()
}

func section(b *strings.Builder, title, body string) {
	fmt.Fprintf(b, "\n--- %s ---\n%s\n", title, body)
}

// createUnique opens dir/base+ext exclusively, falling back to
// base_1+ext, base_2+ext and so on.
func createUnique(dir, base, ext string) (*os.File, string, error) {
	for i := 0; i < maxDedupe; i++ {
		name := base + ext
		if i > 0 {
			name = fmt.Sprintf("%s_%d%s", base, i, ext)
		}
		path := filepath.Join(dir, name)
		file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return file, path, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, "", fmt.Errorf("creating note file %s: %w", path, err)
		}
	}
	return nil, "", fmt.Errorf("no free file name for %s in %s", base, dir)
}

// Slug lowercases s and collapses every run of characters outside a-z
// and 0-9 into a single hyphen.
func Slug(s string) string {
	var b strings.Builder
	hyphen := false
	for _, r := range strings.ToLower(s) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
			hyphen = false
			continue
		}
		if !hyphen && b.Len() > 0 {
			b.WriteByte('-')
			hyphen = true
		}
	}
	out := strings.TrimSuffix(b.String(), "-")
	if len(out) > maxSlugLen {
		out = strings.TrimSuffix(out[:maxSlugLen], "-")
	}
	return out
}

func slugOr(s, def string) string {
	if slug := Slug(s); slug != "" {
		return slug
	}
	return def
}

func orDefault(s, def string) string {
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	return def
}
