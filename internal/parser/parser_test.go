package parser

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func crlf(s string) []byte {
	return []byte(strings.ReplaceAll(s, "\n", "\r\n"))
}

func TestParsePlainText(t *testing.T) {
	raw := crlf(`From: Professor Smith <smith@uni.edu>
To: me@uni.edu
Subject: =?utf-8?q?Data_Mining_Project?=
Date: Mon, 21 Oct 2024 10:00:00 +0000
Message-ID: <abc123@uni.edu>
Content-Type: text/plain; charset=utf-8

Project due October 25, 2024 at 11:59 PM.
`)

	p := New("", zerolog.Nop())
	msg, err := p.Parse("17", raw)
	require.NoError(t, err)

	assert.Equal(t, "17", msg.MessageID)
	assert.Equal(t, "abc123@uni.edu", msg.HeaderID)
	assert.Equal(t, "Data Mining Project", msg.Subject)
	assert.Equal(t, "smith@uni.edu", msg.FromAddress)
	assert.Contains(t, msg.From, "Professor Smith")
	assert.Equal(t, "Project due October 25, 2024 at 11:59 PM.", msg.Body)
	assert.True(t, msg.Date.Equal(time.Date(2024, 10, 21, 10, 0, 0, 0, time.UTC)))
	assert.False(t, msg.HasAttachments)
}

func TestParseDefaultsSubject(t *testing.T) {
	raw := crlf(`From: a@b.c

hello
`)
	msg, err := New("", zerolog.Nop()).Parse("1", raw)
	require.NoError(t, err)
	assert.Equal(t, "No Subject", msg.Subject)
	assert.Equal(t, "hello", msg.Body)
}

func TestParseHTMLFallback(t *testing.T) {
	raw := crlf(`From: a@b.c
Subject: html only
MIME-Version: 1.0
Content-Type: multipart/alternative; boundary="XX"

--XX
Content-Type: text/html; charset=utf-8

<html><body><p>Lecture notes &amp; slides</p><script>alert(1)</script><div>Chapter 3</div></body></html>
--XX--
`)
	msg, err := New("", zerolog.Nop()).Parse("2", raw)
	require.NoError(t, err)
	assert.Contains(t, msg.Body, "Lecture notes & slides")
	assert.Contains(t, msg.Body, "Chapter 3")
	assert.NotContains(t, msg.Body, "<")
	assert.NotContains(t, msg.Body, "alert")
}

func TestParsePrefersPlainText(t *testing.T) {
	raw := crlf(`From: a@b.c
Subject: both
MIME-Version: 1.0
Content-Type: multipart/alternative; boundary="XX"

--XX
Content-Type: text/plain; charset=utf-8

plain version
--XX
Content-Type: text/html; charset=utf-8

<p>html version</p>
--XX--
`)
	msg, err := New("", zerolog.Nop()).Parse("3", raw)
	require.NoError(t, err)
	assert.Equal(t, "plain version", msg.Body)
}

func TestParseSavesAttachments(t *testing.T) {
	raw := crlf(`From: a@b.c
Subject: slides
MIME-Version: 1.0
Content-Type: multipart/mixed; boundary="XX"

--XX
Content-Type: text/plain

see attached
--XX
Content-Type: text/plain
Content-Disposition: attachment; filename="week 3 notes.txt"

attachment body
--XX--
`)
	dir := t.TempDir()
	msg, err := New(dir, zerolog.Nop()).Parse("<42>", raw)
	require.NoError(t, err)

	require.Len(t, msg.Attachments, 1)
	att := msg.Attachments[0]
	assert.True(t, msg.HasAttachments)
	assert.Equal(t, "week 3 notes.txt", att.Filename)
	assert.Equal(t, filepath.Join(dir, "42", "week_3_notes.txt"), att.Path)
	assert.Equal(t, int64(len("attachment body")), att.Size)

	data, err := os.ReadFile(att.Path)
	require.NoError(t, err)
	assert.Equal(t, "attachment body", string(data))
	assert.Equal(t, "see attached", msg.Body)
}

func TestHTMLToText(t *testing.T) {
	p := New("", zerolog.Nop())
	assert.Equal(t, "one\ntwo", p.HTMLToText("<p>one</p><p>two</p>"))
	assert.Equal(t, "a < b", p.HTMLToText("a &lt; b"))
	assert.Equal(t, "", p.HTMLToText(""))
}
