package model

import "time"

// ParsedMessage is an inbound mail message reduced to the fields the
// pipeline needs.
type ParsedMessage struct {
	// MessageID is the mailbox-assigned identifier used for dedup.
	MessageID string

	// HeaderID is the RFC 5322 Message-ID, used to thread replies.
	HeaderID string

	From           string
	FromAddress    string
	Subject        string
	Body           string
	Date           time.Time
	Attachments    []Attachment
	HasAttachments bool
}

// Attachment holds metadata about a saved message attachment.
type Attachment struct {
	Filename string
	Path     string
	Size     int64
	MIMEType string
}
