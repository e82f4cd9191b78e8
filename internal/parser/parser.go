// Package parser turns raw RFC 5322 messages into model.ParsedMessage
// values and writes their attachments to disk.
package parser

import (
	"bytes"
	"errors"
	"fmt"
	"html"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"

	"github.com/nhle/uni-helper/internal/model"
)

const noSubject = "No Subject"

// Parser decodes messages. Attachments are saved beneath dir, one
// subdirectory per message; an empty dir keeps metadata only.
type Parser struct {
	dir    string
	policy *bluemonday.Policy
	log    zerolog.Logger
}

// New creates a Parser.
func New(dir string, logger zerolog.Logger) *Parser {
	return &Parser{
		dir:    dir,
		policy: bluemonday.StrictPolicy(),
		log:    logger.With().Str("module", "parser").Logger(),
	}
}

// Parse decodes raw. id is the mailbox identifier of the message.
func (p *Parser) Parse(id string, raw []byte) (*model.ParsedMessage, error) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil && mr == nil {
		return nil, fmt.Errorf("reading message %s: %w", id, err)
	}
	defer mr.Close()

	msg := &model.ParsedMessage{MessageID: id}
	p.readHeader(&mr.Header, msg)

	var textBody, htmlBody string
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// Keep whatever decoded cleanly before the broken part.
			p.log.Warn().Err(err).Str("message_id", id).Msg("Stopping at unreadable MIME part")
			break
		}

		switch h := part.Header.(type) {
		case *mail.InlineHeader:
			contentType, _, _ := h.ContentType()
			if contentType == "" {
				contentType = "text/plain"
			}
			body, readErr := io.ReadAll(part.Body)
			if readErr != nil {
				continue
			}
			switch {
			case strings.HasPrefix(contentType, "text/plain") && textBody == "":
				textBody = string(body)
			case strings.HasPrefix(contentType, "text/html") && htmlBody == "":
				htmlBody = string(body)
			}

		case *mail.AttachmentHeader:
			att, err := p.saveAttachment(id, h, part.Body)
			if err != nil {
				p.log.Error().Err(err).Str("message_id", id).Msg("Saving attachment failed")
				continue
			}
			msg.Attachments = append(msg.Attachments, att)
		}
	}

	switch {
	case strings.TrimSpace(textBody) != "":
		msg.Body = strings.TrimSpace(textBody)
	case htmlBody != "":
		msg.Body = p.HTMLToText(htmlBody)
	}
	msg.HasAttachments = len(msg.Attachments) > 0

	return msg, nil
}

func (p *Parser) readHeader(h *mail.Header, msg *model.ParsedMessage) {
	subject, err := h.Subject()
	if err != nil {
		subject = h.Get("Subject")
	}
	msg.Subject = strings.TrimSpace(subject)
	if msg.Subject == "" {
		msg.Subject = noSubject
	}

	if from, err := h.AddressList("From"); err == nil && len(from) > 0 {
		msg.From = from[0].String()
		msg.FromAddress = from[0].Address
	} else {
		msg.From = h.Get("From")
		msg.FromAddress = msg.From
	}

	if date, err := h.Date(); err == nil {
		msg.Date = date
	}

	if mid, err := h.MessageID(); err == nil {
		msg.HeaderID = mid
	}
}

var (
	blockTags    = regexp.MustCompile(`(?i)<br\s*/?>|</p>|</div>|</li>|</tr>|</h[1-6]>`)
	extraNewline = regexp.MustCompile(`\n{3,}`)
)

// HTMLToText reduces an HTML body to readable plain text.
func (p *Parser) HTMLToText(s string) string {
	if s == "" {
		return ""
	}
	s = blockTags.ReplaceAllString(s, "\n")
	s = p.policy.Sanitize(s)
	s = html.UnescapeString(s)
	s = strings.ReplaceAll(s, "\u00a0", " ")

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	s = strings.Join(lines, "\n")
	s = extraNewline.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

func sanitize(s string) string {
	s = unsafeChars.ReplaceAllString(s, "_")
	s = strings.Trim(s, "._")
	if s == "" {
		return "attachment"
	}
	return s
}

func (p *Parser) saveAttachment(id string, h *mail.AttachmentHeader, body io.Reader) (model.Attachment, error) {
	filename, _ := h.Filename()
	if filename == "" {
		filename = "attachment"
	}
	contentType, _, _ := h.ContentType()

	att := model.Attachment{Filename: filename, MIMEType: contentType}

	if p.dir == "" {
		n, err := io.Copy(io.Discard, body)
		att.Size = n
		return att, err
	}

	dir := filepath.Join(p.dir, sanitize(id))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return att, fmt.Errorf("creating attachment dir: %w", err)
	}

	path := filepath.Join(dir, sanitize(filename))
	f, err := os.Create(path)
	if err != nil {
		return att, fmt.Errorf("creating %s: %w", path, err)
	}
	n, err := io.Copy(f, body)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return att, fmt.Errorf("writing %s: %w", path, err)
	}

	att.Path = path
	att.Size = n
	return att, nil
}
