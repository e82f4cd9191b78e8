// Package mailbox keeps a session to the remote mailbox alive and feeds
// newly arrived messages to a handler.
package mailbox

import (
	"context"
	"errors"
	"fmt"

	"github.com/emersion/go-imap/v2"
)

// Session is a logged-in mailbox with INBOX selected. Message IDs are
// opaque strings unique within the mailbox.
type Session interface {
	SearchUnseen(ctx context.Context) ([]string, error)
	Fetch(ctx context.Context, id string) ([]byte, error)
	MarkSeen(ctx context.Context, id string) error
	Close() error
}

// Dialer opens new sessions. It does not retry.
type Dialer interface {
	Dial(ctx context.Context) (Session, error)
}

// TransportError means the session is unusable and must be re-established.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("mailbox transport error during %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransportError reports whether err means the connection is dead.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// classify turns an IMAP client error into either a protocol error (the
// server answered NO or BAD, the session is still usable) or a
// TransportError.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var imapErr *imap.Error
	if errors.As(err, &imapErr) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return &TransportError{Op: op, Err: err}
}
