package mailbox

import (
	"context"
	"fmt"
	"strconv"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
)

// IMAPDialer connects to an IMAP server over TLS or STARTTLS.
type IMAPDialer struct {
	host     string
	port     string
	username string
	password string
	tls      bool
}

// NewIMAPDialer creates a new IMAP dialer configuration.
func NewIMAPDialer(host, port, username, password string, tls bool) *IMAPDialer {
	return &IMAPDialer{
		host:     host,
		port:     port,
		username: username,
		password: password,
		tls:      tls,
	}
}

// Dial connects, authenticates and selects INBOX.
func (d *IMAPDialer) Dial(_ context.Context) (Session, error) {
	addr := d.host + ":" + d.port

	var client *imapclient.Client
	var err error

	if d.tls {
		client, err = imapclient.DialTLS(addr, nil)
	} else {
		client, err = imapclient.DialStartTLS(addr, nil)
	}
	if err != nil {
		return nil, &TransportError{Op: "connect", Err: fmt.Errorf("connecting to IMAP %s: %w", addr, err)}
	}

	if err := client.Login(d.username, d.password).Wait(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("authentication failed for %s: %w", d.username, err)
	}

	if _, err := client.Select("INBOX", nil).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, classify("select INBOX", err)
	}

	return &imapSession{client: client}, nil
}

type imapSession struct {
	client *imapclient.Client
}

// SearchUnseen returns the UIDs of messages without the \Seen flag.
func (s *imapSession) SearchUnseen(_ context.Context) ([]string, error) {
	criteria := &imap.SearchCriteria{
		NotFlag: []imap.Flag{imap.FlagSeen},
	}

	searchData, err := s.client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, classify("search", err)
	}

	uids := searchData.AllUIDs()
	ids := make([]string, 0, len(uids))
	for _, uid := range uids {
		ids = append(ids, strconv.FormatUint(uint64(uid), 10))
	}
	return ids, nil
}

// Fetch returns the full RFC 5322 message without marking it seen.
func (s *imapSession) Fetch(_ context.Context, id string) ([]byte, error) {
	uid, err := parseUID(id)
	if err != nil {
		return nil, err
	}

	bodySection := &imap.FetchItemBodySection{
		Peek: true,
	}
	fetchOpts := &imap.FetchOptions{
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	}

	fetchCmd := s.client.Fetch(imap.UIDSetNum(uid), fetchOpts)
	defer fetchCmd.Close()

	msg := fetchCmd.Next()
	if msg == nil {
		if err := fetchCmd.Close(); err != nil {
			return nil, classify("fetch", err)
		}
		return nil, fmt.Errorf("message UID %d not found", uid)
	}

	buf, err := msg.Collect()
	if err != nil {
		return nil, classify("fetch", err)
	}

	raw := buf.FindBodySection(bodySection)
	if raw == nil {
		return nil, fmt.Errorf("message UID %d has no body", uid)
	}

	if err := fetchCmd.Close(); err != nil {
		return nil, classify("fetch", err)
	}
	return raw, nil
}

// MarkSeen adds the \Seen flag.
func (s *imapSession) MarkSeen(_ context.Context, id string) error {
	uid, err := parseUID(id)
	if err != nil {
		return err
	}

	storeCmd := s.client.Store(imap.UIDSetNum(uid), &imap.StoreFlags{
		Op:     imap.StoreFlagsAdd,
		Silent: true,
		Flags:  []imap.Flag{imap.FlagSeen},
	}, nil)

	return classify("store", storeCmd.Close())
}

// Close logs out, falling back to closing the socket.
func (s *imapSession) Close() error {
	if err := s.client.Logout().Wait(); err != nil {
		_ = s.client.Close()
		return err
	}
	return s.client.Close()
}

func parseUID(id string) (imap.UID, error) {
	n, err := strconv.ParseUint(id, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid message UID %q: %w", id, err)
	}
	return imap.UID(n), nil
}
