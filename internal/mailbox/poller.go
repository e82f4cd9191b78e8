package mailbox

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"sync"
	"time"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-message/textproto"
	"github.com/rs/zerolog"

	"github.com/nhle/uni-helper/internal/model"
)

// ErrFailed is returned by Run once the consecutive failure threshold is
// reached.
var ErrFailed = errors.New("mailbox connection failed permanently")

// Handler receives one raw message. Returning an error does not affect
// the session.
type Handler func(ctx context.Context, id string, raw []byte) error

// ProcessedFunc is the idempotency check consulted before a message is
// handed to the Handler.
type ProcessedFunc func(ctx context.Context, id string) (bool, error)

// PollOutcome classifies a poll cycle.
type PollOutcome int

const (
	// PollSucceeded means the unseen list was read and every message was
	// offered to the handler (handler errors are counted separately).
	PollSucceeded PollOutcome = iota
	// PollNoMessages means the mailbox had nothing unseen.
	PollNoMessages
	// PollTransportError means the session is dead.
	PollTransportError
)

func (o PollOutcome) String() string {
	switch o {
	case PollSucceeded:
		return "succeeded"
	case PollNoMessages:
		return "no_messages"
	default:
		return "transport_error"
	}
}

// PollResult summarises one PollOnce call.
type PollResult struct {
	Outcome PollOutcome
	Handled int
	Skipped int
	Failed  int
	// Abandoned counts messages flagged seen after failing
	// MaxMessageAttempts times in a row.
	Abandoned int
	Err       error
}

// Options configures a Poller.
type Options struct {
	Interval               time.Duration
	RetryDelay             time.Duration
	MaxRetryDelay          time.Duration
	MaxConsecutiveFailures int

	// MaxMessageAttempts is how many polls may fail on the same message
	// before it is flagged seen and left alone.
	MaxMessageAttempts int
}

// OptionsFromConfig maps the mailbox config section to poller options.
func OptionsFromConfig(cfg model.MailboxConfig) Options {
	return Options{
		Interval:               time.Duration(cfg.PollIntervalSec) * time.Second,
		RetryDelay:             time.Duration(cfg.RetryDelaySec) * time.Second,
		MaxRetryDelay:          time.Duration(cfg.MaxRetryDelaySec) * time.Second,
		MaxConsecutiveFailures: cfg.MaxConsecutiveFailures,
	}
}

// Poller owns a mailbox session and its reconnect state machine.
type Poller struct {
	dialer Dialer
	opts   Options
	log    zerolog.Logger

	// sleep waits for d or until ctx is done; false means ctx ended.
	sleep func(ctx context.Context, d time.Duration) bool

	session  Session
	backoff  *Backoff
	failures int

	// attempts counts handler failures per message id.
	attempts map[string]int

	mu     sync.Mutex
	state  model.ConnectionState
	cancel context.CancelFunc
}

// NewPoller creates a disconnected Poller.
func NewPoller(dialer Dialer, opts Options, logger zerolog.Logger) *Poller {
	if opts.Interval <= 0 {
		opts.Interval = 60 * time.Second
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 5 * time.Second
	}
	if opts.MaxRetryDelay <= 0 {
		opts.MaxRetryDelay = 60 * time.Second
	}
	if opts.MaxConsecutiveFailures <= 0 {
		opts.MaxConsecutiveFailures = 5
	}
	if opts.MaxMessageAttempts <= 0 {
		opts.MaxMessageAttempts = 3
	}

	p := &Poller{
		dialer:   dialer,
		opts:     opts,
		log:      logger.With().Str("module", "mailbox").Logger(),
		sleep:    sleepCtx,
		backoff:  NewBackoff(opts.RetryDelay, opts.MaxRetryDelay),
		attempts: make(map[string]int),
	}
	p.state.RetryDelay = opts.RetryDelay
	return p
}

// State returns a snapshot of the connection state.
func (p *Poller) State() model.ConnectionState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Connect establishes a session. It does not retry.
func (p *Poller) Connect(ctx context.Context) error {
	p.disconnect()

	session, err := p.dialer.Dial(ctx)
	if err != nil {
		p.log.Error().Err(err).Msg("Mailbox connect failed")
		return err
	}

	p.session = session
	p.setStatus(model.StatusConnected)
	p.log.Info().Msg("Connected to mailbox")
	return nil
}

// PollOnce reads the unseen list and offers each message to handler.
// Messages the handler accepts, and those processed reports as already
// handled, are flagged seen. Handler errors are logged and the batch
// continues; a message that fails MaxMessageAttempts polls in a row is
// flagged seen so it stops coming back.
func (p *Poller) PollOnce(ctx context.Context, handler Handler, processed ProcessedFunc) PollResult {
	if p.session == nil {
		return PollResult{
			Outcome: PollTransportError,
			Err:     &TransportError{Op: "poll", Err: errors.New("not connected")},
		}
	}

	ids, err := p.session.SearchUnseen(ctx)
	if err != nil {
		// A failed search leaves nothing to trust in the session.
		p.log.Error().Err(err).Msg("Searching for unseen messages failed")
		return PollResult{Outcome: PollTransportError, Err: err}
	}
	p.markPolled()

	if len(ids) == 0 {
		p.log.Debug().Msg("No new messages")
		return PollResult{Outcome: PollNoMessages}
	}

	p.log.Info().Int("count", len(ids)).Msg("Found unseen messages")

	var res PollResult
	for _, id := range ids {
		logger := p.log.With().Str("message_id", id).Logger()

		if processed != nil {
			done, err := processed(ctx, id)
			if err != nil {
				logger.Warn().Err(err).Msg("Processed check failed, handling anyway")
			} else if done {
				res.Skipped++
				if err := p.markSeen(ctx, logger, id); err != nil {
					res.Outcome = PollTransportError
					res.Err = err
					return res
				}
				continue
			}
		}

		raw, err := p.session.Fetch(ctx, id)
		if err != nil {
			if IsTransportError(err) {
				logger.Error().Err(err).Msg("Connection lost while fetching")
				res.Outcome = PollTransportError
				res.Err = err
				return res
			}
			logger.Error().Err(err).Msg("Fetching message failed")
			if err := p.messageFailed(ctx, logger, id, &res); err != nil {
				res.Outcome = PollTransportError
				res.Err = err
				return res
			}
			continue
		}

		logger.Info().Str("subject", headerSubject(raw)).Msg("Handling message")

		if err := p.invoke(ctx, handler, id, raw); err != nil {
			logger.Error().Err(err).Msg("Message handler failed")
			if err := p.messageFailed(ctx, logger, id, &res); err != nil {
				res.Outcome = PollTransportError
				res.Err = err
				return res
			}
			continue
		}
		res.Handled++
		delete(p.attempts, id)

		if err := p.markSeen(ctx, logger, id); err != nil {
			res.Outcome = PollTransportError
			res.Err = err
			return res
		}
	}

	res.Outcome = PollSucceeded
	return res
}

// messageFailed records a failed attempt on id and flags it seen once
// the attempt limit is reached. Only transport errors are returned.
func (p *Poller) messageFailed(ctx context.Context, logger zerolog.Logger, id string, res *PollResult) error {
	res.Failed++
	p.attempts[id]++
	if p.attempts[id] < p.opts.MaxMessageAttempts {
		return nil
	}

	logger.Error().Int("attempts", p.attempts[id]).Msg("Giving up on message")
	delete(p.attempts, id)
	res.Abandoned++
	return p.markSeen(ctx, logger, id)
}

// markSeen flags id seen. Only transport errors are returned; other
// failures are logged.
func (p *Poller) markSeen(ctx context.Context, logger zerolog.Logger, id string) error {
	err := p.session.MarkSeen(ctx, id)
	if err == nil {
		return nil
	}
	if IsTransportError(err) {
		logger.Error().Err(err).Msg("Connection lost while marking seen")
		return err
	}
	logger.Warn().Err(err).Msg("Marking message seen failed")
	return nil
}

// Run polls until ctx ends, Stop is called, or the failure threshold is
// reached, in which case it returns ErrFailed.
func (p *Poller) Run(ctx context.Context, handler Handler, processed ProcessedFunc) error {
	ctx, cancel := context.WithCancel(ctx)
	p.mu.Lock()
	p.cancel = cancel
	p.mu.Unlock()
	defer cancel()
	defer p.disconnect()

	if p.session == nil {
		if err := p.Connect(ctx); err != nil {
			p.log.Warn().Msg("Initial connect failed, entering reconnect loop")
		}
	}

	for {
		if ctx.Err() != nil {
			p.log.Info().Msg("Mailbox poller stopping")
			return nil
		}

		res := p.PollOnce(ctx, handler, processed)
		if res.Outcome != PollTransportError {
			p.resetFailures()
			p.sleep(ctx, p.opts.Interval)
			continue
		}

		p.failures++
		p.setStatus(model.StatusReconnecting)
		p.disconnect()

		delay := p.backoff.Current()
		p.log.Warn().Err(res.Err).Int("failures", p.failures).Dur("retry_in", delay).
			Msg("Mailbox transport error, reconnecting")

		if !p.sleep(ctx, delay) {
			continue
		}

		if err := p.Connect(ctx); err == nil {
			p.resetFailures()
			continue
		}

		p.backoff.Fail()
		p.syncState()

		if p.failures >= p.opts.MaxConsecutiveFailures {
			p.setStatus(model.StatusFailed)
			p.log.Error().Int("failures", p.failures).Msg("Mailbox connection failed permanently")
			return ErrFailed
		}
	}
}

// Stop ends a running Run loop at its next sleep boundary.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (p *Poller) invoke(ctx context.Context, handler Handler, id string, raw []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.New("handler panic")
			p.log.Error().Interface("panic", r).Str("message_id", id).Msg("Recovered handler panic")
		}
	}()
	return handler(ctx, id, raw)
}

func (p *Poller) disconnect() {
	if p.session == nil {
		return
	}
	if err := p.session.Close(); err != nil {
		p.log.Debug().Err(err).Msg("Closing mailbox session")
	}
	p.session = nil

	p.mu.Lock()
	if p.state.Status == model.StatusConnected {
		p.state.Status = model.StatusDisconnected
	}
	p.mu.Unlock()
}

func (p *Poller) resetFailures() {
	p.failures = 0
	p.backoff.Reset()
	p.syncState()
}

func (p *Poller) syncState() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.ConsecutiveFailures = p.failures
	p.state.RetryDelay = p.backoff.Current()
}

func (p *Poller) setStatus(s model.ConnectionStatus) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.Status = s
	p.state.ConsecutiveFailures = p.failures
	p.state.RetryDelay = p.backoff.Current()
}

func (p *Poller) markPolled() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.LastPoll = time.Now()
}

// headerSubject decodes the Subject header for logging.
func headerSubject(raw []byte) string {
	h, err := textproto.ReadHeader(bufio.NewReader(bytes.NewReader(raw)))
	if err != nil {
		return ""
	}
	mh := mail.Header{Header: message.Header{Header: h}}
	subject, err := mh.Subject()
	if err != nil {
		return mh.Get("Subject")
	}
	return subject
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
