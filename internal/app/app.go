// Package app wires the mailbox poller, processing queue, pipeline and
// reminder scheduler into the running service.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nhle/uni-helper/internal/httpd"
	"github.com/nhle/uni-helper/internal/llm"
	"github.com/nhle/uni-helper/internal/mailbox"
	"github.com/nhle/uni-helper/internal/model"
	"github.com/nhle/uni-helper/internal/notes"
	"github.com/nhle/uni-helper/internal/parser"
	"github.com/nhle/uni-helper/internal/pipeline"
	"github.com/nhle/uni-helper/internal/queue"
	"github.com/nhle/uni-helper/internal/scheduler"
	"github.com/nhle/uni-helper/internal/sender"
	"github.com/nhle/uni-helper/internal/store"
)

const httpShutdownTimeout = 5 * time.Second

// Processor turns a parsed message into an Outcome.
type Processor interface {
	Process(ctx context.Context, msg model.ParsedMessage) model.Outcome
}

// Replier answers the sender of a processed message.
type Replier interface {
	SendConfirmation(ctx context.Context, msg model.ParsedMessage, body string) error
}

// Parser decodes raw RFC 5322 messages.
type Parser interface {
	Parse(id string, raw []byte) (*model.ParsedMessage, error)
}

// Ledger is the idempotency record.
type Ledger interface {
	IsProcessed(ctx context.Context, messageID string) (bool, error)
	MarkProcessed(ctx context.Context, messageID, subject string) error
}

// App is the running service.
type App struct {
	cfg *model.AppConfig
	log zerolog.Logger

	store     *store.SQLiteStore
	ledger    Ledger
	parser    Parser
	processor Processor
	replier   Replier

	queue     *queue.Queue[model.ParsedMessage]
	poller    *mailbox.Poller
	scheduler *scheduler.Scheduler
	http      *httpd.Server

	wg      sync.WaitGroup
	pollErr chan error
}

// New opens the database and builds every component from cfg. Secrets must
// already be resolved into cfg.
func New(cfg *model.AppConfig, logger zerolog.Logger) (*App, error) {
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}

	if dir := filepath.Dir(cfg.Database.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}
	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, err
	}

	backend, err := llm.New(cfg.AI, logger)
	if err != nil {
		st.Close()
		return nil, err
	}
	gen := llm.NewGenerator(backend, cfg.AI.JSONRetries, logger)

	snd := sender.New(cfg.SMTP, cfg.Mailbox.Username, cfg.Mailbox.Password, logger)

	dialer := mailbox.NewIMAPDialer(
		cfg.Mailbox.Host, cfg.Mailbox.Port,
		cfg.Mailbox.Username, cfg.Mailbox.Password, cfg.Mailbox.TLS,
	)

	pl := pipeline.New(gen, st, cfg.Reminders.HoursBefore, logger)
	if cfg.Notes.Dir != "" {
		pl.SetNoteWriter(notes.New(cfg.Notes.Dir, logger))
	}

	a := &App{
		cfg:       cfg,
		log:       logger.With().Str("module", "app").Logger(),
		store:     st,
		ledger:    st,
		parser:    parser.New(cfg.Attachments.Dir, logger),
		processor: pl,
		replier:   snd,
		queue: queue.New[model.ParsedMessage](
			time.Duration(cfg.Queue.PollTimeoutMs)*time.Millisecond, logger,
		),
		poller:    mailbox.NewPoller(dialer, mailbox.OptionsFromConfig(cfg.Mailbox), logger),
		scheduler: scheduler.New(st, snd, cfg.Reminders, logger),
		pollErr:   make(chan error, 1),
	}
	a.http = httpd.New(cfg.HTTP.Addr, a, logger)

	a.log.Info().Str("provider", backend.Name()).Str("database", cfg.Database.Path).
		Msg("Service configured")
	return a, nil
}

// Start launches the queue consumer, the status server, the reminder
// scheduler, and the mailbox poll loop. It returns without blocking.
func (a *App) Start(ctx context.Context) error {
	if err := a.queue.Start(ctx); err != nil {
		return fmt.Errorf("starting queue: %w", err)
	}

	if a.cfg.HTTP.Addr != "" {
		if err := a.http.Start(ctx); err != nil {
			a.queue.Stop(a.cfg.StopTimeout())
			return fmt.Errorf("starting status server: %w", err)
		}
	}

	a.scheduler.Start(ctx)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.pollErr <- a.poller.Run(ctx, a.HandleRaw, a.ledger.IsProcessed)
	}()

	a.log.Info().Dur("interval", a.cfg.PollInterval()).Msg("Service started")
	return nil
}

// Done delivers the poll loop's exit error; ErrFailed means the mailbox
// could not be reached.
func (a *App) Done() <-chan error { return a.pollErr }

// Shutdown stops the components in order: poller, queue, scheduler,
// status server. The database is closed only when the queue consumer has
// exited, since a late callback may still be writing to it.
func (a *App) Shutdown() {
	a.log.Info().Msg("Shutting down")

	a.poller.Stop()
	a.wg.Wait()

	drained := a.queue.Stop(a.cfg.StopTimeout())
	if !drained {
		a.log.Warn().Msg("Queue did not drain its current item in time")
	}

	a.scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
	defer cancel()
	if err := a.http.Shutdown(ctx); err != nil {
		a.log.Warn().Err(err).Msg("Status server shutdown")
	}

	if a.store != nil {
		if drained {
			if err := a.store.Close(); err != nil {
				a.log.Warn().Err(err).Msg("Closing database")
			}
		} else {
			a.log.Warn().Msg("Leaving database open for the running queue item")
		}
	}
	a.log.Info().Msg("Shutdown complete")
}

// RemindNow runs the reminder check immediately.
func (a *App) RemindNow(ctx context.Context) (int, error) {
	return a.scheduler.RunOnce(ctx)
}

// HandleRaw is the mailbox handler: it parses the message and queues it.
// When the queue is not running the message is processed inline.
func (a *App) HandleRaw(ctx context.Context, id string, raw []byte) error {
	msg, err := a.parser.Parse(id, raw)
	if err != nil {
		return fmt.Errorf("parsing message %s: %w", id, err)
	}

	if a.queue.Running() {
		itemID, err := a.queue.Submit(*msg, a.process)
		if err == nil {
			a.log.Debug().Str("message_id", id).Str("item", itemID).Msg("Message queued")
			return nil
		}
		if !errors.Is(err, queue.ErrNotStarted) {
			return err
		}
	}

	a.log.Warn().Str("message_id", id).Msg("Queue not running, processing inline")
	return a.process(ctx, *msg)
}

// process runs one message end to end. It is only marked processed once
// the reply went out.
func (a *App) process(ctx context.Context, msg model.ParsedMessage) error {
	logger := a.log.With().Str("message_id", msg.MessageID).Logger()

	out := a.processor.Process(ctx, msg)
	logger.Info().Str("intent", string(out.Intent)).Bool("success", out.Success).
		Str("error", out.Error).Msg("Message processed")

	if err := a.replier.SendConfirmation(ctx, msg, out.Message); err != nil {
		return fmt.Errorf("sending reply: %w", err)
	}

	if err := a.ledger.MarkProcessed(ctx, msg.MessageID, msg.Subject); err != nil {
		return fmt.Errorf("marking processed: %w", err)
	}
	return nil
}

// QueueStatus implements httpd.StatusSource.
func (a *App) QueueStatus() model.QueueStatus { return a.queue.Status() }

// MailboxState implements httpd.StatusSource.
func (a *App) MailboxState() model.ConnectionState { return a.poller.State() }
