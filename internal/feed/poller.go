package feed

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/iliyamo/ticket-autobuy/internal/listing"
	"github.com/iliyamo/ticket-autobuy/internal/model"
)

// Processor turns one validated announcement into a persisted listing.  It
// returns a *listing.ValidationError for bad input; any other error is
// treated as fatal.
type Processor interface {
	Process(ctx context.Context, messageID string, f listing.Fields) (*model.Listing, error)
}

// PollerOptions tunes a Poller.  Zero values pick the defaults.
type PollerOptions struct {
	Interval  time.Duration // default 3s
	PageLimit int           // default 50, max 100
	// SkipInvalid processes the rest of a batch after a validation failure
	// instead of abandoning it.
	SkipInvalid bool
	// StartedAt is the cutoff; older messages are ignored.  Defaults to
	// the time NewPoller is called.
	StartedAt time.Time
}

// Poller is the ingestion loop.  It owns the seen-id set, so one Poller
// must not be driven from more than one goroutine.
type Poller struct {
	source      Source
	proc        Processor
	logger      *slog.Logger
	interval    time.Duration
	limit       int
	skipInvalid bool
	startedAt   time.Time
	seen        map[string]struct{}
}

// BatchResult summarizes one poll cycle.
type BatchResult struct {
	Fetched   int
	Skipped   int
	Rejected  int
	Processed int
	Aborted   bool
}

// NewPoller wires a Poller to its source and processor.
func NewPoller(source Source, proc Processor, logger *slog.Logger, opts PollerOptions) *Poller {
	if opts.Interval <= 0 {
		opts.Interval = 3 * time.Second
	}
	if opts.StartedAt.IsZero() {
		opts.StartedAt = time.Now()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		source:      source,
		proc:        proc,
		logger:      logger,
		interval:    opts.Interval,
		limit:       clampLimit(opts.PageLimit),
		skipInvalid: opts.SkipInvalid,
		startedAt:   opts.StartedAt,
		seen:        make(map[string]struct{}),
	}
}

// Run polls until ctx is cancelled, returning nil on shutdown.  A fatal
// processing error (for example the database going away) stops the loop
// and is returned.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("poller: started", "interval", p.interval, "page_limit", p.limit, "since", p.startedAt)
	t := time.NewTicker(p.interval)
	defer t.Stop()
	for {
		if _, err := p.PollOnce(ctx); err != nil {
			switch {
			case errors.Is(err, ErrProviderUnreachable):
				p.logger.Warn("poller: skipping cycle", "err", err)
			case ctx.Err() != nil && errors.Is(err, ctx.Err()):
				return nil
			default:
				p.logger.Error("poller: halting", "err", err)
				return err
			}
		}
		select {
		case <-ctx.Done():
			p.logger.Info("poller: stopped")
			return nil
		case <-t.C:
		}
	}
}

// PollOnce runs a single fetch-and-process cycle.
func (p *Poller) PollOnce(ctx context.Context) (BatchResult, error) {
	var res BatchResult
	msgs, err := p.source.Fetch(ctx, p.limit)
	if err != nil {
		return res, err
	}
	res.Fetched = len(msgs)

	for _, m := range msgs {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if m.ID == "" || m.Timestamp.IsZero() || m.Timestamp.Before(p.startedAt) {
			res.Skipped++
			continue
		}
		if _, ok := p.seen[m.ID]; ok {
			res.Skipped++
			continue
		}
		p.seen[m.ID] = struct{}{}

		l, err := p.process(ctx, m)
		if err != nil {
			if !isValidation(err) {
				return res, err
			}
			res.Rejected++
			p.logger.Warn("poller: rejected message", "message_id", m.ID, "err", err)
			if p.skipInvalid {
				continue
			}
			res.Aborted = true
			p.logger.Warn("poller: abandoning rest of batch", "remaining", len(msgs)-res.Skipped-res.Rejected-res.Processed)
			return res, nil
		}
		res.Processed++
		p.logger.Info("poller: listing stored", "message_id", m.ID, "listing_id", l.ID, "status", l.Status)
	}
	return res, nil
}

func (p *Poller) process(ctx context.Context, m Message) (*model.Listing, error) {
	f, err := m.Fields()
	if err != nil {
		return nil, err
	}
	return p.proc.Process(ctx, m.ID, f)
}

// Seen reports whether id has been taken by this poller.
func (p *Poller) Seen(id string) bool {
	_, ok := p.seen[id]
	return ok
}

func isValidation(err error) bool {
	var ve *listing.ValidationError
	return errors.As(err, &ve) || errors.Is(err, ErrNoEmbed)
}
