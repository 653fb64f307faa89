// Package service holds the listing pipeline: the steps between a
// validated feed announcement and a persisted, decided listing, and the
// manual buy trigger that re-enters checkout later.
package service

import (
    "context"
    "errors"
    "fmt"
    "log/slog"
    "time"

    "github.com/google/uuid"

    "github.com/iliyamo/ticket-autobuy/internal/checkout"
    "github.com/iliyamo/ticket-autobuy/internal/listing"
    "github.com/iliyamo/ticket-autobuy/internal/model"
    q "github.com/iliyamo/ticket-autobuy/internal/queue"
    "github.com/iliyamo/ticket-autobuy/internal/repository"
    "github.com/iliyamo/ticket-autobuy/internal/rules"
)

var (
    // ErrExpired is returned by BuyNow when the checkout session has lapsed.
    ErrExpired = errors.New("listing expired")
    // ErrAlreadyScheduled is returned by BuyNow for a listing that was
    // already handed to checkout successfully.
    ErrAlreadyScheduled = errors.New("listing already scheduled")
)

// claimTTL is how long a manual buy may hold a listing before another
// trigger is allowed to take it over.
const claimTTL = 2 * time.Minute

// ListingStore is the persistence the pipeline needs.
type ListingStore interface {
    Create(ctx context.Context, l *model.Listing) error
    GetByID(ctx context.Context, id uint64) (*model.Listing, error)
    Claim(ctx context.Context, id uint64, token string, staleBefore time.Time, statuses ...string) error
    Resolve(ctx context.Context, id uint64, token, status string) error
}

// RuleLister returns the stored approval rules.
type RuleLister interface {
    List(ctx context.Context) ([]model.ApprovalRule, error)
}

// Enricher sets competing-price data on a listing.
type Enricher interface {
    Enrich(ctx context.Context, l *model.Listing, details *model.EventDetails) error
}

// Dispatcher hands a listing to checkout.
type Dispatcher interface {
    Dispatch(ctx context.Context, l *model.Listing) (string, error)
}

// EventPublisher receives an audit event per decided listing.
type EventPublisher interface {
    PublishListingProcessed(ctx context.Context, ev q.ListingProcessedEvent) error
}

// Deps groups the collaborators of a Pipeline.  Enricher and Publisher
// are optional.
type Deps struct {
    Listings   ListingStore
    References repository.ReferenceReader
    Rules      RuleLister
    Enricher   Enricher
    Dispatcher Dispatcher
    Publisher  EventPublisher
    Logger     *slog.Logger
}

// Pipeline processes one listing at a time.  It is safe for concurrent
// use as long as its collaborators are.
type Pipeline struct {
    listings   ListingStore
    refs       repository.ReferenceReader
    rules      RuleLister
    enricher   Enricher
    dispatcher Dispatcher
    publisher  EventPublisher
    logger     *slog.Logger
    now        func() time.Time
}

// NewPipeline builds a Pipeline from d.
func NewPipeline(d Deps) *Pipeline {
    logger := d.Logger
    if logger == nil {
        logger = slog.Default()
    }
    return &Pipeline{
        listings:   d.Listings,
        refs:       d.References,
        rules:      d.Rules,
        enricher:   d.Enricher,
        dispatcher: d.Dispatcher,
        publisher:  d.Publisher,
        logger:     logger,
        now:        time.Now,
    }
}

// Process validates f, enriches and rules on the resulting listing,
// dispatches it when approved and persists it exactly once with its final
// status.  Validation failures come back as *listing.ValidationError and
// nothing is stored.  Enrichment and dispatch failures are absorbed into
// the listing; any other error means a store could not be read or written.
//
// Cancelling ctx does not interrupt a message already in flight: a checkout
// that went through must still be stored.  Callers stop between messages.
func (p *Pipeline) Process(ctx context.Context, messageID string, f listing.Fields) (*model.Listing, error) {
    ctx = context.WithoutCancel(ctx)
    l, err := listing.Build(messageID, f)
    if err != nil {
        return nil, err
    }

    details, err := p.refs.EventDetails(ctx, l.EventID)
    switch {
    case err == nil:
        name := details.EventName
        l.EventName = &name
    case errors.Is(err, repository.ErrNotFound):
        details = nil
        p.logger.Info("pipeline: unknown event", "event_id", l.EventID)
    default:
        return nil, fmt.Errorf("event details %q: %w", l.EventID, err)
    }

    account, err := p.refs.BotAccount(ctx, l.BotEmail)
    switch {
    case err == nil:
        cred := account.Credential
        l.Credential = &cred
    case errors.Is(err, repository.ErrNotFound):
        p.logger.Info("pipeline: unknown bot account", "email", l.BotEmail)
    default:
        return nil, fmt.Errorf("bot account %q: %w", l.BotEmail, err)
    }

    if p.enricher != nil {
        if err := p.enricher.Enrich(ctx, l, details); err != nil {
            p.logger.Warn("pipeline: enrichment skipped", "message_id", messageID, "err", err)
        }
    }

    rs, err := p.rules.List(ctx)
    if err != nil {
        return nil, fmt.Errorf("approval rules: %w", err)
    }
    if rules.Approves(l, rs) {
        p.dispatch(ctx, l)
    }

    if err := p.listings.Create(ctx, l); err != nil {
        return nil, fmt.Errorf("store listing %q: %w", messageID, err)
    }
    p.publish(ctx, l, q.TriggerFeed)
    return l, nil
}

func (p *Pipeline) dispatch(ctx context.Context, l *model.Listing) {
    status, err := p.dispatcher.Dispatch(ctx, l)
    switch {
    case errors.Is(err, checkout.ErrNotDispatchable):
        p.logger.Warn("pipeline: approved but not dispatchable", "message_id", l.MessageID,
            "has_url", l.PurchaseURL != "", "has_credential", l.Credential != nil)
        return
    case err != nil:
        p.logger.Error("pipeline: dispatch failed", "message_id", l.MessageID, "err", err)
    default:
        p.logger.Info("pipeline: dispatched", "message_id", l.MessageID)
    }
    l.Status = status
}

// BuyNow dispatches a stored listing on demand.  Only active, unexpired
// listings in status new or failed qualify.  A database claim makes sure
// two concurrent triggers cannot both reach checkout; the loser gets
// repository.ErrConflict.  A failed dispatch is not an error: the returned
// listing carries status failed.
func (p *Pipeline) BuyNow(ctx context.Context, id uint64) (*model.Listing, error) {
    l, err := p.listings.GetByID(ctx, id)
    if err != nil {
        return nil, err
    }
    now := p.now()
    switch {
    case !l.IsActive:
        return nil, repository.ErrNotFound
    case l.Status == model.StatusScheduled:
        return nil, ErrAlreadyScheduled
    case l.Expired(now):
        return nil, ErrExpired
    case !l.Dispatchable():
        return nil, checkout.ErrNotDispatchable
    }

    token := uuid.NewString()
    if err := p.listings.Claim(ctx, id, token, now.Add(-claimTTL), model.StatusNew, model.StatusFailed); err != nil {
        return nil, err
    }

    status, derr := p.dispatcher.Dispatch(ctx, l)
    if derr != nil {
        p.logger.Error("pipeline: manual dispatch failed", "listing_id", id, "err", derr)
    }
    if status == "" {
        status = model.StatusFailed
    }
    // The outcome must be recorded even if the caller went away.
    if err := p.listings.Resolve(context.WithoutCancel(ctx), id, token, status); err != nil {
        return nil, fmt.Errorf("resolve listing %d: %w", id, err)
    }
    l.Status = status
    l.UpdatedAt = now
    p.publish(ctx, l, q.TriggerManual)
    return l, nil
}

func (p *Pipeline) publish(ctx context.Context, l *model.Listing, trigger string) {
    if p.publisher == nil {
        return
    }
    ev := q.ListingProcessedEvent{
        ListingID:     l.ID,
        MessageID:     l.MessageID,
        EventID:       l.EventID,
        BotEmail:      l.BotEmail,
        Section:       l.Section,
        Row:           l.Row,
        Amount:        l.Amount,
        PricePlusFees: l.PricePlusFees,
        LowestPrice:   l.LowestPrice,
        ROI:           l.ROI,
        Status:        l.Status,
        Trigger:       trigger,
        ExpiresAt:     l.ExpiresAt.UTC().Format(time.RFC3339),
        ProcessedAt:   p.now().UTC().Format(time.RFC3339),
    }
    if l.EventName != nil {
        ev.EventName = *l.EventName
    }
    if err := p.publisher.PublishListingProcessed(ctx, ev); err != nil {
        p.logger.Warn("pipeline: audit publish failed", "listing_id", l.ID, "err", err)
    }
}
