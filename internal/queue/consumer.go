package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "log/slog"
    "os"
    "path/filepath"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
)

// StartListingConsumer connects to RabbitMQ, declares the listing.processed
// queue (durable) and appends every event to <dir>/listings.log as one
// human-readable line.  It reconnects with backoff until ctx is done and
// then returns ctx.Err().  Bad messages are logged and rejected so the
// server keeps running.
func StartListingConsumer(ctx context.Context, url, dir string, logger *slog.Logger) error {
    if dir == "" {
        dir = "logs"
    }
    backoff := time.Second
    for {
        conn, err := amqp.Dial(url)
        if err != nil {
            logger.Warn("listing-consumer: failed to dial broker", "err", err, "retry_in", backoff)
            if !sleepCtx(ctx, backoff) {
                return ctx.Err()
            }
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second

        err = consumeLoop(ctx, conn, dir, logger)
        _ = conn.Close()
        if ctx.Err() != nil {
            return ctx.Err()
        }
        logger.Warn("listing-consumer: consume loop ended; reconnecting", "err", err)
        if !sleepCtx(ctx, 2*time.Second) {
            return ctx.Err()
        }
    }
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
    select {
    case <-ctx.Done():
        return false
    case <-time.After(d):
        return true
    }
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, dir string, logger *slog.Logger) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(50, 0, false); err != nil {
        logger.Warn("listing-consumer: set QoS failed", "err", err)
    }
    if _, err := ch.QueueDeclare(ListingProcessedQueue, true, false, false, false, nil); err != nil {
        return fmt.Errorf("queue declare: %w", err)
    }
    msgs, err := ch.Consume(ListingProcessedQueue, "", false, false, false, false, nil)
    if err != nil {
        return fmt.Errorf("queue consume: %w", err)
    }

    for {
        select {
        case <-ctx.Done():
            return ctx.Err()
        case d, ok := <-msgs:
            if !ok {
                return errors.New("deliveries channel closed")
            }
            if err := AppendAuditLine(dir, d.Body); err != nil {
                logger.Warn("listing-consumer: handle message failed", "err", err)
                _ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
                continue
            }
            _ = d.Ack(false)
        }
    }
}

// AppendAuditLine decodes one ListingProcessedEvent and appends its line
// to <dir>/listings.log.
func AppendAuditLine(dir string, body []byte) error {
    var ev ListingProcessedEvent
    if err := json.Unmarshal(body, &ev); err != nil {
        return fmt.Errorf("unmarshal: %w", err)
    }
    if err := os.MkdirAll(dir, 0o755); err != nil {
        return fmt.Errorf("mkdir %s: %w", dir, err)
    }
    f, err := os.OpenFile(filepath.Join(dir, "listings.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
    if err != nil {
        return fmt.Errorf("open log file: %w", err)
    }
    defer f.Close()
    if _, err := f.WriteString(FormatAuditLine(ev)); err != nil {
        return fmt.Errorf("write log: %w", err)
    }
    return nil
}

// FormatAuditLine renders ev as a single newline-terminated line.
func FormatAuditLine(ev ListingProcessedEvent) string {
    return fmt.Sprintf("[%s] Listing %s | listing_id=%d | message_id=%s | trigger=%s | event=%s %q | account=%s | seat=%s/%s x%d | ppf=%.2f | lowest=%s | roi=%s | expires=%s\n",
        ev.ProcessedAt, ev.Status, ev.ListingID, ev.MessageID, ev.Trigger, ev.EventID, ev.EventName,
        ev.BotEmail, ev.Section, ev.Row, ev.Amount, ev.PricePlusFees, optional(ev.LowestPrice), optional(ev.ROI), ev.ExpiresAt)
}

func optional(f *float64) string {
    if f == nil {
        return "-"
    }
    return fmt.Sprintf("%.2f", *f)
}
