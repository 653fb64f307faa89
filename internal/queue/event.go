// Package queue defines the listing audit events exchanged over the message
// broker and the consumer that writes them to the audit log.
package queue

// ListingProcessedQueue is the durable queue listing audit events go to.
const ListingProcessedQueue = "listing.processed"

// Triggers recorded on ListingProcessedEvent.
const (
    TriggerFeed   = "feed"
    TriggerManual = "manual"
)

// ListingProcessedEvent is published whenever a listing reaches the
// database with a decided status, either straight from the feed or after
// a manual buy.  It carries enough for the audit log without a database
// read.
type ListingProcessedEvent struct {
    ListingID     uint64   `json:"listing_id"`
    MessageID     string   `json:"message_id"`
    EventID       string   `json:"event_id"`
    EventName     string   `json:"event_name,omitempty"`
    BotEmail      string   `json:"bot_email"`
    Section       string   `json:"section"`
    Row           string   `json:"row"`
    Amount        int      `json:"amount"`
    PricePlusFees float64  `json:"price_plus_fees"`
    LowestPrice   *float64 `json:"lowest_price,omitempty"`
    ROI           *float64 `json:"roi,omitempty"`
    Status        string   `json:"status"`
    Trigger       string   `json:"trigger"`
    ExpiresAt     string   `json:"expires_at"`
    ProcessedAt   string   `json:"processed_at"`
}
