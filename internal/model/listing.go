package model

import "time"

// Listing status values.  A listing is written once with its resolved
// status; only the manual buy trigger moves it afterwards.
const (
    StatusNew       = "new"
    StatusScheduled = "scheduled"
    StatusFailed    = "failed"
)

// Listing is one ticket resale opportunity extracted from a feed message.
// It corresponds to a row in the `listings` table.
//
// Fields:
//  ID            – primary key, assigned on insert.
//  MessageID     – id of the feed message the listing came from.
//  EventID       – external event identifier.
//  EventName     – display name from event_details (nil when unknown).
//  BotEmail      – account that holds the checkout session.
//  Section, Row  – raw seat labels as announced.
//  Price         – unit price as announced.
//  FullPrice     – total price for all seats including fees.
//  Amount        – number of seats.
//  PricePlusFees – FullPrice / Amount rounded to cents.
//  LowestPrice   – cheapest comparable competing price (nil when unknown).
//  ROI           – estimated resale return in percent (nil when unknown).
//  PurchaseURL   – checkout link handed to the checkout service.
//  Credential    – verification code of the bot account (nil when unknown).
//  Status        – new, scheduled or failed.
//  ExpiresAt     – when the checkout session expires.
//  IsActive      – soft delete flag.
type Listing struct {
    ID            uint64     // listings.id
    MessageID     string     // listings.message_id
    EventID       string     // listings.event_id
    EventName     *string    // listings.event_name (nullable)
    BotEmail      string     // listings.bot_email
    Section       string     // listings.section
    Row           string     // listings.row_label
    Price         float64    // listings.price
    FullPrice     float64    // listings.full_price
    Amount        int        // listings.amount
    PricePlusFees float64    // listings.price_plus_fees
    LowestPrice   *float64   // listings.lowest_price (nullable)
    ROI           *float64   // listings.roi (nullable)
    PurchaseURL   string     // listings.purchase_url
    Credential    *string    // listings.credential (nullable)
    Status        string     // listings.status
    ExpiresAt     time.Time  // listings.expires_at
    IsActive      bool       // listings.is_active
    CreatedAt     time.Time  // listings.created_at
    UpdatedAt     time.Time  // listings.updated_at
}

// Dispatchable reports whether the listing carries everything the checkout
// service needs.
func (l *Listing) Dispatchable() bool {
    return l.PurchaseURL != "" && l.Credential != nil && *l.Credential != ""
}

// Expired reports whether the checkout session has lapsed at now.
func (l *Listing) Expired(now time.Time) bool {
    return !l.ExpiresAt.IsZero() && !l.ExpiresAt.After(now)
}
