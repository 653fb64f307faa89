package model

import "time"

// EventDetails maps an external event id to its display name and to the
// catalog id used by the marketplace price API.  Rows are maintained
// outside this service.
type EventDetails struct {
    ID        uint64    // event_details.id
    EventID   string    // event_details.event_id
    EventName string    // event_details.event_name
    CatalogID *string   // event_details.catalog_id (nullable)
    CreatedAt time.Time // event_details.created_at
}

// BotAccount holds the verification credential for a purchasing account.
type BotAccount struct {
    ID         uint64    // bot_accounts.id
    Email      string    // bot_accounts.email
    Credential string    // bot_accounts.credential
    CreatedAt  time.Time // bot_accounts.created_at
}
