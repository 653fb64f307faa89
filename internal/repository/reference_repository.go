package repository

import (
    "context"
    "database/sql"
    "strings"

    "github.com/iliyamo/ticket-autobuy/internal/database"
    "github.com/iliyamo/ticket-autobuy/internal/model"
)

// ReferenceRepo reads the event_details and bot_accounts tables.  Both are
// owned by an administration surface outside this service; nothing here
// writes to them except the seeding helpers used by tools and tests.
type ReferenceRepo struct{ db *database.DB }

func NewReferenceRepo(db *database.DB) *ReferenceRepo { return &ReferenceRepo{db: db} }

// EventDetails returns the details for an external event id or ErrNotFound.
func (r *ReferenceRepo) EventDetails(ctx context.Context, eventID string) (*model.EventDetails, error) {
    var (
        d         model.EventDetails
        catalogID sql.NullString
    )
    q := r.db.Rebind(`SELECT id, event_id, event_name, catalog_id, created_at FROM event_details WHERE event_id = ? LIMIT 1`)
    err := r.db.QueryRowContext(ctx, q, strings.TrimSpace(eventID)).
        Scan(&d.ID, &d.EventID, &d.EventName, &catalogID, &d.CreatedAt)
    if err != nil {
        return nil, notFound(err)
    }
    if catalogID.Valid && catalogID.String != "" {
        v := catalogID.String
        d.CatalogID = &v
    }
    return &d, nil
}

// BotAccount returns the account registered under email or ErrNotFound.
func (r *ReferenceRepo) BotAccount(ctx context.Context, email string) (*model.BotAccount, error) {
    var a model.BotAccount
    q := r.db.Rebind(`SELECT id, email, credential, created_at FROM bot_accounts WHERE email = ? LIMIT 1`)
    err := r.db.QueryRowContext(ctx, q, strings.TrimSpace(email)).
        Scan(&a.ID, &a.Email, &a.Credential, &a.CreatedAt)
    if err != nil {
        return nil, notFound(err)
    }
    return &a, nil
}

// AddEventDetails inserts an event_details row.
func (r *ReferenceRepo) AddEventDetails(ctx context.Context, d *model.EventDetails) error {
    id, err := r.db.InsertID(ctx,
        `INSERT INTO event_details (event_id, event_name, catalog_id) VALUES (?, ?, ?)`,
        d.EventID, d.EventName, nullString(d.CatalogID))
    if err != nil {
        return err
    }
    d.ID = id
    return nil
}

// AddBotAccount inserts a bot_accounts row.
func (r *ReferenceRepo) AddBotAccount(ctx context.Context, a *model.BotAccount) error {
    id, err := r.db.InsertID(ctx,
        `INSERT INTO bot_accounts (email, credential) VALUES (?, ?)`,
        a.Email, a.Credential)
    if err != nil {
        return err
    }
    a.ID = id
    return nil
}
