package repository

import (
    "context"
    "database/sql"
    "strings"
    "time"

    "github.com/iliyamo/ticket-autobuy/internal/database"
    "github.com/iliyamo/ticket-autobuy/internal/model"
)

// ListingRepo persists listings.  Every listing is inserted once with its
// final pipeline status; later changes are limited to the guarded buy
// transition and the soft delete flag.  Timestamps are written in UTC.
type ListingRepo struct {
    db  *database.DB
    now func() time.Time
}

// NewListingRepo returns a ListingRepo bound to the given database.
func NewListingRepo(db *database.DB) *ListingRepo {
    return &ListingRepo{db: db, now: func() time.Time { return time.Now().UTC() }}
}

const listingColumns = `id, message_id, event_id, event_name, bot_email, section, row_label,
    price, full_price, amount, price_plus_fees, lowest_price, roi, purchase_url, credential,
    status, expires_at, is_active, created_at, updated_at`

// ListFilter narrows List.  A nil Active returns both active and deleted
// listings; an empty EventID matches every event.
type ListFilter struct {
    Active  *bool
    EventID string
    Limit   int
    Offset  int
}

// Create inserts l and populates its ID and timestamps.
func (r *ListingRepo) Create(ctx context.Context, l *model.Listing) error {
    now := r.now()
    const q = `INSERT INTO listings (message_id, event_id, event_name, bot_email, section, row_label,
        price, full_price, amount, price_plus_fees, lowest_price, roi, purchase_url, credential,
        status, expires_at, is_active, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
    id, err := r.db.InsertID(ctx, q,
        l.MessageID, l.EventID, nullString(l.EventName), l.BotEmail, l.Section, l.Row,
        l.Price, l.FullPrice, l.Amount, l.PricePlusFees, nullFloat(l.LowestPrice), nullFloat(l.ROI),
        l.PurchaseURL, nullString(l.Credential), l.Status, l.ExpiresAt.UTC(), l.IsActive, now, now,
    )
    if err != nil {
        return err
    }
    l.ID = id
    l.CreatedAt = now
    l.UpdatedAt = now
    return nil
}

// GetByID returns a listing regardless of its active flag.  ErrNotFound
// is returned when no row has the id.
func (r *ListingRepo) GetByID(ctx context.Context, id uint64) (*model.Listing, error) {
    q := r.db.Rebind(`SELECT ` + listingColumns + ` FROM listings WHERE id = ?`)
    l, err := scanListing(r.db.QueryRowContext(ctx, q, id))
    if err != nil {
        return nil, notFound(err)
    }
    return l, nil
}

// List returns listings newest first.  Limit falls back to 50 when unset.
func (r *ListingRepo) List(ctx context.Context, f ListFilter) ([]model.Listing, error) {
    var (
        where []string
        args  []any
    )
    if f.Active != nil {
        where = append(where, "is_active = ?")
        args = append(args, *f.Active)
    }
    if f.EventID != "" {
        where = append(where, "event_id = ?")
        args = append(args, f.EventID)
    }
    limit := f.Limit
    if limit <= 0 {
        limit = 50
    }
    offset := f.Offset
    if offset < 0 {
        offset = 0
    }
    q := `SELECT ` + listingColumns + ` FROM listings`
    if len(where) > 0 {
        q += ` WHERE ` + strings.Join(where, " AND ")
    }
    q += ` ORDER BY id DESC LIMIT ? OFFSET ?`
    args = append(args, limit, offset)

    rows, err := r.db.QueryContext(ctx, r.db.Rebind(q), args...)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := make([]model.Listing, 0)
    for rows.Next() {
        l, err := scanListing(rows)
        if err != nil {
            return nil, err
        }
        out = append(out, *l)
    }
    return out, rows.Err()
}

// Claim marks an active listing in one of the given statuses as being
// dispatched by the holder of token.  A claim older than staleBefore is
// considered abandoned and may be taken over.  ErrConflict is returned
// when the listing cannot be claimed.
func (r *ListingRepo) Claim(ctx context.Context, id uint64, token string, staleBefore time.Time, statuses ...string) error {
    if len(statuses) == 0 {
        statuses = []string{model.StatusNew}
    }
    marks := strings.TrimSuffix(strings.Repeat("?,", len(statuses)), ",")
    q := `UPDATE listings SET claim_token = ?, claimed_at = ?, updated_at = ?
        WHERE id = ? AND is_active = ? AND status IN (` + marks + `)
        AND (claim_token IS NULL OR claimed_at < ?)`
    now := r.now()
    args := []any{token, now, now, id, true}
    for _, s := range statuses {
        args = append(args, s)
    }
    args = append(args, staleBefore.UTC())
    res, err := r.db.ExecContext(ctx, r.db.Rebind(q), args...)
    if err != nil {
        return err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return err
    }
    if n == 0 {
        return ErrConflict
    }
    return nil
}

// Resolve records the dispatch outcome for a claimed listing and releases
// the claim.  It only succeeds for the holder of token.
func (r *ListingRepo) Resolve(ctx context.Context, id uint64, token, status string) error {
    const q = `UPDATE listings SET status = ?, claim_token = NULL, claimed_at = NULL, updated_at = ?
        WHERE id = ? AND claim_token = ?`
    res, err := r.db.ExecContext(ctx, r.db.Rebind(q), status, r.now(), id, token)
    if err != nil {
        return err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return err
    }
    if n == 0 {
        return ErrConflict
    }
    return nil
}

// SoftDelete flips is_active to false.  History is never removed.
func (r *ListingRepo) SoftDelete(ctx context.Context, id uint64) error {
    const q = `UPDATE listings SET is_active = ?, updated_at = ? WHERE id = ?`
    res, err := r.db.ExecContext(ctx, r.db.Rebind(q), false, r.now(), id)
    if err != nil {
        return err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return err
    }
    if n > 0 {
        return nil
    }
    // Drivers that report changed rows return 0 when nothing changed.
    var one int
    err = r.db.QueryRowContext(ctx, r.db.Rebind(`SELECT 1 FROM listings WHERE id = ?`), id).Scan(&one)
    return notFound(err)
}

type rowScanner interface {
    Scan(dest ...any) error
}

func scanListing(s rowScanner) (*model.Listing, error) {
    var (
        l           model.Listing
        eventName   sql.NullString
        credential  sql.NullString
        lowestPrice sql.NullFloat64
        roi         sql.NullFloat64
    )
    err := s.Scan(
        &l.ID, &l.MessageID, &l.EventID, &eventName, &l.BotEmail, &l.Section, &l.Row,
        &l.Price, &l.FullPrice, &l.Amount, &l.PricePlusFees, &lowestPrice, &roi, &l.PurchaseURL, &credential,
        &l.Status, &l.ExpiresAt, &l.IsActive, &l.CreatedAt, &l.UpdatedAt,
    )
    if err != nil {
        return nil, err
    }
    if eventName.Valid {
        v := eventName.String
        l.EventName = &v
    }
    if credential.Valid {
        v := credential.String
        l.Credential = &v
    }
    if lowestPrice.Valid {
        v := lowestPrice.Float64
        l.LowestPrice = &v
    }
    if roi.Valid {
        v := roi.Float64
        l.ROI = &v
    }
    return &l, nil
}

func nullString(s *string) sql.NullString {
    if s == nil {
        return sql.NullString{}
    }
    return sql.NullString{String: *s, Valid: true}
}

func nullFloat(f *float64) sql.NullFloat64 {
    if f == nil {
        return sql.NullFloat64{}
    }
    return sql.NullFloat64{Float64: *f, Valid: true}
}
