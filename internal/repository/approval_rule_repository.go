package repository

import (
    "context"
    "database/sql"

    "github.com/iliyamo/ticket-autobuy/internal/database"
    "github.com/iliyamo/ticket-autobuy/internal/model"
)

// ApprovalRuleRepo reads and appends auto-approval rules.
type ApprovalRuleRepo struct{ db *database.DB }

func NewApprovalRuleRepo(db *database.DB) *ApprovalRuleRepo { return &ApprovalRuleRepo{db: db} }

// List returns every stored rule ordered by id.
func (r *ApprovalRuleRepo) List(ctx context.Context) ([]model.ApprovalRule, error) {
    rows, err := r.db.QueryContext(ctx,
        `SELECT id, event_id, section, min_row, created_at FROM approval_rules ORDER BY id`)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := make([]model.ApprovalRule, 0)
    for rows.Next() {
        var (
            rule    model.ApprovalRule
            eventID sql.NullString
        )
        if err := rows.Scan(&rule.ID, &eventID, &rule.Section, &rule.MinRow, &rule.CreatedAt); err != nil {
            return nil, err
        }
        if eventID.Valid && eventID.String != "" {
            v := eventID.String
            rule.EventID = &v
        }
        out = append(out, rule)
    }
    return out, rows.Err()
}

// CreateBulkTx inserts rules within one transaction so an import either
// lands completely or not at all.
func (r *ApprovalRuleRepo) CreateBulkTx(ctx context.Context, rules []model.ApprovalRule) error {
    if len(rules) == 0 {
        return nil
    }
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()
    q := r.db.Rebind(`INSERT INTO approval_rules (event_id, section, min_row) VALUES (?, ?, ?)`)
    for i := range rules {
        if _, err := tx.ExecContext(ctx, q, nullString(rules[i].EventID), rules[i].Section, rules[i].MinRow); err != nil {
            return err
        }
    }
    if err := tx.Commit(); err != nil {
        return err
    }
    committed = true
    return nil
}
