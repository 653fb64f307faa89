package model

import "time"

// ApprovalRule authorizes automatic purchase of listings in Section whose
// normalized row is at least MinRow.  A nil EventID makes the rule apply to
// every event.
//
// Fields:
//  ID        – primary key identifier.
//  EventID   – event the rule is scoped to (nil for all events).
//  Section   – normalized section token such as "100x".
//  MinRow    – minimum normalized row that qualifies.
//  CreatedAt – creation timestamp.
type ApprovalRule struct {
    ID        uint64    // approval_rules.id
    EventID   *string   // approval_rules.event_id (nullable)
    Section   string    // approval_rules.section
    MinRow    int       // approval_rules.min_row
    CreatedAt time.Time // approval_rules.created_at
}
