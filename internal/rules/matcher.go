// Package rules decides whether a listing is auto-approved for purchase.
package rules

import (
	"strings"

	"github.com/iliyamo/ticket-autobuy/internal/model"
	"github.com/iliyamo/ticket-autobuy/internal/seat"
)

// Approves reports whether at least one rule covers l: same normalized
// section, a minimum row at or below the listing's row, and, for
// event-scoped rules, the same event.  Listings whose section or row does
// not normalize are never approved.
func Approves(l *model.Listing, rules []model.ApprovalRule) bool {
	section, ok := seat.NormalizeSection(l.Section)
	if !ok {
		return false
	}
	row, ok := seat.NormalizeRow(l.Row)
	if !ok {
		return false
	}
	for _, r := range rules {
		if r.EventID != nil && *r.EventID != "" && *r.EventID != l.EventID {
			continue
		}
		token, ok := SectionToken(r.Section)
		if !ok || token != section {
			continue
		}
		if r.MinRow <= row {
			return true
		}
	}
	return false
}

// SectionToken normalizes a rule's section.  Rules may be stored either as
// a token ("100x") or as any section inside the bucket ("134").
func SectionToken(raw string) (string, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if strings.HasSuffix(s, "x") {
		if tok, ok := seat.NormalizeSection(strings.TrimSuffix(s, "x")); ok && tok == s {
			return tok, true
		}
		return "", false
	}
	return seat.NormalizeSection(s)
}
