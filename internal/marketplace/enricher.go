package marketplace

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/ticket-autobuy/internal/model"
	"github.com/iliyamo/ticket-autobuy/internal/seat"
)

// ProximityRows is how far behind a listing's own row a competing seat may
// sit and still count as comparable.
const ProximityRows = 3

// resaleHaircut is the share of a competing price left after resale fees.
var resaleHaircut = decimal.RequireFromString("0.9")

// PriceSource returns every competing listing for a section of an event.
type PriceSource interface {
	AllListings(ctx context.Context, catalogID, section string) ([]Entry, error)
}

// Enricher fills LowestPrice and ROI on listings.
type Enricher struct {
	source PriceSource
	cache  *PriceCache
	logger *slog.Logger
}

// NewEnricher builds an Enricher.  cache may be nil.
func NewEnricher(source PriceSource, cache *PriceCache, logger *slog.Logger) *Enricher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Enricher{source: source, cache: cache, logger: logger}
}

// Enrich looks up the cheapest comparable seat and sets LowestPrice and ROI
// on l.  Listings without a numeric row or a catalog id are skipped with a
// nil error.  Provider failures return ErrEnrichmentUnavailable and leave
// l untouched.
func (e *Enricher) Enrich(ctx context.Context, l *model.Listing, details *model.EventDetails) error {
	row, ok := seat.NormalizeRow(l.Row)
	if !ok {
		return nil
	}
	if details == nil || details.CatalogID == nil || *details.CatalogID == "" {
		return nil
	}
	catalogID := *details.CatalogID

	entries, hit := e.cache.Get(ctx, catalogID, l.Section)
	if !hit {
		var err error
		entries, err = e.source.AllListings(ctx, catalogID, l.Section)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrEnrichmentUnavailable, err)
		}
		e.cache.Set(ctx, catalogID, l.Section, entries)
	}

	lowest, ok := LowestInWindow(entries, row)
	if !ok {
		e.logger.Debug("no comparable price", "event_id", l.EventID, "section", l.Section, "row", l.Row)
		return nil
	}
	l.LowestPrice = &lowest
	if roi, ok := ROI(lowest, l.PricePlusFees); ok {
		l.ROI = &roi
	}
	return nil
}

// LowestInWindow returns the cheapest positive price, in major units, among
// entries whose row is at most row+ProximityRows.  Entries with rows that do
// not normalize are ignored.
func LowestInWindow(entries []Entry, row int) (float64, bool) {
	var (
		best  int64
		found bool
	)
	limit := row + ProximityRows
	for _, en := range entries {
		if en.Price <= 0 {
			continue
		}
		r, ok := seat.NormalizeRow(string(en.Row))
		if !ok || r > limit {
			continue
		}
		if !found || en.Price < best {
			best = en.Price
			found = true
		}
	}
	if !found {
		return 0, false
	}
	return decimal.New(best, -2).InexactFloat64(), true
}

// ROI estimates the percentage return of buying at pricePlusFees and
// reselling at lowest minus resale fees, rounded to two decimals.
func ROI(lowest, pricePlusFees float64) (float64, bool) {
	if pricePlusFees <= 0 {
		return 0, false
	}
	hundred := decimal.NewFromInt(100)
	r := decimal.NewFromFloat(lowest).
		Div(decimal.NewFromFloat(pricePlusFees)).
		Mul(resaleHaircut).
		Sub(decimal.NewFromInt(1)).
		Mul(hundred).
		Round(2)
	return r.InexactFloat64(), true
}
