// Package listing validates the name/value fields of a feed announcement
// and builds a typed model.Listing from them.
package listing

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/ticket-autobuy/internal/model"
)

// Field names as they appear in announcements.  Matching is exact and
// case-sensitive.
const (
	FieldEventID      = "Event ID"
	FieldAccount      = "Account"
	FieldSection      = "Section"
	FieldRow          = "Row"
	FieldPrice        = "Price"
	FieldFullPrice    = "Full price"
	FieldAmount       = "Amount"
	FieldExpiration   = "Expiration"
	FieldFullCheckout = "Full checkout"
)

// RequiredFields lists every field a listing needs, in the order they are
// checked.
var RequiredFields = []string{
	FieldEventID, FieldAccount, FieldSection, FieldRow, FieldPrice,
	FieldFullPrice, FieldAmount, FieldExpiration, FieldFullCheckout,
}

// Validation failure kinds.  Each aborts the listing it was raised for.
var (
	ErrMissingField      = errors.New("missing field")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidExpiration = errors.New("invalid expiration")
)

// ValidationError reports which field rejected an announcement.  Kind is
// one of the sentinel errors above and is matched by errors.Is.
type ValidationError struct {
	Kind  error
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %q: %v", e.Kind, e.Field, e.Err)
	}
	return fmt.Sprintf("%s %q", e.Kind, e.Field)
}

func (e *ValidationError) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

// Fields is the name -> value mapping extracted from one announcement.
type Fields map[string]string

// Expiration tokens wrap a unix epoch, e.g. "<t:1767225600:R>".
const (
	expirationPrefix = "<t:"
	expirationSuffix = ":R>"
)

// Build validates f and returns a listing with status new and
// is_active set.  Event name, credential and pricing enrichment are left
// for later stages.
func Build(messageID string, f Fields) (*model.Listing, error) {
	for _, name := range RequiredFields {
		if strings.TrimSpace(f[name]) == "" {
			return nil, &ValidationError{Kind: ErrMissingField, Field: name}
		}
	}

	price, err := parseMoney(f[FieldPrice])
	if err != nil {
		return nil, &ValidationError{Kind: ErrInvalidAmount, Field: FieldPrice, Err: err}
	}
	fullPrice, err := parseMoney(f[FieldFullPrice])
	if err != nil || !fullPrice.IsPositive() {
		return nil, &ValidationError{Kind: ErrInvalidAmount, Field: FieldFullPrice, Err: err}
	}
	amount, err := strconv.Atoi(strings.TrimSpace(f[FieldAmount]))
	if err != nil || amount <= 0 {
		return nil, &ValidationError{Kind: ErrInvalidAmount, Field: FieldAmount, Err: err}
	}
	expiresAt, err := ParseExpiration(f[FieldExpiration])
	if err != nil {
		return nil, &ValidationError{Kind: ErrInvalidExpiration, Field: FieldExpiration, Err: err}
	}

	return &model.Listing{
		MessageID:     messageID,
		EventID:       strings.TrimSpace(f[FieldEventID]),
		BotEmail:      strings.TrimSpace(f[FieldAccount]),
		Section:       strings.TrimSpace(f[FieldSection]),
		Row:           strings.TrimSpace(f[FieldRow]),
		Price:         price.InexactFloat64(),
		FullPrice:     fullPrice.Round(2).InexactFloat64(),
		Amount:        amount,
		PricePlusFees: PricePlusFees(fullPrice, amount),
		PurchaseURL:   strings.TrimSpace(f[FieldFullCheckout]),
		Status:        model.StatusNew,
		ExpiresAt:     expiresAt,
		IsActive:      true,
	}, nil
}

// PricePlusFees is the all-in cost of one seat rounded to cents.
func PricePlusFees(fullPrice decimal.Decimal, amount int) float64 {
	if amount <= 0 {
		return 0
	}
	return fullPrice.Div(decimal.NewFromInt(int64(amount))).Round(2).InexactFloat64()
}

// ParseExpiration reads the relative timestamp token and returns the
// absolute instant it encodes.
func ParseExpiration(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, expirationPrefix)
	s = strings.TrimSuffix(s, expirationSuffix)
	epoch, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse epoch: %w", err)
	}
	return time.Unix(epoch, 0).UTC(), nil
}

// parseMoney accepts plain decimals as well as "$1,234.50".
func parseMoney(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	return decimal.NewFromString(s)
}
