package handler // handler package contains the listing API handlers

import (
    "context"  // context is passed through to the repository and pipeline
    "errors"   // errors matches sentinel errors from lower layers
    "net/http" // http provides status code constants
    "strconv"  // strconv parses ids and paging parameters
    "strings"  // strings trims query parameters
    "time"     // time formats timestamps in responses

    "github.com/labstack/echo/v4" // echo is the web framework used for handlers

    "github.com/iliyamo/ticket-autobuy/internal/checkout"
    "github.com/iliyamo/ticket-autobuy/internal/model"
    "github.com/iliyamo/ticket-autobuy/internal/repository"
    "github.com/iliyamo/ticket-autobuy/internal/service"
)

const (
    defaultPageLimit = 50
    maxPageLimit     = 200
)

// ListingStore is the slice of the listing repository the API reads and
// soft-deletes through.
type ListingStore interface {
    List(ctx context.Context, f repository.ListFilter) ([]model.Listing, error)
    GetByID(ctx context.Context, id uint64) (*model.Listing, error)
    SoftDelete(ctx context.Context, id uint64) error
}

// Buyer triggers a manual purchase.
type Buyer interface {
    BuyNow(ctx context.Context, id uint64) (*model.Listing, error)
}

// ListingHandler serves /v1/listings.
type ListingHandler struct {
    Listings ListingStore // Listings provides listing persistence
    Buyer    Buyer        // Buyer re-enters checkout on demand
}

// NewListingHandler constructs a ListingHandler and panics if a dependency is nil.
func NewListingHandler(listings ListingStore, buyer Buyer) *ListingHandler {
    if listings == nil || buyer == nil {
        panic("nil dependency passed to NewListingHandler")
    }
    return &ListingHandler{Listings: listings, Buyer: buyer}
}

// listingResponse is the public shape of a listing.  The bot credential is
// never exposed; HasCredential tells operators whether checkout can run.
type listingResponse struct {
    ID            uint64   `json:"id"`
    MessageID     string   `json:"message_id"`
    EventID       string   `json:"event_id"`
    EventName     *string  `json:"event_name"`
    BotEmail      string   `json:"bot_email"`
    Section       string   `json:"section"`
    Row           string   `json:"row"`
    Price         float64  `json:"price"`
    FullPrice     float64  `json:"full_price"`
    Amount        int      `json:"amount"`
    PricePlusFees float64  `json:"price_plus_fees"`
    LowestPrice   *float64 `json:"lowest_price"`
    ROI           *float64 `json:"roi"`
    PurchaseURL   string   `json:"purchase_url"`
    HasCredential bool     `json:"has_credential"`
    Status        string   `json:"status"`
    ExpiresAt     string   `json:"expires_at"`
    IsActive      bool     `json:"is_active"`
    CreatedAt     string   `json:"created_at"`
    UpdatedAt     string   `json:"updated_at"`
}

func toResponse(l *model.Listing) listingResponse {
    return listingResponse{
        ID:            l.ID,
        MessageID:     l.MessageID,
        EventID:       l.EventID,
        EventName:     l.EventName,
        BotEmail:      l.BotEmail,
        Section:       l.Section,
        Row:           l.Row,
        Price:         l.Price,
        FullPrice:     l.FullPrice,
        Amount:        l.Amount,
        PricePlusFees: l.PricePlusFees,
        LowestPrice:   l.LowestPrice,
        ROI:           l.ROI,
        PurchaseURL:   l.PurchaseURL,
        HasCredential: l.Credential != nil && *l.Credential != "",
        Status:        l.Status,
        ExpiresAt:     l.ExpiresAt.UTC().Format(time.RFC3339),
        IsActive:      l.IsActive,
        CreatedAt:     l.CreatedAt.UTC().Format(time.RFC3339),
        UpdatedAt:     l.UpdatedAt.UTC().Format(time.RFC3339),
    }
}

// List handles GET /v1/listings?limit&offset&event_id&active.  Active
// listings are returned unless active=false or active=all is given.
func (h *ListingHandler) List(c echo.Context) error {
    f := repository.ListFilter{EventID: strings.TrimSpace(c.QueryParam("event_id")), Limit: defaultPageLimit}

    if s := c.QueryParam("limit"); s != "" {
        n, err := strconv.Atoi(s)
        if err != nil || n < 1 {
            return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid limit"})
        }
        f.Limit = min(n, maxPageLimit) // cap large pages
    }
    if s := c.QueryParam("offset"); s != "" {
        n, err := strconv.Atoi(s)
        if err != nil || n < 0 {
            return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid offset"})
        }
        f.Offset = n
    }
    switch strings.ToLower(c.QueryParam("active")) {
    case "", "true", "1":
        active := true
        f.Active = &active
    case "false", "0":
        active := false
        f.Active = &active
    case "all":
        // no filter
    default:
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "active must be true, false or all"})
    }

    items, err := h.Listings.List(c.Request().Context(), f)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "db error"})
    }
    out := make([]listingResponse, 0, len(items))
    for i := range items {
        out = append(out, toResponse(&items[i]))
    }
    return c.JSON(http.StatusOK, echo.Map{"items": out, "limit": f.Limit, "offset": f.Offset})
}

// Get handles GET /v1/listings/:id.
func (h *ListingHandler) Get(c echo.Context) error {
    id, err := parseID(c)
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
    }
    l, err := h.Listings.GetByID(c.Request().Context(), id)
    if errors.Is(err, repository.ErrNotFound) {
        return c.JSON(http.StatusNotFound, echo.Map{"error": "listing not found"})
    }
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "db error"})
    }
    return c.JSON(http.StatusOK, toResponse(l))
}

// BuyNow handles POST /v1/listings/:id/buy.  The response carries the
// listing with its new status; a failed checkout is still a 200 with
// status "failed".
func (h *ListingHandler) BuyNow(c echo.Context) error {
    id, err := parseID(c)
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
    }
    l, err := h.Buyer.BuyNow(c.Request().Context(), id)
    switch {
    case err == nil:
        return c.JSON(http.StatusOK, toResponse(l))
    case errors.Is(err, repository.ErrNotFound):
        return c.JSON(http.StatusNotFound, echo.Map{"error": "listing not found"})
    case errors.Is(err, service.ErrExpired):
        return c.JSON(http.StatusConflict, echo.Map{"error": "listing expired"})
    case errors.Is(err, service.ErrAlreadyScheduled):
        return c.JSON(http.StatusConflict, echo.Map{"error": "listing already scheduled"})
    case errors.Is(err, repository.ErrConflict):
        return c.JSON(http.StatusConflict, echo.Map{"error": "purchase already in progress"})
    case errors.Is(err, checkout.ErrNotDispatchable):
        return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "listing has no checkout url or credential"})
    }
    c.Logger().Errorf("buy listing %d: %v", id, err)
    return c.JSON(http.StatusInternalServerError, echo.Map{"error": "buy failed"})
}

// Delete handles DELETE /v1/listings/:id by flipping is_active off.
func (h *ListingHandler) Delete(c echo.Context) error {
    id, err := parseID(c)
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
    }
    err = h.Listings.SoftDelete(c.Request().Context(), id)
    if errors.Is(err, repository.ErrNotFound) {
        return c.JSON(http.StatusNotFound, echo.Map{"error": "listing not found"})
    }
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "db error"})
    }
    return c.NoContent(http.StatusNoContent)
}

func parseID(c echo.Context) (uint64, error) {
    id, err := strconv.ParseUint(c.Param("id"), 10, 64)
    if err == nil && id == 0 {
        err = errors.New("id must be positive")
    }
    return id, err
}
