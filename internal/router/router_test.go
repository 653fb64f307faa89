package router

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/ticket-autobuy/internal/config"
	"github.com/iliyamo/ticket-autobuy/internal/database/dbtest"
	"github.com/iliyamo/ticket-autobuy/internal/handler"
	"github.com/iliyamo/ticket-autobuy/internal/logging"
	"github.com/iliyamo/ticket-autobuy/internal/middleware"
	"github.com/iliyamo/ticket-autobuy/internal/model"
	"github.com/iliyamo/ticket-autobuy/internal/repository"
	"github.com/iliyamo/ticket-autobuy/internal/service"
	"github.com/iliyamo/ticket-autobuy/internal/utils"
)

const secret = "test-secret"

type okDispatcher struct{ calls int }

func (d *okDispatcher) Dispatch(ctx context.Context, l *model.Listing) (string, error) {
	d.calls++
	return model.StatusScheduled, nil
}

type fixture struct {
	e          *echo.Echo
	listings   *repository.ListingRepo
	dispatcher *okDispatcher
	token      string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := dbtest.Open(t)
	listings := repository.NewListingRepo(db)
	refs := repository.NewReferenceRepo(db)
	d := &okDispatcher{}
	pipeline := service.NewPipeline(service.Deps{
		Listings:   listings,
		References: refs,
		Rules:      repository.NewApprovalRuleRepo(db),
		Dispatcher: d,
		Logger:     logging.Discard(),
	})

	e := echo.New()
	RegisterRoutes(e, db)
	cache := middleware.NewResponseCache(config.CacheConfig{Enabled: true}, nil, logging.Discard())
	RegisterListings(e, handler.NewListingHandler(listings, pipeline), secret, cache)

	tok, err := utils.NewAccessToken(secret, "ops", utils.RoleOperator, 5)
	require.NoError(t, err)
	return &fixture{e: e, listings: listings, dispatcher: d, token: tok.Token}
}

func (f *fixture) seed(t *testing.T, messageID, eventID string, expires time.Time, withCredential bool) *model.Listing {
	t.Helper()
	l := &model.Listing{
		MessageID: messageID, EventID: eventID, BotEmail: "bot@example.com",
		Section: "134", Row: "C", Price: 50, FullPrice: 200, Amount: 4, PricePlusFees: 50,
		PurchaseURL: "https://shop.example.com/c/" + messageID,
		Status:      model.StatusNew, ExpiresAt: expires, IsActive: true,
	}
	if withCredential {
		cred := "123"
		l.Credential = &cred
	}
	require.NoError(t, f.listings.Create(context.Background(), l))
	return l
}

func (f *fixture) do(method, path string, auth bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if auth {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	return rec
}

type listBody struct {
	Items []map[string]any `json:"items"`
	Limit int              `json:"limit"`
}

func decodeList(t *testing.T, rec *httptest.ResponseRecorder) listBody {
	t.Helper()
	var b listBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &b))
	return b
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodGet, "/healthz", false)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestListAndGet(t *testing.T) {
	f := newFixture(t)
	future := time.Now().Add(time.Hour)
	a := f.seed(t, "m1", "E1", future, true)
	f.seed(t, "m2", "E2", future, true)
	gone := f.seed(t, "m3", "E1", future, true)
	require.NoError(t, f.listings.SoftDelete(context.Background(), gone.ID))

	rec := f.do(http.MethodGet, "/v1/listings", false)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeList(t, rec)
	assert.Len(t, body.Items, 2)
	assert.Equal(t, 50, body.Limit)
	for _, it := range body.Items {
		assert.NotContains(t, it, "credential")
		assert.Equal(t, true, it["has_credential"])
	}

	body = decodeList(t, f.do(http.MethodGet, "/v1/listings?event_id=E1&active=all&limit=1000", false))
	assert.Len(t, body.Items, 2)
	assert.Equal(t, 200, body.Limit)

	body = decodeList(t, f.do(http.MethodGet, "/v1/listings?active=false", false))
	require.Len(t, body.Items, 1)
	assert.Equal(t, "m3", body.Items[0]["message_id"])

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/v1/listings?limit=x", false).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/v1/listings?active=maybe", false).Code)

	rec = f.do(http.MethodGet, fmt.Sprintf("/v1/listings/%d", a.ID), false)
	require.Equal(t, http.StatusOK, rec.Code)
	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "m1", got["message_id"])
	assert.Equal(t, "new", got["status"])

	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/v1/listings/999", false).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/v1/listings/abc", false).Code)
}

func TestBuyNow(t *testing.T) {
	f := newFixture(t)
	l := f.seed(t, "m1", "E1", time.Now().Add(time.Hour), true)
	path := fmt.Sprintf("/v1/listings/%d/buy", l.ID)

	assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodPost, path, false).Code)

	rec := f.do(http.MethodPost, path, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"status":"scheduled"`)
	assert.Equal(t, 1, f.dispatcher.calls)

	rec = f.do(http.MethodPost, path, true)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, 1, f.dispatcher.calls)
}

func TestBuyNow_Refusals(t *testing.T) {
	f := newFixture(t)
	expired := f.seed(t, "m1", "E1", time.Now().Add(-time.Minute), true)
	noCred := f.seed(t, "m2", "E1", time.Now().Add(time.Hour), false)

	assert.Equal(t, http.StatusConflict, f.do(http.MethodPost, fmt.Sprintf("/v1/listings/%d/buy", expired.ID), true).Code)
	assert.Equal(t, http.StatusUnprocessableEntity, f.do(http.MethodPost, fmt.Sprintf("/v1/listings/%d/buy", noCred.ID), true).Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodPost, "/v1/listings/999/buy", true).Code)
	assert.Zero(t, f.dispatcher.calls)
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	l := f.seed(t, "m1", "E1", time.Now().Add(time.Hour), true)
	path := fmt.Sprintf("/v1/listings/%d", l.ID)

	assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodDelete, path, false).Code)
	assert.Equal(t, http.StatusNoContent, f.do(http.MethodDelete, path, true).Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodDelete, "/v1/listings/999", true).Code)

	stored, err := f.listings.GetByID(context.Background(), l.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsActive)
	assert.Empty(t, decodeList(t, f.do(http.MethodGet, "/v1/listings", false)).Items)

	// deleted listings cannot be bought
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodPost, path+"/buy", true).Code)
}
