package checkout

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/ticket-autobuy/internal/model"
)

func dispatchable() *model.Listing {
	cred := "123"
	return &model.Listing{MessageID: "m1", PurchaseURL: "https://shop.example.com/c/1", Credential: &cred, Status: model.StatusNew}
}

func TestDispatch_Success(t *testing.T) {
	var got purchaseRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		_, err := uuid.Parse(r.Header.Get("X-Request-ID"))
		assert.NoError(t, err)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d, err := NewDispatcher(Options{URL: srv.URL, APIKey: "secret"})
	require.NoError(t, err)
	status, err := d.Dispatch(context.Background(), dispatchable())
	require.NoError(t, err)
	assert.Equal(t, model.StatusScheduled, status)
	assert.Equal(t, "https://shop.example.com/c/1", got.PurchaseURL)
	assert.Equal(t, "123", got.Credential)
}

func TestDispatch_IdempotencyKeyStablePerListing(t *testing.T) {
	var (
		mu               sync.Mutex
		keys, requestIDs []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		keys = append(keys, r.Header.Get("Idempotency-Key"))
		requestIDs = append(requestIDs, r.Header.Get("X-Request-ID"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d, err := NewDispatcher(Options{URL: srv.URL})
	require.NoError(t, err)
	other := dispatchable()
	other.MessageID = "m2"
	for _, l := range []*model.Listing{dispatchable(), dispatchable(), other} {
		_, err := d.Dispatch(context.Background(), l)
		require.NoError(t, err)
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, keys, 3)
	assert.Equal(t, keys[0], keys[1])
	assert.NotEqual(t, keys[0], keys[2])
	assert.Equal(t, IdempotencyKey(dispatchable()), keys[0])
	assert.NotEqual(t, requestIDs[0], requestIDs[1])
}

func TestDispatch_NonOKIsFailed(t *testing.T) {
	for _, code := range []int{http.StatusCreated, http.StatusBadRequest, http.StatusInternalServerError} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(code)
		}))
		d, err := NewDispatcher(Options{URL: srv.URL})
		require.NoError(t, err)
		status, err := d.Dispatch(context.Background(), dispatchable())
		assert.Equal(t, model.StatusFailed, status, "code %d", code)
		assert.ErrorIs(t, err, ErrDispatchFailed)
		srv.Close()
	}
}

func TestDispatch_TimeoutIsFailed(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	d, err := NewDispatcher(Options{URL: srv.URL, Timeout: 50 * time.Millisecond})
	require.NoError(t, err)
	status, err := d.Dispatch(context.Background(), dispatchable())
	assert.Equal(t, model.StatusFailed, status)
	assert.ErrorIs(t, err, ErrDispatchFailed)
}

func TestDispatch_TransportErrorIsFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	d, err := NewDispatcher(Options{URL: url})
	require.NoError(t, err)
	status, err := d.Dispatch(context.Background(), dispatchable())
	assert.Equal(t, model.StatusFailed, status)
	assert.ErrorIs(t, err, ErrDispatchFailed)
}

func TestDispatch_NotDispatchable(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))
	defer srv.Close()
	d, err := NewDispatcher(Options{URL: srv.URL})
	require.NoError(t, err)

	noCred := dispatchable()
	noCred.Credential = nil
	empty := ""
	emptyCred := dispatchable()
	emptyCred.Credential = &empty
	noURL := dispatchable()
	noURL.PurchaseURL = ""

	for _, l := range []*model.Listing{noCred, emptyCred, noURL} {
		status, err := d.Dispatch(context.Background(), l)
		assert.ErrorIs(t, err, ErrNotDispatchable)
		assert.Empty(t, status)
	}
	assert.False(t, called)
}
