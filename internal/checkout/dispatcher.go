// Package checkout hands approved listings to the external checkout
// service that executes the purchase.
package checkout

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/ticket-autobuy/internal/model"
)

var (
	// ErrNotDispatchable is returned without calling out when a listing
	// lacks a purchase URL or a credential.
	ErrNotDispatchable = errors.New("listing not dispatchable")
	// ErrDispatchFailed wraps every failed checkout call.
	ErrDispatchFailed = errors.New("dispatch failed")
)

// Options configures a Dispatcher.
type Options struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

// Dispatcher posts purchase requests to the checkout service.  It makes a
// single attempt per call; retries belong to whoever schedules the call.
type Dispatcher struct {
	url     string
	apiKey  string
	timeout time.Duration
	client  *http.Client
}

// NewDispatcher returns a Dispatcher for the checkout endpoint at opts.URL.
func NewDispatcher(opts Options) (*Dispatcher, error) {
	u := strings.TrimSpace(opts.URL)
	if u == "" {
		return nil, errors.New("checkout URL is required")
	}
	to := opts.Timeout
	if to <= 0 {
		to = 10 * time.Second
	}
	return &Dispatcher{
		url:     u,
		apiKey:  opts.APIKey,
		timeout: to,
		client:  &http.Client{Timeout: to},
	}, nil
}

// idempotencySpace namespaces the purchase keys derived from message ids.
var idempotencySpace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("ticket-autobuy/checkout"))

// IdempotencyKey is the key sent with every purchase of l.  It depends
// only on the feed message, so repeated dispatches of one listing share it.
func IdempotencyKey(l *model.Listing) string {
	return uuid.NewSHA1(idempotencySpace, []byte(l.MessageID)).String()
}

type purchaseRequest struct {
	PurchaseURL string `json:"purchase_url"`
	Credential  string `json:"credential"`
}

// Dispatch requests the purchase of l and returns the status the listing
// should end in: scheduled on HTTP 200, failed otherwise.  When l is not
// dispatchable the returned status is empty and err is ErrNotDispatchable.
func (d *Dispatcher) Dispatch(ctx context.Context, l *model.Listing) (string, error) {
	if !l.Dispatchable() {
		return "", ErrNotDispatchable
	}
	if err := d.post(ctx, l); err != nil {
		return model.StatusFailed, fmt.Errorf("%w: listing %q: %v", ErrDispatchFailed, l.MessageID, err)
	}
	return model.StatusScheduled, nil
}

func (d *Dispatcher) post(ctx context.Context, l *model.Listing) error {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	body, err := json.Marshal(purchaseRequest{PurchaseURL: l.PurchaseURL, Credential: *l.Credential})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	req.Header.Set("Idempotency-Key", IdempotencyKey(l))
	if d.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+d.apiKey)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("http status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
