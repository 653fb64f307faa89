// Package marketplace looks up competing resale prices for a listing and
// derives its expected return.
package marketplace

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ErrEnrichmentUnavailable marks a price lookup that could not complete.
// It only ever costs the listing its ROI.
var ErrEnrichmentUnavailable = errors.New("enrichment unavailable")

// Entry is one competing listing returned by the price API.  Price is in
// minor currency units (cents).
type Entry struct {
	Price   int64      `json:"price"`
	Section flexString `json:"section"`
	Row     flexString `json:"row"`
}

// Page is one page of search results.  NextPage is zero on the last page.
type Page struct {
	Entries  []Entry
	NextPage int
}

// ClientOptions configures Client.
type ClientOptions struct {
	BaseURL   string
	APIKey    string
	UserAgent string
	Timeout   time.Duration
	MaxPages  int
}

// Client talks to the marketplace listings API:
//
//	GET {base}/events/{catalog_id}/listings?section=...&page=...
//	  -> {"listings":[...], "next_page": 2} or a bare [...]
type Client struct {
	baseURL   string
	apiKey    string
	userAgent string
	maxPages  int
	client    *http.Client
}

// NewClient validates opts and returns a Client.
func NewClient(opts ClientOptions) (*Client, error) {
	base := strings.TrimSpace(opts.BaseURL)
	if base == "" {
		return nil, errors.New("marketplace BaseURL is required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("invalid marketplace BaseURL: %w", err)
	}
	to := opts.Timeout
	if to <= 0 {
		to = 10 * time.Second
	}
	ua := strings.TrimSpace(opts.UserAgent)
	if ua == "" {
		ua = "ticket-autobuy/1.0"
	}
	pages := opts.MaxPages
	if pages <= 0 {
		pages = 5
	}
	return &Client{
		baseURL:   strings.TrimRight(base, "/"),
		apiKey:    opts.APIKey,
		userAgent: ua,
		maxPages:  pages,
		client:    &http.Client{Timeout: to},
	}, nil
}

// SearchListings fetches one page of competing listings for a section.
func (c *Client) SearchListings(ctx context.Context, catalogID, section string, page int) (Page, error) {
	u, err := url.Parse(c.baseURL + "/events/" + url.PathEscape(catalogID) + "/listings")
	if err != nil {
		return Page{}, err
	}
	q := u.Query()
	q.Set("section", strings.TrimSpace(section))
	if page > 1 {
		q.Set("page", strconv.Itoa(page))
	}
	u.RawQuery = q.Encode()

	body, err := c.doGET(ctx, u.String())
	if err != nil {
		return Page{}, err
	}

	// Accept both object-wrapped and bare-array payloads.
	var wrapped struct {
		Listings []Entry `json:"listings"`
		NextPage *int    `json:"next_page"`
	}
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		if err := json.Unmarshal(trimmed, &wrapped); err != nil {
			return Page{}, fmt.Errorf("listings payload parse: %w", err)
		}
		p := Page{Entries: wrapped.Listings}
		if wrapped.NextPage != nil && *wrapped.NextPage > page {
			p.NextPage = *wrapped.NextPage
		}
		return p, nil
	}
	var arr []Entry
	if err := json.Unmarshal(trimmed, &arr); err != nil {
		return Page{}, fmt.Errorf("listings payload parse: %w", err)
	}
	return Page{Entries: arr}, nil
}

// AllListings walks the pages for a section up to the configured limit.
func (c *Client) AllListings(ctx context.Context, catalogID, section string) ([]Entry, error) {
	var out []Entry
	page := 1
	for i := 0; i < c.maxPages; i++ {
		p, err := c.SearchListings(ctx, catalogID, section, page)
		if err != nil {
			return nil, err
		}
		out = append(out, p.Entries...)
		if p.NextPage == 0 {
			break
		}
		page = p.NextPage
	}
	return out, nil
}

func (c *Client) doGET(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("http status %d", resp.StatusCode)
	}
	return b, nil
}

// flexString decodes JSON strings and numbers alike; providers disagree on
// whether rows are "12" or 12.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", b)
	}
	*f = flexString(n.String())
	return nil
}
