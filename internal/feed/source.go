package feed

import (
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

// ErrProviderUnreachable marks a fetch that could not reach the feed.  The
// poller skips the cycle and tries again on the next tick.
var ErrProviderUnreachable = errors.New("feed provider unreachable")

// MaxPageLimit is the largest page the channel API serves.
const MaxPageLimit = 100

// Source returns the most recent messages of the feed, in feed order.
type Source interface {
	Fetch(ctx context.Context, limit int) ([]Message, error)
}

// RESTOptions configures a RESTSource.
type RESTOptions struct {
	BaseURL   string
	ChannelID string
	Token     string
	Timeout   time.Duration
}

// RESTSource polls a channel's message history over HTTP.
type RESTSource struct {
	base    string
	channel string
	token   string
	client  *http.Client
}

// NewRESTSource validates opts and returns a RESTSource.
func NewRESTSource(opts RESTOptions) (*RESTSource, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		return nil, errors.New("feed base URL is required")
	}
	if strings.TrimSpace(opts.ChannelID) == "" {
		return nil, errors.New("feed channel id is required")
	}
	to := opts.Timeout
	if to <= 0 {
		to = 10 * time.Second
	}
	return &RESTSource{
		base:    base,
		channel: strings.TrimSpace(opts.ChannelID),
		token:   opts.Token,
		client:  &http.Client{Timeout: to},
	}, nil
}

// Fetch implements Source.
func (s *RESTSource) Fetch(ctx context.Context, limit int) ([]Message, error) {
	u := fmt.Sprintf("%s/channels/%s/messages?limit=%s", s.base, url.PathEscape(s.channel), strconv.Itoa(clampLimit(limit)))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bot "+s.token)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnreachable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: http status %d", ErrProviderUnreachable, resp.StatusCode)
	}
	var msgs []Message
	if err := json.NewDecoder(resp.Body).Decode(&msgs); err != nil {
		return nil, fmt.Errorf("%w: decode messages: %v", ErrProviderUnreachable, err)
	}
	return msgs, nil
}

func clampLimit(n int) int {
	switch {
	case n <= 0:
		return 50
	case n > MaxPageLimit:
		return MaxPageLimit
	}
	return n
}
