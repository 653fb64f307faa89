package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	wsReadTimeout  = 60 * time.Second
	wsPingInterval = 25 * time.Second
	wsMaxBackoff   = 30 * time.Second
	wsBufferSize   = 1000
)

// WebsocketSource receives messages pushed over a websocket and buffers
// them until the next Fetch.  Run keeps the connection alive.
type WebsocketSource struct {
	url    string
	header http.Header
	dialer *websocket.Dialer
	logger *slog.Logger

	mu        sync.Mutex
	buf       []Message
	connected bool
	lastErr   error
}

// NewWebsocketSource returns a source for the feed at wsURL.  A non-empty
// token is sent as a bot Authorization header on every dial.
func NewWebsocketSource(wsURL, token string, logger *slog.Logger) (*WebsocketSource, error) {
	if wsURL == "" {
		return nil, errors.New("feed websocket URL is required")
	}
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bot "+token)
	}
	return &WebsocketSource{
		url:    wsURL,
		header: h,
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		logger: logger,
	}, nil
}

// Run dials the feed and reads until ctx is done, reconnecting with
// exponential backoff.  It returns ctx.Err().
func (s *WebsocketSource) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, _, err := s.dialer.DialContext(ctx, s.url, s.header)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.setState(false, err)
			s.logger.Warn("feed-ws: dial failed", "err", err, "retry_in", backoff)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			if backoff < wsMaxBackoff {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second
		s.setState(true, nil)
		s.logger.Info("feed-ws: connected", "url", s.url)

		err = s.readLoop(ctx, conn)
		s.setState(false, err)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.Warn("feed-ws: read loop ended; reconnecting", "err", err)
	}
}

func (s *WebsocketSource) readLoop(ctx context.Context, conn *websocket.Conn) error {
	defer conn.Close()

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		t := time.NewTicker(wsPingInterval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
				_ = conn.Close()
				return
			case <-done:
				return
			case <-t.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
					return
				}
			}
		}
	}()

	for {
		if err := conn.SetReadDeadline(time.Now().Add(wsReadTimeout)); err != nil {
			return err
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var m Message
		if err := json.Unmarshal(data, &m); err != nil {
			s.logger.Debug("feed-ws: skipping undecodable frame", "err", err)
			continue
		}
		s.push(m)
	}
}

func (s *WebsocketSource) push(m Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.buf) >= wsBufferSize {
		s.logger.Warn("feed-ws: buffer full; dropping oldest message", "id", s.buf[0].ID)
		s.buf = s.buf[1:]
	}
	s.buf = append(s.buf, m)
}

func (s *WebsocketSource) setState(connected bool, err error) {
	s.mu.Lock()
	s.connected = connected
	s.lastErr = err
	s.mu.Unlock()
}

// Fetch implements Source by draining up to limit buffered messages in
// arrival order.  While disconnected with nothing buffered it reports
// ErrProviderUnreachable.
func (s *WebsocketSource) Fetch(ctx context.Context, limit int) ([]Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.buf) == 0 {
		if !s.connected && s.lastErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrProviderUnreachable, s.lastErr)
		}
		return nil, nil
	}
	n := clampLimit(limit)
	if n > len(s.buf) {
		n = len(s.buf)
	}
	out := make([]Message, n)
	copy(out, s.buf[:n])
	s.buf = s.buf[n:]
	return out, nil
}
