// Package feed reads listing announcements from the message feed and drives
// each new one through the listing pipeline.
package feed

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/iliyamo/ticket-autobuy/internal/listing"
)

// ErrNoEmbed is returned by Fields when a message carries no embed to read
// listing fields from.  The poller treats it like any other validation
// failure.
var ErrNoEmbed = errors.New("message has no embed")

// Message is one feed message.  Timestamp is zero when the transport sent
// something that could not be parsed.
type Message struct {
	ID        string
	Timestamp time.Time
	Embeds    []Embed
}

// Embed is the structured block of an announcement.
type Embed struct {
	Fields []EmbedField `json:"fields"`
}

// EmbedField is one name/value pair.
type EmbedField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type wireMessage struct {
	ID        json.RawMessage `json:"id"`
	Timestamp json.RawMessage `json:"timestamp"`
	Embeds    []Embed         `json:"embeds"`
}

// UnmarshalJSON accepts ids as strings or numbers and timestamps as
// ISO-8601 strings or epoch seconds.
func (m *Message) UnmarshalJSON(b []byte) error {
	var w wireMessage
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	m.ID = rawText(w.ID)
	m.Timestamp, _ = parseTimestamp(w.Timestamp)
	m.Embeds = w.Embeds
	return nil
}

// Fields returns the name/value mapping of the first embed.  Blank names
// and values are dropped; duplicate names keep the last value.
func (m Message) Fields() (listing.Fields, error) {
	if len(m.Embeds) == 0 {
		return nil, ErrNoEmbed
	}
	out := make(listing.Fields, len(m.Embeds[0].Fields))
	for _, f := range m.Embeds[0].Fields {
		if f.Name == "" || f.Value == "" {
			continue
		}
		out[f.Name] = f.Value
	}
	return out, nil
}

func rawText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	return string(raw)
}

func parseTimestamp(raw json.RawMessage) (time.Time, error) {
	s := rawText(raw)
	if s == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	if epoch, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(epoch, 0).UTC(), nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Unix(int64(f), 0).UTC(), nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
