package repository

import (
    "context"
    "fmt"
    "time"

    "github.com/dgraph-io/ristretto"

    "github.com/iliyamo/ticket-autobuy/internal/model"
)

// ReferenceReader is the read side of ReferenceRepo.
type ReferenceReader interface {
    EventDetails(ctx context.Context, eventID string) (*model.EventDetails, error)
    BotAccount(ctx context.Context, email string) (*model.BotAccount, error)
}

// CachedReferenceStore keeps recent reference lookups in process memory.
// Only hits are cached: reference tables are append-only, so an entry
// that exists stays valid, while a miss may be filled in at any moment.
type CachedReferenceStore struct {
    next  ReferenceReader
    cache *ristretto.Cache
    ttl   time.Duration
}

// NewCachedReferenceStore wraps next with a small ristretto cache.  A
// non-positive ttl disables caching.
func NewCachedReferenceStore(next ReferenceReader, ttl time.Duration) (*CachedReferenceStore, error) {
    s := &CachedReferenceStore{next: next, ttl: ttl}
    if ttl <= 0 {
        return s, nil
    }
    c, err := ristretto.NewCache(&ristretto.Config{
        NumCounters: 10000,
        MaxCost:     1000,
        BufferItems: 64,
        // entries are counted, not sized
        IgnoreInternalCost: true,
    })
    if err != nil {
        return nil, fmt.Errorf("reference cache: %w", err)
    }
    s.cache = c
    return s, nil
}

// EventDetails implements ReferenceReader.
func (s *CachedReferenceStore) EventDetails(ctx context.Context, eventID string) (*model.EventDetails, error) {
    key := "event:" + eventID
    if v, ok := s.get(key); ok {
        if d, ok := v.(*model.EventDetails); ok {
            cp := *d
            return &cp, nil
        }
    }
    d, err := s.next.EventDetails(ctx, eventID)
    if err != nil {
        return nil, err
    }
    s.set(key, d)
    return d, nil
}

// BotAccount implements ReferenceReader.
func (s *CachedReferenceStore) BotAccount(ctx context.Context, email string) (*model.BotAccount, error) {
    key := "bot:" + email
    if v, ok := s.get(key); ok {
        if a, ok := v.(*model.BotAccount); ok {
            cp := *a
            return &cp, nil
        }
    }
    a, err := s.next.BotAccount(ctx, email)
    if err != nil {
        return nil, err
    }
    s.set(key, a)
    return a, nil
}

// Close releases the cache goroutines.
func (s *CachedReferenceStore) Close() {
    if s.cache != nil {
        s.cache.Close()
    }
}

func (s *CachedReferenceStore) get(key string) (interface{}, bool) {
    if s.cache == nil {
        return nil, false
    }
    return s.cache.Get(key)
}

func (s *CachedReferenceStore) set(key string, v interface{}) {
    if s.cache == nil {
        return
    }
    s.cache.SetWithTTL(key, v, 1, s.ttl)
    // make the entry visible to the next lookup
    s.cache.Wait()
}
