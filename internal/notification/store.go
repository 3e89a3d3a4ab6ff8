package notification

import (
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Subscription is one browser push endpoint with its encryption keys.
type Subscription struct {
	ID        string    `json:"id"`
	Endpoint  string    `json:"endpoint"`
	P256dhKey string    `json:"p256dh_key"`
	AuthKey   string    `json:"auth_key"`
	CreatedAt time.Time `json:"created_at"`
}

// Store keeps push subscriptions in memory, keyed by endpoint. Upsert is
// idempotent so a client can re-register after a service worker refresh
// without piling up duplicates.
type Store struct {
	mu   sync.RWMutex
	subs map[string]*Subscription
}

func NewStore() *Store {
	return &Store{subs: map[string]*Subscription{}}
}

func (s *Store) Upsert(sub *Subscription) *Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.subs[sub.Endpoint]; ok {
		existing.P256dhKey = sub.P256dhKey
		existing.AuthKey = sub.AuthKey
		c := *existing
		return &c
	}

	stored := &Subscription{
		ID:        ulid.Make().String(),
		Endpoint:  sub.Endpoint,
		P256dhKey: sub.P256dhKey,
		AuthKey:   sub.AuthKey,
		CreatedAt: time.Now(),
	}
	s.subs[sub.Endpoint] = stored
	c := *stored
	return &c
}

func (s *Store) List() []*Subscription {
	s.mu.RLock()
	defer s.mu.RUnlock()

	subs := make([]*Subscription, 0, len(s.subs))
	for _, sub := range s.subs {
		c := *sub
		subs = append(subs, &c)
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].ID < subs[j].ID })
	return subs
}

func (s *Store) DeleteByEndpoint(endpoint string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.subs[endpoint]; !ok {
		return false
	}
	delete(s.subs, endpoint)
	return true
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}
