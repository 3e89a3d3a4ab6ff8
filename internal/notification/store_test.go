package notification

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_Upsert(t *testing.T) {
	s := NewStore()

	first := s.Upsert(&Subscription{
		Endpoint:  "https://push.example/one",
		P256dhKey: "p256-one",
		AuthKey:   "auth-one",
	})
	require.NotEmpty(t, first.ID)
	require.False(t, first.CreatedAt.IsZero())
	assert.Equal(t, 1, s.Len())

	// Re-registering the same endpoint refreshes the keys but keeps the
	// identity, so service worker restarts do not pile up duplicates.
	second := s.Upsert(&Subscription{
		Endpoint:  "https://push.example/one",
		P256dhKey: "p256-rotated",
		AuthKey:   "auth-rotated",
	})
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.Equal(t, "p256-rotated", second.P256dhKey)
	assert.Equal(t, 1, s.Len())

	third := s.Upsert(&Subscription{
		Endpoint:  "https://push.example/two",
		P256dhKey: "p256-two",
		AuthKey:   "auth-two",
	})
	assert.NotEqual(t, first.ID, third.ID)
	assert.Equal(t, 2, s.Len())
}

func TestStore_UpsertReturnsCopy(t *testing.T) {
	s := NewStore()

	sub := s.Upsert(&Subscription{
		Endpoint:  "https://push.example/one",
		P256dhKey: "p256",
		AuthKey:   "auth",
	})
	sub.P256dhKey = "mutated"

	stored := s.List()
	require.Len(t, stored, 1)
	assert.Equal(t, "p256", stored[0].P256dhKey)
}

func TestStore_List(t *testing.T) {
	s := NewStore()
	assert.Empty(t, s.List())

	// ULIDs sort by creation time, so listing follows insertion order.
	a := s.Upsert(&Subscription{Endpoint: "https://push.example/a", P256dhKey: "p", AuthKey: "a"})
	b := s.Upsert(&Subscription{Endpoint: "https://push.example/b", P256dhKey: "p", AuthKey: "a"})

	listed := s.List()
	require.Len(t, listed, 2)
	assert.Equal(t, a.ID, listed[0].ID)
	assert.Equal(t, b.ID, listed[1].ID)

	listed[0].AuthKey = "mutated"
	assert.Equal(t, "a", s.List()[0].AuthKey)
}

func TestStore_DeleteByEndpoint(t *testing.T) {
	s := NewStore()
	s.Upsert(&Subscription{Endpoint: "https://push.example/one", P256dhKey: "p", AuthKey: "a"})

	assert.False(t, s.DeleteByEndpoint("https://push.example/unknown"))
	assert.Equal(t, 1, s.Len())

	assert.True(t, s.DeleteByEndpoint("https://push.example/one"))
	assert.Equal(t, 0, s.Len())
	assert.False(t, s.DeleteByEndpoint("https://push.example/one"))
}
