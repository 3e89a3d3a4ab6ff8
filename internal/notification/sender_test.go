package notification

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IlamSingleBrainCell/enterprise-ai-studio/internal/config"
)

func testVAPIDEnv(t *testing.T) *config.VAPIDEnv {
	t.Helper()
	privateKey, publicKey, err := webpush.GenerateVAPIDKeys()
	require.NoError(t, err)
	return &config.VAPIDEnv{
		PublicKey:  publicKey,
		PrivateKey: privateKey,
		Subscriber: "mailto:ops@example.com",
	}
}

// browserKeys builds a subscription key pair the way a browser would: a
// P-256 public point and a 16-byte auth secret, both base64url encoded.
func browserKeys(t *testing.T) (p256dh, auth string) {
	t.Helper()

	key, err := ecdh.P256().GenerateKey(rand.Reader)
	require.NoError(t, err)
	secret := make([]byte, 16)
	_, err = rand.Read(secret)
	require.NoError(t, err)

	return base64.RawURLEncoding.EncodeToString(key.PublicKey().Bytes()),
		base64.RawURLEncoding.EncodeToString(secret)
}

func pushEndpoint(t *testing.T, status int, hits *atomic.Int64) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "86400", r.Header.Get("TTL"))
		assert.True(t, strings.HasPrefix(r.Header.Get("Authorization"), "vapid "))
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestSender_Configured(t *testing.T) {
	store := NewStore()

	assert.True(t, NewSender(testVAPIDEnv(t), store).Configured())
	assert.False(t, NewSender(&config.VAPIDEnv{}, store).Configured())
	assert.False(t, NewSender(&config.VAPIDEnv{PublicKey: "only-public"}, store).Configured())
}

func TestSender_SendToAll(t *testing.T) {
	t.Run("delivers to every subscription", func(t *testing.T) {
		var hits atomic.Int64
		store := NewStore()
		p256dh, auth := browserKeys(t)
		store.Upsert(&Subscription{Endpoint: pushEndpoint(t, http.StatusCreated, &hits), P256dhKey: p256dh, AuthKey: auth})
		store.Upsert(&Subscription{Endpoint: pushEndpoint(t, http.StatusCreated, &hits), P256dhKey: p256dh, AuthKey: auth})

		sender := NewSender(testVAPIDEnv(t), store)
		sender.SendToAll(context.Background(), &Payload{
			Title:      "Workflow completed",
			Body:       "Workflow wf-1 finished 5 of 5 tasks",
			WorkflowID: "wf-1",
			Status:     "COMPLETED",
		})

		assert.Equal(t, int64(2), hits.Load())
		assert.Equal(t, 2, store.Len())
	})

	t.Run("skips everything without VAPID keys", func(t *testing.T) {
		var hits atomic.Int64
		store := NewStore()
		p256dh, auth := browserKeys(t)
		store.Upsert(&Subscription{Endpoint: pushEndpoint(t, http.StatusCreated, &hits), P256dhKey: p256dh, AuthKey: auth})

		sender := NewSender(&config.VAPIDEnv{}, store)
		sender.SendToAll(context.Background(), &Payload{Title: "ignored"})

		assert.Equal(t, int64(0), hits.Load())
	})

	t.Run("drops expired subscriptions", func(t *testing.T) {
		var hits atomic.Int64
		store := NewStore()
		p256dh, auth := browserKeys(t)
		gone := pushEndpoint(t, http.StatusGone, &hits)
		store.Upsert(&Subscription{Endpoint: gone, P256dhKey: p256dh, AuthKey: auth})
		store.Upsert(&Subscription{Endpoint: pushEndpoint(t, http.StatusCreated, &hits), P256dhKey: p256dh, AuthKey: auth})

		sender := NewSender(testVAPIDEnv(t), store)
		sender.SendToAll(context.Background(), &Payload{Title: "cleanup"})

		assert.Equal(t, int64(2), hits.Load())
		require.Equal(t, 1, store.Len())
		assert.NotEqual(t, gone, store.List()[0].Endpoint)
	})

	t.Run("keeps subscriptions on transient errors", func(t *testing.T) {
		var hits atomic.Int64
		store := NewStore()
		p256dh, auth := browserKeys(t)
		store.Upsert(&Subscription{Endpoint: pushEndpoint(t, http.StatusTooManyRequests, &hits), P256dhKey: p256dh, AuthKey: auth})

		sender := NewSender(testVAPIDEnv(t), store)
		sender.SendToAll(context.Background(), &Payload{Title: "retry later"})

		assert.Equal(t, int64(1), hits.Load())
		assert.Equal(t, 1, store.Len())
	})
}

func TestSender_PayloadShape(t *testing.T) {
	raw, err := json.Marshal(&Payload{
		Title:      "Workflow failed",
		Body:       "Workflow wf-9 failed at qa_engineer",
		WorkflowID: "wf-9",
		Status:     "FAILED",
		Tag:        "wf-9",
	})
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "Workflow failed", decoded["title"])
	assert.Equal(t, "wf-9", decoded["workflow_id"])
	assert.Equal(t, "FAILED", decoded["status"])
	assert.Equal(t, "wf-9", decoded["tag"])

	// Empty optional fields stay off the wire.
	raw, err = json.Marshal(&Payload{Title: "t", Body: "b"})
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "workflow_id")
	assert.NotContains(t, string(raw), "tag")
}
