package notification

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IlamSingleBrainCell/enterprise-ai-studio/internal/config"
	"github.com/IlamSingleBrainCell/enterprise-ai-studio/internal/event"
)

func TestDispatcher_Register(t *testing.T) {
	bus, err := event.NewEventBus()
	require.NoError(t, err)

	d := NewDispatcher(NewSender(&config.VAPIDEnv{}, NewStore()))
	assert.NoError(t, d.Register(context.Background(), bus))
}

func TestDispatcher_PushesOnTerminalEvents(t *testing.T) {
	var hits atomic.Int64
	store := NewStore()
	p256dh, auth := browserKeys(t)
	store.Upsert(&Subscription{
		Endpoint:  pushEndpoint(t, http.StatusCreated, &hits),
		P256dhKey: p256dh,
		AuthKey:   auth,
	})
	d := NewDispatcher(NewSender(testVAPIDEnv(t), store))

	err := d.handleCompleted(context.Background(), event.NewEvent("test", event.WorkflowCompletedData{
		WorkflowID:     "wf-1",
		CompletedTasks: 5,
		TotalTasks:     5,
		Progress:       100,
	}))
	require.NoError(t, err)
	assert.Equal(t, int64(1), hits.Load())

	err = d.handleFailed(context.Background(), event.NewEvent("test", event.WorkflowFailedData{
		WorkflowID:   "wf-2",
		AgentRole:    "qa_engineer",
		ErrorMessage: "Task qa_engineer failed: timeout",
	}))
	require.NoError(t, err)
	assert.Equal(t, int64(2), hits.Load())
}
