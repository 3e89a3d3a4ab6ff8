package event

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startBus(t *testing.T, ctx context.Context) *EventBus {
	t.Helper()

	eb, err := NewEventBus()
	require.NoError(t, err)

	go func() {
		_ = eb.Start(ctx)
	}()
	select {
	case <-eb.router.Running():
	case <-time.After(2 * time.Second):
		t.Fatal("router did not start within timeout")
	}
	t.Cleanup(func() {
		_ = eb.Stop()
	})
	return eb
}

func TestEventBus_PublishSubscribe(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	eb := startBus(t, ctx)

	handled := make(chan bool, 1)
	var receivedData WorkflowCreatedData
	var mu sync.Mutex

	err := eb.SubscribeAsync(ctx, WorkflowCreated, "test_handler", func(msg *message.Message) error {
		mu.Lock()
		defer mu.Unlock()

		var eventMsg EventMessage
		if err := json.Unmarshal(msg.Payload, &eventMsg); err != nil {
			t.Errorf("Failed to unmarshal event message: %v", err)
			return err
		}
		if err := json.Unmarshal(eventMsg.Data, &receivedData); err != nil {
			t.Errorf("Failed to unmarshal event data: %v", err)
			return err
		}

		handled <- true
		return nil
	})
	require.NoError(t, err)

	err = eb.Publish(ctx, "test_source", WorkflowCreatedData{
		WorkflowID:  "wf-001",
		ProjectName: "demo",
		TaskCount:   3,
	})
	require.NoError(t, err)

	select {
	case <-handled:
		mu.Lock()
		assert.Equal(t, "wf-001", receivedData.WorkflowID)
		assert.Equal(t, "demo", receivedData.ProjectName)
		assert.Equal(t, 3, receivedData.TaskCount)
		mu.Unlock()
	case <-time.After(2 * time.Second):
		t.Fatal("Event was not handled within timeout")
	}
}

func TestEventBus_MultipleSubscribers(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	eb := startBus(t, ctx)

	handled1 := make(chan bool, 1)
	handled2 := make(chan bool, 1)

	err := eb.SubscribeAsync(ctx, TaskCompleted, "handler1", func(msg *message.Message) error {
		handled1 <- true
		return nil
	})
	require.NoError(t, err)

	err = eb.SubscribeAsync(ctx, TaskCompleted, "handler2", func(msg *message.Message) error {
		handled2 <- true
		return nil
	})
	require.NoError(t, err)

	err = eb.Publish(ctx, "test_source", TaskCompletedData{
		WorkflowID: "wf-002",
		AgentRole:  "software_developer",
	})
	require.NoError(t, err)

	select {
	case <-handled1:
	case <-time.After(2 * time.Second):
		t.Fatal("First handler did not receive event")
	}

	select {
	case <-handled2:
	case <-time.After(2 * time.Second):
		t.Fatal("Second handler did not receive event")
	}
}

func TestEventBus_TypedEvents(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	eb := startBus(t, ctx)

	testEvent := NewEvent("runner", TaskCompletedData{
		WorkflowID:     "wf-003",
		TaskID:         "wf-003_qa_engineer_1700000000",
		AgentRole:      "qa_engineer",
		Confidence:     0.9,
		ProcessingTime: 1.5,
	})

	handled := make(chan bool, 1)
	var receivedEvent *Event[TaskCompletedData]

	err := SubscribeTyped(eb, ctx, TaskCompleted, "typed_handler", func(ctx context.Context, msg *Event[TaskCompletedData]) error {
		receivedEvent = msg
		handled <- true
		return nil
	})
	require.NoError(t, err)

	err = PublishTyped(eb, ctx, testEvent)
	require.NoError(t, err)

	select {
	case <-handled:
		assert.Equal(t, testEvent.Data.TaskID, receivedEvent.Data.TaskID)
		assert.Equal(t, testEvent.Data.AgentRole, receivedEvent.Data.AgentRole)
		assert.Equal(t, testEvent.Source, receivedEvent.Source)
		assert.InDelta(t, 0.9, receivedEvent.Data.Confidence, 0.0001)
	case <-time.After(2 * time.Second):
		t.Fatal("Typed event was not handled within timeout")
	}
}

func TestEventBus_Stream(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eb := startBus(t, ctx)

	streamCtx, streamCancel := context.WithCancel(ctx)
	stream, err := eb.Stream(streamCtx, WorkflowPaused, WorkflowResumed)
	require.NoError(t, err)

	require.NoError(t, eb.Publish(ctx, "test_source", WorkflowPausedData{WorkflowID: "wf-004"}))
	require.NoError(t, eb.Publish(ctx, "test_source", WorkflowResumedData{WorkflowID: "wf-004"}))

	seen := map[EventType]bool{}
	for len(seen) < 2 {
		select {
		case msg := <-stream:
			require.NotNil(t, msg)
			seen[msg.Type] = true
		case <-time.After(2 * time.Second):
			t.Fatalf("streamed events not received, got %v", seen)
		}
	}
	assert.True(t, seen[WorkflowPaused])
	assert.True(t, seen[WorkflowResumed])

	streamCancel()
	select {
	case _, ok := <-stream:
		assert.False(t, ok, "stream channel should be closed after cancel")
	case <-time.After(2 * time.Second):
		t.Fatal("stream channel was not closed after cancel")
	}
}

func TestEventBus_StartStop(t *testing.T) {
	eb, err := NewEventBus()
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	go func() {
		_ = eb.Start(ctx)
	}()

	select {
	case <-eb.router.Running():
	case <-time.After(1 * time.Second):
		t.Fatal("Router did not start within timeout")
	}

	require.NoError(t, eb.Stop())
}
