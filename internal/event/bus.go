package event

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/sourcegraph/conc"
)

type PubSub interface {
	message.Publisher
	message.Subscriber
}

// EventBus manages event publishing and subscription
type EventBus struct {
	pubSub PubSub
	router *message.Router
	logger watermill.LoggerAdapter
}

// EventHandler is a function that handles events
type EventHandler[T any] func(ctx context.Context, event *Event[T]) error

// NewEventBus creates a new event bus
func NewEventBus() (*EventBus, error) {
	logger := watermill.NewStdLogger(false, false)

	pubSub := gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer: 256,
		},
		logger,
	)

	router, err := message.NewRouter(message.RouterConfig{}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create router: %w", err)
	}

	return &EventBus{
		pubSub: pubSub,
		router: router,
		logger: logger,
	}, nil
}

// Start starts the event bus and blocks until ctx is canceled
func (eb *EventBus) Start(ctx context.Context) error {
	return eb.router.Run(ctx)
}

// Stop stops the event bus
func (eb *EventBus) Stop() error {
	return eb.router.Close()
}

// Publish publishes an event, inferring its type from the payload
func (eb *EventBus) Publish(ctx context.Context, source string, data any) error {
	eventMsg := &EventMessage{
		ID:        generateEventID(),
		Type:      inferEventType(data),
		Timestamp: time.Now(),
		Source:    source,
	}

	rawData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}
	eventMsg.Data = rawData

	return eb.publishMessage(ctx, eventMsg)
}

// SubscribeAsync subscribes to events using watermill's message router.
// Handlers added while the router is already running are started immediately.
func (eb *EventBus) SubscribeAsync(ctx context.Context, eventType EventType, handlerName string, handler func(msg *message.Message) error) error {
	eb.router.AddNoPublisherHandler(
		handlerName,
		string(eventType),
		eb.pubSub,
		handler,
	)

	select {
	case <-eb.router.Running():
		return eb.router.RunHandlers(ctx)
	default:
		return nil
	}
}

// Stream subscribes to the given event types (all types when none are given)
// and fans them into a single channel. The channel is closed once ctx is done
// and every subscription has drained.
func (eb *EventBus) Stream(ctx context.Context, types ...EventType) (<-chan *EventMessage, error) {
	if len(types) == 0 {
		types = AllEventTypes()
	}

	subscriptions := make([]<-chan *message.Message, 0, len(types))
	for _, eventType := range types {
		messages, err := eb.pubSub.Subscribe(ctx, string(eventType))
		if err != nil {
			return nil, fmt.Errorf("failed to subscribe to %s: %w", eventType, err)
		}
		subscriptions = append(subscriptions, messages)
	}

	out := make(chan *EventMessage, 64)
	var wg conc.WaitGroup
	for _, messages := range subscriptions {
		messages := messages
		wg.Go(func() {
			for msg := range messages {
				var eventMsg EventMessage
				if err := json.Unmarshal(msg.Payload, &eventMsg); err != nil {
					eb.logger.Error("failed to unmarshal streamed event", err, nil)
					msg.Ack()
					continue
				}
				select {
				case out <- &eventMsg:
				case <-ctx.Done():
				}
				msg.Ack()
			}
		})
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	return out, nil
}

func (eb *EventBus) publishMessage(ctx context.Context, eventMsg *EventMessage) error {
	payload, err := json.Marshal(eventMsg)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)

	if err := eb.pubSub.Publish(string(eventMsg.Type), msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// PublishTyped publishes a typed event (helper function)
func PublishTyped[T any](eb *EventBus, ctx context.Context, event *Event[T]) error {
	eventMsg, err := event.ToMessage()
	if err != nil {
		return fmt.Errorf("failed to convert event to message: %w", err)
	}

	return eb.publishMessage(ctx, eventMsg)
}

// SubscribeTyped subscribes to typed events (helper function)
func SubscribeTyped[T any](eb *EventBus, ctx context.Context, eventType EventType, handlerName string, handler EventHandler[T]) error {
	return eb.SubscribeAsync(ctx, eventType, handlerName, func(msg *message.Message) error {
		var eventMsg EventMessage
		if err := json.Unmarshal(msg.Payload, &eventMsg); err != nil {
			return fmt.Errorf("failed to unmarshal event message: %w", err)
		}

		event, err := FromMessage[T](&eventMsg)
		if err != nil {
			return fmt.Errorf("failed to convert message to event: %w", err)
		}

		return handler(msg.Context(), event)
	})
}
