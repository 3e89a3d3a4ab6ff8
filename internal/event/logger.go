package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill/message"
)

// EventLogger writes every bus event to the structured log.
type EventLogger struct {
	logger *slog.Logger
}

// NewEventLogger creates a new event logger
func NewEventLogger(logger *slog.Logger) *EventLogger {
	return &EventLogger{
		logger: logger,
	}
}

// Register subscribes the logger to every event type on the bus.
func (el *EventLogger) Register(ctx context.Context, eventBus *EventBus) error {
	for _, eventType := range AllEventTypes() {
		handlerName := fmt.Sprintf("event-logger-%s", eventType)
		if err := eventBus.SubscribeAsync(ctx, eventType, handlerName, el.handle); err != nil {
			return fmt.Errorf("failed to subscribe logger to %s: %w", eventType, err)
		}
	}
	return nil
}

func (el *EventLogger) handle(msg *message.Message) error {
	eventMsg, err := decodeEventMessage(msg)
	if err != nil {
		el.logger.WarnContext(msg.Context(), "dropping undecodable event", slog.String("error", err.Error()))
		return nil
	}

	el.logger.InfoContext(msg.Context(), "event",
		slog.String("event_id", eventMsg.ID),
		slog.String("event_type", string(eventMsg.Type)),
		slog.String("source", eventMsg.Source),
		slog.String("data", string(eventMsg.Data)),
	)
	return nil
}

func decodeEventMessage(msg *message.Message) (*EventMessage, error) {
	var eventMsg EventMessage
	if err := json.Unmarshal(msg.Payload, &eventMsg); err != nil {
		return nil, err
	}
	return &eventMsg, nil
}
