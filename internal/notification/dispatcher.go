package notification

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/IlamSingleBrainCell/enterprise-ai-studio/internal/event"
)

// Dispatcher pushes a notification whenever a workflow reaches a terminal
// state.
type Dispatcher struct {
	sender *Sender
}

func NewDispatcher(sender *Sender) *Dispatcher {
	return &Dispatcher{sender: sender}
}

// Register subscribes the dispatcher to terminal workflow events on the bus.
func (d *Dispatcher) Register(ctx context.Context, bus *event.EventBus) error {
	if err := event.SubscribeTyped(bus, ctx, event.WorkflowCompleted, "push-workflow-completed", d.handleCompleted); err != nil {
		return err
	}
	if err := event.SubscribeTyped(bus, ctx, event.WorkflowFailed, "push-workflow-failed", d.handleFailed); err != nil {
		return err
	}
	slog.Info("push notification dispatcher registered")
	return nil
}

func (d *Dispatcher) handleCompleted(ctx context.Context, e *event.Event[event.WorkflowCompletedData]) error {
	d.sender.SendToAll(ctx, &Payload{
		Title:      "Workflow completed",
		Body:       fmt.Sprintf("Workflow %s finished %d of %d tasks", e.Data.WorkflowID, e.Data.CompletedTasks, e.Data.TotalTasks),
		WorkflowID: e.Data.WorkflowID,
		Status:     "COMPLETED",
		Tag:        e.Data.WorkflowID,
	})
	return nil
}

func (d *Dispatcher) handleFailed(ctx context.Context, e *event.Event[event.WorkflowFailedData]) error {
	body := fmt.Sprintf("Workflow %s failed", e.Data.WorkflowID)
	if e.Data.AgentRole != "" {
		body = fmt.Sprintf("Workflow %s failed at %s", e.Data.WorkflowID, e.Data.AgentRole)
	}
	d.sender.SendToAll(ctx, &Payload{
		Title:      "Workflow failed",
		Body:       body,
		WorkflowID: e.Data.WorkflowID,
		Status:     "FAILED",
		Tag:        e.Data.WorkflowID,
	})
	return nil
}
