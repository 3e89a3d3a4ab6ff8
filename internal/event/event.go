package event

import (
	"encoding/json"
	"reflect"
	"time"

	"github.com/oklog/ulid/v2"
)

// EventType represents the type of event
type EventType string

const (
	// Workflow lifecycle events
	WorkflowCreated   EventType = "workflow.created"
	WorkflowPaused    EventType = "workflow.paused"
	WorkflowResumed   EventType = "workflow.resumed"
	WorkflowCompleted EventType = "workflow.completed"
	WorkflowFailed    EventType = "workflow.failed"

	// Task events emitted while a workflow is running
	TaskCompleted EventType = "workflow.task_completed"
	TaskSkipped   EventType = "workflow.task_skipped"

	// EventTypeUnknown is used for payloads the bus cannot classify
	EventTypeUnknown EventType = "unknown"
)

// AllEventTypes returns every event type the bus can carry.
func AllEventTypes() []EventType {
	return []EventType{
		WorkflowCreated, WorkflowPaused, WorkflowResumed,
		WorkflowCompleted, WorkflowFailed,
		TaskCompleted, TaskSkipped,
	}
}

// Event represents a typed system event
type Event[T any] struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
	Data      T         `json:"data"`
}

// EventMessage represents a serialized event for transport
type EventMessage struct {
	ID        string          `json:"id"`
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Source    string          `json:"source"`
	Data      json.RawMessage `json:"data"`
}

// NewEvent creates a new typed event
func NewEvent[T any](source string, data T) *Event[T] {
	return &Event[T]{
		ID:        generateEventID(),
		Timestamp: time.Now(),
		Source:    source,
		Data:      data,
	}
}

// ToMessage converts a typed event to a transport message
func (e *Event[T]) ToMessage() (*EventMessage, error) {
	rawData, err := json.Marshal(e.Data)
	if err != nil {
		return nil, err
	}

	return &EventMessage{
		ID:        e.ID,
		Type:      inferEventType(e.Data),
		Timestamp: e.Timestamp,
		Source:    e.Source,
		Data:      rawData,
	}, nil
}

// FromMessage converts a transport message to a typed event
func FromMessage[T any](msg *EventMessage) (*Event[T], error) {
	var data T
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		return nil, err
	}

	return &Event[T]{
		ID:        msg.ID,
		Timestamp: msg.Timestamp,
		Source:    msg.Source,
		Data:      data,
	}, nil
}

// inferEventType infers EventType from data type
func inferEventType(data any) EventType {
	dataType := reflect.TypeOf(data)
	if dataType == nil {
		return EventTypeUnknown
	}
	if dataType.Kind() == reflect.Ptr {
		dataType = dataType.Elem()
	}

	switch dataType.Name() {
	case "WorkflowCreatedData":
		return WorkflowCreated
	case "WorkflowPausedData":
		return WorkflowPaused
	case "WorkflowResumedData":
		return WorkflowResumed
	case "WorkflowCompletedData":
		return WorkflowCompleted
	case "WorkflowFailedData":
		return WorkflowFailed
	case "TaskCompletedData":
		return TaskCompleted
	case "TaskSkippedData":
		return TaskSkipped
	default:
		return EventTypeUnknown
	}
}

// generateEventID generates a unique, sortable event ID
func generateEventID() string {
	return ulid.Make().String()
}

// WorkflowCreatedData represents data for workflow created event
type WorkflowCreatedData struct {
	WorkflowID  string `json:"workflow_id"`
	ProjectName string `json:"project_name"`
	TaskCount   int    `json:"task_count"`
}

// WorkflowPausedData represents data for workflow paused event
type WorkflowPausedData struct {
	WorkflowID string `json:"workflow_id"`
}

// WorkflowResumedData represents data for workflow resumed event
type WorkflowResumedData struct {
	WorkflowID string `json:"workflow_id"`
}

// WorkflowCompletedData represents data for workflow completed event
type WorkflowCompletedData struct {
	WorkflowID     string  `json:"workflow_id"`
	CompletedTasks int     `json:"completed_tasks"`
	TotalTasks     int     `json:"total_tasks"`
	Progress       float64 `json:"progress"`
}

// WorkflowFailedData represents data for workflow failed event
type WorkflowFailedData struct {
	WorkflowID   string `json:"workflow_id"`
	AgentRole    string `json:"agent_role"`
	ErrorMessage string `json:"error_message"`
}

// TaskCompletedData represents data for task completed event
type TaskCompletedData struct {
	WorkflowID     string  `json:"workflow_id"`
	TaskID         string  `json:"task_id"`
	AgentRole      string  `json:"agent_role"`
	Confidence     float64 `json:"confidence"`
	ProcessingTime float64 `json:"processing_time"`
}

// TaskSkippedData represents data for task skipped event
type TaskSkippedData struct {
	WorkflowID        string   `json:"workflow_id"`
	AgentRole         string   `json:"agent_role"`
	UnmetDependencies []string `json:"unmet_dependencies"`
}
