// Package activity provides the in-process change feed for store mutations.
// The task store publishes an event for every mutation; the server fans
// them out to SSE clients and serves the recent history.
package activity

import "time"

// Type identifies the kind of store mutation an event describes.
type Type string

const (
	TypeTaskCreated   Type = "task_created"
	TypeTaskUpdated   Type = "task_updated"
	TypeTaskDeleted   Type = "task_deleted"
	TypeStatusChanged Type = "status_changed"
	TypeCommentAdded  Type = "comment_added"
	TypeTimeLogged    Type = "time_logged"
	TypeTimerStarted  Type = "timer_started"
	TypeTimerStopped  Type = "timer_stopped"
	TypeAttachment    Type = "attachment_changed"
	TypeLinkChanged   Type = "link_changed"
)

// Event is a single entry in the change feed.
type Event struct {
	ID        string    `json:"id"`
	Type      Type      `json:"type"`
	TaskID    string    `json:"task_id,omitempty"`
	Actor     string    `json:"actor,omitempty"` // user name, empty for system
	Summary   string    `json:"summary"`
	Timestamp time.Time `json:"timestamp"`
}

// Handler processes published events.
type Handler func(ev *Event)

// Feed is the change-feed backbone. Subscribers receive every published
// event; Recent serves the feed history.
type Feed interface {
	// Publish appends an event to the history and delivers it to all
	// subscribers.
	Publish(ev *Event)

	// Subscribe registers a handler for all events.
	// The returned function unsubscribes the handler.
	Subscribe(handler Handler) (unsubscribe func())

	// Recent returns up to limit events in chronological order, optionally
	// restricted to one task.
	Recent(taskID string, limit int) []*Event
}
