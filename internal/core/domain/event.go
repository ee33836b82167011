package domain

import "time"

// EventType identifies the kind of change carried by a feed event.
type EventType string

const (
	EventInsert EventType = "insert"
	EventUpdate EventType = "update"
	EventDelete EventType = "delete"
)

// ChangeEvent is one change notification delivered by a push feed.
// New carries the row after the change, Old the row before it (delete
// events carry only Old). Feeds give no replay or ordering guarantee
// across disconnects.
type ChangeEvent struct {
	Type       EventType `json:"event"`
	New        *Order    `json:"new,omitempty"`
	Old        *Order    `json:"old,omitempty"`
	ReceivedAt time.Time `json:"-"`
}

// OrderID returns the id of the order the event refers to.
func (e *ChangeEvent) OrderID() string {
	if e.New != nil {
		return e.New.ID
	}
	if e.Old != nil {
		return e.Old.ID
	}
	return ""
}

// Timestamp returns the server-side update time of the event, falling back
// to the local receive time when the payload carries none.
func (e *ChangeEvent) Timestamp() time.Time {
	if e.New != nil && !e.New.UpdatedAt.IsZero() {
		return e.New.UpdatedAt
	}
	return e.ReceivedAt
}
