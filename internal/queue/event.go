// Package queue defines message payloads exchanged over the message broker.
package queue

import (
	"context"
	"time"
)

// ActivityQueueName is the durable queue every domain event is routed to.
const ActivityQueueName = "blog.activity"

// Activity event types.
const (
	EventUserRegistered  = "user.registered"
	EventUserRoleChanged = "user.role_changed"
	EventUserDeleted     = "user.deleted"
	EventPostCreated     = "post.created"
	EventPostUpdated     = "post.updated"
	EventPostPublished   = "post.published"
	EventPostDeleted     = "post.deleted"
	EventFavoriteAdded   = "favorite.added"
	EventFavoriteRemoved = "favorite.removed"
)

// ActivityEvent is published after a successful write.  It carries ids
// only, so consumers that need details must read them from the primary
// database.
type ActivityEvent struct {
	Type       string            `json:"type"`
	ActorID    string            `json:"actor_id,omitempty"`
	SubjectID  string            `json:"subject_id"`
	Attrs      map[string]string `json:"attrs,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// Discard drops every event.  It is used when EVENTS_ENABLED is false.
type Discard struct{}

func (Discard) Publish(context.Context, ActivityEvent) error { return nil }
