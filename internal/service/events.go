package service

import (
	"context"
	"time"

	"github.com/labstack/gommon/log"

	"github.com/iliyamo/blog-platform/internal/queue"
)

// EventPublisher delivers activity events.  queue.Publisher and
// queue.Discard implement it.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.ActivityEvent) error
}

// emit publishes an event and only logs failures: a broker outage must
// never fail a write that already committed.
func emit(ctx context.Context, p EventPublisher, now time.Time, typ, actorID, subjectID string, attrs map[string]string) {
	if p == nil {
		return
	}
	ev := queue.ActivityEvent{Type: typ, ActorID: actorID, SubjectID: subjectID, Attrs: attrs, OccurredAt: now}
	if err := p.Publish(ctx, ev); err != nil {
		log.Warnj(log.JSON{"msg": "publish activity event failed", "type": typ, "subject_id": subjectID, "error": err.Error()})
	}
}
