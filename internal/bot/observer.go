package bot

import (
	"context"

	"github.com/m3rciful/aqibot/internal/audit"
	"github.com/m3rciful/aqibot/internal/conversation"
)

// Recorder accepts usage events without blocking.
type Recorder interface {
	Record(ctx context.Context, e audit.Event)
}

// AuditObserver forwards conversation usage records to rec.
func AuditObserver(rec Recorder) conversation.Observer {
	return auditObserver{rec: rec}
}

type auditObserver struct {
	rec Recorder
}

func (o auditObserver) Observe(ctx context.Context, r conversation.Record) {
	o.rec.Record(ctx, audit.Event{
		UserID:    r.User.ID,
		Username:  r.User.Username,
		FirstName: r.User.FirstName,
		Action:    r.Action,
		Details:   r.Details,
	})
}
