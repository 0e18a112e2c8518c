package events

import (
	"context"
	"log/slog"
)

// AuditLogHandler writes one structured line per ticket change.
func AuditLogHandler(logger *slog.Logger) Handler {
	return func(ctx context.Context, event Event) error {
		attrs := []any{
			"event_id", event.EventID(),
			"event_type", event.EventType(),
			"occurred_at", event.OccurredAt(),
		}
		switch e := event.(type) {
		case *TicketEvent:
			attrs = append(attrs, "ticket_id", e.TicketID, "actor_id", e.ActorID, "actor_role", e.ActorRole)
			if len(e.Fields) > 0 {
				attrs = append(attrs, "fields", e.Fields)
			}
		case *TicketsImportedEvent:
			attrs = append(attrs, "actor_id", e.ActorID, "imported", e.Imported, "failed", e.Failed)
		}
		logger.InfoContext(ctx, "audit", attrs...)
		return nil
	}
}
