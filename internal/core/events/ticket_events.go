package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypeTicketCreated   = "ticket.created"
	EventTypeTicketUpdated   = "ticket.updated"
	EventTypeTicketDeleted   = "ticket.deleted"
	EventTypeTicketsImported = "tickets.imported"
)

var TicketEventTypes = []string{
	EventTypeTicketCreated,
	EventTypeTicketUpdated,
	EventTypeTicketDeleted,
	EventTypeTicketsImported,
}

type TicketEvent struct {
	BaseEvent
	TicketID  int64    `json:"ticket_id"`
	ActorID   int64    `json:"actor_id"`
	ActorRole string   `json:"actor_role"`
	Fields    []string `json:"fields,omitempty"`
}

func NewTicketEvent(eventType string, ticketID, actorID int64, actorRole string, fields []string) *TicketEvent {
	return &TicketEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      eventType,
			Timestamp: time.Now().UTC(),
			Data: map[string]interface{}{
				"ticket_id":  ticketID,
				"actor_id":   actorID,
				"actor_role": actorRole,
				"fields":     fields,
			},
		},
		TicketID:  ticketID,
		ActorID:   actorID,
		ActorRole: actorRole,
		Fields:    fields,
	}
}

type TicketsImportedEvent struct {
	BaseEvent
	ActorID  int64 `json:"actor_id"`
	Imported int   `json:"imported"`
	Failed   int   `json:"failed"`
}

func NewTicketsImportedEvent(actorID int64, imported, failed int) *TicketsImportedEvent {
	return &TicketsImportedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeTicketsImported,
			Timestamp: time.Now().UTC(),
			Data: map[string]interface{}{
				"actor_id": actorID,
				"imported": imported,
				"failed":   failed,
			},
		},
		ActorID:  actorID,
		Imported: imported,
		Failed:   failed,
	}
}
