package events_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/miyuou/smartticket/internal/core/events"
	"github.com/miyuou/smartticket/pkg/logger"
)

var _ = Describe("EventBus", func() {
	var bus *events.EventBus

	BeforeEach(func() {
		bus = events.NewEventBus(logger.Discard())
	})

	It("runs synchronous handlers in subscription order", func() {
		var order []string
		bus.Subscribe(events.EventTypeTicketCreated, func(ctx context.Context, e events.Event) error {
			order = append(order, "first")
			return nil
		})
		bus.Subscribe(events.EventTypeTicketCreated, func(ctx context.Context, e events.Event) error {
			order = append(order, "second")
			return nil
		})

		err := bus.PublishSync(context.Background(), events.NewTicketEvent(events.EventTypeTicketCreated, 1, 2, "admin", nil))
		Expect(err).NotTo(HaveOccurred())
		Expect(order).To(Equal([]string{"first", "second"}))
	})

	It("stops at the first failing handler", func() {
		var calls int32
		bus.Subscribe(events.EventTypeTicketDeleted, func(ctx context.Context, e events.Event) error {
			atomic.AddInt32(&calls, 1)
			return errors.New("boom")
		})
		bus.Subscribe(events.EventTypeTicketDeleted, func(ctx context.Context, e events.Event) error {
			atomic.AddInt32(&calls, 1)
			return nil
		})

		err := bus.PublishSync(context.Background(), events.NewTicketEvent(events.EventTypeTicketDeleted, 1, 2, "admin", nil))
		Expect(err).To(MatchError(ContainSubstring("boom")))
		Expect(atomic.LoadInt32(&calls)).To(Equal(int32(1)))
	})

	It("ignores events nobody listens to", func() {
		Expect(bus.PublishSync(context.Background(), events.NewTicketsImportedEvent(1, 2, 0))).To(Succeed())
		Expect(bus.Publish(context.Background(), events.NewTicketsImportedEvent(1, 2, 0))).To(Succeed())
	})

	It("delivers asynchronous events after the request context is gone", func() {
		received := make(chan error, 1)
		bus.Subscribe(events.EventTypeTicketUpdated, func(ctx context.Context, e events.Event) error {
			received <- ctx.Err()
			return nil
		})

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		Expect(bus.Publish(ctx, events.NewTicketEvent(events.EventTypeTicketUpdated, 42, 1, "admin", []string{"statut_id"}))).To(Succeed())
		Eventually(received).Should(Receive(BeNil()))
	})

	It("counts handlers per event type", func() {
		noop := func(ctx context.Context, e events.Event) error { return nil }
		bus.Subscribe(events.EventTypeTicketCreated, noop)
		bus.Subscribe(events.EventTypeTicketCreated, noop)
		bus.Subscribe(events.EventTypeTicketsImported, noop)

		Expect(bus.HandlerCounts()).To(Equal(map[string]int{
			events.EventTypeTicketCreated:   2,
			events.EventTypeTicketsImported: 1,
		}))
	})

	Describe("AuditLogHandler", func() {
		It("logs the ticket and actor", func() {
			var buf bytes.Buffer
			lg := slog.New(slog.NewTextHandler(&buf, nil))
			bus.Subscribe(events.EventTypeTicketUpdated, events.AuditLogHandler(lg))

			ev := events.NewTicketEvent(events.EventTypeTicketUpdated, 5, 9, "technicien", []string{"statut_id"})
			Expect(bus.PublishSync(context.Background(), ev)).To(Succeed())

			Expect(buf.String()).To(ContainSubstring("ticket_id=5"))
			Expect(buf.String()).To(ContainSubstring("actor_role=technicien"))
			Expect(buf.String()).To(ContainSubstring("event_type=ticket.updated"))
		})
	})
})
