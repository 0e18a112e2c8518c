package ticket_test

import (
	"context"
	"encoding/json"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"

	"github.com/miyuou/smartticket/internal"
	"github.com/miyuou/smartticket/internal/core/events"
	"github.com/miyuou/smartticket/internal/core/identity"
	"github.com/miyuou/smartticket/internal/core/optional"
	"github.com/miyuou/smartticket/internal/core/testdb"
	"github.com/miyuou/smartticket/internal/policy"
	"github.com/miyuou/smartticket/internal/ticket"
	"github.com/miyuou/smartticket/internal/ticket/postgres"
	"github.com/miyuou/smartticket/pkg/logger"
)

func principal(id int64, role identity.Role) identity.Principal {
	return identity.Principal{UserID: id, Role: role}
}

func ticketIDs(tickets []*ticket.Ticket) []int64 {
	ids := make([]int64, len(tickets))
	for i, t := range tickets {
		ids[i] = t.ID
	}
	return ids
}

var _ = Describe("Service", func() {
	var (
		db        *gorm.DB
		fx        *testdb.Fixture
		publisher *recordingPublisher
		service   *ticket.Service
		ctx       context.Context

		admin, techA, techB, techC, requester identity.Principal
	)

	newService := func(cfg ticket.Config) *ticket.Service {
		return ticket.NewService(postgres.NewTicketRepository(db), publisher, cfg, logger.Discard())
	}

	createDTO := func(titre string, techs ...int64) ticket.CreateTicketDTO {
		return ticket.CreateTicketDTO{
			Titre:         titre,
			Demandeur:     "Compta",
			CategorieID:   fx.Categories["Logiciel"],
			StatutID:      fx.Statuts["Nouveau"],
			TypeID:        fx.Types["Demande"],
			TechnicienIDs: techs,
		}
	}

	BeforeEach(func() {
		var err error
		db, err = testdb.Open()
		Expect(err).NotTo(HaveOccurred())
		fx, err = testdb.Seed(db)
		Expect(err).NotTo(HaveOccurred())

		publisher = &recordingPublisher{}
		service = newService(ticket.Config{ResolvedStatus: "Résolu"})
		ctx = context.Background()

		admin = principal(fx.Admin.ID, identity.RoleAdmin)
		techA = principal(fx.TechA.ID, identity.RoleTechnician)
		techB = principal(fx.TechB.ID, identity.RoleTechnician)
		techC = principal(fx.TechC.ID, identity.RoleTechnician)
		requester = principal(fx.Requester.ID, identity.RoleRequester)
	})

	AfterEach(func() {
		Expect(testdb.Close(db)).To(Succeed())
	})

	Describe("visibility scenario", func() {
		var x *ticket.Ticket

		BeforeEach(func() {
			var err error
			x, err = service.CreateTicket(ctx, admin, createDTO("Imprimante", fx.TechA.ID))
			Expect(err).NotTo(HaveOccurred())
		})

		It("shows the ticket to its technician, admin and requester only", func() {
			list, err := service.ListTickets(ctx, techB)
			Expect(err).NotTo(HaveOccurred())
			Expect(list).To(BeEmpty())

			list, err = service.ListTickets(ctx, techC)
			Expect(err).NotTo(HaveOccurred())
			Expect(list).To(BeEmpty())

			list, err = service.ListTickets(ctx, techA)
			Expect(err).NotTo(HaveOccurred())
			Expect(ticketIDs(list)).To(Equal([]int64{x.ID}))

			list, err = service.ListTickets(ctx, admin)
			Expect(err).NotTo(HaveOccurred())
			Expect(ticketIDs(list)).To(Equal([]int64{x.ID}))

			list, err = service.ListTickets(ctx, requester)
			Expect(err).NotTo(HaveOccurred())
			Expect(ticketIDs(list)).To(Equal([]int64{x.ID}))
		})

		It("forbids reading someone else's ticket as not assigned", func() {
			_, err := service.GetTicket(ctx, techB, x.ID)
			Expect(err).To(MatchError(internal.ErrNotAssigned))

			got, err := service.GetTicket(ctx, techA, x.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Titre).To(Equal("Imprimante"))
		})

		It("forbids a status update on an unassigned ticket and leaves it intact", func() {
			dto := ticket.UpdateTicketDTO{StatutID: optional.Of(fx.Statuts["En cours"])}
			_, err := service.UpdateTicket(ctx, techB, x.ID, dto)
			Expect(err).To(MatchError(internal.ErrNotAssigned))

			got, err := service.GetTicket(ctx, admin, x.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Statut.Nom).To(Equal("Nouveau"))
			Expect(got.DateModification).To(BeTemporally("==", x.DateModification))
		})

		It("returns not found before checking assignment", func() {
			_, err := service.GetTicket(ctx, techB, 4242)
			Expect(err).To(MatchError(internal.ErrTicketNotFound))
		})
	})

	Describe("CreateTicket", func() {
		It("returns nested references equal to the inputs", func() {
			t, err := service.CreateTicket(ctx, admin, createDTO("Licence", fx.TechA.ID, fx.TechB.ID))
			Expect(err).NotTo(HaveOccurred())
			Expect(t.Categorie.ID).To(Equal(fx.Categories["Logiciel"]))
			Expect(t.Statut.ID).To(Equal(fx.Statuts["Nouveau"]))
			Expect(t.Type.ID).To(Equal(fx.Types["Demande"]))
			Expect(t.Type.Nom).To(Equal("Demande"))
			Expect(t.TechnicianIDs()).To(ConsistOf(fx.TechA.ID, fx.TechB.ID))
			Expect(t.DateResolution).To(BeNil())

			read, err := service.GetTicket(ctx, admin, t.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(read.CategorieID).To(Equal(t.CategorieID))
			Expect(read.StatutID).To(Equal(t.StatutID))
			Expect(read.TypeID).To(Equal(t.TypeID))

			Expect(publisher.Types()).To(Equal([]string{events.EventTypeTicketCreated}))
		})

		It("stamps date_resolution when created resolved", func() {
			dto := createDTO("Déjà réglé")
			dto.StatutID = fx.Statuts["Résolu"]
			t, err := service.CreateTicket(ctx, admin, dto)
			Expect(err).NotTo(HaveOccurred())
			Expect(t.DateResolution).NotTo(BeNil())
		})

		It("rolls the ticket back when an assignee is unknown", func() {
			_, err := service.CreateTicket(ctx, admin, createDTO("Fantôme", 999))
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Type).To(Equal(internal.ErrorTypeInvalidReference))

			list, err := service.ListTickets(ctx, admin)
			Expect(err).NotTo(HaveOccurred())
			Expect(list).To(BeEmpty())
			Expect(publisher.Types()).To(BeEmpty())
		})

		It("rejects an unknown category as an invalid reference", func() {
			dto := createDTO("Mauvaise catégorie")
			dto.CategorieID = 999
			_, err := service.CreateTicket(ctx, admin, dto)
			Expect(err).To(MatchError(internal.ErrUnknownCategory))
		})

		It("validates required fields", func() {
			_, err := service.CreateTicket(ctx, admin, ticket.CreateTicketDTO{})
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Type).To(Equal(internal.ErrorTypeValidation))
		})

		It("is forbidden to technicians and requesters", func() {
			_, err := service.CreateTicket(ctx, techA, createDTO("Non"))
			Expect(err).To(MatchError(internal.ErrRoleNotPermitted))
			_, err = service.CreateTicket(ctx, requester, createDTO("Non"))
			Expect(err).To(MatchError(internal.ErrRoleNotPermitted))
		})
	})

	Describe("UpdateTicket", func() {
		var x *ticket.Ticket

		BeforeEach(func() {
			dto := createDTO("Écran noir", fx.TechA.ID)
			dto.Description = func() *string { s := "Ecran du poste 12"; return &s }()
			var err error
			x, err = service.CreateTicket(ctx, admin, dto)
			Expect(err).NotTo(HaveOccurred())
		})

		It("lets the assigned technician change the status", func() {
			got, err := service.UpdateTicket(ctx, techA, x.ID, ticket.UpdateTicketDTO{StatutID: optional.Of(fx.Statuts["En cours"])})
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Statut.Nom).To(Equal("En cours"))
			Expect(got.DateModification.After(x.DateModification)).To(BeTrue())
		})

		It("drops non-status fields from a technician by default", func() {
			var dto ticket.UpdateTicketDTO
			Expect(json.Unmarshal([]byte(`{"statut_id": `+jsonInt(fx.Statuts["En cours"])+`, "titre": "Pirate", "technicien_ids": []}`), &dto)).To(Succeed())

			got, err := service.UpdateTicket(ctx, techA, x.ID, dto)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Statut.Nom).To(Equal("En cours"))
			Expect(got.Titre).To(Equal("Écran noir"))
			Expect(got.TechnicianIDs()).To(Equal([]int64{fx.TechA.ID}))
		})

		It("ignores invalid out-of-scope fields from the assigned technician", func() {
			var dto ticket.UpdateTicketDTO
			Expect(json.Unmarshal([]byte(`{"statut_id": `+jsonInt(fx.Statuts["En cours"])+`, "technicien_ids": [0]}`), &dto)).To(Succeed())

			got, err := service.UpdateTicket(ctx, techA, x.ID, dto)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Statut.Nom).To(Equal("En cours"))
			Expect(got.TechnicianIDs()).To(Equal([]int64{fx.TechA.ID}))
		})

		It("reports not assigned before validating the payload", func() {
			var dto ticket.UpdateTicketDTO
			Expect(json.Unmarshal([]byte(`{"statut_id": `+jsonInt(fx.Statuts["En cours"])+`, "titre": null}`), &dto)).To(Succeed())

			_, err := service.UpdateTicket(ctx, techB, x.ID, dto)
			Expect(err).To(MatchError(internal.ErrNotAssigned))
		})

		It("still validates the status a technician sends", func() {
			var dto ticket.UpdateTicketDTO
			Expect(json.Unmarshal([]byte(`{"statut_id": null}`), &dto)).To(Succeed())

			_, err := service.UpdateTicket(ctx, techA, x.ID, dto)
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Type).To(Equal(internal.ErrorTypeValidation))
		})

		It("rejects non-status fields from a technician in strict mode", func() {
			strict := newService(ticket.Config{ResolvedStatus: "Résolu", StrictTechnicianUpdates: true})
			dto := ticket.UpdateTicketDTO{
				StatutID:      optional.Of(fx.Statuts["En cours"]),
				TechnicienIDs: optional.Of([]int64{fx.TechB.ID}),
			}

			_, err := strict.UpdateTicket(ctx, techA, x.ID, dto)
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Type).To(Equal(internal.ErrorTypeValidation))

			got, err := strict.GetTicket(ctx, admin, x.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Statut.Nom).To(Equal("Nouveau"))
		})

		It("lets admin replace the assignees", func() {
			got, err := service.UpdateTicket(ctx, admin, x.ID, ticket.UpdateTicketDTO{
				TechnicienIDs: optional.Of([]int64{fx.TechB.ID, fx.TechC.ID}),
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(got.TechnicianIDs()).To(ConsistOf(fx.TechB.ID, fx.TechC.ID))

			list, err := service.ListTickets(ctx, techA)
			Expect(err).NotTo(HaveOccurred())
			Expect(list).To(BeEmpty())
		})

		It("clears the assignees on null", func() {
			var dto ticket.UpdateTicketDTO
			Expect(json.Unmarshal([]byte(`{"technicien_ids": null}`), &dto)).To(Succeed())
			got, err := service.UpdateTicket(ctx, admin, x.ID, dto)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Techniciens).To(BeEmpty())
		})

		It("distinguishes absent from null for description", func() {
			var dto ticket.UpdateTicketDTO
			Expect(json.Unmarshal([]byte(`{"titre": "Écran noir (bis)"}`), &dto)).To(Succeed())
			got, err := service.UpdateTicket(ctx, admin, x.ID, dto)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Description).NotTo(BeNil())

			dto = ticket.UpdateTicketDTO{}
			Expect(json.Unmarshal([]byte(`{"description": null}`), &dto)).To(Succeed())
			got, err = service.UpdateTicket(ctx, admin, x.ID, dto)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Description).To(BeNil())
		})

		It("stamps date_resolution on entering the resolved status and clears it on leaving", func() {
			got, err := service.UpdateTicket(ctx, techA, x.ID, ticket.UpdateTicketDTO{StatutID: optional.Of(fx.Statuts["Résolu"])})
			Expect(err).NotTo(HaveOccurred())
			Expect(got.DateResolution).NotTo(BeNil())
			Expect(*got.DateResolution).To(BeTemporally("~", time.Now(), 5*time.Second))

			got, err = service.UpdateTicket(ctx, techA, x.ID, ticket.UpdateTicketDTO{StatutID: optional.Of(fx.Statuts["En cours"])})
			Expect(err).NotTo(HaveOccurred())
			Expect(got.DateResolution).To(BeNil())
		})

		It("keeps an explicit admin resolution date", func() {
			resolved := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
			got, err := service.UpdateTicket(ctx, admin, x.ID, ticket.UpdateTicketDTO{
				StatutID:       optional.Of(fx.Statuts["Résolu"]),
				DateResolution: optional.Of(resolved),
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(*got.DateResolution).To(BeTemporally("==", resolved))
		})

		It("rejects a null title", func() {
			var dto ticket.UpdateTicketDTO
			Expect(json.Unmarshal([]byte(`{"titre": null}`), &dto)).To(Succeed())
			_, err := service.UpdateTicket(ctx, admin, x.ID, dto)
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Type).To(Equal(internal.ErrorTypeValidation))
		})

		It("publishes the changed fields", func() {
			_, err := service.UpdateTicket(ctx, techA, x.ID, ticket.UpdateTicketDTO{StatutID: optional.Of(fx.Statuts["En cours"])})
			Expect(err).NotTo(HaveOccurred())

			Expect(publisher.Types()).To(Equal([]string{events.EventTypeTicketCreated, events.EventTypeTicketUpdated}))
			updated := publisher.events[1].(*events.TicketEvent)
			Expect(updated.Fields).To(Equal([]string{"statut_id"}))
			Expect(updated.ActorRole).To(Equal("technicien"))
		})

		It("is forbidden to requesters", func() {
			_, err := service.UpdateTicket(ctx, requester, x.ID, ticket.UpdateTicketDTO{StatutID: optional.Of(fx.Statuts["En cours"])})
			Expect(err).To(MatchError(internal.ErrRoleNotPermitted))
		})
	})

	Describe("DeleteTicket", func() {
		It("deletes for admin and reports not found afterwards", func() {
			x, err := service.CreateTicket(ctx, admin, createDTO("Doublon", fx.TechA.ID))
			Expect(err).NotTo(HaveOccurred())

			Expect(service.DeleteTicket(ctx, admin, x.ID)).To(Succeed())
			Expect(service.DeleteTicket(ctx, admin, x.ID)).To(MatchError(internal.ErrTicketNotFound))

			list, err := service.ListTickets(ctx, techA)
			Expect(err).NotTo(HaveOccurred())
			Expect(list).To(BeEmpty())
		})

		It("is forbidden to an assigned technician", func() {
			x, err := service.CreateTicket(ctx, admin, createDTO("Garde", fx.TechA.ID))
			Expect(err).NotTo(HaveOccurred())
			Expect(service.DeleteTicket(ctx, techA, x.ID)).To(MatchError(internal.ErrRoleNotPermitted))
		})
	})

	Describe("denials", func() {
		It("never reach the store", func() {
			repo := &countingRepository{}
			svc := ticket.NewService(repo, publisher, ticket.Config{}, logger.Discard())

			_, err := svc.CreateTicket(ctx, techA, ticket.CreateTicketDTO{})
			Expect(err).To(MatchError(internal.ErrRoleNotPermitted))
			Expect(svc.DeleteTicket(ctx, requester, 1)).To(MatchError(internal.ErrRoleNotPermitted))
			_, err = svc.UpdateTicket(ctx, requester, 1, ticket.UpdateTicketDTO{})
			Expect(err).To(MatchError(internal.ErrRoleNotPermitted))
			_, err = svc.ListTickets(ctx, identity.Principal{UserID: 1})
			Expect(err).To(MatchError(internal.ErrUnknownRole))

			Expect(repo.calls).To(BeZero())
			Expect(publisher.Types()).To(BeEmpty())
		})

		It("reports the operation and reason to the deny hook", func() {
			x, err := service.CreateTicket(ctx, admin, createDTO("Scanner", fx.TechA.ID))
			Expect(err).NotTo(HaveOccurred())

			var ops []policy.Operation
			var reasons []policy.Reason
			service.OnDeny(func(op policy.Operation, reason policy.Reason) {
				ops = append(ops, op)
				reasons = append(reasons, reason)
			})

			_, err = service.UpdateTicket(ctx, techB, x.ID, ticket.UpdateTicketDTO{StatutID: optional.Of(fx.Statuts["En cours"])})
			Expect(err).To(MatchError(internal.ErrNotAssigned))
			Expect(ops).To(Equal([]policy.Operation{policy.OpUpdateTicket}))
			Expect(reasons).To(Equal([]policy.Reason{policy.ReasonNotAssigned}))
		})
	})
})

func jsonInt(v int64) string {
	b, _ := json.Marshal(v)
	return string(b)
}
