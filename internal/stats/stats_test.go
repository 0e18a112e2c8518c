package stats_test

import (
	"encoding/json"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/miyuou/smartticket/internal/stats"
	"github.com/miyuou/smartticket/internal/ticket"
)

var _ = Describe("Compute", func() {
	opened := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

	mk := func(statut string, statutID, categorieID int64, resolvedAfter time.Duration, techs ...string) *ticket.Ticket {
		t := &ticket.Ticket{
			DateOuverture: opened,
			StatutID:      statutID,
			CategorieID:   categorieID,
			Statut:        ticket.Ref{ID: statutID, Nom: statut},
			Techniciens:   []ticket.Technician{},
		}
		if resolvedAfter > 0 {
			at := opened.Add(resolvedAfter)
			t.DateResolution = &at
		}
		for i, name := range techs {
			t.Techniciens = append(t.Techniciens, ticket.Technician{ID: int64(i + 1), Nom: name})
		}
		return t
	}

	It("reports zeros for an empty set", func() {
		r := stats.Compute(nil, "Résolu")
		Expect(r.TotalTickets).To(BeZero())
		Expect(r.ResolutionRate).To(BeZero())
		Expect(r.AvgResolutionHours).To(BeZero())
		Expect(r.ByStatus).To(BeEmpty())
		Expect(r.ByTechnician).NotTo(BeNil())
	})

	It("averages resolution time only over resolved timestamps", func() {
		r := stats.Compute([]*ticket.Ticket{
			mk("Résolu", 4, 1, 2*time.Hour),
			mk("Résolu", 4, 1, 5*time.Hour),
			mk("Nouveau", 1, 2, 0),
		}, "Résolu")

		Expect(r.TotalTickets).To(Equal(3))
		Expect(r.ResolvedTickets).To(Equal(2))
		Expect(r.AvgResolutionHours).To(Equal(3.5))
		Expect(r.RawResolutionRate).To(BeNumerically("~", 66.6666, 0.001))
		Expect(r.ResolutionRate).To(Equal(66.67))
	})

	It("reports a zero average when nothing has a resolution timestamp", func() {
		r := stats.Compute([]*ticket.Ticket{mk("Résolu", 4, 1, 0), mk("Nouveau", 1, 1, 0)}, "Résolu")
		Expect(r.ResolvedTickets).To(Equal(1))
		Expect(r.AvgResolutionHours).To(BeZero())
	})

	It("matches the resolved label exactly", func() {
		r := stats.Compute([]*ticket.Ticket{mk("Résolu", 4, 1, time.Hour)}, "Closed")
		Expect(r.ResolvedTickets).To(BeZero())
		Expect(r.ResolutionRate).To(BeZero())
		Expect(r.AvgResolutionHours).To(Equal(1.0))
	})

	It("keeps the resolution rate within 0 and 100", func() {
		sets := [][]*ticket.Ticket{
			nil,
			{mk("Nouveau", 1, 1, 0)},
			{mk("Résolu", 4, 1, time.Hour)},
			{mk("Résolu", 4, 1, time.Hour), mk("Résolu", 4, 2, time.Minute), mk("En cours", 3, 2, 0)},
		}
		for _, set := range sets {
			r := stats.Compute(set, "Résolu")
			Expect(r.ResolutionRate).To(BeNumerically(">=", 0))
			Expect(r.ResolutionRate).To(BeNumerically("<=", 100))
		}
	})

	It("counts per observed status and category, sorted by id", func() {
		r := stats.Compute([]*ticket.Ticket{
			mk("Résolu", 4, 2, time.Hour),
			mk("Nouveau", 1, 2, 0),
			mk("Nouveau", 1, 3, 0),
		}, "Résolu")

		Expect(r.ByStatus).To(Equal([]stats.StatusCount{{StatutID: 1, Count: 2}, {StatutID: 4, Count: 1}}))
		Expect(r.ByCategory).To(Equal([]stats.CategoryCount{{CategorieID: 2, Count: 2}, {CategorieID: 3, Count: 1}}))
	})

	It("credits every technician of a shared ticket", func() {
		r := stats.Compute([]*ticket.Ticket{
			mk("En cours", 3, 1, 0, "Alice", "Bruno"),
			mk("Nouveau", 1, 1, 0, "Alice"),
		}, "Résolu")

		Expect(r.ByTechnician).To(Equal([]stats.TechnicianCount{
			{Technicien: "Alice", Count: 2},
			{Technicien: "Bruno", Count: 1},
		}))
	})

	It("serializes rounded values only", func() {
		r := stats.Compute([]*ticket.Ticket{mk("Résolu", 4, 1, 90*time.Minute), mk("Nouveau", 1, 1, 0), mk("Nouveau", 1, 1, 0)}, "Résolu")
		raw, err := json.Marshal(r)
		Expect(err).NotTo(HaveOccurred())

		var body map[string]interface{}
		Expect(json.Unmarshal(raw, &body)).To(Succeed())
		Expect(body).To(HaveKeyWithValue("taux_resolution", 33.33))
		Expect(body).To(HaveKeyWithValue("temps_moyen_resolution_h", 1.5))
		Expect(body).To(HaveKey("repartition_technicien"))
		Expect(body).NotTo(HaveKey("RawResolutionRate"))
	})
})
