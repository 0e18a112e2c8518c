// Package stats aggregates operational figures over the tickets a caller
// is allowed to see.
package stats

import (
	"math"
	"sort"

	"github.com/miyuou/smartticket/internal/ticket"
)

type StatusCount struct {
	StatutID int64 `json:"statut_id"`
	Count    int   `json:"count"`
}

type CategoryCount struct {
	CategorieID int64 `json:"categorie_id"`
	Count       int   `json:"count"`
}

type TechnicianCount struct {
	Technicien string `json:"technicien"`
	Count      int    `json:"count"`
}

type Report struct {
	TotalTickets       int               `json:"total_tickets"`
	ResolvedTickets    int               `json:"tickets_resolus"`
	AvgResolutionHours float64           `json:"temps_moyen_resolution_h"`
	ResolutionRate     float64           `json:"taux_resolution"`
	ByStatus           []StatusCount     `json:"repartition_statut"`
	ByCategory         []CategoryCount   `json:"repartition_categorie"`
	ByTechnician       []TechnicianCount `json:"repartition_technicien"`

	// Unrounded values.
	RawResolutionRate     float64 `json:"-"`
	RawAvgResolutionHours float64 `json:"-"`
}

// Compute builds a report from an already scoped ticket set. A ticket
// counts as resolved when its status name equals resolvedLabel. Each
// assigned technician is credited once per ticket.
func Compute(tickets []*ticket.Ticket, resolvedLabel string) Report {
	r := Report{
		TotalTickets: len(tickets),
		ByStatus:     []StatusCount{},
		ByCategory:   []CategoryCount{},
		ByTechnician: []TechnicianCount{},
	}

	byStatus := map[int64]int{}
	byCategory := map[int64]int{}
	byTechnician := map[string]int{}

	var totalHours float64
	var timed int
	for _, t := range tickets {
		if t.IsResolved(resolvedLabel) {
			r.ResolvedTickets++
		}
		if t.DateResolution != nil {
			totalHours += t.DateResolution.Sub(t.DateOuverture).Hours()
			timed++
		}
		byStatus[t.StatutID]++
		byCategory[t.CategorieID]++
		for _, tech := range t.Techniciens {
			byTechnician[tech.Nom]++
		}
	}

	if r.TotalTickets > 0 {
		r.RawResolutionRate = float64(r.ResolvedTickets) / float64(r.TotalTickets) * 100
	}
	if timed > 0 {
		r.RawAvgResolutionHours = totalHours / float64(timed)
	}
	r.ResolutionRate = round2(r.RawResolutionRate)
	r.AvgResolutionHours = round2(r.RawAvgResolutionHours)

	for id, n := range byStatus {
		r.ByStatus = append(r.ByStatus, StatusCount{StatutID: id, Count: n})
	}
	sort.Slice(r.ByStatus, func(i, j int) bool { return r.ByStatus[i].StatutID < r.ByStatus[j].StatutID })

	for id, n := range byCategory {
		r.ByCategory = append(r.ByCategory, CategoryCount{CategorieID: id, Count: n})
	}
	sort.Slice(r.ByCategory, func(i, j int) bool { return r.ByCategory[i].CategorieID < r.ByCategory[j].CategorieID })

	for name, n := range byTechnician {
		r.ByTechnician = append(r.ByTechnician, TechnicianCount{Technicien: name, Count: n})
	}
	sort.Slice(r.ByTechnician, func(i, j int) bool { return r.ByTechnician[i].Technicien < r.ByTechnician[j].Technicien })

	return r
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
