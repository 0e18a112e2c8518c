package ticket

import (
	"context"
	"time"

	lookupDatamodel "github.com/miyuou/smartticket/internal/core/datamodel/lookup"
	ticketDatamodel "github.com/miyuou/smartticket/internal/core/datamodel/ticket"
	"github.com/miyuou/smartticket/internal/core/identity"
	"github.com/miyuou/smartticket/internal/policy"
)

// Ref is a resolved lookup value embedded in a ticket.
type Ref struct {
	ID  int64  `json:"id"`
	Nom string `json:"nom"`
}

type Technician struct {
	ID    int64         `json:"id"`
	Nom   string        `json:"nom"`
	Email string        `json:"email"`
	Role  identity.Role `json:"role"`
}

type Ticket struct {
	ID                   int64        `json:"id"`
	Titre                string       `json:"titre"`
	Description          *string      `json:"description"`
	DateOuverture        time.Time    `json:"date_d_ouverture"`
	Demandeur            string       `json:"demandeur"`
	DepartementDemandeur *string      `json:"departement_demandeur"`
	CategorieID          int64        `json:"categorie_id"`
	StatutID             int64        `json:"statut_id"`
	TypeID               int64        `json:"type_id"`
	DateResolution       *time.Time   `json:"date_resolution"`
	DateModification     time.Time    `json:"date_modification"`
	Categorie            Ref          `json:"categorie"`
	Statut               Ref          `json:"statut"`
	Type                 Ref          `json:"type"`
	Techniciens          []Technician `json:"techniciens"`
}

func (t *Ticket) TechnicianIDs() []int64 {
	ids := make([]int64, len(t.Techniciens))
	for i, tech := range t.Techniciens {
		ids[i] = tech.ID
	}
	return ids
}

func (t *Ticket) IsAssignedTo(userID int64) bool {
	for _, tech := range t.Techniciens {
		if tech.ID == userID {
			return true
		}
	}
	return false
}

// PolicyTarget exposes the assignment set to the access policy.
func (t *Ticket) PolicyTarget() *policy.Target {
	return &policy.Target{TechnicianIDs: t.TechnicianIDs()}
}

func (t *Ticket) IsResolved(resolvedStatus string) bool {
	return t.Statut.Nom == resolvedStatus
}

// RepositoryAPI is the ticket store. Every service operation runs inside
// WithTx and only talks to the transaction-bound repository it receives.
// Concurrent updates to one ticket are last-write-wins.
type RepositoryAPI interface {
	WithTx(ctx context.Context, fn func(tx RepositoryAPI) error) error
	Create(ctx context.Context, t *ticketDatamodel.Ticket) error
	GetByID(ctx context.Context, id int64) (*ticketDatamodel.Ticket, error)
	List(ctx context.Context, filter policy.ScopeFilter) ([]*ticketDatamodel.Ticket, error)
	Update(ctx context.Context, id int64, patch Patch) error
	Delete(ctx context.Context, id int64) error
	SetAssignees(ctx context.Context, id int64, userIDs []int64) error
	GetStatus(ctx context.Context, id int64) (*lookupDatamodel.Statut, error)
}

func FromDataModel(t *ticketDatamodel.Ticket) *Ticket {
	techs := make([]Technician, 0, len(t.Techniciens))
	for _, u := range t.Techniciens {
		role, _ := identity.ParseRole(u.Role)
		techs = append(techs, Technician{ID: u.ID, Nom: u.Nom, Email: u.Email, Role: role})
	}

	return &Ticket{
		ID:                   t.ID,
		Titre:                t.Titre,
		Description:          t.Description,
		DateOuverture:        t.DateOuverture,
		Demandeur:            t.Demandeur,
		DepartementDemandeur: t.DepartementDemandeur,
		CategorieID:          t.CategorieID,
		StatutID:             t.StatutID,
		TypeID:               t.TypeID,
		DateResolution:       t.DateResolution,
		DateModification:     t.DateModification,
		Categorie:            Ref{ID: t.Categorie.ID, Nom: t.Categorie.Nom},
		Statut:               Ref{ID: t.Statut.ID, Nom: t.Statut.Nom},
		Type:                 Ref{ID: t.Type.ID, Nom: t.Type.Nom},
		Techniciens:          techs,
	}
}

func FromDataModelSlice(tickets []*ticketDatamodel.Ticket) []*Ticket {
	result := make([]*Ticket, len(tickets))
	for i, t := range tickets {
		result[i] = FromDataModel(t)
	}
	return result
}
