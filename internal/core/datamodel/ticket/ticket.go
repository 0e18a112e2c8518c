package ticket

import (
	"time"

	"github.com/miyuou/smartticket/internal/core/datamodel/lookup"
	"github.com/miyuou/smartticket/internal/core/datamodel/user"
)

type Ticket struct {
	ID                   int64      `gorm:"primaryKey"`
	Titre                string     `gorm:"column:titre;size:200;not null"`
	Description          *string    `gorm:"column:description;type:text"`
	DateOuverture        time.Time  `gorm:"column:date_d_ouverture;not null"`
	Demandeur            string     `gorm:"column:demandeur;size:100;not null"`
	CategorieID          int64      `gorm:"column:categorie_id;not null"`
	StatutID             int64      `gorm:"column:statut_id;not null"`
	TypeID               int64      `gorm:"column:type_id;not null"`
	DepartementDemandeur *string    `gorm:"column:departement_demandeur;size:100"`
	DateResolution       *time.Time `gorm:"column:date_resolution"`
	DateModification     time.Time  `gorm:"column:date_modification;not null"`

	Categorie   lookup.Categorie `gorm:"foreignKey:CategorieID"`
	Statut      lookup.Statut    `gorm:"foreignKey:StatutID"`
	Type        lookup.Type      `gorm:"foreignKey:TypeID"`
	Techniciens []user.User      `gorm:"many2many:technicien_ticket;joinForeignKey:TicketID;joinReferences:TechnicienID"`
}

func (Ticket) TableName() string { return "tickets" }

// Assignment is one row of the ticket/technician relation.
type Assignment struct {
	TicketID     int64 `gorm:"column:ticket_id;primaryKey"`
	TechnicienID int64 `gorm:"column:technicien_id;primaryKey"`
}

func (Assignment) TableName() string { return "technicien_ticket" }
