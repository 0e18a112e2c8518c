// Package testdb opens an in-memory SQLite database with the ticketing schema
// and a small reference data set, for store and handler specs.
package testdb

import (
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	lookupDatamodel "github.com/miyuou/smartticket/internal/core/datamodel/lookup"
	ticketDatamodel "github.com/miyuou/smartticket/internal/core/datamodel/ticket"
	userDatamodel "github.com/miyuou/smartticket/internal/core/datamodel/user"
)

const Password = "secret123"

type Fixture struct {
	Categories map[string]int64
	Statuts    map[string]int64
	Types      map[string]int64

	Admin     userDatamodel.User
	TechA     userDatamodel.User
	TechB     userDatamodel.User
	TechC     userDatamodel.User
	Requester userDatamodel.User
}

// Open returns a migrated database. A single connection keeps every
// statement on the same in-memory database.
func Open() (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&lookupDatamodel.Categorie{},
		&lookupDatamodel.Statut{},
		&lookupDatamodel.Type{},
		&userDatamodel.User{},
		&ticketDatamodel.Ticket{},
	); err != nil {
		return nil, err
	}
	return db, nil
}

// Seed inserts the lookup values and one user per role, plus two more
// technicians.
func Seed(db *gorm.DB) (*Fixture, error) {
	f := &Fixture{
		Categories: map[string]int64{},
		Statuts:    map[string]int64{},
		Types:      map[string]int64{},
	}

	for _, nom := range []string{"Réseau", "Logiciel", "Matériel"} {
		row := lookupDatamodel.Categorie{Nom: nom}
		if err := db.Create(&row).Error; err != nil {
			return nil, err
		}
		f.Categories[nom] = row.ID
	}
	for _, nom := range []string{"Nouveau", "En attente", "En cours", "Résolu"} {
		row := lookupDatamodel.Statut{Nom: nom}
		if err := db.Create(&row).Error; err != nil {
			return nil, err
		}
		f.Statuts[nom] = row.ID
	}
	for _, nom := range []string{"Demande", "Incident"} {
		row := lookupDatamodel.Type{Nom: nom}
		if err := db.Create(&row).Error; err != nil {
			return nil, err
		}
		f.Types[nom] = row.ID
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(Password), bcrypt.MinCost)
	if err != nil {
		return nil, err
	}

	users := []*userDatamodel.User{&f.Admin, &f.TechA, &f.TechB, &f.TechC, &f.Requester}
	specs := []struct{ nom, email, role string }{
		{"Admin", "admin@test.com", "admin"},
		{"Alice", "alice@test.com", "technicien"},
		{"Bruno", "bruno@test.com", "technicien"},
		{"Chloé", "chloe@test.com", "technicien"},
		{"Manager", "user@test.com", "user"},
	}
	for i, spec := range specs {
		*users[i] = userDatamodel.User{Nom: spec.nom, Email: spec.email, MotDePasse: string(hash), Role: spec.role}
		if err := db.Create(users[i]).Error; err != nil {
			return nil, fmt.Errorf("seed user %s: %w", spec.email, err)
		}
	}
	return f, nil
}

// InsertTicket writes a ticket row and its assignments directly, bypassing
// reference checks.
func InsertTicket(db *gorm.DB, t *ticketDatamodel.Ticket, technicianIDs ...int64) error {
	now := time.Now().UTC()
	if t.DateOuverture.IsZero() {
		t.DateOuverture = now
	}
	if t.DateModification.IsZero() {
		t.DateModification = now
	}
	if err := db.Omit("Categorie", "Statut", "Type", "Techniciens").Create(t).Error; err != nil {
		return err
	}
	for _, id := range technicianIDs {
		if err := db.Create(&ticketDatamodel.Assignment{TicketID: t.ID, TechnicienID: id}).Error; err != nil {
			return err
		}
	}
	return nil
}

func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
