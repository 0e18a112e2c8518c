package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	lookupDatamodel "github.com/miyuou/smartticket/internal/core/datamodel/lookup"
	ticketDatamodel "github.com/miyuou/smartticket/internal/core/datamodel/ticket"
	userDatamodel "github.com/miyuou/smartticket/internal/core/datamodel/user"
	"github.com/miyuou/smartticket/pkg/logger"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data",
	Long:  `Seed the lookup tables, one demo user per role and a sample ticket. Safe to run twice.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		lg := logger.Configure(logger.Options{Format: cfg.Observability.Logging.Format, Level: cfg.Observability.Logging.Level})

		db, err := initDB(cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to init db: %w", err)
		}
		defer db.Close()

		gormDB, err := initGorm(db)
		if err != nil {
			return err
		}

		return seedDatabase(cmd.Context(), gormDB, cfg.Security.BCryptCost, clearData, lg)
	},
}

var (
	seedStatuts    = []string{"Nouveau", "En attente", "En cours", "Résolu"}
	seedCategories = []string{"Réseau", "Logiciel", "Matériel"}
	seedTypes      = []string{"Demande", "Incident"}

	seedUsers = []struct {
		Nom      string
		Email    string
		Password string
		Role     string
	}{
		{"Admin", "admin@test.com", "admin123", "admin"},
		{"Tech", "tech@test.com", "tech123", "technicien"},
		{"Manager", "user@test.com", "user123", "user"},
	}
)

const sampleTicketTitle = "Problème réseau"

// seedDatabase inserts whatever reference data is missing, in one transaction.
func seedDatabase(ctx context.Context, db *gorm.DB, bcryptCost int, clear bool, lg *slog.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if clear {
			for _, table := range []string{"technicien_ticket", "tickets", "users", "types", "statuts", "categories"} {
				if err := tx.Exec("DELETE FROM " + table).Error; err != nil {
					return fmt.Errorf("clear %s: %w", table, err)
				}
			}
			lg.Info("cleared existing data")
		}

		statuts := make(map[string]int64, len(seedStatuts))
		for _, nom := range seedStatuts {
			row := lookupDatamodel.Statut{}
			if err := tx.Where(lookupDatamodel.Statut{Nom: nom}).FirstOrCreate(&row).Error; err != nil {
				return fmt.Errorf("seed statut %s: %w", nom, err)
			}
			statuts[nom] = row.ID
		}

		categories := make(map[string]int64, len(seedCategories))
		for _, nom := range seedCategories {
			row := lookupDatamodel.Categorie{}
			if err := tx.Where(lookupDatamodel.Categorie{Nom: nom}).FirstOrCreate(&row).Error; err != nil {
				return fmt.Errorf("seed categorie %s: %w", nom, err)
			}
			categories[nom] = row.ID
		}

		types := make(map[string]int64, len(seedTypes))
		for _, nom := range seedTypes {
			row := lookupDatamodel.Type{}
			if err := tx.Where(lookupDatamodel.Type{Nom: nom}).FirstOrCreate(&row).Error; err != nil {
				return fmt.Errorf("seed type %s: %w", nom, err)
			}
			types[nom] = row.ID
		}

		users := make(map[string]userDatamodel.User, len(seedUsers))
		for _, u := range seedUsers {
			var row userDatamodel.User
			err := tx.Where("email = ?", u.Email).First(&row).Error
			if err == nil {
				lg.Info("user already exists", "email", u.Email)
				users[u.Role] = row
				continue
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("lookup user %s: %w", u.Email, err)
			}

			hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcryptCost)
			if err != nil {
				return fmt.Errorf("hash password for %s: %w", u.Email, err)
			}
			row = userDatamodel.User{Nom: u.Nom, Email: u.Email, MotDePasse: string(hash), Role: u.Role}
			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("seed user %s: %w", u.Email, err)
			}
			lg.Info("seeded user", "email", u.Email, "role", u.Role)
			users[u.Role] = row
		}

		var count int64
		if err := tx.Model(&ticketDatamodel.Ticket{}).Where("titre = ?", sampleTicketTitle).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}

		now := time.Now().UTC()
		description := "Impossible de se connecter à Internet"
		departement := "IT"
		t := ticketDatamodel.Ticket{
			Titre:                sampleTicketTitle,
			Description:          &description,
			DateOuverture:        now,
			Demandeur:            users["user"].Nom,
			DepartementDemandeur: &departement,
			CategorieID:          categories["Réseau"],
			StatutID:             statuts["Nouveau"],
			TypeID:               types["Incident"],
			DateModification:     now,
		}
		if err := tx.Omit("Categorie", "Statut", "Type", "Techniciens").Create(&t).Error; err != nil {
			return fmt.Errorf("seed ticket: %w", err)
		}
		if err := tx.Create(&ticketDatamodel.Assignment{TicketID: t.ID, TechnicienID: users["technicien"].ID}).Error; err != nil {
			return fmt.Errorf("assign seed ticket: %w", err)
		}
		lg.Info("seeded sample ticket", "ticket_id", t.ID)
		return nil
	})
}
