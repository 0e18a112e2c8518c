package postgres

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/miyuou/smartticket/internal"
	lookupDatamodel "github.com/miyuou/smartticket/internal/core/datamodel/lookup"
	ticketDatamodel "github.com/miyuou/smartticket/internal/core/datamodel/ticket"
	userDatamodel "github.com/miyuou/smartticket/internal/core/datamodel/user"
	"github.com/miyuou/smartticket/internal/core/optional"
	"github.com/miyuou/smartticket/internal/policy"
	"github.com/miyuou/smartticket/internal/ticket"
)

// TicketRepository implements ticket.RepositoryAPI with GORM.
type TicketRepository struct {
	db *gorm.DB
}

func NewTicketRepository(db *gorm.DB) *TicketRepository {
	return &TicketRepository{db: db}
}

// WithTx runs fn in one transaction; returning an error or panicking rolls it back.
func (r *TicketRepository) WithTx(ctx context.Context, fn func(tx ticket.RepositoryAPI) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&TicketRepository{db: tx})
	})
}

func (r *TicketRepository) preloaded(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Categorie").
		Preload("Statut").
		Preload("Type").
		Preload("Techniciens", func(db *gorm.DB) *gorm.DB {
			return db.Order("users.id")
		})
}

func (r *TicketRepository) Create(ctx context.Context, t *ticketDatamodel.Ticket) error {
	if err := r.checkReferences(ctx, t.CategorieID, t.StatutID, t.TypeID); err != nil {
		return err
	}

	now := time.Now().UTC().Truncate(time.Microsecond)
	if t.DateOuverture.IsZero() {
		t.DateOuverture = now
	}
	if t.DateModification.IsZero() {
		t.DateModification = now
	}

	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(t).Error; err != nil {
		return fmt.Errorf("insert ticket: %w", err)
	}
	return nil
}

func (r *TicketRepository) GetByID(ctx context.Context, id int64) (*ticketDatamodel.Ticket, error) {
	var t ticketDatamodel.Ticket
	err := r.preloaded(ctx).Where("tickets.id = ?", id).First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrTicketNotFound
		}
		return nil, err
	}
	return &t, nil
}

// List returns the tickets visible through filter ordered by id. The
// assignment join cannot duplicate a ticket since (ticket_id,
// technicien_id) is the join table's key; DISTINCT keeps that explicit.
func (r *TicketRepository) List(ctx context.Context, filter policy.ScopeFilter) ([]*ticketDatamodel.Ticket, error) {
	q := r.preloaded(ctx).Model(&ticketDatamodel.Ticket{})
	if !filter.IsAll() {
		q = q.Distinct("tickets.*").
			Joins("JOIN technicien_ticket ON technicien_ticket.ticket_id = tickets.id").
			Where("technicien_ticket.technicien_id = ?", filter.AssignedTo())
	}

	tickets := make([]*ticketDatamodel.Ticket, 0)
	if err := q.Order("tickets.id").Find(&tickets).Error; err != nil {
		return nil, err
	}
	return tickets, nil
}

func (r *TicketRepository) Update(ctx context.Context, id int64, patch ticket.Patch) error {
	var current ticketDatamodel.Ticket
	err := r.db.WithContext(ctx).Select("id", "date_modification").Where("id = ?", id).First(&current).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return internal.ErrTicketNotFound
		}
		return err
	}

	updates := map[string]interface{}{}
	if patch.Titre.Valid {
		updates["titre"] = patch.Titre.Value
	}
	if patch.Demandeur.Valid {
		updates["demandeur"] = patch.Demandeur.Value
	}
	if patch.Description.Set {
		updates["description"] = patch.Description.Ptr()
	}
	if patch.DepartementDemandeur.Set {
		updates["departement_demandeur"] = patch.DepartementDemandeur.Ptr()
	}
	if patch.DateResolution.Set {
		var resolved *time.Time
		if patch.DateResolution.Valid {
			t := patch.DateResolution.Value.UTC()
			resolved = &t
		}
		updates["date_resolution"] = resolved
	}

	refs := []struct {
		field  optional.Field[int64]
		column string
		model  interface{}
		err    *internal.AppError
	}{
		{patch.CategorieID, "categorie_id", &lookupDatamodel.Categorie{}, internal.ErrUnknownCategory},
		{patch.StatutID, "statut_id", &lookupDatamodel.Statut{}, internal.ErrUnknownStatus},
		{patch.TypeID, "type_id", &lookupDatamodel.Type{}, internal.ErrUnknownType},
	}
	for _, ref := range refs {
		if !ref.field.Valid {
			continue
		}
		ok, err := r.exists(ctx, ref.model, ref.field.Value)
		if err != nil {
			return err
		}
		if !ok {
			return ref.err
		}
		updates[ref.column] = ref.field.Value
	}

	updates["date_modification"] = nextModification(current.DateModification)

	return r.db.WithContext(ctx).
		Model(&ticketDatamodel.Ticket{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *TicketRepository) Delete(ctx context.Context, id int64) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("ticket_id = ?", id).Delete(&ticketDatamodel.Assignment{}).Error; err != nil {
		return err
	}

	res := db.Where("id = ?", id).Delete(&ticketDatamodel.Ticket{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return internal.ErrTicketNotFound
	}
	return nil
}

// SetAssignees replaces the ticket's whole technician set.
func (r *TicketRepository) SetAssignees(ctx context.Context, id int64, userIDs []int64) error {
	ok, err := r.exists(ctx, &ticketDatamodel.Ticket{}, id)
	if err != nil {
		return err
	}
	if !ok {
		return internal.ErrTicketNotFound
	}

	ids := dedupe(userIDs)
	if len(ids) > 0 {
		var found []int64
		if err := r.db.WithContext(ctx).Model(&userDatamodel.User{}).Where("id IN ?", ids).Pluck("id", &found).Error; err != nil {
			return err
		}
		for _, uid := range ids {
			if !slices.Contains(found, uid) {
				return internal.NewInvalidReferenceError("technicien_ids",
					fmt.Sprintf("Unknown technician %d", uid), internal.ErrCodeUnknownTechnician)
			}
		}
	}

	db := r.db.WithContext(ctx)
	if err := db.Where("ticket_id = ?", id).Delete(&ticketDatamodel.Assignment{}).Error; err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	rows := make([]ticketDatamodel.Assignment, len(ids))
	for i, uid := range ids {
		rows[i] = ticketDatamodel.Assignment{TicketID: id, TechnicienID: uid}
	}
	return db.Create(&rows).Error
}

func (r *TicketRepository) GetStatus(ctx context.Context, id int64) (*lookupDatamodel.Statut, error) {
	var status lookupDatamodel.Statut
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&status).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrUnknownStatus
		}
		return nil, err
	}
	return &status, nil
}

func (r *TicketRepository) checkReferences(ctx context.Context, categorieID, statutID, typeID int64) error {
	checks := []struct {
		model interface{}
		id    int64
		err   *internal.AppError
	}{
		{&lookupDatamodel.Categorie{}, categorieID, internal.ErrUnknownCategory},
		{&lookupDatamodel.Statut{}, statutID, internal.ErrUnknownStatus},
		{&lookupDatamodel.Type{}, typeID, internal.ErrUnknownType},
	}
	for _, c := range checks {
		ok, err := r.exists(ctx, c.model, c.id)
		if err != nil {
			return err
		}
		if !ok {
			return c.err
		}
	}
	return nil
}

func (r *TicketRepository) exists(ctx context.Context, model interface{}, id int64) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(model).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// nextModification returns a timestamp strictly after prev, at the
// microsecond precision PostgreSQL stores.
func nextModification(prev time.Time) time.Time {
	now := time.Now().UTC().Truncate(time.Microsecond)
	if !now.After(prev) {
		return prev.UTC().Truncate(time.Microsecond).Add(time.Microsecond)
	}
	return now
}

func dedupe(ids []int64) []int64 {
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}
