package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/miyuou/smartticket/internal/policy"
	"github.com/miyuou/smartticket/internal/transfer"
)

const exportColumns = `t.id, t.titre, t.description, t.date_d_ouverture, t.demandeur,
	t.categorie_id, t.statut_id, t.type_id, t.departement_demandeur,
	t.date_resolution, t.date_modification`

// ExportRepository reads export rows with plain SQL.
type ExportRepository struct {
	db *sqlx.DB
}

func NewExportRepository(db *sqlx.DB) *ExportRepository {
	return &ExportRepository{db: db}
}

func (r *ExportRepository) ExportRows(ctx context.Context, filter policy.ScopeFilter) ([]transfer.ExportRow, error) {
	query := `SELECT ` + exportColumns + ` FROM tickets t ORDER BY t.id`
	var args []interface{}
	if !filter.IsAll() {
		query = `SELECT DISTINCT ` + exportColumns + ` FROM tickets t
	JOIN technicien_ticket tt ON tt.ticket_id = t.id
	WHERE tt.technicien_id = ?
	ORDER BY t.id`
		args = append(args, filter.AssignedTo())
	}

	rows := []transfer.ExportRow{}
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	return rows, nil
}
