package transfer

import (
	"context"
	"database/sql"
	"strconv"
	"time"

	"github.com/miyuou/smartticket/internal/policy"
)

// ExportRow is the flat shape of an exported ticket.
type ExportRow struct {
	ID                   int64          `db:"id"`
	Titre                string         `db:"titre"`
	Description          sql.NullString `db:"description"`
	DateOuverture        time.Time      `db:"date_d_ouverture"`
	Demandeur            string         `db:"demandeur"`
	CategorieID          int64          `db:"categorie_id"`
	StatutID             int64          `db:"statut_id"`
	TypeID               int64          `db:"type_id"`
	DepartementDemandeur sql.NullString `db:"departement_demandeur"`
	DateResolution       sql.NullTime   `db:"date_resolution"`
	DateModification     time.Time      `db:"date_modification"`
}

func (r ExportRow) record() []string {
	return []string{
		strconv.FormatInt(r.ID, 10),
		r.Titre,
		nullString(r.Description),
		formatTime(r.DateOuverture),
		r.Demandeur,
		strconv.FormatInt(r.CategorieID, 10),
		strconv.FormatInt(r.StatutID, 10),
		strconv.FormatInt(r.TypeID, 10),
		nullString(r.DepartementDemandeur),
		nullTime(r.DateResolution),
		formatTime(r.DateModification),
	}
}

// ExporterAPI reads export rows within a visibility scope.
type ExporterAPI interface {
	ExportRows(ctx context.Context, filter policy.ScopeFilter) ([]ExportRow, error)
}

type RowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

type ImportSummary struct {
	Msg      string     `json:"msg"`
	Imported int        `json:"imported"`
	Failed   int        `json:"failed"`
	Errors   []RowError `json:"errors"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func nullString(s sql.NullString) string {
	if !s.Valid {
		return ""
	}
	return s.String
}

func nullTime(t sql.NullTime) string {
	if !t.Valid {
		return ""
	}
	return formatTime(t.Time)
}
