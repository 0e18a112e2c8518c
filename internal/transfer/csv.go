// Package transfer moves tickets in and out as CSV files.
package transfer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/miyuou/smartticket/internal"
	"github.com/miyuou/smartticket/internal/ticket"
)

var ImportColumns = []string{
	"titre", "description", "date_d_ouverture", "demandeur",
	"categorie_id", "statut_id", "type_id", "departement_demandeur", "date_resolution",
}

var ExportColumns = []string{
	"id", "titre", "description", "date_d_ouverture", "demandeur",
	"categorie_id", "statut_id", "type_id", "departement_demandeur", "date_resolution", "date_modification",
}

var requiredColumns = []string{"titre", "date_d_ouverture", "demandeur", "categorie_id", "statut_id", "type_id"}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04",
	"2006-01-02",
}

// Row is one parsed data line. Err is set when the line could not be
// turned into a ticket payload.
type Row struct {
	Line int
	DTO  ticket.CreateTicketDTO
	Err  error
}

// ParseTickets reads an import file. Columns are matched by header name
// and may appear in any order; unknown columns are ignored.
func ParseTickets(r io.Reader) ([]Row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, internal.NewValidationError("CSV file is empty", internal.ErrCodeInvalidCSV)
	}
	if err != nil {
		return nil, internal.NewValidationError("CSV header could not be read", internal.ErrCodeInvalidCSV).WithCause(err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		index[name] = i
	}
	var missing []string
	for _, name := range requiredColumns {
		if _, ok := index[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, internal.NewValidationError("CSV header is missing columns: "+strings.Join(missing, ", "), internal.ErrCodeInvalidCSV)
	}

	var rows []Row
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				rows = append(rows, Row{Line: parseErr.StartLine, Err: fmt.Errorf("malformed CSV line: %w", parseErr.Err)})
				continue
			}
			return nil, internal.NewValidationError("CSV file could not be read", internal.ErrCodeInvalidCSV).WithCause(err)
		}
		if blank(record) {
			continue
		}
		line, _ := reader.FieldPos(0)

		dto, err := rowToDTO(record, index)
		rows = append(rows, Row{Line: line, DTO: dto, Err: err})
	}
	return rows, nil
}

func rowToDTO(record []string, index map[string]int) (ticket.CreateTicketDTO, error) {
	get := func(name string) string {
		i, ok := index[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var dto ticket.CreateTicketDTO
	dto.Titre = get("titre")
	dto.Demandeur = get("demandeur")
	dto.Description = optionalString(get("description"))
	dto.DepartementDemandeur = optionalString(get("departement_demandeur"))

	var err error
	if dto.CategorieID, err = parseID("categorie_id", get("categorie_id")); err != nil {
		return dto, err
	}
	if dto.StatutID, err = parseID("statut_id", get("statut_id")); err != nil {
		return dto, err
	}
	if dto.TypeID, err = parseID("type_id", get("type_id")); err != nil {
		return dto, err
	}

	opened, err := parseTime("date_d_ouverture", get("date_d_ouverture"))
	if err != nil {
		return dto, err
	}
	if opened == nil {
		return dto, fmt.Errorf("date_d_ouverture is required")
	}
	dto.DateOuverture = opened

	if dto.DateResolution, err = parseTime("date_resolution", get("date_resolution")); err != nil {
		return dto, err
	}
	return dto, nil
}

// parseID accepts "3" and the "3.0" spreadsheets produce.
func parseID(field, raw string) (int64, error) {
	if raw == "" {
		return 0, fmt.Errorf("%s is required", field)
	}
	if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return id, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f != float64(int64(f)) {
		return 0, fmt.Errorf("%s must be an integer, got %q", field, raw)
	}
	return int64(f), nil
}

func parseTime(field, raw string) (*time.Time, error) {
	if raw == "" || strings.EqualFold(raw, "nan") || strings.EqualFold(raw, "nat") {
		return nil, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, fmt.Errorf("%s has an unrecognized date format: %q", field, raw)
}

func optionalString(s string) *string {
	if s == "" || strings.EqualFold(s, "nan") {
		return nil
	}
	return &s
}

func blank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// WriteTickets writes the export header and one line per row.
func WriteTickets(w io.Writer, rows []ExportRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ExportColumns); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write(r.record()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
