package ticket

import (
	"time"

	"github.com/miyuou/smartticket/internal"
	"github.com/miyuou/smartticket/internal/core/common/validation"
	ticketDatamodel "github.com/miyuou/smartticket/internal/core/datamodel/ticket"
	"github.com/miyuou/smartticket/internal/core/optional"
)

const (
	maxTitleLength      = 200
	maxRequesterLength  = 100
	maxDepartmentLength = 100
)

type CreateTicketDTO struct {
	Titre                string     `json:"titre"`
	Description          *string    `json:"description"`
	Demandeur            string     `json:"demandeur"`
	DepartementDemandeur *string    `json:"departement_demandeur"`
	CategorieID          int64      `json:"categorie_id"`
	StatutID             int64      `json:"statut_id"`
	TypeID               int64      `json:"type_id"`
	DateOuverture        *time.Time `json:"date_d_ouverture"`
	DateResolution       *time.Time `json:"date_resolution"`
	TechnicienIDs        []int64    `json:"technicien_ids"`
}

func (dto CreateTicketDTO) Validate() error {
	v := validation.NewValidator()
	v.Field("titre", dto.Titre).Required().MaxLength(maxTitleLength)
	v.Field("demandeur", dto.Demandeur).Required().MaxLength(maxRequesterLength)
	v.Field("departement_demandeur", dto.DepartementDemandeur).MaxLength(maxDepartmentLength)
	v.Field("categorie_id", dto.CategorieID).Required().Positive()
	v.Field("statut_id", dto.StatutID).Required().Positive()
	v.Field("type_id", dto.TypeID).Required().Positive()
	v.Field("date_d_ouverture", dto.DateOuverture).NotFuture()
	v.Field("technicien_ids", dto.TechnicienIDs).Custom(positiveIDs("technicien_ids"))
	if err := v.Validate(); err != nil {
		return err
	}
	return nil
}

func (dto CreateTicketDTO) ToDataModel() *ticketDatamodel.Ticket {
	t := &ticketDatamodel.Ticket{
		Titre:                dto.Titre,
		Description:          dto.Description,
		Demandeur:            dto.Demandeur,
		DepartementDemandeur: dto.DepartementDemandeur,
		CategorieID:          dto.CategorieID,
		StatutID:             dto.StatutID,
		TypeID:               dto.TypeID,
	}
	if dto.DateOuverture != nil {
		t.DateOuverture = dto.DateOuverture.UTC()
	}
	if dto.DateResolution != nil {
		resolved := dto.DateResolution.UTC()
		t.DateResolution = &resolved
	}
	return t
}

// UpdateTicketDTO is a partial update. Each field distinguishes absent,
// null and a value.
type UpdateTicketDTO struct {
	Titre                optional.Field[string]    `json:"titre"`
	Description          optional.Field[string]    `json:"description"`
	Demandeur            optional.Field[string]    `json:"demandeur"`
	DepartementDemandeur optional.Field[string]    `json:"departement_demandeur"`
	CategorieID          optional.Field[int64]     `json:"categorie_id"`
	StatutID             optional.Field[int64]     `json:"statut_id"`
	TypeID               optional.Field[int64]     `json:"type_id"`
	DateResolution       optional.Field[time.Time] `json:"date_resolution"`
	TechnicienIDs        optional.Field[[]int64]   `json:"technicien_ids"`
}

func (dto UpdateTicketDTO) Validate() error {
	v := validation.NewValidator()
	for name, f := range map[string]optional.Field[string]{"titre": dto.Titre, "demandeur": dto.Demandeur} {
		if f.IsNull() {
			v.Field(name, nil).Required()
		}
	}
	for name, f := range map[string]optional.Field[int64]{
		"categorie_id": dto.CategorieID,
		"statut_id":    dto.StatutID,
		"type_id":      dto.TypeID,
	} {
		if f.IsNull() {
			v.Field(name, nil).Required()
		} else if f.Valid {
			v.Field(name, f.Value).Positive()
		}
	}
	if dto.Titre.Valid {
		v.Field("titre", dto.Titre.Value).Required().MaxLength(maxTitleLength)
	}
	if dto.Demandeur.Valid {
		v.Field("demandeur", dto.Demandeur.Value).Required().MaxLength(maxRequesterLength)
	}
	if dto.DepartementDemandeur.Valid {
		v.Field("departement_demandeur", dto.DepartementDemandeur.Value).MaxLength(maxDepartmentLength)
	}
	if dto.TechnicienIDs.Valid {
		v.Field("technicien_ids", dto.TechnicienIDs.Value).Custom(positiveIDs("technicien_ids"))
	}
	if err := v.Validate(); err != nil {
		return err
	}
	return nil
}

// NonStatusFields lists the fields present in the payload other than statut_id.
func (dto UpdateTicketDTO) NonStatusFields() []string {
	var fields []string
	for _, f := range []struct {
		name string
		set  bool
	}{
		{"titre", dto.Titre.Set},
		{"description", dto.Description.Set},
		{"demandeur", dto.Demandeur.Set},
		{"departement_demandeur", dto.DepartementDemandeur.Set},
		{"categorie_id", dto.CategorieID.Set},
		{"type_id", dto.TypeID.Set},
		{"date_resolution", dto.DateResolution.Set},
		{"technicien_ids", dto.TechnicienIDs.Set},
	} {
		if f.set {
			fields = append(fields, f.name)
		}
	}
	return fields
}

func (dto UpdateTicketDTO) ToPatch() Patch {
	return Patch{
		Titre:                dto.Titre,
		Description:          dto.Description,
		Demandeur:            dto.Demandeur,
		DepartementDemandeur: dto.DepartementDemandeur,
		CategorieID:          dto.CategorieID,
		StatutID:             dto.StatutID,
		TypeID:               dto.TypeID,
		DateResolution:       dto.DateResolution,
	}
}

// Patch is the set of column changes the store applies to one ticket.
type Patch struct {
	Titre                optional.Field[string]
	Description          optional.Field[string]
	Demandeur            optional.Field[string]
	DepartementDemandeur optional.Field[string]
	CategorieID          optional.Field[int64]
	StatutID             optional.Field[int64]
	TypeID               optional.Field[int64]
	DateResolution       optional.Field[time.Time]
}

func (p Patch) Fields() []string {
	var fields []string
	if p.Titre.Set {
		fields = append(fields, "titre")
	}
	if p.Description.Set {
		fields = append(fields, "description")
	}
	if p.Demandeur.Set {
		fields = append(fields, "demandeur")
	}
	if p.DepartementDemandeur.Set {
		fields = append(fields, "departement_demandeur")
	}
	if p.CategorieID.Set {
		fields = append(fields, "categorie_id")
	}
	if p.StatutID.Set {
		fields = append(fields, "statut_id")
	}
	if p.TypeID.Set {
		fields = append(fields, "type_id")
	}
	if p.DateResolution.Set {
		fields = append(fields, "date_resolution")
	}
	return fields
}

func positiveIDs(field string) func(interface{}) *internal.AppError {
	return func(value interface{}) *internal.AppError {
		ids, _ := value.([]int64)
		for _, id := range ids {
			if id < 1 {
				return internal.NewValidationFieldError(field, field+" must contain positive ids", internal.ErrCodeInvalidFormat)
			}
		}
		return nil
	}
}
