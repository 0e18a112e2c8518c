package lookup

import (
	"context"

	"github.com/miyuou/smartticket/internal"
)

// Kind names one of the reference tables a ticket points at.
type Kind string

const (
	KindCategory Kind = "category"
	KindStatus   Kind = "status"
	KindType     Kind = "type"
)

var Kinds = []Kind{KindCategory, KindStatus, KindType}

func (k Kind) Valid() bool {
	switch k {
	case KindCategory, KindStatus, KindType:
		return true
	}
	return false
}

type Item struct {
	ID  int64  `json:"id"`
	Nom string `json:"nom"`
}

type RepositoryAPI interface {
	List(ctx context.Context, kind Kind) ([]*Item, error)
	Exists(ctx context.Context, kind Kind, id int64) (bool, error)
}

func errUnknownKind(kind Kind) error {
	return internal.NewValidationError("unknown lookup kind: "+string(kind), internal.ErrCodeInvalidFormat)
}
