package postgres

import (
	"context"

	"gorm.io/gorm"

	lookupDatamodel "github.com/miyuou/smartticket/internal/core/datamodel/lookup"
	"github.com/miyuou/smartticket/internal/lookup"
)

type LookupRepository struct {
	db *gorm.DB
}

func NewLookupRepository(db *gorm.DB) *LookupRepository {
	return &LookupRepository{db: db}
}

func model(kind lookup.Kind) interface{} {
	switch kind {
	case lookup.KindCategory:
		return &lookupDatamodel.Categorie{}
	case lookup.KindStatus:
		return &lookupDatamodel.Statut{}
	case lookup.KindType:
		return &lookupDatamodel.Type{}
	}
	return nil
}

func (r *LookupRepository) List(ctx context.Context, kind lookup.Kind) ([]*lookup.Item, error) {
	m := model(kind)
	if m == nil {
		return nil, gorm.ErrInvalidValue
	}

	var items []*lookup.Item
	err := r.db.WithContext(ctx).Model(m).Select("id", "nom").Order("nom ASC").Find(&items).Error
	return items, err
}

func (r *LookupRepository) Exists(ctx context.Context, kind lookup.Kind, id int64) (bool, error) {
	m := model(kind)
	if m == nil {
		return false, gorm.ErrInvalidValue
	}

	var count int64
	err := r.db.WithContext(ctx).Model(m).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}
