package repository

import (
	"context"
	"errors"

	"github.com/nimasrn/receipt-gateway/internal/model"
	"github.com/nimasrn/receipt-gateway/pkg/pg"
	"gorm.io/gorm"
)

type SettingsRepository struct {
	*pg.DB
}

func NewSettingsRepository(db *pg.DB) *SettingsRepository {
	return &SettingsRepository{
		db,
	}
}

// Get returns the resolved association settings. A missing row resolves to
// the defaults.
func (r *SettingsRepository) Get(ctx context.Context) (*model.AssociationSettings, error) {
	var entity SettingsEntity
	err := r.Read(ctx).WithContext(ctx).
		Order("id ASC").
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.ResolveSettings(nil), nil
		}
		return nil, err
	}
	return model.ResolveSettings(toSettingsRow(&entity)), nil
}
