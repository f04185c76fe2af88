package sellers

import (
	"context"
	"errors"

	"github.com/bazaarhub/bazaar-backend/pkg/db/models"
	pkgerrors "github.com/bazaarhub/bazaar-backend/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository loads seller storefront profiles.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// FindByID returns a single seller profile.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.SellerProfile, error) {
	var profile models.SellerProfile
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "seller not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load seller profile")
	}
	return &profile, nil
}

// FindProfilesByIDs returns the profiles keyed by seller id. Unknown ids are skipped.
func (r *Repository) FindProfilesByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.SellerProfile, error) {
	result := make(map[uuid.UUID]*models.SellerProfile, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	var profiles []models.SellerProfile
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&profiles).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load seller profiles")
	}
	for i := range profiles {
		result[profiles[i].ID] = &profiles[i]
	}
	return result, nil
}
