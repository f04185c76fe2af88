package products

import (
	"context"
	"errors"

	"github.com/bazaarhub/bazaar-backend/pkg/db/models"
	pkgerrors "github.com/bazaarhub/bazaar-backend/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CatalogReader exposes the read paths checkout uses to reprice cart lines.
type CatalogReader interface {
	FindVariantsByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.ProductVariant, error)
	FindDiscountsByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.ProductDiscount, error)
}

// Repository wires together all catalog persistence helpers.
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

// FindVariantByID loads a variant together with its parent product.
func (r *Repository) FindVariantByID(ctx context.Context, id uuid.UUID) (*models.ProductVariant, error) {
	var variant models.ProductVariant
	err := r.db.WithContext(ctx).
		Preload("Product").
		Where("id = ?", id).
		First(&variant).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product variant not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product variant")
	}
	return &variant, nil
}

// FindVariantsByIDs loads the requested variants keyed by id. Missing ids are
// simply absent from the map; callers decide whether that is an error.
func (r *Repository) FindVariantsByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.ProductVariant, error) {
	result := make(map[uuid.UUID]*models.ProductVariant, len(ids))
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return result, nil
	}

	var variants []models.ProductVariant
	if err := r.db.WithContext(ctx).
		Preload("Product").
		Where("id IN ?", ids).
		Find(&variants).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product variants")
	}
	for i := range variants {
		result[variants[i].ID] = &variants[i]
	}
	return result, nil
}

// FindDiscountsByIDs loads discount records keyed by id.
func (r *Repository) FindDiscountsByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.ProductDiscount, error) {
	result := make(map[uuid.UUID]*models.ProductDiscount, len(ids))
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return result, nil
	}

	var discounts []models.ProductDiscount
	if err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&discounts).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product discounts")
	}
	for i := range discounts {
		result[discounts[i].ID] = &discounts[i]
	}
	return result, nil
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
