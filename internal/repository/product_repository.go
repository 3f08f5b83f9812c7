package repository

import (
	"context"
	"errors"

	"github.com/unimarket/backend/internal/model"
	"gorm.io/gorm"
)

// ProductRepository is the read-only surface chat needs from the listing
// subsystem: resolving a product's seller and decorating summaries.
type ProductRepository interface {
	FindByID(ctx context.Context, id uint64) (*model.Product, error)
	FindByIDs(ctx context.Context, ids []uint64) (map[uint64]model.Product, error)
	SetDB(db *gorm.DB)
}

type productRepository struct {
	db *gorm.DB
}

var ErrDBNotReady = errors.New("database not initialized")

func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepository{db: db}
}

func (r *productRepository) SetDB(db *gorm.DB) {
	r.db = db
}

func (r *productRepository) FindByID(ctx context.Context, id uint64) (*model.Product, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	var p model.Product
	if err := r.db.WithContext(ctx).First(&p, id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *productRepository) FindByIDs(ctx context.Context, ids []uint64) (map[uint64]model.Product, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	out := make(map[uint64]model.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var list []model.Product
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&list).Error; err != nil {
		return nil, err
	}
	for _, p := range list {
		out[p.ID] = p
	}
	return out, nil
}
