package repository

import (
	"context"

	"backend/internal/model"
	"backend/internal/policy"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PurchaseRequestFilter composes on top of the actor's visibility scope.
type PurchaseRequestFilter struct {
	Status       string
	Search       string // case-insensitive substring on title OR request number
	DepartmentID *uuid.UUID
	Page         int
	PageSize     int
}

type PurchaseRequestRepository interface {
	Create(ctx context.Context, req *model.PurchaseRequest) error
	// FindVisibleByID loads a request through the actor's visibility scope
	// with display relations preloaded. Rows outside the scope are
	// indistinguishable from absent rows.
	FindVisibleByID(ctx context.Context, id uuid.UUID, actor policy.Actor) (*model.PurchaseRequest, error)
	// FindVisibleByIDForUpdate is the command-side load: same scope, row
	// locked for the enclosing transaction so racing transitions serialize.
	FindVisibleByIDForUpdate(ctx context.Context, id uuid.UUID, actor policy.Actor) (*model.PurchaseRequest, error)
	FindByIDWithRelations(ctx context.Context, id uuid.UUID) (*model.PurchaseRequest, error)
	List(ctx context.Context, actor policy.Actor, filter PurchaseRequestFilter) ([]model.PurchaseRequest, int64, error)
	Save(ctx context.Context, req *model.PurchaseRequest) error
	Delete(ctx context.Context, req *model.PurchaseRequest) error
	// MaxNumberSuffix returns the highest numeric suffix among request
	// numbers carrying the prefix, or 0 when none exist. Deleted requests
	// leave gaps, so the next number must come from the maximum, never from
	// a row count.
	MaxNumberSuffix(ctx context.Context, prefix string) (int64, error)
}

type purchaseRequestRepository struct {
	db *gorm.DB
}

func NewPurchaseRequestRepository(db *gorm.DB) PurchaseRequestRepository {
	return &purchaseRequestRepository{db: db}
}

func (r *purchaseRequestRepository) Create(ctx context.Context, req *model.PurchaseRequest) error {
	return GetDB(ctx, r.db).Create(req).Error
}

func (r *purchaseRequestRepository) FindVisibleByID(ctx context.Context, id uuid.UUID, actor policy.Actor) (*model.PurchaseRequest, error) {
	var req model.PurchaseRequest
	if err := GetDB(ctx, r.db).
		Scopes(policy.Scope(actor)).
		Preload("Category").
		Preload("Department").
		Preload("Requester").
		Preload("ReviewedBy").
		First(&req, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *purchaseRequestRepository) FindVisibleByIDForUpdate(ctx context.Context, id uuid.UUID, actor policy.Actor) (*model.PurchaseRequest, error) {
	db := GetDB(ctx, r.db)
	// SQLite has no FOR UPDATE; its transactions serialize writes anyway
	if db.Dialector.Name() == "postgres" {
		db = db.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var req model.PurchaseRequest
	if err := db.
		Scopes(policy.Scope(actor)).
		First(&req, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *purchaseRequestRepository) FindByIDWithRelations(ctx context.Context, id uuid.UUID) (*model.PurchaseRequest, error) {
	var req model.PurchaseRequest
	if err := GetDB(ctx, r.db).
		Preload("Category").
		Preload("Department").
		Preload("Requester").
		Preload("ReviewedBy").
		First(&req, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *purchaseRequestRepository) List(ctx context.Context, actor policy.Actor, filter PurchaseRequestFilter) ([]model.PurchaseRequest, int64, error) {
	var requests []model.PurchaseRequest
	var total int64

	db := GetDB(ctx, r.db)
	base := db.Model(&model.PurchaseRequest{}).Scopes(policy.Scope(actor))
	base = applyPurchaseRequestFilter(base, filter)

	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	fetch := db.Scopes(policy.Scope(actor)).
		Preload("Category").
		Preload("Department").
		Preload("Requester").
		Preload("ReviewedBy")
	fetch = applyPurchaseRequestFilter(fetch, filter)

	offset := (filter.Page - 1) * filter.PageSize
	// id breaks created_at ties so pages never overlap
	if err := fetch.
		Order("created_at DESC, id").
		Offset(offset).
		Limit(filter.PageSize).
		Find(&requests).Error; err != nil {
		return nil, 0, err
	}

	return requests, total, nil
}

func applyPurchaseRequestFilter(db *gorm.DB, filter PurchaseRequestFilter) *gorm.DB {
	if filter.Status != "" {
		db = db.Where("status = ?", filter.Status)
	}
	if filter.DepartmentID != nil {
		db = db.Where("department_id = ?", *filter.DepartmentID)
	}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		db = db.Where("LOWER(title) LIKE LOWER(?) OR LOWER(request_number) LIKE LOWER(?)", pattern, pattern)
	}
	return db
}

func (r *purchaseRequestRepository) Save(ctx context.Context, req *model.PurchaseRequest) error {
	return GetDB(ctx, r.db).Save(req).Error
}

func (r *purchaseRequestRepository) Delete(ctx context.Context, req *model.PurchaseRequest) error {
	return GetDB(ctx, r.db).Delete(req).Error
}

func (r *purchaseRequestRepository) MaxNumberSuffix(ctx context.Context, prefix string) (int64, error) {
	var max *int64
	err := GetDB(ctx, r.db).Model(&model.PurchaseRequest{}).
		Where("request_number LIKE ?", prefix+"%").
		Select("MAX(CAST(SUBSTR(request_number, ?) AS INTEGER))", len(prefix)+1).
		Scan(&max).Error
	if err != nil || max == nil {
		return 0, err
	}
	return *max, nil
}
