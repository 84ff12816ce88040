package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"
	"unicode/utf8"

	"backend/internal/model"
	"backend/internal/policy"
	"backend/internal/repository"
	"backend/pkg/apperr"

	"github.com/google/uuid"
)

// --- DTOs ---

type CategoryDTO struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type CategoryResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// --- Interface ---

type CategoryService interface {
	Create(ctx context.Context, actor policy.Actor, req CategoryDTO) (CategoryResponse, error)
	List(ctx context.Context) ([]CategoryResponse, error)
	GetByID(ctx context.Context, id string) (CategoryResponse, error)
	Update(ctx context.Context, actor policy.Actor, id string, req CategoryDTO) (CategoryResponse, error)
	Delete(ctx context.Context, actor policy.Actor, id string) error
}

type categoryService struct {
	categories repository.CategoryRepository
	audit      repository.AuditRepository
	tx         repository.TransactionManager
}

func NewCategoryService(categories repository.CategoryRepository, audit repository.AuditRepository, tx repository.TransactionManager) CategoryService {
	return &categoryService{categories: categories, audit: audit, tx: tx}
}

// --- Implementation ---

func validateName(name string) error {
	fields := map[string]string{}
	if strings.TrimSpace(name) == "" {
		fields["name"] = "is required"
	} else if utf8.RuneCountInString(name) > 100 {
		fields["name"] = "must be at most 100 characters"
	}
	if len(fields) > 0 {
		return apperr.ValidationFields(fields)
	}
	return nil
}

func (s *categoryService) Create(ctx context.Context, actor policy.Actor, req CategoryDTO) (CategoryResponse, error) {
	if err := validateName(req.Name); err != nil {
		return CategoryResponse{}, err
	}

	category := &model.Category{
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
	}

	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.categories.Create(txCtx, category); err != nil {
			if repository.IsUniqueViolation(err) {
				return apperr.Conflict("DUPLICATE_NAME", "a category with this name already exists")
			}
			return err
		}
		return s.writeAudit(txCtx, actor, model.ActionCreateCategory, category)
	})
	if err != nil {
		return CategoryResponse{}, err
	}

	return toCategoryResponse(category), nil
}

func (s *categoryService) List(ctx context.Context) ([]CategoryResponse, error) {
	categories, err := s.categories.List(ctx)
	if err != nil {
		return nil, err
	}
	res := make([]CategoryResponse, 0, len(categories))
	for _, c := range categories {
		res = append(res, toCategoryResponse(&c))
	}
	return res, nil
}

func (s *categoryService) GetByID(ctx context.Context, id string) (CategoryResponse, error) {
	categoryID, err := uuid.Parse(id)
	if err != nil {
		return CategoryResponse{}, apperr.NotFound("category not found")
	}
	category, err := s.categories.FindByID(ctx, categoryID)
	if err != nil {
		if repository.IsNotFound(err) {
			return CategoryResponse{}, apperr.NotFound("category not found")
		}
		return CategoryResponse{}, err
	}
	return toCategoryResponse(category), nil
}

func (s *categoryService) Update(ctx context.Context, actor policy.Actor, id string, req CategoryDTO) (CategoryResponse, error) {
	categoryID, err := uuid.Parse(id)
	if err != nil {
		return CategoryResponse{}, apperr.NotFound("category not found")
	}
	if err := validateName(req.Name); err != nil {
		return CategoryResponse{}, err
	}

	var category *model.Category
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		category, err = s.categories.FindByID(txCtx, categoryID)
		if err != nil {
			if repository.IsNotFound(err) {
				return apperr.NotFound("category not found")
			}
			return err
		}

		category.Name = strings.TrimSpace(req.Name)
		category.Description = req.Description

		if err := s.categories.Update(txCtx, category); err != nil {
			if repository.IsUniqueViolation(err) {
				return apperr.Conflict("DUPLICATE_NAME", "a category with this name already exists")
			}
			return err
		}
		return s.writeAudit(txCtx, actor, model.ActionUpdateCategory, category)
	})
	if err != nil {
		return CategoryResponse{}, err
	}

	return toCategoryResponse(category), nil
}

func (s *categoryService) Delete(ctx context.Context, actor policy.Actor, id string) error {
	categoryID, err := uuid.Parse(id)
	if err != nil {
		return apperr.NotFound("category not found")
	}

	return s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		category, err := s.categories.FindByID(txCtx, categoryID)
		if err != nil {
			if repository.IsNotFound(err) {
				return apperr.NotFound("category not found")
			}
			return err
		}

		// The FK is RESTRICT; the violation becomes a typed conflict.
		if err := s.categories.Delete(txCtx, categoryID); err != nil {
			if _, ok := repository.IsForeignKeyViolation(err); ok {
				return apperr.Conflict("CATEGORY_IN_USE", "category is still referenced by purchase requests")
			}
			return err
		}
		return s.writeAudit(txCtx, actor, model.ActionDeleteCategory, category)
	})
}

func (s *categoryService) writeAudit(txCtx context.Context, actor policy.Actor, action string, category *model.Category) error {
	details, _ := json.Marshal(map[string]interface{}{"name": category.Name})
	actorID := actor.ID
	return s.audit.Create(txCtx, &model.AuditLog{
		UserID:     &actorID,
		Action:     action,
		EntityID:   category.ID.String(),
		EntityName: category.Name,
		Details:    string(details),
	})
}

func toCategoryResponse(c *model.Category) CategoryResponse {
	return CategoryResponse{
		ID:          c.ID.String(),
		Name:        c.Name,
		Description: c.Description,
		CreatedAt:   c.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   c.UpdatedAt.Format(time.RFC3339),
	}
}
