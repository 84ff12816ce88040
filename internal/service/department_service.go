package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"backend/internal/model"
	"backend/internal/policy"
	"backend/internal/repository"
	"backend/pkg/apperr"

	"github.com/google/uuid"
)

type DepartmentDTO struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type DepartmentResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

type DepartmentService interface {
	Create(ctx context.Context, actor policy.Actor, req DepartmentDTO) (DepartmentResponse, error)
	List(ctx context.Context) ([]DepartmentResponse, error)
	GetByID(ctx context.Context, id string) (DepartmentResponse, error)
	Update(ctx context.Context, actor policy.Actor, id string, req DepartmentDTO) (DepartmentResponse, error)
	Delete(ctx context.Context, actor policy.Actor, id string) error
}

type departmentService struct {
	departments repository.DepartmentRepository
	audit       repository.AuditRepository
	tx          repository.TransactionManager
}

func NewDepartmentService(departments repository.DepartmentRepository, audit repository.AuditRepository, tx repository.TransactionManager) DepartmentService {
	return &departmentService{departments: departments, audit: audit, tx: tx}
}

func (s *departmentService) Create(ctx context.Context, actor policy.Actor, req DepartmentDTO) (DepartmentResponse, error) {
	if err := validateName(req.Name); err != nil {
		return DepartmentResponse{}, err
	}

	department := &model.Department{
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
	}

	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.departments.Create(txCtx, department); err != nil {
			if repository.IsUniqueViolation(err) {
				return apperr.Conflict("DUPLICATE_NAME", "a department with this name already exists")
			}
			return err
		}
		return s.writeAudit(txCtx, actor, model.ActionCreateDepartment, department)
	})
	if err != nil {
		return DepartmentResponse{}, err
	}

	return toDepartmentResponse(department), nil
}

func (s *departmentService) List(ctx context.Context) ([]DepartmentResponse, error) {
	departments, err := s.departments.List(ctx)
	if err != nil {
		return nil, err
	}
	res := make([]DepartmentResponse, 0, len(departments))
	for _, d := range departments {
		res = append(res, toDepartmentResponse(&d))
	}
	return res, nil
}

func (s *departmentService) GetByID(ctx context.Context, id string) (DepartmentResponse, error) {
	departmentID, err := uuid.Parse(id)
	if err != nil {
		return DepartmentResponse{}, apperr.NotFound("department not found")
	}
	department, err := s.departments.FindByID(ctx, departmentID)
	if err != nil {
		if repository.IsNotFound(err) {
			return DepartmentResponse{}, apperr.NotFound("department not found")
		}
		return DepartmentResponse{}, err
	}
	return toDepartmentResponse(department), nil
}

func (s *departmentService) Update(ctx context.Context, actor policy.Actor, id string, req DepartmentDTO) (DepartmentResponse, error) {
	departmentID, err := uuid.Parse(id)
	if err != nil {
		return DepartmentResponse{}, apperr.NotFound("department not found")
	}
	if err := validateName(req.Name); err != nil {
		return DepartmentResponse{}, err
	}

	var department *model.Department
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		department, err = s.departments.FindByID(txCtx, departmentID)
		if err != nil {
			if repository.IsNotFound(err) {
				return apperr.NotFound("department not found")
			}
			return err
		}

		department.Name = strings.TrimSpace(req.Name)
		department.Description = req.Description

		if err := s.departments.Update(txCtx, department); err != nil {
			if repository.IsUniqueViolation(err) {
				return apperr.Conflict("DUPLICATE_NAME", "a department with this name already exists")
			}
			return err
		}
		return s.writeAudit(txCtx, actor, model.ActionUpdateDepartment, department)
	})
	if err != nil {
		return DepartmentResponse{}, err
	}

	return toDepartmentResponse(department), nil
}

func (s *departmentService) Delete(ctx context.Context, actor policy.Actor, id string) error {
	departmentID, err := uuid.Parse(id)
	if err != nil {
		return apperr.NotFound("department not found")
	}

	return s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		department, err := s.departments.FindByID(txCtx, departmentID)
		if err != nil {
			if repository.IsNotFound(err) {
				return apperr.NotFound("department not found")
			}
			return err
		}

		if err := s.departments.Delete(txCtx, departmentID); err != nil {
			if _, ok := repository.IsForeignKeyViolation(err); ok {
				return apperr.Conflict("DEPARTMENT_IN_USE", "department is still referenced by purchase requests or users")
			}
			return err
		}
		return s.writeAudit(txCtx, actor, model.ActionDeleteDepartment, department)
	})
}

func (s *departmentService) writeAudit(txCtx context.Context, actor policy.Actor, action string, department *model.Department) error {
	details, _ := json.Marshal(map[string]interface{}{"name": department.Name})
	actorID := actor.ID
	return s.audit.Create(txCtx, &model.AuditLog{
		UserID:     &actorID,
		Action:     action,
		EntityID:   department.ID.String(),
		EntityName: department.Name,
		Details:    string(details),
	})
}

func toDepartmentResponse(d *model.Department) DepartmentResponse {
	return DepartmentResponse{
		ID:          d.ID.String(),
		Name:        d.Name,
		Description: d.Description,
		CreatedAt:   d.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   d.UpdatedAt.Format(time.RFC3339),
	}
}
