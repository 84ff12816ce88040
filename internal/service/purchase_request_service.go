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
	"backend/pkg/pagination"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// --- DTOs ---

type CreatePurchaseRequestDTO struct {
	Title                 string          `json:"title"`
	Description           string          `json:"description"`
	EstimatedAmount       decimal.Decimal `json:"estimated_amount"`
	BusinessJustification string          `json:"business_justification"`
	CategoryID            string          `json:"category_id"`
	DepartmentID          string          `json:"department_id"`
}

// UpdatePurchaseRequestDTO carries the full editable field set; updates are
// whole-document while the request is still a draft.
type UpdatePurchaseRequestDTO struct {
	Title                 string          `json:"title"`
	Description           string          `json:"description"`
	EstimatedAmount       decimal.Decimal `json:"estimated_amount"`
	BusinessJustification string          `json:"business_justification"`
	CategoryID            string          `json:"category_id"`
	DepartmentID          string          `json:"department_id"`
}

type ListPurchaseRequestsDTO struct {
	Status       string
	Search       string
	DepartmentID string
	Page         int
	PageSize     int
}

// PurchaseRequestResponse is the read-side projection: related display
// fields are flattened in, never returned as a nested object graph.
type PurchaseRequestResponse struct {
	ID                    string  `json:"id"`
	RequestNumber         *string `json:"request_number"`
	Title                 string  `json:"title"`
	Description           string  `json:"description"`
	EstimatedAmount       string  `json:"estimated_amount"`
	BusinessJustification string  `json:"business_justification"`
	CategoryID            string  `json:"category_id"`
	CategoryName          string  `json:"category_name"`
	DepartmentID          string  `json:"department_id"`
	DepartmentName        string  `json:"department_name"`
	RequesterID           string  `json:"requester_id"`
	RequesterName         string  `json:"requester_name"`
	Status                string  `json:"status"`
	SubmittedAt           *string `json:"submitted_at"`
	ReviewedAt            *string `json:"reviewed_at"`
	ReviewedByID          *string `json:"reviewed_by_id"`
	ReviewerName          string  `json:"reviewer_name"`
	CreatedAt             string  `json:"created_at"`
	UpdatedAt             string  `json:"updated_at"`
}

// Notifier publishes workflow events to connected clients. Implemented by
// the websocket hub; nil disables notifications.
type Notifier interface {
	PublishWorkflowEvent(eventType, requestID, requestNumber, status string)
}

// --- Interface ---

type PurchaseRequestService interface {
	Create(ctx context.Context, actor policy.Actor, req CreatePurchaseRequestDTO) (PurchaseRequestResponse, error)
	Update(ctx context.Context, actor policy.Actor, id string, req UpdatePurchaseRequestDTO) (PurchaseRequestResponse, error)
	Delete(ctx context.Context, actor policy.Actor, id string) error
	Submit(ctx context.Context, actor policy.Actor, id string) (PurchaseRequestResponse, error)
	Approve(ctx context.Context, actor policy.Actor, id string) (PurchaseRequestResponse, error)
	Reject(ctx context.Context, actor policy.Actor, id string) (PurchaseRequestResponse, error)
	Withdraw(ctx context.Context, actor policy.Actor, id string) (PurchaseRequestResponse, error)
	List(ctx context.Context, actor policy.Actor, filter ListPurchaseRequestsDTO) ([]PurchaseRequestResponse, int64, error)
	GetByID(ctx context.Context, actor policy.Actor, id string) (PurchaseRequestResponse, error)
}

type purchaseRequestService struct {
	requests    repository.PurchaseRequestRepository
	categories  repository.CategoryRepository
	departments repository.DepartmentRepository
	audit       repository.AuditRepository
	tx          repository.TransactionManager
	numbers     RequestNumberGenerator
	notifier    Notifier
}

func NewPurchaseRequestService(
	requests repository.PurchaseRequestRepository,
	categories repository.CategoryRepository,
	departments repository.DepartmentRepository,
	audit repository.AuditRepository,
	tx repository.TransactionManager,
	numbers RequestNumberGenerator,
	notifier Notifier,
) PurchaseRequestService {
	return &purchaseRequestService{
		requests:    requests,
		categories:  categories,
		departments: departments,
		audit:       audit,
		tx:          tx,
		numbers:     numbers,
		notifier:    notifier,
	}
}

// --- Validation ---

// validateRequestFields collects every offending field before any aggregate
// method runs; the caller receives one aggregated validation error.
func validateRequestFields(title, description, justification string, amount decimal.Decimal, categoryID, departmentID string) (uuid.UUID, uuid.UUID, error) {
	fields := map[string]string{}

	if strings.TrimSpace(title) == "" {
		fields["title"] = "is required"
	} else if utf8.RuneCountInString(title) > 200 {
		fields["title"] = "must be at most 200 characters"
	}
	if utf8.RuneCountInString(description) > 2000 {
		fields["description"] = "must be at most 2000 characters"
	}
	if utf8.RuneCountInString(justification) > 1000 {
		fields["business_justification"] = "must be at most 1000 characters"
	}
	if !amount.IsPositive() {
		fields["estimated_amount"] = "must be greater than zero"
	}

	var catID, deptID uuid.UUID
	var err error
	if categoryID == "" {
		fields["category_id"] = "is required"
	} else if catID, err = uuid.Parse(categoryID); err != nil {
		fields["category_id"] = "must be a valid uuid"
	}
	if departmentID == "" {
		fields["department_id"] = "is required"
	} else if deptID, err = uuid.Parse(departmentID); err != nil {
		fields["department_id"] = "must be a valid uuid"
	}

	if len(fields) > 0 {
		return uuid.Nil, uuid.Nil, apperr.ValidationFields(fields)
	}
	return catID, deptID, nil
}

func parseRequestID(id string) (uuid.UUID, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, apperr.ValidationFields(map[string]string{"id": "must be a valid uuid"})
	}
	return parsed, nil
}

func requireActor(actor policy.Actor) error {
	if actor.ID == uuid.Nil {
		return apperr.Unauthorized("missing actor context")
	}
	return nil
}

// requireOwner gates the rights the requester holds exclusively (edit,
// delete, submit, withdraw). Admins may act on any request.
func requireOwner(actor policy.Actor, req *model.PurchaseRequest, action string) error {
	if actor.IsAdmin() || req.RequesterID == actor.ID {
		return nil
	}
	return apperr.Unauthorized("only the requester may " + action + " this purchase request")
}

func requireReviewer(actor policy.Actor) error {
	if actor.IsAdmin() || actor.HasRole(model.RoleApprover) {
		return nil
	}
	return apperr.Unauthorized("approver role required")
}

// --- Commands ---

func (s *purchaseRequestService) Create(ctx context.Context, actor policy.Actor, req CreatePurchaseRequestDTO) (PurchaseRequestResponse, error) {
	if err := requireActor(actor); err != nil {
		return PurchaseRequestResponse{}, err
	}

	catID, deptID, err := validateRequestFields(req.Title, req.Description, req.BusinessJustification, req.EstimatedAmount, req.CategoryID, req.DepartmentID)
	if err != nil {
		return PurchaseRequestResponse{}, err
	}

	request := &model.PurchaseRequest{
		Title:                 strings.TrimSpace(req.Title),
		Description:           req.Description,
		EstimatedAmount:       req.EstimatedAmount,
		BusinessJustification: req.BusinessJustification,
		CategoryID:            catID,
		DepartmentID:          deptID,
		RequesterID:           actor.ID,
		Status:                model.StatusDraft,
	}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.checkReferences(txCtx, catID, deptID); err != nil {
			return err
		}
		if err := s.requests.Create(txCtx, request); err != nil {
			return translateRequestWriteError(err)
		}
		return s.writeAudit(txCtx, actor, model.ActionCreatePurchaseRequest, request, map[string]interface{}{
			"title":  request.Title,
			"amount": request.EstimatedAmount.StringFixed(2),
		})
	})
	if err != nil {
		return PurchaseRequestResponse{}, err
	}

	return s.loadResponse(ctx, request.ID)
}

func (s *purchaseRequestService) Update(ctx context.Context, actor policy.Actor, id string, req UpdatePurchaseRequestDTO) (PurchaseRequestResponse, error) {
	if err := requireActor(actor); err != nil {
		return PurchaseRequestResponse{}, err
	}
	requestID, err := parseRequestID(id)
	if err != nil {
		return PurchaseRequestResponse{}, err
	}
	catID, deptID, err := validateRequestFields(req.Title, req.Description, req.BusinessJustification, req.EstimatedAmount, req.CategoryID, req.DepartmentID)
	if err != nil {
		return PurchaseRequestResponse{}, err
	}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		request, err := s.loadForCommand(txCtx, requestID, actor)
		if err != nil {
			return err
		}
		if err := requireOwner(actor, request, "update"); err != nil {
			return err
		}
		if err := request.CanUpdate(); err != nil {
			return err
		}
		if err := s.checkReferences(txCtx, catID, deptID); err != nil {
			return err
		}

		request.Title = strings.TrimSpace(req.Title)
		request.Description = req.Description
		request.EstimatedAmount = req.EstimatedAmount
		request.BusinessJustification = req.BusinessJustification
		request.CategoryID = catID
		request.DepartmentID = deptID
		request.UpdatedAt = time.Now()

		if err := s.requests.Save(txCtx, request); err != nil {
			return translateRequestWriteError(err)
		}
		return s.writeAudit(txCtx, actor, model.ActionUpdatePurchaseRequest, request, map[string]interface{}{
			"title":  request.Title,
			"amount": request.EstimatedAmount.StringFixed(2),
		})
	})
	if err != nil {
		return PurchaseRequestResponse{}, err
	}

	return s.loadResponse(ctx, requestID)
}

func (s *purchaseRequestService) Delete(ctx context.Context, actor policy.Actor, id string) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	requestID, err := parseRequestID(id)
	if err != nil {
		return err
	}

	return s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		request, err := s.loadForCommand(txCtx, requestID, actor)
		if err != nil {
			return err
		}
		if err := requireOwner(actor, request, "delete"); err != nil {
			return err
		}
		if err := request.CanDelete(); err != nil {
			return err
		}
		if err := s.requests.Delete(txCtx, request); err != nil {
			return err
		}
		return s.writeAudit(txCtx, actor, model.ActionDeletePurchaseRequest, request, map[string]interface{}{
			"title": request.Title,
		})
	})
}

func (s *purchaseRequestService) Submit(ctx context.Context, actor policy.Actor, id string) (PurchaseRequestResponse, error) {
	return s.transition(ctx, actor, id, model.ActionSubmitPurchaseRequest, func(txCtx context.Context, request *model.PurchaseRequest) error {
		if err := requireOwner(actor, request, "submit"); err != nil {
			return err
		}
		// The request number is issued lazily at first submit; a withdrawn
		// request keeps its number and never draws a second one.
		if request.RequestNumber == nil {
			number, err := s.numbers.Generate(txCtx)
			if err != nil {
				return err
			}
			if err := request.AssignRequestNumber(number); err != nil {
				return err
			}
		}
		return request.Submit()
	})
}

func (s *purchaseRequestService) Approve(ctx context.Context, actor policy.Actor, id string) (PurchaseRequestResponse, error) {
	return s.transition(ctx, actor, id, model.ActionApprovePurchaseRequest, func(txCtx context.Context, request *model.PurchaseRequest) error {
		if err := requireReviewer(actor); err != nil {
			return err
		}
		return request.Approve(actor.ID)
	})
}

func (s *purchaseRequestService) Reject(ctx context.Context, actor policy.Actor, id string) (PurchaseRequestResponse, error) {
	return s.transition(ctx, actor, id, model.ActionRejectPurchaseRequest, func(txCtx context.Context, request *model.PurchaseRequest) error {
		if err := requireReviewer(actor); err != nil {
			return err
		}
		return request.Reject(actor.ID)
	})
}

func (s *purchaseRequestService) Withdraw(ctx context.Context, actor policy.Actor, id string) (PurchaseRequestResponse, error) {
	return s.transition(ctx, actor, id, model.ActionWithdrawPurchaseRequest, func(txCtx context.Context, request *model.PurchaseRequest) error {
		if err := requireOwner(actor, request, "withdraw"); err != nil {
			return err
		}
		return request.Withdraw()
	})
}

// transition runs one state-machine step: load the row under lock through
// the actor's visibility scope, apply the mutation, save, audit. The row
// lock makes racing terminal transitions deterministic; the loser re-reads
// the terminal status and fails with the matching non-pending error.
func (s *purchaseRequestService) transition(ctx context.Context, actor policy.Actor, id, action string, mutate func(txCtx context.Context, request *model.PurchaseRequest) error) (PurchaseRequestResponse, error) {
	if err := requireActor(actor); err != nil {
		return PurchaseRequestResponse{}, err
	}
	requestID, err := parseRequestID(id)
	if err != nil {
		return PurchaseRequestResponse{}, err
	}

	var request *model.PurchaseRequest
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		request, err = s.loadForCommand(txCtx, requestID, actor)
		if err != nil {
			return err
		}
		if err := mutate(txCtx, request); err != nil {
			return err
		}
		if err := s.requests.Save(txCtx, request); err != nil {
			return translateRequestWriteError(err)
		}
		return s.writeAudit(txCtx, actor, action, request, map[string]interface{}{
			"status": request.Status,
		})
	})
	if err != nil {
		return PurchaseRequestResponse{}, err
	}

	if s.notifier != nil {
		number := ""
		if request.RequestNumber != nil {
			number = *request.RequestNumber
		}
		s.notifier.PublishWorkflowEvent(action, request.ID.String(), number, request.Status)
	}

	return s.loadResponse(ctx, requestID)
}

// --- Queries ---

func (s *purchaseRequestService) List(ctx context.Context, actor policy.Actor, filter ListPurchaseRequestsDTO) ([]PurchaseRequestResponse, int64, error) {
	if err := requireActor(actor); err != nil {
		return nil, 0, err
	}

	fields := map[string]string{}
	switch filter.Status {
	case "", model.StatusDraft, model.StatusPending, model.StatusApproved, model.StatusRejected:
	default:
		fields["status"] = "must be one of DRAFT, PENDING, APPROVED, REJECTED"
	}

	var departmentID *uuid.UUID
	if filter.DepartmentID != "" {
		parsed, err := uuid.Parse(filter.DepartmentID)
		if err != nil {
			fields["department_id"] = "must be a valid uuid"
		} else {
			departmentID = &parsed
		}
	}
	// The HTTP edge validates page bounds too; re-checking here keeps them
	// enforced for every caller of the query handler.
	switch {
	case filter.Page == 0:
		filter.Page = pagination.DefaultPage
	case filter.Page < 1:
		fields["page"] = "must be an integer >= 1"
	}
	switch {
	case filter.PageSize == 0:
		filter.PageSize = pagination.DefaultPageSize
	case filter.PageSize < pagination.MinPageSize || filter.PageSize > pagination.MaxPageSize:
		fields["page_size"] = "must be an integer between 1 and 100"
	}

	if len(fields) > 0 {
		return nil, 0, apperr.ValidationFields(fields)
	}

	requests, total, err := s.requests.List(ctx, actor, repository.PurchaseRequestFilter{
		Status:       filter.Status,
		Search:       strings.TrimSpace(filter.Search),
		DepartmentID: departmentID,
		Page:         filter.Page,
		PageSize:     filter.PageSize,
	})
	if err != nil {
		return nil, 0, err
	}

	result := make([]PurchaseRequestResponse, 0, len(requests))
	for _, r := range requests {
		result = append(result, toPurchaseRequestResponse(&r))
	}
	return result, total, nil
}

func (s *purchaseRequestService) GetByID(ctx context.Context, actor policy.Actor, id string) (PurchaseRequestResponse, error) {
	if err := requireActor(actor); err != nil {
		return PurchaseRequestResponse{}, err
	}
	requestID, err := parseRequestID(id)
	if err != nil {
		return PurchaseRequestResponse{}, err
	}

	// Excluded-by-policy and absent are deliberately the same answer so the
	// existence of out-of-scope requests is never revealed.
	request, err := s.requests.FindVisibleByID(ctx, requestID, actor)
	if err != nil {
		if repository.IsNotFound(err) {
			return PurchaseRequestResponse{}, errPurchaseRequestNotFound()
		}
		return PurchaseRequestResponse{}, err
	}
	return toPurchaseRequestResponse(request), nil
}

// --- Helpers ---

func (s *purchaseRequestService) loadForCommand(txCtx context.Context, id uuid.UUID, actor policy.Actor) (*model.PurchaseRequest, error) {
	request, err := s.requests.FindVisibleByIDForUpdate(txCtx, id, actor)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, errPurchaseRequestNotFound()
		}
		return nil, err
	}
	return request, nil
}

func (s *purchaseRequestService) checkReferences(txCtx context.Context, categoryID, departmentID uuid.UUID) error {
	ok, err := s.categories.Exists(txCtx, categoryID)
	if err != nil {
		return err
	}
	if !ok {
		return errCategoryNotFound
	}

	ok, err = s.departments.Exists(txCtx, departmentID)
	if err != nil {
		return err
	}
	if !ok {
		return errDepartmentNotFound
	}
	return nil
}

func (s *purchaseRequestService) writeAudit(txCtx context.Context, actor policy.Actor, action string, request *model.PurchaseRequest, details map[string]interface{}) error {
	payload, _ := json.Marshal(details)
	actorID := actor.ID
	entityName := request.Title
	if request.RequestNumber != nil {
		entityName = *request.RequestNumber
	}
	return s.audit.Create(txCtx, &model.AuditLog{
		UserID:     &actorID,
		Action:     action,
		EntityID:   request.ID.String(),
		EntityName: entityName,
		Details:    string(payload),
	})
}

func (s *purchaseRequestService) loadResponse(ctx context.Context, id uuid.UUID) (PurchaseRequestResponse, error) {
	request, err := s.requests.FindByIDWithRelations(ctx, id)
	if err != nil {
		return PurchaseRequestResponse{}, err
	}
	return toPurchaseRequestResponse(request), nil
}

func toPurchaseRequestResponse(r *model.PurchaseRequest) PurchaseRequestResponse {
	resp := PurchaseRequestResponse{
		ID:                    r.ID.String(),
		RequestNumber:         r.RequestNumber,
		Title:                 r.Title,
		Description:           r.Description,
		EstimatedAmount:       r.EstimatedAmount.StringFixed(2),
		BusinessJustification: r.BusinessJustification,
		CategoryID:            r.CategoryID.String(),
		DepartmentID:          r.DepartmentID.String(),
		RequesterID:           r.RequesterID.String(),
		Status:                r.Status,
		CreatedAt:             r.CreatedAt.Format(time.RFC3339),
		UpdatedAt:             r.UpdatedAt.Format(time.RFC3339),
	}

	if r.Category != nil {
		resp.CategoryName = r.Category.Name
	}
	if r.Department != nil {
		resp.DepartmentName = r.Department.Name
	}
	if r.Requester != nil {
		resp.RequesterName = r.Requester.Username
	}
	if r.ReviewedBy != nil {
		resp.ReviewerName = r.ReviewedBy.Username
	}
	if r.SubmittedAt != nil {
		v := r.SubmittedAt.Format(time.RFC3339)
		resp.SubmittedAt = &v
	}
	if r.ReviewedAt != nil {
		v := r.ReviewedAt.Format(time.RFC3339)
		resp.ReviewedAt = &v
	}
	if r.ReviewedByID != nil {
		v := r.ReviewedByID.String()
		resp.ReviewedByID = &v
	}

	return resp
}
