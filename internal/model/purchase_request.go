package model

import (
	"time"

	"backend/pkg/apperr"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PurchaseRequest status enum constants
const (
	StatusDraft    = "DRAFT"
	StatusPending  = "PENDING"
	StatusApproved = "APPROVED"
	StatusRejected = "REJECTED"
)

// Typed transition failures. Every workflow method reports its violation as
// one of these so callers branch on the error value, never on a panic.
var (
	ErrCannotSubmitNonDraft     = apperr.Validation("CANNOT_SUBMIT_NON_DRAFT", "only a draft request can be submitted")
	ErrCannotApproveNonPending  = apperr.Validation("CANNOT_APPROVE_NON_PENDING", "only a pending request can be approved")
	ErrCannotApproveOwnRequest  = apperr.Validation("CANNOT_APPROVE_OWN_REQUEST", "a request cannot be approved by its own requester")
	ErrCannotRejectNonPending   = apperr.Validation("CANNOT_REJECT_NON_PENDING", "only a pending request can be rejected")
	ErrCannotWithdrawNonPending = apperr.Validation("CANNOT_WITHDRAW_NON_PENDING", "only a pending request can be withdrawn")
	ErrCannotUpdateNonDraft     = apperr.Validation("CANNOT_UPDATE_NON_DRAFT", "only a draft request can be updated")
	ErrCannotDeleteNonDraft     = apperr.Validation("CANNOT_DELETE_NON_DRAFT", "only a draft request can be deleted")
)

// PurchaseRequest is a purchase request moving through the
// Draft -> Pending -> Approved/Rejected approval workflow.
// RequestNumber stays NULL until first submission and is never reassigned.
type PurchaseRequest struct {
	ID                    uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	RequestNumber         *string         `gorm:"type:varchar(30);uniqueIndex" json:"request_number"`
	Title                 string          `gorm:"type:varchar(200);not null" json:"title"`
	Description           string          `gorm:"type:varchar(2000)" json:"description"`
	EstimatedAmount       decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"estimated_amount"`
	BusinessJustification string          `gorm:"type:varchar(1000)" json:"business_justification"`
	CategoryID            uuid.UUID       `gorm:"type:uuid;not null;index" json:"category_id"`
	Category              *Category       `gorm:"foreignKey:CategoryID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"category,omitempty"`
	DepartmentID          uuid.UUID       `gorm:"type:uuid;not null;index" json:"department_id"`
	Department            *Department     `gorm:"foreignKey:DepartmentID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"department,omitempty"`
	RequesterID           uuid.UUID       `gorm:"type:uuid;not null;index" json:"requester_id"`
	Requester             *User           `gorm:"foreignKey:RequesterID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"requester,omitempty"`
	Status                string          `gorm:"type:varchar(20);not null;default:'DRAFT';index" json:"status"`
	SubmittedAt           *time.Time      `json:"submitted_at"`
	ReviewedAt            *time.Time      `json:"reviewed_at"`
	ReviewedByID          *uuid.UUID      `gorm:"type:uuid" json:"reviewed_by_id"`
	ReviewedBy            *User           `gorm:"foreignKey:ReviewedByID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"reviewed_by,omitempty"`
	CreatedAt             time.Time       `gorm:"index" json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
}

func (p *PurchaseRequest) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// AssignRequestNumber sets the request number exactly once. A second
// assignment indicates a bug in the caller, not a business condition.
func (p *PurchaseRequest) AssignRequestNumber(number string) error {
	if p.RequestNumber != nil {
		return apperr.Internalf("request number already assigned: %s", *p.RequestNumber)
	}
	p.RequestNumber = &number
	return nil
}

// Submit moves a draft request into the pending state.
func (p *PurchaseRequest) Submit() error {
	if p.Status != StatusDraft {
		return ErrCannotSubmitNonDraft
	}
	now := time.Now()
	p.Status = StatusPending
	p.SubmittedAt = &now
	p.UpdatedAt = now
	return nil
}

// Approve finalizes a pending request. A requester can never approve their
// own request, regardless of role.
func (p *PurchaseRequest) Approve(reviewerID uuid.UUID) error {
	if p.Status != StatusPending {
		return ErrCannotApproveNonPending
	}
	if reviewerID == p.RequesterID {
		return ErrCannotApproveOwnRequest
	}
	now := time.Now()
	p.Status = StatusApproved
	p.ReviewedByID = &reviewerID
	p.ReviewedAt = &now
	p.UpdatedAt = now
	return nil
}

// Reject finalizes a pending request as rejected.
func (p *PurchaseRequest) Reject(reviewerID uuid.UUID) error {
	if p.Status != StatusPending {
		return ErrCannotRejectNonPending
	}
	now := time.Now()
	p.Status = StatusRejected
	p.ReviewedByID = &reviewerID
	p.ReviewedAt = &now
	p.UpdatedAt = now
	return nil
}

// Withdraw returns a pending request to draft, reopening it for edits.
// The request number, once assigned, is kept.
func (p *PurchaseRequest) Withdraw() error {
	if p.Status != StatusPending {
		return ErrCannotWithdrawNonPending
	}
	p.Status = StatusDraft
	p.SubmittedAt = nil
	p.UpdatedAt = time.Now()
	return nil
}

// CanUpdate guards field edits: drafts only.
func (p *PurchaseRequest) CanUpdate() error {
	if p.Status != StatusDraft {
		return ErrCannotUpdateNonDraft
	}
	return nil
}

// CanDelete guards removal: drafts only.
func (p *PurchaseRequest) CanDelete() error {
	if p.Status != StatusDraft {
		return ErrCannotDeleteNonDraft
	}
	return nil
}
