package service_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"backend/internal/database"
	"backend/internal/model"
	"backend/internal/policy"
	"backend/internal/repository"
	"backend/internal/service"
	"backend/pkg/apperr"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type testEnv struct {
	db  *gorm.DB
	svc service.PurchaseRequestService

	categoryID  string
	engineering string // department id
	marketing   string // department id
	requester   policy.Actor
	engApprover policy.Actor
	mktApprover policy.Actor
	admin       policy.Actor
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?_foreign_keys=1"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	// One connection keeps every session on the same in-memory database.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.Migrate(db))

	category := &model.Category{Name: "IT Equipment"}
	engineering := &model.Department{Name: "Engineering"}
	marketing := &model.Department{Name: "Marketing"}
	require.NoError(t, db.Create(category).Error)
	require.NoError(t, db.Create(engineering).Error)
	require.NoError(t, db.Create(marketing).Error)

	requester := createUser(t, db, "alice", model.RoleRequester, &engineering.ID)
	engApprover := createUser(t, db, "bob", model.RoleApprover, &engineering.ID)
	mktApprover := createUser(t, db, "carol", model.RoleApprover, &marketing.ID)
	admin := createUser(t, db, "dave", model.RoleAdmin, nil)

	txManager := repository.NewTransactionManager(db)
	requestRepo := repository.NewPurchaseRequestRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)
	departmentRepo := repository.NewDepartmentRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	numberGen := service.NewRequestNumberGenerator(db, requestRepo)

	return &testEnv{
		db:          db,
		svc:         service.NewPurchaseRequestService(requestRepo, categoryRepo, departmentRepo, auditRepo, txManager, numberGen, nil),
		categoryID:  category.ID.String(),
		engineering: engineering.ID.String(),
		marketing:   marketing.ID.String(),
		requester:   requester,
		engApprover: engApprover,
		mktApprover: mktApprover,
		admin:       admin,
	}
}

func createUser(t *testing.T, db *gorm.DB, username, role string, departmentID *uuid.UUID) policy.Actor {
	t.Helper()
	user := &model.User{
		Username:     username,
		Email:        username + "@example.com",
		Password:     "irrelevant",
		Role:         role,
		DepartmentID: departmentID,
	}
	require.NoError(t, db.Create(user).Error)
	return policy.Actor{ID: user.ID, Roles: []string{role}, DepartmentID: departmentID}
}

func (e *testEnv) createDraft(t *testing.T, title string) service.PurchaseRequestResponse {
	t.Helper()
	resp, err := e.svc.Create(context.Background(), e.requester, service.CreatePurchaseRequestDTO{
		Title:           title,
		Description:     "needed for the team",
		EstimatedAmount: decimal.NewFromInt(1500),
		CategoryID:      e.categoryID,
		DepartmentID:    e.engineering,
	})
	require.NoError(t, err)
	return resp
}

func TestCreateDraft(t *testing.T) {
	env := newTestEnv(t)

	resp := env.createDraft(t, "New Laptop Purchase")
	assert.Equal(t, model.StatusDraft, resp.Status)
	assert.Nil(t, resp.RequestNumber)
	assert.Nil(t, resp.SubmittedAt)
	assert.Equal(t, "1500.00", resp.EstimatedAmount)
	assert.Equal(t, "IT Equipment", resp.CategoryName)
	assert.Equal(t, "Engineering", resp.DepartmentName)
	assert.Equal(t, "alice", resp.RequesterName)
}

func TestCreateAggregatesFieldErrors(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.Create(context.Background(), env.requester, service.CreatePurchaseRequestDTO{
		Title:           "",
		EstimatedAmount: decimal.Zero,
		CategoryID:      "",
		DepartmentID:    "not-a-uuid",
	})
	require.Error(t, err)

	appErr, ok := apperr.From(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindValidation, appErr.Kind)
	assert.Contains(t, appErr.Fields, "title")
	assert.Contains(t, appErr.Fields, "estimated_amount")
	assert.Contains(t, appErr.Fields, "category_id")
	assert.Contains(t, appErr.Fields, "department_id")
}

func TestCreateUnknownReferences(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.Create(context.Background(), env.requester, service.CreatePurchaseRequestDTO{
		Title:           "Desk",
		EstimatedAmount: decimal.NewFromInt(300),
		CategoryID:      uuid.NewString(),
		DepartmentID:    env.engineering,
	})
	require.Error(t, err)
	appErr, ok := apperr.From(err)
	require.True(t, ok)
	assert.Equal(t, "CATEGORY_NOT_FOUND", appErr.Code)

	_, err = env.svc.Create(context.Background(), env.requester, service.CreatePurchaseRequestDTO{
		Title:           "Desk",
		EstimatedAmount: decimal.NewFromInt(300),
		CategoryID:      env.categoryID,
		DepartmentID:    uuid.NewString(),
	})
	require.Error(t, err)
	appErr, ok = apperr.From(err)
	require.True(t, ok)
	assert.Equal(t, "DEPARTMENT_NOT_FOUND", appErr.Code)
}

func TestSubmitAssignsNumberOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	draft := env.createDraft(t, "New Laptop Purchase")

	submitted, err := env.svc.Submit(ctx, env.requester, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, submitted.Status)
	require.NotNil(t, submitted.RequestNumber)
	year := time.Now().Format("2006")
	assert.Equal(t, fmt.Sprintf("PR-%s-00001", year), *submitted.RequestNumber)
	assert.NotNil(t, submitted.SubmittedAt)

	// Withdraw and resubmit: the number is kept, not redrawn.
	withdrawn, err := env.svc.Withdraw(ctx, env.requester, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusDraft, withdrawn.Status)
	assert.Nil(t, withdrawn.SubmittedAt)
	require.NotNil(t, withdrawn.RequestNumber)
	assert.Equal(t, *submitted.RequestNumber, *withdrawn.RequestNumber)

	resubmitted, err := env.svc.Submit(ctx, env.requester, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, *submitted.RequestNumber, *resubmitted.RequestNumber)

	// A second request draws the next number in sequence.
	other := env.createDraft(t, "Monitors")
	otherSubmitted, err := env.svc.Submit(ctx, env.requester, other.ID)
	require.NoError(t, err)
	require.NotNil(t, otherSubmitted.RequestNumber)
	assert.Equal(t, fmt.Sprintf("PR-%s-00002", year), *otherSubmitted.RequestNumber)
}

func TestApprovalFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	draft := env.createDraft(t, "New Laptop Purchase")
	_, err := env.svc.Submit(ctx, env.requester, draft.ID)
	require.NoError(t, err)

	approved, err := env.svc.Approve(ctx, env.engApprover, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, approved.Status)
	require.NotNil(t, approved.ReviewedByID)
	assert.Equal(t, env.engApprover.ID.String(), *approved.ReviewedByID)
	assert.Equal(t, "bob", approved.ReviewerName)
	assert.NotNil(t, approved.ReviewedAt)

	// Terminal state: a late reject is refused with the non-pending error.
	_, err = env.svc.Reject(ctx, env.engApprover, draft.ID)
	assert.ErrorIs(t, err, model.ErrCannotRejectNonPending)
}

func TestApproveOwnRequestRefused(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// An approver raising their own request cannot approve it.
	draft, err := env.svc.Create(ctx, env.engApprover, service.CreatePurchaseRequestDTO{
		Title:           "Standing desk",
		EstimatedAmount: decimal.NewFromInt(800),
		CategoryID:      env.categoryID,
		DepartmentID:    env.engineering,
	})
	require.NoError(t, err)
	_, err = env.svc.Submit(ctx, env.engApprover, draft.ID)
	require.NoError(t, err)

	_, err = env.svc.Approve(ctx, env.engApprover, draft.ID)
	assert.ErrorIs(t, err, model.ErrCannotApproveOwnRequest)

	// Still pending, so another reviewer can finish the flow.
	resp, err := env.svc.GetByID(ctx, env.admin, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, resp.Status)

	approved, err := env.svc.Approve(ctx, env.admin, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, approved.Status)
}

func TestApproveRequiresReviewerRole(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	draft := env.createDraft(t, "New Laptop Purchase")
	_, err := env.svc.Submit(ctx, env.requester, draft.ID)
	require.NoError(t, err)

	_, err = env.svc.Approve(ctx, env.requester, draft.ID)
	assert.True(t, apperr.IsKind(err, apperr.KindUnauthorized))
}

func TestUpdateAndDeleteDraftOnly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	draft := env.createDraft(t, "New Laptop Purchase")

	update := service.UpdatePurchaseRequestDTO{
		Title:           "New Laptop Purchase (revised)",
		EstimatedAmount: decimal.NewFromInt(1800),
		CategoryID:      env.categoryID,
		DepartmentID:    env.engineering,
	}
	updated, err := env.svc.Update(ctx, env.requester, draft.ID, update)
	require.NoError(t, err)
	assert.Equal(t, "New Laptop Purchase (revised)", updated.Title)
	assert.Equal(t, "1800.00", updated.EstimatedAmount)

	_, err = env.svc.Submit(ctx, env.requester, draft.ID)
	require.NoError(t, err)

	_, err = env.svc.Update(ctx, env.requester, draft.ID, update)
	assert.ErrorIs(t, err, model.ErrCannotUpdateNonDraft)

	err = env.svc.Delete(ctx, env.requester, draft.ID)
	assert.ErrorIs(t, err, model.ErrCannotDeleteNonDraft)

	// Back to draft, delete goes through.
	_, err = env.svc.Withdraw(ctx, env.requester, draft.ID)
	require.NoError(t, err)
	require.NoError(t, env.svc.Delete(ctx, env.requester, draft.ID))

	_, err = env.svc.GetByID(ctx, env.admin, draft.ID)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestOwnershipGuards(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	draft := env.createDraft(t, "New Laptop Purchase")

	// The department approver can see the draft but cannot submit it.
	_, err := env.svc.Submit(ctx, env.engApprover, draft.ID)
	assert.True(t, apperr.IsKind(err, apperr.KindUnauthorized))

	// An admin may act on behalf of the requester.
	_, err = env.svc.Submit(ctx, env.admin, draft.ID)
	require.NoError(t, err)

	_, err = env.svc.Withdraw(ctx, env.engApprover, draft.ID)
	assert.True(t, apperr.IsKind(err, apperr.KindUnauthorized))
}

func TestVisibilityScoping(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	draft := env.createDraft(t, "New Laptop Purchase")

	// Same-department approver and admin see it; the other department's
	// approver gets the same answer as for a request that does not exist.
	_, err := env.svc.GetByID(ctx, env.engApprover, draft.ID)
	require.NoError(t, err)
	_, err = env.svc.GetByID(ctx, env.admin, draft.ID)
	require.NoError(t, err)
	_, err = env.svc.GetByID(ctx, env.requester, draft.ID)
	require.NoError(t, err)

	_, err = env.svc.GetByID(ctx, env.mktApprover, draft.ID)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))

	// Commands go through the same scope.
	_, err = env.svc.Submit(ctx, env.requester, draft.ID)
	require.NoError(t, err)
	_, err = env.svc.Approve(ctx, env.mktApprover, draft.ID)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))

	// Listing reflects the same rule.
	_, total, err := env.svc.List(ctx, env.engApprover, service.ListPurchaseRequestsDTO{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)

	_, total, err = env.svc.List(ctx, env.mktApprover, service.ListPurchaseRequestsDTO{})
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)

	_, total, err = env.svc.List(ctx, env.admin, service.ListPurchaseRequestsDTO{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestListPaginationAndOrdering(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 4; i++ {
		resp := env.createDraft(t, fmt.Sprintf("Request %d", i))
		ids = append(ids, resp.ID)
		time.Sleep(2 * time.Millisecond)
	}

	page1, total, err := env.svc.List(ctx, env.requester, service.ListPurchaseRequestsDTO{Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)
	require.Len(t, page1, 2)

	page2, _, err := env.svc.List(ctx, env.requester, service.ListPurchaseRequestsDTO{Page: 2, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, page2, 2)

	// Newest first, no overlap across pages.
	assert.Equal(t, ids[3], page1[0].ID)
	assert.Equal(t, ids[2], page1[1].ID)
	assert.Equal(t, ids[1], page2[0].ID)
	assert.Equal(t, ids[0], page2[1].ID)
}

func TestListFilters(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	laptop := env.createDraft(t, "New Laptop Purchase")
	env.createDraft(t, "Software License")

	_, err := env.svc.Submit(ctx, env.requester, laptop.ID)
	require.NoError(t, err)

	results, total, err := env.svc.List(ctx, env.requester, service.ListPurchaseRequestsDTO{Search: "laptop"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, results, 1)
	assert.Equal(t, "New Laptop Purchase", results[0].Title)

	results, _, err = env.svc.List(ctx, env.requester, service.ListPurchaseRequestsDTO{Status: model.StatusDraft})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Software License", results[0].Title)

	_, _, err = env.svc.List(ctx, env.requester, service.ListPurchaseRequestsDTO{Status: "SHIPPED"})
	require.Error(t, err)
	appErr, ok := apperr.From(err)
	require.True(t, ok)
	assert.Contains(t, appErr.Fields, "status")
}

func TestGetByIDRejectsMalformedID(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.GetByID(context.Background(), env.requester, "not-a-uuid")
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestMissingActorContext(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.Create(context.Background(), policy.Actor{}, service.CreatePurchaseRequestDTO{})
	assert.True(t, apperr.IsKind(err, apperr.KindUnauthorized))
}

func TestRequestNumbersSurviveDeletedGaps(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first := env.createDraft(t, "Laptops")
	second := env.createDraft(t, "Monitors")
	_, err := env.svc.Submit(ctx, env.requester, first.ID)
	require.NoError(t, err)
	submittedSecond, err := env.svc.Submit(ctx, env.requester, second.ID)
	require.NoError(t, err)

	// Withdraw and delete the first numbered request, leaving a gap below
	// the highest issued number.
	_, err = env.svc.Withdraw(ctx, env.requester, first.ID)
	require.NoError(t, err)
	require.NoError(t, env.svc.Delete(ctx, env.requester, first.ID))

	third := env.createDraft(t, "Keyboards")
	submittedThird, err := env.svc.Submit(ctx, env.requester, third.ID)
	require.NoError(t, err)

	// The sequence continues past the highest issued number; the freed
	// number is never reissued while a higher one is in use.
	year := time.Now().Format("2006")
	require.NotNil(t, submittedThird.RequestNumber)
	assert.Equal(t, fmt.Sprintf("PR-%s-00003", year), *submittedThird.RequestNumber)
	require.NotNil(t, submittedSecond.RequestNumber)
	assert.NotEqual(t, *submittedSecond.RequestNumber, *submittedThird.RequestNumber)
}

func TestListRejectsOutOfRangePagination(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, _, err := env.svc.List(ctx, env.requester, service.ListPurchaseRequestsDTO{PageSize: 101})
	require.Error(t, err)
	appErr, ok := apperr.From(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindValidation, appErr.Kind)
	assert.Contains(t, appErr.Fields, "page_size")

	_, _, err = env.svc.List(ctx, env.requester, service.ListPurchaseRequestsDTO{Page: -1})
	require.Error(t, err)
	appErr, ok = apperr.From(err)
	require.True(t, ok)
	assert.Contains(t, appErr.Fields, "page")

	_, _, err = env.svc.List(ctx, env.requester, service.ListPurchaseRequestsDTO{PageSize: -5})
	require.Error(t, err)
	appErr, ok = apperr.From(err)
	require.True(t, ok)
	assert.Contains(t, appErr.Fields, "page_size")

	// Zero values fall back to the defaults.
	_, _, err = env.svc.List(ctx, env.requester, service.ListPurchaseRequestsDTO{})
	require.NoError(t, err)
}

func TestAuditTrailWritten(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	draft := env.createDraft(t, "New Laptop Purchase")
	_, err := env.svc.Submit(ctx, env.requester, draft.ID)
	require.NoError(t, err)
	_, err = env.svc.Approve(ctx, env.engApprover, draft.ID)
	require.NoError(t, err)

	var actions []string
	require.NoError(t, env.db.Model(&model.AuditLog{}).
		Where("entity_id = ?", draft.ID).
		Order("created_at").
		Pluck("action", &actions).Error)
	assert.Equal(t, []string{
		model.ActionCreatePurchaseRequest,
		model.ActionSubmitPurchaseRequest,
		model.ActionApprovePurchaseRequest,
	}, actions)
}
