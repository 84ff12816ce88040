package service_test

import (
	"context"
	"testing"

	"backend/internal/repository"
	"backend/internal/service"
	"backend/pkg/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCategoryService(env *testEnv) service.CategoryService {
	return service.NewCategoryService(
		repository.NewCategoryRepository(env.db),
		repository.NewAuditRepository(env.db),
		repository.NewTransactionManager(env.db),
	)
}

func TestCategoryDuplicateName(t *testing.T) {
	env := newTestEnv(t)
	svc := newCategoryService(env)
	ctx := context.Background()

	created, err := svc.Create(ctx, env.admin, service.CategoryDTO{Name: "Office Supplies"})
	require.NoError(t, err)
	assert.Equal(t, "Office Supplies", created.Name)

	_, err = svc.Create(ctx, env.admin, service.CategoryDTO{Name: "Office Supplies"})
	require.Error(t, err)
	appErr, ok := apperr.From(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindConflict, appErr.Kind)
	assert.Equal(t, "DUPLICATE_NAME", appErr.Code)
}

func TestCategoryDeleteInUse(t *testing.T) {
	env := newTestEnv(t)
	svc := newCategoryService(env)
	ctx := context.Background()

	// The fixture category is referenced by a draft, so delete is refused.
	env.createDraft(t, "New Laptop Purchase")

	err := svc.Delete(ctx, env.admin, env.categoryID)
	require.Error(t, err)
	appErr, ok := apperr.From(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindConflict, appErr.Kind)
	assert.Equal(t, "CATEGORY_IN_USE", appErr.Code)

	// Unreferenced categories delete cleanly.
	created, err := svc.Create(ctx, env.admin, service.CategoryDTO{Name: "Travel"})
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, env.admin, created.ID))

	_, err = svc.GetByID(ctx, created.ID)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestCategoryValidation(t *testing.T) {
	env := newTestEnv(t)
	svc := newCategoryService(env)

	_, err := svc.Create(context.Background(), env.admin, service.CategoryDTO{Name: "   "})
	require.Error(t, err)
	appErr, ok := apperr.From(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindValidation, appErr.Kind)
	assert.Contains(t, appErr.Fields, "name")
}
