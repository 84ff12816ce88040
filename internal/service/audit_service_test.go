package service_test

import (
	"context"
	"testing"

	"backend/internal/model"
	"backend/internal/repository"
	"backend/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetAuditLogs(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := service.NewAuditService(repository.NewAuditRepository(env.db))

	draft := env.createDraft(t, "New Laptop Purchase")
	_, err := env.svc.Submit(ctx, env.requester, draft.ID)
	require.NoError(t, err)

	logs, total, err := svc.GetAuditLogs(ctx, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, logs, 2)

	actions := []string{logs[0].Action, logs[1].Action}
	assert.ElementsMatch(t, []string{
		model.ActionCreatePurchaseRequest,
		model.ActionSubmitPurchaseRequest,
	}, actions)
	for _, entry := range logs {
		assert.Equal(t, "alice", entry.Username)
		assert.Equal(t, draft.ID, entry.EntityID)
	}
}

func TestGetAuditLogsDefaultsPagination(t *testing.T) {
	env := newTestEnv(t)
	svc := service.NewAuditService(repository.NewAuditRepository(env.db))

	logs, total, err := svc.GetAuditLogs(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
	assert.Empty(t, logs)
}
