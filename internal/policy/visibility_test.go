package policy

import (
	"testing"

	"backend/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestAllows(t *testing.T) {
	dept1 := uuid.New()
	dept2 := uuid.New()
	owner := uuid.New()

	req := &model.PurchaseRequest{
		ID:           uuid.New(),
		DepartmentID: dept1,
		RequesterID:  owner,
	}

	tests := []struct {
		name  string
		actor Actor
		want  bool
	}{
		{
			name:  "admin sees everything",
			actor: Actor{ID: uuid.New(), Roles: []string{model.RoleAdmin}},
			want:  true,
		},
		{
			name:  "approver in same department",
			actor: Actor{ID: uuid.New(), Roles: []string{model.RoleApprover}, DepartmentID: &dept1},
			want:  true,
		},
		{
			name:  "approver in another department",
			actor: Actor{ID: uuid.New(), Roles: []string{model.RoleApprover}, DepartmentID: &dept2},
			want:  false,
		},
		{
			name:  "approver without department assignment",
			actor: Actor{ID: uuid.New(), Roles: []string{model.RoleApprover}},
			want:  false,
		},
		{
			name:  "requester sees own request",
			actor: Actor{ID: owner, Roles: []string{model.RoleRequester}},
			want:  true,
		},
		{
			name:  "requester cannot see another requester's request",
			actor: Actor{ID: uuid.New(), Roles: []string{model.RoleRequester}},
			want:  false,
		},
		{
			name:  "approver sees own request outside their department",
			actor: Actor{ID: owner, Roles: []string{model.RoleApprover}, DepartmentID: &dept2},
			want:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Allows(tt.actor, req))
		})
	}
}

func TestHasRole(t *testing.T) {
	actor := Actor{ID: uuid.New(), Roles: []string{model.RoleApprover, model.RoleRequester}}

	assert.True(t, actor.HasRole(model.RoleApprover))
	assert.True(t, actor.HasRole(model.RoleRequester))
	assert.False(t, actor.HasRole(model.RoleAdmin))
	assert.False(t, actor.IsAdmin())
}
