// Package policy holds the role/department-scoped visibility rules for
// purchase requests. The rule is derived once per actor and consumed both as
// a SQL scope (list, get-by-id) and as an in-memory predicate, so the two
// paths cannot drift apart.
package policy

import (
	"backend/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Actor is the authenticated principal threaded explicitly into every
// command and query: id, set of roles, optional department assignment.
type Actor struct {
	ID           uuid.UUID
	Roles        []string
	DepartmentID *uuid.UUID
}

func (a Actor) HasRole(role string) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

func (a Actor) IsAdmin() bool {
	return a.HasRole(model.RoleAdmin)
}

// visibilityRule is the single derivation both Scope and Allows consume.
type visibilityRule struct {
	everything   bool
	departmentID *uuid.UUID // non-nil: own-department requests are visible too
	requesterID  uuid.UUID  // own requests are always visible
}

func ruleFor(actor Actor) visibilityRule {
	switch {
	case actor.HasRole(model.RoleAdmin):
		return visibilityRule{everything: true}
	case actor.HasRole(model.RoleApprover) && actor.DepartmentID != nil:
		return visibilityRule{departmentID: actor.DepartmentID, requesterID: actor.ID}
	default:
		// Approver without a department assignment sees no more than a
		// plain requester.
		return visibilityRule{requesterID: actor.ID}
	}
}

// Scope returns a GORM scope restricting purchase request queries to the
// rows the actor may see. Applied before any other filter on every list and
// get-by-id query.
func Scope(actor Actor) func(db *gorm.DB) *gorm.DB {
	rule := ruleFor(actor)
	return func(db *gorm.DB) *gorm.DB {
		if rule.everything {
			return db
		}
		if rule.departmentID != nil {
			return db.Where("department_id = ? OR requester_id = ?", *rule.departmentID, rule.requesterID)
		}
		return db.Where("requester_id = ?", rule.requesterID)
	}
}

// Allows reports whether the actor may see the given request. It applies the
// same rule as Scope.
func Allows(actor Actor, req *model.PurchaseRequest) bool {
	rule := ruleFor(actor)
	if rule.everything {
		return true
	}
	if rule.departmentID != nil && req.DepartmentID == *rule.departmentID {
		return true
	}
	return req.RequesterID == rule.requesterID
}
