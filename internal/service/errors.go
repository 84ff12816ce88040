package service

import (
	"strings"

	"backend/internal/repository"
	"backend/pkg/apperr"
)

// Reference-existence failures. The same values are produced by the
// application pre-check and by translation of a storage FK violation, so a
// race between two writers never leaks a raw database error.
var (
	errCategoryNotFound   = apperr.Validation("CATEGORY_NOT_FOUND", "category does not exist")
	errDepartmentNotFound = apperr.Validation("DEPARTMENT_NOT_FOUND", "department does not exist")
)

func errPurchaseRequestNotFound() error {
	return apperr.NotFound("purchase request not found")
}

// translateRequestWriteError maps constraint violations on a purchase
// request write to the corresponding typed error.
func translateRequestWriteError(err error) error {
	if constraint, ok := repository.IsForeignKeyViolation(err); ok {
		switch {
		case strings.Contains(constraint, "category"):
			return errCategoryNotFound
		case strings.Contains(constraint, "department"):
			return errDepartmentNotFound
		default:
			return apperr.Validation("REFERENCE_NOT_FOUND", "a referenced record does not exist")
		}
	}
	if repository.IsUniqueViolation(err) {
		return apperr.Conflict("DUPLICATE_REQUEST_NUMBER", "request number is already in use")
	}
	return err
}
