package repository

import (
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, IsUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.True(t, IsUniqueViolation(gorm.ErrDuplicatedKey))
	assert.True(t, IsUniqueViolation(sqlite3.Error{
		Code:         sqlite3.ErrConstraint,
		ExtendedCode: sqlite3.ErrConstraintUnique,
	}))

	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, IsUniqueViolation(sqlite3.Error{
		Code:         sqlite3.ErrConstraint,
		ExtendedCode: sqlite3.ErrConstraintForeignKey,
	}))
	assert.False(t, IsUniqueViolation(gorm.ErrRecordNotFound))
}

func TestIsForeignKeyViolation(t *testing.T) {
	constraint, ok := IsForeignKeyViolation(&pgconn.PgError{
		Code:           "23503",
		ConstraintName: "FK_purchase_requests_Category",
	})
	assert.True(t, ok)
	assert.Equal(t, "fk_purchase_requests_category", constraint)

	_, ok = IsForeignKeyViolation(gorm.ErrForeignKeyViolated)
	assert.True(t, ok)

	// Wrapped errors are unwrapped.
	_, ok = IsForeignKeyViolation(fmt.Errorf("deleting category: %w", gorm.ErrForeignKeyViolated))
	assert.True(t, ok)

	// SQLite reports RESTRICT violations under the generic constraint code,
	// sometimes with a trigger extended code; both must classify as FK.
	_, ok = IsForeignKeyViolation(sqlite3.Error{
		Code:         sqlite3.ErrConstraint,
		ExtendedCode: sqlite3.ErrConstraintForeignKey,
	})
	assert.True(t, ok)
	_, ok = IsForeignKeyViolation(sqlite3.Error{
		Code:         sqlite3.ErrConstraint,
		ExtendedCode: sqlite3.ErrConstraintTrigger,
	})
	assert.True(t, ok)

	_, ok = IsForeignKeyViolation(sqlite3.Error{
		Code:         sqlite3.ErrConstraint,
		ExtendedCode: sqlite3.ErrConstraintUnique,
	})
	assert.False(t, ok)
	_, ok = IsForeignKeyViolation(&pgconn.PgError{Code: "23505"})
	assert.False(t, ok)
	_, ok = IsForeignKeyViolation(gorm.ErrRecordNotFound)
	assert.False(t, ok)
}
