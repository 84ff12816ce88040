package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromUnwrapsChain(t *testing.T) {
	base := Conflict("DUPLICATE_NAME", "name already exists")
	wrapped := fmt.Errorf("saving category: %w", base)

	appErr, ok := From(wrapped)
	require.True(t, ok)
	assert.Equal(t, KindConflict, appErr.Kind)
	assert.Equal(t, "DUPLICATE_NAME", appErr.Code)

	_, ok = From(errors.New("plain"))
	assert.False(t, ok)
}

func TestIsKind(t *testing.T) {
	err := NotFound("purchase request not found")

	assert.True(t, IsKind(err, KindNotFound))
	assert.False(t, IsKind(err, KindValidation))
	assert.False(t, IsKind(errors.New("plain"), KindNotFound))
	assert.False(t, IsKind(nil, KindNotFound))
}

func TestErrorStringOrdersFields(t *testing.T) {
	err := ValidationFields(map[string]string{
		"title":       "is required",
		"category_id": "is required",
	})

	assert.Equal(t, "validation failed (category_id: is required; title: is required)", err.Error())
}

func TestErrorStringWithoutFields(t *testing.T) {
	err := Validation("CANNOT_SUBMIT_NON_DRAFT", "only a draft request can be submitted")
	assert.Equal(t, "only a draft request can be submitted", err.Error())
}
