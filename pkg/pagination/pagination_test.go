package pagination

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"backend/pkg/apperr"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ginContext(t *testing.T, query string) *gin.Context {
	t.Helper()
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	req, err := http.NewRequest(http.MethodGet, "/api/purchase-requests?"+query, nil)
	require.NoError(t, err)
	c.Request = req
	return c
}

func TestParseDefaults(t *testing.T) {
	params, err := Parse(ginContext(t, ""))
	require.NoError(t, err)
	assert.Equal(t, DefaultPage, params.Page)
	assert.Equal(t, DefaultPageSize, params.PageSize)
	assert.Equal(t, 0, params.Offset)
}

func TestParseExplicitValues(t *testing.T) {
	params, err := Parse(ginContext(t, "page=3&page_size=50"))
	require.NoError(t, err)
	assert.Equal(t, 3, params.Page)
	assert.Equal(t, 50, params.PageSize)
	assert.Equal(t, 100, params.Offset)
}

func TestParseRejectsOutOfRange(t *testing.T) {
	tests := []struct {
		name  string
		query string
		field string
	}{
		{"zero page", "page=0", "page"},
		{"negative page", "page=-2", "page"},
		{"non-numeric page", "page=abc", "page"},
		{"zero page size", "page_size=0", "page_size"},
		{"oversized page size", "page_size=101", "page_size"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(ginContext(t, tt.query))
			require.Error(t, err)
			appErr, ok := apperr.From(err)
			require.True(t, ok)
			assert.Equal(t, apperr.KindValidation, appErr.Kind)
			assert.Contains(t, appErr.Fields, tt.field)
		})
	}
}

func TestParseBoundaryPageSize(t *testing.T) {
	params, err := Parse(ginContext(t, "page_size=100"))
	require.NoError(t, err)
	assert.Equal(t, MaxPageSize, params.PageSize)

	params, err = Parse(ginContext(t, "page_size=1"))
	require.NoError(t, err)
	assert.Equal(t, MinPageSize, params.PageSize)
}
