package pagination

import (
	"strconv"

	"backend/pkg/apperr"

	"github.com/gin-gonic/gin"
)

const (
	DefaultPage     = 1
	DefaultPageSize = 20
	MaxPageSize     = 100
	MinPageSize     = 1
)

// Params holds validated pagination parameters
type Params struct {
	Page     int
	PageSize int
	Offset   int
}

// Parse extracts page/page_size from query parameters. Missing values fall
// back to defaults; out-of-range values are a validation error rather than
// being silently clamped.
func Parse(c *gin.Context) (Params, error) {
	fields := map[string]string{}

	page := DefaultPage
	if raw := c.Query("page"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			fields["page"] = "must be an integer >= 1"
		} else {
			page = parsed
		}
	}

	pageSize := DefaultPageSize
	if raw := c.Query("page_size"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < MinPageSize || parsed > MaxPageSize {
			fields["page_size"] = "must be an integer between " +
				strconv.Itoa(MinPageSize) + " and " + strconv.Itoa(MaxPageSize)
		} else {
			pageSize = parsed
		}
	}

	if len(fields) > 0 {
		return Params{}, apperr.ValidationFields(fields)
	}

	return Params{
		Page:     page,
		PageSize: pageSize,
		Offset:   (page - 1) * pageSize,
	}, nil
}
