package handler

import (
	"net/http"
	"time"

	"backend/internal/middleware"
	"backend/internal/model"
	"backend/internal/service"
	"backend/pkg/apperr"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
)

type StatisticsHandler struct {
	statisticsService service.StatisticsService
}

func NewStatisticsHandler(statisticsService service.StatisticsService) *StatisticsHandler {
	return &StatisticsHandler{statisticsService: statisticsService}
}

func (h *StatisticsHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/api/statistics", middleware.RequireRole(model.RoleAdmin), h.GetStatistics)
}

// GetStatistics returns workflow metrics over an optional date range;
// defaults to the last 30 days.
func (h *StatisticsHandler) GetStatistics(c *gin.Context) {
	endDate := time.Now()
	startDate := endDate.AddDate(0, 0, -30)

	fields := map[string]string{}
	if raw := c.Query("start_date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			fields["start_date"] = "must be YYYY-MM-DD"
		} else {
			startDate = parsed
		}
	}
	if raw := c.Query("end_date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			fields["end_date"] = "must be YYYY-MM-DD"
		} else {
			// Include the whole end day
			endDate = parsed.Add(24*time.Hour - time.Nanosecond)
		}
	}
	if len(fields) > 0 {
		c.JSON(response.FromError(apperr.ValidationFields(fields)))
		return
	}

	stats, err := h.statisticsService.GetStatistics(c.Request.Context(), startDate, endDate)
	if err != nil {
		c.JSON(response.FromError(err))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, stats))
}
