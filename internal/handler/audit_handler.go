package handler

import (
	"net/http"

	"backend/internal/middleware"
	"backend/internal/model"
	"backend/internal/service"
	"backend/pkg/pagination"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
)

type AuditHandler struct {
	auditService service.AuditService
}

func NewAuditHandler(auditService service.AuditService) *AuditHandler {
	return &AuditHandler{auditService: auditService}
}

func (h *AuditHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/api/audit-logs", middleware.RequireRole(model.RoleAdmin), h.GetAuditLogs)
}

// GetAuditLogs returns paginated audit records, newest first
func (h *AuditHandler) GetAuditLogs(c *gin.Context) {
	params, err := pagination.Parse(c)
	if err != nil {
		c.JSON(response.FromError(err))
		return
	}

	logs, total, err := h.auditService.GetAuditLogs(c.Request.Context(), params.Page, params.PageSize)
	if err != nil {
		c.JSON(response.FromError(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    http.StatusOK,
		"data":      logs,
		"total":     total,
		"page":      params.Page,
		"page_size": params.PageSize,
	})
}
