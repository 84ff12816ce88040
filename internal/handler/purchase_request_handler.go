package handler

import (
	"context"
	"net/http"

	"backend/internal/middleware"
	"backend/internal/model"
	"backend/internal/policy"
	"backend/internal/service"
	"backend/pkg/apperr"
	"backend/pkg/pagination"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
)

type PurchaseRequestHandler struct {
	requestService service.PurchaseRequestService
}

func NewPurchaseRequestHandler(requestService service.PurchaseRequestService) *PurchaseRequestHandler {
	return &PurchaseRequestHandler{requestService: requestService}
}

func (h *PurchaseRequestHandler) RegisterRoutes(router *gin.RouterGroup) {
	anyRole := middleware.RequireRole(model.RoleAdmin, model.RoleApprover, model.RoleRequester)
	reviewers := middleware.RequireRole(model.RoleAdmin, model.RoleApprover)

	requests := router.Group("/api/purchase-requests")
	{
		requests.GET("", anyRole, h.List)
		requests.POST("", anyRole, h.Create)
		requests.GET("/:id", anyRole, h.GetByID)
		requests.PUT("/:id", anyRole, h.Update)
		requests.DELETE("/:id", anyRole, h.Delete)
		requests.POST("/:id/submit", anyRole, h.Submit)
		requests.POST("/:id/withdraw", anyRole, h.Withdraw)
		requests.PUT("/:id/approve", reviewers, h.Approve)
		requests.PUT("/:id/reject", reviewers, h.Reject)
	}
}

// List returns the page of purchase requests visible to the caller,
// optionally filtered by status, department and a title/number search.
func (h *PurchaseRequestHandler) List(c *gin.Context) {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		c.JSON(response.FromError(apperr.Unauthorized("missing actor context")))
		return
	}

	params, err := pagination.Parse(c)
	if err != nil {
		c.JSON(response.FromError(err))
		return
	}

	filter := service.ListPurchaseRequestsDTO{
		Status:       c.Query("status"),
		Search:       c.Query("search"),
		DepartmentID: c.Query("department_id"),
		Page:         params.Page,
		PageSize:     params.PageSize,
	}

	requests, total, err := h.requestService.List(c.Request.Context(), actor, filter)
	if err != nil {
		c.JSON(response.FromError(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    http.StatusOK,
		"data":      requests,
		"total":     total,
		"page":      params.Page,
		"page_size": params.PageSize,
	})
}

func (h *PurchaseRequestHandler) Create(c *gin.Context) {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		c.JSON(response.FromError(apperr.Unauthorized("missing actor context")))
		return
	}

	var req service.CreatePurchaseRequestDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	result, err := h.requestService.Create(c.Request.Context(), actor, req)
	if err != nil {
		c.JSON(response.FromError(err))
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, result))
}

func (h *PurchaseRequestHandler) GetByID(c *gin.Context) {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		c.JSON(response.FromError(apperr.Unauthorized("missing actor context")))
		return
	}

	result, err := h.requestService.GetByID(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		c.JSON(response.FromError(err))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

func (h *PurchaseRequestHandler) Update(c *gin.Context) {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		c.JSON(response.FromError(apperr.Unauthorized("missing actor context")))
		return
	}

	var req service.UpdatePurchaseRequestDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	result, err := h.requestService.Update(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		c.JSON(response.FromError(err))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

func (h *PurchaseRequestHandler) Delete(c *gin.Context) {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		c.JSON(response.FromError(apperr.Unauthorized("missing actor context")))
		return
	}

	if err := h.requestService.Delete(c.Request.Context(), actor, c.Param("id")); err != nil {
		c.JSON(response.FromError(err))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"deleted": true}))
}

func (h *PurchaseRequestHandler) Submit(c *gin.Context) {
	h.runTransition(c, h.requestService.Submit)
}

func (h *PurchaseRequestHandler) Approve(c *gin.Context) {
	h.runTransition(c, h.requestService.Approve)
}

func (h *PurchaseRequestHandler) Reject(c *gin.Context) {
	h.runTransition(c, h.requestService.Reject)
}

func (h *PurchaseRequestHandler) Withdraw(c *gin.Context) {
	h.runTransition(c, h.requestService.Withdraw)
}

// runTransition is the shared shape of the four workflow endpoints: resolve
// the actor, run the transition, return the refreshed projection.
func (h *PurchaseRequestHandler) runTransition(c *gin.Context, op func(ctx context.Context, actor policy.Actor, id string) (service.PurchaseRequestResponse, error)) {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		c.JSON(response.FromError(apperr.Unauthorized("missing actor context")))
		return
	}

	result, err := op(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		c.JSON(response.FromError(err))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}
