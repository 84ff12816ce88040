package handler

import (
	"net/http"

	"backend/internal/middleware"
	"backend/internal/model"
	"backend/internal/service"
	"backend/pkg/apperr"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
)

type CategoryHandler struct {
	categoryService service.CategoryService
}

func NewCategoryHandler(categoryService service.CategoryService) *CategoryHandler {
	return &CategoryHandler{categoryService: categoryService}
}

func (h *CategoryHandler) RegisterRoutes(router *gin.RouterGroup) {
	anyRole := middleware.RequireRole(model.RoleAdmin, model.RoleApprover, model.RoleRequester)
	adminOnly := middleware.RequireRole(model.RoleAdmin)

	categories := router.Group("/api/categories")
	{
		categories.GET("", anyRole, h.List)
		categories.GET("/:id", anyRole, h.GetByID)
		categories.POST("", adminOnly, h.Create)
		categories.PUT("/:id", adminOnly, h.Update)
		categories.DELETE("/:id", adminOnly, h.Delete)
	}
}

// List returns all categories ordered by name
// @Summary      List categories
// @Tags         categories
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=[]service.CategoryResponse}
// @Router       /api/categories [get]
func (h *CategoryHandler) List(c *gin.Context) {
	categories, err := h.categoryService.List(c.Request.Context())
	if err != nil {
		c.JSON(response.FromError(err))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, categories))
}

func (h *CategoryHandler) GetByID(c *gin.Context) {
	category, err := h.categoryService.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(response.FromError(err))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, category))
}

// Create adds a new category
// @Summary      Create category
// @Tags         categories
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CategoryDTO  true  "Category"
// @Success      201      {object}  response.Response{data=service.CategoryResponse}
// @Failure      409      {object}  response.Response
// @Router       /api/categories [post]
func (h *CategoryHandler) Create(c *gin.Context) {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		c.JSON(response.FromError(apperr.Unauthorized("missing actor context")))
		return
	}

	var req service.CategoryDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	category, err := h.categoryService.Create(c.Request.Context(), actor, req)
	if err != nil {
		c.JSON(response.FromError(err))
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, category))
}

func (h *CategoryHandler) Update(c *gin.Context) {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		c.JSON(response.FromError(apperr.Unauthorized("missing actor context")))
		return
	}

	var req service.CategoryDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	category, err := h.categoryService.Update(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		c.JSON(response.FromError(err))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, category))
}

func (h *CategoryHandler) Delete(c *gin.Context) {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		c.JSON(response.FromError(apperr.Unauthorized("missing actor context")))
		return
	}

	if err := h.categoryService.Delete(c.Request.Context(), actor, c.Param("id")); err != nil {
		c.JSON(response.FromError(err))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"deleted": true}))
}
