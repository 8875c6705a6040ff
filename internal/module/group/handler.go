package group

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/splitmate/server/internal/utils/requestctx"
)

// Handler handles HTTP requests for groups.
type Handler struct {
	service *Service
}

// NewHandler creates a new group handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers group routes. All routes require authentication.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	groups := r.Group("/groups")
	{
		groups.POST("", h.CreateGroup)
		groups.GET("", h.ListGroups)
		groups.GET("/:id", h.GetGroup)
		groups.POST("/:id/members", h.AddMember)
		groups.POST("/:id/expenses", h.RecordExpense)
		groups.GET("/:id/expenses", h.ListExpenses)
	}
}

// CreateGroup handles POST /groups.
func (h *Handler) CreateGroup(c *gin.Context) {
	caller, ok := requestctx.UserFrom(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "message": err.Error()})
		return
	}

	group, err := h.service.CreateGroup(c.Request.Context(), caller.ID, req.Name, req.MemberName, req.MemberNames)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, group.ToResponse())
}

// ListGroups handles GET /groups.
func (h *Handler) ListGroups(c *gin.Context) {
	caller, ok := requestctx.UserFrom(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	groups, err := h.service.ListGroups(c.Request.Context(), caller.ID)
	if err != nil {
		h.handleError(c, err)
		return
	}

	resp := make([]GroupResponse, 0, len(groups))
	for i := range groups {
		resp = append(resp, groups[i].ToResponse())
	}
	c.JSON(http.StatusOK, gin.H{"groups": resp})
}

// GetGroup handles GET /groups/:id.
func (h *Handler) GetGroup(c *gin.Context) {
	caller, ok := requestctx.UserFrom(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	groupID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid group id"})
		return
	}

	group, err := h.service.GetGroup(c.Request.Context(), caller.ID, groupID)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, group.ToResponse())
}

// AddMember handles POST /groups/:id/members.
func (h *Handler) AddMember(c *gin.Context) {
	caller, ok := requestctx.UserFrom(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	groupID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid group id"})
		return
	}

	var req AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "message": err.Error()})
		return
	}

	member, err := h.service.AddMember(c.Request.Context(), caller.ID, groupID, req.Name)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, member.ToResponse())
}

// RecordExpense handles POST /groups/:id/expenses.
func (h *Handler) RecordExpense(c *gin.Context) {
	caller, ok := requestctx.UserFrom(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	groupID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid group id"})
		return
	}

	var req RecordExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "message": err.Error()})
		return
	}

	paidBy, err := uuid.Parse(req.PaidByMemberID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid member id"})
		return
	}

	expense, err := h.service.RecordExpense(c.Request.Context(), caller.ID, groupID, paidBy, req.Description, req.AmountCents)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, expense.ToResponse())
}

// ListExpenses handles GET /groups/:id/expenses.
func (h *Handler) ListExpenses(c *gin.Context) {
	caller, ok := requestctx.UserFrom(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	groupID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid group id"})
		return
	}

	expenses, err := h.service.ListExpenses(c.Request.Context(), caller.ID, groupID)
	if err != nil {
		h.handleError(c, err)
		return
	}

	resp := make([]ExpenseResponse, 0, len(expenses))
	for i := range expenses {
		resp = append(resp, expenses[i].ToResponse())
	}
	c.JSON(http.StatusOK, gin.H{"expenses": resp})
}

func (h *Handler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrGroupNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "group not found"})
	case errors.Is(err, ErrMemberNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "member not found"})
	case errors.Is(err, ErrNotGroupMember):
		c.JSON(http.StatusForbidden, gin.H{"error": "not a member of this group"})
	case errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrInvalidSplit):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
