package linking

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handler handles HTTP requests for account linking.
type Handler struct {
	service *Service
}

// NewHandler creates a new linking handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers linking routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	tokens := r.Group("/link-tokens")
	{
		tokens.POST("", h.GenerateToken)
		tokens.GET("/:id", h.ValidateToken)
		tokens.POST("/:id/claim", h.ClaimToken)
		tokens.DELETE("/:id", h.RevokeToken)
	}

	requests := r.Group("/link-requests")
	{
		requests.POST("", h.CreateLinkRequest)
		requests.GET("/incoming", h.IncomingRequests)
		requests.GET("/outgoing", h.OutgoingRequests)
		requests.GET("/previous", h.PreviousRequests)
		requests.POST("/:id/accept", h.AcceptLinkRequest)
		requests.POST("/:id/decline", h.DeclineLinkRequest)
		requests.DELETE("/:id", h.CancelLinkRequest)
	}
}

// ========== Token Handlers ==========

// GenerateToken handles invite token creation.
func (h *Handler) GenerateToken(c *gin.Context) {
	var req GenerateTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	token, err := h.service.GenerateToken(c.Request.Context(), req.TargetMemberID, req.TargetMemberName)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, token.ToResponse())
}

// ValidateToken handles read-only token validation.
func (h *Handler) ValidateToken(c *gin.Context) {
	result, err := h.service.ValidateToken(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, result.ToResponse())
}

// ClaimToken handles claiming an invite token.
func (h *Handler) ClaimToken(c *gin.Context) {
	result, err := h.service.ClaimToken(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// RevokeToken handles revoking an unclaimed token.
func (h *Handler) RevokeToken(c *gin.Context) {
	if err := h.service.RevokeToken(c.Request.Context(), c.Param("id")); err != nil {
		h.handleError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// ========== Request Handlers ==========

// CreateLinkRequest handles creating a link request.
func (h *Handler) CreateLinkRequest(c *gin.Context) {
	var req CreateLinkRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	created, err := h.service.CreateLinkRequest(c.Request.Context(), req.RecipientEmail, req.TargetMemberID, req.TargetMemberName)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, created.ToResponse())
}

// IncomingRequests lists pending requests addressed to the caller.
func (h *Handler) IncomingRequests(c *gin.Context) {
	reqs, err := h.service.IncomingRequests(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"requests": toResponses(reqs)})
}

// OutgoingRequests lists pending requests created by the caller.
func (h *Handler) OutgoingRequests(c *gin.Context) {
	reqs, err := h.service.OutgoingRequests(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"requests": toResponses(reqs)})
}

// PreviousRequests lists resolved requests addressed to the caller.
func (h *Handler) PreviousRequests(c *gin.Context) {
	reqs, err := h.service.PreviousRequests(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"requests": toResponses(reqs)})
}

// AcceptLinkRequest handles accepting a link request.
func (h *Handler) AcceptLinkRequest(c *gin.Context) {
	id, ok := h.requestID(c)
	if !ok {
		return
	}

	result, err := h.service.AcceptLinkRequest(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// DeclineLinkRequest handles declining a link request.
func (h *Handler) DeclineLinkRequest(c *gin.Context) {
	id, ok := h.requestID(c)
	if !ok {
		return
	}

	if err := h.service.DeclineLinkRequest(c.Request.Context(), id); err != nil {
		h.handleError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// CancelLinkRequest handles cancelling a link request.
func (h *Handler) CancelLinkRequest(c *gin.Context) {
	id, ok := h.requestID(c)
	if !ok {
		return
	}

	if err := h.service.CancelLinkRequest(c.Request.Context(), id); err != nil {
		h.handleError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// ========== Helpers ==========

func (h *Handler) requestID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request id"})
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) handleError(c *gin.Context, err error) {
	var linkErr *Error
	if !errors.As(err, &linkErr) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	status := http.StatusInternalServerError
	switch linkErr.Kind {
	case KindInvalid:
		status = http.StatusNotFound
	case KindExpired:
		status = http.StatusGone
	case KindAlreadyClaimed, KindDuplicateRequest, KindMemberAlreadyLinked, KindAccountAlreadyLinked:
		status = http.StatusConflict
	case KindUnauthorized:
		status = http.StatusForbidden
	case KindSelfLinkNotAllowed:
		status = http.StatusBadRequest
	}

	body := gin.H{"error": string(linkErr.Kind), "message": linkErr.Message}
	if linkErr.Recovery != "" {
		body["recovery"] = linkErr.Recovery
	}
	c.JSON(status, body)
}
