package handler

import (
	"net/http"

	"github.com/chatterhq/identity-service/internal/dto"
	"github.com/chatterhq/identity-service/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// GuestHandler handles quota-limited messaging for anonymous callers
type GuestHandler struct {
	tracker *service.GuestTracker
	cookies CookiePolicy
	logger  *zap.Logger
}

// NewGuestHandler creates a new guest handler
func NewGuestHandler(tracker *service.GuestTracker, cookies CookiePolicy, logger *zap.Logger) *GuestHandler {
	return &GuestHandler{
		tracker: tracker,
		cookies: cookies,
		logger:  logger,
	}
}

// PostMessage records one guest message against the quota. The first
// call without a guest cookie creates the guest session and sets the
// cookie; at the quota the verdict comes back with 403 and the client
// is expected to prompt for sign-up.
// @Summary Send a message as a guest
// @Tags guest
// @Accept json
// @Produce json
// @Param request body dto.GuestMessageRequest true "Guest message"
// @Success 200 {object} dto.GuestMessageResponse
// @Failure 403 {object} dto.GuestMessageResponse
// @Router /guest/messages [post]
func (h *GuestHandler) PostMessage(c *gin.Context) {
	identity := CurrentIdentity(c)
	if identity.Authenticated {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Bad request",
			Message: "Authenticated users are not subject to the guest quota",
		})
		return
	}

	var req dto.GuestMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Validation failed",
			Message: err.Error(),
		})
		return
	}

	guest, err := h.tracker.GetOrCreate(c.Request.Context(), identity.GuestID)
	if err != nil {
		h.logger.Error("failed to resolve guest session", zap.Error(err))
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error:   "Internal server error",
			Message: "Failed to resolve guest session",
		})
		return
	}

	// Refresh the cookie on every message so an active guest never
	// loses the session to cookie expiry mid-conversation.
	h.cookies.SetGuest(c, guest.ID)

	verdict, err := h.tracker.RecordMessage(c.Request.Context(), guest.ID, req.Role, req.Content)
	if err != nil {
		h.logger.Error("failed to record guest message", zap.Error(err))
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error:   "Internal server error",
			Message: "Failed to record message",
		})
		return
	}

	status := http.StatusOK
	if !verdict.Allowed {
		status = http.StatusForbidden
	}

	c.JSON(status, dto.GuestMessageResponse{
		GuestID:   guest.ID,
		Allowed:   verdict.Allowed,
		Remaining: verdict.Remaining,
	})
}
