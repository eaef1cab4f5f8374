package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/chatterhq/identity-service/internal/domain"
	"github.com/chatterhq/identity-service/internal/dto"
	"github.com/chatterhq/identity-service/internal/repository"
	"github.com/chatterhq/identity-service/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AuthHandler handles authentication requests
type AuthHandler struct {
	credentials *service.CredentialAuthenticator
	sessions    *service.SessionStore
	oauth       *service.OAuthBroker
	migration   *service.MigrationService
	users       repository.UserRepository
	chats       repository.ChatRepository
	cookies     CookiePolicy
	logger      *zap.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(
	credentials *service.CredentialAuthenticator,
	sessions *service.SessionStore,
	oauth *service.OAuthBroker,
	migration *service.MigrationService,
	users repository.UserRepository,
	chats repository.ChatRepository,
	cookies CookiePolicy,
	logger *zap.Logger,
) *AuthHandler {
	return &AuthHandler{
		credentials: credentials,
		sessions:    sessions,
		oauth:       oauth,
		migration:   migration,
		users:       users,
		chats:       chats,
		cookies:     cookies,
		logger:      logger,
	}
}

// Register handles user registration
// @Summary Register a new user
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.RegisterRequest true "Registration request"
// @Success 201 {object} dto.AuthResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Validation failed",
			Message: err.Error(),
		})
		return
	}

	user, err := h.credentials.Register(c.Request.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		if errors.Is(err, domain.ErrEmailTaken) {
			c.JSON(http.StatusConflict, dto.ErrorResponse{
				Error:   "Conflict",
				Message: "Email is already registered",
			})
			return
		}
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Bad request",
			Message: err.Error(),
		})
		return
	}

	if !h.establishSession(c, user) {
		return
	}

	c.JSON(http.StatusCreated, dto.AuthResponse{User: userInfo(user)})
}

// Login handles email+password sign-in
// @Summary Login user
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.LoginRequest true "Login request"
// @Success 200 {object} dto.AuthResponse
// @Failure 401 {object} dto.ErrorResponse
// @Failure 423 {object} dto.ErrorResponse
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Validation failed",
			Message: err.Error(),
		})
		return
	}

	user, err := h.credentials.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrAccountLocked):
			c.JSON(http.StatusLocked, dto.ErrorResponse{
				Error:   "Locked",
				Message: "Too many failed attempts, try again later",
			})
		case errors.Is(err, domain.ErrInvalidCredentials):
			c.JSON(http.StatusUnauthorized, dto.ErrorResponse{
				Error:   "Unauthorized",
				Message: "Invalid email or password",
			})
		default:
			h.logger.Error("login failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
				Error:   "Internal server error",
				Message: "Login failed",
			})
		}
		return
	}

	if !h.establishSession(c, user) {
		return
	}

	c.JSON(http.StatusOK, dto.AuthResponse{User: userInfo(user)})
}

// OAuthStart redirects to the provider's consent screen
// @Summary Start an OAuth sign-in flow
// @Tags auth
// @Param provider path string true "Provider name"
// @Success 302
// @Failure 404 {object} dto.ErrorResponse
// @Router /auth/oauth/{provider}/start [get]
func (h *AuthHandler) OAuthStart(c *gin.Context) {
	authURL, err := h.oauth.Begin(c.Request.Context(), c.Param("provider"))
	if err != nil {
		if errors.Is(err, domain.ErrUnknownProvider) {
			c.JSON(http.StatusNotFound, dto.ErrorResponse{
				Error:   "Not found",
				Message: "Unknown provider",
			})
			return
		}
		h.logger.Error("failed to start oauth flow", zap.Error(err))
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error:   "Internal server error",
			Message: "Failed to start sign-in",
		})
		return
	}

	c.Redirect(http.StatusFound, authURL)
}

// OAuthCallback completes the provider flow and signs the user in
// @Summary OAuth provider callback
// @Tags auth
// @Produce json
// @Param provider path string true "Provider name"
// @Param code query string true "Authorization code"
// @Param state query string true "State nonce"
// @Success 200 {object} dto.AuthResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 403 {object} dto.ErrorResponse
// @Failure 502 {object} dto.ErrorResponse
// @Router /auth/oauth/{provider}/callback [get]
func (h *AuthHandler) OAuthCallback(c *gin.Context) {
	if errParam := c.Query("error"); errParam != "" {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Bad request",
			Message: "Provider denied the authorization request",
		})
		return
	}

	code := c.Query("code")
	state := c.Query("state")
	if code == "" || state == "" {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Bad request",
			Message: "Missing code or state",
		})
		return
	}

	user, err := h.oauth.Complete(c.Request.Context(), c.Param("provider"), code, state)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrUnknownProvider):
			c.JSON(http.StatusNotFound, dto.ErrorResponse{
				Error:   "Not found",
				Message: "Unknown provider",
			})
		case errors.Is(err, domain.ErrInvalidState):
			// Deliberately vague: the state is either forged, expired,
			// or replayed, and the caller learns nothing about which.
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{
				Error:   "Bad request",
				Message: "Sign-in could not be completed, please retry",
			})
		case errors.Is(err, domain.ErrEmailUnverified):
			c.JSON(http.StatusForbidden, dto.ErrorResponse{
				Error:   "Forbidden",
				Message: "Provider email address is not verified",
			})
		case errors.Is(err, domain.ErrProvider):
			h.logger.Error("oauth provider error", zap.Error(err))
			c.JSON(http.StatusBadGateway, dto.ErrorResponse{
				Error:   "Bad gateway",
				Message: "Provider is unavailable, please retry",
			})
		default:
			h.logger.Error("oauth callback failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
				Error:   "Internal server error",
				Message: "Sign-in failed",
			})
		}
		return
	}

	if !h.establishSession(c, user) {
		return
	}

	c.JSON(http.StatusOK, dto.AuthResponse{User: userInfo(user)})
}

// GetMe returns the current user profile
// @Summary Get current user profile
// @Tags auth
// @Produce json
// @Success 200 {object} dto.UserResponse
// @Failure 401 {object} dto.ErrorResponse
// @Router /auth/me [get]
func (h *AuthHandler) GetMe(c *gin.Context) {
	identity := CurrentIdentity(c)

	user, err := h.users.GetByID(c.Request.Context(), identity.UserID)
	if err != nil {
		h.logger.Error("failed to load user profile", zap.Error(err))
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error:   "Internal server error",
			Message: "Failed to load profile",
		})
		return
	}

	resp := dto.UserResponse{
		ID:              user.ID,
		Email:           user.Email,
		Name:            user.DisplayName,
		IsEmailVerified: user.IsEmailVerified,
		CreatedAt:       user.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       user.UpdatedAt.Format(time.RFC3339),
	}
	if user.LastLoginAt != nil {
		lastLogin := user.LastLoginAt.Format(time.RFC3339)
		resp.LastLoginAt = &lastLogin
	}

	c.JSON(http.StatusOK, resp)
}

// Logout revokes the current session and clears the cookie
// @Summary Logout user
// @Tags auth
// @Produce json
// @Success 200 {object} dto.SuccessResponse
// @Failure 401 {object} dto.ErrorResponse
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	identity := CurrentIdentity(c)

	if err := h.sessions.Revoke(c.Request.Context(), identity.UserID); err != nil {
		h.logger.Error("failed to revoke session", zap.Error(err))
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error:   "Internal server error",
			Message: "Logout failed",
		})
		return
	}

	h.cookies.ClearSession(c)

	c.JSON(http.StatusOK, dto.SuccessResponse{
		Message: "Logged out successfully",
	})
}

// MigrateGuest explicitly migrates a guest conversation into the
// authenticated user's history. The implicit path runs on login and
// registration; this endpoint covers clients that authenticate on a
// different device or after the automatic attempt failed.
// @Summary Migrate a guest conversation
// @Tags auth
// @Accept json
// @Produce json
// @Success 200 {object} dto.MigrateResponse
// @Failure 401 {object} dto.ErrorResponse
// @Router /auth/migrate-guest-session [post]
func (h *AuthHandler) MigrateGuest(c *gin.Context) {
	identity := CurrentIdentity(c)

	// The body is optional; without one the guest cookie is used.
	var req dto.MigrateRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{
				Error:   "Validation failed",
				Message: err.Error(),
			})
			return
		}
	}

	guestID := req.GuestID
	if guestID == "" {
		guestID, _ = h.cookies.GuestID(c)
	}

	chatSession, err := h.migration.Migrate(c.Request.Context(), guestID, identity.UserID)
	if err != nil {
		h.logger.Error("guest migration failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error:   "Internal server error",
			Message: "Migration failed",
		})
		return
	}

	h.cookies.ClearGuest(c)

	resp := dto.MigrateResponse{}
	if chatSession != nil {
		resp.Migrated = true
		resp.ChatSessionID = chatSession.ID

		// The count lets the client show what was carried over. Failing
		// to read it back does not undo a committed migration.
		messages, err := h.chats.ListMessages(c.Request.Context(), chatSession.ID)
		if err != nil {
			h.logger.Warn("failed to load migrated transcript",
				zap.String("chat_session_id", chatSession.ID),
				zap.Error(err),
			)
		} else {
			resp.MigratedMessages = len(messages)
		}
	}

	c.JSON(http.StatusOK, resp)
}

// establishSession creates the single live session for the user, sets
// the cookie, and opportunistically migrates any guest conversation
// carried by the request. Migration failures are logged, never
// surfaced: sign-in must not fail because a guest transcript could not
// be moved.
func (h *AuthHandler) establishSession(c *gin.Context, user *domain.User) bool {
	token, err := h.sessions.Create(c.Request.Context(), user.ID)
	if err != nil {
		h.logger.Error("failed to create session", zap.Error(err))
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error:   "Internal server error",
			Message: "Failed to create session",
		})
		return false
	}

	h.cookies.SetSession(c, token)

	if guestID, ok := h.cookies.GuestID(c); ok {
		if _, err := h.migration.Migrate(c.Request.Context(), guestID, user.ID); err != nil {
			h.logger.Warn("guest migration on sign-in failed",
				zap.String("guest_id", guestID),
				zap.Error(err),
			)
		}
		h.cookies.ClearGuest(c)
	}

	return true
}

func userInfo(user *domain.User) dto.UserInfo {
	return dto.UserInfo{
		ID:    user.ID,
		Email: user.Email,
		Name:  user.DisplayName,
	}
}
