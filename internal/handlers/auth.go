package handlers

import (
	"errors"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	pkgerrors "github.com/pkg/errors"
	"github.com/yukikurage/taskflow-api/internal/constants"
	"github.com/yukikurage/taskflow-api/internal/dto"
	apierrors "github.com/yukikurage/taskflow-api/internal/errors"
	"github.com/yukikurage/taskflow-api/internal/middleware"
	"github.com/yukikurage/taskflow-api/internal/response"
	"github.com/yukikurage/taskflow-api/internal/services"
)

// AuthHandler coordinates authentication-related HTTP handlers.
type AuthHandler struct {
	authService *services.AuthService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
	}
}

// Login authenticates a user, initializes the session and issues a bearer token.
//
// @Summary  Log in
// @Tags     Auth
// @Accept   json
// @Produce  json
// @Param    body  body  object  true  "{\"login\": \"username or email\", \"password\": \"...\"}"
// @Success  200  {object}  response.SuccessBody
// @Failure  401  {object}  response.ErrorBody
// @Router   /api/v1/auth [post]
func (h *AuthHandler) Login(c *gin.Context) {
	type LoginRequest struct {
		Login    string `json:"login"`
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password" binding:"required"`
	}

	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apierrors.BadRequest("Invalid request body"))
		return
	}

	login := req.Login
	if login == "" {
		login = req.Username
	}
	if login == "" {
		login = req.Email
	}

	user, err := h.authService.Authenticate(c.Request.Context(), login, req.Password)
	if err != nil {
		respondAuthError(c, err)
		return
	}

	token, expiresAt, err := h.authService.IssueToken(user)
	if err != nil {
		_ = c.Error(pkgerrors.WithStack(err))
		return
	}

	session := sessions.Default(c)
	session.Set(constants.ContextKeyUserID, user.ID)
	if err := session.Save(); err != nil {
		_ = c.Error(pkgerrors.Wrap(err, "failed to save session"))
		return
	}

	response.OK(c, gin.H{
		"token":      token,
		"token_type": "Bearer",
		"expires_at": expiresAt.UTC(),
		"user":       dto.ToUserDTO(*user),
	})
}

// Logout removes the authentication session.
//
// @Summary  Log out
// @Tags     Auth
// @Produce  json
// @Success  200  {object}  response.SuccessBody
// @Router   /api/v1/auth [delete]
func (h *AuthHandler) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	session.Options(sessions.Options{Path: "/", MaxAge: -1})
	if err := session.Save(); err != nil {
		_ = c.Error(pkgerrors.Wrap(err, "failed to logout"))
		return
	}

	response.OK(c, nil, response.WithMessage("Logged out successfully"))
}

// GetCurrentUser returns the authenticated user.
//
// @Summary   Current user
// @Tags      Auth
// @Produce   json
// @Security  BearerAuth
// @Success   200  {object}  response.SuccessBody
// @Failure   401  {object}  response.ErrorBody
// @Router    /api/v1/auth/me [get]
func (h *AuthHandler) GetCurrentUser(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		_ = c.Error(apierrors.Unauthorized(""))
		return
	}

	user, err := h.authService.GetUser(c.Request.Context(), userID)
	if err != nil {
		respondAuthError(c, err)
		return
	}

	response.OK(c, dto.ToUserDTO(*user))
}

func respondAuthError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidCredentials):
		_ = c.Error(apierrors.Unauthorized("Invalid username or password"))
	case errors.Is(err, services.ErrUserNotFound):
		_ = c.Error(apierrors.Unauthorized(""))
	default:
		_ = c.Error(pkgerrors.WithStack(err))
	}
}
