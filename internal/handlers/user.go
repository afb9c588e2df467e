package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/taskflow-api/internal/dto"
	apierrors "github.com/yukikurage/taskflow-api/internal/errors"
	"github.com/yukikurage/taskflow-api/internal/middleware"
	"github.com/yukikurage/taskflow-api/internal/response"
	"github.com/yukikurage/taskflow-api/internal/services"
	"github.com/yukikurage/taskflow-api/internal/utils"
)

// UserHandler serves the user resource and password reset requests.
type UserHandler struct {
	userService  *services.UserService
	resetService *services.PasswordResetService
}

func NewUserHandler(userService *services.UserService, resetService *services.PasswordResetService) *UserHandler {
	return &UserHandler{
		userService:  userService,
		resetService: resetService,
	}
}

// ListUsers returns users newest first, optionally filtered by active=true|false
//
// @Summary  List users
// @Tags     Users
// @Produce  json
// @Param    active  query  bool  false  "only active (true) or deleted (false) users"
// @Param    page    query  int   false  "page number"
// @Param    limit   query  int   false  "page size"
// @Success  200  {object}  response.SuccessBody
// @Router   /api/v1/users [get]
func (h *UserHandler) ListUsers(c *gin.Context) {
	var active *bool
	if value := c.Query("active"); value != "" {
		b, err := strconv.ParseBool(value)
		if err != nil {
			_ = c.Error(apierrors.BadRequest("Invalid active: %s", value))
			return
		}
		active = &b
	}

	params := utils.GetPaginationParams(c)
	p, size := page(params)

	users, total, err := h.userService.List(c.Request.Context(), services.ListUsersInput{
		Active:   active,
		Page:     p,
		PageSize: size,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	response.OK(c, dto.ToUserDTOs(users), response.WithPagination(params.Response(total)))
}

// GetUser returns a user by ID, deleted users included
//
// @Summary  Get a user
// @Tags     Users
// @Produce  json
// @Param    id  path  int  true  "user id"
// @Success  200  {object}  response.SuccessBody
// @Failure  404  {object}  response.ErrorBody
// @Router   /api/v1/users/{id} [get]
func (h *UserHandler) GetUser(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		_ = c.Error(err)
		return
	}

	user, err := h.userService.Get(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}

	response.OK(c, dto.ToUserDTO(*user))
}

// CreateUser creates a user
//
// @Summary  Create a user
// @Tags     Users
// @Accept   json
// @Produce  json
// @Param    body  body  object  true  "{\"user\": {\"username\": \"...\", \"email\": \"...\", \"password\": \"...\"}}"
// @Success  201  {object}  response.SuccessBody
// @Failure  400  {object}  response.ErrorBody
// @Failure  422  {object}  response.ErrorBody
// @Router   /api/v1/users [post]
func (h *UserHandler) CreateUser(c *gin.Context) {
	body, err := requireParam(c, "user")
	if err != nil {
		_ = c.Error(err)
		return
	}

	var input services.CreateUserInput
	for key, dst := range map[string]any{
		"username":              &input.Username,
		"email":                 &input.Email,
		"password":              &input.Password,
		"password_confirmation": &input.PasswordConfirmation,
	} {
		if err := body.decode(key, dst); err != nil {
			_ = c.Error(err)
			return
		}
	}

	user, err := h.userService.Create(c.Request.Context(), middleware.AuditMeta(c), input)
	if err != nil {
		_ = c.Error(err)
		return
	}

	response.Created(c, dto.ToUserDTO(*user))
}

// UpdateUser applies a partial update
//
// @Summary  Update a user
// @Tags     Users
// @Accept   json
// @Produce  json
// @Param    id    path  int     true  "user id"
// @Param    body  body  object  true  "{\"user\": {...}}"
// @Success  200  {object}  response.SuccessBody
// @Failure  404  {object}  response.ErrorBody
// @Failure  422  {object}  response.ErrorBody
// @Router   /api/v1/users/{id} [patch]
func (h *UserHandler) UpdateUser(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		_ = c.Error(err)
		return
	}

	body, err := requireParam(c, "user")
	if err != nil {
		_ = c.Error(err)
		return
	}

	var input services.UpdateUserInput
	for key, dst := range map[string]any{
		"username":              &input.Username,
		"email":                 &input.Email,
		"password":              &input.Password,
		"password_confirmation": &input.PasswordConfirmation,
	} {
		if err := body.decode(key, dst); err != nil {
			_ = c.Error(err)
			return
		}
	}

	user, err := h.userService.Update(c.Request.Context(), middleware.AuditMeta(c), id, input)
	if err != nil {
		_ = c.Error(err)
		return
	}

	response.OK(c, dto.ToUserDTO(*user))
}

// DeleteUser soft-deletes a user and returns it
//
// @Summary  Delete a user
// @Tags     Users
// @Produce  json
// @Param    id  path  int  true  "user id"
// @Success  200  {object}  response.SuccessBody
// @Router   /api/v1/users/{id} [delete]
func (h *UserHandler) DeleteUser(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		_ = c.Error(err)
		return
	}

	user, err := h.userService.Destroy(c.Request.Context(), middleware.AuditMeta(c), id)
	if err != nil {
		_ = c.Error(err)
		return
	}

	response.OK(c, dto.ToUserDTO(*user))
}

// RequestPasswordReset queues a password reset email
//
// @Summary  Request a password reset
// @Tags     Users
// @Produce  json
// @Param    id  path  int  true  "user id"
// @Success  202  {object}  response.SuccessBody
// @Failure  404  {object}  response.ErrorBody
// @Router   /api/v1/users/{id}/password_reset [post]
func (h *UserHandler) RequestPasswordReset(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		_ = c.Error(err)
		return
	}

	if err := h.resetService.Request(c.Request.Context(), id); err != nil {
		_ = c.Error(err)
		return
	}

	response.Accepted(c, gin.H{"user_id": id}, response.WithMessage("Password reset instructions will be sent"))
}
