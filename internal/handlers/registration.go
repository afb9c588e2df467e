package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/yukikurage/taskflow-api/internal/dto"
	"github.com/yukikurage/taskflow-api/internal/middleware"
	"github.com/yukikurage/taskflow-api/internal/response"
	"github.com/yukikurage/taskflow-api/internal/services"
)

type RegistrationHandler struct {
	registrationService *services.RegistrationService
}

func NewRegistrationHandler(registrationService *services.RegistrationService) *RegistrationHandler {
	return &RegistrationHandler{
		registrationService: registrationService,
	}
}

// Register signs up a new user and queues the welcome email.
// Fields are read from the "user" object, or from the top level when it is absent.
//
// @Summary  Register
// @Tags     Auth
// @Accept   json
// @Produce  json
// @Param    body  body  object  true  "{\"user\": {\"email\": \"...\", \"username\": \"...\", \"password\": \"...\"}}"
// @Success  201  {object}  response.SuccessBody
// @Failure  400  {object}  response.ErrorBody
// @Failure  422  {object}  response.ErrorBody
// @Router   /api/v1/registrations [post]
func (h *RegistrationHandler) Register(c *gin.Context) {
	body, err := readBody(c)
	if err != nil {
		_ = c.Error(err)
		return
	}

	params := body
	if body.has("user") && !body.isNull("user") {
		var nested fields
		if err := body.decode("user", &nested); err != nil {
			_ = c.Error(err)
			return
		}
		params = nested
	}

	var input services.RegistrationInput
	for key, dst := range map[string]any{
		"email":                 &input.Email,
		"username":              &input.Username,
		"password":              &input.Password,
		"password_confirmation": &input.PasswordConfirmation,
	} {
		if err := params.decode(key, dst); err != nil {
			_ = c.Error(err)
			return
		}
	}

	user, err := h.registrationService.Register(c.Request.Context(), middleware.AuditMeta(c), input)
	if err != nil {
		_ = c.Error(err)
		return
	}

	response.Created(c, dto.ToUserDTO(*user))
}
