package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yukikurage/taskflow-api/internal/constants"
	"github.com/yukikurage/taskflow-api/internal/dto"
	"github.com/yukikurage/taskflow-api/internal/mail"
	"github.com/yukikurage/taskflow-api/internal/models"
)

func TestRegistrationHandler_Register(t *testing.T) {
	tests := []struct {
		name    string
		payload map[string]any
	}{
		{"wrapped", map[string]any{"user": map[string]any{
			"email": "new@example.com", "username": "newbie", "password": "supersecret",
		}}},
		{"top level", map[string]any{
			"email": "new@example.com", "username": "newbie", "password": "supersecret",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupHandlerTestEnv(t)

			w, body := perform(t, env.router, http.MethodPost, "/api/v1/registrations", tt.payload)

			require.Equal(t, http.StatusCreated, w.Code)
			var user dto.UserDTO
			decodeData(t, body, &user)
			assert.Equal(t, "newbie", user.Username)

			jobs := env.queue.Jobs(constants.MailQueue)
			require.Len(t, jobs, 1)
			assert.Equal(t, mail.KindWelcome, jobs[0].Kind)
			assert.Equal(t, user.ID, jobs[0].EntityID)
		})
	}
}

func TestRegistrationHandler_MissingFields(t *testing.T) {
	env := setupHandlerTestEnv(t)

	w, body := perform(t, env.router, http.MethodPost, "/api/v1/registrations", map[string]any{
		"user": map[string]any{"username": "newbie"},
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Registration failed: Missing required fields: email, password", body.Error)
	assert.Empty(t, env.queue.Jobs(constants.MailQueue))

	var count int64
	env.db.Model(&models.User{}).Count(&count)
	assert.Zero(t, count)
}

func TestRegistrationHandler_Invalid(t *testing.T) {
	env := setupHandlerTestEnv(t)

	w, body := perform(t, env.router, http.MethodPost, "/api/v1/registrations", map[string]any{
		"email": "bad", "username": "newbie", "password": "supersecret",
	})

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "Validation failed", body.Error)
	assert.Equal(t, []any{"Email is invalid"}, body.Errors)
	assert.Empty(t, env.queue.Jobs(constants.MailQueue))
}
