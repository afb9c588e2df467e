package dto

import (
	"encoding/json"
	"time"

	"github.com/yukikurage/taskflow-api/internal/models"
)

// UserSummaryDTO represents a task owner embedded in task responses
type UserSummaryDTO struct {
	ID       uint64 `json:"id"`
	Username string `json:"username"`
}

// UserDTO represents a user in API responses. The password hash is never rendered.
type UserDTO struct {
	ID        uint64     `json:"id"`
	Username  string     `json:"username"`
	Email     string     `json:"email"`
	Active    bool       `json:"active"`
	DeletedAt *time.Time `json:"deleted_at"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// TaskDTO represents a task in API responses
type TaskDTO struct {
	ID          uint64            `json:"id"`
	Title       string            `json:"title"`
	Description *string           `json:"description"`
	Status      models.TaskStatus `json:"status"`
	UserID      *uint64           `json:"user_id"`
	User        *UserSummaryDTO   `json:"user,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// AuditLogDTO represents an audit row in API responses
type AuditLogDTO struct {
	ID        uint64             `json:"id"`
	Action    models.AuditAction `json:"action"`
	Resource  models.ResourceRef `json:"resource"`
	Changes   json.RawMessage    `json:"changes"`
	UserID    *uint64            `json:"user_id"`
	IPAddress string             `json:"ip_address"`
	UserAgent string             `json:"user_agent"`
	RequestID string             `json:"request_id"`
	CreatedAt time.Time          `json:"created_at"`
}

// Conversion functions

// ToUserDTO converts a User model to UserDTO
func ToUserDTO(user models.User) UserDTO {
	return UserDTO{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		Active:    user.Active(),
		DeletedAt: user.DeletedAt,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
}

func ToUserDTOs(users []models.User) []UserDTO {
	dtos := make([]UserDTO, len(users))
	for i, user := range users {
		dtos[i] = ToUserDTO(user)
	}
	return dtos
}

// ToTaskDTO converts a Task model to TaskDTO
func ToTaskDTO(task models.Task) TaskDTO {
	dto := TaskDTO{
		ID:          task.ID,
		Title:       task.Title,
		Description: task.Description,
		Status:      task.Status,
		UserID:      task.UserID,
		CreatedAt:   task.CreatedAt,
		UpdatedAt:   task.UpdatedAt,
	}
	if task.User != nil {
		dto.User = &UserSummaryDTO{ID: task.User.ID, Username: task.User.Username}
	}
	return dto
}

func ToTaskDTOs(tasks []models.Task) []TaskDTO {
	dtos := make([]TaskDTO, len(tasks))
	for i, task := range tasks {
		dtos[i] = ToTaskDTO(task)
	}
	return dtos
}

func ToAuditLogDTO(log models.AuditLog) AuditLogDTO {
	changes := json.RawMessage(log.Changes)
	if len(changes) == 0 {
		changes = json.RawMessage("{}")
	}
	return AuditLogDTO{
		ID:        log.ID,
		Action:    log.Action,
		Resource:  log.Resource(),
		Changes:   changes,
		UserID:    log.UserID,
		IPAddress: log.IPAddress,
		UserAgent: log.UserAgent,
		RequestID: log.RequestID,
		CreatedAt: log.CreatedAt,
	}
}

func ToAuditLogDTOs(logs []models.AuditLog) []AuditLogDTO {
	dtos := make([]AuditLogDTO, len(logs))
	for i, log := range logs {
		dtos[i] = ToAuditLogDTO(log)
	}
	return dtos
}
