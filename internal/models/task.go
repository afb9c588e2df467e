package models

import (
	"time"
)

type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
)

// TaskStatuses lists every valid status in display order.
var TaskStatuses = []TaskStatus{TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted}

func (s TaskStatus) Valid() bool {
	for _, status := range TaskStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// Toggled returns the status after a toggle: completed goes back to pending,
// anything else is completed.
func (s TaskStatus) Toggled() TaskStatus {
	if s == TaskStatusCompleted {
		return TaskStatusPending
	}
	return TaskStatusCompleted
}

type Task struct {
	ID          uint64     `gorm:"primarykey" json:"id"`
	Title       string     `gorm:"type:varchar(255);not null" json:"title"`
	Description *string    `gorm:"type:text" json:"description"`
	Status      TaskStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	UserID      *uint64    `gorm:"index" json:"user_id"`
	CreatedAt   time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	// Relations
	User *User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"user,omitempty"`
}

func (t *Task) AuditRef() ResourceRef {
	return TaskRef(t.ID)
}

func (t *Task) AuditSnapshot() map[string]any {
	var description any
	if t.Description != nil {
		description = *t.Description
	}
	var userID any
	if t.UserID != nil {
		userID = *t.UserID
	}
	return map[string]any{
		"id":          t.ID,
		"title":       t.Title,
		"description": description,
		"status":      string(t.Status),
		"user_id":     userID,
	}
}
