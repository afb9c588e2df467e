package services

import (
	"context"
	"errors"

	pkgerrors "github.com/pkg/errors"
	"github.com/yukikurage/taskflow-api/internal/audit"
	apierrors "github.com/yukikurage/taskflow-api/internal/errors"
	"github.com/yukikurage/taskflow-api/internal/models"
	"github.com/yukikurage/taskflow-api/internal/repository"
	"github.com/yukikurage/taskflow-api/internal/validation"
	"gorm.io/gorm"
)

// TaskService handles task business logic
type TaskService struct {
	db       *gorm.DB
	tasks    repository.TaskRepository
	users    repository.UserRepository
	recorder *audit.Recorder
}

// NewTaskService creates a new TaskService
func NewTaskService(db *gorm.DB, tasks repository.TaskRepository, users repository.UserRepository, recorder *audit.Recorder) *TaskService {
	return &TaskService{
		db:       db,
		tasks:    tasks,
		users:    users,
		recorder: recorder,
	}
}

// ListTasksInput represents filters for listing tasks
type ListTasksInput struct {
	Status   *models.TaskStatus
	UserID   *uint64
	Page     int
	PageSize int
}

// CreateTaskInput represents input for creating a task. A nil Status means pending.
type CreateTaskInput struct {
	Title       string
	Description *string
	Status      *models.TaskStatus
	UserID      *uint64
}

// UpdateTaskInput represents input for updating a task. Nil fields are left
// unchanged; the Clear flags null out the optional columns.
type UpdateTaskInput struct {
	Title            *string
	Description      *string
	ClearDescription bool
	Status           *models.TaskStatus
	UserID           *uint64
	ClearUserID      bool
}

// List returns tasks newest first
func (s *TaskService) List(ctx context.Context, input ListTasksInput) ([]models.Task, int64, error) {
	tasks, total, err := s.tasks.List(ctx, repository.TaskFilter{
		Status:   input.Status,
		UserID:   input.UserID,
		Page:     input.Page,
		PageSize: input.PageSize,
	})
	if err != nil {
		return nil, 0, pkgerrors.Wrap(err, "failed to list tasks")
	}
	return tasks, total, nil
}

// Get returns a task with its owner
func (s *TaskService) Get(ctx context.Context, id uint64) (*models.Task, error) {
	task, err := s.tasks.FindByID(ctx, id, "User")
	if err != nil {
		return nil, lookupError(err, "Task", id)
	}
	return task, nil
}

func (s *TaskService) Create(ctx context.Context, meta audit.Meta, input CreateTaskInput) (*models.Task, error) {
	task := &models.Task{
		Title:       input.Title,
		Description: input.Description,
		Status:      models.TaskStatusPending,
		UserID:      input.UserID,
	}
	if input.Status != nil {
		task.Status = *input.Status
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.validate(ctx, tx, task); err != nil {
			return err
		}

		if err := s.tasks.WithTx(tx).Create(ctx, task); err != nil {
			return pkgerrors.Wrap(err, "failed to create task")
		}

		s.recorder.Record(ctx, tx, meta, audit.Created(task))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

func (s *TaskService) Update(ctx context.Context, meta audit.Meta, id uint64, input UpdateTaskInput) (*models.Task, error) {
	return s.mutate(ctx, meta, id, func(task *models.Task) {
		if input.Title != nil {
			task.Title = *input.Title
		}
		if input.ClearDescription {
			task.Description = nil
		} else if input.Description != nil {
			task.Description = input.Description
		}
		if input.Status != nil {
			task.Status = *input.Status
		}
		if input.ClearUserID {
			task.UserID = nil
		} else if input.UserID != nil {
			task.UserID = input.UserID
		}
	})
}

// ToggleStatus flips pending and completed; in_progress moves to completed.
func (s *TaskService) ToggleStatus(ctx context.Context, meta audit.Meta, id uint64) (*models.Task, error) {
	return s.mutate(ctx, meta, id, func(task *models.Task) {
		task.Status = task.Status.Toggled()
	})
}

// Destroy hard-deletes a task and returns its final state
func (s *TaskService) Destroy(ctx context.Context, meta audit.Meta, id uint64) (*models.Task, error) {
	var task *models.Task
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tasks := s.tasks.WithTx(tx)

		var err error
		task, err = tasks.FindByID(ctx, id, "User")
		if err != nil {
			return lookupError(err, "Task", id)
		}

		if err := tasks.Delete(ctx, id); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apierrors.NotFound("Task", id)
			}
			return pkgerrors.Wrap(err, "failed to delete task")
		}

		s.recorder.Record(ctx, tx, meta, audit.Destroyed(task))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

func (s *TaskService) mutate(ctx context.Context, meta audit.Meta, id uint64, apply func(*models.Task)) (*models.Task, error) {
	var task *models.Task
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tasks := s.tasks.WithTx(tx)

		var err error
		task, err = tasks.FindByID(ctx, id)
		if err != nil {
			return lookupError(err, "Task", id)
		}
		before := task.AuditSnapshot()

		apply(task)
		if err := s.validate(ctx, tx, task); err != nil {
			return err
		}

		if err := tasks.Update(ctx, task); err != nil {
			return pkgerrors.Wrap(err, "failed to update task")
		}

		s.recorder.Record(ctx, tx, meta, audit.Updated(before, task))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// validate checks the field rules and that the owner exists. The owner is
// attached to task for rendering.
func (s *TaskService) validate(ctx context.Context, tx *gorm.DB, task *models.Task) error {
	violations := validation.ValidateTask(validation.TaskFields{
		Title:  task.Title,
		Status: task.Status,
	})

	task.User = nil
	if task.UserID != nil {
		owner, err := s.users.WithTx(tx).FindByID(ctx, *task.UserID)
		switch {
		case err == nil:
			task.User = owner
		case errors.Is(err, gorm.ErrRecordNotFound):
			violations = append(violations, validation.UserMustExist)
		default:
			return pkgerrors.Wrap(err, "failed to check task owner")
		}
	}

	if !violations.Valid() {
		return apierrors.Invalid(violations)
	}
	return nil
}
