package repository

import (
	"context"

	"github.com/yukikurage/taskflow-api/internal/database"
	"github.com/yukikurage/taskflow-api/internal/models"
	"github.com/yukikurage/taskflow-api/internal/utils"
	"gorm.io/gorm"
)

// Lookups return gorm.ErrRecordNotFound when nothing matches.

// UserRepository defines the interface for user data access
type UserRepository interface {
	// WithTx returns a repository bound to tx
	WithTx(tx *gorm.DB) UserRepository

	// Create creates a new user
	Create(ctx context.Context, user *models.User) error

	// FindByID finds a user by ID, including soft-deleted users
	FindByID(ctx context.Context, id uint64) (*models.User, error)

	// FindByUsername finds a user by exact username
	FindByUsername(ctx context.Context, username string) (*models.User, error)

	// FindByEmail finds a user by email, ignoring case
	FindByEmail(ctx context.Context, email string) (*models.User, error)

	// FindByLogin finds a user whose username or email matches login
	FindByLogin(ctx context.Context, login string) (*models.User, error)

	// List retrieves users newest first
	List(ctx context.Context, filter UserFilter) ([]models.User, int64, error)

	// Update saves every column of user
	Update(ctx context.Context, user *models.User) error

	// SoftDelete sets the deletion marker and keeps the row
	SoftDelete(ctx context.Context, user *models.User) error

	// Conflicts reports which unique columns already hold username or email
	// on a row other than excludeID
	Conflicts(ctx context.Context, username, email string, excludeID uint64) (UserConflicts, error)

	// Count counts users, active ones only when activeOnly is set
	Count(ctx context.Context, activeOnly bool) (int64, error)
}

// UserFilter holds filtering options for listing users
type UserFilter struct {
	Active   *bool
	Page     int
	PageSize int
}

// UserConflicts flags the unique user columns that are already taken
type UserConflicts struct {
	Username bool
	Email    bool
}

// TaskRepository defines the interface for task data access
type TaskRepository interface {
	WithTx(tx *gorm.DB) TaskRepository

	// Create creates a new task
	Create(ctx context.Context, task *models.Task) error

	// FindByID finds a task by ID with optional preloading
	FindByID(ctx context.Context, id uint64, preload ...string) (*models.Task, error)

	// List retrieves tasks with filtering and pagination
	List(ctx context.Context, filter TaskFilter) ([]models.Task, int64, error)

	// Update updates a task
	Update(ctx context.Context, task *models.Task) error

	// Delete removes the task row
	Delete(ctx context.Context, id uint64) error

	// CountByStatus counts tasks grouped by status
	CountByStatus(ctx context.Context) (map[models.TaskStatus]int64, error)
}

// TaskFilter holds filtering options for listing tasks
type TaskFilter struct {
	Status   *models.TaskStatus
	UserID   *uint64
	Page     int
	PageSize int
}

// AuditLogRepository is append-only: there is no update or delete.
type AuditLogRepository interface {
	WithTx(tx *gorm.DB) AuditLogRepository

	// Create appends one audit row
	Create(ctx context.Context, log *models.AuditLog) error

	// List retrieves audit rows newest first
	List(ctx context.Context, filter AuditLogFilter) ([]models.AuditLog, int64, error)
}

// AuditLogFilter holds filtering options for listing audit rows
type AuditLogFilter struct {
	ResourceType *models.ResourceKind
	ResourceID   *uint64
	UserID       *uint64
	Page         int
	PageSize     int
}

// paginate limits a list to one page; a zero page or size returns every row.
func paginate(page, pageSize int) func(*gorm.DB) *gorm.DB {
	return database.Paginate(utils.NewPaginationParams(page, pageSize, page > 0 && pageSize > 0))
}
