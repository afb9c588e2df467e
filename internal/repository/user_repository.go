package repository

import (
	"context"
	"strings"
	"time"

	"github.com/yukikurage/taskflow-api/internal/database"
	"github.com/yukikurage/taskflow-api/internal/models"
	"gorm.io/gorm"
)

// GormUserRepository is a GORM implementation of UserRepository
type GormUserRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db *gorm.DB) UserRepository {
	return &GormUserRepository{db: db}
}

func (r *GormUserRepository) WithTx(tx *gorm.DB) UserRepository {
	return &GormUserRepository{db: tx}
}

// Create creates a new user
func (r *GormUserRepository) Create(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

// FindByID finds a user by ID
func (r *GormUserRepository) FindByID(ctx context.Context, id uint64) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByUsername finds a user by username
func (r *GormUserRepository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByEmail finds a user by email. Emails are stored lower-cased.
func (r *GormUserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).
		Where("LOWER(email) = ?", strings.ToLower(email)).
		First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *GormUserRepository) FindByLogin(ctx context.Context, login string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).
		Where("username = ? OR LOWER(email) = ?", login, strings.ToLower(login)).
		Order("id ASC").
		First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *GormUserRepository) List(ctx context.Context, filter UserFilter) ([]models.User, int64, error) {
	var users []models.User

	query := r.db.WithContext(ctx).Model(&models.User{})
	if filter.Active != nil {
		if *filter.Active {
			query = query.Where("users.deleted_at IS NULL")
		} else {
			query = query.Where("users.deleted_at IS NOT NULL")
		}
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	listQuery := query.Scopes(database.NewestFirst("users"), paginate(filter.Page, filter.PageSize))
	if err := listQuery.Find(&users).Error; err != nil {
		return nil, 0, err
	}

	return users, total, nil
}

// Update updates a user
func (r *GormUserRepository) Update(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Save(user).Error
}

func (r *GormUserRepository) SoftDelete(ctx context.Context, user *models.User) error {
	now := time.Now()
	if err := r.db.WithContext(ctx).Model(user).Update("deleted_at", now).Error; err != nil {
		return err
	}
	user.DeletedAt = &now
	return nil
}

// Conflicts counts other rows holding username or email. Soft-deleted rows
// still hold their values.
func (r *GormUserRepository) Conflicts(ctx context.Context, username, email string, excludeID uint64) (UserConflicts, error) {
	var conflicts UserConflicts

	var count int64
	err := r.db.WithContext(ctx).Model(&models.User{}).
		Where("username = ? AND id <> ?", username, excludeID).
		Count(&count).Error
	if err != nil {
		return conflicts, err
	}
	conflicts.Username = count > 0

	err = r.db.WithContext(ctx).Model(&models.User{}).
		Where("LOWER(email) = ? AND id <> ?", strings.ToLower(email), excludeID).
		Count(&count).Error
	if err != nil {
		return conflicts, err
	}
	conflicts.Email = count > 0

	return conflicts, nil
}

func (r *GormUserRepository) Count(ctx context.Context, activeOnly bool) (int64, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&models.User{})
	if activeOnly {
		query = query.Where("deleted_at IS NULL")
	}
	err := query.Count(&count).Error
	return count, err
}
