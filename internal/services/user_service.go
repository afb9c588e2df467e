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

// UserService handles user business logic
type UserService struct {
	db       *gorm.DB
	users    repository.UserRepository
	recorder *audit.Recorder
}

// NewUserService creates a new UserService
func NewUserService(db *gorm.DB, users repository.UserRepository, recorder *audit.Recorder) *UserService {
	return &UserService{
		db:       db,
		users:    users,
		recorder: recorder,
	}
}

// ListUsersInput represents filters for listing users
type ListUsersInput struct {
	Active   *bool
	Page     int
	PageSize int
}

// CreateUserInput represents input for creating a user
type CreateUserInput struct {
	Username             string
	Email                string
	Password             string
	PasswordConfirmation *string
}

// UpdateUserInput represents input for updating a user. Nil fields are left unchanged.
type UpdateUserInput struct {
	Username             *string
	Email                *string
	Password             *string
	PasswordConfirmation *string
}

func (s *UserService) List(ctx context.Context, input ListUsersInput) ([]models.User, int64, error) {
	users, total, err := s.users.List(ctx, repository.UserFilter{
		Active:   input.Active,
		Page:     input.Page,
		PageSize: input.PageSize,
	})
	if err != nil {
		return nil, 0, pkgerrors.Wrap(err, "failed to list users")
	}
	return users, total, nil
}

// Get returns a user by ID, soft-deleted users included
func (s *UserService) Get(ctx context.Context, id uint64) (*models.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "User", id)
	}
	return user, nil
}

func (s *UserService) Create(ctx context.Context, meta audit.Meta, input CreateUserInput) (*models.User, error) {
	var user *models.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		user, err = s.CreateInTx(ctx, tx, meta, input)
		return err
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// CreateInTx validates, inserts and audits a user inside tx.
func (s *UserService) CreateInTx(ctx context.Context, tx *gorm.DB, meta audit.Meta, input CreateUserInput) (*models.User, error) {
	users := s.users.WithTx(tx)

	password := input.Password
	violations := validation.ValidateUser(validation.UserFields{
		Username:             input.Username,
		Email:                input.Email,
		Password:             &password,
		PasswordConfirmation: input.PasswordConfirmation,
	}, validation.OnCreate)

	user := &models.User{
		Username: input.Username,
		Email:    validation.NormalizeEmail(input.Email),
	}

	taken, err := s.uniquenessViolations(ctx, users, user, 0)
	if err != nil {
		return nil, err
	}
	violations = append(violations, taken...)
	if !violations.Valid() {
		return nil, apierrors.Invalid(violations)
	}

	if user.PasswordHash, err = hashPassword(input.Password); err != nil {
		return nil, err
	}

	err = tx.Transaction(func(sp *gorm.DB) error {
		return users.WithTx(sp).Create(ctx, user)
	})
	if err != nil {
		if isDuplicateKey(err) {
			return nil, s.duplicateViolation(ctx, users, user, 0, err)
		}
		return nil, pkgerrors.Wrap(err, "failed to create user")
	}

	s.recorder.Record(ctx, tx, meta, audit.Created(user))
	return user, nil
}

func (s *UserService) Update(ctx context.Context, meta audit.Meta, id uint64, input UpdateUserInput) (*models.User, error) {
	var user *models.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		users := s.users.WithTx(tx)

		var err error
		user, err = users.FindByID(ctx, id)
		if err != nil {
			return lookupError(err, "User", id)
		}
		before := user.AuditSnapshot()

		if input.Username != nil {
			user.Username = *input.Username
		}
		if input.Email != nil {
			user.Email = validation.NormalizeEmail(*input.Email)
		}

		violations := validation.ValidateUser(validation.UserFields{
			Username:             user.Username,
			Email:                user.Email,
			Password:             input.Password,
			PasswordConfirmation: input.PasswordConfirmation,
		}, validation.OnUpdate)

		taken, err := s.uniquenessViolations(ctx, users, user, user.ID)
		if err != nil {
			return err
		}
		violations = append(violations, taken...)
		if !violations.Valid() {
			return apierrors.Invalid(violations)
		}

		if input.Password != nil {
			if user.PasswordHash, err = hashPassword(*input.Password); err != nil {
				return err
			}
		}

		err = tx.Transaction(func(sp *gorm.DB) error {
			return users.WithTx(sp).Update(ctx, user)
		})
		if err != nil {
			if isDuplicateKey(err) {
				return s.duplicateViolation(ctx, users, user, user.ID, err)
			}
			return pkgerrors.Wrap(err, "failed to update user")
		}

		s.recorder.Record(ctx, tx, meta, audit.Updated(before, user))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Destroy soft-deletes a user. Destroying an already deleted user returns it
// unchanged and records nothing.
func (s *UserService) Destroy(ctx context.Context, meta audit.Meta, id uint64) (*models.User, error) {
	var user *models.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		users := s.users.WithTx(tx)

		var err error
		user, err = users.FindByID(ctx, id)
		if err != nil {
			return lookupError(err, "User", id)
		}
		if !user.Active() {
			return nil
		}

		if err := users.SoftDelete(ctx, user); err != nil {
			return pkgerrors.Wrap(err, "failed to delete user")
		}

		s.recorder.Record(ctx, tx, meta, audit.Destroyed(user))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserService) uniquenessViolations(ctx context.Context, users repository.UserRepository, user *models.User, selfID uint64) (validation.Violations, error) {
	var v validation.Violations

	if user.Username != "" {
		existing, err := users.FindByUsername(ctx, user.Username)
		switch {
		case err == nil && existing.ID != selfID:
			v = append(v, validation.UsernameTaken)
		case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
			return nil, pkgerrors.Wrap(err, "failed to check username")
		}
	}

	if user.Email != "" {
		existing, err := users.FindByEmail(ctx, user.Email)
		switch {
		case err == nil && existing.ID != selfID:
			v = append(v, validation.EmailTaken)
		case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
			return nil, pkgerrors.Wrap(err, "failed to check email")
		}
	}

	return v, nil
}

// duplicateViolation names the column behind a unique index violation that
// slipped past uniquenessViolations, as happens when two requests race.
func (s *UserService) duplicateViolation(ctx context.Context, users repository.UserRepository, user *models.User, selfID uint64, cause error) error {
	conflicts, err := users.Conflicts(ctx, user.Username, user.Email, selfID)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to check user conflicts")
	}

	var v validation.Violations
	if conflicts.Username {
		v = append(v, validation.UsernameTaken)
	}
	if conflicts.Email {
		v = append(v, validation.EmailTaken)
	}
	if v.Valid() {
		return pkgerrors.Wrap(cause, "failed to save user")
	}
	return apierrors.Invalid(v)
}
