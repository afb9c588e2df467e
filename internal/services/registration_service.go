package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/yukikurage/taskflow-api/internal/audit"
	apierrors "github.com/yukikurage/taskflow-api/internal/errors"
	"github.com/yukikurage/taskflow-api/internal/mail"
	"github.com/yukikurage/taskflow-api/internal/models"
	"github.com/yukikurage/taskflow-api/internal/telemetry"
	"gorm.io/gorm"
)

// RegistrationError wraps every registration failure. The wrapped error keeps
// its classification.
type RegistrationError struct {
	Err error
}

func (e *RegistrationError) Error() string {
	return "Registration failed: " + e.Err.Error()
}

func (e *RegistrationError) Unwrap() error {
	return e.Err
}

// RegistrationInput carries the sign-up parameters. A nil field was not sent.
type RegistrationInput struct {
	Email                *string
	Username             *string
	Password             *string
	PasswordConfirmation *string
}

// RegistrationService signs users up and queues their welcome mail.
type RegistrationService struct {
	db      *gorm.DB
	users   *UserService
	mailer  mail.Enqueuer
	tracker telemetry.Tracker
	logger  *slog.Logger
}

func NewRegistrationService(db *gorm.DB, users *UserService, mailer mail.Enqueuer, tracker telemetry.Tracker, logger *slog.Logger) *RegistrationService {
	return &RegistrationService{
		db:      db,
		users:   users,
		mailer:  mailer,
		tracker: tracker,
		logger:  logger,
	}
}

func (s *RegistrationService) Register(ctx context.Context, meta audit.Meta, input RegistrationInput) (*models.User, error) {
	user, err := s.register(ctx, meta, input)
	if err != nil {
		s.logger.ErrorContext(ctx, "user registration failed",
			"event", "user_registration_failed",
			"error", err.Error(),
			"params", input.loggable(),
		)
		return nil, &RegistrationError{Err: err}
	}

	s.tracker.TrackEvent(ctx, "user_registered", map[string]any{
		"user_id":   user.ID,
		"email":     user.Email,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
	s.logger.InfoContext(ctx, "user registered",
		"event", "user_registration_success",
		"user_id", user.ID,
		"email", user.Email,
	)
	return user, nil
}

func (s *RegistrationService) register(ctx context.Context, meta audit.Meta, input RegistrationInput) (*models.User, error) {
	if missing := input.missingFields(); len(missing) > 0 {
		return nil, apierrors.BadRequest("Missing required fields: %s", strings.Join(missing, ", "))
	}

	var user *models.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		user, err = s.users.CreateInTx(ctx, tx, meta, CreateUserInput{
			Username:             *input.Username,
			Email:                *input.Email,
			Password:             *input.Password,
			PasswordConfirmation: input.PasswordConfirmation,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	// The job is queued once the user row is committed so the worker can load it.
	if err := s.mailer.Enqueue(ctx, mail.KindWelcome, user.ID); err != nil {
		s.logger.ErrorContext(ctx, "failed to queue welcome email",
			"event", "welcome_email_enqueue_failed",
			"user_id", user.ID,
			"error", err.Error(),
		)
	}
	return user, nil
}

func (in RegistrationInput) missingFields() []string {
	var missing []string
	if in.Email == nil {
		missing = append(missing, "email")
	}
	if in.Username == nil {
		missing = append(missing, "username")
	}
	if in.Password == nil {
		missing = append(missing, "password")
	}
	return missing
}

// loggable returns the parameters without credentials.
func (in RegistrationInput) loggable() map[string]any {
	params := map[string]any{}
	if in.Email != nil {
		params["email"] = *in.Email
	}
	if in.Username != nil {
		params["username"] = *in.Username
	}
	return params
}

// PasswordResetService queues password reset mail for existing users.
type PasswordResetService struct {
	users  *UserService
	mailer mail.Enqueuer
	logger *slog.Logger
}

func NewPasswordResetService(users *UserService, mailer mail.Enqueuer, logger *slog.Logger) *PasswordResetService {
	return &PasswordResetService{users: users, mailer: mailer, logger: logger}
}

// Request queues a password_reset job for an active user.
func (s *PasswordResetService) Request(ctx context.Context, userID uint64) error {
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return err
	}
	if !user.Active() {
		return apierrors.NotFound("User", userID)
	}

	if err := s.mailer.Enqueue(ctx, mail.KindPasswordReset, user.ID); err != nil {
		return fmt.Errorf("failed to queue password reset: %w", err)
	}

	s.logger.InfoContext(ctx, "password reset requested",
		"event", "password_reset_requested",
		"user_id", user.ID,
	)
	return nil
}
