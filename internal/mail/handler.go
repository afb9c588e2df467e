package mail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/yukikurage/taskflow-api/internal/queue"
	"github.com/yukikurage/taskflow-api/internal/repository"
	"github.com/yukikurage/taskflow-api/internal/worker"
	"gorm.io/gorm"
)

// Handler runs mail jobs for the worker pool.
type Handler struct {
	users  repository.UserRepository
	sender Sender
	logger *slog.Logger
}

func NewHandler(users repository.UserRepository, sender Sender, logger *slog.Logger) *Handler {
	return &Handler{users: users, sender: sender, logger: logger}
}

// Register binds every mail kind on pool.
func (h *Handler) Register(pool *worker.Pool) {
	pool.Handle(KindWelcome, h.Handle)
	pool.Handle(KindPasswordReset, h.Handle)
}

func (h *Handler) Handle(ctx context.Context, job *queue.Job) error {
	user, err := h.users.FindByID(ctx, job.EntityID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return worker.Permanent(fmt.Errorf("user %d not found", job.EntityID))
		}
		return h.failed(ctx, job, fmt.Errorf("failed to load user: %w", err))
	}

	msg, err := Compose(job.Kind, user)
	if err != nil {
		return worker.Permanent(h.failed(ctx, job, err))
	}

	if err := h.sender.Send(ctx, msg); err != nil {
		return h.failed(ctx, job, fmt.Errorf("failed to send mail: %w", err))
	}

	h.logger.InfoContext(ctx, "email sent",
		"event", "email_sent",
		"email_type", job.Kind,
		"user_id", user.ID,
		"email", user.Email,
		"job_id", job.ID,
	)
	return nil
}

func (h *Handler) failed(ctx context.Context, job *queue.Job, err error) error {
	h.logger.ErrorContext(ctx, "email failed",
		"event", "email_failed",
		"email_type", job.Kind,
		"user_id", job.EntityID,
		"job_id", job.ID,
		"attempt", job.Attempts+1,
		"error", err.Error(),
	)
	return err
}
