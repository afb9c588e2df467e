package services

import (
	"context"

	pkgerrors "github.com/pkg/errors"
	"github.com/yukikurage/taskflow-api/internal/models"
	"github.com/yukikurage/taskflow-api/internal/repository"
)

// AuditLogService exposes the audit trail read-only
type AuditLogService struct {
	logs repository.AuditLogRepository
}

func NewAuditLogService(logs repository.AuditLogRepository) *AuditLogService {
	return &AuditLogService{logs: logs}
}

type ListAuditLogsInput struct {
	ResourceType *models.ResourceKind
	ResourceID   *uint64
	UserID       *uint64
	Page         int
	PageSize     int
}

func (s *AuditLogService) List(ctx context.Context, input ListAuditLogsInput) ([]models.AuditLog, int64, error) {
	logs, total, err := s.logs.List(ctx, repository.AuditLogFilter{
		ResourceType: input.ResourceType,
		ResourceID:   input.ResourceID,
		UserID:       input.UserID,
		Page:         input.Page,
		PageSize:     input.PageSize,
	})
	if err != nil {
		return nil, 0, pkgerrors.Wrap(err, "failed to list audit logs")
	}
	return logs, total, nil
}
