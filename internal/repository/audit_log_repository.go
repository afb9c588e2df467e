package repository

import (
	"context"

	"github.com/yukikurage/taskflow-api/internal/database"
	"github.com/yukikurage/taskflow-api/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormAuditLogRepository is a GORM implementation of AuditLogRepository
type GormAuditLogRepository struct {
	db *gorm.DB
}

func NewAuditLogRepository(db *gorm.DB) AuditLogRepository {
	return &GormAuditLogRepository{db: db}
}

func (r *GormAuditLogRepository) WithTx(tx *gorm.DB) AuditLogRepository {
	return &GormAuditLogRepository{db: tx}
}

func (r *GormAuditLogRepository) Create(ctx context.Context, log *models.AuditLog) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(log).Error
}

func (r *GormAuditLogRepository) List(ctx context.Context, filter AuditLogFilter) ([]models.AuditLog, int64, error) {
	var logs []models.AuditLog

	query := r.db.WithContext(ctx).Model(&models.AuditLog{})
	if filter.ResourceType != nil {
		query = query.Where("audit_logs.resource_type = ?", *filter.ResourceType)
	}
	if filter.ResourceID != nil {
		query = query.Where("audit_logs.resource_id = ?", *filter.ResourceID)
	}
	if filter.UserID != nil {
		query = query.Where("audit_logs.user_id = ?", *filter.UserID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	listQuery := query.Scopes(database.NewestFirst("audit_logs"), paginate(filter.Page, filter.PageSize))
	if err := listQuery.Find(&logs).Error; err != nil {
		return nil, 0, err
	}

	return logs, total, nil
}
