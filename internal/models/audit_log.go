package models

import (
	"fmt"
	"time"

	"gorm.io/datatypes"
)

type AuditAction string

const (
	AuditActionCreated   AuditAction = "created"
	AuditActionUpdated   AuditAction = "updated"
	AuditActionDestroyed AuditAction = "destroyed"
)

// ResourceKind discriminates the entity an audit row points at.
type ResourceKind string

const (
	ResourceUser ResourceKind = "User"
	ResourceTask ResourceKind = "Task"
)

// ParseResourceKind accepts the discriminator as stored ("User") or lower-cased.
func ParseResourceKind(s string) (ResourceKind, error) {
	switch s {
	case string(ResourceUser), "user":
		return ResourceUser, nil
	case string(ResourceTask), "task":
		return ResourceTask, nil
	default:
		return "", fmt.Errorf("unknown resource type %q", s)
	}
}

// ResourceRef is a reference to one auditable entity.
type ResourceRef struct {
	Kind ResourceKind `json:"type"`
	ID   uint64       `json:"id"`
}

func UserRef(id uint64) ResourceRef { return ResourceRef{Kind: ResourceUser, ID: id} }
func TaskRef(id uint64) ResourceRef { return ResourceRef{Kind: ResourceTask, ID: id} }

func (r ResourceRef) String() string {
	return fmt.Sprintf("%s#%d", r.Kind, r.ID)
}

// Auditable is implemented by every entity that participates in audit recording.
type Auditable interface {
	AuditRef() ResourceRef
	AuditSnapshot() map[string]any
}

// AuditLog rows are append-only.
type AuditLog struct {
	ID           uint64         `gorm:"primarykey" json:"id"`
	Action       AuditAction    `gorm:"type:varchar(20);not null" json:"action"`
	ResourceType ResourceKind   `gorm:"type:varchar(50);not null;index:idx_audit_logs_resource,priority:1" json:"resource_type"`
	ResourceID   uint64         `gorm:"not null;index:idx_audit_logs_resource,priority:2" json:"resource_id"`
	Changes      datatypes.JSON `json:"changes"`
	UserID       *uint64        `gorm:"index" json:"user_id"`
	IPAddress    string         `gorm:"type:varchar(64)" json:"ip_address"`
	UserAgent    string         `gorm:"type:varchar(512)" json:"user_agent"`
	RequestID    string         `gorm:"type:varchar(64)" json:"request_id"`
	CreatedAt    time.Time      `gorm:"index" json:"created_at"`

	// Relations
	User *User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

func (l *AuditLog) Resource() ResourceRef {
	return ResourceRef{Kind: l.ResourceType, ID: l.ResourceID}
}

func (l *AuditLog) SetResource(ref ResourceRef) {
	l.ResourceType = ref.Kind
	l.ResourceID = ref.ID
}

func snapshotTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}
