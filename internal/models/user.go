package models

import (
	"time"
)

// User is soft-deleted: DeletedAt is a plain column so deleted rows stay
// visible to lookups by primary key.
type User struct {
	ID           uint64     `gorm:"primarykey" json:"id"`
	Username     string     `gorm:"type:varchar(50);uniqueIndex;not null" json:"username"`
	Email        string     `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	PasswordHash string     `gorm:"type:varchar(255);not null" json:"-"`
	DeletedAt    *time.Time `gorm:"index" json:"deleted_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Active reports whether the user has not been soft-deleted.
func (u *User) Active() bool {
	return u.DeletedAt == nil
}

func (u *User) AuditRef() ResourceRef {
	return UserRef(u.ID)
}

func (u *User) AuditSnapshot() map[string]any {
	return map[string]any{
		"id":            u.ID,
		"username":      u.Username,
		"email":         u.Email,
		"password_hash": u.PasswordHash,
		"deleted_at":    snapshotTime(u.DeletedAt),
	}
}
