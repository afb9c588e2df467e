package database

import (
	"gorm.io/gorm"

	"github.com/yukikurage/taskflow-api/internal/utils"
)

// Paginate applies pagination to a GORM query when the request asked for it.
func Paginate(params utils.PaginationParams) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if !params.Enabled {
			return db
		}
		return db.Offset(params.Offset).Limit(params.Limit)
	}
}

// NewestFirst orders rows of table by creation time, id breaking ties.
func NewestFirst(table string) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Order(table + ".created_at DESC").Order(table + ".id DESC")
	}
}
