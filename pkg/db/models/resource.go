package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/techloans-backend/pkg/enums"
)

// Resource is a lendable item of equipment. DeletedAt marks a soft delete.
type Resource struct {
	ID          uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	Code        string              `gorm:"column:code;not null;index"`
	Name        string              `gorm:"column:name;not null"`
	Category    *string             `gorm:"column:category"`
	Description *string             `gorm:"column:description"`
	Location    *string             `gorm:"column:location"`
	ImageURL    *string             `gorm:"column:image_url"`
	State       enums.ResourceState `gorm:"column:state;not null"`
	DeletedAt   *time.Time          `gorm:"column:deleted_at"`
	CreatedAt   time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (r *Resource) BeforeCreate(*gorm.DB) error {
	ensureID(&r.ID)
	return nil
}

// IsDeleted reports whether the resource has been soft deleted.
func (r Resource) IsDeleted() bool {
	return r.DeletedAt != nil
}
