package models

import "time"

// SystemConfiguration is a persisted business tunable.
type SystemConfiguration struct {
	Key         string    `gorm:"column:key;primaryKey"`
	Value       string    `gorm:"column:value;not null"`
	Description *string   `gorm:"column:description"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (SystemConfiguration) TableName() string {
	return "system_configuration"
}
