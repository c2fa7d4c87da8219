package application

import "time"

type Application struct {
	ID          int64     `gorm:"primaryKey"`
	Name        string    `gorm:"column:name;uniqueIndex;not null"`
	Namespace   string    `gorm:"column:namespace;uniqueIndex;not null"`
	Description string    `gorm:"column:description"`
	Modules     []Module  `gorm:"foreignKey:ApplicationID"`
	CreatedAt   time.Time `gorm:"column:created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at"`
}

// Module is the smallest grantable unit. ViewIdentifier is unique within
// its application only.
type Module struct {
	ID             int64     `gorm:"primaryKey"`
	ApplicationID  int64     `gorm:"column:application_id;not null;uniqueIndex:idx_module_view"`
	Name           string    `gorm:"column:name;not null"`
	ViewIdentifier string    `gorm:"column:view_identifier;not null;uniqueIndex:idx_module_view"`
	CreatedAt      time.Time `gorm:"column:created_at"`
}
