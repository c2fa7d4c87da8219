package user

import "time"

type User struct {
	ID                   int64      `gorm:"primaryKey"`
	Username             string     `gorm:"column:username;uniqueIndex;not null"`
	Email                string     `gorm:"column:email"`
	FirstName            string     `gorm:"column:first_name"`
	LastName             string     `gorm:"column:last_name"`
	PasswordHash         string     `gorm:"column:password_hash;not null"`
	IsActive             bool       `gorm:"column:is_active;not null"`
	IsSuperuser          bool       `gorm:"column:is_superuser;not null"`
	AllowedSourceAddress *string    `gorm:"column:allowed_source_address"`
	LastActivity         *time.Time `gorm:"column:last_activity"`
	Theme                string     `gorm:"column:theme;not null"`
	Roles                []Role     `gorm:"many2many:user_roles;"`
	CreatedAt            time.Time  `gorm:"column:created_at"`
	UpdatedAt            time.Time  `gorm:"column:updated_at"`
}

// Role is a named group. Only the four portal role names carry rank.
type Role struct {
	ID   int64  `gorm:"primaryKey"`
	Name string `gorm:"column:name;uniqueIndex;not null"`
}
