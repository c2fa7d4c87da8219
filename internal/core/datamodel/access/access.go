package access

import "time"

// UserModule is a direct grant edge. A missing row means no access.
type UserModule struct {
	UserID    int64     `gorm:"column:user_id;primaryKey"`
	ModuleID  int64     `gorm:"column:module_id;primaryKey"`
	GrantedBy *int64    `gorm:"column:granted_by"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (UserModule) TableName() string {
	return "user_modules"
}
