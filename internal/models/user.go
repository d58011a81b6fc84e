package models

import "time"

type UserRole string

const (
	RoleUser  UserRole = "user"
	RoleAdmin UserRole = "admin"
)

type User struct {
	ID           string    `gorm:"column:id;type:uuid;primaryKey" json:"user_id"`
	UserName     string    `gorm:"column:user_name;type:varchar(50);uniqueIndex;not null" json:"user_name"`
	FirstName    string    `gorm:"column:first_name;type:varchar(100)" json:"first_name"`
	LastName     string    `gorm:"column:last_name;type:varchar(100)" json:"last_name"`
	Email        string    `gorm:"column:email;type:varchar(254);uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"column:password;type:varchar(128);not null" json:"-"`
	IsActive     bool      `gorm:"column:is_active;default:true" json:"-"`
	IsStaff      bool      `gorm:"column:is_staff;default:false" json:"-"`
	CreatedAt    time.Time `gorm:"column:created_at;type:timestamptz;autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at;type:timestamptz;autoUpdateTime" json:"updated_at"`
}

func (User) TableName() string { return "users" }

func (u *User) Role() UserRole {
	if u.IsStaff {
		return RoleAdmin
	}
	return RoleUser
}
