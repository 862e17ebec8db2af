package model

import "time"

// Roles.
const (
	RoleAdmin = "admin"
	RoleStaff = "staff"
)

// User is an employee account. Sales keep a nullable reference to their creator.
type User struct {
	ID           uint   `gorm:"primaryKey"`
	Username     string `gorm:"type:varchar(150);uniqueIndex;not null"`
	FullName     string `gorm:"type:varchar(200);not null"`
	Email        string `gorm:"type:varchar(254);not null;default:''"`
	PasswordHash string `gorm:"not null"`
	Role         string `gorm:"type:varchar(20);not null"`
	Active       bool   `gorm:"not null;default:true"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
