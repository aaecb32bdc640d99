package models

import (
	"time"

	"clearlot/internal/domain"

	"gorm.io/gorm"
)

type User struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	Username     string         `gorm:"uniqueIndex;size:64;not null" json:"username"`
	Email        string         `gorm:"uniqueIndex;size:255;not null" json:"email"`
	PasswordHash string         `gorm:"size:255" json:"-"`
	Role         string         `gorm:"size:20;not null;index" json:"role"` // BUYER | SELLER | ADMIN
	CompanyName  string         `gorm:"size:255" json:"company_name"`
	AvatarURL    string         `gorm:"size:512" json:"avatar_url"`
	IsOnline     bool           `gorm:"default:false" json:"is_online"`
	VerifiedAt   *time.Time     `json:"verified_at"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

func (u *User) IsSeller() bool { return u.Role == domain.RoleSeller }
func (u *User) IsBuyer() bool  { return u.Role == domain.RoleBuyer }
func (u *User) IsAdmin() bool  { return u.Role == domain.RoleAdmin }

// DisplayName prefers the company name for B2B listings, falling back to
// username then email.
func (u *User) DisplayName() string {
	if u.CompanyName != "" {
		return u.CompanyName
	}
	if u.Username != "" {
		return u.Username
	}
	return u.Email
}
