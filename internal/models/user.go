package models

import (
	"strings"
)

// User represents an account in the Nexify application.
type User struct {
	Base
	Email       string `gorm:"uniqueIndex;not null;size:254" json:"email"`
	Username    string `gorm:"not null;size:254" json:"username"`
	FirstName   string `gorm:"size:150;not null;default:''" json:"first_name"`
	LastName    string `gorm:"size:150;not null;default:''" json:"last_name"`
	Password    string `gorm:"not null" json:"-"`
	IsStaff     bool   `gorm:"not null;default:false" json:"is_staff"`
	IsSuperuser bool   `gorm:"not null;default:false" json:"is_superuser"`
}

// NewUser builds a user with a fresh identifier. The username mirrors the email.
func NewUser(email, firstName, lastName, passwordHash string) *User {
	email = NormalizeEmail(email)
	return &User{
		Base:      newBase(),
		Email:     email,
		Username:  email,
		FirstName: strings.TrimSpace(firstName),
		LastName:  strings.TrimSpace(lastName),
		Password:  passwordHash,
	}
}

// IsAdmin reports whether the user may use moderation endpoints.
func (u *User) IsAdmin() bool {
	return u.IsStaff || u.IsSuperuser
}

// FullName joins first and last name, falling back to the username.
func (u *User) FullName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Username
	}
	return name
}

// NormalizeEmail lowercases and trims an address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
