// Package models contains data structures for the application's domain models.
package models

import (
	"strings"
	"time"
)

// Anonymous visitor identity shared by every unauthenticated view.
const (
	AnonymousExternalID = "anonymous_visitor"
	AnonymousEmail      = "anonymous@promptguy.com"
	AnonymousUsername   = "anonymous_visitor"
)

// User represents a locally provisioned identity-provider account.
type User struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ExternalID string    `gorm:"size:191;uniqueIndex;not null" json:"-"`
	Username   string    `gorm:"size:64;uniqueIndex;not null" json:"username"`
	Email      string    `gorm:"size:255" json:"email"`
	FirstName  string    `gorm:"size:128" json:"firstName"`
	LastName   string    `gorm:"size:128" json:"lastName"`
	ImageURL   string    `gorm:"size:512" json:"imageUrl"`
	Bio        string    `gorm:"type:text" json:"bio,omitempty"`
	IsAdmin    bool      `gorm:"not null;default:false" json:"-"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// HasUsername reports whether the user has claimed a permanent username.
func (u *User) HasUsername() bool {
	return !IsTemporaryUsername(u.Username)
}

// DisplayName prefers the first name and falls back to the username.
func (u *User) DisplayName() string {
	if strings.TrimSpace(u.FirstName) != "" {
		return u.FirstName
	}
	return u.Username
}

// IsTemporaryUsername reports whether name is a provisioning placeholder.
func IsTemporaryUsername(name string) bool {
	name = strings.TrimSpace(name)
	if len(name) < 5 {
		return true
	}
	return strings.HasPrefix(name, "user_") && strings.HasSuffix(name, "_temp")
}

// TemporaryUsername builds the placeholder assigned when a user is provisioned.
func TemporaryUsername(externalID string) string {
	id := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(externalID), "user_"))
	if len(id) > 8 {
		id = id[:8]
	}
	return "user_" + id + "_temp"
}

// UserSummary is the author block embedded in post responses.
type UserSummary struct {
	ID        uint   `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	ImageURL  string `json:"imageUrl"`
}

// Summary projects the public author fields.
func (u *User) Summary() UserSummary {
	return UserSummary{
		ID:        u.ID,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		ImageURL:  u.ImageURL,
	}
}
