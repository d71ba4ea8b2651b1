// Package model defines the records persisted by the blog.
// Structs here carry no behaviour beyond small helpers; rules live in the
// service layer and field contracts in internal/validation.
package model

import "time"

// User is an account that can sign in, author posts and leave comments.
//
// PasswordHash is empty for accounts created through GitHub sign-in; such
// accounts cannot use the username/password login form.
// GitHubID is nil unless the account was linked through OAuth.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	GitHubID     *int64    `json:"githubId,omitempty"`
	IsStaff      bool      `json:"isStaff"`
	IsSuperuser  bool      `json:"isSuperuser"`
	IsActive     bool      `json:"isActive"`
	DateJoined   time.Time `json:"dateJoined"`
}

// IsAdmin reports whether the user may manage categories.
func (u *User) IsAdmin() bool {
	return u != nil && (u.IsStaff || u.IsSuperuser)
}

// Session is a server-side login. The cookie carries a signed token naming
// the session ID; logging out sets RevokedAt so the token stops working even
// before it expires.
type Session struct {
	ID        string
	UserID    int64
	CreatedAt time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time
}

// Active reports whether the session can still authenticate requests at now.
func (s *Session) Active(now time.Time) bool {
	return s.RevokedAt == nil && now.Before(s.ExpiresAt)
}
