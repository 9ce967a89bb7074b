package model

import "time"

// Guide is a staff member who leads tours.  Administrators are guides
// with IsAdmin set.  The row doubles as the login account, so the
// password hash lives here as well.
//
// Fields:
//
//	ID           – opaque identifier (uuid).
//	Email        – unique login e-mail.
//	PasswordHash – bcrypt hash; never serialised.
//	FirstName    – given name.
//	LastName     – family name.
//	Phone        – optional phone number.
//	Languages    – languages the guide can lead tours in.
//	IsAdmin      – grants the ADMIN role.
//	IsActive     – inactive guides cannot log in and are hidden publicly.
//	CreatedAt    – creation timestamp.
//	UpdatedAt    – last update timestamp.
type Guide struct {
	ID           string    `json:"id"`              // guides.id
	Email        string    `json:"email"`           // guides.email
	PasswordHash string    `json:"-"`               // guides.password_hash
	FirstName    string    `json:"first_name"`      // guides.first_name
	LastName     string    `json:"last_name"`       // guides.last_name
	Phone        *string   `json:"phone,omitempty"` // guides.phone (nullable)
	Languages    []string  `json:"languages"`       // guides.languages (comma separated)
	IsAdmin      bool      `json:"is_admin"`        // guides.is_admin
	IsActive     bool      `json:"is_active"`       // guides.is_active
	CreatedAt    time.Time `json:"created_at"`      // guides.created_at
	UpdatedAt    time.Time `json:"updated_at"`      // guides.updated_at
}

// DisplayName joins first and last name.
func (g Guide) DisplayName() string {
	if g.LastName == "" {
		return g.FirstName
	}
	return g.FirstName + " " + g.LastName
}

// Role returns the JWT role claim for the guide.
func (g Guide) Role() string {
	if g.IsAdmin {
		return RoleAdmin
	}
	return RoleGuide
}

// Roles carried in access tokens.
const (
	RoleAdmin = "ADMIN"
	RoleGuide = "GUIDE"
)

// RefreshToken models an entry in the `refresh_tokens` table.  Only the
// SHA-256 hash of the raw token is stored.
type RefreshToken struct {
	ID        uint64     // refresh_tokens.id
	GuideID   string     // refresh_tokens.guide_id
	TokenHash string     // refresh_tokens.token_hash
	ExpiresAt time.Time  // refresh_tokens.expires_at
	RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
	CreatedAt time.Time  // refresh_tokens.created_at
}
