package user

import "time"

// Role is a closed set; anything outside the two constants carries no
// permissions.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // never expose hash in JSON
	FullName     string    `json:"full_name"`
	Role         Role      `json:"role"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// CanAccess is the ownership rule: admins may act on any resource, everyone
// else only on resources they own.
func (u User) CanAccess(ownerID int64) bool {
	return u.IsAdmin() || u.ID == ownerID
}
