package users

import (
	"fmt"
	"time"
)

// RoleType is the single role a profile holds in the service desk
type RoleType string

const (
	RoleAdmin    RoleType = "admin"    // Manages users and sees the dashboard
	RoleEmployee RoleType = "employee" // Works assigned tasks
	RoleClient   RoleType = "client"   // Dealership requesting services
)

// Roles lists every known role, in display order
var Roles = []RoleType{RoleAdmin, RoleEmployee, RoleClient}

func (r RoleType) Valid() bool {
	switch r {
	case RoleAdmin, RoleEmployee, RoleClient:
		return true
	}
	return false
}

func ParseRole(s string) (RoleType, error) {
	r := RoleType(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// User is the application profile keyed by the identity user id
type User struct {
	ID        string    `json:"id"`         // Identity provider user id
	Name      string    `json:"name"`       // Display name
	Email     string    `json:"email"`      // Unique email address
	Role      RoleType  `json:"role"`       // Authorization role
	CreatedAt time.Time `json:"created_at"` // Set once at sign-up
}

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// Clone returns a copy so callers can't mutate a stored profile
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}
