package model

// Role is the authorization role resolved by the identity gateway.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is a role the engine knows how to serve.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// Caller is the already-authenticated identity handed to the engine.
type Caller struct {
	UserID string
	Role   Role
}

// IsAdmin reports whether the caller may act on any booking.
func (c Caller) IsAdmin() bool {
	return c.Role == RoleAdmin
}
