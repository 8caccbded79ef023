package identity

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrUserNotFound    = errors.New("user not found")
)

type Role string

const (
	RoleStudent Role = "Student"
	RoleMentor  Role = "Mentor"
)

func (r Role) Valid() bool {
	return r == RoleStudent || r == RoleMentor
}

// Caller is the authenticated identity attached to a request.
type Caller struct {
	ID   uuid.UUID
	Role Role
}

func (c Caller) IsStudent() bool { return c.Role == RoleStudent }
func (c Caller) IsMentor() bool  { return c.Role == RoleMentor }

type User struct {
	ID        uuid.UUID
	Name      string
	Email     string
	Role      Role
	CreatedAt time.Time
}
