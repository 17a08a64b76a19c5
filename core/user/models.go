package user

import (
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/studentbuddy/backend/core"
)

// Roles, lowest to highest.
const (
	RoleStudent    = "Student"
	RoleAdmin      = "Admin"
	RoleSuperAdmin = "SuperAdmin"
)

var (
	AllRoles   = []string{RoleStudent, RoleAdmin, RoleSuperAdmin}
	AdminRoles = []string{RoleAdmin, RoleSuperAdmin}

	rolePriorities = map[string]int{
		RoleSuperAdmin: 3,
		RoleAdmin:      2,
		RoleStudent:    1,
	}
)

func RolePriority(role string) int {
	return rolePriorities[role]
}

// HasAnyRole is the authorization policy: it reports whether the role is
// a member of the allowed set. An empty set allows everyone.
func HasAnyRole(role string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, r := range allowed {
		if r == role {
			return true
		}
	}
	return false
}

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	FullName     string    `json:"full_name"`
	Role         string    `json:"role"`
	IsActive     bool      `json:"is_active"`
	PasswordHash []byte    `json:"-"`
	LastLogin    time.Time `json:"last_login"` // UTC
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) IsStudent() bool    { return u.Role == RoleStudent }
func (u *User) IsSuperAdmin() bool { return u.Role == RoleSuperAdmin }

// IsAdmin reports whether the user holds admin-tier access (Admin or SuperAdmin).
func (u *User) IsAdmin() bool { return u.Role == RoleAdmin || u.Role == RoleSuperAdmin }

// NewUser contains information needed to create a new User.
type NewUser struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	FullName string `json:"full_name" validate:"required"`
}

func (nu *NewUser) Validate(validate *validator.Validate) error {
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.FullName = core.CleanString(nu.FullName)
	return validate.Struct(nu)
}

// QueryFilter restricts admin user listings.
type QueryFilter struct {
	Role         string   `query:"role"`
	ExcludeRoles []string `query:"-"`
}
