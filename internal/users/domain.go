package users

import "time"

// Account statuses stored in users.status.
const (
	StatusActive   = "A"
	StatusInactive = "I"
)

// User represents a user account for management. Password material never
// leaves the repository through this type.
type User struct {
	ID                 string     `json:"id"`
	Name               string     `json:"name"`
	Email              string     `json:"email,omitempty"`
	Status             string     `json:"status"`
	PrimaryFacility    string     `json:"primary_facility,omitempty"`
	Language           string     `json:"language"`
	MustChangePassword bool       `json:"must_change_password"`
	PasswordExpiresAt  *time.Time `json:"password_expires_at,omitempty"`
	LastLoginAt        *time.Time `json:"last_login_at,omitempty"`
	Roles              []string   `json:"roles"`
	Facilities         []string   `json:"facilities"`
	Customers          []string   `json:"customers"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// Assignments are the relational scopes of a user.
type Assignments struct {
	Roles      []string `json:"roles"`
	Facilities []string `json:"facilities"`
	Customers  []string `json:"customers"`
}

// CreateInput carries the fields of a new account.
type CreateInput struct {
	ID              string   `json:"id" validate:"required,max=32,alphanum"`
	Name            string   `json:"name" validate:"required,max=100"`
	Email           string   `json:"email" validate:"omitempty,email"`
	Password        string   `json:"password"`
	PrimaryFacility string   `json:"primary_facility" validate:"max=32"`
	Language        string   `json:"language"`
	Roles           []string `json:"roles" validate:"dive,required"`
	Facilities      []string `json:"facilities" validate:"dive,required"`
	Customers       []string `json:"customers" validate:"dive,required"`
}

// UpdateInput carries optional changes. Nil fields are left untouched.
type UpdateInput struct {
	Name            *string   `json:"name" validate:"omitempty,max=100"`
	Email           *string   `json:"email" validate:"omitempty,email"`
	PrimaryFacility *string   `json:"primary_facility" validate:"omitempty,max=32"`
	Language        *string   `json:"language"`
	Password        *string   `json:"password"`
	Roles           *[]string `json:"roles"`
	Facilities      *[]string `json:"facilities"`
	Customers       *[]string `json:"customers"`
}

func (in UpdateInput) touchesAssignments() bool {
	return in.Roles != nil || in.Facilities != nil || in.Customers != nil
}

// Profile is the mutable descriptive part of a user row.
type Profile struct {
	Name            string
	Email           string
	PrimaryFacility string
	Language        string
}

// NewAccount is the row inserted for a created user.
type NewAccount struct {
	ID        string
	Profile   Profile
	Hash      string
	ChangedAt time.Time
	ExpiresAt *time.Time
}
