package model

import (
	"fmt"
	"strings"
	"time"
)

// Role is the closed set of account roles.  The zero value is not a
// valid role; use ParseRole to convert untrusted input.
type Role uint8

const (
	RoleUser Role = iota + 1
	RoleAdmin
)

// ParseRole converts the textual form ("user" or "admin") into a Role.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "user":
		return RoleUser, nil
	case "admin":
		return RoleAdmin, nil
	}
	return 0, fmt.Errorf("unknown role %q", s)
}

func (r Role) String() string {
	switch r {
	case RoleUser:
		return "user"
	case RoleAdmin:
		return "admin"
	}
	return "invalid"
}

// Valid reports whether r is one of the declared roles.
func (r Role) Valid() bool { return r == RoleUser || r == RoleAdmin }

func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("invalid role %d", r)
	}
	return []byte(r.String()), nil
}

func (r *Role) UnmarshalText(b []byte) error {
	parsed, err := ParseRole(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Credential records how an account proves its identity.  Exactly one
// credential is attached to every user: either a local password or a
// link to an external identity provider.
type Credential interface {
	credential()
}

// LocalCredential is a bcrypt password hash.  Hash is empty when the user
// was loaded without secrets (the repository default).
type LocalCredential struct {
	Hash string
}

// ExternalCredential links the account to a subject at an identity
// provider such as Google.
type ExternalCredential struct {
	Provider string
	Subject  string
}

func (LocalCredential) credential()    {}
func (ExternalCredential) credential() {}

// User represents an application user record as stored in the `users`
// table.
//
// Fields:
//
//	ID         – uuid primary key.
//	Username   – unique login name, at least three characters.
//	Email      – unique email address.
//	Credential – LocalCredential or ExternalCredential.
//	Role       – RoleUser or RoleAdmin.
//	CreatedAt  – timestamp of creation.
//	UpdatedAt  – timestamp of last update.
type User struct {
	ID         string
	Username   string
	Email      string
	Credential Credential
	Role       Role
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool { return u != nil && u.Role == RoleAdmin }

// Local returns the password credential when the account is local.
func (u *User) Local() (LocalCredential, bool) {
	c, ok := u.Credential.(LocalCredential)
	return c, ok
}

// External returns the provider link when the account is external.
func (u *User) External() (ExternalCredential, bool) {
	c, ok := u.Credential.(ExternalCredential)
	return c, ok
}

// Origin names the credential kind: "local", the provider name, or "".
func (u *User) Origin() string {
	switch c := u.Credential.(type) {
	case LocalCredential:
		return "local"
	case ExternalCredential:
		return c.Provider
	}
	return ""
}
