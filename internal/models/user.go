package models

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

type Role string

const (
	RoleCustomer Role = "CUSTOMER"
	RoleAdmin    Role = "ADMIN"

	// Role assigned to every registered user
	DefaultRole = RoleCustomer
)

var knownRoles = []Role{RoleCustomer, RoleAdmin}

// ParseRole accepts only roles known to the service, case insensitive
func ParseRole(value string) (Role, error) {
	r := Role(strings.ToUpper(value))
	if !slices.Contains(knownRoles, r) {
		return "", fmt.Errorf("unknown role %q", value)
	}
	return r, nil
}

type User struct {
	ID           int64
	CreatedAt    time.Time
	Email        string
	Phone        string // empty if not set
	PasswordHash string
	IsActive     bool
	Roles        []Role
	LastLogin    *time.Time // nil if user never logged in
}

// RoleNames returns user roles as plain strings
func (u User) RoleNames() []string {
	names := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		names = append(names, string(r))
	}
	return names
}
