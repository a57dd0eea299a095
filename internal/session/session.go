package session

import (
	"errors"

	"github.com/lachlan2k/vitrine/internal/token"
)

type State int

const (
	StateUnresolved State = iota
	StateValidating
	StateLoggedIn
	StateLoggedOut
)

func (s State) String() string {
	switch s {
	case StateUnresolved:
		return "unresolved"
	case StateValidating:
		return "validating"
	case StateLoggedIn:
		return "logged-in"
	case StateLoggedOut:
		return "logged-out"
	}
	return "unknown"
}

type User struct {
	ID    string     `json:"id"`
	Name  string     `json:"nome"`
	Email string     `json:"email"`
	Role  token.Role `json:"tipo"`
}

// Snapshot is a consistent read of the session at one moment.
type Snapshot struct {
	State State
	User  *User
}

func (s Snapshot) Role() token.Role {
	if s.User == nil {
		return ""
	}
	return s.User.Role
}

func (s Snapshot) IsClient() bool {
	return s.State == StateLoggedIn && s.Role() == token.RoleClient
}

func (s Snapshot) IsEmployee() bool {
	return s.State == StateLoggedIn && s.Role() == token.RoleEmployee
}

var ErrSessionValidationFailed = errors.New("session validation failed")
var ErrClosed = errors.New("session was torn down")
