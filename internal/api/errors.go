package api

import (
	"errors"
	"fmt"
	"net/http"
)

var ErrMissingLoginFields = errors.New("login response was missing token or tipo")

type RejectionKind int

const (
	KindUnauthorized RejectionKind = iota
	KindServer
	KindConnectivity
	KindContract
)

func (k RejectionKind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindServer:
		return "server"
	case KindConnectivity:
		return "connectivity"
	case KindContract:
		return "contract"
	}
	return "unknown"
}

// LoginRejected is every way a login attempt can fail, categorised so the view can word it.
type LoginRejected struct {
	Kind   RejectionKind
	Status int
	Err    error
}

func (e *LoginRejected) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("login rejected (%s, status %d)", e.Kind, e.Status)
	}
	if e.Err != nil {
		return fmt.Sprintf("login rejected (%s): %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("login rejected (%s)", e.Kind)
}

func (e *LoginRejected) Unwrap() error {
	return e.Err
}

func rejectionFromStatus(status int) *LoginRejected {
	// Any 4xx means the backend didn't like the credentials
	if status >= http.StatusBadRequest && status < http.StatusInternalServerError {
		return &LoginRejected{Kind: KindUnauthorized, Status: status}
	}
	return &LoginRejected{Kind: KindServer, Status: status}
}

type StatusError struct {
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend responded with status %d", e.Status)
}
