// Package token decodes the payload of the session tokens issued by the storefront backend.
//
// Tokens are never verified here. The backend is the only authority on whether a token is
// genuine; the client reads the claims to know who it probably is and when to stop trying.
package token

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v4"
)

// Role is one of the closed set of account kinds the backend hands out.
type Role = string

const (
	RoleClient   Role = "CLIENTE"
	RoleEmployee Role = "FUNCIONARIO"
)

var ErrMalformedToken = errors.New("session token was malformed")

// Claims are the fields read from a token payload. Anything missing or of the wrong
// type is left unset.
type Claims struct {
	Subject   string
	Role      Role
	ExpiresAt *jwt.NumericDate
}

func (c *Claims) HasRole(role Role) bool {
	return c != nil && c.Role != "" && c.Role == role
}

func ValidRole(role Role) bool {
	return role == RoleClient || role == RoleEmployee
}

// Decode splits a compact token and reads its payload segment.
func Decode(raw string) (*Claims, error) {
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: expected 3 segments, got %d", ErrMalformedToken, len(parts))
	}

	// Padded base64url is accepted too
	payload, err := jwt.DecodeSegment(strings.TrimRight(parts[1], "="))
	if err != nil {
		return nil, fmt.Errorf("%w: couldn't decode payload: %v", ErrMalformedToken, err)
	}

	fields := map[string]any{}
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("%w: couldn't parse payload: %v", ErrMalformedToken, err)
	}

	claims := &Claims{
		Subject: firstString(fields, "sub", "email"),
		Role:    firstString(fields, "role", "tipo"),
	}

	if exp, ok := fields["exp"].(json.Number); ok {
		if secs, err := exp.Float64(); err == nil && !math.IsNaN(secs) {
			claims.ExpiresAt = &jwt.NumericDate{Time: unixFloat(secs)}
		}
	}

	return claims, nil
}

// IsExpired reports whether the claims carry an expiry that has already passed.
// Tokens without one are treated as live.
func IsExpired(c *Claims, now time.Time) bool {
	if c == nil || c.ExpiresAt == nil {
		return false
	}
	return c.ExpiresAt.Time.Before(now)
}

// Expiries beyond what int64 seconds can hold are clamped instead of wrapping around.
const maxUnixSeconds = 1 << 62

func unixFloat(secs float64) time.Time {
	if secs >= maxUnixSeconds {
		return time.Unix(maxUnixSeconds, 0)
	}
	if secs <= -maxUnixSeconds {
		return time.Unix(-maxUnixSeconds, 0)
	}

	whole, frac := math.Modf(secs)
	return time.Unix(int64(whole), int64(frac*float64(time.Second)))
}

func firstString(fields map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := fields[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
