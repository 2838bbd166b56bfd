// Package validation holds input rules shared by services and handlers.
package validation

import (
	"errors"
	"regexp"
	"strings"

	"promptguy/internal/catalog"
)

var usernameRegex = regexp.MustCompile(`^[A-Za-z0-9]{5,30}$`)

// Username rule violations. The reason strings are part of the availability API.
var (
	ErrUsernameFormat   = errors.New("username must be 5-30 characters and contain only letters and numbers")
	ErrUsernameReserved = errors.New("username is reserved")
)

// Availability reasons reported by the username availability endpoint.
const (
	ReasonInvalidFormat = "invalid_format"
	ReasonReserved      = "reserved"
)

// NormalizeUsername returns the stored form of a username.
func NormalizeUsername(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// ValidateUsername checks format and reserved names. It does not check uniqueness.
func ValidateUsername(name string) error {
	if !usernameRegex.MatchString(strings.TrimSpace(name)) {
		return ErrUsernameFormat
	}
	if catalog.Default().IsReservedUsername(name) {
		return ErrUsernameReserved
	}
	return nil
}

// UsernameReason maps a ValidateUsername error to its availability reason.
func UsernameReason(err error) string {
	switch {
	case errors.Is(err, ErrUsernameFormat):
		return ReasonInvalidFormat
	case errors.Is(err, ErrUsernameReserved):
		return ReasonReserved
	default:
		return ""
	}
}
