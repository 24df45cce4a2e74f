package utils

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	EmailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

	// registration numbers are 6 to 12 digits
	RegistrationRegex  = regexp.MustCompile(`^\d{6,12}$`)
	ApplicationIDRegex = regexp.MustCompile(`^[A-Za-z0-9_\-]{1,64}$`)
)

// ValidateEmail checks if email format is valid
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email is required")
	}
	if !EmailRegex.MatchString(email) {
		return fmt.Errorf("invalid email format")
	}
	return nil
}

// ValidateApplicationID checks the id is safe to place in a URL path.
func ValidateApplicationID(id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("application id is required")
	}
	if !ApplicationIDRegex.MatchString(id) {
		return fmt.Errorf("invalid application id %q", id)
	}
	return nil
}

// ValidateRegistration checks a depositor registration number. Empty is allowed.
func ValidateRegistration(reg string) error {
	if reg != "" && !RegistrationRegex.MatchString(reg) {
		return fmt.Errorf("registration number must be 6 to 12 digits")
	}
	return nil
}
