package utils

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	emailRegex   = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	controlRegex = regexp.MustCompile(`[\x00-\x08\x0b\x0c\x0e-\x1f\x7f]`)
)

// ValidateEmail validates an email address
func ValidateEmail(email string) error {
	if !emailRegex.MatchString(email) {
		return fmt.Errorf("invalid email format: %s", email)
	}
	return nil
}

// SanitizeString removes control characters, keeping tabs and line breaks
func SanitizeString(s string) string {
	return controlRegex.ReplaceAllString(s, "")
}

// SanitizePtr sanitizes and trims an optional value. A value that ends up
// empty becomes nil.
func SanitizePtr(s *string) *string {
	if s == nil {
		return nil
	}
	clean := strings.TrimSpace(SanitizeString(*s))
	if clean == "" {
		return nil
	}
	return &clean
}

// StripControlPtr removes control characters from an optional value and
// leaves everything else, whitespace included, untouched. An empty value
// becomes nil.
func StripControlPtr(s *string) *string {
	if s == nil {
		return nil
	}
	clean := SanitizeString(*s)
	if clean == "" {
		return nil
	}
	return &clean
}
