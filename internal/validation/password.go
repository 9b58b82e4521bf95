// Package validation checks account credentials before they reach storage.
package validation

import (
	"errors"
	"regexp"
	"strings"

	"nexify/internal/models"
)

const (
	minPasswordLen = 8
	maxEmailLen    = 254
	// PasswordSpecials are the only non-alphanumeric characters allowed.
	PasswordSpecials = "@$!%*?&"
)

type passwordRule struct {
	problem string
	ok      func(string) bool
}

var passwordRules = []passwordRule{
	{"at least 8 characters", func(p string) bool { return len(p) >= minPasswordLen }},
	{"a lowercase letter", containsAny("abcdefghijklmnopqrstuvwxyz")},
	{"an uppercase letter", containsAny("ABCDEFGHIJKLMNOPQRSTUVWXYZ")},
	{"a digit", containsAny("0123456789")},
	{"one of " + PasswordSpecials, containsAny(PasswordSpecials)},
	{"only letters, digits and " + PasswordSpecials, func(p string) bool {
		for _, r := range p {
			if !isASCIIAlnum(r) && !strings.ContainsRune(PasswordSpecials, r) {
				return false
			}
		}
		return true
	}},
}

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9\-]+(\.[a-zA-Z0-9\-]+)*\.[a-zA-Z]{2,}$`)

func containsAny(chars string) func(string) bool {
	return func(p string) bool { return strings.ContainsAny(p, chars) }
}

func isASCIIAlnum(r rune) bool {
	return r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9'
}

// PasswordProblems lists the requirements password does not meet.
func PasswordProblems(password string) []string {
	var out []string
	for _, rule := range passwordRules {
		if !rule.ok(password) {
			out = append(out, rule.problem)
		}
	}
	return out
}

// ValidatePassword returns ErrInvalidPassword, with the unmet requirements
// as details, unless every rule passes.
func ValidatePassword(password string) error {
	problems := PasswordProblems(password)
	if len(problems) == 0 {
		return nil
	}
	err := models.ErrInvalidPassword()
	err.Err = errors.New("missing " + strings.Join(problems, "; "))
	return err
}

// ValidateEmail checks length and basic format of an already normalized address.
func ValidateEmail(email string) error {
	if len(email) > maxEmailLen {
		return models.NewValidationError("email must not exceed 254 characters")
	}
	if !emailRegex.MatchString(email) {
		return models.NewValidationError("invalid email format")
	}
	return nil
}
