package services

import (
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/feedpress/apiserver/types"
)

const minPasswordLength = 4

const (
	msgInvalidEmail   = "E-Mail is invalid"
	msgPasswordFormat = "password is invalid format"
)

// ValidateCredentials checks every rule independently and returns all
// violations. An empty result means the pair is acceptable.
func ValidateCredentials(email, password string) []types.FieldError {
	var violations []types.FieldError
	if !isEmail(email) {
		violations = append(violations, types.FieldError{Message: msgInvalidEmail})
	}
	if password == "" || utf8.RuneCountInString(password) < minPasswordLength {
		violations = append(violations, types.FieldError{Message: msgPasswordFormat})
	}
	return violations
}

// isEmail accepts a bare addr-spec with a dotted domain. Display names and
// angle brackets are rejected.
func isEmail(email string) bool {
	if email == "" || strings.TrimSpace(email) != email {
		return false
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		return false
	}
	at := strings.LastIndex(email, "@")
	if at < 1 {
		return false
	}
	domain := email[at+1:]
	if !strings.Contains(domain, ".") || strings.HasPrefix(domain, ".") || strings.HasSuffix(domain, ".") {
		return false
	}
	return !strings.Contains(domain, "..")
}
