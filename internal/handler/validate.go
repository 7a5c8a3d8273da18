package handler

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/iliyamo/auth-service/internal/model"
)

const (
	minPasswordLen = 8
	// bcrypt only reads the first 72 bytes of a password and x/crypto
	// rejects anything longer.
	maxPasswordBytes = 72
	maxNameLen       = 100
)

var usernameRE = regexp.MustCompile(`^[a-zA-Z0-9_]{3,30}$`)

func validateName(name string) error {
	n := utf8.RuneCountInString(strings.TrimSpace(name))
	if n < 1 || n > maxNameLen {
		return fmt.Errorf("name must be 1 to %d characters", maxNameLen)
	}
	return nil
}

func validateUsername(username string) error {
	if !usernameRE.MatchString(strings.TrimSpace(username)) {
		return fmt.Errorf("username must be 3 to 30 letters, digits or underscores")
	}
	return nil
}

func validateEmail(email string) error {
	email = strings.TrimSpace(email)
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@")+1:], ".") {
		return fmt.Errorf("invalid email")
	}
	return nil
}

func validatePassword(password string) error {
	if utf8.RuneCountInString(password) < minPasswordLen {
		return fmt.Errorf("password must be at least %d characters", minPasswordLen)
	}
	if len(password) > maxPasswordBytes {
		return fmt.Errorf("password must be at most %d bytes", maxPasswordBytes)
	}
	return nil
}

func parseRole(s string) (model.Role, error) {
	r := model.Role(strings.ToUpper(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("role must be USER or ADMIN")
	}
	return r, nil
}

// firstError returns the first non-nil error.
func firstError(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
