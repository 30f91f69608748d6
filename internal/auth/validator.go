package auth

import (
	"errors"
	"unicode"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ErrWeakPassword is returned when a password passes the length rule but
// misses a required character class.
var ErrWeakPassword = errors.New("auth: password must mix upper, lower, digit and special characters")

// RegisterRequest carries the fields checked on user registration.
type RegisterRequest struct {
	Username string `validate:"required,min=3,max=32,alphanum"`
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=8,max=72"`
}

// ValidateRegister checks the registration business rules: field shapes via
// struct tags, then password complexity.
func ValidateRegister(req RegisterRequest) error {
	if err := validate.Struct(req); err != nil {
		return err
	}
	if !isPasswordComplex(req.Password) {
		return ErrWeakPassword
	}
	return nil
}

func isPasswordComplex(s string) bool {
	var hasUpper, hasLower, hasNumber, hasSpecial bool
	for _, char := range s {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsNumber(char):
			hasNumber = true
		case unicode.IsPunct(char) || unicode.IsSymbol(char):
			hasSpecial = true
		}
	}
	return hasUpper && hasLower && hasNumber && hasSpecial
}
