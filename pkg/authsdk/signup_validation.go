package authsdk

import (
	"net/mail"
	"strings"
)

const (
	signupRequiredReason = "required"
	minPasswordLength    = 8
)

// Validate checks the registration fields before they are sent.
// Returns a *ValidationError listing every offending field, or nil.
func (r SignupRequest) Validate() error {
	errs := make(map[string]string)

	r.validateEmail(errs)
	r.validatePassword(errs)
	r.validateName(errs)

	if len(errs) == 0 {
		return nil
	}
	return &ValidationError{Message: "invalid signup fields", Fields: errs}
}

func (r SignupRequest) validateEmail(errs map[string]string) {
	email := strings.TrimSpace(r.Email)
	switch {
	case email == "":
		errs["email"] = signupRequiredReason
	default:
		if _, err := mail.ParseAddress(email); err != nil {
			errs["email"] = "must be a valid email address"
		}
	}
}

func (r SignupRequest) validatePassword(errs map[string]string) {
	switch {
	case r.Password == "":
		errs["password"] = signupRequiredReason
	case len(r.Password) < minPasswordLength:
		errs["password"] = "must be at least 8 characters"
	}
}

func (r SignupRequest) validateName(errs map[string]string) {
	name := strings.TrimSpace(r.Name)
	switch {
	case name == "":
		errs["name"] = signupRequiredReason
	case len(name) > 100:
		errs["name"] = "too long (max 100)"
	}
}
