package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// loginValidate checks LoginInput. validator.Validate caches struct metadata
// and is safe for concurrent use.
var loginValidate = validator.New(validator.WithRequiredStructEnabled())

// LoginInput is the credential form submitted by the user.
type LoginInput struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
	// Remember is accepted for parity with the web form; sessions are never persisted.
	Remember bool
}

// Validate returns an error wrapping ErrValidation naming the first bad field.
func (in LoginInput) Validate() error {
	err := loginValidate.Struct(in)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return fmt.Errorf("%w: %s", ErrValidation, strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	switch {
	case fe.Field() == "Email" && fe.Tag() == "email":
		return "invalid email address"
	case fe.Tag() == "required":
		return strings.ToLower(fe.Field()) + " is required"
	default:
		return fmt.Sprintf("%s failed %s", strings.ToLower(fe.Field()), fe.Tag())
	}
}
