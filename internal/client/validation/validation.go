// Package validation performs the client-side checks that must pass before any
// request reaches the server: email and password format, names, phone numbers
// and numeric one-time codes.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	phoneRe  = regexp.MustCompile(`^[0-9]{10,15}$`)
	digitsRe = regexp.MustCompile(`^[0-9]+$`)

	once     sync.Once
	validate *validator.Validate
)

// Error is a validation failure. Message is safe to show to the user.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string       { return "validation: " + e.Message }
func (e *Error) UserMessage() string { return e.Message }

// Credentials is the first onboarding step and the sign-in form.
type Credentials struct {
	Email    string `validate:"required,email" label:"Email"`
	Password string `validate:"required,min=8,max=128" label:"Password"`
}

// Details is the second onboarding step.
type Details struct {
	FirstName   string `validate:"required,max=50" label:"First name"`
	LastName    string `validate:"required,max=50" label:"Last name"`
	PhoneNumber string `validate:"required,phone" label:"Phone number"`
}

// TwoFactorCode is an authenticator-app code, used for enrollment and for the
// login-time challenge.
type TwoFactorCode struct {
	Code string `validate:"required,len=6,digits" message:"Please enter a valid 6-digit code."`
}

// EmailOTP is the code mailed during sign-up verification.
type EmailOTP struct {
	Code string `validate:"required,len=4,digits" message:"Please enter a valid 4-digit code."`
}

// AvatarURL is a hosted image location.
type AvatarURL struct {
	URL string `validate:"required,url" label:"Avatar URL"`
}

func validatorInstance() *validator.Validate {
	once.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			if label := f.Tag.Get("label"); label != "" {
				return label
			}
			return f.Name
		})
		_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
			return phoneRe.MatchString(fl.Field().String())
		})
		_ = v.RegisterValidation("digits", func(fl validator.FieldLevel) bool {
			return digitsRe.MatchString(fl.Field().String())
		})
		validate = v
	})
	return validate
}

// Struct validates s and returns the first failure as *Error.
func Struct(s any) error {
	err := validatorInstance().Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	return &Error{Field: fe.StructField(), Message: message(s, fe)}
}

func message(s any, fe validator.FieldError) string {
	t := reflect.TypeOf(s)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if f, ok := t.FieldByName(fe.StructField()); ok {
		if m := f.Tag.Get("message"); m != "" {
			return m
		}
	}

	label := fe.Field()
	switch fe.Tag() {
	case "required":
		return label + " is required"
	case "email":
		return "Please enter a valid email"
	case "phone":
		return "Please enter a valid phone number"
	case "url":
		return "Please enter a valid URL"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", label, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be under %s characters", label, fe.Param())
	default:
		return label + " is invalid"
	}
}

func Code(code string) error {
	return Struct(TwoFactorCode{Code: code})
}

func OTP(code string) error {
	return Struct(EmailOTP{Code: code})
}
