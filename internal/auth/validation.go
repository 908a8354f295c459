package auth

import (
	"reflect"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

const (
	minPasswordLength = 8

	tagPasswordComplexity = "password_complexity"
	tagOTP                = "otp"

	msgOTPFormat          = "OTP must be 5 or 6 digits."
	msgPasswordComplexity = "Password must be at least 8 characters long and contain upper and lower case letters, a digit and a special character."
)

var otpPattern = regexp.MustCompile(`^\d{5,6}$`)

// RegisterInput is the payload of a registration request.
type RegisterInput struct {
	Phone     string `json:"phone" validate:"required,e164"`
	Password  string `json:"password" validate:"required,password_complexity"`
	FirstName string `json:"firstName" validate:"required,max=100"`
	LastName  string `json:"lastName" validate:"required,max=100"`
}

// VerifyInput is the payload of an OTP verification request. ICO is optional.
type VerifyInput struct {
	Phone string `json:"phone" validate:"required"`
	Code  string `json:"code" validate:"required,otp"`
	ICO   string `json:"ico" validate:"omitempty,max=16"`
}

// ResetInput is the payload of a password reset request.
type ResetInput struct {
	Phone       string `json:"phone" validate:"required"`
	OTP         string `json:"otp" validate:"required,otp"`
	NewPassword string `json:"newPassword" validate:"required,password_complexity"`
}

// LoginInput is the payload of a login request.
type LoginInput struct {
	Phone    string `json:"phone" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// fieldAliases renames struct fields in error maps where the public name differs from the json key.
var fieldAliases = map[string]string{
	"code":        "otp",
	"newPassword": "password",
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		if alias, ok := fieldAliases[name]; ok {
			return alias
		}
		return name
	})

	_ = v.RegisterValidation(tagPasswordComplexity, func(fl validator.FieldLevel) bool {
		return IsComplexPassword(fl.Field().String())
	})
	_ = v.RegisterValidation(tagOTP, func(fl validator.FieldLevel) bool {
		return otpPattern.MatchString(fl.Field().String())
	})

	return v
}

// IsComplexPassword reports whether p has at least 8 characters including a lower and an
// upper case letter, a digit and a character that is neither letter nor digit.
func IsComplexPassword(p string) bool {
	if utf8.RuneCountInString(p) < minPasswordLength {
		return false
	}

	var lower, upper, digit, symbol bool
	for _, r := range p {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		case !unicode.IsLetter(r) && !unicode.IsNumber(r):
			symbol = true
		}
	}

	return lower && upper && digit && symbol
}

// fieldErrors splits validation failures into missing fields and malformed ones,
// keyed by public field name.
func fieldErrors(err error) (missing, invalid map[string]string) {
	missing = map[string]string{}
	invalid = map[string]string{}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return missing, invalid
	}

	for _, fe := range verrs {
		field := fe.Field()
		if fe.Tag() == "required" {
			missing[field] = "errors." + field + ".required"
			continue
		}
		if _, seen := invalid[field]; seen {
			continue
		}
		invalid[field] = reasonFor(field, fe.Tag())
	}

	return missing, invalid
}

func reasonFor(field, tag string) string {
	switch tag {
	case tagOTP:
		return msgOTPFormat
	case tagPasswordComplexity:
		return msgPasswordComplexity
	case "e164":
		return "errors." + field + ".invalid"
	case "max":
		return "errors." + field + ".too_long"
	default:
		return "errors." + field + "." + tag
	}
}
