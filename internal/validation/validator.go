package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidationError carries a message meant to be returned to the caller as is.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Schema names accepted by Validate.
const (
	SchemaUser                    = "user"
	SchemaAdmin                   = "admin"
	SchemaID                      = "id"
	SchemaEmailUpdate             = "emailUpdate"
	SchemaPasswordUpdate          = "passwordUpdate"
	SchemaArticle                 = "article"
	SchemaUserFullNameAndCategory = "userFullNameAndCategory"
	SchemaDowngrade               = "downgrade"
)

type Credentials struct {
	FullName string `json:"full_name" validate:"required,min=3,max=512"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=3,max=512"`
}

type ID struct {
	ID *int64 `json:"id" validate:"required,min=0"`
}

type EmailUpdate struct {
	OldEmail string `json:"old_email" validate:"required,email"`
	NewEmail string `json:"new_email" validate:"required,email"`
}

type PasswordUpdate struct {
	OldPassword string `json:"old_password" validate:"required,min=3,max=512"`
	NewPassword string `json:"new_password" validate:"required,min=3,max=512"`
}

type Article struct {
	Title    string   `json:"title" validate:"required"`
	Content  []string `json:"content" validate:"required,min=1"`
	Category string   `json:"category" validate:"required"`
}

type FullNameAndCategory struct {
	FullName string `json:"full_name" validate:"required,min=3,max=512"`
	Category string `json:"category" validate:"required,min=3,max=512"`
}

type Downgrade struct {
	ID       int64  `json:"id" validate:"required,min=1"`
	FullName string `json:"full_name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
}

var schemas = map[string]reflect.Type{
	SchemaUser:                    reflect.TypeOf(Credentials{}),
	SchemaAdmin:                   reflect.TypeOf(Credentials{}),
	SchemaID:                      reflect.TypeOf(ID{}),
	SchemaEmailUpdate:             reflect.TypeOf(EmailUpdate{}),
	SchemaPasswordUpdate:          reflect.TypeOf(PasswordUpdate{}),
	SchemaArticle:                 reflect.TypeOf(Article{}),
	SchemaUserFullNameAndCategory: reflect.TypeOf(FullNameAndCategory{}),
	SchemaDowngrade:               reflect.TypeOf(Downgrade{}),
}

// Validator checks decoded payloads against the named schemas.
type Validator struct {
	v *validator.Validate
}

func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{v: v}
}

// Validate returns nil or a *ValidationError describing the first violation.
func (v *Validator) Validate(schema string, payload any) error {
	want, ok := schemas[schema]
	if !ok {
		return &ValidationError{Message: fmt.Sprintf("unknown schema %q", schema)}
	}
	got := reflect.TypeOf(payload)
	if got != nil && got.Kind() == reflect.Pointer {
		got = got.Elem()
	}
	if got != want {
		return &ValidationError{Message: fmt.Sprintf("payload does not match schema %q", schema)}
	}
	err := v.v.Struct(payload)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return &ValidationError{Message: describe(verrs[0])}
	}
	return &ValidationError{Message: err.Error()}
}

func describe(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%q is required", field)
	case "email":
		return fmt.Sprintf("%q must be a valid email", field)
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%q length must be at least %s characters long", field, fe.Param())
		}
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("%q must contain at least %s items", field, fe.Param())
		}
		return fmt.Sprintf("%q must be greater than or equal to %s", field, fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%q length must be less than or equal to %s characters long", field, fe.Param())
		}
		return fmt.Sprintf("%q must be less than or equal to %s", field, fe.Param())
	default:
		return fmt.Sprintf("%q failed on %s", field, fe.Tag())
	}
}
