// Package validation checks form input against a declarative per-field rule
// table and reports errors keyed by field name, so every form is handled
// uniformly.
package validation

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Result is what forms surface inline next to offending fields.
type Result struct {
	FieldErrors map[string]string `json:"errors,omitempty"`
	Valid       bool              `json:"valid"`
}

// messages maps rule tags to the user-facing text. Length rules share one
// message because every sized field uses the same 8-20 bound.
var messages = map[string]string{
	"required": "Please fill this field.",
	"min":      "Please fill this field with 8-20 characters",
	"max":      "Please fill this field with 8-20 characters",
	"email":    "Please input a valid email.",
	"eqfield":  "Passwords do not match.",
	"gte":      "Quantity must be zero or more.",
}

// Check validates a tagged struct and flattens the outcome into a Result.
func Check(v any) Result {
	err := validate.Struct(v)
	if err == nil {
		return Result{Valid: true}
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return Result{Valid: false, FieldErrors: map[string]string{"_": err.Error()}}
	}

	fieldErrors := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		msg, ok := messages[fe.Tag()]
		if !ok {
			msg = "Invalid value."
		}
		fieldErrors[fieldName(fe)] = msg
	}
	return Result{Valid: false, FieldErrors: fieldErrors}
}

// fieldName lower-cases the first rune so errors key by the JSON-ish field
// name the browser sent.
func fieldName(fe validator.FieldError) string {
	name := fe.Field()
	if name == "" {
		return name
	}
	return strings.ToLower(name[:1]) + name[1:]
}

// LoginInput is the /api/auth/login body.
type LoginInput struct {
	Username string `json:"username" validate:"required,min=8,max=20"`
	Password string `json:"password" validate:"required,min=8,max=20"`
}

// RegisterInput is the /api/auth/register body.
type RegisterInput struct {
	Username        string `json:"username"        validate:"required,min=8,max=20"`
	Email           string `json:"email"           validate:"required,email"`
	Password        string `json:"password"        validate:"required,min=8,max=20"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,min=8,max=20,eqfield=Password"`
}

// QuantityInput is a single draft line update, after coercion.
type QuantityInput struct {
	ProductID int `json:"productId" validate:"required"`
	Quantity  int `json:"quantity"  validate:"gte=0"`
}
