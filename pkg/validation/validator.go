// Package validation wraps go-playground/validator/v10 with the
// handful of struct-tag rules gonk's HTTP layer needs beyond the
// library's built-ins, the way the teacher's pkg/validation wrapped
// its own domain-specific rules around the same library.
package validation

import (
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	coreerrors "github.com/computeheavy/gonk/pkg/errors"
)

// Validator wraps the validator library with gonk's custom rules.
type Validator struct {
	validate *validator.Validate
}

// NewValidator builds a Validator with every custom rule registered.
func NewValidator() *Validator {
	v := validator.New()
	v.RegisterValidation("safe_string", validateSafeString)
	v.RegisterValidation("entity_name", validateEntityName)
	return &Validator{validate: v}
}

// Validate validates s against its `validate` struct tags.
func (v *Validator) Validate(s interface{}) error {
	if err := v.validate.Struct(s); err != nil {
		return coreerrors.NewValidationError("request", err.Error())
	}
	return nil
}

// validateSafeString rejects field values carrying HTML/script or SQL
// injection markers, for any free-text field (annotation labels,
// owner identifiers) accepted straight from a request body.
func validateSafeString(fl validator.FieldLevel) bool {
	lower := strings.ToLower(fl.Field().String())
	dangerous := []string{
		"<script", "</script>", "javascript:", "vbscript:",
		"onload=", "onerror=", "onclick=",
		"select ", "insert ", "update ", "delete ", "drop ",
		"union ", "exec ", "execute ",
	}
	for _, pattern := range dangerous {
		if strings.Contains(lower, pattern) {
			return false
		}
	}
	return true
}

var entityNamePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}$`)

// validateEntityName checks a dataset, object or schema name: a
// leading alphanumeric followed by alphanumerics, dots, dashes or
// underscores, capped well under any backend's filename limits (the
// filesystem backend roots a directory tree on this value).
func validateEntityName(fl validator.FieldLevel) bool {
	return entityNamePattern.MatchString(fl.Field().String())
}

// ValidateEntityName reports whether name is an acceptable dataset,
// object or schema name, for callers that want the check without a
// full struct.
func ValidateEntityName(name string) bool {
	return entityNamePattern.MatchString(name)
}
