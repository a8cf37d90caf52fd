package validate

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ppiankov/claimstore/internal/model"
)

// Violation is one field-level problem with a candidate entry
type Violation struct {
	Field   string `json:"field"`   // JSON path, e.g. "claims[0].kind"
	Rule    string `json:"rule"`    // Failed rule tag
	Message string `json:"message"` // Human-readable description
}

func (v Violation) String() string {
	return v.Field + ": " + v.Message
}

// Validator checks candidate entries before they touch any state
type Validator struct {
	v *validator.Validate
}

// NewValidator creates a validator with the claimstore rules registered
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report JSON names rather than Go field names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	mustRegister(v, "calendar_date", func(fl validator.FieldLevel) bool {
		_, err := model.ParseDate(fl.Field().String())
		return err == nil
	})
	mustRegister(v, "claim_kind", func(fl validator.FieldLevel) bool {
		_, err := model.ParseClaimKind(fl.Field().String())
		return err == nil
	})
	mustRegister(v, "notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})

	return &Validator{v: v}
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register validation %s: %v", tag, err))
	}
}

// Candidate validates a candidate entry and returns every violation found.
// A nil result means the candidate is well-formed.
func (val *Validator) Candidate(c *model.Candidate) []Violation {
	if c == nil {
		return []Violation{{Field: "candidate", Rule: "required", Message: "candidate is missing"}}
	}

	var out []Violation
	if err := val.v.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return []Violation{{Field: "candidate", Rule: "invalid", Message: err.Error()}}
		}
		for _, fe := range verrs {
			out = append(out, Violation{
				Field:   fieldPath(fe.Namespace()),
				Rule:    fe.Tag(),
				Message: describe(fe),
			})
		}
	}

	if c.UpdatesEntryID != "" && strings.TrimSpace(c.UpdatesEntryID) != c.UpdatesEntryID {
		out = append(out, Violation{
			Field:   "updates_entry_id",
			Rule:    "trimmed",
			Message: "must not contain leading or trailing whitespace",
		})
	}

	return out
}

// fieldPath drops the root struct name from a validator namespace
func fieldPath(ns string) string {
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must contain at least %s item(s)", fe.Param())
	case "calendar_date":
		return fmt.Sprintf("%q is not a valid date (want YYYY-MM-DD)", fe.Value())
	case "claim_kind":
		return fmt.Sprintf("%q is not a claim kind (prediction, factual, opinion, recommendation)", fe.Value())
	case "notblank":
		return "must not be blank"
	case "oneof":
		return fmt.Sprintf("%q must be one of: %s", fe.Value(), fe.Param())
	default:
		return fmt.Sprintf("failed %q rule", fe.Tag())
	}
}
