package packaging

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/pwa-builder/PWABuilder-sub006/model"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// getValidator returns the shared validator. Field names in messages use the
// JSON names callers send.
func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Validate checks opts before a job is enqueued. On failure it returns a
// KindValidation *Error whose Details hold one message per problem.
func Validate(opts *model.PackagingOptions) error {
	if opts == nil {
		return &Error{
			Kind:    KindValidation,
			Message: "Invalid PWA settings: Malformed argument. Coudn't find AndroidPackageOptions in body",
			Details: []string{"Malformed argument. Coudn't find AndroidPackageOptions in body"},
		}
	}

	problems := structProblems(opts)
	problems = append(problems, signingProblems(opts)...)
	if len(problems) == 0 {
		return nil
	}
	return &Error{
		Kind:    KindValidation,
		Message: "Invalid PWA settings: " + strings.Join(problems, ", "),
		Details: problems,
	}
}

func structProblems(opts *model.PackagingOptions) []string {
	err := getValidator().Struct(opts)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}
	problems := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		problems = append(problems, describe(fe))
	}
	return problems
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if":
		return fmt.Sprintf("%s is required", fe.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}

func signingProblems(opts *model.PackagingOptions) []string {
	var problems []string
	mode := opts.SigningMode
	if mode == "" || mode == model.SigningModeNone {
		return nil
	}
	if opts.Signing == nil {
		return []string{fmt.Sprintf("Signing options are required when signing mode = '%s'", mode)}
	}

	s := opts.Signing
	if mode == model.SigningModeMine {
		if s.File == "" {
			problems = append(problems, "You must supply a signing key file when signing mode = 'mine'")
		} else if !strings.HasPrefix(s.File, "data:") {
			problems = append(problems, "Signing file must be a base64 encoded string containing the Android keystore file")
		}
		if s.StorePassword == "" {
			problems = append(problems, "You must supply a store password when signing mode = 'mine'")
		}
		if s.KeyPassword == "" {
			problems = append(problems, "You must supply a key password when signing mode = 'mine'")
		}
	}

	required := []struct {
		name  string
		value string
	}{
		{"alias", s.Alias},
	}
	if mode == model.SigningModeNew {
		required = append(required,
			struct{ name, value string }{"countryCode", s.CountryCode},
			struct{ name, value string }{"fullName", s.FullName},
			struct{ name, value string }{"organization", s.Organization},
			struct{ name, value string }{"organizationalUnit", s.OrganizationalUnit},
		)
	}
	for _, r := range required {
		if r.value == "" {
			problems = append(problems, fmt.Sprintf("Signing option %s is required", r.name))
		}
	}
	return problems
}
