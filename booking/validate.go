package booking

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report json names ("name", "date") instead of Go field names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidateNewReservation trims n and checks it. Every blank required field
// is reported; a present date must be strict YYYY-MM-DD.
func ValidateNewReservation(n NewReservation) (NewReservation, error) {
	n = n.Normalize()

	verr := &ValidationError{}
	if err := validate.Struct(n); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return n, err
		}
		for _, fe := range fieldErrs {
			verr.Missing = append(verr.Missing, fe.Field())
		}
	}
	if n.Date != "" {
		if _, err := ParseDate(n.Date); err != nil {
			verr.Invalid = append(verr.Invalid, "date")
			verr.Message = err.Error()
		}
	}
	if len(verr.Missing) > 0 || len(verr.Invalid) > 0 {
		return n, verr
	}
	return n, nil
}

// ValidateStaffContact trims c and checks it. A blank field is missing, a
// malformed address is invalid.
func ValidateStaffContact(c StaffContact) (StaffContact, error) {
	c.Name = strings.TrimSpace(c.Name)
	c.Email = strings.TrimSpace(c.Email)

	err := validate.Struct(c)
	if err == nil {
		return c, nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return c, err
	}
	verr := &ValidationError{}
	for _, fe := range fieldErrs {
		if fe.Tag() == "required" {
			verr.Missing = append(verr.Missing, fe.Field())
		} else {
			verr.Invalid = append(verr.Invalid, fe.Field())
			verr.Message = "invalid email address"
		}
	}
	return c, verr
}

// ValidateDate checks a single date field.
func ValidateDate(field, s string) (Date, error) {
	d, err := ParseDate(strings.TrimSpace(s))
	if err != nil {
		return Date{}, InvalidField(field, err.Error())
	}
	return d, nil
}

// ValidEmail reports whether s is a syntactically valid email address.
func ValidEmail(s string) bool {
	return s != "" && validate.Var(s, "email") == nil
}
