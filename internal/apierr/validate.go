package apierr

import (
	"errors"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(fieldName)
	return v
}

// fieldName reports a struct field by its `name` tag, else its json or
// yaml name, else the Go name with a lowercased first letter.
func fieldName(f reflect.StructField) string {
	if n := f.Tag.Get("name"); n != "" {
		return n
	}
	for _, key := range []string{"json", "yaml"} {
		if n, _, _ := strings.Cut(f.Tag.Get(key), ","); n != "" && n != "-" {
			return n
		}
	}
	r := []rune(f.Name)
	r[0] = unicode.ToLower(r[0])
	return string(r)
}

// Check validates v. When fields are given only those struct fields are
// checked. The first failure becomes a *ValidationError; msg, when set,
// builds its message from the failing field name.
func Check(v any, msg func(field string) string, fields ...string) error {
	var err error
	if len(fields) > 0 {
		err = validate.StructPartial(v, fields...)
	} else {
		err = validate.Struct(v)
	}
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	name := verrs[0].Field()
	ve := &ValidationError{Field: name}
	if msg != nil {
		ve.Message = msg(name)
	}
	return ve
}
