package validate

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/edusphere-api/internal/domain"
	"github.com/go-playground/validator/v10"
)

var v = newValidator()

func newValidator() *validator.Validate {
	val := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their wire name.
	val.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return val
}

// Error lists every failed field. It unwraps to domain.ErrBadRequest.
type Error struct {
	Fields []string
}

func (e *Error) Error() string { return strings.Join(e.Fields, "; ") }

func (e *Error) Unwrap() error { return domain.ErrBadRequest }

// Struct checks the validate tags on s.
func Struct(s interface{}) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}
	out := &Error{Fields: make([]string, 0, len(ve))}
	for _, fe := range ve {
		out.Fields = append(out.Fields, fmt.Sprintf("field '%s' failed '%s'", fieldPath(fe), fe.Tag()))
	}
	return out
}

// fieldPath drops the top-level struct name: "questions[0].options".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return fe.Field()
}
