package models

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/Jorge523757/DIGITSOFT/utils"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
)

// timeNow is replaced in tests that need a fixed clock.
var timeNow = func() time.Time { return time.Now().UTC() }

var tracer = otel.Tracer("github.com/Jorge523757/DIGITSOFT/models")

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.SetTagName("binding")
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// validateInput runs the binding tags of an input struct and reports the
// failing fields as a validation error.
func validateInput(input interface{}) error {
	err := validate.Struct(input)
	if err == nil {
		return nil
	}
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}
	fields := utils.ProcessValidationErrors(err)
	names := make([]string, 0, len(fields))
	for field, tag := range fields {
		names = append(names, field+" ("+tag+")")
	}
	sort.Strings(names)
	return &utils.AppError{
		Kind:    utils.ErrorKindValidation,
		Message: "invalid fields: " + strings.Join(names, ", "),
		Err:     err,
	}
}

func correlationIdFromContextOrNew(ctx context.Context) string {
	if ctx != nil {
		if v, ok := utils.GetCorrelationIdFromContext(ctx); ok && v != "" {
			return v
		}
	}
	return uuid.NewString()
}

func toJSON(v interface{}) []byte {
	b, _ := json.Marshal(v)
	return b
}

func trimmed(s string) string {
	return strings.TrimSpace(s)
}
