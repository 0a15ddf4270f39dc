package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// FieldError describes a single failed validation rule, keyed by the
// JSON name of the offending field.
type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Param   string `json:"param,omitempty"`
	Message string `json:"message,omitempty"`
}

// BindJSON decodes and validates the request body into out. On
// failure it writes a 422 with per-field details and returns false,
// meaning the caller should stop.
func BindJSON(ctx *gin.Context, out interface{}) bool {
	if err := ctx.ShouldBindJSON(out); err != nil {
		RespondUnprocessable(ctx, "Invalid request body", bindDetails(err, out))
		return false
	}
	return true
}

func bindDetails(err error, out interface{}) interface{} {
	var (
		valErrs   validator.ValidationErrors
		typeErr   *json.UnmarshalTypeError
		syntaxErr *json.SyntaxError
		sizeErr   *http.MaxBytesError
	)

	switch {
	case errors.As(err, &valErrs):
		return gin.H{"fields": fieldErrors(valErrs, out)}

	case errors.As(err, &typeErr):
		field := strings.TrimSpace(typeErr.Field)
		return gin.H{
			"json":  "invalid_json_type",
			"field": field,
			"fields": []FieldError{{
				Field:   field,
				Rule:    "type",
				Message: "must be of type " + typeErr.Type.String(),
			}},
		}

	case errors.As(err, &syntaxErr), errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return gin.H{"json": "invalid_json_syntax"}

	case errors.As(err, &sizeErr):
		return gin.H{"json": "body_too_large"}

	default:
		return gin.H{"reason": err.Error()}
	}
}

func fieldErrors(errs validator.ValidationErrors, out interface{}) []FieldError {
	root := structTypeOf(out)

	fields := make([]FieldError, 0, len(errs))
	for _, fe := range errs {
		rule, param := fe.Tag(), fe.Param()
		fields = append(fields, FieldError{
			Field:   jsonNameFor(root, fe.StructField()),
			Rule:    rule,
			Param:   param,
			Message: ruleMessage(rule, param),
		})
	}
	return fields
}

func structTypeOf(v interface{}) reflect.Type {
	t := reflect.TypeOf(v)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil
	}
	return t
}

// jsonNameFor resolves a struct field to its json tag. The request
// DTOs are flat structs, so there is no nested path resolution.
func jsonNameFor(root reflect.Type, structField string) string {
	if root == nil {
		return structField
	}
	sf, ok := root.FieldByName(structField)
	if !ok {
		return structField
	}
	name, _, _ := strings.Cut(sf.Tag.Get("json"), ",")
	if name == "" || name == "-" {
		return structField
	}
	return name
}

func ruleMessage(rule, param string) string {
	switch rule {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must be at least " + param
	case "max":
		return "must be at most " + param
	case "oneof":
		return "must be one of " + strings.ReplaceAll(param, " ", ", ")
	}
	if param != "" {
		return fmt.Sprintf("failed %s validation (%s)", rule, param)
	}
	return "failed " + rule + " validation"
}
