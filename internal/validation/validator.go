// Octoka - Token-Authorized Static File Server for Opencast
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/octoka

// Package validation wraps go-playground/validator v10 with a process-wide
// instance, octoka-specific tags and readable error messages.
//
// Field names in messages use the koanf tag of each struct field, so an error
// reads "jwt.trusted_keys is required" rather than naming Go identifiers.
//
// Custom tags:
//   - urlpath: value starts with "/" and contains no "?" or "#"
//   - jwtalg: an asymmetric JWS algorithm name (HS* and none are refused)
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// AsymmetricAlgorithms lists every JWS algorithm octoka can verify.
var AsymmetricAlgorithms = []string{
	"ES256", "ES384", "ES512",
	"EdDSA",
	"RS256", "RS384", "RS512",
	"PS256", "PS384", "PS512",
}

// FieldError is a single failed constraint.
type FieldError struct {
	field   string
	tag     string
	param   string
	message string
}

// Field returns the dotted config path of the failing field.
func (e *FieldError) Field() string { return e.field }

// Tag returns the validation tag that failed.
func (e *FieldError) Tag() string { return e.tag }

// Param returns the tag parameter (e.g. "1" for "min=1").
func (e *FieldError) Param() string { return e.param }

func (e *FieldError) Error() string { return e.message }

// Errors is the collection returned by ValidateStruct.
type Errors struct {
	errors []FieldError
}

// Fields returns the individual field errors.
func (ve *Errors) Fields() []FieldError {
	return ve.errors
}

func (ve *Errors) Error() string {
	if len(ve.errors) == 0 {
		return "validation failed"
	}
	messages := make([]string, 0, len(ve.errors))
	for i := range ve.errors {
		messages = append(messages, ve.errors[i].Error())
	}
	return strings.Join(messages, "; ")
}

// GetValidator returns the singleton validator instance.
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(koanfTagName)

		// Registration only fails on empty tags or nil funcs.
		_ = validate.RegisterValidation("urlpath", validateURLPath)
		_ = validate.RegisterValidation("jwtalg", validateJWTAlg)
	})
	return validate
}

// ValidateStruct validates s. It returns nil or an *Errors.
func ValidateStruct(s any) error {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validate: %w", err)
	}

	out := make([]FieldError, len(fieldErrs))
	for i, fe := range fieldErrs {
		field := fieldPath(fe.Namespace())
		out[i] = FieldError{
			field:   field,
			tag:     fe.Tag(),
			param:   fe.Param(),
			message: translate(fe, field),
		}
	}
	return &Errors{errors: out}
}

func koanfTagName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("koanf"), ",")
	if name == "-" {
		return ""
	}
	if name == "" {
		return f.Name
	}
	return name
}

// fieldPath drops the root struct name: "Config.jwt.trusted_keys[0]" -> "jwt.trusted_keys[0]".
func fieldPath(namespace string) string {
	if _, rest, ok := strings.Cut(namespace, "."); ok {
		return rest
	}
	return namespace
}

func validateURLPath(fl validator.FieldLevel) bool {
	v := fl.Field().String()
	return strings.HasPrefix(v, "/") && !strings.ContainsAny(v, "?#")
}

func validateJWTAlg(fl validator.FieldLevel) bool {
	v := fl.Field().String()
	for _, alg := range AsymmetricAlgorithms {
		if v == alg {
			return true
		}
	}
	return false
}

var messageTemplates = map[string]string{
	"required":      "%s is required",
	"url":           "%s must be a valid URL",
	"hostname_port": "%s must be host:port",
	"urlpath":       "%s must be an absolute URL path starting with /",
	"jwtalg":        "%s must be one of " + strings.Join(AsymmetricAlgorithms, ", "),
}

var messageTemplatesWithParam = map[string]string{
	"oneof": "%s must be one of: %s",
	"gte":   "%s must be greater than or equal to %s",
	"lte":   "%s must be less than or equal to %s",
	"gt":    "%s must be greater than %s",
	"min":   "%s must have at least %s",
	"max":   "%s must have at most %s",
}

func translate(fe validator.FieldError, field string) string {
	if tmpl, ok := messageTemplates[fe.Tag()]; ok {
		return fmt.Sprintf(tmpl, field)
	}
	if tmpl, ok := messageTemplatesWithParam[fe.Tag()]; ok {
		return fmt.Sprintf(tmpl, field, fe.Param())
	}
	return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
}
