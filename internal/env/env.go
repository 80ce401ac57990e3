// Package env binds configuration structs to the process environment.
//
// Fields carry an `env:"VAR_NAME"` tag; unset variables leave the field at
// its zero value, so defaults live with the code that consumes the config,
// not here. Nested structs are walked recursively, and any struct that
// implements Validator is validated as soon as its fields are bound — a bad
// deployment fails at startup with the offending variable named instead of
// surfacing mid-pipeline.
package env

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"time"
)

// Validator is implemented by config structs that constrain their own values.
type Validator interface {
	Validate() error
}

// ErrInvalidValue reports an environment variable whose value could not be
// parsed into its field's type.
type ErrInvalidValue struct {
	Field  string
	EnvVar string
	Value  string
	Err    error
}

func (e ErrInvalidValue) Error() string {
	return fmt.Sprintf("cannot parse %s=%q into field %s: %v", e.EnvVar, e.Value, e.Field, e.Err)
}

func (e ErrInvalidValue) Unwrap() error {
	return e.Err
}

// ErrNotStructPointer reports a Load argument that is not a struct pointer.
type ErrNotStructPointer struct {
	Type string
}

func (e ErrNotStructPointer) Error() string {
	return fmt.Sprintf("env.Load: want a pointer to struct, got %s", e.Type)
}

// ErrUnsupportedType reports a tagged field whose kind the loader cannot bind.
type ErrUnsupportedType struct {
	Kind string
}

func (e ErrUnsupportedType) Error() string {
	return fmt.Sprintf("unsupported field kind: %s", e.Kind)
}

// Load binds environment variables into the struct pointed to by v.
//
// Supported field kinds are the ones the pipeline's configs use: string,
// bool, int, int64 and time.Duration (Go duration syntax, "90s", "15m").
// After binding, every struct implementing Validator is validated, nested
// structs first, then the root.
func Load(v any) error {
	ptr := reflect.ValueOf(v)
	if ptr.Kind() != reflect.Pointer || ptr.Elem().Kind() != reflect.Struct {
		return ErrNotStructPointer{Type: fmt.Sprintf("%T", v)}
	}

	if err := bindFields(ptr.Elem()); err != nil {
		return err
	}

	if validator, ok := v.(Validator); ok {
		if err := validator.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func bindFields(val reflect.Value) error {
	typ := val.Type()

	for i := range val.NumField() {
		field := val.Field(i)
		structField := typ.Field(i)

		if !field.CanSet() {
			continue
		}

		// time.Time is a struct but never a config container.
		if field.Kind() == reflect.Struct && field.Type() != reflect.TypeOf(time.Time{}) {
			if err := bindFields(field); err != nil {
				return err
			}
			if field.CanAddr() {
				if validator, ok := field.Addr().Interface().(Validator); ok {
					if err := validator.Validate(); err != nil {
						return err
					}
				}
			}
			continue
		}

		envKey := structField.Tag.Get("env")
		if envKey == "" {
			continue
		}
		raw, exists := os.LookupEnv(envKey)
		if !exists {
			continue
		}

		if err := setValue(field, raw); err != nil {
			return ErrInvalidValue{
				Field:  structField.Name,
				EnvVar: envKey,
				Value:  raw,
				Err:    err,
			}
		}
	}
	return nil
}

func setValue(field reflect.Value, raw string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(raw)
		return nil

	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		field.SetBool(b)
		return nil

	case reflect.Int, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(raw)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
			return nil
		}
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(n)
		return nil

	default:
		return ErrUnsupportedType{Kind: field.Kind().String()}
	}
}
