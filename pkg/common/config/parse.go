package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/validator.v2"
	"gopkg.in/yaml.v2"
)

// ValidationError is returned when a configuration fails struct-tag validation.
type ValidationError struct {
	errorMap validator.ErrorMap
}

// ErrForField returns the validation error for the given field, if any.
func (e ValidationError) ErrForField(name string) error {
	return e.errorMap[name]
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	var w bytes.Buffer
	fmt.Fprintf(&w, "validation failed")
	for f, err := range e.errorMap {
		fmt.Fprintf(&w, "  %s: %v\n", f, err)
	}
	return w.String()
}

// Parse loads the given YAML configFiles in order, merges them into config,
// and validates the merged result against its `validate` struct tags.
func Parse(config interface{}, configFiles ...string) error {
	if len(configFiles) == 0 {
		return errors.New("no files to load")
	}
	for _, fname := range configFiles {
		data, err := os.ReadFile(fname)
		if err != nil {
			return err
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return err
		}
	}

	if err := validator.Validate(config); err != nil {
		if errMap, ok := err.(validator.ErrorMap); ok {
			return ValidationError{errorMap: errMap}
		}
		return err
	}
	return nil
}
