package document

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the configuration file does not exist.
	ErrNotFound = errors.New("configuration not found")
	// ErrInvalidYAML indicates the configuration file could not be parsed.
	ErrInvalidYAML = errors.New("invalid YAML document")
)

// NotFoundError reports the absolute path that was checked.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s at %s", ErrNotFound, e.Path)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}
