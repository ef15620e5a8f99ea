package document

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Document is a parsed configuration file.
type Document struct {
	path  string
	value any
}

// Path returns the absolute path the document was read from.
func (d *Document) Path() string {
	return d.path
}

// Value returns the parsed tree. Mappings are *Mapping, sequences are []any
// and scalars are nil, bool, int, int64, uint64, float64 or string.
func (d *Document) Value() any {
	return d.value
}

// Resolve returns the absolute form of path relative to the working directory.
func Resolve(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", path, err)
	}
	return abs, nil
}

// Load checks that the file at path exists, then reads and parses it.
// A missing file yields a *NotFoundError carrying the absolute path.
func Load(path string) (*Document, error) {
	abs, err := Resolve(path)
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(abs); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &NotFoundError{Path: abs}
		}
		return nil, fmt.Errorf("stat configuration: %w", err)
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	value, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", abs, err)
	}

	return &Document{path: abs, value: value}, nil
}

// Parse decodes a single YAML document. Empty input yields a nil value.
func Parse(data []byte) (any, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))

	var root yaml.Node
	if err := dec.Decode(&root); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidYAML, err)
	}

	var next yaml.Node
	switch err := dec.Decode(&next); {
	case err == nil:
		return nil, fmt.Errorf("%w: expected a single document in the stream", ErrInvalidYAML)
	case !errors.Is(err, io.EOF):
		return nil, fmt.Errorf("%w: %w", ErrInvalidYAML, err)
	}

	c := &converter{active: make(map[*yaml.Node]bool)}
	return c.convert(&root)
}
