// Package definition reads the TOML definition files that select and configure the
// input, network and optimizer components
package definition

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Header is embedded by every component definition
type Header struct {
	Kind string `toml:"kind"`
}

// File is a definition file read into memory
type File struct {
	Header
	Path string

	data []byte
}

// Read loads path and parses its kind
func Read(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	f := &File{Path: path, data: data}
	if err := toml.Unmarshal(data, &f.Header); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Decode decodes the whole file into v, rejecting keys v does not declare
func (f *File) Decode(v any) error {
	dec := toml.NewDecoder(bytes.NewReader(f.data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return fmt.Errorf("%s: %s", f.Path, strict.String())
		}
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return fmt.Errorf("%s:%d:%d: %w", f.Path, row, col, err)
		}
		return fmt.Errorf("%s: %w", f.Path, err)
	}
	return nil
}
