// Package source supplies raw records and their image payloads to the
// dispatcher.
package source

import (
	"errors"
	"fmt"
	"os"

	"github.com/tidwall/gjson"
)

var (
	// ErrOutOfRange is returned when a record index is past the end of the source.
	ErrOutOfRange = errors.New("record index out of range")

	// ErrNotArray is returned when a records file is not a JSON array.
	ErrNotArray = errors.New("records file must contain a JSON array")
)

// Source is an indexed, finite sequence of raw JSON records.
type Source interface {
	// Len returns the number of records.
	Len() int

	// Record returns the raw bytes of record i.
	Record(i int) ([]byte, error)
}

// Slice is an in-memory Source.
type Slice [][]byte

func (s Slice) Len() int { return len(s) }

func (s Slice) Record(i int) ([]byte, error) {
	if i < 0 || i >= len(s) {
		return nil, fmt.Errorf("%w: %d of %d", ErrOutOfRange, i, len(s))
	}
	return s[i], nil
}

// File is a Source read from a file holding a JSON array of records.
type File struct {
	path    string
	records []gjson.Result
}

// OpenFile reads and indexes the records file at path.
func OpenFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read records file: %w", err)
	}
	return ParseFile(path, data)
}

// ParseFile indexes data as if it had been read from path.
func ParseFile(path string, data []byte) (*File, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: %s is not valid JSON", ErrNotArray, path)
	}
	doc := gjson.ParseBytes(data)
	if !doc.IsArray() {
		return nil, fmt.Errorf("%w: %s", ErrNotArray, path)
	}
	return &File{path: path, records: doc.Array()}, nil
}

// Path returns the file the records were read from.
func (f *File) Path() string { return f.path }

func (f *File) Len() int { return len(f.records) }

func (f *File) Record(i int) ([]byte, error) {
	if i < 0 || i >= len(f.records) {
		return nil, fmt.Errorf("%w: %d of %d", ErrOutOfRange, i, len(f.records))
	}
	return []byte(f.records[i].Raw), nil
}
