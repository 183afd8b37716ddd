package docstore

import (
	"errors"
	"fmt"
)

// ErrSheetNotFound indicates a mutation targeted a sheet that does not exist.
var ErrSheetNotFound = errors.New("sheet not found")

// ErrIndexOutOfRange indicates a row index outside the sheet's current rows.
var ErrIndexOutOfRange = errors.New("row index out of range")

// StorageError represents an I/O or decode failure on the document file.
type StorageError struct {
	Op   string // "read", "decode", "encode", "write"
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	switch e.Op {
	case "decode":
		return fmt.Sprintf("database file %s is corrupt: %v", e.Path, e.Err)
	case "write":
		return fmt.Sprintf("could not write database file %s: %v", e.Path, e.Err)
	default:
		return fmt.Sprintf("database %s failed for %s: %v", e.Op, e.Path, e.Err)
	}
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// IndexError reports an out-of-range row index for a sheet.
type IndexError struct {
	Sheet string
	Index int
	Len   int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("row index %d out of range for sheet %q (%d rows)", e.Index, e.Sheet, e.Len)
}

func (e *IndexError) Unwrap() error {
	return ErrIndexOutOfRange
}

func sheetNotFound(name string) error {
	return fmt.Errorf("%w: %q", ErrSheetNotFound, name)
}
