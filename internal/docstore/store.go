// Package docstore persists the bot's spreadsheet data as a single JSON document.
//
// Every mutation is a full read-modify-write of the file. Writes go to a temp
// file in the same directory which is then renamed over the target, so a call
// either replaces the whole file or leaves it untouched. All Stores opened on
// the same path share one mutex.
package docstore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

var (
	locksMu sync.Mutex
	locks   = map[string]*sync.Mutex{}
)

func lockFor(path string) *sync.Mutex {
	locksMu.Lock()
	defer locksMu.Unlock()
	mu, ok := locks[path]
	if !ok {
		mu = &sync.Mutex{}
		locks[path] = mu
	}
	return mu
}

// Store provides whole-document CRUD over the JSON database file.
type Store struct {
	path string
	mu   *sync.Mutex
	now  func() time.Time
}

// Open returns a Store backed by the file at path. A missing file is
// initialised with the empty document. An existing file that cannot be decoded
// is reported as a *StorageError instead of being reset.
func Open(path string) (*Store, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("could not resolve database path %s: %w", path, err)
	}
	s := &Store{path: abs, mu: lockFor(abs), now: time.Now}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(abs); errors.Is(err, os.ErrNotExist) {
		if err := s.writeLocked(Empty()); err != nil {
			return nil, err
		}
		return s, nil
	} else if err != nil {
		return nil, &StorageError{Op: "read", Path: abs, Err: err}
	}

	if _, err := s.readLocked(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the absolute path of the database file.
func (s *Store) Path() string {
	return s.path
}

// ReadAll loads the whole document. A missing file yields the empty document
// without creating the file.
func (s *Store) ReadAll() (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readLocked()
}

// WriteAll replaces the persisted document with doc.
func (s *Store) WriteAll(doc *Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeLocked(doc)
}

// SaveTabularData replaces each given sheet, leaving other sheets untouched,
// and records the import time and source file name. An empty source is
// stored as null.
func (s *Store) SaveTabularData(sheets []Sheet, source string) error {
	return s.mutate(func(doc *Document) error {
		for _, sh := range sheets {
			doc.SetSheet(sh.Name, sh.Rows)
		}
		now := s.now().Format(time.RFC3339Nano)
		doc.Metadata.LastUpdated = &now
		if source != "" {
			doc.Metadata.SourceFile = &source
		} else {
			doc.Metadata.SourceFile = nil
		}
		return nil
	})
}

// GetSheet returns the rows of the named sheet and whether it exists.
func (s *Store) GetSheet(name string) ([]Row, bool, error) {
	doc, err := s.ReadAll()
	if err != nil {
		return nil, false, err
	}
	rows, ok := doc.Sheet(name)
	return rows, ok, nil
}

// UpdateField sets one cell. The sheet is created empty when missing, so an
// index error is still possible right after creation. Nothing is written on
// error.
func (s *Store) UpdateField(sheet string, index int, field string, value any) error {
	return s.mutate(func(doc *Document) error {
		rows, ok := doc.Sheet(sheet)
		if !ok {
			doc.SetSheet(sheet, nil)
		}
		if index < 0 || index >= len(rows) {
			return &IndexError{Sheet: sheet, Index: index, Len: len(rows)}
		}
		rows[index].Set(field, value)
		return nil
	})
}

// AddRow appends row to the sheet, creating the sheet when missing.
func (s *Store) AddRow(sheet string, row Row) error {
	return s.mutate(func(doc *Document) error {
		rows, _ := doc.Sheet(sheet)
		doc.SetSheet(sheet, append(rows, row.Clone()))
		return nil
	})
}

// DeleteRow removes the row at index and shifts later rows left.
func (s *Store) DeleteRow(sheet string, index int) error {
	return s.mutate(func(doc *Document) error {
		rows, ok := doc.Sheet(sheet)
		if !ok {
			return sheetNotFound(sheet)
		}
		if index < 0 || index >= len(rows) {
			return &IndexError{Sheet: sheet, Index: index, Len: len(rows)}
		}
		out := make([]Row, 0, len(rows)-1)
		out = append(out, rows[:index]...)
		out = append(out, rows[index+1:]...)
		doc.SetSheet(sheet, out)
		return nil
	})
}

// UpdateSheetData replaces all rows of the sheet, creating it when missing.
func (s *Store) UpdateSheetData(sheet string, rows []Row) error {
	return s.mutate(func(doc *Document) error {
		out := make([]Row, len(rows))
		for i, r := range rows {
			out[i] = r.Clone()
		}
		doc.SetSheet(sheet, out)
		return nil
	})
}

func (s *Store) mutate(fn func(doc *Document) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.readLocked()
	if err != nil {
		return err
	}
	if err := fn(doc); err != nil {
		return err
	}
	return s.writeLocked(doc)
}

func (s *Store) readLocked() (*Document, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Empty(), nil
		}
		return nil, &StorageError{Op: "read", Path: s.path, Err: err}
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &StorageError{Op: "decode", Path: s.path, Err: err}
	}
	return &doc, nil
}

func (s *Store) writeLocked(doc *Document) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return &StorageError{Op: "encode", Path: s.path, Err: err}
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &StorageError{Op: "write", Path: s.path, Err: err}
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return &StorageError{Op: "write", Path: s.path, Err: err}
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &StorageError{Op: "write", Path: s.path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return &StorageError{Op: "write", Path: s.path, Err: err}
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return &StorageError{Op: "write", Path: s.path, Err: err}
	}
	return nil
}
