// Package aliases stores short names for Galaxy URL and API key pairs.
//
// The backing file holds one record per line as alias<TAB>url<TAB>api_key.
// It is loaded fully when the store is opened and rewritten through a
// temporary file and rename on every change. There is no locking between
// processes: two invocations editing the same file concurrently can lose an
// update.
package aliases

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/juju/loggo"
)

var logger = loggo.GetLogger("galaxy-admin.aliases")

// Record is one stored alias.
type Record struct {
	Alias  string
	URL    string
	APIKey string
}

// Store is an in-memory copy of the alias file.
type Store struct {
	path    string
	records []Record
}

// Open loads the alias file at path. A missing file yields an empty store.
func Open(path string) (*Store, error) {
	s := &Store{path: path}

	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open key file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) != 3 {
			logger.Warningf("%s:%d: expected 3 fields, got %d; skipped", path, lineNo, len(fields))
			continue
		}
		s.records = append(s.records, Record{Alias: fields[0], URL: fields[1], APIKey: fields[2]})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}

	return s, nil
}

// Path returns the backing file location.
func (s *Store) Path() string {
	return s.path
}

// List returns all records in file order.
func (s *Store) List() []Record {
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}

// Resolve returns the record for alias.
func (s *Store) Resolve(alias string) (Record, error) {
	if i := s.index(alias); i >= 0 {
		return s.records[i], nil
	}
	return Record{}, &NotFoundError{Alias: alias}
}

// Lookup resolves target as an alias, falling back to the first record
// whose URL matches it.
func (s *Store) Lookup(target string) (Record, error) {
	if r, err := s.Resolve(target); err == nil {
		return r, nil
	}
	want := strings.TrimRight(target, "/")
	for _, r := range s.records {
		if strings.TrimRight(r.URL, "/") == want {
			return r, nil
		}
	}
	return Record{}, &NotFoundError{Alias: target}
}

// Add stores a new alias and rewrites the file.
func (s *Store) Add(alias, url, apiKey string) error {
	if err := validate(alias, url, apiKey); err != nil {
		return err
	}
	if s.index(alias) >= 0 {
		return &DuplicateAliasError{Alias: alias}
	}
	records := append(s.List(), Record{Alias: alias, URL: url, APIKey: apiKey})
	return s.commit(records)
}

// Update changes the URL and/or API key of an existing alias. Empty values
// leave the corresponding field unchanged.
func (s *Store) Update(alias, newURL, newAPIKey string) error {
	i := s.index(alias)
	if i < 0 {
		return &NotFoundError{Alias: alias}
	}
	records := s.List()
	if newURL != "" {
		records[i].URL = newURL
	}
	if newAPIKey != "" {
		records[i].APIKey = newAPIKey
	}
	if err := validate(records[i].Alias, records[i].URL, records[i].APIKey); err != nil {
		return err
	}
	return s.commit(records)
}

// Remove deletes alias and rewrites the file.
func (s *Store) Remove(alias string) error {
	i := s.index(alias)
	if i < 0 {
		return &NotFoundError{Alias: alias}
	}
	records := append(s.List()[:i], s.records[i+1:]...)
	return s.commit(records)
}

func (s *Store) index(alias string) int {
	for i, r := range s.records {
		if r.Alias == alias {
			return i
		}
	}
	return -1
}

// commit writes records to disk and only then swaps them into memory, so a
// failed write leaves both unchanged.
func (s *Store) commit(records []Record) error {
	if err := writeAtomic(s.path, records); err != nil {
		return err
	}
	s.records = records
	return nil
}

func writeAtomic(path string, records []Record) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create key file directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temporary key file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	w := bufio.NewWriter(tmp)
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\n", r.Alias, r.URL, r.APIKey)
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write key file: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to set key file permissions: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync key file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close key file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace key file: %w", err)
	}
	return nil
}

func validate(alias, url, apiKey string) error {
	for _, f := range []struct{ name, value string }{
		{"alias", alias},
		{"url", url},
		{"api key", apiKey},
	} {
		if f.value == "" || strings.ContainsAny(f.value, "\t\r\n") {
			return &InvalidFieldError{Field: f.name, Value: f.value}
		}
	}
	return nil
}
