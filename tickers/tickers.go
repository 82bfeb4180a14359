// Package tickers maintains the mapping from ISIN to market ticker.
//
// The mapping lives in a hand editable CSV file with the header
// "ISIN,NAME,TICKER". Securities found in the portfolio but unknown to the
// file are added with an empty ticker, for the user to fill in.
package tickers

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"slices"
	"strings"

	"github.com/etnz/holdings/internal/atomicfile"
	"github.com/rs/zerolog"
)

// DefaultFile is the default mapping file, relative to the working directory.
const DefaultFile = "ticker_mappings.csv"

// Column names of the mapping file.
const (
	ColumnISIN   = "ISIN"
	ColumnName   = "NAME"
	ColumnTicker = "TICKER"
)

// Entry is one row of the mapping file.
type Entry struct {
	ISIN   string
	Name   string
	Ticker string // empty when unknown
}

// MappingFileCorruptError is returned when the mapping file cannot be parsed.
type MappingFileCorruptError struct {
	File string
	Line int
	Err  error
}

func (e *MappingFileCorruptError) Error() string {
	return fmt.Sprintf("ticker mapping file %s:%d is corrupt: %v", e.File, e.Line, e.Err)
}

func (e *MappingFileCorruptError) Unwrap() error { return e.Err }

// Security is what the store needs to know of a portfolio security.
type Security struct {
	ISIN string
	Name string
}

// Store is the in-memory content of a mapping file.
//
// A Store is not safe for concurrent modification. Resolve can be called
// concurrently once reconciliation is done.
type Store struct {
	path    string
	exists  bool // whether the file existed when loaded, or has been saved
	entries map[string]*Entry
	log     zerolog.Logger
}

// New returns an empty store persisted to path.
func New(path string, log zerolog.Logger) *Store {
	return &Store{
		path:    path,
		entries: make(map[string]*Entry),
		log:     log.With().Str("component", "tickers").Logger(),
	}
}

// Load reads the mapping file at path.
//
// A missing file is an empty store. A file that cannot be parsed is reported
// with a *MappingFileCorruptError.
func Load(path string, log zerolog.Logger) (*Store, error) {
	s := New(path, log)
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cannot open ticker mapping file: %w", err)
	}
	defer f.Close()
	if err := s.decode(f); err != nil {
		return nil, err
	}
	s.exists = true
	s.log.Debug().Str("file", path).Int("entries", len(s.entries)).Msg("ticker mappings loaded")
	return s, nil
}

// decode reads CSV content into the store.
func (s *Store) decode(r io.Reader) error {
	corrupt := func(line int, err error) error {
		return &MappingFileCorruptError{File: s.path, Line: line, Err: err}
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil // empty file, same as missing
	}
	if err != nil {
		return corrupt(1, err)
	}
	index := map[string]int{}
	for i, h := range header {
		index[strings.ToUpper(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	if _, ok := index[ColumnISIN]; !ok {
		return corrupt(1, fmt.Errorf("missing %s column in header %q", ColumnISIN, strings.Join(header, ",")))
	}
	get := func(record []string, column string) string {
		i, ok := index[column]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return corrupt(errorLine(err), err)
		}
		line, _ := reader.FieldPos(0)
		isin := get(record, ColumnISIN)
		if isin == "" {
			return corrupt(line, errors.New("missing ISIN"))
		}
		if _, dup := s.entries[isin]; dup {
			return corrupt(line, fmt.Errorf("duplicate ISIN %s", isin))
		}
		s.entries[isin] = &Entry{ISIN: isin, Name: get(record, ColumnName), Ticker: get(record, ColumnTicker)}
	}
}

// errorLine returns the line where a CSV parse error started.
func errorLine(err error) int {
	var perr *csv.ParseError
	if errors.As(err, &perr) {
		return perr.StartLine
	}
	return 0
}

// Path returns the file backing the store.
func (s *Store) Path() string { return s.path }

// Len returns the number of entries.
func (s *Store) Len() int { return len(s.entries) }

// Resolve returns the ticker of isin. ok is false when the ISIN is unknown or
// its ticker is empty.
func (s *Store) Resolve(isin string) (ticker string, ok bool) {
	e, found := s.entries[isin]
	if !found || e.Ticker == "" {
		return "", false
	}
	return e.Ticker, true
}

// Entries returns a copy of all entries sorted by ISIN.
func (s *Store) Entries() []Entry {
	entries := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, *e)
	}
	slices.SortFunc(entries, func(a, b Entry) int { return strings.Compare(a.ISIN, b.ISIN) })
	return entries
}

// Unmapped returns the entries without a ticker, sorted by ISIN.
func (s *Store) Unmapped() []Entry {
	var entries []Entry
	for _, e := range s.Entries() {
		if e.Ticker == "" {
			entries = append(entries, e)
		}
	}
	return entries
}

// Set fills the ticker of isin if it has none.
//
// It reports whether the store changed. An existing ticker is never replaced.
func (s *Store) Set(isin, ticker string) bool {
	e, ok := s.entries[isin]
	if !ok {
		s.entries[isin] = &Entry{ISIN: isin, Ticker: ticker}
		return true
	}
	if e.Ticker != "" || ticker == "" {
		return false
	}
	e.Ticker = ticker
	return true
}

// Reconcile makes sure every security has an entry, then saves the store if
// anything changed or if the file does not exist yet.
//
// New ISINs get an empty ticker and a warning. Empty names are filled in.
// Tickers are never modified and entries are never removed. Reconcile is
// idempotent.
func (s *Store) Reconcile(securities []Security) (added []string, err error) {
	changed := false
	for _, sec := range securities {
		e, ok := s.entries[sec.ISIN]
		if !ok {
			s.entries[sec.ISIN] = &Entry{ISIN: sec.ISIN, Name: sec.Name}
			added = append(added, sec.ISIN)
			changed = true
			s.log.Warn().Str("isin", sec.ISIN).Str("name", sec.Name).Str("file", s.path).Msg("no ticker mapping, add the ticker to the mapping file")
			continue
		}
		if e.Name == "" && sec.Name != "" {
			e.Name = sec.Name
			changed = true
		}
	}
	if changed || !s.exists {
		if err := s.Save(); err != nil {
			return added, err
		}
	}
	return added, nil
}

// Encode writes the store as CSV, sorted by ISIN.
func (s *Store) Encode(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{ColumnISIN, ColumnName, ColumnTicker}); err != nil {
		return err
	}
	for _, e := range s.Entries() {
		if err := cw.Write([]string{e.ISIN, e.Name, e.Ticker}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Save writes the whole store to its file, atomically.
func (s *Store) Save() error {
	var buf bytes.Buffer
	if err := s.Encode(&buf); err != nil {
		return fmt.Errorf("cannot encode ticker mappings: %w", err)
	}
	if err := atomicfile.WriteFile(s.path, buf.Bytes()); err != nil {
		return fmt.Errorf("cannot save ticker mappings: %w", err)
	}
	s.exists = true
	return nil
}
