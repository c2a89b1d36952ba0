package params

import (
	"fmt"
	"maps"
	"strconv"
	"strings"
	"sync"

	"github.com/vmihailenco/msgpack/v5"
)

// Section names a configuration phase.
type Section string

const (
	Global     Section = ""
	SelectHead Section = "SelectHead"
	BuildHead  Section = "BuildHead"
	Search     Section = "Search"
	Update     Section = "Update"
	Persist    Section = "Persist"
)

// Well-known parameter names.
const (
	TreeNumber              = "TreeNumber"
	BKTKmeansK              = "BKTKmeansK"
	BKTLeafSize             = "BKTLeafSize"
	SamplesNumber           = "SamplesNumber"
	Ratio                   = "Ratio"
	KmeansIterations        = "KmeansIterations"
	Seed                    = "Seed"
	NumberOfThreads         = "NumberOfThreads"
	MaxCheck                = "MaxCheck"
	SearchInternalResultNum = "SearchInternalResultNum"
	PostingSplitLimit       = "PostingSplitLimit"
	SplitKmeansIterations   = "SplitKmeansIterations"
	Compression             = "Compression"
	IOLimitBytesPerSec      = "IOLimitBytesPerSec"
)

type key struct {
	section string
	name    string
}

func makeKey(section Section, name string) key {
	return key{section: strings.ToLower(string(section)), name: strings.ToLower(name)}
}

var defaults = map[key]string{
	makeKey(SelectHead, TreeNumber):          "1",
	makeKey(SelectHead, BKTKmeansK):          "32",
	makeKey(SelectHead, BKTLeafSize):         "8",
	makeKey(SelectHead, SamplesNumber):       "1000",
	makeKey(SelectHead, Ratio):               "0.1",
	makeKey(SelectHead, KmeansIterations):    "100",
	makeKey(SelectHead, Seed):                "42",
	makeKey(Search, SearchInternalResultNum): "32",
	makeKey(Update, PostingSplitLimit):       "0",
	makeKey(Update, SplitKmeansIterations):   "25",
	makeKey(Persist, Compression):            "lz4",
	makeKey(Persist, IOLimitBytesPerSec):     "0",
	makeKey(Global, MaxCheck):                "8192",
	makeKey(Global, NumberOfThreads):         "1",
}

// Default returns the documented default for (section, name), if any.
func Default(section Section, name string) (string, bool) {
	if v, ok := defaults[makeKey(section, name)]; ok {
		return v, true
	}
	v, ok := defaults[makeKey(Global, name)]
	return v, ok
}

// Entry is a single stored parameter.
type Entry struct {
	Section string `msgpack:"s"`
	Name    string `msgpack:"n"`
	Value   string `msgpack:"v"`
}

// Store holds parameter values. It is safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	values map[key]Entry
}

// New creates an empty store.
func New() *Store {
	return &Store{values: make(map[key]Entry)}
}

// Set stores value for (section, name). The original spelling of the name
// is kept for snapshots.
func (s *Store) Set(section Section, name, value string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("params: empty name")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[makeKey(section, name)] = Entry{Section: string(section), Name: name, Value: value}
	return nil
}

// Lookup returns the explicitly stored value, falling back from section to
// the global section. Defaults are not consulted.
func (s *Store) Lookup(section Section, name string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.values[makeKey(section, name)]; ok {
		return e.Value, true
	}
	if section != Global {
		if e, ok := s.values[makeKey(Global, name)]; ok {
			return e.Value, true
		}
	}
	return "", false
}

// String returns the stored value or the default.
func (s *Store) String(section Section, name string) string {
	if v, ok := s.Lookup(section, name); ok {
		return v
	}
	v, _ := Default(section, name)
	return v
}

// Int returns the value coerced to int, or the default if it does not parse.
func (s *Store) Int(section Section, name string) int {
	if v, ok := s.Lookup(section, name); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return int(f)
		}
	}
	d, _ := Default(section, name)
	n, _ := strconv.Atoi(d)
	return n
}

// Float returns the value coerced to float64, or the default.
func (s *Store) Float(section Section, name string) float64 {
	if v, ok := s.Lookup(section, name); ok {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	}
	d, _ := Default(section, name)
	f, _ := strconv.ParseFloat(d, 64)
	return f
}

// Bool returns the value coerced to bool, or the default.
func (s *Store) Bool(section Section, name string) bool {
	if v, ok := s.Lookup(section, name); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	d, _ := Default(section, name)
	b, _ := strconv.ParseBool(d)
	return b
}

// Entries returns all stored entries.
func (s *Store) Entries() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, 0, len(s.values))
	for _, e := range s.values {
		out = append(out, e)
	}
	return out
}

// Clone returns an independent copy of the store.
func (s *Store) Clone() *Store {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return &Store{values: maps.Clone(s.values)}
}

// Replace swaps the contents of s for those of other.
func (s *Store) Replace(other *Store) {
	vals := other.Clone().values
	s.mu.Lock()
	s.values = vals
	s.mu.Unlock()
}

// MarshalBinary encodes the stored entries with msgpack.
func (s *Store) MarshalBinary() ([]byte, error) {
	return msgpack.Marshal(s.Entries())
}

// UnmarshalBinary replaces the store contents with msgpack-encoded entries.
func (s *Store) UnmarshalBinary(data []byte) error {
	var entries []Entry
	if err := msgpack.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("params: decode: %w", err)
	}
	values := make(map[key]Entry, len(entries))
	for _, e := range entries {
		values[makeKey(Section(e.Section), e.Name)] = e
	}
	s.mu.Lock()
	s.values = values
	s.mu.Unlock()
	return nil
}
