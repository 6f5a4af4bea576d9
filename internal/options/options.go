// Package options implements the typed option set every module instance is
// configured through. Values always arrive as text (CLI flags, shell input,
// playbook steps) and are coerced into the declared type on assignment.
package options

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Type identifies the declared shape of an option value.
type Type string

const (
	TypeString Type = "string"
	TypeInt    Type = "integer"
	TypeBool   Type = "boolean"
	TypeEnum   Type = "enum"
)

// Spec declares a single option slot on a module.
type Spec struct {
	Name        string
	Type        Type
	Default     string // raw text, coerced like any assignment; empty means unset
	Required    bool
	Description string
	Enum        []string // allowed values for TypeEnum
}

// Entry is one row of a Set snapshot.
type Entry struct {
	Name        string
	Value       any
	IsSet       bool
	Required    bool
	Type        Type
	Description string
	Sensitive   bool
}

// DisplayValue renders the entry for user output, masking sensitive values.
func (e Entry) DisplayValue() string {
	if !e.IsSet {
		return "<not set>"
	}
	if e.Sensitive {
		return "***"
	}
	return fmt.Sprintf("%v", e.Value)
}

var sensitiveKeywords = []string{"PASSWORD", "KEY", "SECRET", "TOKEN"}

func isSensitive(name string) bool {
	upper := strings.ToUpper(name)
	for _, kw := range sensitiveKeywords {
		if strings.Contains(upper, kw) {
			return true
		}
	}
	return false
}

// Set is the option container owned by a module instance. Option names are
// case-insensitive; Set is its only mutator.
type Set struct {
	specs  []Spec
	index  map[string]int // upper-cased name -> specs position
	values map[string]any // upper-cased name -> coerced current value
}

// NewSet builds a Set from specs and applies declared defaults. Spec names
// must be unique within the set (case-insensitively).
func NewSet(specs ...Spec) (*Set, error) {
	s := &Set{
		specs:  make([]Spec, 0, len(specs)),
		index:  make(map[string]int, len(specs)),
		values: make(map[string]any, len(specs)),
	}
	for _, spec := range specs {
		key := strings.ToUpper(spec.Name)
		if key == "" {
			return nil, fmt.Errorf("option spec with empty name")
		}
		if _, exists := s.index[key]; exists {
			return nil, fmt.Errorf("duplicate option %s", key)
		}
		if spec.Type == "" {
			spec.Type = TypeString
		}
		if spec.Type == TypeEnum && len(spec.Enum) == 0 {
			return nil, fmt.Errorf("option %s: enum type without allowed values", key)
		}
		spec.Name = key
		s.index[key] = len(s.specs)
		s.specs = append(s.specs, spec)

		if spec.Default != "" {
			v, err := coerce(spec, spec.Default)
			if err != nil {
				return nil, fmt.Errorf("option %s: bad default: %w", key, err)
			}
			s.values[key] = v
		}
	}
	return s, nil
}

// MustNewSet is NewSet for statically declared specs.
func MustNewSet(specs ...Spec) *Set {
	s, err := NewSet(specs...)
	if err != nil {
		panic(err)
	}
	return s
}

// Set assigns raw to the named option, coercing it to the declared type.
// On any failure the container is left untouched.
func (s *Set) Set(name, raw string) error {
	key := strings.ToUpper(name)
	idx, ok := s.index[key]
	if !ok {
		return &UnknownOptionError{Option: key}
	}
	spec := s.specs[idx]
	v, err := coerce(spec, raw)
	if err != nil {
		return err
	}
	s.values[key] = v
	return nil
}

// Get returns the current value of the named option.
func (s *Set) Get(name string) (any, bool) {
	v, ok := s.values[strings.ToUpper(name)]
	return v, ok
}

// Has reports whether the named option is declared on this set.
func (s *Set) Has(name string) bool {
	_, ok := s.index[strings.ToUpper(name)]
	return ok
}

// String returns the option value as a string, or def when unset.
func (s *Set) String(name, def string) string {
	if v, ok := s.Get(name); ok {
		return fmt.Sprintf("%v", v)
	}
	return def
}

// Int returns the option value as an int, or def when unset.
func (s *Set) Int(name string, def int) int {
	if v, ok := s.Get(name); ok {
		if i, isInt := v.(int); isInt {
			return i
		}
	}
	return def
}

// Bool returns the option value as a bool, or def when unset.
func (s *Set) Bool(name string, def bool) bool {
	if v, ok := s.Get(name); ok {
		if b, isBool := v.(bool); isBool {
			return b
		}
	}
	return def
}

// Validate checks that every required option carries a value. The returned
// MissingRequiredError names all unset required options, not just the first.
func (s *Set) Validate() error {
	var missing []string
	for _, spec := range s.specs {
		if !spec.Required {
			continue
		}
		if v, ok := s.values[spec.Name]; !ok || isEmpty(v) {
			missing = append(missing, spec.Name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return &MissingRequiredError{Options: missing}
	}
	return nil
}

// Snapshot returns the current state of every option in declaration order.
func (s *Set) Snapshot() []Entry {
	out := make([]Entry, 0, len(s.specs))
	for _, spec := range s.specs {
		v, ok := s.values[spec.Name]
		out = append(out, Entry{
			Name:        spec.Name,
			Value:       v,
			IsSet:       ok && !isEmpty(v),
			Required:    spec.Required,
			Type:        spec.Type,
			Description: spec.Description,
			Sensitive:   isSensitive(spec.Name),
		})
	}
	return out
}

func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	if str, ok := v.(string); ok {
		return strings.TrimSpace(str) == ""
	}
	return false
}

func coerce(spec Spec, raw string) (any, error) {
	switch spec.Type {
	case TypeString:
		return raw, nil
	case TypeInt:
		i, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return nil, &CoercionError{Option: spec.Name, Expected: TypeInt, Value: raw}
		}
		return i, nil
	case TypeBool:
		switch strings.ToLower(strings.TrimSpace(raw)) {
		case "true", "yes", "1":
			return true, nil
		case "false", "no", "0":
			return false, nil
		default:
			return nil, &CoercionError{Option: spec.Name, Expected: TypeBool, Value: raw}
		}
	case TypeEnum:
		for _, allowed := range spec.Enum {
			if strings.EqualFold(allowed, strings.TrimSpace(raw)) {
				return allowed, nil
			}
		}
		return nil, &CoercionError{Option: spec.Name, Expected: TypeEnum, Value: raw, Allowed: spec.Enum}
	default:
		return nil, fmt.Errorf("option %s: unsupported type %q", spec.Name, spec.Type)
	}
}
