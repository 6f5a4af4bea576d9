// Package modules defines the contract every capability module implements,
// the lifecycle of a loaded module instance, and the build table mapping
// manifest entry references to constructors.
package modules

import (
	"sort"
	"strings"

	"github.com/arsenal-framework/arsenal/internal/app"
	"github.com/arsenal-framework/arsenal/internal/options"
)

// Descriptor is the immutable metadata record identifying a module. Built by
// the registry from manifest entries; shared read-only with instances.
type Descriptor struct {
	ID          string // dotted namespace path, e.g. cloud.aws.ec2
	Name        string
	Category    string // top-level namespace segment
	CVE         string // optional, unique when present
	Description string
	Author      string
	EntryRef    string // opaque handle used to build the module
	Source      string // manifest file the entry came from
}

// Outcome is the result payload of a module execution.
type Outcome struct {
	Success bool           `json:"success"`
	Summary string         `json:"summary,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
}

// Module represents a runnable capability (exploit, enumerator, probe).
// Category is metadata carried by the descriptor, not a type distinction.
type Module interface {
	// Name returns a short identifier for the module.
	Name() string
	// Description returns a short human-readable description.
	Description() string
	// Options returns the option set the module is configured through.
	Options() *options.Set
	// Execute runs the module. It is only invoked after option validation
	// succeeded and may perform arbitrary blocking I/O.
	Execute(ctx app.Context) (Outcome, error)
}

// Builder constructs a fresh module with its options at defaults.
type Builder func() Module

var builders = make(map[string]Builder)

// RegisterBuilder adds a constructor to the build table under the given
// entry reference. Later registrations for the same reference win; the table
// is populated once during startup wiring.
func RegisterBuilder(ref string, b Builder) {
	builders[ref] = b
}

// Build constructs the module registered under ref.
func Build(ref string) (Module, bool) {
	b, ok := builders[ref]
	if !ok {
		return nil, false
	}
	return b(), true
}

// BuilderRefs returns the registered entry references, sorted.
func BuilderRefs() []string {
	refs := make([]string, 0, len(builders))
	for ref := range builders {
		refs = append(refs, ref)
	}
	sort.Strings(refs)
	return refs
}

// TopCategory returns the first segment of a dotted module id.
func TopCategory(id string) string {
	if i := strings.IndexByte(id, '.'); i > 0 {
		return id[:i]
	}
	return id
}
