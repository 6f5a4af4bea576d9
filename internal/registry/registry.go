// Package registry loads module descriptors from YAML manifests and serves
// resolution, listing, and search over them. The registry is built once at
// startup and never mutated afterwards, so concurrent readers need no
// locking.
package registry

import (
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"

	"github.com/arsenal-framework/arsenal/internal/modules"
)

const cvePrefix = "CVE-"

// manifestFile is the on-disk shape of a module manifest.
type manifestFile struct {
	Modules []manifestEntry `yaml:"modules"`
}

type manifestEntry struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	ModulePath  string `yaml:"module_path"`
	Category    string `yaml:"category"`
	Description string `yaml:"description"`
	Author      string `yaml:"author"`
	CVE         string `yaml:"cve_id"`
}

// LoadError describes a manifest entry that was rejected during loading.
// Individual bad entries are skipped, not fatal.
type LoadError struct {
	Source string
	Reason string
}

func (e LoadError) Error() string {
	return fmt.Sprintf("%s: %s", e.Source, e.Reason)
}

// Registry is the load-time-built index of all module descriptors.
type Registry struct {
	ordered    []modules.Descriptor // sorted by id
	byID       map[string]int
	byCVE      map[string]string // upper-cased CVE id -> module id
	searchText map[string]string // module id -> lower-cased indexed fields
	warnings   []LoadError
}

// Load parses every *.yaml/*.yml manifest under fsys and builds the registry.
// Malformed or conflicting entries are skipped with a warning; a registry
// with no descriptors at all is a fatal startup error.
func Load(fsys fs.FS, logger *log.Logger) (*Registry, error) {
	r := &Registry{
		byID:       make(map[string]int),
		byCVE:      make(map[string]string),
		searchText: make(map[string]string),
	}

	var paths []string
	err := fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan manifests: %w", err)
	}
	sort.Strings(paths)

	for _, path := range paths {
		r.loadFile(fsys, path, logger)
	}

	if len(r.ordered) == 0 {
		return nil, fmt.Errorf("no module descriptors could be loaded")
	}

	sort.Slice(r.ordered, func(i, j int) bool { return r.ordered[i].ID < r.ordered[j].ID })
	for idx, d := range r.ordered {
		r.byID[d.ID] = idx
	}
	return r, nil
}

func (r *Registry) loadFile(fsys fs.FS, path string, logger *log.Logger) {
	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		r.warn(logger, path, fmt.Sprintf("unreadable manifest: %v", err))
		return
	}
	var mf manifestFile
	if err := yaml.Unmarshal(data, &mf); err != nil {
		r.warn(logger, path, fmt.Sprintf("failed to parse manifest: %v", err))
		return
	}
	if len(mf.Modules) == 0 {
		r.warn(logger, path, "manifest declares no modules")
		return
	}
	for _, entry := range mf.Modules {
		if reason := r.register(entry, path); reason != "" {
			r.warn(logger, path, reason)
		}
	}
}

// register validates and indexes one manifest entry. It returns a non-empty
// rejection reason when the entry is skipped.
func (r *Registry) register(entry manifestEntry, source string) string {
	var missing []string
	for _, f := range []struct{ key, val string }{
		{"id", entry.ID},
		{"name", entry.Name},
		{"module_path", entry.ModulePath},
		{"category", entry.Category},
		{"description", entry.Description},
		{"author", entry.Author},
	} {
		if strings.TrimSpace(f.val) == "" {
			missing = append(missing, f.key)
		}
	}
	if len(missing) > 0 {
		return fmt.Sprintf("entry %q missing required fields: %s", entry.ID, strings.Join(missing, ", "))
	}

	if _, dup := r.byID[entry.ID]; dup {
		return fmt.Sprintf("duplicate module id %s", entry.ID)
	}
	// A dotted id may not be both a leaf and an ancestor namespace of
	// another id; the collision is rejected at load time.
	prefix := entry.ID + "."
	for _, existing := range r.ordered {
		if strings.HasPrefix(existing.ID, prefix) || strings.HasPrefix(entry.ID, existing.ID+".") {
			return fmt.Sprintf("module id %s conflicts with namespace of %s", entry.ID, existing.ID)
		}
	}

	cveKey := strings.ToUpper(strings.TrimSpace(entry.CVE))
	if cveKey != "" {
		if other, dup := r.byCVE[cveKey]; dup {
			return fmt.Sprintf("duplicate cve id %s (already registered by %s)", cveKey, other)
		}
	}

	d := modules.Descriptor{
		ID:          entry.ID,
		Name:        entry.Name,
		Category:    entry.Category,
		CVE:         cveKey,
		Description: entry.Description,
		Author:      entry.Author,
		EntryRef:    entry.ModulePath,
		Source:      source,
	}
	r.byID[d.ID] = len(r.ordered)
	r.ordered = append(r.ordered, d)
	if cveKey != "" {
		r.byCVE[cveKey] = d.ID
	}
	r.searchText[d.ID] = strings.ToLower(strings.Join([]string{
		d.ID, d.Name, d.Description, d.CVE, d.Category, d.Author,
	}, " "))
	return ""
}

func (r *Registry) warn(logger *log.Logger, source, reason string) {
	r.warnings = append(r.warnings, LoadError{Source: source, Reason: reason})
	if logger != nil {
		logger.Warn("manifest entry skipped", "source", source, "reason", reason)
	}
}

// Warnings returns the load errors collected for skipped entries.
func (r *Registry) Warnings() []LoadError { return r.warnings }

// Resolve finds the descriptor for an exact module id (case-sensitive) or a
// CVE identifier (case-insensitive). Category prefixes never resolve.
func (r *Registry) Resolve(name string) (modules.Descriptor, error) {
	if idx, ok := r.byID[name]; ok {
		return r.ordered[idx], nil
	}
	if strings.HasPrefix(strings.ToUpper(name), cvePrefix) {
		if id, ok := r.byCVE[strings.ToUpper(name)]; ok {
			return r.ordered[r.byID[id]], nil
		}
	}
	return modules.Descriptor{}, &NotFoundError{Name: name}
}

// List returns descriptors in ascending id order. With a prefix, only
// descriptors whose id equals the prefix or sits under it as a dotted
// namespace are returned.
func (r *Registry) List(prefix string) []modules.Descriptor {
	if prefix == "" {
		out := make([]modules.Descriptor, len(r.ordered))
		copy(out, r.ordered)
		return out
	}
	var out []modules.Descriptor
	for _, d := range r.ordered {
		if d.ID == prefix || strings.HasPrefix(d.ID, prefix+".") {
			out = append(out, d)
		}
	}
	return out
}

// Instantiate builds a fresh instance of the described module with defaults
// re-applied. Instances are never cached or shared between calls.
func (r *Registry) Instantiate(d modules.Descriptor) (*modules.Instance, error) {
	mod, ok := modules.Build(d.EntryRef)
	if !ok {
		return nil, fmt.Errorf("no builder registered for %s (entry %s)", d.ID, d.EntryRef)
	}
	return modules.NewInstance(d, mod), nil
}

// ResolveInstance resolves a name and instantiates the result.
func (r *Registry) ResolveInstance(name string) (*modules.Instance, error) {
	d, err := r.Resolve(name)
	if err != nil {
		return nil, err
	}
	return r.Instantiate(d)
}

// Stats summarizes the loaded registry.
type Stats struct {
	Total      int
	CVEs       int
	ByCategory map[string]int
}

// Stats returns module counts, partitioned by top-level category.
func (r *Registry) Stats() Stats {
	s := Stats{Total: len(r.ordered), CVEs: len(r.byCVE), ByCategory: make(map[string]int)}
	for _, d := range r.ordered {
		s.ByCategory[modules.TopCategory(d.ID)]++
	}
	return s
}

// NotFoundError reports a name that resolved to no module.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("module not found: %s", e.Name)
}
