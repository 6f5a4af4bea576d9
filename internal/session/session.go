// Package session tracks a single operator's navigation context in the
// interactive shell: the currently loaded module instance, or root.
package session

import "github.com/arsenal-framework/arsenal/internal/modules"

// Session holds the operator context. Lifetime is bounded to one shell
// process (or one CLI invocation); nothing is persisted.
type Session struct {
	current *modules.Instance
}

// New returns a session at root with no module selected.
func New() *Session { return &Session{} }

// Current returns the active module instance, or nil at root.
func (s *Session) Current() *modules.Instance { return s.current }

// Active reports whether a module is selected.
func (s *Session) Active() bool { return s.current != nil }

// Use replaces the context with a freshly loaded instance. Loading a new
// module while one is active discards the previous instance; history is a
// single level deep, so back always returns to root.
func (s *Session) Use(inst *modules.Instance) {
	s.current = inst
}

// Back discards the active instance and returns to root.
func (s *Session) Back() {
	s.current = nil
}

// Prompt returns the context fragment shown in the shell prompt, empty at
// root.
func (s *Session) Prompt() string {
	if s.current == nil {
		return ""
	}
	return s.current.Descriptor().ID
}
