package dispatch

import "fmt"

// NoModuleSelectedError reports a context-dependent verb issued at root.
type NoModuleSelectedError struct {
	Verb string
}

func (e *NoModuleSelectedError) Error() string {
	return fmt.Sprintf("no module selected: use <id-or-cve> first (%s requires a loaded module)", e.Verb)
}

// UsageError reports a malformed invocation of a known verb.
type UsageError struct {
	Usage string
}

func (e *UsageError) Error() string {
	return fmt.Sprintf("usage: %s", e.Usage)
}

// UnknownCommandError reports an unrecognized verb.
type UnknownCommandError struct {
	Command string
}

func (e *UnknownCommandError) Error() string {
	return fmt.Sprintf("unknown command: %s (type help for available commands)", e.Command)
}
