package modules

import (
	"errors"
	"fmt"
	"strings"

	"github.com/arsenal-framework/arsenal/internal/app"
	"github.com/arsenal-framework/arsenal/internal/options"
)

// State is the lifecycle position of a module instance.
type State int

const (
	StateUnloaded State = iota
	StateLoaded
	StateConfigured
	StateRunning
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateLoaded:
		return "loaded"
	case StateConfigured:
		return "configured"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Instance pairs a built module with its descriptor and tracks lifecycle.
// Instances are never shared across sessions and never persisted.
type Instance struct {
	desc    Descriptor
	mod     Module
	state   State
	lastErr error
}

// NewInstance wraps a freshly built module. The instance starts Loaded, or
// Configured when its defaults already satisfy every required option.
func NewInstance(desc Descriptor, mod Module) *Instance {
	inst := &Instance{desc: desc, mod: mod, state: StateLoaded}
	if mod.Options().Validate() == nil {
		inst.state = StateConfigured
	}
	return inst
}

// Descriptor returns the shared metadata record.
func (i *Instance) Descriptor() Descriptor { return i.desc }

// Options returns the instance's option set.
func (i *Instance) Options() *options.Set { return i.mod.Options() }

// State returns the current lifecycle state. Loaded/Configured are derived
// from option validation so a successful set moves the instance forward
// without an explicit transition call.
func (i *Instance) State() State {
	switch i.state {
	case StateRunning, StateCompleted, StateFailed:
		return i.state
	}
	if i.mod.Options().Validate() == nil {
		return StateConfigured
	}
	return StateLoaded
}

// LastError returns the captured execution error, if the last run failed.
func (i *Instance) LastError() error { return i.lastErr }

// Run validates and executes the module. Execution is only entered with all
// required options satisfied; panics inside Execute are captured as an
// ExecutionError rather than unwinding past the module boundary. Completed
// and Failed instances may be run again: options are retained, so a re-run
// just invokes Execute once more.
func (i *Instance) Run(ctx app.Context) (Outcome, error) {
	if err := i.mod.Options().Validate(); err != nil {
		var missing *options.MissingRequiredError
		nr := &NotReadyError{ID: i.desc.ID}
		if errors.As(err, &missing) {
			nr.Missing = missing.Options
		}
		return Outcome{}, nr
	}

	i.state = StateRunning
	outcome, err := i.execute(ctx)
	if err != nil {
		i.state = StateFailed
		i.lastErr = err
		return Outcome{}, &ExecutionError{ID: i.desc.ID, Err: err}
	}
	i.state = StateCompleted
	i.lastErr = nil
	return outcome, nil
}

func (i *Instance) execute(ctx app.Context) (out Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("module panicked: %v", r)
		}
	}()
	return i.mod.Execute(ctx)
}

// NotReadyError reports a run attempted before all required options were set.
type NotReadyError struct {
	ID      string
	Missing []string
}

func (e *NotReadyError) Error() string {
	if len(e.Missing) == 0 {
		return fmt.Sprintf("%s is not ready to run", e.ID)
	}
	return fmt.Sprintf("%s is not ready to run: missing required options: %s",
		e.ID, strings.Join(e.Missing, ", "))
}

// ExecutionError wraps a failure raised by a module's Execute, attributed to
// the module that raised it.
type ExecutionError struct {
	ID  string
	Err error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("module %s failed: %v", e.ID, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }
