// Package dispatch translates commands, whether shell lines or CLI
// invocations, into registry and session actions. The REPL and the one-shot
// CLI path share the same dispatcher; only the session lifetime differs.
package dispatch

import (
	"fmt"
	"strings"

	"github.com/arsenal-framework/arsenal/internal/app"
	"github.com/arsenal-framework/arsenal/internal/modules"
	"github.com/arsenal-framework/arsenal/internal/options"
	"github.com/arsenal-framework/arsenal/internal/registry"
	"github.com/arsenal-framework/arsenal/internal/session"
)

// Kind tags the payload carried by a Result.
type Kind int

const (
	KindNone Kind = iota
	KindListing
	KindSearch
	KindLoaded
	KindOptionSet
	KindSnapshot
	KindInfo
	KindOutcome
	KindMessage
	KindHelp
)

// Result is the uniform success payload of a dispatched verb.
type Result struct {
	Kind        Kind
	Descriptors []modules.Descriptor
	Descriptor  modules.Descriptor
	Snapshot    []options.Entry
	State       modules.State
	Outcome     modules.Outcome
	Message     string
	Query       string
}

// Dispatcher applies verbs against the registry and a session. The registry
// handle is immutable; the session carries all mutable state.
type Dispatcher struct {
	Reg *registry.Registry
	App app.Context
}

// New builds a dispatcher over the given registry and app context.
func New(reg *registry.Registry, appCtx app.Context) *Dispatcher {
	return &Dispatcher{Reg: reg, App: appCtx}
}

// List handles `ls [prefix]`.
func (d *Dispatcher) List(prefix string) (Result, error) {
	return Result{Kind: KindListing, Descriptors: d.Reg.List(prefix), Query: prefix}, nil
}

// Search handles `search <query>`.
func (d *Dispatcher) Search(query string) (Result, error) {
	if strings.TrimSpace(query) == "" {
		return Result{}, &UsageError{Usage: "search <query>"}
	}
	return Result{Kind: KindSearch, Descriptors: d.Reg.Search(query), Query: query}, nil
}

// Use handles `use <id-or-cve>`: resolve and instantiate, then replace the
// session context. On resolution failure the session is left unchanged.
func (d *Dispatcher) Use(sess *session.Session, name string) (Result, error) {
	inst, err := d.Reg.ResolveInstance(name)
	if err != nil {
		return Result{}, err
	}
	sess.Use(inst)
	d.App.Logger.Debug("module loaded", "id", inst.Descriptor().ID)
	return Result{
		Kind:       KindLoaded,
		Descriptor: inst.Descriptor(),
		State:      inst.State(),
		Snapshot:   inst.Options().Snapshot(),
	}, nil
}

// SetOption handles `set <opt> <value>` against the active instance.
func (d *Dispatcher) SetOption(sess *session.Session, name, value string) (Result, error) {
	inst := sess.Current()
	if inst == nil {
		return Result{}, &NoModuleSelectedError{Verb: "set"}
	}
	if err := inst.Options().Set(name, value); err != nil {
		return Result{}, err
	}
	return Result{
		Kind:    KindOptionSet,
		State:   inst.State(),
		Message: fmt.Sprintf("%s => %s", strings.ToUpper(name), value),
	}, nil
}

// Show handles `show options`.
func (d *Dispatcher) Show(sess *session.Session) (Result, error) {
	inst := sess.Current()
	if inst == nil {
		return Result{}, &NoModuleSelectedError{Verb: "show options"}
	}
	return Result{
		Kind:       KindSnapshot,
		Descriptor: inst.Descriptor(),
		State:      inst.State(),
		Snapshot:   inst.Options().Snapshot(),
	}, nil
}

// Info handles `info [id-or-cve]`. Without an argument it describes the
// active instance. Info never transitions lifecycle and needs no validation.
func (d *Dispatcher) Info(sess *session.Session, name string) (Result, error) {
	if name == "" {
		inst := sess.Current()
		if inst == nil {
			return Result{}, &NoModuleSelectedError{Verb: "info"}
		}
		return Result{
			Kind:       KindInfo,
			Descriptor: inst.Descriptor(),
			State:      inst.State(),
			Snapshot:   inst.Options().Snapshot(),
		}, nil
	}
	inst, err := d.Reg.ResolveInstance(name)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Kind:       KindInfo,
		Descriptor: inst.Descriptor(),
		State:      inst.State(),
		Snapshot:   inst.Options().Snapshot(),
	}, nil
}

// Run handles `run` against the active instance: validate, then execute.
// Failures are captured and reported; they never unwind past the dispatcher.
func (d *Dispatcher) Run(sess *session.Session) (Result, error) {
	inst := sess.Current()
	if inst == nil {
		return Result{}, &NoModuleSelectedError{Verb: "run"}
	}
	return d.runInstance(inst)
}

func (d *Dispatcher) runInstance(inst *modules.Instance) (Result, error) {
	id := inst.Descriptor().ID
	d.App.Logger.Info("executing module", "id", id)
	outcome, err := inst.Run(d.App)
	if err != nil {
		d.App.Logger.Warn("module execution failed", "id", id, "err", err)
		return Result{}, err
	}
	return Result{
		Kind:       KindOutcome,
		Descriptor: inst.Descriptor(),
		State:      inst.State(),
		Outcome:    outcome,
	}, nil
}

// Back handles `back`: clears the session context and returns to root.
func (d *Dispatcher) Back(sess *session.Session) (Result, error) {
	if !sess.Active() {
		return Result{Kind: KindMessage, Message: "already at root"}, nil
	}
	sess.Back()
	return Result{Kind: KindMessage, Message: "module unloaded"}, nil
}

// RunOnce implements the one-shot CLI form: resolve, apply all KEY=VALUE
// pairs, validate, execute, all against an ephemeral session. With infoOnly
// it short-circuits to the descriptor display after applying pairs.
func (d *Dispatcher) RunOnce(name string, pairs []string, infoOnly bool) (Result, error) {
	sess := session.New()
	if _, err := d.Use(sess, name); err != nil {
		return Result{}, err
	}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return Result{}, &UsageError{Usage: fmt.Sprintf("invalid option %q: use KEY=VALUE", pair)}
		}
		if _, err := d.SetOption(sess, key, value); err != nil {
			return Result{}, err
		}
	}
	if infoOnly {
		return d.Info(sess, "")
	}
	return d.Run(sess)
}
