// Package playbook runs sequences of modules defined in YAML files.
package playbook

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/arsenal-framework/arsenal/internal/app"
	"github.com/arsenal-framework/arsenal/internal/modules"
	"github.com/arsenal-framework/arsenal/internal/registry"
)

// Playbook is a named sequence of module runs.
type Playbook struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Steps       []Step `yaml:"steps" json:"steps"`
}

// Step runs one module with a fixed option assignment.
type Step struct {
	Name      string            `yaml:"name" json:"name"`
	Module    string            `yaml:"module" json:"module"`
	Options   map[string]string `yaml:"options,omitempty" json:"options,omitempty"`
	OnFailure string            `yaml:"on_failure,omitempty" json:"on_failure,omitempty"` // continue, stop (default)
}

// StepResult records the outcome of one executed step.
type StepResult struct {
	Name     string           `json:"name"`
	Module   string           `json:"module"`
	Status   string           `json:"status"` // completed, failed, skipped
	Duration time.Duration    `json:"duration"`
	Outcome  *modules.Outcome `json:"outcome,omitempty"`
	Error    string           `json:"error,omitempty"`
}

// Report summarizes a playbook run.
type Report struct {
	Playbook   string       `json:"playbook"`
	StartTime  time.Time    `json:"start_time"`
	EndTime    time.Time    `json:"end_time"`
	Status     string       `json:"status"` // completed, partial, failed
	Steps      []StepResult `json:"steps"`
	ReportPath string       `json:"-"`
}

// Load reads a playbook definition from a YAML file.
func Load(path string) (*Playbook, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read playbook: %w", err)
	}
	var pb Playbook
	if err := yaml.Unmarshal(data, &pb); err != nil {
		return nil, fmt.Errorf("parse playbook: %w", err)
	}
	return &pb, pb.validate()
}

func (pb *Playbook) validate() error {
	if pb.Name == "" {
		return fmt.Errorf("playbook has no name")
	}
	if len(pb.Steps) == 0 {
		return fmt.Errorf("playbook %q has no steps", pb.Name)
	}
	for i, s := range pb.Steps {
		if s.Module == "" {
			return fmt.Errorf("step %d has no module", i+1)
		}
		switch s.OnFailure {
		case "", "stop", "continue":
		default:
			return fmt.Errorf("step %d: invalid on_failure %q", i+1, s.OnFailure)
		}
	}
	return nil
}

// Save writes a playbook definition to a YAML file.
func Save(pb *Playbook, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(pb)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Run executes the playbook steps in order against the registry. A
// failed step stops the run unless its on_failure is "continue". The
// report is always returned, even on early stop. Overrides are applied
// on top of each step's own options, so RHOST and friends can be
// supplied at invocation time.
func Run(ctx app.Context, reg *registry.Registry, pb *Playbook, overrides map[string]string) (*Report, error) {
	report := &Report{Playbook: pb.Name, StartTime: ctx.Now}

	stopped := false
	for _, step := range pb.Steps {
		if stopped {
			report.Steps = append(report.Steps, StepResult{
				Name: step.Name, Module: step.Module, Status: "skipped",
			})
			continue
		}

		sr := runStep(ctx, reg, step, overrides)
		report.Steps = append(report.Steps, sr)
		if sr.Status == "failed" && step.OnFailure != "continue" {
			stopped = true
		}
	}

	report.EndTime = time.Now()
	report.Status = overallStatus(report.Steps)

	timestamp := ctx.Now.Format("20060102-150405")
	reportPath := ctx.Workspace.Path("playbooks", fmt.Sprintf("%s-%s.json", sanitizeFilename(pb.Name), timestamp))
	if err := saveReport(report, reportPath); err != nil {
		ctx.Logger.Warn("failed to save playbook report", "path", reportPath, "err", err)
	} else {
		report.ReportPath = reportPath
	}

	if stopped {
		return report, fmt.Errorf("playbook %q stopped on failed step", pb.Name)
	}
	return report, nil
}

func runStep(ctx app.Context, reg *registry.Registry, step Step, overrides map[string]string) StepResult {
	sr := StepResult{Name: step.Name, Module: step.Module}
	start := time.Now()
	defer func() { sr.Duration = time.Since(start) }()

	inst, err := reg.ResolveInstance(step.Module)
	if err != nil {
		sr.Status = "failed"
		sr.Error = err.Error()
		return sr
	}

	assigned := make(map[string]string, len(step.Options)+len(overrides))
	for name, value := range step.Options {
		assigned[name] = value
	}
	for name, value := range overrides {
		if inst.Options().Has(name) {
			assigned[name] = value
		}
	}

	// Apply options in a stable order so coercion errors are
	// deterministic.
	names := make([]string, 0, len(assigned))
	for name := range assigned {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := inst.Options().Set(name, assigned[name]); err != nil {
			sr.Status = "failed"
			sr.Error = err.Error()
			return sr
		}
	}

	ctx.Logger.Info("playbook step", "step", step.Name, "module", step.Module)
	outcome, err := inst.Run(ctx)
	if err != nil {
		sr.Status = "failed"
		sr.Error = err.Error()
		return sr
	}
	sr.Status = "completed"
	sr.Outcome = &outcome
	return sr
}

func overallStatus(steps []StepResult) string {
	completed, failed := 0, 0
	for _, s := range steps {
		switch s.Status {
		case "completed":
			completed++
		case "failed":
			failed++
		}
	}
	switch {
	case failed == 0:
		return "completed"
	case completed == 0:
		return "failed"
	default:
		return "partial"
	}
}

func saveReport(report *Report, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return err
	}
	return w.Flush()
}

func sanitizeFilename(name string) string {
	replacer := strings.NewReplacer(" ", "-", "/", "-", "\\", "-", ":", "-")
	return strings.ToLower(replacer.Replace(name))
}

// Predefined contains playbook templates that ship with the binary.
var Predefined = map[string]*Playbook{
	"smoke": {
		Name:        "Smoke Test",
		Description: "Verifies module plumbing end to end",
		Steps: []Step{
			{Name: "Hello", Module: "misc.hello_world", Options: map[string]string{"MESSAGE": "arsenal smoke test"}},
		},
	},
	"quick-recon": {
		Name:        "Quick Reconnaissance",
		Description: "Port scan followed by service detection",
		Steps: []Step{
			{Name: "Port Scan", Module: "enumeration.portscan", OnFailure: "continue"},
			{Name: "Service Detection", Module: "enumeration.services"},
		},
	},
}

// GetPredefined returns a predefined playbook by name.
func GetPredefined(name string) (*Playbook, bool) {
	pb, ok := Predefined[name]
	return pb, ok
}

// ListPredefined returns the names of the predefined playbooks, sorted.
func ListPredefined() []string {
	names := make([]string, 0, len(Predefined))
	for name := range Predefined {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
