package arsenal

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/spf13/viper"

	"github.com/arsenal-framework/arsenal/internal/modules"
	"github.com/arsenal-framework/arsenal/internal/registry"
	"github.com/arsenal-framework/arsenal/manifests"
	"github.com/arsenal-framework/arsenal/pkg/version"
)

// The shipped manifests and the compiled-in builder table must agree:
// every descriptor instantiates and every builder is referenced.
func TestBuiltinManifestsComplete(t *testing.T) {
	reg, err := registry.Load(manifests.FS, log.New(io.Discard))
	if err != nil {
		t.Fatalf("load built-in manifests: %v", err)
	}
	if warnings := reg.Warnings(); len(warnings) != 0 {
		t.Fatalf("built-in manifests produced warnings: %v", warnings)
	}

	referenced := make(map[string]bool)
	for _, d := range reg.List("") {
		inst, err := reg.Instantiate(d)
		if err != nil {
			t.Errorf("instantiate %s: %v", d.ID, err)
			continue
		}
		if inst.Options() == nil {
			t.Errorf("%s has no option set", d.ID)
		}
		referenced[d.EntryRef] = true
	}

	for _, ref := range modules.BuilderRefs() {
		if !referenced[ref] {
			t.Errorf("builder %s has no manifest entry", ref)
		}
	}
}

func TestVersionFlag(t *testing.T) {
	for _, flag := range []string{"--version", "-v"} {
		var buf bytes.Buffer
		rootCmd.SetOut(&buf)
		rootCmd.SetErr(&buf)
		rootCmd.SetArgs([]string{flag})
		err := rootCmd.Execute()
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
		if err != nil {
			t.Fatalf("%s: %v", flag, err)
		}
		if got := strings.TrimSpace(buf.String()); got != version.String() {
			t.Fatalf("%s printed %q, want %q", flag, got, version.String())
		}
	}
}

// Argument and flag mistakes are misuse, not runtime failure.
func TestMisuseExitCode(t *testing.T) {
	cases := [][]string{
		{"run"},
		{"search"},
		{"info", "too", "many"},
		{"--no-such-flag"},
		{"ls", "--no-such-flag"},
	}
	for _, args := range cases {
		rootCmd.SetOut(io.Discard)
		rootCmd.SetErr(io.Discard)
		rootCmd.SetArgs(args)
		err := rootCmd.Execute()
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
		if err == nil {
			t.Fatalf("%v: expected an error", args)
		}
		if code := exitCode(err); code != 2 {
			t.Errorf("%v: exit code %d, want 2", args, code)
		}
	}
}

func TestInfoWithoutArgumentPrintsStats(t *testing.T) {
	viper.Set("workspace", t.TempDir())
	t.Cleanup(func() { viper.Set("workspace", "./work") })

	rootCmd.SetArgs([]string{"info"})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("info without argument: %v", err)
	}
}

func TestCVEModulesResolveByIdentifier(t *testing.T) {
	reg, err := registry.Load(manifests.FS, log.New(io.Discard))
	if err != nil {
		t.Fatalf("load built-in manifests: %v", err)
	}
	for cve, id := range map[string]string{
		"CVE-2021-43798": "cve.cve_2021_43798",
		"cve-2021-42013": "cve.cve_2021_42013",
	} {
		d, err := reg.Resolve(cve)
		if err != nil {
			t.Fatalf("resolve %s: %v", cve, err)
		}
		if d.ID != id {
			t.Fatalf("resolve(%s) = %s, want %s", cve, d.ID, id)
		}
	}
}
