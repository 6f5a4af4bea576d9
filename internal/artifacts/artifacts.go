// Package artifacts persists module outcomes as JSON result files. Modules
// that declare an OUTPUT_FILE option call MaybeWrite after producing their
// outcome; the path defaults under the workspace results tree.
package artifacts

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/arsenal-framework/arsenal/internal/app"
	"github.com/arsenal-framework/arsenal/internal/modules"
	"github.com/arsenal-framework/arsenal/internal/options"
)

// OptionName is the conventional option modules declare to request a result
// artifact.
const OptionName = "OUTPUT_FILE"

// Write serializes the outcome as indented JSON at path.
func Write(path string, moduleID string, now time.Time, outcome modules.Outcome) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	record := struct {
		Module    string          `json:"module"`
		Timestamp time.Time       `json:"timestamp"`
		Outcome   modules.Outcome `json:"outcome"`
	}{Module: moduleID, Timestamp: now, Outcome: outcome}

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(record); err != nil {
		return err
	}
	return w.Flush()
}

// MaybeWrite writes the outcome when the module's option set declares
// OUTPUT_FILE. An empty value defaults under workspace/results. Returns the
// written path, or empty when the module declares no artifact.
func MaybeWrite(ctx app.Context, opts *options.Set, moduleID string, outcome modules.Outcome) (string, error) {
	if !opts.Has(OptionName) {
		return "", nil
	}
	path := opts.String(OptionName, "")
	if path == "" {
		if ctx.Workspace == nil {
			return "", nil
		}
		stamp := ctx.Now.Format("20060102-150405")
		path = ctx.Workspace.Path("results", fmt.Sprintf("%s-%s.json", sanitize(moduleID), stamp))
	}
	if err := Write(path, moduleID, ctx.Now, outcome); err != nil {
		return "", err
	}
	return path, nil
}

func sanitize(name string) string {
	replacer := strings.NewReplacer(" ", "-", "/", "-", "\\", "-", ":", "-", ".", "-")
	return strings.ToLower(replacer.Replace(name))
}
