// Package awsimds implements the cloud.aws.ec2 module, which probes the
// EC2 instance metadata service and collects identity and credential
// metadata when reachable.
package awsimds

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/arsenal-framework/arsenal/internal/app"
	"github.com/arsenal-framework/arsenal/internal/artifacts"
	"github.com/arsenal-framework/arsenal/internal/modules"
	"github.com/arsenal-framework/arsenal/internal/options"
)

// Metadata paths probed after a successful reachability check.
var metadataPaths = []string{
	"instance-id",
	"instance-type",
	"ami-id",
	"hostname",
	"local-ipv4",
	"public-ipv4",
	"placement/availability-zone",
	"iam/security-credentials/",
}

type Module struct {
	opts *options.Set
}

func New() modules.Module {
	return &Module{opts: options.MustNewSet(
		options.Spec{Name: "ENDPOINT", Type: options.TypeString, Default: "http://169.254.169.254", Description: "Metadata service base URL"},
		options.Spec{Name: "TIMEOUT", Type: options.TypeInt, Default: "3", Description: "Request timeout in seconds"},
		options.Spec{Name: "TOKEN_TTL", Type: options.TypeInt, Default: "21600", Description: "IMDSv2 session token TTL in seconds"},
		options.Spec{Name: artifacts.OptionName, Type: options.TypeString, Description: "Write results to this JSON file (empty for workspace default)"},
	)}
}

func (m *Module) Name() string { return "ec2_metadata" }
func (m *Module) Description() string {
	return "EC2 instance metadata service probe (IMDSv2 with v1 fallback)"
}
func (m *Module) Options() *options.Set { return m.opts }

func (m *Module) Execute(ctx app.Context) (modules.Outcome, error) {
	endpoint := strings.TrimSuffix(m.opts.String("ENDPOINT", ""), "/")
	timeout := time.Duration(m.opts.Int("TIMEOUT", 3)) * time.Second
	client := &http.Client{Timeout: timeout}

	token, version := m.acquireToken(ctx, client, endpoint)

	collected := make(map[string]any)
	for _, p := range metadataPaths {
		value, err := fetch(ctx, client, endpoint+"/latest/meta-data/"+p, token)
		if err != nil || value == "" {
			continue
		}
		collected[strings.TrimSuffix(p, "/")] = value
	}

	if len(collected) == 0 {
		return modules.Outcome{
			Success: false,
			Summary: fmt.Sprintf("metadata service not reachable at %s", endpoint),
			Data:    map[string]any{"endpoint": endpoint},
		}, nil
	}

	// Role names under security-credentials expand into the actual
	// credential documents.
	if roles, ok := collected["iam/security-credentials"].(string); ok {
		for _, role := range strings.Fields(roles) {
			if doc, err := fetch(ctx, client, endpoint+"/latest/meta-data/iam/security-credentials/"+role, token); err == nil {
				collected["credentials/"+role] = doc
			}
		}
	}

	keys := make([]string, 0, len(collected))
	for k := range collected {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := modules.Outcome{
		Success: true,
		Summary: fmt.Sprintf("collected %d metadata value(s) via %s", len(collected), version),
		Data: map[string]any{
			"endpoint": endpoint,
			"version":  version,
			"metadata": collected,
			"keys":     keys,
		},
	}
	if path, werr := artifacts.MaybeWrite(ctx, m.opts, "cloud.aws.ec2", out); werr != nil {
		return out, werr
	} else if path != "" {
		out.Data["output_file"] = path
	}
	return out, nil
}

// acquireToken attempts an IMDSv2 token; an empty token falls back to v1.
func (m *Module) acquireToken(ctx app.Context, client *http.Client, endpoint string) (string, string) {
	req, err := http.NewRequestWithContext(ctx.Ctx, http.MethodPut, endpoint+"/latest/api/token", nil)
	if err != nil {
		return "", "IMDSv1"
	}
	req.Header.Set("X-aws-ec2-metadata-token-ttl-seconds", fmt.Sprintf("%d", m.opts.Int("TOKEN_TTL", 21600)))
	resp, err := client.Do(req)
	if err != nil {
		return "", "IMDSv1"
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return "", "IMDSv1"
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil || len(body) == 0 {
		return "", "IMDSv1"
	}
	return strings.TrimSpace(string(body)), "IMDSv2"
}

func fetch(ctx app.Context, client *http.Client, url, token string) (string, error) {
	req, err := http.NewRequestWithContext(ctx.Ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	if token != "" {
		req.Header.Set("X-aws-ec2-metadata-token", token)
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(body)), nil
}
