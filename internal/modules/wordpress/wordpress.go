// Package wordpress implements the platforms.wordpress module, which
// enumerates users through the public REST API.
package wordpress

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/arsenal-framework/arsenal/internal/app"
	"github.com/arsenal-framework/arsenal/internal/artifacts"
	"github.com/arsenal-framework/arsenal/internal/modules"
	"github.com/arsenal-framework/arsenal/internal/options"
)

type Module struct {
	opts *options.Set
}

func New() modules.Module {
	return &Module{opts: options.MustNewSet(
		options.Spec{Name: "URL", Type: options.TypeString, Required: true, Description: "WordPress site base URL"},
		options.Spec{Name: "PER_PAGE", Type: options.TypeInt, Default: "100", Description: "Users requested per page"},
		options.Spec{Name: "TIMEOUT", Type: options.TypeInt, Default: "10", Description: "Request timeout in seconds"},
		options.Spec{Name: "USER_AGENT", Type: options.TypeString, Default: "Mozilla/5.0 (compatible; arsenal)", Description: "User-Agent header"},
		options.Spec{Name: artifacts.OptionName, Type: options.TypeString, Description: "Write results to this JSON file (empty for workspace default)"},
	)}
}

func (m *Module) Name() string          { return "wp_user_enum" }
func (m *Module) Description() string   { return "WordPress user enumeration via the wp-json REST API" }
func (m *Module) Options() *options.Set { return m.opts }

type wpUser struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
	Link string `json:"link"`
}

func (m *Module) Execute(ctx app.Context) (modules.Outcome, error) {
	base := strings.TrimSuffix(m.opts.String("URL", ""), "/")
	timeout := time.Duration(m.opts.Int("TIMEOUT", 10)) * time.Second
	endpoint := fmt.Sprintf("%s/wp-json/wp/v2/users?per_page=%d", base, m.opts.Int("PER_PAGE", 100))

	client := &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	}

	req, err := http.NewRequestWithContext(ctx.Ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return modules.Outcome{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", m.opts.String("USER_AGENT", ""))
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return modules.Outcome{}, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return modules.Outcome{
			Success: false,
			Summary: fmt.Sprintf("user endpoint not exposed (status %d)", resp.StatusCode),
			Data:    map[string]any{"url": base, "status": resp.StatusCode},
		}, nil
	}

	var users []wpUser
	if err := json.NewDecoder(resp.Body).Decode(&users); err != nil {
		return modules.Outcome{}, fmt.Errorf("decode user list: %w", err)
	}

	found := make([]any, 0, len(users))
	for _, u := range users {
		found = append(found, map[string]any{"id": u.ID, "name": u.Name, "slug": u.Slug, "link": u.Link})
	}
	out := modules.Outcome{
		Success: len(users) > 0,
		Summary: fmt.Sprintf("enumerated %d user(s) on %s", len(users), base),
		Data:    map[string]any{"url": base, "users": found},
	}
	if path, werr := artifacts.MaybeWrite(ctx, m.opts, "platforms.wordpress", out); werr != nil {
		return out, werr
	} else if path != "" {
		out.Data["output_file"] = path
	}
	return out, nil
}
