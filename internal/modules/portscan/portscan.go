// Package portscan implements the enumeration.portscan module, a
// concurrent TCP connect probe against a port set.
package portscan

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
	"sync"
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
		options.Spec{Name: "RHOST", Type: options.TypeString, Required: true, Description: "Target host or IP"},
		options.Spec{Name: "PORTS", Type: options.TypeString, Default: "21,22,80,443,3306,8080", Description: "Comma-separated ports or ranges (e.g. 1-1024)"},
		options.Spec{Name: "CONCURRENCY", Type: options.TypeInt, Default: "200", Description: "Maximum parallel connect attempts"},
		options.Spec{Name: "TIMEOUT", Type: options.TypeInt, Default: "3", Description: "Per-port connect timeout in seconds"},
		options.Spec{Name: artifacts.OptionName, Type: options.TypeString, Description: "Write results to this JSON file (empty for workspace default)"},
	)}
}

func (m *Module) Name() string          { return "portscan" }
func (m *Module) Description() string   { return "TCP connect scan over a configurable port set" }
func (m *Module) Options() *options.Set { return m.opts }

// Finding represents a single open port.
type Finding struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

func (m *Module) Execute(ctx app.Context) (modules.Outcome, error) {
	host := m.opts.String("RHOST", "")
	ports, err := ParsePorts(m.opts.String("PORTS", ""))
	if err != nil {
		return modules.Outcome{}, err
	}
	concurrency := m.opts.Int("CONCURRENCY", 200)
	if concurrency < 1 {
		concurrency = 1
	}
	timeout := time.Duration(m.opts.Int("TIMEOUT", 3)) * time.Second

	findings, err := probe(ctx.Ctx, host, ports, timeout, concurrency)
	if err != nil {
		return modules.Outcome{}, err
	}
	sort.Slice(findings, func(i, j int) bool { return findings[i].Port < findings[j].Port })

	open := make([]any, 0, len(findings))
	for _, f := range findings {
		open = append(open, map[string]any{"host": f.Host, "port": f.Port})
	}
	out := modules.Outcome{
		Success: true,
		Summary: fmt.Sprintf("%d of %d port(s) open on %s", len(findings), len(ports), host),
		Data:    map[string]any{"host": host, "scanned": len(ports), "open": open},
	}
	if path, werr := artifacts.MaybeWrite(ctx, m.opts, "enumeration.portscan", out); werr != nil {
		return out, werr
	} else if path != "" {
		out.Data["output_file"] = path
	}
	return out, nil
}

// ParsePorts expands a comma-separated list of ports and N-M ranges.
func ParsePorts(spec string) ([]int, error) {
	seen := make(map[int]struct{})
	var ports []int
	add := func(p int) error {
		if p < 1 || p > 65535 {
			return fmt.Errorf("port %d out of range", p)
		}
		if _, ok := seen[p]; !ok {
			seen[p] = struct{}{}
			ports = append(ports, p)
		}
		return nil
	}
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if lo, hi, ok := strings.Cut(part, "-"); ok {
			start, err := strconv.Atoi(strings.TrimSpace(lo))
			if err != nil {
				return nil, fmt.Errorf("invalid port range %q", part)
			}
			end, err := strconv.Atoi(strings.TrimSpace(hi))
			if err != nil || end < start {
				return nil, fmt.Errorf("invalid port range %q", part)
			}
			for p := start; p <= end; p++ {
				if err := add(p); err != nil {
					return nil, err
				}
			}
			continue
		}
		p, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid port %q", part)
		}
		if err := add(p); err != nil {
			return nil, err
		}
	}
	if len(ports) == 0 {
		return nil, fmt.Errorf("no ports in %q", spec)
	}
	return ports, nil
}

// probe performs concurrent TCP connect attempts to the given ports.
func probe(ctx context.Context, host string, ports []int, dialTimeout time.Duration, concurrency int) ([]Finding, error) {
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex
	out := make([]Finding, 0, 8)

	dialer := &net.Dialer{Timeout: dialTimeout}

	for _, p := range ports {
		p := p
		select {
		case <-ctx.Done():
			wg.Wait()
			return out, ctx.Err()
		default:
		}
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer func() { <-sem; wg.Done() }()
			addr := net.JoinHostPort(host, strconv.Itoa(p))
			cctx, cancel := context.WithTimeout(ctx, dialTimeout)
			conn, err := dialer.DialContext(cctx, "tcp", addr)
			cancel()
			if err == nil {
				_ = conn.Close()
				mu.Lock()
				out = append(out, Finding{Host: host, Port: p})
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return out, nil
}
