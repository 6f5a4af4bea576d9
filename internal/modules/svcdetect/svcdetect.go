// Package svcdetect implements the enumeration.services module, which
// identifies services by banner grabbing and signature matching.
package svcdetect

import (
	"context"
	"fmt"
	"net"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/arsenal-framework/arsenal/internal/app"
	"github.com/arsenal-framework/arsenal/internal/artifacts"
	"github.com/arsenal-framework/arsenal/internal/modules"
	"github.com/arsenal-framework/arsenal/internal/modules/portscan"
	"github.com/arsenal-framework/arsenal/internal/options"
)

type Module struct {
	opts *options.Set
}

func New() modules.Module {
	return &Module{opts: options.MustNewSet(
		options.Spec{Name: "RHOST", Type: options.TypeString, Required: true, Description: "Target host or IP"},
		options.Spec{Name: "PORTS", Type: options.TypeString, Default: "21,22,25,80,110,143,443,3306,5432,6379", Description: "Comma-separated ports or ranges"},
		options.Spec{Name: "CONCURRENCY", Type: options.TypeInt, Default: "50", Description: "Maximum parallel probes"},
		options.Spec{Name: "TIMEOUT", Type: options.TypeInt, Default: "5", Description: "Per-port timeout in seconds"},
		options.Spec{Name: "GRAB_BANNER", Type: options.TypeBool, Default: "true", Description: "Read and fingerprint service banners"},
		options.Spec{Name: artifacts.OptionName, Type: options.TypeString, Description: "Write results to this JSON file (empty for workspace default)"},
	)}
}

func (m *Module) Name() string          { return "services" }
func (m *Module) Description() string   { return "Service detection via banner grabbing and fingerprinting" }
func (m *Module) Options() *options.Set { return m.opts }

// Finding represents a detected service.
type Finding struct {
	Host       string `json:"host"`
	Port       int    `json:"port"`
	Service    string `json:"service"`
	Version    string `json:"version,omitempty"`
	Banner     string `json:"banner,omitempty"`
	Confidence int    `json:"confidence"` // 0-100
}

type signature struct {
	Name    string
	Pattern *regexp.Regexp
	Version *regexp.Regexp // optional: extracts version from banner
}

var signatures = []signature{
	{Name: "SSH", Pattern: regexp.MustCompile(`^SSH-`), Version: regexp.MustCompile(`SSH-[\d.]+-(\S+)`)},
	{Name: "HTTP", Pattern: regexp.MustCompile(`^HTTP/|^<!DOCTYPE|^<html`), Version: regexp.MustCompile(`Server:\s*(\S+)`)},
	{Name: "FTP", Pattern: regexp.MustCompile(`^220[- ]`), Version: regexp.MustCompile(`220[- ].*?(\S+\s+FTP|\S+ftpd)`)},
	{Name: "SMTP", Pattern: regexp.MustCompile(`^220[- ].*SMTP|^220[- ].*mail`), Version: regexp.MustCompile(`220[- ](\S+)`)},
	{Name: "POP3", Pattern: regexp.MustCompile(`^\+OK`), Version: regexp.MustCompile(`\+OK\s+(\S+)`)},
	{Name: "IMAP", Pattern: regexp.MustCompile(`^\* OK.*IMAP`), Version: nil},
	{Name: "MySQL", Pattern: regexp.MustCompile(`mysql|MariaDB`), Version: regexp.MustCompile(`([\d.]+)-MariaDB|([\d.]+)-mysql`)},
	{Name: "PostgreSQL", Pattern: regexp.MustCompile(`PostgreSQL|PGSQL`), Version: regexp.MustCompile(`PostgreSQL\s+([\d.]+)`)},
	{Name: "Redis", Pattern: regexp.MustCompile(`-ERR.*redis|REDIS`), Version: regexp.MustCompile(`redis_version:([\d.]+)`)},
	{Name: "VNC", Pattern: regexp.MustCompile(`^RFB `), Version: regexp.MustCompile(`RFB ([\d.]+)`)},
	{Name: "Telnet", Pattern: regexp.MustCompile(`^\xff[\xfb\xfd\xfe]|login:|Login:`), Version: nil},
}

var portServiceHint = map[int]string{
	21:   "FTP",
	22:   "SSH",
	23:   "Telnet",
	25:   "SMTP",
	80:   "HTTP",
	110:  "POP3",
	143:  "IMAP",
	443:  "HTTPS",
	3306: "MySQL",
	5432: "PostgreSQL",
	5900: "VNC",
	6379: "Redis",
	8080: "HTTP-Proxy",
}

func (m *Module) Execute(ctx app.Context) (modules.Outcome, error) {
	host := m.opts.String("RHOST", "")
	ports, err := portscan.ParsePorts(m.opts.String("PORTS", ""))
	if err != nil {
		return modules.Outcome{}, err
	}
	concurrency := m.opts.Int("CONCURRENCY", 50)
	if concurrency < 1 {
		concurrency = 1
	}
	timeout := time.Duration(m.opts.Int("TIMEOUT", 5)) * time.Second
	grab := m.opts.Bool("GRAB_BANNER", true)

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex
	findings := make([]Finding, 0)

	for _, port := range ports {
		port := port
		select {
		case <-ctx.Ctx.Done():
			return modules.Outcome{}, ctx.Ctx.Err()
		default:
		}
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer func() { <-sem; wg.Done() }()
			if f := detect(ctx.Ctx, host, port, timeout, grab); f != nil {
				mu.Lock()
				findings = append(findings, *f)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	sort.Slice(findings, func(i, j int) bool { return findings[i].Port < findings[j].Port })

	services := make([]any, 0, len(findings))
	for _, f := range findings {
		services = append(services, map[string]any{
			"host":       f.Host,
			"port":       f.Port,
			"service":    f.Service,
			"version":    f.Version,
			"banner":     Truncate(f.Banner, 120),
			"confidence": f.Confidence,
		})
	}
	out := modules.Outcome{
		Success: true,
		Summary: fmt.Sprintf("%d service(s) detected on %s", len(findings), host),
		Data:    map[string]any{"host": host, "services": services},
	}
	if path, werr := artifacts.MaybeWrite(ctx, m.opts, "enumeration.services", out); werr != nil {
		return out, werr
	} else if path != "" {
		out.Data["output_file"] = path
	}
	return out, nil
}

func detect(ctx context.Context, host string, port int, timeout time.Duration, grab bool) *Finding {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	dialer := &net.Dialer{Timeout: timeout}

	connCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := dialer.DialContext(connCtx, "tcp", addr)
	if err != nil {
		return nil
	}
	defer func() { _ = conn.Close() }()

	f := &Finding{Host: host, Port: port, Service: "unknown"}
	if hint, ok := portServiceHint[port]; ok {
		f.Service = hint
		f.Confidence = 30
	}
	if !grab {
		return f
	}

	banner := readBanner(conn, timeout)
	if banner != "" {
		f.Banner = banner
		matchSignature(f, banner, 80, 95)
	}

	// Some services stay silent until poked.
	if f.Confidence < 50 {
		probed := sendProbes(conn, timeout)
		if probed != "" && probed != banner {
			f.Banner = probed
			matchSignature(f, probed, 75, 90)
		}
	}
	return f
}

func matchSignature(f *Finding, banner string, base, withVersion int) {
	for _, sig := range signatures {
		if !sig.Pattern.MatchString(banner) {
			continue
		}
		f.Service = sig.Name
		f.Confidence = base
		if sig.Version != nil {
			if matches := sig.Version.FindStringSubmatch(banner); len(matches) > 1 {
				for _, m := range matches[1:] {
					if m != "" {
						f.Version = m
						f.Confidence = withVersion
						break
					}
				}
			}
		}
		return
	}
}

func readBanner(conn net.Conn, timeout time.Duration) string {
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return ""
	}
	buf := make([]byte, 4096)
	n, err := conn.Read(buf)
	if err != nil || n == 0 {
		return ""
	}
	return sanitizeBanner(string(buf[:n]))
}

func sendProbes(conn net.Conn, timeout time.Duration) string {
	probes := [][]byte{
		[]byte("GET / HTTP/1.0\r\nHost: localhost\r\n\r\n"),
		[]byte("HELP\r\n"),
		[]byte("\r\n"),
	}
	for _, probe := range probes {
		if err := conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
			continue
		}
		if _, err := conn.Write(probe); err != nil {
			continue
		}
		if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
			continue
		}
		buf := make([]byte, 4096)
		n, err := conn.Read(buf)
		if err == nil && n > 0 {
			return sanitizeBanner(string(buf[:n]))
		}
	}
	return ""
}

// sanitizeBanner strips null bytes and control characters except
// newlines and tabs.
func sanitizeBanner(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r == '\n' || r == '\r' || r == '\t' || (r >= 32 && r < 127) {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// Truncate collapses a banner to a single line capped at maxLen.
func Truncate(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", "")
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	return s
}
