// Package dnsenum implements the enumeration.dns module, which collects
// standard DNS records for a domain and optionally brute-forces
// subdomains from a wordlist.
package dnsenum

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"os"
	"sort"
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
		options.Spec{Name: "DOMAIN", Type: options.TypeString, Required: true, Description: "Domain to enumerate"},
		options.Spec{Name: "RESOLVER", Type: options.TypeString, Default: "8.8.8.8:53", Description: "DNS server to query"},
		options.Spec{Name: "WORDLIST", Type: options.TypeString, Description: "Optional subdomain wordlist file"},
		options.Spec{Name: "CONCURRENCY", Type: options.TypeInt, Default: "20", Description: "Parallel lookups during brute force"},
		options.Spec{Name: "TIMEOUT", Type: options.TypeInt, Default: "5", Description: "Per-lookup timeout in seconds"},
		options.Spec{Name: artifacts.OptionName, Type: options.TypeString, Description: "Write results to this JSON file (empty for workspace default)"},
	)}
}

func (m *Module) Name() string          { return "dns" }
func (m *Module) Description() string   { return "DNS record enumeration with optional subdomain brute force" }
func (m *Module) Options() *options.Set { return m.opts }

// Record represents one discovered DNS record.
type Record struct {
	Type       string `json:"type"`
	Name       string `json:"name"`
	Value      string `json:"value"`
	Additional string `json:"additional,omitempty"`
}

func (m *Module) Execute(ctx app.Context) (modules.Outcome, error) {
	domain := strings.TrimSuffix(strings.TrimSpace(m.opts.String("DOMAIN", "")), ".")
	timeout := time.Duration(m.opts.Int("TIMEOUT", 5)) * time.Second
	resolver := newResolver(m.opts.String("RESOLVER", "8.8.8.8:53"), timeout)

	records := lookupRecords(ctx.Ctx, resolver, domain, timeout)

	var subdomains []string
	if wordlist := m.opts.String("WORDLIST", ""); wordlist != "" {
		words, err := readWordlist(wordlist)
		if err != nil {
			return modules.Outcome{}, fmt.Errorf("read wordlist: %w", err)
		}
		subdomains = bruteforce(ctx.Ctx, resolver, domain, words, timeout, m.opts.Int("CONCURRENCY", 20))
	}

	recs := make([]any, 0, len(records))
	for _, r := range records {
		recs = append(recs, map[string]any{"type": r.Type, "name": r.Name, "value": r.Value, "additional": r.Additional})
	}
	out := modules.Outcome{
		Success: true,
		Summary: fmt.Sprintf("%d record(s) for %s, %d subdomain(s) found", len(records), domain, len(subdomains)),
		Data:    map[string]any{"domain": domain, "records": recs, "subdomains": subdomains},
	}
	if path, werr := artifacts.MaybeWrite(ctx, m.opts, "enumeration.dns", out); werr != nil {
		return out, werr
	} else if path != "" {
		out.Data["output_file"] = path
	}
	return out, nil
}

func newResolver(server string, timeout time.Duration) *net.Resolver {
	return &net.Resolver{
		PreferGo: true,
		Dial: func(ctx context.Context, _, _ string) (net.Conn, error) {
			d := net.Dialer{Timeout: timeout}
			return d.DialContext(ctx, "udp", server)
		},
	}
}

// lookupRecords collects A, AAAA, MX, NS, TXT, and CNAME records.
// Individual lookup failures are skipped, not fatal.
func lookupRecords(ctx context.Context, r *net.Resolver, domain string, timeout time.Duration) []Record {
	lctx, cancel := context.WithTimeout(ctx, timeout*5)
	defer cancel()

	var records []Record

	if ips, err := r.LookupIP(lctx, "ip4", domain); err == nil {
		for _, ip := range ips {
			records = append(records, Record{Type: "A", Name: domain, Value: ip.String()})
		}
	}
	if ips, err := r.LookupIP(lctx, "ip6", domain); err == nil {
		for _, ip := range ips {
			records = append(records, Record{Type: "AAAA", Name: domain, Value: ip.String()})
		}
	}
	if mxs, err := r.LookupMX(lctx, domain); err == nil {
		for _, mx := range mxs {
			records = append(records, Record{
				Type: "MX", Name: domain,
				Value:      strings.TrimSuffix(mx.Host, "."),
				Additional: fmt.Sprintf("priority %d", mx.Pref),
			})
		}
	}
	if nss, err := r.LookupNS(lctx, domain); err == nil {
		for _, ns := range nss {
			records = append(records, Record{Type: "NS", Name: domain, Value: strings.TrimSuffix(ns.Host, ".")})
		}
	}
	if txts, err := r.LookupTXT(lctx, domain); err == nil {
		for _, txt := range txts {
			records = append(records, Record{Type: "TXT", Name: domain, Value: txt})
		}
	}
	if cname, err := r.LookupCNAME(lctx, domain); err == nil {
		cname = strings.TrimSuffix(cname, ".")
		if cname != domain {
			records = append(records, Record{Type: "CNAME", Name: domain, Value: cname})
		}
	}
	return records
}

func bruteforce(ctx context.Context, r *net.Resolver, domain string, words []string, timeout time.Duration, concurrency int) []string {
	if concurrency < 1 {
		concurrency = 1
	}
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var found []string

	for _, w := range words {
		w := w
		select {
		case <-ctx.Done():
			wg.Wait()
			sort.Strings(found)
			return found
		default:
		}
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer func() { <-sem; wg.Done() }()
			name := w + "." + domain
			lctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			if ips, err := r.LookupIP(lctx, "ip4", name); err == nil && len(ips) > 0 {
				mu.Lock()
				found = append(found, name)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	sort.Strings(found)
	return found
}

func readWordlist(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var words []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		w := strings.TrimSpace(sc.Text())
		if w == "" || strings.HasPrefix(w, "#") {
			continue
		}
		words = append(words, w)
	}
	return words, sc.Err()
}
