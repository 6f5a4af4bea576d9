package svcdetect

import (
	"context"
	"io"
	"net"
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

// bannerListener accepts connections and writes a fixed banner.
func bannerListener(t *testing.T, banner string) (host, port string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			_, _ = conn.Write([]byte(banner))
			time.Sleep(100 * time.Millisecond)
			_ = conn.Close()
		}
	}()
	h, p, _ := net.SplitHostPort(ln.Addr().String())
	return h, p
}

func TestDetectSSHBanner(t *testing.T) {
	host, port := bannerListener(t, "SSH-2.0-OpenSSH_8.9p1\r\n")

	m := New()
	for k, v := range map[string]string{
		"RHOST":   host,
		"PORTS":   port,
		"TIMEOUT": "2",
	} {
		if err := m.Options().Set(k, v); err != nil {
			t.Fatalf("set %s: %v", k, err)
		}
	}

	out, err := m.Execute(testContext())
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	services, ok := out.Data["services"].([]any)
	if !ok || len(services) != 1 {
		t.Fatalf("expected one service, got %v", out.Data["services"])
	}
	svc := services[0].(map[string]any)
	if svc["service"] != "SSH" {
		t.Fatalf("service = %v", svc["service"])
	}
	if svc["version"] != "OpenSSH_8.9p1" {
		t.Fatalf("version = %v", svc["version"])
	}
	if svc["confidence"].(int) < 90 {
		t.Fatalf("confidence = %v", svc["confidence"])
	}
}

func TestHintWithoutBanner(t *testing.T) {
	host, port := bannerListener(t, "SSH-2.0-OpenSSH_8.9p1\r\n")

	m := New()
	for k, v := range map[string]string{
		"RHOST":       host,
		"PORTS":       port,
		"TIMEOUT":     "2",
		"GRAB_BANNER": "false",
	} {
		if err := m.Options().Set(k, v); err != nil {
			t.Fatalf("set %s: %v", k, err)
		}
	}

	out, err := m.Execute(testContext())
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	services := out.Data["services"].([]any)
	svc := services[0].(map[string]any)
	if svc["banner"] != "" {
		t.Fatalf("banner grabbed despite GRAB_BANNER=false: %v", svc["banner"])
	}
}

func TestSanitizeBanner(t *testing.T) {
	in := "SSH-2.0\x00\x01 banner\r\n"
	got := sanitizeBanner(in)
	if got != "SSH-2.0 banner" {
		t.Fatalf("sanitizeBanner = %q", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("line1\nline2", 100); got != "line1 line2" {
		t.Fatalf("Truncate = %q", got)
	}
	if got := Truncate("abcdef", 3); got != "abc..." {
		t.Fatalf("Truncate = %q", got)
	}
}
