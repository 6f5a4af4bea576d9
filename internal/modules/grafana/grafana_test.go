package grafana

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
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

// rawPathServer records the request line path before any mux cleanup.
func rawPathServer(t *testing.T, handler func(path string, w http.ResponseWriter)) (host string, port int, close func()) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler(r.RequestURI, w)
	}))
	u := strings.TrimPrefix(srv.URL, "http://")
	h, p, err := net.SplitHostPort(u)
	if err != nil {
		t.Fatalf("split host: %v", err)
	}
	pn, _ := strconv.Atoi(p)
	return h, pn, srv.Close
}

func configured(t *testing.T, host string, port int) *Module {
	t.Helper()
	m := New().(*Module)
	for k, v := range map[string]string{
		"RHOST":  host,
		"RPORT":  strconv.Itoa(port),
		"PLUGIN": "alertlist",
	} {
		if err := m.Options().Set(k, v); err != nil {
			t.Fatalf("set %s: %v", k, err)
		}
	}
	return m
}

func TestTraversalPathSurvivesClient(t *testing.T) {
	var gotPath string
	host, port, closeSrv := rawPathServer(t, func(path string, w http.ResponseWriter) {
		gotPath = path
		_, _ = w.Write([]byte("root:x:0:0:root:/root:/bin/bash\n"))
	})
	defer closeSrv()

	m := configured(t, host, port)
	out, err := m.Execute(testContext())
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(gotPath, "/public/plugins/alertlist/..") {
		t.Fatalf("dot-dot segments were normalized away: %q", gotPath)
	}
	if !out.Success {
		t.Fatalf("expected vulnerable verdict, got %q", out.Summary)
	}
	if !strings.Contains(out.Data["content"].(string), "root:x:0:0") {
		t.Fatal("file content missing from outcome")
	}
}

func TestPatchedTargetNotVulnerable(t *testing.T) {
	host, port, closeSrv := rawPathServer(t, func(_ string, w http.ResponseWriter) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"message":"Plugin file not found"}`))
	})
	defer closeSrv()

	m := configured(t, host, port)
	out, err := m.Execute(testContext())
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if out.Success {
		t.Fatal("marker response must not count as vulnerable")
	}
}

func TestNotFoundNotVulnerable(t *testing.T) {
	host, port, closeSrv := rawPathServer(t, func(_ string, w http.ResponseWriter) {
		http.Error(w, "not found", http.StatusNotFound)
	})
	defer closeSrv()

	m := configured(t, host, port)
	out, err := m.Execute(testContext())
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if out.Success {
		t.Fatal("404 must not count as vulnerable")
	}
	if out.Data["status"] != http.StatusNotFound {
		t.Fatalf("status not recorded: %v", out.Data["status"])
	}
}

func TestRequiredOptions(t *testing.T) {
	m := New()
	if err := m.Options().Validate(); err == nil {
		t.Fatal("RHOST and PLUGIN must be required")
	}
}
