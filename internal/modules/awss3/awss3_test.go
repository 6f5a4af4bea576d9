package awss3

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
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

func configured(t *testing.T, endpoint string) *Module {
	t.Helper()
	m := New().(*Module)
	for k, v := range map[string]string{
		"BUCKET":   "acme-backups",
		"ENDPOINT": endpoint,
	} {
		if err := m.Options().Set(k, v); err != nil {
			t.Fatalf("set %s: %v", k, err)
		}
	}
	return m
}

func TestPublicBucketListing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>
<ListBucketResult>
  <Name>acme-backups</Name>
  <Contents><Key>db.sql.gz</Key><Size>1048576</Size><LastModified>2023-05-01T00:00:00Z</LastModified></Contents>
  <Contents><Key>config.tar</Key><Size>2048</Size><LastModified>2023-05-02T00:00:00Z</LastModified></Contents>
</ListBucketResult>`))
	}))
	defer srv.Close()

	out, err := configured(t, srv.URL).Execute(testContext())
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !out.Success {
		t.Fatalf("expected listable verdict, got %q", out.Summary)
	}
	objects, ok := out.Data["objects"].([]any)
	if !ok || len(objects) != 2 {
		t.Fatalf("expected 2 objects, got %v", out.Data["objects"])
	}
	first := objects[0].(map[string]any)
	if first["key"] != "db.sql.gz" {
		t.Fatalf("wrong first key: %v", first["key"])
	}
}

func TestPrivateBucketExists(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "AccessDenied", http.StatusForbidden)
	}))
	defer srv.Close()

	out, err := configured(t, srv.URL).Execute(testContext())
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if out.Success {
		t.Fatal("403 must not count as listable")
	}
	if out.Data["exists"] != true {
		t.Fatal("403 should still mark the bucket as existing")
	}
}

func TestMissingBucket(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "NoSuchBucket", http.StatusNotFound)
	}))
	defer srv.Close()

	out, err := configured(t, srv.URL).Execute(testContext())
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if out.Success || out.Data["exists"] != false {
		t.Fatalf("404 should report a missing bucket: %+v", out.Data)
	}
}
