package hello

import (
	"context"
	"io"
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

func TestExecuteDefaults(t *testing.T) {
	m := New()
	if err := m.Options().Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	out, err := m.Execute(testContext())
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !out.Success {
		t.Fatal("expected success")
	}
	if out.Data["message"] != "hello world" {
		t.Fatalf("unexpected message: %v", out.Data["message"])
	}
}

func TestExecuteRepeats(t *testing.T) {
	m := New()
	if err := m.Options().Set("TIMES", "3"); err != nil {
		t.Fatalf("set TIMES: %v", err)
	}
	out, err := m.Execute(testContext())
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if out.Data["times"] != 3 {
		t.Fatalf("expected 3 repeats, got %v", out.Data["times"])
	}
}
