package dnsenum

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestReadWordlist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subdomains.txt")
	content := "www\n\n# infra\n  mail  \napi\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write wordlist: %v", err)
	}

	words, err := readWordlist(path)
	if err != nil {
		t.Fatalf("readWordlist: %v", err)
	}
	want := []string{"www", "mail", "api"}
	if !reflect.DeepEqual(words, want) {
		t.Fatalf("readWordlist = %v, want %v", words, want)
	}
}

func TestReadWordlistMissingFile(t *testing.T) {
	if _, err := readWordlist(filepath.Join(t.TempDir(), "absent.txt")); err == nil {
		t.Fatal("expected an error for a missing wordlist")
	}
}

// A cancelled brute force waits for in-flight lookups before handing
// back the results slice.
func TestBruteforceWaitsForWorkersOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	r := newResolver("127.0.0.1:1", 2*time.Second)
	words := []string{"a", "b", "c", "d", "e", "f"}
	found := bruteforce(ctx, r, "invalid.test", words, 2*time.Second, 2)
	for _, name := range found {
		if name == "" {
			t.Fatal("empty name in results")
		}
	}
}

func TestDomainRequired(t *testing.T) {
	if err := New().Options().Validate(); err == nil {
		t.Fatal("expected validation to fail without DOMAIN")
	}
}
