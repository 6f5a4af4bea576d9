package options

import (
	"errors"
	"reflect"
	"testing"
)

func testSet(t *testing.T) *Set {
	t.Helper()
	s, err := NewSet(
		Spec{Name: "RHOST", Type: TypeString, Required: true, Description: "Target host"},
		Spec{Name: "RPORT", Type: TypeInt, Default: "3000"},
		Spec{Name: "SCHEME", Type: TypeEnum, Default: "http", Enum: []string{"http", "https"}},
		Spec{Name: "VERIFY_SSL", Type: TypeBool, Default: "false"},
		Spec{Name: "API_TOKEN", Type: TypeString},
	)
	if err != nil {
		t.Fatalf("NewSet: %v", err)
	}
	return s
}

func TestSetCaseInsensitive(t *testing.T) {
	s := testSet(t)
	if err := s.Set("rhost", "target.example"); err != nil {
		t.Fatalf("Set rhost: %v", err)
	}
	v, ok := s.Get("RHOST")
	if !ok || v != "target.example" {
		t.Fatalf("Get RHOST = %v, %v", v, ok)
	}
}

func TestSetUnknownOption(t *testing.T) {
	s := testSet(t)
	before := s.Snapshot()
	err := s.Set("NOPE", "x")
	var unknown *UnknownOptionError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownOptionError, got %v", err)
	}
	if unknown.Option != "NOPE" {
		t.Fatalf("Option = %s", unknown.Option)
	}
	if !reflect.DeepEqual(before, s.Snapshot()) {
		t.Fatal("failed Set mutated the option set")
	}
}

func TestIntCoercion(t *testing.T) {
	s := testSet(t)
	if err := s.Set("RPORT", "8080"); err != nil {
		t.Fatalf("Set RPORT: %v", err)
	}
	if got := s.Int("RPORT", 0); got != 8080 {
		t.Fatalf("RPORT = %d", got)
	}

	err := s.Set("RPORT", "eighty")
	var coercion *CoercionError
	if !errors.As(err, &coercion) {
		t.Fatalf("expected CoercionError, got %v", err)
	}
	if coercion.Expected != TypeInt {
		t.Fatalf("Expected = %s", coercion.Expected)
	}
	// Failed coercion must not clobber the previous value.
	if got := s.Int("RPORT", 0); got != 8080 {
		t.Fatalf("RPORT after failed set = %d", got)
	}
}

func TestBoolVocabulary(t *testing.T) {
	s := testSet(t)
	cases := map[string]bool{
		"true": true, "TRUE": true, "yes": true, "1": true,
		"false": false, "No": false, "0": false,
	}
	for raw, want := range cases {
		if err := s.Set("VERIFY_SSL", raw); err != nil {
			t.Fatalf("Set VERIFY_SSL %q: %v", raw, err)
		}
		if got := s.Bool("VERIFY_SSL", !want); got != want {
			t.Fatalf("VERIFY_SSL %q = %v, want %v", raw, got, want)
		}
	}
	if err := s.Set("VERIFY_SSL", "maybe"); err == nil {
		t.Fatal("expected error for unrecognized boolean")
	}
}

func TestEnumCoercion(t *testing.T) {
	s := testSet(t)
	if err := s.Set("SCHEME", "HTTPS"); err != nil {
		t.Fatalf("Set SCHEME: %v", err)
	}
	if got := s.String("SCHEME", ""); got != "https" {
		t.Fatalf("SCHEME canonicalized to %q", got)
	}
	err := s.Set("SCHEME", "gopher")
	var coercion *CoercionError
	if !errors.As(err, &coercion) {
		t.Fatalf("expected CoercionError, got %v", err)
	}
	if len(coercion.Allowed) != 2 {
		t.Fatalf("Allowed = %v", coercion.Allowed)
	}
}

func TestValidateNamesAllMissing(t *testing.T) {
	s, err := NewSet(
		Spec{Name: "RHOST", Required: true},
		Spec{Name: "PLUGIN", Required: true},
		Spec{Name: "FILE", Default: "/etc/passwd"},
	)
	if err != nil {
		t.Fatalf("NewSet: %v", err)
	}
	verr := s.Validate()
	var missing *MissingRequiredError
	if !errors.As(verr, &missing) {
		t.Fatalf("expected MissingRequiredError, got %v", verr)
	}
	want := []string{"PLUGIN", "RHOST"}
	if !reflect.DeepEqual(missing.Options, want) {
		t.Fatalf("Options = %v, want %v", missing.Options, want)
	}

	if err := s.Set("RHOST", "h"); err != nil {
		t.Fatal(err)
	}
	if err := s.Set("PLUGIN", "p"); err != nil {
		t.Fatal(err)
	}
	if err := s.Validate(); err != nil {
		t.Fatalf("Validate after setting all required: %v", err)
	}
}

func TestSetIdempotent(t *testing.T) {
	s := testSet(t)
	if err := s.Set("RHOST", "target.com"); err != nil {
		t.Fatal(err)
	}
	first := s.Snapshot()
	if err := s.Set("RHOST", "target.com"); err != nil {
		t.Fatal(err)
	}
	second := s.Snapshot()
	if !reflect.DeepEqual(first, second) {
		t.Fatal("repeated identical set changed observable state")
	}
}

func TestSnapshotOrderAndMasking(t *testing.T) {
	s := testSet(t)
	_ = s.Set("API_TOKEN", "hunter2")
	snap := s.Snapshot()
	wantOrder := []string{"RHOST", "RPORT", "SCHEME", "VERIFY_SSL", "API_TOKEN"}
	for i, e := range snap {
		if e.Name != wantOrder[i] {
			t.Fatalf("snapshot[%d] = %s, want %s", i, e.Name, wantOrder[i])
		}
	}
	last := snap[len(snap)-1]
	if !last.Sensitive || last.DisplayValue() != "***" {
		t.Fatalf("API_TOKEN not masked: %+v", last)
	}
	if snap[0].IsSet {
		t.Fatal("RHOST reported set before assignment")
	}
}

func TestDuplicateSpecRejected(t *testing.T) {
	_, err := NewSet(Spec{Name: "A"}, Spec{Name: "a"})
	if err == nil {
		t.Fatal("expected duplicate spec error")
	}
}
