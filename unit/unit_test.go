package unit

import (
	"testing"

	"pkt.systems/avorun/schema"
)

func TestTestIDString(t *testing.T) {
	plain := NewTestID("tests/checks.go:PassTest.test_ok", nil)
	if got := plain.String(); got != "1-tests/checks.go:PassTest.test_ok" {
		t.Fatalf("plain id = %q", got)
	}

	variant := &schema.Variant{
		Variant: []schema.VariantEntry{
			{Path: "/run/params", Environment: map[string]string{"sleep": "1"}},
		},
		Paths: []string{"/run/*"},
	}
	varied := NewTestID("tests/checks.go:PassTest.test_ok", variant)
	if varied.VariantID == "" {
		t.Fatal("varied id should carry a variant suffix")
	}
	want := "1-tests/checks.go:PassTest.test_ok;" + varied.VariantID
	if got := varied.String(); got != want {
		t.Fatalf("varied id = %q, want %q", got, want)
	}
}
