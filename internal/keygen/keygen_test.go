package keygen

import (
	"bytes"
	"errors"
	"regexp"
	"testing"
)

var keyPattern = regexp.MustCompile(`^TST-[A-Z0-9]{4}-[A-Z0-9]{4}-[A-Z0-9]{4}$`)

func TestGenerateFormat(t *testing.T) {
	g := New()
	for i := 0; i < 200; i++ {
		key, err := g.Generate("TST")
		if err != nil {
			t.Fatalf("Generate() error = %v", err)
		}
		if !keyPattern.MatchString(key) {
			t.Fatalf("Generate() = %q, does not match %s", key, keyPattern)
		}
		if !Valid(key) {
			t.Errorf("Valid(%q) = false, want true", key)
		}
	}
}

func TestGenerateDistinct(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		key, err := Generate("ECP")
		if err != nil {
			t.Fatalf("Generate() error = %v", err)
		}
		if seen[key] {
			t.Fatalf("duplicate key %q after %d draws", key, i)
		}
		seen[key] = true
	}
}

func TestGenerateDeterministicSource(t *testing.T) {
	// Zero bytes always map to the first alphabet character.
	g := NewWithSource(bytes.NewReader(make([]byte, 1024)))
	key, err := g.Generate("ZZ")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if key != "ZZ-AAAA-AAAA-AAAA" {
		t.Errorf("Generate() = %q, want ZZ-AAAA-AAAA-AAAA", key)
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy exhausted") }

func TestGenerateSourceError(t *testing.T) {
	g := NewWithSource(failingReader{})
	if _, err := g.Generate("ECP"); err == nil {
		t.Error("Generate() expected error from failing source")
	}
}

func TestValid(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  bool
	}{
		{"valid", "ECP-AB12-CD34-EF56", true},
		{"dashed prefix", "MY-APP-AB12-CD34-EF56", true},
		{"lowercase segment", "ECP-ab12-CD34-EF56", false},
		{"short segment", "ECP-AB1-CD34-EF56", false},
		{"missing prefix", "-AB12-CD34-EF56", false},
		{"too few segments", "ECP-AB12-CD34", false},
		{"symbol in segment", "ECP-AB_2-CD34-EF56", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Valid(tt.value); got != tt.want {
				t.Errorf("Valid(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}
