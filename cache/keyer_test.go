package cache

import (
	"strings"
	"testing"
)

func TestDefaultKeyer_Deterministic(t *testing.T) {
	k := NewDefaultKeyer()

	input := map[string]any{
		"query": "SELECT * FROM users WHERE id = $1",
		"args":  []any{42},
	}

	first, err := k.Key("queries", input)
	if err != nil {
		t.Fatalf("Key() error = %v", err)
	}

	for i := 0; i < 20; i++ {
		key, err := k.Key("queries", input)
		if err != nil {
			t.Fatalf("Key() error = %v", err)
		}
		if key != first {
			t.Fatalf("Key() = %q, want %q (must be deterministic)", key, first)
		}
	}
}

func TestDefaultKeyer_Format(t *testing.T) {
	k := NewDefaultKeyer()

	key, err := k.Key("ns", "hello")
	if err != nil {
		t.Fatalf("Key() error = %v", err)
	}

	parts := strings.SplitN(key, ":", 2)
	if len(parts) != 2 || parts[0] != "ns" {
		t.Fatalf("Key() = %q, want ns:<hash>", key)
	}
	if len(parts[1]) != 16 {
		t.Errorf("hash length = %d, want 16", len(parts[1]))
	}
}

func TestDefaultKeyer_DistinctInputs(t *testing.T) {
	k := NewDefaultKeyer()

	a, _ := k.Key("ns", map[string]any{"id": 1})
	b, _ := k.Key("ns", map[string]any{"id": 2})
	if a == b {
		t.Error("different inputs should produce different keys")
	}

	c, _ := k.Key("other", map[string]any{"id": 1})
	if a == c {
		t.Error("different namespaces should produce different keys")
	}
}

func TestDefaultKeyer_NestedMaps(t *testing.T) {
	k := NewDefaultKeyer()

	a, err := k.Key("ns", map[string]any{
		"outer": map[string]any{"b": 2, "a": 1},
		"list":  []any{map[string]any{"y": 2, "x": 1}},
	})
	if err != nil {
		t.Fatalf("Key() error = %v", err)
	}

	b, _ := k.Key("ns", map[string]any{
		"list":  []any{map[string]any{"x": 1, "y": 2}},
		"outer": map[string]any{"a": 1, "b": 2},
	})

	if a != b {
		t.Error("map ordering must not change the key")
	}
}

func TestDefaultKeyer_NilInput(t *testing.T) {
	k := NewDefaultKeyer()

	if _, err := k.Key("ns", nil); err != nil {
		t.Errorf("Key(nil) error = %v", err)
	}
}
