package codec

import (
	"testing"
)

func TestSetDedup(t *testing.T) {
	s := NewSet(1, 2, 1, 3, 2)
	if s.Len() != 3 {
		t.Fatalf("len = %d, want 3", s.Len())
	}
	for _, v := range []any{1, 2, 3} {
		if !s.Has(v) {
			t.Errorf("Has(%v) = false", v)
		}
	}
	if s.Has(4) {
		t.Error("Has(4) = true")
	}
}

func TestSetIdentityElements(t *testing.T) {
	a := []any{"x"}
	b := []any{"x"}

	s := NewSet(a, a, b)
	if s.Len() != 2 {
		t.Errorf("len = %d, want 2 (identity, not structural equality)", s.Len())
	}
}

func TestMapReplace(t *testing.T) {
	m := NewMap().Set("k", 1).Set("k", 2).Set("other", 3)
	if m.Len() != 2 {
		t.Fatalf("len = %d, want 2", m.Len())
	}
	v, ok := m.Get("k")
	if !ok || v != 2 {
		t.Errorf("Get(k) = %v, %v, want 2, true", v, ok)
	}
	entries := m.Entries()
	if entries[0].Key != "k" || entries[1].Key != "other" {
		t.Errorf("entry order = %v", entries)
	}
}

func TestMapMissingKey(t *testing.T) {
	m := NewMap()
	if _, ok := m.Get("absent"); ok {
		t.Error("Get on empty map reported a hit")
	}
}

func TestSameValue(t *testing.T) {
	slice := []any{1}

	tests := []struct {
		name string
		a, b any
		want bool
	}{
		{name: "equal ints", a: 1, b: 1, want: true},
		{name: "int vs int64", a: 1, b: int64(1), want: false},
		{name: "both nil", a: nil, b: nil, want: true},
		{name: "nil vs value", a: nil, b: 0, want: false},
		{name: "same slice", a: slice, b: slice, want: true},
		{name: "equal but distinct slices", a: []any{1}, b: []any{1}, want: false},
		{name: "strings", a: "x", b: "x", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sameValue(tt.a, tt.b); got != tt.want {
				t.Errorf("sameValue(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestMarkerString(t *testing.T) {
	if Absent.String() != "absent" || Hole.String() != "hole" {
		t.Error("marker strings changed")
	}
}
