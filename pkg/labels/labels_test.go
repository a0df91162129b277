package labels

import "testing"

func TestCanonicalizeKeyOrderIrrelevant(t *testing.T) {
	a := Set{"zone": "us", "host": "h1"}
	b := Set{"host": "h1", "zone": "us"}

	if a.Canonicalize() != b.Canonicalize() {
		t.Fatalf("canonical forms differ: %q vs %q", a.Canonicalize(), b.Canonicalize())
	}
	if a.Hash() != b.Hash() {
		t.Fatalf("hashes differ for equivalent label sets")
	}
}

func TestCanonicalizeEmpty(t *testing.T) {
	var s Set
	if s.Canonicalize() != "" {
		t.Fatalf("expected empty canonical form, got %q", s.Canonicalize())
	}
}

func TestSetMatches(t *testing.T) {
	s := Set{"sensor": "CPU Temp", "unit": "celsius"}

	tests := []struct {
		name string
		want Set
		ok   bool
	}{
		{"exact", Set{"sensor": "CPU Temp", "unit": "celsius"}, true},
		{"subset", Set{"sensor": "CPU Temp"}, true},
		{"empty filter conjunct matches everything", Set{}, true},
		{"mismatch", Set{"sensor": "GPU Temp"}, false},
		{"unknown key", Set{"missing": "x"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.Matches(tt.want); got != tt.ok {
				t.Errorf("Matches(%v) = %v, want %v", tt.want, got, tt.ok)
			}
		})
	}
}

func TestFilterMatchesOrSemantics(t *testing.T) {
	f := Filter{
		{"k1": "v1", "k2": "v2"},
		{"k1": "v3"},
	}

	if !f.Matches(Set{"k1": "v1", "k2": "v2"}) {
		t.Fatalf("expected first conjunct to match")
	}
	if !f.Matches(Set{"k1": "v3", "k2": "anything"}) {
		t.Fatalf("expected second conjunct to match regardless of k2")
	}
	if f.Matches(Set{"k1": "v1", "k2": "other"}) {
		t.Fatalf("expected no match: k2 disagrees with first conjunct, k1 disagrees with second")
	}
}

func TestEmptyFilterMatchesEverything(t *testing.T) {
	var f Filter
	if !f.Matches(Set{"anything": "goes"}) {
		t.Fatalf("empty filter must match every series")
	}
}

func TestDecanonicalizeRoundTrip(t *testing.T) {
	s := Set{"zone": "us", "host": "h1"}
	got := Decanonicalize(s.Canonicalize())
	if got.Canonicalize() != s.Canonicalize() {
		t.Fatalf("round trip mismatch: got %v, want %v", got, s)
	}
}

func TestDecanonicalizeEmpty(t *testing.T) {
	got := Decanonicalize("")
	if len(got) != 0 {
		t.Fatalf("expected empty set, got %v", got)
	}
}
