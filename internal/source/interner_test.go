package source

import "testing"

func TestInternerRoundTrip(t *testing.T) {
	in := NewInterner()
	a := in.Intern("next")
	b := in.Intern("prev")
	if a == b {
		t.Fatalf("distinct strings share ID %d", a)
	}
	if got := in.Intern("next"); got != a {
		t.Fatalf("re-intern of %q: got %d, want %d", "next", got, a)
	}
	s, ok := in.Lookup(b)
	if !ok || s != "prev" {
		t.Fatalf("Lookup(%d) = %q, %v", b, s, ok)
	}
}

func TestInternerEmptyIsAnonymous(t *testing.T) {
	in := NewInterner()
	if got := in.Intern(""); got != NoStringID {
		t.Fatalf("Intern(\"\") = %d, want NoStringID", got)
	}
	if in.Len() != 1 {
		t.Fatalf("fresh interner Len = %d, want 1", in.Len())
	}
}
