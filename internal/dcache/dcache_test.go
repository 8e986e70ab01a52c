package dcache

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"coregraph/internal/layout"
	"coregraph/internal/source"
	"coregraph/internal/types"
)

func fixtureEngine(t *testing.T) (*layout.Engine, []types.TypeID) {
	t.Helper()
	strs := source.NewInterner()
	in := types.NewInterner(strs)
	intT := in.Intern(types.MakeInt(32, true))
	charT := in.Intern(types.MakeInt(8, true))
	s := in.RegisterStruct(strs.Intern("s"))
	in.SetMembers(s, []types.Member{
		{Name: strs.Intern("c"), Type: charT},
		{Name: strs.Intern("x"), Type: intT},
	})
	ghost := in.RegisterFwd(strs.Intern("ghost"), false)
	return layout.New(layout.X86_64LinuxGNU(), in), []types.TypeID{s, ghost}
}

func TestPutGetRoundtrip(t *testing.T) {
	c, err := OpenAt(t.TempDir())
	if err != nil {
		t.Fatalf("OpenAt: %v", err)
	}
	eng, decls := fixtureEngine(t)

	payload := Snapshot(eng, decls, "x86_64-linux-gnu")
	if len(payload.Layouts) != 1 {
		t.Fatalf("snapshot kept %d layouts, want 1 (fwd has none)", len(payload.Layouts))
	}

	key := SetDigest([]byte("struct s { char c; int x; };"), "x86_64-linux-gnu")
	if err := c.Put(key, payload); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, ok, err := c.Get(key)
	if err != nil || !ok {
		t.Fatalf("Get = %v, %v", ok, err)
	}
	if diff := cmp.Diff(payload, got); diff != "" {
		t.Fatalf("payload mismatch (-want +got):\n%s", diff)
	}

	tl, ok := got.Lookup(decls[0])
	if !ok {
		t.Fatalf("Lookup missed struct s")
	}
	want, err := eng.LayoutOf(decls[0])
	if err != nil {
		t.Fatalf("LayoutOf: %v", err)
	}
	if diff := cmp.Diff(want, tl); diff != "" {
		t.Fatalf("layout mismatch (-want +got):\n%s", diff)
	}
}

func TestGetMisses(t *testing.T) {
	c, err := OpenAt(t.TempDir())
	if err != nil {
		t.Fatalf("OpenAt: %v", err)
	}
	if _, ok, err := c.Get(SetDigest([]byte("nope"), "t")); ok || err != nil {
		t.Fatalf("Get on empty cache = %v, %v", ok, err)
	}

	// An entry written under another schema version reads as a miss.
	key := SetDigest([]byte("old"), "t")
	if err := c.Put(key, &Payload{Schema: 999}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, ok, err := c.Get(key); ok || err != nil {
		t.Fatalf("Get with stale schema = %v, %v", ok, err)
	}
}

func TestDigestSeparatesTargets(t *testing.T) {
	doc := []byte("struct s { int x; };")
	if SetDigest(doc, "x86_64-linux-gnu") == SetDigest(doc, "aarch64-linux-gnu") {
		t.Fatalf("digests collide across targets")
	}
}

func TestDropAll(t *testing.T) {
	c, err := OpenAt(t.TempDir())
	if err != nil {
		t.Fatalf("OpenAt: %v", err)
	}
	key := SetDigest([]byte("x"), "t")
	if err := c.Put(key, &Payload{Schema: schemaVersion}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := c.DropAll(); err != nil {
		t.Fatalf("DropAll: %v", err)
	}
	if _, ok, _ := c.Get(key); ok {
		t.Fatalf("entry survived DropAll")
	}
}
