package reloc

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"coregraph/internal/graph"
	"coregraph/internal/layout"
	"coregraph/internal/source"
	"coregraph/internal/types"
)

type env struct {
	strs *source.Interner
	in   *types.Interner
}

func newEnv() *env {
	strs := source.NewInterner()
	return &env{strs: strs, in: types.NewInterner(strs)}
}

func (e *env) str(s string) source.StringID { return e.strs.Intern(s) }

func (e *env) intN(bits uint16) types.TypeID {
	return e.in.Intern(types.MakeInt(bits, true))
}

func (e *env) ptr(to types.TypeID) types.TypeID {
	return e.in.Intern(types.MakePtr(to))
}

func (e *env) member(name string, t types.TypeID) types.Member {
	return types.Member{Name: e.str(name), Type: t}
}

func (e *env) anon(t types.TypeID) types.Member {
	return types.Member{Name: source.NoStringID, Type: t}
}

func (e *env) view(t *testing.T, decls ...types.TypeID) *View {
	t.Helper()
	g, err := graph.NewBuilder(e.in).Build(decls)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return &View{Graph: g, Layout: layout.New(layout.X86_64LinuxGNU(), e.in)}
}

// buildS models the reloc fixture:
//
//	struct T { int t1; int t2; };
//	typedef struct { int x; } W;
//	struct S {
//	    const volatile union {
//	        const int a;
//	        const union {
//	            char b;
//	            struct { char c; int d; } e;
//	            struct { long q; int r; } p;
//	            struct { long q2; int r2; } p2;
//	        };
//	    };
//	    struct T f[4];
//	    struct V { const char *g; void (*h)(int); } v;
//	    W w;
//	    struct { struct T x[5]; } y[4];
//	};
func buildS(e *env) (s, tT types.TypeID) {
	i8 := e.intN(8)
	i32 := e.intN(32)
	i64 := e.intN(64)
	constI32 := e.in.Intern(types.MakeQualified(types.KindConst, i32))

	tT = e.in.RegisterStruct(e.str("T"))
	e.in.SetMembers(tT, []types.Member{e.member("t1", i32), e.member("t2", i32)})

	wBody := e.in.RegisterStruct(source.NoStringID)
	e.in.SetMembers(wBody, []types.Member{e.member("x", i32)})
	w := e.in.RegisterTypedef(e.str("W"), wBody)

	eSt := e.in.RegisterStruct(source.NoStringID)
	e.in.SetMembers(eSt, []types.Member{e.member("c", i8), e.member("d", i32)})
	pSt := e.in.RegisterStruct(source.NoStringID)
	e.in.SetMembers(pSt, []types.Member{e.member("q", i64), e.member("r", i32)})
	p2St := e.in.RegisterStruct(source.NoStringID)
	e.in.SetMembers(p2St, []types.Member{e.member("q2", i64), e.member("r2", i32)})

	innerU := e.in.RegisterUnion(source.NoStringID)
	e.in.SetMembers(innerU, []types.Member{
		e.member("b", i8),
		e.member("e", eSt),
		e.member("p", pSt),
		e.member("p2", p2St),
	})
	outerU := e.in.RegisterUnion(source.NoStringID)
	e.in.SetMembers(outerU, []types.Member{
		e.member("a", constI32),
		e.anon(e.in.Intern(types.MakeQualified(types.KindConst, innerU))),
	})

	v := e.in.RegisterStruct(e.str("V"))
	proto := e.in.RegisterFuncProto(e.in.Void(), []types.Param{{Type: i32}})
	e.in.SetMembers(v, []types.Member{
		e.member("g", e.ptr(e.in.Intern(types.MakeQualified(types.KindConst, i8)))),
		e.member("h", e.ptr(proto)),
	})

	yElem := e.in.RegisterStruct(source.NoStringID)
	e.in.SetMembers(yElem, []types.Member{e.member("x", e.in.Intern(types.MakeArray(tT, 5)))})

	s = e.in.RegisterStruct(e.str("S"))
	e.in.SetMembers(s, []types.Member{
		e.anon(e.in.Intern(types.MakeQualified(types.KindConst, e.in.Intern(types.MakeQualified(types.KindVolatile, outerU))))),
		e.member("f", e.in.Intern(types.MakeArray(tT, 4))),
		e.member("v", v),
		e.member("w", w),
		e.member("y", e.in.Intern(types.MakeArray(yElem, 4))),
	})
	return s, tT
}

func TestParseSpec(t *testing.T) {
	spec, err := ParseSpec("0:1:12")
	if err != nil {
		t.Fatalf("ParseSpec: %v", err)
	}
	if diff := cmp.Diff(AccessSpec{0, 1, 12}, spec); diff != "" {
		t.Fatalf("spec mismatch:\n%s", diff)
	}
	if spec.String() != "0:1:12" {
		t.Fatalf("String() = %q", spec.String())
	}

	for _, bad := range []string{"", "0:x", "-1", "0:4294967296"} {
		if _, err := ParseSpec(bad); err == nil {
			t.Fatalf("ParseSpec(%q) succeeded, want error", bad)
		}
	}
}

func TestAccessorsSkipAnonymousSteps(t *testing.T) {
	e := newEnv()
	s, _ := buildS(e)
	v := e.view(t, s)

	// s->p.q: root 0, outer anon union, inner anon union, p, q.
	accs, err := Accessors(v.Graph, s, AccessSpec{0, 0, 1, 2, 0})
	if err != nil {
		t.Fatalf("Accessors: %v", err)
	}
	var names []string
	for _, a := range accs {
		if a.Kind == AccessField {
			names = append(names, a.Name)
		}
	}
	if diff := cmp.Diff([]string{"p", "q"}, names); diff != "" {
		t.Fatalf("field names (-want +got):\n%s", diff)
	}
	if accs[0].Kind != AccessIndex || accs[0].Index != 0 {
		t.Fatalf("first accessor = %+v, want root array index 0", accs[0])
	}
}

func TestResolveAnonymousDescent(t *testing.T) {
	e := newEnv()
	s, _ := buildS(e)
	v := e.view(t, s)
	r := NewResolver(v, v)

	res, err := r.ResolveRecord(Record{Root: s, Spec: AccessSpec{0, 0, 1, 2, 0}})
	if err != nil {
		t.Fatalf("ResolveRecord: %v", err)
	}
	if diff := cmp.Diff(AccessSpec{0, 0, 1, 2, 0}, res.Target.Spec); diff != "" {
		t.Fatalf("target spec (-want +got):\n%s", diff)
	}
	if res.Target.ByteOffset != 0 || res.Target.Size != 8 {
		t.Fatalf("q placement = (%d,%d), want offset 0 size 8", res.Target.ByteOffset, res.Target.Size)
	}
}

func TestResolveArrayIndexesPreserved(t *testing.T) {
	e := newEnv()
	s, _ := buildS(e)
	v := e.view(t, s)
	r := NewResolver(v, v)

	// s[1].y[2].x[3].t2
	spec := AccessSpec{1, 4, 2, 0, 3, 1}
	res, err := r.ResolveRecord(Record{Root: s, Spec: spec})
	if err != nil {
		t.Fatalf("ResolveRecord: %v", err)
	}
	if diff := cmp.Diff(spec, res.Target.Spec); diff != "" {
		t.Fatalf("target spec (-want +got):\n%s", diff)
	}
	// S is 232 bytes; y at 68, stride 40; x stride 8; t2 at 4.
	want := 1*232 + 68 + 2*40 + 3*8 + 4
	if res.Target.ByteOffset != want {
		t.Fatalf("offset = %d, want %d", res.Target.ByteOffset, want)
	}
	if res.Target.Size != 4 {
		t.Fatalf("size = %d, want 4", res.Target.Size)
	}
	if res.Local.ByteOffset != want {
		t.Fatalf("local offset = %d, want %d (same graph)", res.Local.ByteOffset, want)
	}
}

func TestResolveAgainstRearrangedTarget(t *testing.T) {
	local := newEnv()
	s, _ := buildS(local)
	lv := local.view(t, s)

	// Target's struct S has the members in a different order and no anon
	// wrapper around p; matching goes by name, not by index.
	target := newEnv()
	i32 := target.intN(32)
	i64 := target.intN(64)
	tT := target.in.RegisterStruct(target.str("T"))
	target.in.SetMembers(tT, []types.Member{target.member("t1", i32), target.member("t2", i32)})
	pSt := target.in.RegisterStruct(source.NoStringID)
	target.in.SetMembers(pSt, []types.Member{target.member("q", i64), target.member("r", i32)})
	ts := target.in.RegisterStruct(target.str("S"))
	target.in.SetMembers(ts, []types.Member{
		target.member("f", target.in.Intern(types.MakeArray(tT, 4))),
		target.member("p", pSt),
	})
	tv := target.view(t, ts, tT)

	r := NewResolver(lv, tv)
	res, err := r.ResolveRecord(Record{Root: s, Spec: AccessSpec{0, 0, 1, 2, 0}})
	if err != nil {
		t.Fatalf("ResolveRecord: %v", err)
	}
	if diff := cmp.Diff(AccessSpec{0, 1, 0}, res.Target.Spec); diff != "" {
		t.Fatalf("target spec (-want +got):\n%s", diff)
	}
	if res.Target.ByteOffset != 32 {
		t.Fatalf("offset = %d, want 32 (after f[4])", res.Target.ByteOffset)
	}
	if diff := cmp.Diff([]types.TypeID{ts}, res.Matched); diff != "" {
		t.Fatalf("matched (-want +got):\n%s", diff)
	}
}

func TestResolveTypedefRootMatchesByTagName(t *testing.T) {
	local := newEnv()
	// struct s { int a; }; typedef struct s sdef; the record roots at the
	// typedef, candidates match the underlying tag.
	li32 := local.intN(32)
	ls := local.in.RegisterStruct(local.str("s"))
	local.in.SetMembers(ls, []types.Member{local.member("a", li32)})
	alias := local.in.RegisterTypedef(local.str("sdef"), ls)
	lv := local.view(t, ls, alias)

	target := newEnv()
	ti32 := target.intN(32)
	ts := target.in.RegisterStruct(target.str("s"))
	target.in.SetMembers(ts, []types.Member{target.member("a", ti32)})
	tv := target.view(t, ts)

	r := NewResolver(lv, tv)
	res, err := r.ResolveRecord(Record{Root: alias, Spec: AccessSpec{0, 0}})
	if err != nil {
		t.Fatalf("ResolveRecord: %v", err)
	}
	if res.Target.ByteOffset != 0 || res.Target.Size != 4 {
		t.Fatalf("a placement = (%d,%d), want (0,4)", res.Target.ByteOffset, res.Target.Size)
	}
	if diff := cmp.Diff([]types.TypeID{ts}, res.Matched); diff != "" {
		t.Fatalf("matched (-want +got):\n%s", diff)
	}
}

func TestResolveFieldNotFound(t *testing.T) {
	local := newEnv()
	s, _ := buildS(local)
	lv := local.view(t, s)

	target := newEnv()
	ts := target.in.RegisterStruct(target.str("S"))
	target.in.SetMembers(ts, []types.Member{target.member("other", target.intN(32))})
	tv := target.view(t, ts)

	r := NewResolver(lv, tv)
	accs, err := Accessors(lv.Graph, s, AccessSpec{0, 3}) // s->w
	if err != nil {
		t.Fatalf("Accessors: %v", err)
	}
	_, err = r.Resolve(ts, accs)
	var nf *FieldNotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("Resolve err = %v, want *FieldNotFoundError", err)
	}
	if nf.Name != "w" {
		t.Fatalf("missing field = %q, want w", nf.Name)
	}

	// Through the candidate loop the same record has no usable candidate.
	_, err = r.ResolveRecord(Record{Root: s, Spec: AccessSpec{0, 3}})
	var nc *NoCandidateError
	if !errors.As(err, &nc) {
		t.Fatalf("ResolveRecord err = %v, want *NoCandidateError", err)
	}
}

func TestResolveAmbiguousAnonymousMatch(t *testing.T) {
	local := newEnv()
	i32 := local.intN(32)
	ls := local.in.RegisterStruct(local.str("S"))
	local.in.SetMembers(ls, []types.Member{local.member("dup", i32)})
	lv := local.view(t, ls)

	target := newEnv()
	ti32 := target.intN(32)
	a1 := target.in.RegisterStruct(source.NoStringID)
	target.in.SetMembers(a1, []types.Member{target.member("dup", ti32)})
	a2 := target.in.RegisterStruct(source.NoStringID)
	target.in.SetMembers(a2, []types.Member{target.member("dup", ti32)})
	ts := target.in.RegisterStruct(target.str("S"))
	target.in.SetMembers(ts, []types.Member{target.anon(a1), target.anon(a2)})
	tv := target.view(t, ts)

	r := NewResolver(lv, tv)
	accs, err := Accessors(lv.Graph, ls, AccessSpec{0, 0})
	if err != nil {
		t.Fatalf("Accessors: %v", err)
	}
	_, err = r.Resolve(ts, accs)
	var amb *AmbiguousFieldError
	if !errors.As(err, &amb) {
		t.Fatalf("Resolve err = %v, want *AmbiguousFieldError", err)
	}
}

func TestResolveChainedAnonymousUnions(t *testing.T) {
	// struct S { union { int a; union { char b; union { long q; int r; } p; }; }; };
	e := newEnv()
	i8 := e.intN(8)
	i32 := e.intN(32)
	i64 := e.intN(64)
	pSt := e.in.RegisterStruct(source.NoStringID)
	e.in.SetMembers(pSt, []types.Member{e.member("q", i64), e.member("r", i32)})
	innerU := e.in.RegisterUnion(source.NoStringID)
	e.in.SetMembers(innerU, []types.Member{e.member("b", i8), e.member("p", pSt)})
	outerU := e.in.RegisterUnion(source.NoStringID)
	e.in.SetMembers(outerU, []types.Member{e.member("a", i32), e.anon(innerU)})
	s := e.in.RegisterStruct(e.str("S"))
	e.in.SetMembers(s, []types.Member{e.anon(outerU)})
	v := e.view(t, s)
	r := NewResolver(v, v)

	res, err := r.ResolveNamed(s, []Step{{Name: "p"}, {Name: "r"}})
	if err != nil {
		t.Fatalf("ResolveNamed: %v", err)
	}
	if diff := cmp.Diff(AccessSpec{0, 0, 1, 1, 1}, res.Spec); diff != "" {
		t.Fatalf("spec (-want +got):\n%s", diff)
	}
	if res.ByteOffset != 8 || res.Size != 4 {
		t.Fatalf("r placement = (%d,%d), want (8,4)", res.ByteOffset, res.Size)
	}
}

func TestResolveBitfieldLeaf(t *testing.T) {
	e := newEnv()
	i32 := e.intN(32)
	s := e.in.RegisterStruct(e.str("S"))
	e.in.SetMembers(s, []types.Member{
		{Name: e.str("flags"), Type: i32, Bitfield: true, BitWidth: 3},
		{Name: e.str("mode"), Type: i32, Bitfield: true, BitWidth: 5},
	})
	v := e.view(t, s)
	r := NewResolver(v, v)

	res, err := r.ResolveNamed(s, []Step{{Name: "mode"}})
	if err != nil {
		t.Fatalf("ResolveNamed: %v", err)
	}
	if res.ByteOffset != 0 || res.Size != 4 || res.BitOffset != 3 || res.BitWidth != 5 {
		t.Fatalf("mode = %+v, want storage unit at 0 size 4, bit 3 width 5", res)
	}
}

func TestResolveAmbiguousOffsetAcrossCandidates(t *testing.T) {
	local := newEnv()
	li32 := local.intN(32)
	ls := local.in.RegisterStruct(local.str("S"))
	local.in.SetMembers(ls, []types.Member{local.member("a", li32)})
	lv := local.view(t, ls)

	// Two target types named S place "a" at different offsets.
	target := newEnv()
	ti32 := target.intN(32)
	s1 := target.in.RegisterStruct(target.str("S"))
	target.in.SetMembers(s1, []types.Member{target.member("a", ti32)})
	s2 := target.in.RegisterStruct(target.str("S"))
	target.in.SetMembers(s2, []types.Member{target.member("pad", ti32), target.member("a", ti32)})
	tv := target.view(t, s1, s2)

	r := NewResolver(lv, tv)
	_, err := r.ResolveRecord(Record{Root: ls, Spec: AccessSpec{0, 0}})
	var amb *AmbiguousOffsetError
	if !errors.As(err, &amb) {
		t.Fatalf("ResolveRecord err = %v, want *AmbiguousOffsetError", err)
	}
}

func TestResolveAllRunsConcurrently(t *testing.T) {
	e := newEnv()
	s, _ := buildS(e)
	v := e.view(t, s)
	r := NewResolver(v, v)

	recs := []Record{
		{Root: s, Spec: AccessSpec{0, 0, 1, 2, 0}}, // s->p.q
		{Root: s, Spec: AccessSpec{0, 0, 1, 2, 1}}, // s->p.r
		{Root: s, Spec: AccessSpec{0, 1, 3}},       // s->f[3]
		{Root: s, Spec: AccessSpec{1, 4, 2, 0, 3, 1}},
	}
	out, err := r.ResolveAll(context.Background(), recs, 4)
	if err != nil {
		t.Fatalf("ResolveAll: %v", err)
	}
	wantOffsets := []int{0, 8, 16 + 3*8, 1*232 + 68 + 2*40 + 3*8 + 4}
	for i, res := range out {
		if res == nil {
			t.Fatalf("record %d missing result", i)
		}
		if res.Target.ByteOffset != wantOffsets[i] {
			t.Fatalf("record %d offset = %d, want %d", i, res.Target.ByteOffset, wantOffsets[i])
		}
	}
}
