package order

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"coregraph/internal/diag"
	"coregraph/internal/graph"
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

func (e *env) intType() types.TypeID {
	return e.in.Intern(types.MakeInt(32, true))
}

func (e *env) ptr(to types.TypeID) types.TypeID {
	return e.in.Intern(types.MakePtr(to))
}

func (e *env) member(name string, t types.TypeID) types.Member {
	return types.Member{Name: e.str(name), Type: t}
}

func (e *env) order(t *testing.T, decls []types.TypeID) *Result {
	t.Helper()
	g, err := graph.NewBuilder(e.in).Build(decls)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	res, err := New(g).Order(nil)
	if err != nil {
		t.Fatalf("Order: %v", err)
	}
	return res
}

// render turns an emission list into e.g. ["fwd s2", "s3", "s4"].
func (e *env) render(res *Result) []string {
	out := make([]string, 0, len(res.Emissions))
	for _, em := range res.Emissions {
		name, _ := e.strs.Lookup(e.in.Name(em.ID))
		if em.Fwd {
			out = append(out, "fwd "+name)
		} else {
			out = append(out, name)
		}
	}
	return out
}

func TestOrderValueDependencyFirst(t *testing.T) {
	e := newEnv()
	// struct outer { struct inner v; }; inner declared after outer.
	inner := e.in.RegisterStruct(e.str("inner"))
	e.in.SetMembers(inner, []types.Member{e.member("x", e.intType())})
	outer := e.in.RegisterStruct(e.str("outer"))
	e.in.SetMembers(outer, []types.Member{e.member("v", inner)})

	res := e.order(t, []types.TypeID{outer, inner})
	want := []string{"inner", "outer"}
	if diff := cmp.Diff(want, e.render(res)); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
	if len(res.Breaks) != 0 {
		t.Fatalf("breaks = %v, want none", res.Breaks)
	}
}

func TestOrderSelfReferenceNeedsNoFwd(t *testing.T) {
	e := newEnv()
	// struct list_head { struct list_head *next, *prev; };
	lh := e.in.RegisterStruct(e.str("list_head"))
	e.in.SetMembers(lh, []types.Member{
		e.member("next", e.ptr(lh)),
		e.member("prev", e.ptr(lh)),
	})

	res := e.order(t, []types.TypeID{lh})
	want := []string{"list_head"}
	if diff := cmp.Diff(want, e.render(res)); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestOrderTwoNodeWeakCycle(t *testing.T) {
	e := newEnv()
	// struct a; struct b { struct a *p; }; struct a { struct b *p; };
	fwdA := e.in.RegisterFwd(e.str("a"), false)
	b := e.in.RegisterStruct(e.str("b"))
	e.in.SetMembers(b, []types.Member{e.member("p", e.ptr(fwdA))})
	a := e.in.RegisterStruct(e.str("a"))
	e.in.SetMembers(a, []types.Member{e.member("p", e.ptr(b))})

	res := e.order(t, []types.TypeID{fwdA, b, a})
	want := []string{"fwd a", "b", "a"}
	if diff := cmp.Diff(want, e.render(res)); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
	wantBreaks := []Break{{From: b, To: a}}
	if diff := cmp.Diff(wantBreaks, res.Breaks); diff != "" {
		t.Fatalf("breaks mismatch (-want +got):\n%s", diff)
	}
}

func TestOrderMixedCycleBreaksWeakEdge(t *testing.T) {
	e := newEnv()
	// struct t1; typedef struct t1 t1_t;
	// struct t1 { const struct t2 *t; }; struct t2 { t1_t t; };
	fwdT1 := e.in.RegisterFwd(e.str("t1"), false)
	t1 := e.in.RegisterStruct(e.str("t1"))
	t2 := e.in.RegisterStruct(e.str("t2"))
	t1t := e.in.RegisterTypedef(e.str("t1_t"), t1)
	constT2 := e.in.Intern(types.MakeQualified(types.KindConst, t2))
	e.in.SetMembers(t1, []types.Member{e.member("t", e.ptr(constT2))})
	e.in.SetMembers(t2, []types.Member{e.member("t", t1t)})

	res := e.order(t, []types.TypeID{fwdT1, t1t, t1, t2})
	// t2 is needed only through a pointer inside t1, so the cycle is cut
	// by a forward declaration of t2; t1 and the alias then precede it.
	want := []string{"fwd t2", "t1", "t1_t", "t2"}
	if diff := cmp.Diff(want, e.render(res)); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
	wantBreaks := []Break{{From: t1, To: t2}}
	if diff := cmp.Diff(wantBreaks, res.Breaks); diff != "" {
		t.Fatalf("breaks mismatch (-want +got):\n%s", diff)
	}
}

func TestOrderStrongChainWithWeakBack(t *testing.T) {
	e := newEnv()
	// struct s4 { struct s3 *a; }; struct s3 { struct s2 *x1; };
	// struct s2 { struct s3 a; };
	s4 := e.in.RegisterStruct(e.str("s4"))
	s3 := e.in.RegisterStruct(e.str("s3"))
	s2 := e.in.RegisterStruct(e.str("s2"))
	e.in.SetMembers(s4, []types.Member{e.member("a", e.ptr(s3))})
	e.in.SetMembers(s3, []types.Member{e.member("x1", e.ptr(s2))})
	e.in.SetMembers(s2, []types.Member{e.member("a", s3)})

	res := e.order(t, []types.TypeID{s4, s3, s2})
	want := []string{"fwd s2", "s3", "s4", "s2"}
	if diff := cmp.Diff(want, e.render(res)); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestOrderDoubleStrongEmbedding(t *testing.T) {
	e := newEnv()
	// struct s3 {}; struct s1 { struct s3 *s3; struct s2 *s2; struct s4 *s4; };
	// struct s2 { const struct s1 s1; volatile struct s3 s3; };
	// struct s4 { struct s2 s2; struct s1 s1; };
	s3 := e.in.RegisterStruct(e.str("s3"))
	s1 := e.in.RegisterStruct(e.str("s1"))
	s2 := e.in.RegisterStruct(e.str("s2"))
	s4 := e.in.RegisterStruct(e.str("s4"))
	e.in.SetMembers(s1, []types.Member{
		e.member("s3", e.ptr(s3)),
		e.member("s2", e.ptr(s2)),
		e.member("s4", e.ptr(s4)),
	})
	e.in.SetMembers(s2, []types.Member{
		e.member("s1", e.in.Intern(types.MakeQualified(types.KindConst, s1))),
		e.member("s3", e.in.Intern(types.MakeQualified(types.KindVolatile, s3))),
	})
	e.in.SetMembers(s4, []types.Member{
		e.member("s2", s2),
		e.member("s1", s1),
	})

	res := e.order(t, []types.TypeID{s3, s1, s2, s4})
	want := []string{"s3", "fwd s2", "fwd s4", "s1", "s2", "s4"}
	if diff := cmp.Diff(want, e.render(res)); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestOrderAllStrongCycleIsIllegal(t *testing.T) {
	e := newEnv()
	// struct p { struct q v; }; struct q { struct p v; };
	p := e.in.RegisterStruct(e.str("p"))
	q := e.in.RegisterStruct(e.str("q"))
	e.in.SetMembers(p, []types.Member{e.member("v", q)})
	e.in.SetMembers(q, []types.Member{e.member("v", p)})

	g, err := graph.NewBuilder(e.in).Build([]types.TypeID{p, q})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	_, err = New(g).Order(nil)
	var cerr *IllegalCycleError
	if !errors.As(err, &cerr) {
		t.Fatalf("Order err = %v, want *IllegalCycleError", err)
	}
	want := []types.TypeID{p, q}
	if diff := cmp.Diff(want, cerr.Cycle); diff != "" {
		t.Fatalf("cycle mismatch (-want +got):\n%s", diff)
	}
}

func TestOrderFuncProtoRefsStayForward(t *testing.T) {
	e := newEnv()
	// struct arg declared after ops; ops references it only through a
	// function pointer, so a forward declaration must suffice even though
	// arg transitively embeds another struct by value.
	deep := e.in.RegisterStruct(e.str("deep"))
	e.in.SetMembers(deep, []types.Member{e.member("x", e.intType())})
	arg := e.in.RegisterStruct(e.str("arg"))
	e.in.SetMembers(arg, []types.Member{e.member("d", deep)})
	proto := e.in.RegisterFuncProto(e.in.Void(), []types.Param{{Name: e.str("a"), Type: arg}})
	ops := e.in.RegisterStruct(e.str("ops"))
	e.in.SetMembers(ops, []types.Member{e.member("fn", e.ptr(proto))})

	res := e.order(t, []types.TypeID{ops, arg, deep})
	want := []string{"fwd arg", "ops", "deep", "arg"}
	if diff := cmp.Diff(want, e.render(res)); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestOrderUndefinedTagEmitsSingleFwd(t *testing.T) {
	e := newEnv()
	// struct s1; typedef void (*f1)(struct s1); typedef struct s1 (*f2)();
	// s1 is never defined; exactly one forward declaration appears.
	s1 := e.in.RegisterFwd(e.str("s1"), false)
	p1 := e.in.RegisterFuncProto(e.in.Void(), []types.Param{{Type: s1}})
	f1 := e.in.RegisterTypedef(e.str("f1"), e.ptr(p1))
	p2 := e.in.RegisterFuncProto(s1, nil)
	f2 := e.in.RegisterTypedef(e.str("f2"), e.ptr(p2))

	res := e.order(t, []types.TypeID{s1, f1, f2})
	want := []string{"fwd s1", "f1", "f2"}
	if diff := cmp.Diff(want, e.render(res)); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestOrderAnonymousMemberCycle(t *testing.T) {
	e := newEnv()
	// struct X {
	//   const struct X *const arr[10];
	//   struct { struct X *x1; };
	//   struct Y { struct X *x2; struct Y *y2; } y;
	// };
	x := e.in.RegisterStruct(e.str("X"))
	y := e.in.RegisterStruct(e.str("Y"))
	anon := e.in.RegisterStruct(source.NoStringID)
	e.in.SetMembers(anon, []types.Member{e.member("x1", e.ptr(x))})
	constX := e.in.Intern(types.MakeQualified(types.KindConst, x))
	constPtr := e.in.Intern(types.MakeQualified(types.KindConst, e.ptr(constX)))
	e.in.SetMembers(x, []types.Member{
		e.member("arr", e.in.Intern(types.MakeArray(constPtr, 10))),
		{Name: source.NoStringID, Type: anon},
		e.member("y", y),
	})
	e.in.SetMembers(y, []types.Member{
		e.member("x2", e.ptr(x)),
		e.member("y2", e.ptr(y)),
	})

	res := e.order(t, []types.TypeID{x, y})
	// The pointer back to X from inside the anonymous member forces a
	// forward declaration of X ahead of its own definition; Y is embedded
	// by value and therefore fully defined inside the same pass.
	want := []string{"fwd X", "Y", "X"}
	if diff := cmp.Diff(want, e.render(res)); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestOrderIsDeterministic(t *testing.T) {
	build := func() ([]string, []Break) {
		e := newEnv()
		s4 := e.in.RegisterStruct(e.str("s4"))
		s3 := e.in.RegisterStruct(e.str("s3"))
		s2 := e.in.RegisterStruct(e.str("s2"))
		e.in.SetMembers(s4, []types.Member{e.member("a", e.ptr(s3))})
		e.in.SetMembers(s3, []types.Member{e.member("x1", e.ptr(s2))})
		e.in.SetMembers(s2, []types.Member{e.member("a", s3)})
		g, err := graph.NewBuilder(e.in).Build([]types.TypeID{s4, s3, s2})
		if err != nil {
			t.Fatalf("Build: %v", err)
		}
		res, err := New(g).Order(nil)
		if err != nil {
			t.Fatalf("Order: %v", err)
		}
		return e.render(res), res.Breaks
	}
	em1, br1 := build()
	em2, br2 := build()
	if diff := cmp.Diff(em1, em2); diff != "" {
		t.Fatalf("emissions differ between runs:\n%s", diff)
	}
	if diff := cmp.Diff(br1, br2); diff != "" {
		t.Fatalf("breaks differ between runs:\n%s", diff)
	}
}

func TestOrderReportsBreaksOnBag(t *testing.T) {
	e := newEnv()
	fwdA := e.in.RegisterFwd(e.str("a"), false)
	b := e.in.RegisterStruct(e.str("b"))
	e.in.SetMembers(b, []types.Member{e.member("p", e.ptr(fwdA))})
	a := e.in.RegisterStruct(e.str("a"))
	e.in.SetMembers(a, []types.Member{e.member("p", e.ptr(b))})

	g, err := graph.NewBuilder(e.in).Build([]types.TypeID{fwdA, b, a})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	bag := diag.NewBag(16)
	if _, err := New(g).Order(bag); err != nil {
		t.Fatalf("Order: %v", err)
	}
	items := bag.Items()
	if len(items) != 1 {
		t.Fatalf("bag items = %v, want one cycle-break note", items)
	}
	if items[0].Code != diag.OrderCycleBreak || items[0].Severity != diag.SevInfo {
		t.Fatalf("diagnostic = %+v, want info/OrderCycleBreak", items[0])
	}
}
