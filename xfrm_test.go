package rtl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stmtStrings(stmts []Statement) []string {
	var ss []string
	for _, s := range stmts {
		ss = append(ss, s.String())
	}
	return ss
}

func TestMapValue(t *testing.T) {
	a := NewSignal(2, Name("a"))
	b := NewSignal(4, Name("b"))
	c := NewSignal(2, Name("c"))
	swap := func(v Value) (Value, bool, error) {
		if v == a {
			return b, true, nil
		}
		return nil, false, nil
	}

	v := Add(a, NewSlice(c, 0, 1))
	nv, err := MapValue(v, swap)
	require.NoError(t, err)
	assert.Equal(t, "(+ (sig b) (slice (sig c) 0:1))", nv.String())
	assert.Equal(t, Unsigned(5), nv.Shape())

	v = Add(c, 1)
	nv, err = MapValue(v, swap)
	require.NoError(t, err)
	assert.Same(t, v, nv)

	f := NewFragment()
	f.AddStatements(NewAssign(c, a))
	f.AddDriver(c, CombDomain)
	nf, err := MapFragment(f, swap)
	require.NoError(t, err)
	assert.Equal(t, []string{"(eq (sig c) (sig b))"}, stmtStrings(nf.Statements))
	assert.Equal(t, []Value{c}, nf.IterComb())
}

func TestDomainRenamer(t *testing.T) {
	_, err := NewDomainRenamer(map[string]string{CombDomain: "pix"})
	assert.True(t, IsKind(err, ValueError))
	_, err = NewDomainRenamer(map[string]string{"pix": CombDomain})
	assert.True(t, IsKind(err, ValueError))

	r, err := RenameSync("pix")
	require.NoError(t, err)
	s := NewSignal(2, Name("s"))
	v, err := r.Value(Add(NewClockSignal("sync"), NewSample(s, 1, "sync")))
	require.NoError(t, err)
	assert.Equal(t, "(+ (clk pix) (sample (sig s) @ pix[1]))", v.String())
	v, err = r.Value(NewResetSignal("video", false))
	require.NoError(t, err)
	assert.Equal(t, "(rst video)", v.String())

	x := NewSignal(1, Name("x"))
	cd := NewClockDomain("sync")
	f := NewFragment()
	require.NoError(t, f.AddDomains(cd))
	f.AddStatements(NewAssign(x, NewClockSignal("sync")))
	f.AddDriver(x, "sync")
	nf, err := r.TransformFragment(f)
	require.NoError(t, err)
	assert.Equal(t, []string{"pix"}, nf.IterDomains())
	assert.Equal(t, []string{"pix"}, nf.DriverDomains())
	assert.Same(t, cd, nf.Domain("pix"))
	assert.Equal(t, "pix_clk", cd.Clk.Name)
	assert.Equal(t, "pix_rst", cd.Rst.Name)
	assert.Equal(t, []string{"(eq (sig x) (clk pix))"}, stmtStrings(nf.Statements))
}

func TestDomainLowerer(t *testing.T) {
	x := NewSignal(2, Name("x"), Reset(3))
	y := NewSignal(1, Name("y"))
	z := NewSignal(1, Name("z"), ResetLess())
	cd := NewClockDomain("sync")
	f := NewFragment()
	require.NoError(t, f.AddDomains(cd))
	f.AddStatements(
		NewAssign(y, NewClockSignal("sync")),
		NewAssign(x, Add(x, NewResetSignal("sync", false))),
		NewAssign(z, y),
	)
	f.AddDriver(y, CombDomain)
	f.AddDriver(x, "sync")
	f.AddDriver(z, "sync")
	nf, err := DomainLowerer{}.TransformFragment(f)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"(eq (sig y) (sig clk))",
		"(eq (sig x) (+ (sig x) (sig rst)))",
		"(eq (sig z) (sig y))",
		"(switch (sig rst) (case 1 (eq (sig x) (const 2'd3))))",
	}, stmtStrings(nf.Statements))

	nr := NewFragment()
	require.NoError(t, nr.AddDomains(NewClockDomain("sync", NoReset())))
	nr.AddStatements(NewAssign(y, NewResetSignal("sync", true)))
	nf, err = DomainLowerer{}.TransformFragment(nr)
	require.NoError(t, err)
	assert.Equal(t, []string{"(eq (sig y) (const 1'd0))"}, stmtStrings(nf.Statements))

	nr = NewFragment()
	require.NoError(t, nr.AddDomains(NewClockDomain("sync", NoReset())))
	nr.AddStatements(NewAssign(y, NewResetSignal("sync", false)))
	_, err = DomainLowerer{}.TransformFragment(nr)
	assert.True(t, IsKind(err, DomainError), "%v", err)

	nr = NewFragment()
	nr.AddStatements(NewAssign(y, NewClockSignal("pix")))
	_, err = DomainLowerer{}.TransformFragment(nr)
	assert.True(t, IsKind(err, DomainError), "%v", err)
}

func TestSampleLowerer(t *testing.T) {
	s := NewSignal(2, Name("s"), Reset(1))
	o := NewSignal(2, Name("o"))
	f := NewFragment()
	f.AddStatements(NewAssign(o, Add(NewSample(s, 2, "sync"), NewSample(s, 1, "sync"))))
	f.AddDriver(o, CombDomain)
	nf, err := SampleLowerer{}.TransformFragment(f)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"(eq (sig o) (+ (sig $sample$s$s$sync$2) (sig $sample$s$s$sync$1)))",
		"(eq (sig $sample$s$s$sync$1) (sig s))",
		"(eq (sig $sample$s$s$sync$2) (sig $sample$s$s$sync$1))",
	}, stmtStrings(nf.Statements))
	regs := nf.Drivers("sync").Slice()
	require.Len(t, regs, 2)
	for _, r := range regs {
		sig := r.(*Signal)
		assert.True(t, sig.ResetLess)
		assert.Equal(t, int64(1), sig.Reset)
		assert.Equal(t, true, sig.Attrs["rtl.sample_reg"])
	}

	f = NewFragment()
	f.AddStatements(NewAssign(o, NewInitial()))
	nf, err = SampleLowerer{}.TransformFragment(f)
	require.NoError(t, err)
	assert.Equal(t, []string{"(eq (sig o) (sig init))"}, stmtStrings(nf.Statements))
	require.Len(t, nf.Subfragments, 1)
	assert.Equal(t, "$initstate", nf.Subfragments[0].Fragment.Instance.Type)

	f = NewFragment()
	f.AddStatements(NewAssign(o, NewSample(s, 1, "")))
	_, err = SampleLowerer{}.TransformFragment(f)
	assert.True(t, IsKind(err, ValueError), "%v", err)
}

func TestCollectDomains(t *testing.T) {
	x := NewSignal(1, Name("x"))
	y := NewSignal(1, Name("y"))
	leaf := NewFragment()
	require.NoError(t, leaf.AddDomains(NewClockDomain("loc", LocalDomain())))
	leaf.AddDriver(y, "loc")
	f := NewFragment()
	require.NoError(t, f.AddDomains(NewClockDomain("sync")))
	f.AddStatements(NewAssign(x, NewClockSignal("pix")))
	f.AddDriver(x, "sync")
	f.AddSubfragment(leaf, "leaf")

	c := CollectDomains(f)
	assert.Equal(t, []string{"pix", "sync"}, c.Used())
	assert.Equal(t, []string{"sync"}, c.Defined())
	assert.Equal(t, []string{"pix"}, c.Undefined())
}

func TestGroupLHS(t *testing.T) {
	a := NewSignal(1, Name("a"))
	b := NewSignal(1, Name("b"))
	c := NewSignal(1, Name("c"))
	d := NewSignal(1, Name("d"))
	stmts := []Statement{
		NewAssign(Concat(a, b), 0),
		NewAssign(c, 1),
		NewSwitch(d, On([]interface{}{1}, NewAssign(b, 1), NewAssign(d, 0))),
	}
	groups := GroupLHS(stmts)
	require.Len(t, groups, 3)
	assert.Equal(t, []Value{a, b}, groups[0].Slice())
	assert.Equal(t, []Value{c}, groups[1].Slice())
	assert.Equal(t, []Value{d}, groups[2].Slice())

	assert.Equal(t, []string{"(eq (sig c) (const 1'd1))"}, stmtStrings(FilterLHS(groups[1], stmts)))
	assert.Equal(t, []string{"(switch (sig d) (case 1 (eq (sig d) (const 1'd0))))"}, stmtStrings(FilterLHS(groups[2], stmts)))
	assert.Equal(t, []string{
		"(eq (cat (sig a) (sig b)) (const 1'd0))",
		"(switch (sig d) (case 1 (eq (sig b) (const 1'd1))))",
	}, stmtStrings(FilterLHS(groups[0], stmts)))

	clean := CleanSwitches([]Statement{NewSwitch(a, On([]interface{}{1})), stmts[1]})
	assert.Equal(t, []string{"(eq (sig c) (const 1'd1))"}, stmtStrings(clean))
}

func TestResetInserter(t *testing.T) {
	rst := NewSignal(1, Name("srst"))
	x := NewSignal(2, Name("x"), Reset(3))
	y := NewSignal(1, Name("y"))
	z := NewSignal(1, Name("z"), ResetLess())
	f := NewFragment()
	f.AddDriver(x, "sync")
	f.AddDriver(z, "sync")
	f.AddDriver(y, CombDomain)

	r := InsertReset(rst)
	assert.Equal(t, []string{"sync"}, r.Domains())
	nf, err := r.TransformFragment(f)
	require.NoError(t, err)
	assert.Equal(t, []string{"(switch (sig srst) (case 1 (eq (sig x) (const 2'd3))))"}, stmtStrings(nf.Statements))

	nf, err = NewResetInserter(map[string]Value{"pix": rst}).TransformFragment(f)
	require.NoError(t, err)
	assert.Empty(t, nf.Statements)
}

func TestEnableInserter(t *testing.T) {
	en := NewSignal(1, Name("en"))
	x := NewSignal(2, Name("x"))
	f := NewFragment()
	f.AddStatements(NewAssign(x, Add(x, 1)))
	f.AddDriver(x, "sync")
	leaf := NewFragment()
	leaf.AddDriver(x, "pix")
	f.AddSubfragment(leaf, "leaf")

	e := NewEnableInserter(map[string]Value{"sync": en, "pix": Not(en)})
	assert.Equal(t, []string{"pix", "sync"}, e.Domains())
	nf, err := e.TransformFragment(f)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"(eq (sig x) (+ (sig x) (const 1'd1)))",
		"(switch (sig en) (case 0 (eq (sig x) (sig x))))",
	}, stmtStrings(nf.Statements))
	assert.Equal(t, []string{"(switch (~ (sig en)) (case 0 (eq (sig x) (sig x))))"},
		stmtStrings(nf.Subfragments[0].Fragment.Statements))
}

func TestEnableInserter_memory(t *testing.T) {
	en := NewSignal(1, Name("en"))
	m := NewMemory(8, 4, MemName("mem"))
	rp := m.ReadPort()
	m.WritePort(Granularity(4))
	f, err := GetFragment(rp, nil)
	require.NoError(t, err)

	nf, err := InsertEnable(en).TransformFragment(f)
	require.NoError(t, err)
	require.NotNil(t, nf.Memory)
	require.Len(t, nf.Memory.Read, 1)
	require.Len(t, nf.Memory.Write, 1)
	assert.Equal(t, "(m (sig en) (sig mem_r_en) (const 1'd0))", nf.Memory.Read[0].En.String())
	assert.Equal(t, "(m (sig en) (sig mem_w_en) (const 2'd0))", nf.Memory.Write[0].En.String())
}

func TestApply(t *testing.T) {
	x := NewSignal(2, Name("x"))
	en := NewSignal(1, Name("en"))
	m := NewModule()
	m.Sync(NewAssign(x, Add(x, 1)))

	r, err := RenameSync("pix")
	require.NoError(t, err)
	e := Apply(r, m)
	assert.Same(t, e, Apply(NewEnableInserter(map[string]Value{"pix": en}), e))
	f, err := GetFragment(e, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"pix"}, f.DriverDomains())
	assert.Len(t, f.Statements, 2)
}
