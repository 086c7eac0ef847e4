package rtl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func elaborate(t *testing.T, m *Module) *Fragment {
	t.Helper()
	f, err := GetFragment(m, nil)
	require.NoError(t, err)
	return f
}

func TestModule_If(t *testing.T) {
	a := NewSignal(1, Name("a"))
	b := NewSignal(1, Name("b"))
	o := NewSignal(2, Name("o"))
	m := NewModule()
	m.If(a, func() { m.Comb(NewAssign(o, 1)) })
	m.Elif(b, func() { m.Comb(NewAssign(o, 2)) })
	m.Else(func() { m.Comb(NewAssign(o, 3)) })
	f := elaborate(t, m)
	require.Len(t, f.Statements, 1)
	assert.Equal(t, "(switch (cat (sig a) (sig b)) "+
		"(case -1 (eq (sig o) (const 1'd1))) "+
		"(case 1- (eq (sig o) (const 2'd2))) "+
		"(default (eq (sig o) (const 2'd3))))", f.Statements[0].String())
	assert.Equal(t, []Value{o}, f.Drivers(CombDomain).Slice())
}

func TestModule_If_nested(t *testing.T) {
	a := NewSignal(1, Name("a"))
	s := NewSignal(2, Name("s"))
	o := NewSignal(1, Name("o"))
	m := NewModule()
	m.If(a, func() {
		m.If(s, func() { m.Sync(NewAssign(o, 1)) })
	})
	m.If(Not(a), func() { m.Sync(NewAssign(o, 0)) })
	f := elaborate(t, m)
	require.Len(t, f.Statements, 2)
	assert.Equal(t, "(switch (cat (sig a)) "+
		"(case 1 (switch (cat (b (sig s))) (case 1 (eq (sig o) (const 1'd1))))))", f.Statements[0].String())
	assert.Equal(t, []Value{o}, f.Drivers("sync").Slice())
	assert.Nil(t, f.Drivers(CombDomain))
}

func TestModule_If_signedWarning(t *testing.T) {
	h := captureWarnings(t)
	m := NewModule()
	m.If(NewSignal(Signed(2)), func() {})
	assert.Len(t, warnings(h), 1)
}

func TestModule_If_errors(t *testing.T) {
	a := NewSignal(1, Name("a"))
	o := NewSignal(1, Name("o"))
	td := []struct {
		name string
		kind ErrorKind
		f    func(m *Module)
	}{
		{"elif", SyntaxError, func(m *Module) { m.Elif(a, nil) }},
		{"else", SyntaxError, func(m *Module) { m.Else(nil) }},
		{"elif after comb", SyntaxError, func(m *Module) {
			m.If(a, nil)
			m.Comb(NewAssign(o, 0))
			m.Elif(a, nil)
		}},
		{"elif after else", SyntaxError, func(m *Module) {
			m.If(a, nil)
			m.Else(nil)
			m.Elif(a, nil)
		}},
		{"elif at outer depth", SyntaxError, func(m *Module) {
			m.If(a, func() { m.Elif(a, nil) })
		}},
		{"if in switch", SyntaxError, func(m *Module) {
			m.Switch(a, func() { m.If(a, nil) })
		}},
	}
	for _, d := range td {
		t.Run(d.name, func(t *testing.T) {
			m := NewModule()
			mustPanicKind(t, d.kind, func() { d.f(m) })
		})
	}
}

func TestModule_Switch(t *testing.T) {
	s := NewSignal(4, Name("s"))
	o := NewSignal(2, Name("o"))
	m := NewModule()
	m.Switch(s, func() {
		m.Case(1, "1-1-")(func() { m.Comb(NewAssign(o, 1)) })
		m.Case("00 11")(func() { m.Comb(NewAssign(o, 2)) })
		m.Default(func() { m.Comb(NewAssign(o, 3)) })
	})
	f := elaborate(t, m)
	require.Len(t, f.Statements, 1)
	assert.Equal(t, "(switch (sig s) "+
		"(case (0001 1-1-) (eq (sig o) (const 1'd1))) "+
		"(case 0011 (eq (sig o) (const 2'd2))) "+
		"(default (eq (sig o) (const 2'd3))))", f.Statements[0].String())
}

func TestModule_Switch_warnings(t *testing.T) {
	h := captureWarnings(t)
	s := NewSignal(4, Name("s"))
	o := NewSignal(2, Name("o"))
	m := NewModule()
	m.Switch(s, func() {
		m.Case(16)(func() { m.Comb(NewAssign(o, 1)) })
		m.Default(nil)
		m.Case(2)(nil)
	})
	f := elaborate(t, m)
	assert.Len(t, warnings(h), 2)
	assert.Equal(t, "(switch (sig s) (default) (case 0010))", f.Statements[0].String())
}

func TestModule_Switch_wideConst(t *testing.T) {
	h := captureWarnings(t)
	s := NewSignal(4, Name("s"))
	o := NewSignal(2, Name("o"))
	m := NewModule()
	m.Switch(s, func() {
		m.Case(NewConst(1, 8))(func() { m.Comb(NewAssign(o, 1)) })
		m.Case(NewConst(0, 16))(func() { m.Comb(NewAssign(o, 2)) })
		m.Case(NewConst(17, 8))(func() { m.Comb(NewAssign(o, 3)) })
	})
	f := elaborate(t, m)
	assert.Equal(t, "(switch (sig s) "+
		"(case 0001 (eq (sig o) (const 1'd1))) "+
		"(case 0000 (eq (sig o) (const 2'd2))))", f.Statements[0].String())
	w := warnings(h)
	require.Len(t, w, 1)
	assert.Contains(t, w[0], "(which has width 4)")

	h.Reset()
	z := NewSignal(0, Name("z"))
	assert.Equal(t, "(== (sig z) (const 1'd0))", Matches(z, 0).String())
	assert.Empty(t, warnings(h))
}

func TestModule_Switch_errors(t *testing.T) {
	s := NewSignal(4, Name("s"))
	td := []struct {
		name string
		kind ErrorKind
		f    func(m *Module)
	}{
		{"empty case", ValueError, func(m *Module) { m.Switch(s, func() { m.Case()(nil) }) }},
		{"case outside switch", SyntaxError, func(m *Module) { m.Case(1)(nil) }},
		{"default outside switch", SyntaxError, func(m *Module) { m.Default(nil) }},
		{"bad char", SyntaxError, func(m *Module) { m.Switch(s, func() { m.Case("10x1")(nil) }) }},
		{"bad width", SyntaxError, func(m *Module) { m.Switch(s, func() { m.Case("101")(nil) }) }},
		{"bad type", SyntaxError, func(m *Module) { m.Switch(s, func() { m.Case(1.5)(nil) }) }},
		{"two defaults", SyntaxError, func(m *Module) {
			m.Switch(s, func() {
				m.Default(nil)
				m.Default(nil)
			})
		}},
	}
	for _, d := range td {
		t.Run(d.name, func(t *testing.T) {
			m := NewModule()
			mustPanicKind(t, d.kind, func() { d.f(m) })
		})
	}
}

func TestModule_FSM(t *testing.T) {
	start := NewSignal(1, Name("start"))
	m := NewModule()
	var running Value
	fsm := m.FSM(func(f *FSM) {
		m.State("IDLE", func() {
			m.If(start, func() { m.Next("RUN") })
		})
		m.State("RUN", func() { m.Next("DONE") })
		m.State("DONE", func() { m.Next("IDLE") })
		running = f.Ongoing("RUN")
	})
	f := elaborate(t, m)

	assert.Equal(t, Unsigned(2), fsm.State.Shape())
	assert.Equal(t, int64(0), fsm.State.Reset)
	for i, n := range []string{"IDLE", "RUN", "DONE"} {
		name, ok := fsm.Decode(int64(i))
		assert.True(t, ok)
		assert.Equal(t, n, name)
	}
	_, ok := fsm.Decode(3)
	assert.False(t, ok)
	assert.Equal(t, "RUN/1", fsm.State.Format(1))
	assert.Equal(t, "(== (sig fsm_state) (const 1'd1))", running.String())

	require.Len(t, f.Statements, 1)
	st := f.Statements[0].String()
	assert.Contains(t, st, "(case 01 (eq (sig fsm_state) (const 2'd2)))")
	assert.Contains(t, st, "(case 10 (eq (sig fsm_state) (const 1'd0)))")
	assert.Equal(t, []Value{fsm.State}, f.Drivers("sync").Slice())
	g, err := f.FindGenerated("fsm")
	require.NoError(t, err)
	assert.Same(t, fsm, g)
}

func TestModule_FSM_options(t *testing.T) {
	m := NewModule()
	fsm := m.FSM(func(*FSM) {
		m.State("A", func() { m.Next("B") })
		m.State("B", nil)
	}, FSMName("ctl"), FSMReset("B"), FSMDomain("video"))
	f := elaborate(t, m)
	assert.Equal(t, "ctl_state", fsm.State.Name)
	assert.Equal(t, Unsigned(1), fsm.State.Shape())
	assert.Equal(t, int64(1), fsm.State.Reset)
	assert.Equal(t, []string{"video"}, f.DriverDomains())
}

func TestModule_FSM_errors(t *testing.T) {
	td := []struct {
		name string
		kind ErrorKind
		f    func(m *Module)
	}{
		{"undefined", NameError, func(m *Module) {
			m.FSM(func(*FSM) { m.State("A", func() { m.Next("B") }) })
		}},
		{"duplicate", NameError, func(m *Module) {
			m.FSM(func(*FSM) {
				m.State("A", nil)
				m.State("A", nil)
			})
		}},
		{"comb domain", ValueError, func(m *Module) { m.FSM(func(*FSM) {}, FSMDomain(CombDomain)) }},
		{"state outside fsm", SyntaxError, func(m *Module) { m.State("A", nil) }},
		{"next outside fsm", SyntaxError, func(m *Module) { m.Next("A") }},
		{"next in fsm", SyntaxError, func(m *Module) { m.FSM(func(*FSM) { m.Next("A") }) }},
	}
	for _, d := range td {
		t.Run(d.name, func(t *testing.T) {
			m := NewModule()
			mustPanicKind(t, d.kind, func() { d.f(m) })
		})
	}
}

func TestModule_drivers(t *testing.T) {
	o := NewSignal(1, Name("o"))
	m := NewModule()
	m.Comb(NewAssign(o, 1))
	mustPanicKind(t, SyntaxError, func() { m.Sync(NewAssign(o, 0)) })
	mustPanicKind(t, SyntaxError, func() { m.D("video", NewSwitch(o)) })
	m.Comb(NewAssign(o, 0))
}

func TestModule_Submodule(t *testing.T) {
	x := NewSignal(1, Name("x"))
	sub := NewModule()
	sub.Comb(NewAssign(x, 1))
	m := NewModule()
	m.Submodule("sub", sub)
	m.Submodule("", NewModule())
	mustPanicKind(t, NameError, func() { m.Submodule("sub", NewModule()) })
	mustPanicKind(t, TypeError, func() { m.Submodule("nil", nil) })

	e, err := m.Get("sub")
	require.NoError(t, err)
	assert.Same(t, sub, e)
	_, err = m.Get("nope")
	assert.True(t, IsKind(err, AttributeError))

	f := elaborate(t, m)
	require.Len(t, f.Subfragments, 2)
	sf, err := f.FindSubfragment("sub")
	require.NoError(t, err)
	assert.Equal(t, []Value{x}, sf.IterComb())
	_, err = f.FindSubfragment(1)
	assert.NoError(t, err)
	_, err = f.FindSubfragment(2)
	assert.True(t, IsKind(err, NameError))
}

func TestModule_Domains(t *testing.T) {
	m := NewModule()
	cd := NewClockDomain("video")
	m.Domains(cd)
	mustPanicKind(t, NameError, func() { m.Domains(NewClockDomain("video")) })
	f := elaborate(t, m)
	assert.Same(t, cd, f.Domain("video"))
	assert.Equal(t, []string{"video"}, f.IterDomains())
}
