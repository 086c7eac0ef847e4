// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package rtl

import (
	"strconv"
	"strings"
)

type ctrlKind int

const (
	ctrlIf ctrlKind = iota
	ctrlSwitch
	ctrlFSM
)

func (k ctrlKind) String() string {
	switch k {
	case ctrlSwitch:
		return "Switch"
	case ctrlFSM:
		return "FSM"
	}
	return "If"
}

// ctrlEntry is an open control flow construct.
type ctrlEntry struct {
	kind  ctrlKind
	depth int
	loc   SrcLoc

	// If/Elif/Else
	tests  []Value
	bodies [][]Statement
	locs   []SrcLoc

	// Switch
	test  Value
	cases []SwitchCase
	keys  map[string]bool

	// FSM
	fsm    *FSM
	domain string
	reset  string
	states []string
	bodyOf map[string][]Statement
	locOf  map[string]SrcLoc
}

type namedModule struct {
	name string
	e    Elaboratable
}

// Module is a statement builder. Statements are added to domains with
// Comb, Sync and D, within control flow constructs built with If, Elif,
// Else, Switch, Case, Default, FSM and State. Control flow constructs take
// a function that adds the statements of their body.
//
// Construction errors panic with an *Error. Use Catch to recover them.
//
type Module struct {
	stmts     []Statement
	ctrl      []*ctrlEntry
	context   string
	depth     int
	driving   SignalDict[string]
	named     []namedModule
	anon      []Elaboratable
	domains   []*ClockDomain
	generated map[string]interface{}
}

// NewModule returns a new empty module.
//
func NewModule() *Module {
	return &Module{generated: make(map[string]interface{})}
}

func (m *Module) checkContext(construct, context string) {
	if m.context == context {
		return
	}
	if m.context == "" {
		raise(SyntaxError, "%s is not permitted outside of %s", construct, context)
	}
	secondary := "Case"
	if m.context == "FSM" {
		secondary = "State"
	}
	raise(SyntaxError, "%s is not permitted directly inside of %s; it is permitted inside of %s %s",
		construct, m.context, m.context, secondary)
}

func (m *Module) getCtrl(kind ctrlKind) *ctrlEntry {
	if n := len(m.ctrl); n > 0 && m.ctrl[n-1].kind == kind {
		return m.ctrl[n-1]
	}
	return nil
}

func (m *Module) flushCtrl() {
	for len(m.ctrl) > m.depth {
		m.popCtrl()
	}
}

func (m *Module) setCtrl(e *ctrlEntry) *ctrlEntry {
	m.flushCtrl()
	m.ctrl = append(m.ctrl, e)
	return e
}

// body runs fn with a fresh statement list at a deeper nesting level and
// returns the statements it added.
func (m *Module) body(fn func(), deeper bool) (stmts []Statement) {
	outer, ctx := m.stmts, m.context
	m.stmts, m.context = nil, ""
	if deeper {
		m.depth++
	}
	defer func() {
		if deeper {
			m.depth--
		}
		m.stmts, m.context = outer, ctx
	}()
	if fn != nil {
		fn()
	}
	m.flushCtrl()
	return m.stmts
}

func (m *Module) checkCond(cond interface{}, loc SrcLoc) Value {
	c := Cast(cond)
	if c.Shape().Signed {
		warnf(syntaxWarning, loc, "Signed values in If/Elif conditions usually result from inverting "+
			"booleans with Not, which leads to unexpected results; use Not on a Bool() value instead")
	}
	return c
}

// If opens a conditional block.
//
func (m *Module) If(cond interface{}, body func()) {
	m.checkContext("If", "")
	loc := callerLoc()
	c := m.checkCond(cond, loc)
	e := m.setCtrl(&ctrlEntry{kind: ctrlIf, depth: m.depth, loc: loc})
	stmts := m.body(body, true)
	e.tests = append(e.tests, c)
	e.bodies = append(e.bodies, stmts)
	e.locs = append(e.locs, loc)
}

// Elif adds an alternative to the immediately preceding If or Elif.
//
func (m *Module) Elif(cond interface{}, body func()) {
	m.checkContext("Elif", "")
	loc := callerLoc()
	c := m.checkCond(cond, loc)
	e := m.getCtrl(ctrlIf)
	if e == nil || e.depth != m.depth {
		raise(SyntaxError, "Elif without preceding If")
	}
	stmts := m.body(body, true)
	e.tests = append(e.tests, c)
	e.bodies = append(e.bodies, stmts)
	e.locs = append(e.locs, loc)
}

// Else closes the immediately preceding If or Elif.
//
func (m *Module) Else(body func()) {
	m.checkContext("Else", "")
	loc := callerLoc()
	e := m.getCtrl(ctrlIf)
	if e == nil || e.depth != m.depth {
		raise(SyntaxError, "Else without preceding If/Elif")
	}
	stmts := m.body(body, true)
	e.bodies = append(e.bodies, stmts)
	e.locs = append(e.locs, loc)
	m.popCtrl()
}

// Switch opens a switch block on test. body must only call Case and
// Default.
//
func (m *Module) Switch(test interface{}, body func()) {
	m.checkContext("Switch", "")
	e := m.setCtrl(&ctrlEntry{kind: ctrlSwitch, depth: m.depth, loc: callerLoc(), test: Cast(test), keys: make(map[string]bool)})
	func() {
		m.context = "Switch"
		m.depth++
		defer func() {
			m.depth--
			m.context = ""
		}()
		body()
	}()
	if m.getCtrl(ctrlSwitch) == e {
		m.popCtrl()
	}
}

// Case returns a function adding a case matching any of patterns to the
// enclosing switch. Patterns are strings of '0', '1' and '-' the width of
// the switch test, or const-castable values.
//
//	m.Switch(sel, func() {
//		m.Case(0, 1)(func() { m.Comb(NewAssign(o, a)) })
//		m.Default(func() { m.Comb(NewAssign(o, b)) })
//	})
//
func (m *Module) Case(patterns ...interface{}) func(body func()) {
	loc := callerLoc()
	return func(body func()) {
		if len(patterns) == 0 {
			raise(ValueError, "Empty Case() clauses have been superseded by Default()")
		}
		m.checkContext("Case", "Switch")
		e := m.getCtrl(ctrlSwitch)
		if e == nil {
			raise(SyntaxError, "Case outside of Switch block")
		}
		if e.keys[""] {
			warnf(syntaxWarning, loc, "Case statements are order-dependant, any Case after a Default will be ignored")
		}
		width := Len(e.test)
		var pats []string
		for _, p := range patterns {
			if s, ok := p.(string); ok {
				for _, ch := range s {
					if !strings.ContainsRune("01- \t", ch) {
						raise(SyntaxError, "Case pattern '%s' must consist of 0, 1, and - (don't care) bits, and may include whitespace", s)
					}
				}
				s = strings.Join(strings.Fields(s), "")
				if len(s) != width {
					raise(SyntaxError, "Case pattern '%s' must have the same width as switch value (which is %d)", p, width)
				}
				pats = append(pats, s)
				continue
			}
			c, err := ConstCast(p)
			if err != nil {
				raise(SyntaxError, "Case pattern must be a string or a const-castable expression, not %v", p)
			}
			if pl := patternBits(c.Value); pl > width {
				warnf(syntaxWarning, loc, "Case pattern '%v' (%d'%s) is wider than switch value (which has width %d); comparison will never be true",
					p, pl, formatBits(c.Uint64(), pl), width)
				continue
			}
			pats = append(pats, formatBits(uint64(Normalize(c.Value, Unsigned(width))), width))
		}
		stmts := m.body(body, false)
		m.context = "Switch"
		key := strings.Join(pats, "|")
		if len(pats) == 0 || e.keys[key] {
			return
		}
		e.keys[key] = true
		e.cases = append(e.cases, SwitchCase{pats, stmts, loc})
	}
}

// Default adds the default case of the enclosing switch.
//
func (m *Module) Default(body func()) {
	m.checkContext("Default", "Switch")
	loc := callerLoc()
	e := m.getCtrl(ctrlSwitch)
	if e == nil {
		raise(SyntaxError, "Default outside of Switch block")
	}
	if e.keys[""] {
		raise(SyntaxError, "Multiple Default statements within a switch are not allowed, as only the first Default will ever be considered.")
	}
	stmts := m.body(body, false)
	m.context = "Switch"
	e.keys[""] = true
	e.cases = append(e.cases, SwitchCase{nil, stmts, loc})
}

// FSM is a finite state machine built with Module.FSM.
//
type FSM struct {
	// State holds the encoded current state. Its width is final once the
	// FSM block is closed.
	State    *Signal
	encoding map[string]int64
	names    []string
}

// Ongoing returns a value that is true when the FSM is in the named state.
//
func (f *FSM) Ongoing(name string) Value {
	return newOperator("==", callerLoc(), f.State, f.encode(name))
}

func (f *FSM) encode(name string) int64 {
	if v, ok := f.encoding[name]; ok {
		return v
	}
	v := int64(len(f.names))
	f.encoding[name] = v
	f.names = append(f.names, name)
	return v
}

// Decode returns the name of an encoded state.
//
func (f *FSM) Decode(v int64) (string, bool) {
	if v < 0 || v >= int64(len(f.names)) {
		return "", false
	}
	return f.names[v], true
}

type fsmConfig struct {
	name   string
	reset  string
	domain string
}

// FSMOption configures an FSM.
//
type FSMOption func(*fsmConfig)

// FSMName sets the name of an FSM. The default is "fsm".
//
func FSMName(n string) FSMOption { return func(c *fsmConfig) { c.name = n } }

// FSMReset sets the reset state. The default is the first defined state.
//
func FSMReset(state string) FSMOption { return func(c *fsmConfig) { c.reset = state } }

// FSMDomain sets the domain of the state register. The default is "sync".
//
func FSMDomain(d string) FSMOption { return func(c *fsmConfig) { c.domain = d } }

// FSM opens a state machine block. body must only call State.
//
func (m *Module) FSM(body func(fsm *FSM), opts ...FSMOption) *FSM {
	m.checkContext("FSM", "")
	cfg := fsmConfig{name: "fsm", domain: "sync"}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.domain == CombDomain {
		raise(ValueError, "FSM may not be driven by the '%s' domain", cfg.domain)
	}
	loc := callerLoc()
	fsm := &FSM{
		State:    newSignal(nil, &signalConfig{name: cfg.name + "_state"}, loc),
		encoding: make(map[string]int64),
	}
	e := m.setCtrl(&ctrlEntry{
		kind:   ctrlFSM,
		depth:  m.depth,
		loc:    loc,
		fsm:    fsm,
		domain: cfg.domain,
		reset:  cfg.reset,
		bodyOf: make(map[string][]Statement),
		locOf:  make(map[string]SrcLoc),
	})
	m.generated[cfg.name] = fsm
	func() {
		m.context = "FSM"
		m.depth++
		defer func() {
			m.depth--
			m.context = ""
		}()
		body(fsm)
	}()
	for _, n := range fsm.names {
		if _, ok := e.bodyOf[n]; !ok {
			raise(NameError, "FSM state '%s' is referenced but not defined", n)
		}
	}
	if m.getCtrl(ctrlFSM) == e {
		m.popCtrl()
	}
	return fsm
}

// State adds a state to the enclosing FSM.
//
func (m *Module) State(name string, body func()) {
	m.checkContext("FSM State", "FSM")
	loc := callerLoc()
	e := m.getCtrl(ctrlFSM)
	if e == nil {
		raise(SyntaxError, "State outside of FSM block")
	}
	if _, ok := e.bodyOf[name]; ok {
		raise(NameError, "FSM state '%s' is already defined", name)
	}
	e.fsm.encode(name)
	stmts := m.body(body, false)
	m.context = "FSM"
	e.states = append(e.states, name)
	e.bodyOf[name] = stmts
	e.locOf[name] = loc
}

// Next sets the next state of the innermost enclosing FSM.
//
func (m *Module) Next(name string) {
	if m.context != "FSM" {
		for i := len(m.ctrl) - 1; i >= 0; i-- {
			e := m.ctrl[i]
			if e.kind != ctrlFSM {
				continue
			}
			v := e.fsm.encode(name)
			m.addStatements(e.domain, []Statement{newAssign(e.fsm.State, newConst(v, constShape(v), callerLoc()), callerLoc())})
			return
		}
	}
	raise(SyntaxError, "Next is only permitted inside an FSM state")
}

func (m *Module) popCtrl() {
	n := len(m.ctrl) - 1
	e := m.ctrl[n]
	m.ctrl = m.ctrl[:n]

	switch e.kind {
	case ctrlIf:
		var tests []interface{}
		var cases []SwitchCase
		for i, body := range e.bodies {
			if i >= len(e.tests) {
				cases = append(cases, SwitchCase{nil, body, e.locs[i]})
				continue
			}
			t := e.tests[i]
			if Len(t) != 1 {
				t = newOperator("b", e.loc, t)
			}
			tests = append(tests, t)
			// tests are concatenated LSB first, the first test is the
			// least significant bit.
			pat := "1" + strings.Repeat("-", len(tests)-1)
			pat = strings.Repeat("-", len(e.tests)-len(pat)) + pat
			cases = append(cases, SwitchCase{[]string{pat}, body, e.locs[i]})
		}
		m.stmts = append(m.stmts, newSwitch(newCat(e.loc, tests...), cases, e.loc))
	case ctrlSwitch:
		m.stmts = append(m.stmts, newSwitch(e.test, e.cases, e.loc))
	case ctrlFSM:
		if len(e.states) == 0 {
			return
		}
		fsm := e.fsm
		width := bitsFor(int64(len(fsm.names)-1), false)
		fsm.State.shape = Shape{width, false}
		reset := e.states[0]
		if e.reset != "" {
			reset = e.reset
		}
		fsm.State.Reset = fsm.encode(reset)
		fsm.State.Decoder = func(v int64) string {
			if n, ok := fsm.Decode(v); ok {
				return n + "/" + strconv.FormatInt(v, 10)
			}
			return strconv.FormatInt(v, 10)
		}
		cases := make([]SwitchCase, 0, len(e.states))
		for _, n := range e.states {
			cases = append(cases, SwitchCase{[]string{formatBits(uint64(fsm.encoding[n]), width)}, e.bodyOf[n], e.locOf[n]})
		}
		m.stmts = append(m.stmts, newSwitch(fsm.State, cases, e.loc))
	}
}

func (m *Module) addStatements(domain string, stmts []Statement) {
	m.flushCtrl()
	for _, s := range stmts {
		switch s.(type) {
		case *Assign, *Property:
		default:
			raise(SyntaxError, "Only assignments and property checks may be appended to d.%s", domain)
		}
		markUsed([]Statement{s})
		if domain != CombDomain {
			ns, err := SampleDomainInjector(domain).Statements([]Statement{s})
			if err != nil {
				panic(err)
			}
			s = ns[0]
		}
		for _, sig := range s.LHSSignals().Slice() {
			cur, ok := m.driving.Get(sig)
			if !ok {
				m.driving.Set(sig, domain)
			} else if cur != domain {
				raise(SyntaxError, "Driver-driver conflict: trying to drive %v from d.%s, but it is already driven from d.%s", sig, domain, cur)
			}
		}
		m.stmts = append(m.stmts, s)
	}
}

// Comb adds combinational statements.
//
func (m *Module) Comb(stmts ...Statement) { m.addStatements(CombDomain, stmts) }

// Sync adds statements to the "sync" domain.
//
func (m *Module) Sync(stmts ...Statement) { m.addStatements("sync", stmts) }

// D adds statements to the named domain.
//
func (m *Module) D(domain string, stmts ...Statement) { m.addStatements(domain, stmts) }

// Submodule adds a submodule. An empty name adds an anonymous submodule.
//
func (m *Module) Submodule(name string, e Elaboratable) {
	if isNil(e) {
		raise(TypeError, "Trying to add %v, which does not implement Elaborate, as a submodule", e)
	}
	if name == "" {
		m.anon = append(m.anon, e)
		return
	}
	for _, n := range m.named {
		if n.name == name {
			raise(NameError, "Submodule named '%s' already exists", name)
		}
	}
	m.named = append(m.named, namedModule{name, e})
}

// Get returns the named submodule.
//
func (m *Module) Get(name string) (Elaboratable, error) {
	for _, n := range m.named {
		if n.name == name {
			return n.e, nil
		}
	}
	return nil, Errorf(AttributeError, "No submodule named '%s' exists", name)
}

// Domains adds clock domain definitions.
//
func (m *Module) Domains(cds ...*ClockDomain) {
	for _, cd := range cds {
		for _, d := range m.domains {
			if d.Name == cd.Name {
				raise(NameError, "Clock domain named '%s' already exists", cd.Name)
			}
		}
		m.domains = append(m.domains, cd)
	}
}

// Elaborate implements Elaboratable.
//
func (m *Module) Elaborate(platform interface{}) (Elaboratable, error) {
	for len(m.ctrl) > 0 {
		m.popCtrl()
	}
	f := NewFragment()
	for _, n := range m.named {
		sub, err := GetFragment(n.e, platform)
		if err != nil {
			return nil, err
		}
		f.AddSubfragment(sub, n.name)
	}
	for _, e := range m.anon {
		sub, err := GetFragment(e, platform)
		if err != nil {
			return nil, err
		}
		f.AddSubfragment(sub, "")
	}
	stmts, err := SampleDomainInjector("sync").Statements(m.stmts)
	if err != nil {
		return nil, err
	}
	f.AddStatements(stmts...)
	m.driving.Range(func(sig Value, d string) bool {
		f.AddDriver(sig, d)
		return true
	})
	if err := f.AddDomains(m.domains...); err != nil {
		return nil, err
	}
	for k, v := range m.generated {
		f.Generated[k] = v
	}
	return f, nil
}
