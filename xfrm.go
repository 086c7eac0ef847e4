// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package rtl

import (
	"fmt"
	"sort"
)

// ValueMapper is called on every node of a value tree, top-down. It
// returns a replacement and true, or false to have MapValue recurse into
// the node.
//
type ValueMapper func(v Value) (Value, bool, error)

// MapValue rewrites v with m. Nodes whose children are unchanged are
// returned as is.
//
func MapValue(v Value, m ValueMapper) (Value, error) {
	if m == nil {
		return v, nil
	}
	if nv, ok, err := m(v); err != nil || ok {
		return nv, err
	}
	switch v := v.(type) {
	case *Operator:
		ops, changed, err := mapValues(v.Operands, m)
		if err != nil || !changed {
			return v, err
		}
		s, err := operatorShape(v.Op, ops)
		if err != nil {
			return nil, err
		}
		return &Operator{valueBase: v.valueBase, Op: v.Op, Operands: ops, shape: s}, nil
	case *Slice:
		nv, err := MapValue(v.Value, m)
		if err != nil || nv == v.Value {
			return v, err
		}
		return &Slice{v.valueBase, nv, v.Start, v.Stop}, nil
	case *Part:
		nv, err := MapValue(v.Value, m)
		if err != nil {
			return nil, err
		}
		no, err := MapValue(v.Offset, m)
		if err != nil {
			return nil, err
		}
		if nv == v.Value && no == v.Offset {
			return v, nil
		}
		return &Part{v.valueBase, nv, no, v.Width, v.Stride}, nil
	case *Cat:
		parts, changed, err := mapValues(v.Parts, m)
		if err != nil || !changed {
			return v, err
		}
		return &Cat{v.valueBase, parts}, nil
	case *ArrayProxy:
		elems, changed, err := mapValues(v.Elems, m)
		if err != nil {
			return nil, err
		}
		idx, err := MapValue(v.Index, m)
		if err != nil {
			return nil, err
		}
		if !changed && idx == v.Index {
			return v, nil
		}
		return &ArrayProxy{v.valueBase, elems, idx}, nil
	case *Sample:
		ne, err := MapValue(v.Expr, m)
		if err != nil || ne == v.Expr {
			return v, err
		}
		return &Sample{v.valueBase, ne, v.Clocks, v.Domain}, nil
	}
	return v, nil
}

func mapValues(vs []Value, m ValueMapper) ([]Value, bool, error) {
	out := make([]Value, len(vs))
	changed := false
	for i, v := range vs {
		nv, err := MapValue(v, m)
		if err != nil {
			return nil, false, err
		}
		out[i] = nv
		changed = changed || nv != v
	}
	return out, changed, nil
}

// MapStatements rewrites every value of stmts with m.
//
func MapStatements(stmts []Statement, m ValueMapper) ([]Statement, error) {
	out := make([]Statement, 0, len(stmts))
	for _, s := range stmts {
		ns, err := mapStatement(s, m)
		if err != nil {
			return nil, err
		}
		out = append(out, ns)
	}
	return out, nil
}

func mapStatement(s Statement, m ValueMapper) (Statement, error) {
	if m == nil {
		return s, nil
	}
	switch s := s.(type) {
	case *Assign:
		lhs, err := MapValue(s.LHS, m)
		if err != nil {
			return nil, err
		}
		rhs, err := MapValue(s.RHS, m)
		if err != nil {
			return nil, err
		}
		if lhs == s.LHS && rhs == s.RHS {
			return s, nil
		}
		return &Assign{s.stmtBase, lhs, rhs}, nil
	case *Property:
		t, err := MapValue(s.Test, m)
		if err != nil || t == s.Test {
			return s, err
		}
		np := *s
		np.Test = t
		return &np, nil
	case *Switch:
		t, err := MapValue(s.Test, m)
		if err != nil {
			return nil, err
		}
		cases := make([]SwitchCase, len(s.Cases))
		for i, c := range s.Cases {
			body, err := MapStatements(c.Body, m)
			if err != nil {
				return nil, err
			}
			cases[i] = SwitchCase{c.Patterns, body, c.Loc}
		}
		return newSwitch(t, cases, s.loc), nil
	}
	return nil, Errorf(TypeError, "Cannot transform statement %v", s)
}

// MapFragment returns a copy of the fragment tree rooted at f with every
// value of every statement, driver, instance port and memory port rewritten
// with m.
//
func MapFragment(f *Fragment, m ValueMapper) (*Fragment, error) {
	return transformer(func(*Fragment) (*hooks, error) {
		return &hooks{
			value: m,
			drivers: func(f, nf *Fragment) error {
				for _, d := range f.IterDrivers() {
					s, err := MapValue(d.Signal, m)
					if err != nil {
						return err
					}
					nf.AddDriver(s, d.Domain)
				}
				return nil
			},
		}, nil
	}).apply(f)
}

// hooks customize the transformation of a single fragment. Nil hooks
// default to copying.
type hooks struct {
	value      ValueMapper
	domains    func(f, nf *Fragment) error
	statements func(f, nf *Fragment) error
	drivers    func(f, nf *Fragment) error
	finish     func(f, nf *Fragment) error
}

// transformer returns the hooks for a given source fragment.
type transformer func(f *Fragment) (*hooks, error)

func (t transformer) apply(f *Fragment) (*Fragment, error) {
	h, err := t(f)
	if err != nil {
		return nil, err
	}
	nf := f.shallowCopy()
	if f.Instance != nil {
		nf.Instance = f.Instance.clone()
		for i := range nf.Instance.Ports {
			p := &nf.Instance.Ports[i]
			if p.Value, err = MapValue(p.Value, h.value); err != nil {
				return nil, err
			}
		}
	}
	if f.Memory != nil {
		nf.Memory = f.Memory.clone()
		for i := range nf.Memory.Read {
			p := &nf.Memory.Read[i]
			if err = mapPortValues(h.value, &p.Addr, &p.Data, &p.En); err != nil {
				return nil, err
			}
		}
		for i := range nf.Memory.Write {
			p := &nf.Memory.Write[i]
			if err = mapPortValues(h.value, &p.Addr, &p.Data, &p.En); err != nil {
				return nil, err
			}
		}
	}
	f.Ports.Range(func(k Value, d PortDir) bool {
		nf.Ports.Set(k, d)
		return true
	})
	for _, s := range f.Subfragments {
		ns, err := t.apply(s.Fragment)
		if err != nil {
			return nil, err
		}
		nf.AddSubfragment(ns, s.Name)
	}
	if h.domains != nil {
		err = h.domains(f, nf)
	} else {
		for _, n := range f.domainNames {
			if err = nf.AddDomains(f.domains[n]); err != nil {
				break
			}
		}
	}
	if err != nil {
		return nil, err
	}
	if h.statements != nil {
		err = h.statements(f, nf)
	} else {
		var stmts []Statement
		stmts, err = MapStatements(f.Statements, h.value)
		nf.AddStatements(stmts...)
	}
	if err != nil {
		return nil, err
	}
	if h.drivers != nil {
		err = h.drivers(f, nf)
	} else {
		for _, d := range f.IterDrivers() {
			nf.AddDriver(d.Signal, d.Domain)
		}
	}
	if err != nil {
		return nil, err
	}
	if h.finish != nil {
		if err = h.finish(f, nf); err != nil {
			return nil, err
		}
	}
	return nf, nil
}

func mapPortValues(m ValueMapper, vs ...*Value) error {
	for _, v := range vs {
		nv, err := MapValue(*v, m)
		if err != nil {
			return err
		}
		*v = nv
	}
	return nil
}

// Transform is a rewrite of a fragment tree.
//
type Transform interface {
	TransformFragment(f *Fragment) (*Fragment, error)
}

// TransformedElaboratable applies a list of transforms to the fragment
// obtained by elaborating an Elaboratable.
//
type TransformedElaboratable struct {
	Elaboratable Elaboratable
	Transforms   []Transform
}

// Elaborate implements Elaboratable.
//
func (te *TransformedElaboratable) Elaborate(platform interface{}) (Elaboratable, error) {
	f, err := GetFragment(te.Elaboratable, platform)
	if err != nil {
		return nil, err
	}
	for _, t := range te.Transforms {
		if f, err = t.TransformFragment(f); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// Apply returns e with t applied at elaboration time. Transforms applied to
// a TransformedElaboratable are appended to its list.
//
func Apply(t Transform, e Elaboratable) Elaboratable {
	if te, ok := e.(*TransformedElaboratable); ok {
		te.Transforms = append(te.Transforms, t)
		return te
	}
	return &TransformedElaboratable{e, []Transform{t}}
}

// DomainCollector collects the domains used and defined in a fragment
// tree. Local domains are neither reported as used nor as defined.
//
type DomainCollector struct {
	used    []string
	defined []string
	seen    map[string]int
	local   map[string]bool
}

const (
	domUsed = 1 << iota
	domDefined
)

// CollectDomains runs a DomainCollector over f.
//
func CollectDomains(f *Fragment) *DomainCollector {
	c := &DomainCollector{seen: make(map[string]int), local: make(map[string]bool)}
	c.Fragment(f)
	return c
}

// Used returns the used domains, in order of first use.
//
func (c *DomainCollector) Used() []string { return append([]string(nil), c.used...) }

// Defined returns the defined domains, in definition order.
//
func (c *DomainCollector) Defined() []string { return append([]string(nil), c.defined...) }

// Undefined returns the used domains that are not defined.
//
func (c *DomainCollector) Undefined() []string {
	var u []string
	for _, d := range c.used {
		if c.seen[d]&domDefined == 0 {
			u = append(u, d)
		}
	}
	return u
}

func (c *DomainCollector) addUsed(d string) {
	if d == "" || c.local[d] {
		return
	}
	if c.seen[d]&domUsed == 0 {
		c.seen[d] |= domUsed
		c.used = append(c.used, d)
	}
}

// Value collects the domains referenced by v.
//
func (c *DomainCollector) Value(v Value) {
	_, _ = MapValue(v, func(v Value) (Value, bool, error) {
		switch v := v.(type) {
		case *ClockSignal:
			c.addUsed(v.Domain)
		case *ResetSignal:
			c.addUsed(v.Domain)
		case *Sample:
			c.addUsed(v.Domain)
		}
		return nil, false, nil
	})
}

// Statements collects the domains referenced by stmts.
//
func (c *DomainCollector) Statements(stmts []Statement) {
	for _, s := range stmts {
		switch s := s.(type) {
		case *Assign:
			c.Value(s.LHS)
			c.Value(s.RHS)
		case *Property:
			c.Value(s.Test)
		case *Switch:
			c.Value(s.Test)
			for _, cs := range s.Cases {
				c.Statements(cs.Body)
			}
		}
	}
}

// Fragment collects the domains of a fragment tree.
//
func (c *DomainCollector) Fragment(f *Fragment) {
	if f.Memory != nil {
		for _, p := range f.Memory.Read {
			c.Value(p.Addr)
			c.Value(p.Data)
			c.Value(p.En)
			if p.Domain != CombDomain {
				c.addUsed(p.Domain)
			}
		}
		for _, p := range f.Memory.Write {
			c.Value(p.Addr)
			c.Value(p.Data)
			c.Value(p.En)
			c.addUsed(p.Domain)
		}
	}
	if f.Instance != nil {
		for _, p := range f.Instance.Ports {
			c.Value(p.Value)
		}
	}
	saved := c.local
	c.local = make(map[string]bool, len(saved))
	for k := range saved {
		c.local[k] = true
	}
	for _, n := range f.domainNames {
		if f.domains[n].Local {
			c.local[n] = true
		} else if c.seen[n]&domDefined == 0 {
			c.seen[n] |= domDefined
			c.defined = append(c.defined, n)
		}
	}
	c.Statements(f.Statements)
	for _, d := range f.driverDomains {
		if d != CombDomain {
			c.addUsed(d)
		}
	}
	for _, s := range f.Subfragments {
		c.Fragment(s.Fragment)
	}
	c.local = saved
}

// DomainRenamer renames domains in a fragment tree: clock and reset
// references, domain definitions, drivers and memory ports.
//
type DomainRenamer struct {
	m map[string]string
}

// NewDomainRenamer returns a renamer for the given from → to map.
//
func NewDomainRenamer(m map[string]string) (*DomainRenamer, error) {
	if to, ok := m[CombDomain]; ok {
		return nil, Errorf(ValueError, "The combinatorial domain '%s' may not be renamed to '%s'", CombDomain, to)
	}
	for _, to := range m {
		if to == CombDomain {
			return nil, Errorf(ValueError, "Domains may not be renamed to the combinatorial domain '%s'", CombDomain)
		}
	}
	r := &DomainRenamer{m: make(map[string]string, len(m))}
	for k, v := range m {
		r.m[k] = v
	}
	return r, nil
}

// RenameSync returns a renamer mapping "sync" to domain.
//
func RenameSync(domain string) (*DomainRenamer, error) {
	return NewDomainRenamer(map[string]string{"sync": domain})
}

func (r *DomainRenamer) mapValue(v Value) (Value, bool, error) {
	switch v := v.(type) {
	case *ClockSignal:
		if to, ok := r.m[v.Domain]; ok {
			return &ClockSignal{v.valueBase, to}, true, nil
		}
		return v, true, nil
	case *ResetSignal:
		if to, ok := r.m[v.Domain]; ok {
			return &ResetSignal{v.valueBase, to, v.AllowResetLess}, true, nil
		}
		return v, true, nil
	case *Sample:
		if to, ok := r.m[v.Domain]; ok {
			e, err := MapValue(v.Expr, r.mapValue)
			if err != nil {
				return nil, false, err
			}
			return &Sample{v.valueBase, e, v.Clocks, to}, true, nil
		}
	}
	return nil, false, nil
}

func (r *DomainRenamer) rename(d string) string {
	if to, ok := r.m[d]; ok {
		return to
	}
	return d
}

// Value renames the domains referenced by v.
//
func (r *DomainRenamer) Value(v Value) (Value, error) { return MapValue(v, r.mapValue) }

// TransformFragment implements Transform.
//
func (r *DomainRenamer) TransformFragment(f *Fragment) (*Fragment, error) {
	return transformer(func(*Fragment) (*hooks, error) {
		return &hooks{
			value: r.mapValue,
			domains: func(f, nf *Fragment) error {
				for _, n := range f.domainNames {
					cd := f.domains[n]
					if to, ok := r.m[n]; ok {
						if cd.Name == n {
							cd.Rename(to)
						} else if cd.Name != to {
							return Errorf(ValueError, "Clock domain mismatch! '%s' != '%s'", cd.Name, to)
						}
					}
					if err := nf.AddDomains(cd); err != nil {
						return err
					}
				}
				return nil
			},
			drivers: func(f, nf *Fragment) error {
				for _, d := range f.IterDrivers() {
					s, err := MapValue(d.Signal, r.mapValue)
					if err != nil {
						return err
					}
					nf.AddDriver(s, r.rename(d.Domain))
				}
				return nil
			},
			finish: func(f, nf *Fragment) error {
				if nf.Memory != nil {
					for i := range nf.Memory.Read {
						nf.Memory.Read[i].Domain = r.rename(nf.Memory.Read[i].Domain)
					}
					for i := range nf.Memory.Write {
						nf.Memory.Write[i].Domain = r.rename(nf.Memory.Write[i].Domain)
					}
				}
				return nil
			},
		}, nil
	}).apply(f)
}

// DomainLowerer replaces clock and reset references with the signals of
// the domains defined in each fragment, then inserts the synchronous reset
// logic of every domain with a reset.
//
type DomainLowerer struct{}

// TransformFragment implements Transform.
//
func (DomainLowerer) TransformFragment(f *Fragment) (*Fragment, error) {
	return transformer(func(f *Fragment) (*hooks, error) {
		m := func(v Value) (Value, bool, error) {
			switch v := v.(type) {
			case *ClockSignal:
				cd, ok := f.domains[v.Domain]
				if !ok {
					return nil, false, Errorf(DomainError, "Signal %v refers to nonexistent domain '%s'", v, v.Domain)
				}
				return cd.Clk, true, nil
			case *ResetSignal:
				cd, ok := f.domains[v.Domain]
				if !ok {
					return nil, false, Errorf(DomainError, "Signal %v refers to nonexistent domain '%s'", v, v.Domain)
				}
				if cd.Rst == nil {
					if v.AllowResetLess {
						return &Const{valueBase: v.valueBase, Value: 0, Width: 1}, true, nil
					}
					return nil, false, Errorf(DomainError, "Signal %v refers to reset of reset-less domain '%s'", v, v.Domain)
				}
				return cd.Rst, true, nil
			}
			return nil, false, nil
		}
		return &hooks{
			value: m,
			drivers: func(f, nf *Fragment) error {
				for _, d := range f.IterDrivers() {
					s, err := MapValue(d.Signal, m)
					if err != nil {
						return err
					}
					nf.AddDriver(s, d.Domain)
				}
				return nil
			},
			finish: func(_, nf *Fragment) error { return insertResets(nf) },
		}, nil
	}).apply(f)
}

func resetStatements(sigs []Value) []Statement {
	var stmts []Statement
	for _, v := range sigs {
		s, ok := v.(*Signal)
		if !ok || s.ResetLess {
			continue
		}
		stmts = append(stmts, &Assign{stmtBase{s.loc}, s, &Const{valueBase: s.valueBase, Value: s.Reset, Width: s.shape.Width, Signed: s.shape.Signed}})
	}
	return stmts
}

func insertResets(f *Fragment) error {
	for _, d := range f.driverDomains {
		if d == CombDomain {
			continue
		}
		cd, ok := f.domains[d]
		if !ok {
			return Errorf(DomainError, "Domain '%s' is used but not defined", d)
		}
		if cd.Rst == nil {
			continue
		}
		f.AddStatements(newSwitch(cd.Rst, []SwitchCase{{Patterns: []string{"1"}, Body: resetStatements(f.drivers[d].Slice())}}, cd.Rst.loc))
	}
	return nil
}

// SampleDomainInjector assigns a domain to the samples that do not have one.
//
type SampleDomainInjector string

func (d SampleDomainInjector) mapValue(v Value) (Value, bool, error) {
	if s, ok := v.(*Sample); ok && s.Domain == "" {
		return &Sample{s.valueBase, s.Expr, s.Clocks, string(d)}, true, nil
	}
	return nil, false, nil
}

// Statements returns stmts with domains injected.
//
func (d SampleDomainInjector) Statements(stmts []Statement) ([]Statement, error) {
	return MapStatements(stmts, d.mapValue)
}

// SampleLowerer replaces samples with chains of registers in the sample
// domain, and Initial with a signal driven by an "$initstate" instance.
//
type SampleLowerer struct{}

type sampleLowering struct {
	cache   *ValueDict[Value]
	initial *Signal
	order   []string
	stmts   map[string][]*Assign
}

func sampleNameReset(v Value) (string, int64) {
	switch v := v.(type) {
	case *Const:
		return "c$" + fmt.Sprint(v.Value), v.Value
	case *Signal:
		return "s$" + v.Name, v.Reset
	case *ClockSignal:
		return "clk", 0
	case *ResetSignal:
		return "rst", 1
	case *Initial:
		// Past(Initial()) produces 0, 1, 0, 0, ...
		return "init", 0
	}
	panic(fmt.Sprintf("cannot sample %v", v))
}

func (l *sampleLowering) mapValue(v Value) (Value, bool, error) {
	switch v := v.(type) {
	case *Sample:
		s, err := l.sample(v)
		return s, true, err
	case *Initial:
		if l.initial == nil {
			l.initial = newSignal(nil, &signalConfig{name: "init"}, v.loc)
		}
		return l.initial, true, nil
	}
	return nil, false, nil
}

func (l *sampleLowering) sample(v *Sample) (Value, error) {
	if s, ok := l.cache.Get(v); ok {
		return s, nil
	}
	sampled, err := MapValue(v.Expr, l.mapValue)
	if err != nil {
		return nil, err
	}
	var sample Value = sampled
	if v.Clocks > 0 {
		if v.Domain == "" {
			return nil, Errorf(ValueError, "Domain for value '%v' is not set", v)
		}
		name, reset := sampleNameReset(v.Expr)
		sig := newSignal(v.Expr.Shape(), &signalConfig{
			name:      fmt.Sprintf("$sample$%s$%s$%d", name, v.Domain, v.Clocks),
			reset:     reset,
			resetLess: true,
			attrs:     map[string]interface{}{"rtl.sample_reg": true},
		}, v.loc)
		prev, err := l.sample(&Sample{v.valueBase, sampled, v.Clocks - 1, v.Domain})
		if err != nil {
			return nil, err
		}
		if _, ok := l.stmts[v.Domain]; !ok {
			l.order = append(l.order, v.Domain)
		}
		l.stmts[v.Domain] = append(l.stmts[v.Domain], &Assign{stmtBase{v.loc}, sig, prev})
		sample = sig
	}
	l.cache.Set(v, sample)
	return sample, nil
}

// TransformFragment implements Transform.
//
func (SampleLowerer) TransformFragment(f *Fragment) (*Fragment, error) {
	return transformer(func(*Fragment) (*hooks, error) {
		l := &sampleLowering{cache: NewValueDict[Value](), stmts: make(map[string][]*Assign)}
		return &hooks{
			value: l.mapValue,
			statements: func(f, nf *Fragment) error {
				stmts, err := MapStatements(f.Statements, l.mapValue)
				if err != nil {
					return err
				}
				nf.AddStatements(stmts...)
				for _, d := range l.order {
					for _, a := range l.stmts[d] {
						nf.AddStatements(a)
						nf.AddDriver(a.LHS, d)
					}
				}
				if l.initial != nil {
					nf.AddSubfragment(NewInstance("$initstate", O("Y", l.initial)), "")
				}
				return nil
			},
		}, nil
	}).apply(f)
}

// CleanSwitches removes switches whose cases all have empty bodies.
//
func CleanSwitches(stmts []Statement) []Statement {
	return filterStatements(stmts, func(Statement) bool { return true })
}

func filterStatements(stmts []Statement, keep func(Statement) bool) []Statement {
	var out []Statement
	for _, s := range stmts {
		sw, ok := s.(*Switch)
		if !ok {
			if keep(s) {
				out = append(out, s)
			}
			continue
		}
		cases := make([]SwitchCase, len(sw.Cases))
		empty := true
		for i, c := range sw.Cases {
			body := filterStatements(c.Body, keep)
			cases[i] = SwitchCase{c.Patterns, body, c.Loc}
			empty = empty && len(body) == 0
		}
		if !empty {
			out = append(out, newSwitch(sw.Test, cases, sw.loc))
		}
	}
	return out
}

type lhsGroups struct {
	index  SignalDict[int]
	unions map[int]int
}

func (g *lhsGroups) find(s Value) int {
	if !g.index.Has(s) {
		g.index.Set(s, g.index.Len())
	}
	grp, _ := g.index.Get(s)
	for {
		u, ok := g.unions[grp]
		if !ok {
			break
		}
		grp = u
	}
	g.index.Set(s, grp)
	return grp
}

func (g *lhsGroups) unify(root Value, leaves ...Value) {
	rg := g.find(root)
	for _, l := range leaves {
		lg := g.find(l)
		if lg != rg {
			g.unions[lg] = rg
		}
	}
}

func (g *lhsGroups) statements(stmts []Statement) {
	for _, s := range stmts {
		switch s := s.(type) {
		case *Switch:
			for _, c := range s.Cases {
				g.statements(c.Body)
			}
		default:
			if lhs := s.LHSSignals().Slice(); len(lhs) > 0 {
				g.unify(lhs[0], lhs[1:]...)
			}
		}
	}
}

// GroupLHS partitions the signals assigned by stmts into groups of signals
// that are assigned together, such as the parts of a concatenation.
// Groups are returned in order of first appearance.
//
func GroupLHS(stmts []Statement) []*SignalSet {
	g := &lhsGroups{unions: make(map[int]int)}
	g.statements(stmts)
	var order []int
	groups := make(map[int]*SignalSet)
	for _, s := range g.index.Keys() {
		grp := g.find(s)
		if _, ok := groups[grp]; !ok {
			groups[grp] = NewSignalSet()
			order = append(order, grp)
		}
		groups[grp].Add(s)
	}
	out := make([]*SignalSet, len(order))
	for i, grp := range order {
		out[i] = groups[grp]
	}
	return out
}

// FilterLHS returns the statements of stmts that assign signals of group.
// Switches left empty are removed.
//
func FilterLHS(group *SignalSet, stmts []Statement) []Statement {
	return filterStatements(stmts, func(s Statement) bool {
		lhs := s.LHSSignals().Slice()
		return len(lhs) > 0 && group.Has(lhs[0])
	})
}

// controlInserter adds control logic to every signal driven from the
// domains of controls.
type controlInserter struct {
	controls map[string]Value
	loc      SrcLoc
}

func newControlInserter(controls map[string]Value, loc SrcLoc) controlInserter {
	c := controlInserter{controls: make(map[string]Value, len(controls)), loc: loc}
	for k, v := range controls {
		c.controls[k] = v
	}
	return c
}

func (c controlInserter) domains() []string {
	ds := make([]string, 0, len(c.controls))
	for d := range c.controls {
		ds = append(ds, d)
	}
	sort.Strings(ds)
	return ds
}

func (c controlInserter) apply(f *Fragment, insert func(nf *Fragment, domain string, sigs []Value), memory func(nf *Fragment)) (*Fragment, error) {
	return transformer(func(*Fragment) (*hooks, error) {
		return &hooks{
			finish: func(f, nf *Fragment) error {
				for _, d := range f.driverDomains {
					if _, ok := c.controls[d]; !ok || d == CombDomain {
						continue
					}
					insert(nf, d, f.drivers[d].Slice())
				}
				if memory != nil && nf.Memory != nil {
					memory(nf)
				}
				return nil
			},
		}, nil
	}).apply(f)
}

// ResetInserter adds a synchronous reset to the signals driven from the
// given domains.
//
type ResetInserter struct{ controlInserter }

// NewResetInserter returns a reset inserter for a domain → reset map.
//
func NewResetInserter(controls map[string]Value) *ResetInserter {
	return &ResetInserter{newControlInserter(controls, callerLoc())}
}

// InsertReset returns a reset inserter for the "sync" domain.
//
func InsertReset(rst interface{}) *ResetInserter {
	return &ResetInserter{newControlInserter(map[string]Value{"sync": Cast(rst)}, callerLoc())}
}

// Domains returns the controlled domains.
//
func (r *ResetInserter) Domains() []string { return r.domains() }

// TransformFragment implements Transform.
//
func (r *ResetInserter) TransformFragment(f *Fragment) (*Fragment, error) {
	return r.apply(f, func(nf *Fragment, domain string, sigs []Value) {
		ctrl := r.controls[domain]
		nf.AddStatements(controlSwitch(ctrl, 1, resetStatements(sigs), r.loc))
	}, nil)
}

// controlSwitch builds a switch on the value of ctrl matching key.
func controlSwitch(ctrl Value, key int64, body []Statement, loc SrcLoc) *Switch {
	return newSwitch(ctrl, []SwitchCase{{Patterns: []string{formatBits(uint64(key), Len(ctrl))}, Body: body, Loc: loc}}, loc)
}

// EnableInserter gates the signals driven from the given domains, and the
// memory ports of these domains, with an enable signal.
//
type EnableInserter struct{ controlInserter }

// NewEnableInserter returns an enable inserter for a domain → enable map.
//
func NewEnableInserter(controls map[string]Value) *EnableInserter {
	return &EnableInserter{newControlInserter(controls, callerLoc())}
}

// InsertEnable returns an enable inserter for the "sync" domain.
//
func InsertEnable(en interface{}) *EnableInserter {
	return &EnableInserter{newControlInserter(map[string]Value{"sync": Cast(en)}, callerLoc())}
}

// Domains returns the controlled domains.
//
func (e *EnableInserter) Domains() []string { return e.domains() }

// TransformFragment implements Transform.
//
func (e *EnableInserter) TransformFragment(f *Fragment) (*Fragment, error) {
	return e.apply(f, func(nf *Fragment, domain string, sigs []Value) {
		stmts := make([]Statement, 0, len(sigs))
		for _, s := range sigs {
			stmts = append(stmts, &Assign{stmtBase{e.loc}, s, s})
		}
		nf.AddStatements(controlSwitch(e.controls[domain], 0, stmts, e.loc))
	}, func(nf *Fragment) {
		for i := range nf.Memory.Read {
			p := &nf.Memory.Read[i]
			p.En = e.gate(p.Domain, p.En)
		}
		for i := range nf.Memory.Write {
			p := &nf.Memory.Write[i]
			p.En = e.gate(p.Domain, p.En)
		}
	})
}

// gate returns en forced to zero while the control of domain is low.
func (e *EnableInserter) gate(domain string, en Value) Value {
	ctrl, ok := e.controls[domain]
	if !ok {
		return en
	}
	if Len(ctrl) != 1 {
		ctrl = newOperator("b", e.loc, ctrl)
	}
	return newOperator("m", e.loc, ctrl, en, newConst(0, Unsigned(Len(en)), e.loc))
}
