// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package rtl

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/db47h/rtl/internal/config"
	"github.com/db47h/rtl/internal/diag"
)

// HierarchyMode selects how driver conflicts between fragments are
// resolved.
//
type HierarchyMode int

// Hierarchy conflict resolution modes. In all modes but ConflictError, the
// branch of the hierarchy containing the conflicting drivers is flattened.
//
const (
	ConflictWarn HierarchyMode = iota
	ConflictSilent
	ConflictError
)

// ParseHierarchyMode parses "silent", "warn" or "error".
//
func ParseHierarchyMode(s string) (HierarchyMode, error) {
	switch s {
	case "silent":
		return ConflictSilent, nil
	case "warn":
		return ConflictWarn, nil
	case "error":
		return ConflictError, nil
	}
	return ConflictWarn, Errorf(ValueError, "Invalid hierarchy mode '%s'", s)
}

// MissingDomainFunc is called for every domain used but not defined in a
// design. It returns either a *ClockDomain, an Elaboratable whose fragment
// defines the domain, or nil if the domain cannot be created.
//
type MissingDomainFunc func(name string) interface{}

type prepareConfig struct {
	ports     []Value
	portsSet  bool
	missing   MissingDomainFunc
	conflicts HierarchyMode
	platform  interface{}
}

// PrepareOption configures Prepare.
//
type PrepareOption func(*prepareConfig)

// Ports requests the given signals to be exposed as ports of the top-level
// fragment. Without this option, every signal used but not driven in the
// design becomes an input port.
//
func Ports(ports ...Value) PrepareOption {
	return func(c *prepareConfig) {
		c.ports = append(c.ports, ports...)
		c.portsSet = true
	}
}

// MissingDomain sets the missing domain callback. The default creates a new
// ClockDomain.
//
func MissingDomain(fn MissingDomainFunc) PrepareOption {
	return func(c *prepareConfig) { c.missing = fn }
}

// Conflicts sets the hierarchy conflict resolution mode. The default is
// read from the RTL_HIERARCHY environment variable.
//
func Conflicts(mode HierarchyMode) PrepareOption {
	return func(c *prepareConfig) { c.conflicts = mode }
}

// Platform sets the platform passed to elaboratables created by the missing
// domain callback.
//
func Platform(p interface{}) PrepareOption {
	return func(c *prepareConfig) { c.platform = p }
}

func defaultMissingDomain(name string) interface{} {
	cd, err := newClockDomain(name, SrcLoc{})
	if err != nil {
		return nil
	}
	return cd
}

// Prepare elaborates e and prepares the resulting fragment.
//
func Prepare(e Elaboratable, opts ...PrepareOption) (*Fragment, error) {
	var cfg prepareConfig
	for _, o := range opts {
		o(&cfg)
	}
	f, err := GetFragment(e, cfg.platform)
	if err != nil {
		return nil, err
	}
	return f.Prepare(opts...)
}

// Prepare returns a new fragment tree ready for simulation: samples are
// lowered, domains are propagated and created when missing, driver
// conflicts are resolved, clock and reset references are lowered, ports are
// inferred and names are assigned. f can only be prepared once.
//
func (f *Fragment) Prepare(opts ...PrepareOption) (*Fragment, error) {
	cfg := prepareConfig{missing: defaultMissingDomain}
	if m, err := ParseHierarchyMode(config.Load().Hierarchy); err == nil {
		cfg.conflicts = m
	}
	for _, o := range opts {
		o(&cfg)
	}
	if f.state != fragBuilding {
		return nil, Errorf(ValueError, "Fragment has already been prepared")
	}

	for _, p := range cfg.ports {
		switch p.(type) {
		case *Signal, *ClockSignal, *ResetSignal:
		default:
			return nil, Errorf(TypeError, "Only signals may be added as ports, not %v", p)
		}
	}

	frag, err := SampleLowerer{}.TransformFragment(f)
	if err != nil {
		return nil, err
	}
	newDomains, err := frag.propagateDomains(cfg.missing, cfg.platform)
	if err != nil {
		return nil, err
	}
	if _, err = frag.resolveHierarchyConflicts([]string{"top"}, cfg.conflicts); err != nil {
		return nil, err
	}
	if frag, err = (DomainLowerer{}).TransformFragment(frag); err != nil {
		return nil, err
	}

	if !cfg.portsSet {
		frag.propagatePorts(nil, true)
	} else {
		var ports []Value
		for _, p := range cfg.ports {
			lp, err := lowerPort(frag, p)
			if err != nil {
				return nil, err
			}
			ports = append(ports, lp)
		}
		for _, cd := range newDomains {
			ports = append(ports, cd.Clk)
			if cd.Rst != nil {
				ports = append(ports, cd.Rst)
			}
		}
		frag.propagatePorts(ports, false)
	}

	frag.assignNames([]string{"top"})
	ReportUnusedProperties()
	f.state = fragPrepared
	frag.markPrepared()
	return frag, nil
}

func lowerPort(f *Fragment, p Value) (Value, error) {
	switch p := p.(type) {
	case *ClockSignal:
		cd, ok := f.domains[p.Domain]
		if !ok {
			return nil, Errorf(DomainError, "Signal %v refers to nonexistent domain '%s'", p, p.Domain)
		}
		return cd.Clk, nil
	case *ResetSignal:
		cd, ok := f.domains[p.Domain]
		if !ok {
			return nil, Errorf(DomainError, "Signal %v refers to nonexistent domain '%s'", p, p.Domain)
		}
		if cd.Rst == nil {
			return nil, Errorf(DomainError, "Signal %v refers to reset of reset-less domain '%s'", p, p.Domain)
		}
		return cd.Rst, nil
	}
	return p, nil
}

type domainDef struct {
	index int
	name  string
}

func (f *Fragment) propagateDomainsUp(hier []string) error {
	var order []string
	defs := make(map[string][]domainDef)
	for i, s := range f.Subfragments {
		sh := append(append([]string(nil), hier...), subfragmentName(i, s.Name))
		if err := s.Fragment.propagateDomainsUp(sh); err != nil {
			return err
		}
		for _, n := range s.Fragment.domainNames {
			if s.Fragment.domains[n].Local {
				continue
			}
			if _, ok := defs[n]; !ok {
				order = append(order, n)
			}
			defs[n] = append(defs[n], domainDef{i, s.Name})
		}
	}

	for _, dn := range order {
		ds := defs[dn]
		if len(ds) == 1 {
			continue
		}
		anon := false
		seen := make(map[string]bool)
		dup := false
		for _, d := range ds {
			anon = anon || d.name == ""
			dup = dup || seen[d.name]
			seen[d.name] = true
		}
		if anon {
			names := make([]string, len(ds))
			for i, d := range ds {
				if d.name == "" {
					names[i] = "<unnamed #" + strconv.Itoa(d.index) + ">"
				} else {
					names[i] = "'" + d.name + "'"
				}
			}
			sort.Strings(names)
			return Errorf(DomainError, "Domain '%s' is defined by subfragments %s of fragment '%s'; "+
				"it is necessary to either rename subfragment domains explicitly, or give names to subfragments",
				dn, strings.Join(names, ", "), strings.Join(hier, "."))
		}
		if dup {
			names := make([]string, len(ds))
			for i, d := range ds {
				names[i] = "#" + strconv.Itoa(d.index)
			}
			sort.Strings(names)
			return Errorf(DomainError, "Domain '%s' is defined by subfragments %s of fragment '%s', "+
				"some of which have identical names; it is necessary to either rename subfragment domains "+
				"explicitly, or give distinct names to subfragments",
				dn, strings.Join(names, ", "), strings.Join(hier, "."))
		}
		for _, d := range ds {
			r, err := NewDomainRenamer(map[string]string{dn: d.name + "_" + dn})
			if err != nil {
				return err
			}
			nf, err := r.TransformFragment(f.Subfragments[d.index].Fragment)
			if err != nil {
				return err
			}
			f.Subfragments[d.index].Fragment = nf
		}
	}

	for _, s := range f.Subfragments {
		for _, n := range s.Fragment.domainNames {
			cd := s.Fragment.domains[n]
			if cd.Local {
				continue
			}
			if err := f.AddDomains(cd); err != nil {
				return err
			}
		}
	}
	return nil
}

func (f *Fragment) propagateDomainsDown() error {
	for _, s := range f.Subfragments {
		for _, n := range f.domainNames {
			if cd, ok := s.Fragment.domains[n]; ok {
				if cd != f.domains[n] {
					return Errorf(DomainError, "Domain '%s' is defined by both a fragment and its subfragment", n)
				}
				continue
			}
			if err := s.Fragment.AddDomains(f.domains[n]); err != nil {
				return err
			}
		}
		if err := s.Fragment.propagateDomainsDown(); err != nil {
			return err
		}
	}
	return nil
}

// didYouMean returns a hint naming the closest known domain.
func didYouMean(name string, known []string) string {
	best, bestDist := "", 3
	for _, k := range known {
		if d := levenshtein.ComputeDistance(name, k); d > 0 && d < bestDist {
			best, bestDist = k, d
		}
	}
	if best == "" {
		return ""
	}
	return "; did you mean '" + best + "'?"
}

func (f *Fragment) createMissingDomains(missing MissingDomainFunc, platform interface{}) ([]*ClockDomain, error) {
	c := CollectDomains(f)
	var newDomains []*ClockDomain
	for _, name := range c.Undefined() {
		var v interface{}
		if missing != nil {
			v = missing(name)
		}
		if isNil(v) {
			return nil, Errorf(DomainError, "Domain '%s' is used but not defined%s", name, didYouMean(name, c.Defined()))
		}
		switch v := v.(type) {
		case *ClockDomain:
			if err := f.AddDomains(v); err != nil {
				return nil, err
			}
			newDomains = append(newDomains, v)
		case Elaboratable:
			nf, err := GetFragment(v, platform)
			if err != nil {
				return nil, err
			}
			if _, ok := nf.domains[name]; !ok {
				quoted := make([]string, len(nf.domainNames))
				for i, n := range nf.domainNames {
					quoted[i] = "'" + n + "'"
				}
				return nil, Errorf(DomainError, "Fragment returned by missing domain callback does not define requested domain '%s' (defines %s).",
					name, strings.Join(quoted, ", "))
			}
			f.AddSubfragment(nf, "cd_"+name)
			for _, n := range nf.domainNames {
				if err := f.AddDomains(nf.domains[n]); err != nil {
					return nil, err
				}
			}
		default:
			return nil, Errorf(TypeError, "Missing domain callback returned %v, not a clock domain or an elaboratable", v)
		}
	}
	return newDomains, nil
}

func (f *Fragment) propagateDomains(missing MissingDomainFunc, platform interface{}) ([]*ClockDomain, error) {
	if err := f.propagateDomainsUp([]string{"top"}); err != nil {
		return nil, err
	}
	nd, err := f.createMissingDomains(missing, platform)
	if err != nil {
		return nil, err
	}
	if err = f.propagateDomainsDown(); err != nil {
		return nil, err
	}
	return nd, nil
}

// driverRef is a fragment driving a signal, nil for the fragment being
// resolved.
type driverRef struct {
	frag *Fragment
	hier []string
}

func (f *Fragment) resolveHierarchyConflicts(hier []string, mode HierarchyMode) (*SignalSet, error) {
	var drivers SignalDict[[]driverRef]
	addRef := func(sig Value, ref driverRef) {
		refs, _ := drivers.Get(sig)
		for _, r := range refs {
			if r.frag == ref.frag {
				return
			}
		}
		drivers.Set(sig, append(refs, ref))
	}

	for _, d := range f.IterDrivers() {
		addRef(d.Signal, driverRef{nil, hier})
	}

	var flatten []driverRef
	addFlatten := func(ref driverRef) {
		for _, r := range flatten {
			if r.frag == ref.frag {
				return
			}
		}
		flatten = append(flatten, ref)
	}
	for i, s := range f.Subfragments {
		sh := append(append([]string(nil), hier...), subfragmentName(i, s.Name))
		// memory fragments are never flattened
		if s.Fragment.Memory != nil {
			for _, d := range s.Fragment.IterDrivers() {
				addRef(d.Signal, driverRef{s.Fragment, sh})
			}
			continue
		}
		if s.Fragment.Flatten {
			addFlatten(driverRef{s.Fragment, sh})
			continue
		}
		if s.Fragment.Instance != nil {
			continue
		}
		subDrivers, err := s.Fragment.resolveHierarchyConflicts(sh, mode)
		if err != nil {
			return nil, err
		}
		for _, sig := range subDrivers.Slice() {
			addRef(sig, driverRef{s.Fragment, sh})
		}
	}

	var err error
	drivers.Range(func(sig Value, refs []driverRef) bool {
		if len(refs) == 1 {
			return true
		}
		names := make([]string, 0, len(refs))
		var mem *Memory
		for _, r := range refs {
			if r.frag != nil && r.frag.Memory != nil {
				mem = r.frag.Memory.Memory
			} else if r.frag != nil {
				addFlatten(r)
			}
			names = append(names, strings.Join(r.hier, "."))
		}
		sort.Strings(names)
		msg := fmt.Sprintf("Signal '%v' is driven from multiple fragments: %s", sig, strings.Join(names, ", "))
		if mem != nil {
			err = Errorf(DriverConflict, "%s; memory '%s' cannot be flattened", msg, mem.Name)
			return false
		}
		switch mode {
		case ConflictError:
			err = Errorf(DriverConflict, "%s", msg)
			return false
		case ConflictWarn:
			diag.Warnf(diag.DriverConflict, sig.SrcLoc().String(), "%s; hierarchy will be flattened", msg)
		}
		return true
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(flatten, func(i, j int) bool {
		return strings.Join(flatten[i].hier, "\x00") < strings.Join(flatten[j].hier, "\x00")
	})
	for _, r := range flatten {
		f.mergeSubfragment(r.frag)
	}
	if len(flatten) > 0 {
		return f.resolveHierarchyConflicts(hier, mode)
	}
	return NewSignalSet(drivers.Keys()...), nil
}

// mergeSubfragment merges everything but the clock domains of sub into f,
// then removes sub.
func (f *Fragment) mergeSubfragment(sub *Fragment) {
	sub.Ports.Range(func(k Value, d PortDir) bool {
		f.Ports.Set(k, d)
		return true
	})
	for _, d := range sub.IterDrivers() {
		f.AddDriver(d.Signal, d.Domain)
	}
	f.Statements = append(f.Statements, sub.Statements...)
	f.Subfragments = append(f.Subfragments, sub.Subfragments...)
	for i, s := range f.Subfragments {
		if s.Fragment == sub {
			f.Subfragments = append(f.Subfragments[:i], f.Subfragments[i+1:]...)
			break
		}
	}
}

type useDefGraph struct {
	parent map[*Fragment]*Fragment
	level  map[*Fragment]int
	uses   SignalDict[[]*Fragment]
	defs   SignalDict[*Fragment]
	ios    SignalDict[*Fragment]
}

func (g *useDefGraph) addUses(f *Fragment, sigs ...Value) {
	for _, s := range sigs {
		fs, _ := g.uses.Get(s)
		found := false
		for _, u := range fs {
			found = found || u == f
		}
		if !found {
			g.uses.Set(s, append(fs, f))
		}
	}
}

func (g *useDefGraph) addDefs(f *Fragment, sigs ...Value) {
	for _, s := range sigs {
		if !g.defs.Has(s) {
			g.defs.Set(s, f)
		}
	}
}

func (g *useDefGraph) build(f *Fragment) {
	for _, s := range f.Statements {
		g.addUses(f, s.RHSSignals().Slice()...)
		g.addDefs(f, s.LHSSignals().Slice()...)
	}
	for _, d := range f.driverDomains {
		if d == CombDomain {
			continue
		}
		if cd, ok := f.domains[d]; ok {
			g.addUses(f, cd.Clk)
			if cd.Rst != nil {
				g.addUses(f, cd.Rst)
			}
		}
	}
	for _, s := range f.Subfragments {
		sub := s.Fragment
		if sub.Instance != nil {
			for _, p := range sub.Instance.Ports {
				switch p.Dir {
				case In:
					outs := NewSignalSet(sub.IterPorts(Out)...)
					sub.AddPorts(In, RHSSignals(p.Value).Difference(outs).Slice()...)
					g.addUses(f, RHSSignals(p.Value).Slice()...)
				case Out:
					lhs := lhsSignals(p.Value).Slice()
					sub.AddPorts(Out, lhs...)
					g.addDefs(f, lhs...)
				case InOut:
					lhs := lhsSignals(p.Value).Slice()
					sub.AddPorts(InOut, lhs...)
					for _, s := range lhs {
						if !g.ios.Has(s) {
							g.ios.Set(s, f)
						}
					}
				}
			}
			continue
		}
		g.parent[sub] = f
		g.level[sub] = g.level[f] + 1
		g.build(sub)
	}
}

func (g *useDefGraph) lca(a, b *Fragment) *Fragment {
	for a != b {
		if g.level[a] >= g.level[b] {
			a = g.parent[a]
		} else {
			b = g.parent[b]
		}
	}
	return a
}

// addPath adds sig as a port of every fragment from frag up to, but
// excluding, stop.
func (g *useDefGraph) addPath(sig Value, dir PortDir, frag, stop *Fragment) {
	for frag != nil && frag != stop {
		frag.AddPorts(dir, sig)
		frag = g.parent[frag]
	}
}

func (f *Fragment) propagatePorts(ports []Value, allUndefAsPorts bool) {
	g := &useDefGraph{
		parent: map[*Fragment]*Fragment{f: nil},
		level:  map[*Fragment]int{f: 0},
	}
	g.build(f)

	portSet := NewSignalSet(ports...)
	if allUndefAsPorts {
		for _, s := range g.uses.Keys() {
			if !g.defs.Has(s) {
				portSet.Add(s)
			}
		}
	}
	for _, s := range portSet.Slice() {
		if g.ios.Has(s) {
			continue
		}
		if g.defs.Has(s) {
			f.AddPorts(Out, s)
		} else {
			f.AddPorts(In, s)
		}
	}

	g.uses.Range(func(sig Value, users []*Fragment) bool {
		def, defined := g.defs.Get(sig)
		if !defined {
			for _, u := range users {
				g.addPath(sig, In, u, f)
			}
			return true
		}
		for _, u := range users {
			l := g.lca(def, u)
			g.addPath(sig, Out, def, l)
			g.addPath(sig, In, u, l)
		}
		return true
	})
	for _, s := range portSet.Slice() {
		if def, ok := g.defs.Get(s); ok {
			g.addPath(s, Out, def, f)
		}
	}
	g.ios.Range(func(sig Value, frag *Fragment) bool {
		g.addPath(sig, InOut, frag, nil)
		return true
	})
}

func (f *Fragment) assignSignalNames() *SignalDict[string] {
	names := NewSignalDict[string]()
	assigned := make(map[string]bool)
	add := func(s Value) {
		sig, ok := s.(*Signal)
		if !ok || names.Has(sig) {
			return
		}
		name := sig.Name
		if assigned[name] {
			name = sig.Name + "$" + strconv.Itoa(len(assigned))
		}
		names.Set(sig, name)
		assigned[name] = true
	}
	for _, p := range f.Ports.Keys() {
		add(p)
	}
	for _, d := range f.driverDomains {
		if d == CombDomain {
			continue
		}
		if cd, ok := f.domains[d]; ok {
			add(cd.Clk)
			if cd.Rst != nil {
				add(cd.Rst)
			}
		}
	}
	for _, s := range f.Statements {
		for _, sig := range s.LHSSignals().Union(s.RHSSignals()).Slice() {
			add(sig)
		}
	}
	for _, d := range f.IterDrivers() {
		add(d.Signal)
	}
	return names
}

func (f *Fragment) assignNames(hier []string) {
	f.hier = hier
	f.names = f.assignSignalNames()
	used := make(map[string]bool)
	f.names.Range(func(_ Value, n string) bool {
		used[n] = true
		return true
	})
	for i, s := range f.Subfragments {
		name := s.Name
		if name == "" {
			name = "U$" + strconv.Itoa(i)
		} else if used[name] {
			name = name + "$U$" + strconv.Itoa(i)
		}
		s.Fragment.assignNames(append(append([]string(nil), hier...), name))
	}
}
