// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package rtl

import (
	"fmt"
	"reflect"
	"strconv"
)

// Elaboratable is implemented by anything that can be turned into a
// Fragment. Elaborate returns either a *Fragment or another Elaboratable
// which is in turn elaborated.
//
type Elaboratable interface {
	Elaborate(platform interface{}) (Elaboratable, error)
}

// PortDir is the direction of a fragment port.
//
type PortDir string

// Port directions.
//
const (
	In    PortDir = "i"
	Out   PortDir = "o"
	InOut PortDir = "io"
)

// Subfragment is a named child fragment. An empty Name denotes an anonymous
// subfragment.
//
type Subfragment struct {
	Fragment *Fragment
	Name     string
}

type fragmentState int

const (
	fragBuilding fragmentState = iota
	fragPrepared
	fragClaimed
)

// Fragment is a node of the elaborated design hierarchy: statements, the
// signals they drive per domain, the clock domains it defines and its
// children.
//
// Fragments are built with the Add* methods then turned into a
// simulatable or synthesizable design with Prepare.
//
type Fragment struct {
	Ports        SignalDict[PortDir]
	Statements   []Statement
	Subfragments []Subfragment
	Attrs        map[string]interface{}
	// Flatten requests the fragment to be merged into its parent.
	Flatten bool
	// Generated holds named objects created during elaboration.
	Generated map[string]interface{}

	// Instance is set for black box fragments.
	Instance *InstanceSpec
	// Memory is set for fragments generated by a Memory.
	Memory *MemorySpec

	driverDomains []string
	drivers       map[string]*SignalSet
	domainNames   []string
	domains       map[string]*ClockDomain

	state fragmentState
	names *SignalDict[string]
	hier  []string
}

// NewFragment returns a new empty fragment.
//
func NewFragment() *Fragment {
	return &Fragment{
		Attrs:     make(map[string]interface{}),
		Generated: make(map[string]interface{}),
		drivers:   make(map[string]*SignalSet),
		domains:   make(map[string]*ClockDomain),
	}
}

// Elaborate implements Elaboratable.
//
func (f *Fragment) Elaborate(platform interface{}) (Elaboratable, error) { return f, nil }

func isNil(obj interface{}) bool {
	if obj == nil {
		return true
	}
	v := reflect.ValueOf(obj)
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Func, reflect.Interface, reflect.Chan:
		return v.IsNil()
	}
	return false
}

// GetFragment elaborates obj until a *Fragment is obtained.
//
func GetFragment(obj Elaboratable, platform interface{}) (*Fragment, error) {
	if isNil(obj) {
		return nil, Errorf(AttributeError, "Object <nil> cannot be elaborated")
	}
	for {
		if f, ok := obj.(*Fragment); ok {
			return f, nil
		}
		next, err := obj.Elaborate(platform)
		if err != nil {
			return nil, err
		}
		if isNil(next) {
			return nil, Errorf(AttributeError, "Object <nil> cannot be elaborated")
		}
		if sameObject(next, obj) {
			return nil, Errorf(RecursionError, "Object %v elaborates to itself", obj)
		}
		obj = next
	}
}

func (f *Fragment) checkBuilding() {
	if f.state != fragBuilding {
		raise(ValueError, "Fragment has already been prepared")
	}
}

// AddPorts adds ports in the given direction. Ports are only checked when
// the fragment is prepared.
//
func (f *Fragment) AddPorts(dir PortDir, ports ...Value) {
	for _, p := range ports {
		f.Ports.Set(p, dir)
	}
}

// IterPorts returns the ports with the given direction, or all ports if
// dir is empty.
//
func (f *Fragment) IterPorts(dir PortDir) []Value {
	var ports []Value
	f.Ports.Range(func(k Value, d PortDir) bool {
		if dir == "" || d == dir {
			ports = append(ports, k)
		}
		return true
	})
	return ports
}

// AddDriver records that sig is driven from domain. Use CombDomain for
// combinational drivers.
//
func (f *Fragment) AddDriver(sig Value, domain string) {
	f.checkBuilding()
	s, ok := f.drivers[domain]
	if !ok {
		s = NewSignalSet()
		f.drivers[domain] = s
		f.driverDomains = append(f.driverDomains, domain)
	}
	s.Add(sig)
}

// Driver is a (domain, signal) driver pair.
//
type Driver struct {
	Domain string
	Signal Value
}

// IterDrivers returns every driver in insertion order.
//
func (f *Fragment) IterDrivers() []Driver {
	var ds []Driver
	for _, d := range f.driverDomains {
		for _, s := range f.drivers[d].Slice() {
			ds = append(ds, Driver{d, s})
		}
	}
	return ds
}

// DriverDomains returns the domains with drivers, in insertion order.
//
func (f *Fragment) DriverDomains() []string { return append([]string(nil), f.driverDomains...) }

// Drivers returns the set of signals driven from domain or nil.
//
func (f *Fragment) Drivers(domain string) *SignalSet { return f.drivers[domain] }

// IterComb returns the combinationally driven signals.
//
func (f *Fragment) IterComb() []Value {
	if s, ok := f.drivers[CombDomain]; ok {
		return s.Slice()
	}
	return nil
}

// IterSync returns the drivers of all clocked domains.
//
func (f *Fragment) IterSync() []Driver {
	var ds []Driver
	for _, d := range f.IterDrivers() {
		if d.Domain != CombDomain {
			ds = append(ds, d)
		}
	}
	return ds
}

// IterSignals returns the ports and driven signals of the fragment.
//
func (f *Fragment) IterSignals() *SignalSet {
	s := NewSignalSet(f.Ports.Keys()...)
	for _, d := range f.driverDomains {
		s.Update(f.drivers[d])
	}
	return s
}

// AddDomains adds clock domains definitions. Adding the same domain twice
// is a no-op, while adding a different domain with the same name is an
// error.
//
func (f *Fragment) AddDomains(domains ...*ClockDomain) error {
	for _, d := range domains {
		if o, ok := f.domains[d.Name]; ok {
			if o == d {
				continue
			}
			return Errorf(DomainError, "Domain '%s' is already defined", d.Name)
		}
		f.domains[d.Name] = d
		f.domainNames = append(f.domainNames, d.Name)
	}
	return nil
}

// Domain returns the domain with the given name or nil.
//
func (f *Fragment) Domain(name string) *ClockDomain { return f.domains[name] }

// IterDomains returns the domain names in definition order.
//
func (f *Fragment) IterDomains() []string { return append([]string(nil), f.domainNames...) }

// AddStatements appends statements to the fragment. Properties found in
// stmts are marked as used.
//
func (f *Fragment) AddStatements(stmts ...Statement) {
	f.checkBuilding()
	markUsed(stmts)
	f.Statements = append(f.Statements, stmts...)
}

// AddSubfragment adds a child fragment. An empty name adds an anonymous
// subfragment.
//
func (f *Fragment) AddSubfragment(sub *Fragment, name string) {
	f.checkBuilding()
	f.Subfragments = append(f.Subfragments, Subfragment{sub, name})
}

// FindSubfragment returns a subfragment by name (string) or index (int).
//
func (f *Fragment) FindSubfragment(nameOrIndex interface{}) (*Fragment, error) {
	switch k := nameOrIndex.(type) {
	case int:
		if k >= 0 && k < len(f.Subfragments) {
			return f.Subfragments[k].Fragment, nil
		}
		return nil, Errorf(NameError, "No subfragment at index #%d", k)
	case string:
		for _, s := range f.Subfragments {
			if s.Name != "" && s.Name == k {
				return s.Fragment, nil
			}
		}
		return nil, Errorf(NameError, "No subfragment with name '%s'", k)
	}
	return nil, Errorf(TypeError, "Subfragment key must be a name or an index, not %v", nameOrIndex)
}

// FindGenerated looks up an object generated during elaboration, walking
// down named subfragments for all but the last path element.
//
func (f *Fragment) FindGenerated(path ...string) (interface{}, error) {
	if len(path) > 1 {
		sub, err := f.FindSubfragment(path[0])
		if err != nil {
			return nil, err
		}
		return sub.FindGenerated(path[1:]...)
	}
	if len(path) == 0 {
		return nil, Errorf(ValueError, "Empty path")
	}
	if o, ok := f.Generated[path[0]]; ok {
		return o, nil
	}
	return nil, Errorf(NameError, "No generated object with name '%s'", path[0])
}

// Prepared reports whether the fragment has been prepared.
//
func (f *Fragment) Prepared() bool { return f.state >= fragPrepared }

// Claim marks a prepared fragment as consumed by a simulator. A fragment
// can only be claimed once.
//
func (f *Fragment) Claim() error {
	switch f.state {
	case fragBuilding:
		return Errorf(ValueError, "Fragment must be prepared before it is simulated")
	case fragClaimed:
		return Errorf(ValueError, "Fragment is already used by another simulator")
	}
	f.state = fragClaimed
	return nil
}

func (f *Fragment) markPrepared() {
	f.state = fragPrepared
	for _, s := range f.Subfragments {
		s.Fragment.markPrepared()
	}
}

// Hierarchy returns the hierarchical name of a prepared fragment.
//
func (f *Fragment) Hierarchy() []string { return append([]string(nil), f.hier...) }

// SignalNames returns the local names assigned to the signals of a prepared
// fragment.
//
func (f *Fragment) SignalNames() *SignalDict[string] { return f.names }

func subfragmentName(i int, name string) string {
	if name == "" {
		return "<unnamed #" + strconv.Itoa(i) + ">"
	}
	return name
}

func (f *Fragment) String() string {
	if f.Instance != nil {
		return fmt.Sprintf("(instance %s)", f.Instance.Type)
	}
	return fmt.Sprintf("(fragment %d stmts %d subfragments)", len(f.Statements), len(f.Subfragments))
}

// shallowCopy returns an empty fragment with the metadata of f.
func (f *Fragment) shallowCopy() *Fragment {
	nf := NewFragment()
	nf.Flatten = f.Flatten
	for k, v := range f.Attrs {
		nf.Attrs[k] = v
	}
	for k, v := range f.Generated {
		nf.Generated[k] = v
	}
	return nf
}
