// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package rtl

// InstancePort is a named port of a black box instance.
//
type InstancePort struct {
	Name  string
	Value Value
	Dir   PortDir
}

// Param is a named instance parameter.
//
type Param struct {
	Name  string
	Value interface{}
}

// InstanceSpec describes a black box: a cell type, its parameters and its
// named ports. Instances are opaque to the simulator.
//
type InstanceSpec struct {
	Type   string
	Params []Param
	Ports  []InstancePort
	Loc    SrcLoc
}

// Port returns the named port.
//
func (s *InstanceSpec) Port(name string) (InstancePort, bool) {
	for _, p := range s.Ports {
		if p.Name == name {
			return p, true
		}
	}
	return InstancePort{}, false
}

func (s *InstanceSpec) clone() *InstanceSpec {
	return &InstanceSpec{
		Type:   s.Type,
		Params: append([]Param(nil), s.Params...),
		Ports:  append([]InstancePort(nil), s.Ports...),
		Loc:    s.Loc,
	}
}

// InstanceItem configures an instance.
//
type InstanceItem func(f *Fragment)

// P adds a parameter.
//
func P(name string, v interface{}) InstanceItem {
	return func(f *Fragment) { f.Instance.Params = append(f.Instance.Params, Param{name, v}) }
}

// A adds an attribute.
//
func A(name string, v interface{}) InstanceItem {
	return func(f *Fragment) { f.Attrs[name] = v }
}

func instancePort(name string, v interface{}, dir PortDir) InstanceItem {
	val := Cast(v)
	return func(f *Fragment) {
		f.Instance.Ports = append(f.Instance.Ports, InstancePort{name, val, dir})
	}
}

// I adds an input port.
//
func I(name string, v interface{}) InstanceItem { return instancePort(name, v, In) }

// O adds an output port.
//
func O(name string, v interface{}) InstanceItem { return instancePort(name, v, Out) }

// IO adds a bidirectional port.
//
func IO(name string, v interface{}) InstanceItem { return instancePort(name, v, InOut) }

// NewInstance returns a black box fragment of the given type.
//
func NewInstance(typ string, items ...InstanceItem) *Fragment {
	f := NewFragment()
	f.Instance = &InstanceSpec{Type: typ, Loc: callerLoc()}
	for _, it := range items {
		it(f)
	}
	return f
}
