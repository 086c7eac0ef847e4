// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package rtl

import (
	"strconv"
)

// Memory is a word addressable storage made of one signal per word. It
// elaborates to a fragment driving its words from its write ports and the
// data signals of its read ports.
//
type Memory struct {
	Name  string
	Width int
	Depth int
	Attrs map[string]interface{}
	Loc   SrcLoc

	words      *Array
	init       []int64
	readPorts  []*ReadPort
	writePorts []*WritePort
}

// MemoryOption configures a memory.
//
type MemoryOption func(*Memory)

// MemName sets the name of a memory. The default is "$memory".
//
func MemName(name string) MemoryOption { return func(m *Memory) { m.Name = name } }

// MemInit sets the initial contents of a memory.
//
func MemInit(init ...int64) MemoryOption { return func(m *Memory) { m.init = init } }

// MemAttrs sets synthesis attributes.
//
func MemAttrs(attrs map[string]interface{}) MemoryOption {
	return func(m *Memory) {
		for k, v := range attrs {
			m.Attrs[k] = v
		}
	}
}

// NewMemory returns a new memory of depth words of width bits.
//
func NewMemory(width, depth int, opts ...MemoryOption) *Memory {
	if width < 0 {
		raise(TypeError, "Memory width must be a non-negative integer, not %d", width)
	}
	if depth < 0 {
		raise(TypeError, "Memory depth must be a non-negative integer, not %d", depth)
	}
	m := &Memory{
		Name:  "$memory",
		Width: width,
		Depth: depth,
		Attrs: make(map[string]interface{}),
		Loc:   callerLoc(),
		words: NewArray(),
	}
	for _, o := range opts {
		o(m)
	}
	for addr := 0; addr < depth; addr++ {
		w := newSignal(width, &signalConfig{name: m.Name + "(" + strconv.Itoa(addr) + ")"}, m.Loc)
		_ = m.words.Append(w)
	}
	if err := m.SetInit(m.init...); err != nil {
		panic(err)
	}
	return m
}

// SetInit sets the initial contents of the memory. Words past the end of
// init are zero.
//
func (m *Memory) SetInit(init ...int64) error {
	if len(init) > m.Depth {
		return Errorf(ValueError, "Memory initialization value count exceed memory depth (%d > %d)", len(init), m.Depth)
	}
	m.init = append([]int64(nil), init...)
	for addr := 0; addr < m.words.Len(); addr++ {
		w := m.words.Elem(addr).(*Signal)
		w.Reset = 0
		if addr < len(init) {
			w.Reset = Normalize(init[addr], w.shape)
		}
	}
	return nil
}

// Init returns the initial contents of the memory.
//
func (m *Memory) Init() []int64 { return append([]int64(nil), m.init...) }

// Word returns the signal holding the word at addr. Simulation only.
//
func (m *Memory) Word(addr int) *Signal { return m.words.Elem(addr).(*Signal) }

type portConfig struct {
	domain      string
	transparent bool
	granularity int
}

// PortOption configures a memory port.
//
type PortOption func(*portConfig)

// OnDomain sets the domain of a port. The default is "sync".
//
func OnDomain(domain string) PortOption { return func(c *portConfig) { c.domain = domain } }

// NonTransparent makes a read port return the old contents of a word
// written in the same cycle.
//
func NonTransparent() PortOption { return func(c *portConfig) { c.transparent = false } }

// Granularity sets the write granularity of a write port.
//
func Granularity(g int) PortOption { return func(c *portConfig) { c.granularity = g } }

// ReadPort is a memory read port. Comb domain ports are asynchronous;
// others have a latency of one clock cycle.
//
type ReadPort struct {
	Memory      *Memory
	Domain      string
	Transparent bool
	Addr        Value
	Data        Value
	En          Value
}

// ReadPort returns a new read port of the memory.
//
func (m *Memory) ReadPort(opts ...PortOption) *ReadPort {
	cfg := portConfig{domain: "sync", transparent: true}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.domain == CombDomain && !cfg.transparent {
		raise(ValueError, "Read port cannot be simultaneously asynchronous and non-transparent")
	}
	loc := callerLoc()
	p := &ReadPort{
		Memory:      m,
		Domain:      cfg.domain,
		Transparent: cfg.transparent,
		Addr:        newSignal(Range{0, int64(m.Depth)}, &signalConfig{name: m.Name + "_r_addr"}, loc),
		Data:        newSignal(m.Width, &signalConfig{name: m.Name + "_r_data"}, loc),
	}
	if cfg.domain != CombDomain {
		p.En = newSignal(nil, &signalConfig{name: m.Name + "_r_en", reset: 1}, loc)
	} else {
		p.En = newConst(1, Unsigned(1), loc)
	}
	m.readPorts = append(m.readPorts, p)
	return p
}

// Elaborate implements Elaboratable. The first read port elaborates to the
// whole memory.
//
func (p *ReadPort) Elaborate(platform interface{}) (Elaboratable, error) {
	if p == p.Memory.readPorts[0] {
		return p.Memory, nil
	}
	return NewFragment(), nil
}

// WritePort is a memory write port. En has one bit per Granularity bits of
// data.
//
type WritePort struct {
	Memory      *Memory
	Domain      string
	Granularity int
	Addr        Value
	Data        Value
	En          Value
}

// WritePort returns a new write port of the memory.
//
func (m *Memory) WritePort(opts ...PortOption) *WritePort {
	cfg := portConfig{domain: "sync", granularity: m.Width}
	for _, o := range opts {
		o(&cfg)
	}
	g := cfg.granularity
	if g < 0 {
		raise(TypeError, "Write port granularity must be a non-negative integer, not %d", g)
	}
	if g > m.Width {
		raise(ValueError, "Write port granularity must not be greater than memory width (%d > %d)", g, m.Width)
	}
	if g == 0 && m.Width != 0 || g != 0 && m.Width%g != 0 {
		raise(ValueError, "Write port granularity must divide memory width evenly")
	}
	enWidth := 0
	if g != 0 {
		enWidth = m.Width / g
	}
	loc := callerLoc()
	p := &WritePort{
		Memory:      m,
		Domain:      cfg.domain,
		Granularity: g,
		Addr:        newSignal(Range{0, int64(m.Depth)}, &signalConfig{name: m.Name + "_w_addr"}, loc),
		Data:        newSignal(m.Width, &signalConfig{name: m.Name + "_w_data"}, loc),
		En:          newSignal(enWidth, &signalConfig{name: m.Name + "_w_en"}, loc),
	}
	m.writePorts = append(m.writePorts, p)
	return p
}

// Elaborate implements Elaboratable. Without read ports, the first write
// port elaborates to the whole memory.
//
func (p *WritePort) Elaborate(platform interface{}) (Elaboratable, error) {
	if len(p.Memory.readPorts) == 0 && p == p.Memory.writePorts[0] {
		return p.Memory, nil
	}
	return NewFragment(), nil
}

// MemorySpec records the memory and port configuration of a memory
// fragment. Transforms update the port values in the copies they make.
//
type MemorySpec struct {
	Memory *Memory
	Read   []ReadPort
	Write  []WritePort
}

func (s *MemorySpec) clone() *MemorySpec {
	return &MemorySpec{
		Memory: s.Memory,
		Read:   append([]ReadPort(nil), s.Read...),
		Write:  append([]WritePort(nil), s.Write...),
	}
}

// Elaborate implements Elaboratable.
//
func (m *Memory) Elaborate(platform interface{}) (Elaboratable, error) {
	f := NewFragment()
	spec := &MemorySpec{Memory: m}
	for k, v := range m.Attrs {
		f.Attrs[k] = v
	}
	for _, p := range m.readPorts {
		spec.Read = append(spec.Read, *p)
		if p.Domain == CombDomain {
			f.AddStatements(newAssign(p.Data, m.words.Index(p.Addr), m.Loc))
			f.AddDriver(p.Data, CombDomain)
			continue
		}
		data := m.words.Index(p.Addr)
		for _, w := range m.writePorts {
			if p.Domain != w.Domain || !p.Transparent {
				continue
			}
			if Len(w.En) > 1 {
				parts := make([]interface{}, 0, Len(w.En))
				for i := 0; i < Len(w.En); i++ {
					lo, hi := i*w.Granularity, (i+1)*w.Granularity
					cond := And(Bit(w.En, i), Eq(p.Addr, w.Addr))
					parts = append(parts, Mux(cond, Slc(w.Data, lo, hi), Slc(data, lo, hi)))
				}
				data = Concat(parts...)
			} else {
				cond := And(w.En, Eq(p.Addr, w.Addr))
				data = Mux(cond, w.Data, data)
			}
		}
		f.AddStatements(NewSwitch(p.En, On([]interface{}{1}, newAssign(p.Data, data, m.Loc))))
		f.AddDriver(p.Data, p.Domain)
	}
	for _, p := range m.writePorts {
		spec.Write = append(spec.Write, *p)
		if Len(p.En) > 1 {
			for i := 0; i < Len(p.En); i++ {
				lo, hi := i*p.Granularity, (i+1)*p.Granularity
				wr := newAssign(Slc(m.words.Index(p.Addr), lo, hi), Slc(p.Data, lo, hi), m.Loc)
				f.AddStatements(NewSwitch(Bit(p.En, i), On([]interface{}{1}, wr)))
			}
		} else {
			wr := newAssign(m.words.Index(p.Addr), p.Data, m.Loc)
			f.AddStatements(NewSwitch(p.En, On([]interface{}{1}, wr)))
		}
		for _, w := range m.words.Elems() {
			f.AddDriver(w, p.Domain)
		}
	}
	f.Memory = spec
	return f, nil
}
