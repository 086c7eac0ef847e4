// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package hwlib

import "github.com/db47h/rtl"

// DFF is a data flip flop clocked by the "sync" domain.
//
//	Inputs: in
//	Outputs: out
//	Function: out(t) = in(t-1) // where t is the current clock cycle.
//
type DFF struct {
	In  *rtl.Signal `rtl:"in"`
	Out *rtl.Signal `rtl:"out"`
}

// NewDFF returns a new flip flop.
//
func NewDFF() *DFF { return &DFF{port(1, pIn), port(1, pOut)} }

// Elaborate implements rtl.Elaboratable.
//
func (d *DFF) Elaborate(platform interface{}) (rtl.Elaboratable, error) {
	m := rtl.NewModule()
	m.Sync(rtl.NewAssign(d.Out, d.In))
	return m, nil
}

// Register is an N-bits register.
//
//	Inputs: in[width], load
//	Outputs: out[width]
//	Function: if load(t-1) { out(t) = in(t-1) } else { out(t) = out(t-1) }
//
type Register struct {
	In   *rtl.Signal `rtl:"in"`
	Load *rtl.Signal `rtl:"in"`
	Out  *rtl.Signal `rtl:"out"`
}

// NewRegister returns a new register.
//
func NewRegister(width int) *Register {
	return &Register{port(width, pIn), port(1, "load"), port(width, pOut)}
}

// Elaborate implements rtl.Elaboratable.
//
func (r *Register) Elaborate(platform interface{}) (rtl.Elaboratable, error) {
	m := rtl.NewModule()
	m.If(r.Load, func() {
		m.Sync(rtl.NewAssign(r.Out, r.In))
	})
	return m, nil
}

// Counter is a loadable N-bits counter, similar to a program counter.
//
//	Inputs: in[width], inc, load, clr
//	Outputs: out[width]
//	Function: if clr(t-1) { out(t) = 0 }
//	          else if load(t-1) { out(t) = in(t-1) }
//	          else if inc(t-1) { out(t) = out(t-1) + 1 }
//	          else { out(t) = out(t-1) }
//
type Counter struct {
	In   *rtl.Signal `rtl:"in"`
	Inc  *rtl.Signal `rtl:"in"`
	Load *rtl.Signal `rtl:"in"`
	Clr  *rtl.Signal `rtl:"in"`
	Out  *rtl.Signal `rtl:"out"`
}

// NewCounter returns a new counter.
//
func NewCounter(width int) *Counter {
	return &Counter{port(width, pIn), port(1, "inc"), port(1, "load"), port(1, "clr"), port(width, pOut)}
}

// Elaborate implements rtl.Elaboratable.
//
func (c *Counter) Elaborate(platform interface{}) (rtl.Elaboratable, error) {
	m := rtl.NewModule()
	m.If(c.Clr, func() {
		m.Sync(rtl.NewAssign(c.Out, 0))
	})
	m.Elif(c.Load, func() {
		m.Sync(rtl.NewAssign(c.Out, c.In))
	})
	m.Elif(c.Inc, func() {
		m.Sync(rtl.Inc(c.Out, 1))
	})
	return m, nil
}

// Detector asserts Match for one cycle after the bits of Pattern have been
// received on In, most significant bit first. Overlapping occurrences are
// detected.
//
//	Inputs: in
//	Outputs: match
//
type Detector struct {
	In    *rtl.Signal `rtl:"in"`
	Match *rtl.Signal `rtl:"out"`

	Pattern string
	fsm     *rtl.FSM
}

// NewDetector returns a new sequence detector for pattern, a string of '0'
// and '1'.
//
func NewDetector(pattern string) *Detector {
	return &Detector{In: port(1, pIn), Match: port(1, "match"), Pattern: pattern}
}

// FSM returns the state machine of the detector once it has been
// elaborated.
//
func (d *Detector) FSM() *rtl.FSM { return d.fsm }

func stateName(prefix string) string { return "seen_" + prefix }

// next returns the longest suffix of s that is a proper prefix of pattern.
func next(pattern, s string) string {
	for len(s) > 0 {
		if len(s) < len(pattern) && pattern[:len(s)] == s {
			return s
		}
		s = s[1:]
	}
	return ""
}

// Elaborate implements rtl.Elaboratable.
//
func (d *Detector) Elaborate(platform interface{}) (rtl.Elaboratable, error) {
	for _, b := range d.Pattern {
		if b != '0' && b != '1' {
			return nil, rtl.Errorf(rtl.ValueError, "invalid pattern %q", d.Pattern)
		}
	}
	if len(d.Pattern) == 0 {
		return nil, rtl.Errorf(rtl.ValueError, "empty pattern")
	}
	m := rtl.NewModule()
	m.Sync(rtl.NewAssign(d.Match, 0))
	d.fsm = m.FSM(func(fsm *rtl.FSM) {
		for i := 0; i < len(d.Pattern); i++ {
			prefix := d.Pattern[:i]
			m.State(stateName(prefix), func() {
				m.If(d.In, func() {
					s := prefix + "1"
					if s == d.Pattern {
						m.Sync(rtl.NewAssign(d.Match, 1))
					}
					m.Next(stateName(next(d.Pattern, s)))
				})
				m.Else(func() {
					s := prefix + "0"
					if s == d.Pattern {
						m.Sync(rtl.NewAssign(d.Match, 1))
					}
					m.Next(stateName(next(d.Pattern, s)))
				})
			})
		}
	}, rtl.FSMName("detector"))
	return m, nil
}
