// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package sim

import (
	"math/big"
	"math/bits"

	"github.com/db47h/rtl"
	"github.com/pkg/errors"
)

// maxWidth is the widest value the simulator handles, intermediate results
// included.
const maxWidth = 64

type evalFn func() int64

type lhsFn func(v int64)

// compiler turns values and statements into closures over the simulation
// state. RHS values read committed values. The read part of partial LHS
// updates reads the routine frame, which holds the pending values of the
// routine outputs.
type compiler struct {
	st     *state
	inputs *rtl.SignalSet // nil if inputs are not tracked
	locals map[*slot]int
	frame  []int64
}

func checkWidth(v rtl.Value) error {
	if w := rtl.Len(v); w > maxWidth {
		src := v.SrcLoc().String()
		if src == "" {
			src = "unknown location"
		}
		return rtl.Errorf(rtl.OverflowError, "Value defined at %s is %d bits wide, which is unlikely to simulate in reasonable time", src, w)
	}
	return nil
}

func mask(width int) int64 {
	if width >= 64 {
		return -1
	}
	return 1<<uint(width) - 1
}

// isU64 reports whether values of shape s may not be represented as a
// positive int64.
func isU64(s rtl.Shape) bool { return !s.Signed && s.Width >= 64 }

func (c *compiler) signed(v rtl.Value, next bool) (evalFn, error) {
	f, err := c.rhs(v, next)
	if err != nil {
		return nil, err
	}
	s := v.Shape()
	return func() int64 { return rtl.Normalize(f(), s) }, nil
}

func (c *compiler) masked(v rtl.Value, next bool) (evalFn, error) {
	f, err := c.rhs(v, next)
	if err != nil {
		return nil, err
	}
	m := mask(rtl.Len(v))
	return func() int64 { return f() & m }, nil
}

// rhs compiles v. With next set, signals that are outputs of the routine
// read their pending value.
func (c *compiler) rhs(v rtl.Value, next bool) (evalFn, error) {
	if err := checkWidth(v); err != nil {
		return nil, err
	}
	switch v := v.(type) {
	case *rtl.Const:
		k := v.Value
		return func() int64 { return k }, nil
	case *rtl.Signal:
		s := c.st.slot(v)
		if next {
			if i, ok := c.locals[s]; ok {
				fr := c.frame
				return func() int64 { return fr[i] }, nil
			}
			return func() int64 { return s.next }, nil
		}
		if c.inputs != nil {
			c.inputs.Add(v)
		}
		return func() int64 { return s.curr }, nil
	case *rtl.Operator:
		return c.operator(v, next)
	case *rtl.Slice:
		f, err := c.rhs(v.Value, next)
		if err != nil {
			return nil, err
		}
		m, start := mask(rtl.Len(v)), uint(v.Start)
		return func() int64 { return f() >> start & m }, nil
	case *rtl.Part:
		f, err := c.rhs(v.Value, next)
		if err != nil {
			return nil, err
		}
		off, err := c.masked(v.Offset, false)
		if err != nil {
			return nil, err
		}
		m, stride := mask(v.Width), int64(v.Stride)
		return func() int64 { return f() >> uint64(stride*off()) & m }, nil
	case *rtl.Cat:
		type part struct {
			f   evalFn
			m   int64
			off uint
		}
		var parts []part
		off := 0
		for _, p := range v.Parts {
			f, err := c.rhs(p, next)
			if err != nil {
				return nil, err
			}
			parts = append(parts, part{f, mask(rtl.Len(p)), uint(off)})
			off += rtl.Len(p)
		}
		return func() int64 {
			var r int64
			for _, p := range parts {
				r |= p.f() & p.m << p.off
			}
			return r
		}, nil
	case *rtl.ArrayProxy:
		if len(v.Elems) == 0 {
			return func() int64 { return 0 }, nil
		}
		idx, err := c.masked(v.Index, false)
		if err != nil {
			return nil, err
		}
		elems := make([]evalFn, len(v.Elems))
		for i, e := range v.Elems {
			if elems[i], err = c.rhs(e, next); err != nil {
				return nil, err
			}
		}
		return func() int64 {
			i := idx()
			if i < 0 || i >= int64(len(elems)) {
				i = int64(len(elems) - 1)
			}
			return elems[i]()
		}, nil
	}
	return nil, rtl.Errorf(rtl.TypeError, "Value %v cannot be simulated", v)
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// cmp compares a and b. au and bu flag unsigned 64 bit operands.
func cmp(a int64, au bool, b int64, bu bool) int {
	ha, hb := au && a < 0, bu && b < 0
	switch {
	case ha && hb:
		ua, ub := uint64(a), uint64(b)
		if ua < ub {
			return -1
		} else if ua > ub {
			return 1
		}
		return 0
	case ha:
		return 1
	case hb:
		return -1
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func bigOf(v int64, u bool) *big.Int {
	if u {
		return new(big.Int).SetUint64(uint64(v))
	}
	return big.NewInt(v)
}

func bigInt64(b *big.Int) int64 {
	if b.IsInt64() {
		return b.Int64()
	}
	return int64(b.Uint64())
}

// floorDivMod returns the floor division and modulo of a by b. Division by
// zero yields zero.
func floorDivMod(a int64, au bool, b int64, bu bool) (q, m int64) {
	if b == 0 {
		return 0, 0
	}
	if (au && a < 0) || (bu && b < 0) {
		x, y := bigOf(a, au), bigOf(b, bu)
		bq, bm := new(big.Int).QuoRem(x, y, new(big.Int))
		if bm.Sign() != 0 && (bm.Sign() < 0) != (y.Sign() < 0) {
			bq.Sub(bq, big.NewInt(1))
			bm.Add(bm, y)
		}
		return bigInt64(bq), bigInt64(bm)
	}
	q, m = a/b, a%b
	if m != 0 && (m < 0) != (b < 0) {
		q--
		m += b
	}
	return q, m
}

func (c *compiler) operator(v *rtl.Operator, next bool) (evalFn, error) {
	ops := make([]evalFn, len(v.Operands))
	for i, o := range v.Operands {
		var err error
		if ops[i], err = c.signed(o, next); err != nil {
			return nil, err
		}
	}
	switch len(ops) {
	case 1:
		a := ops[0]
		m := mask(rtl.Len(v.Operands[0]))
		switch v.Op {
		case "~":
			return func() int64 { return ^(a() & m) }, nil
		case "-":
			return func() int64 { return -a() }, nil
		case "b", "r|":
			return func() int64 { return boolToInt(a()&m != 0) }, nil
		case "r&":
			return func() int64 { return boolToInt(a()&m == m) }, nil
		case "r^":
			return func() int64 { return int64(bits.OnesCount64(uint64(a()&m)) & 1) }, nil
		case "u", "s", "+":
			return a, nil
		}
	case 2:
		a, b := ops[0], ops[1]
		au, bu := isU64(v.Operands[0].Shape()), isU64(v.Operands[1].Shape())
		switch v.Op {
		case "+":
			return func() int64 { return a() + b() }, nil
		case "-":
			return func() int64 { return a() - b() }, nil
		case "*":
			return func() int64 { return a() * b() }, nil
		case "//":
			return func() int64 { q, _ := floorDivMod(a(), au, b(), bu); return q }, nil
		case "%":
			return func() int64 { _, m := floorDivMod(a(), au, b(), bu); return m }, nil
		case "&":
			return func() int64 { return a() & b() }, nil
		case "|":
			return func() int64 { return a() | b() }, nil
		case "^":
			return func() int64 { return a() ^ b() }, nil
		case "<<":
			return func() int64 { return a() << uint64(b()) }, nil
		case ">>":
			if au {
				return func() int64 { return int64(uint64(a()) >> uint64(b())) }, nil
			}
			return func() int64 { return a() >> uint64(b()) }, nil
		case "==":
			return func() int64 { return boolToInt(cmp(a(), au, b(), bu) == 0) }, nil
		case "!=":
			return func() int64 { return boolToInt(cmp(a(), au, b(), bu) != 0) }, nil
		case "<":
			return func() int64 { return boolToInt(cmp(a(), au, b(), bu) < 0) }, nil
		case "<=":
			return func() int64 { return boolToInt(cmp(a(), au, b(), bu) <= 0) }, nil
		case ">":
			return func() int64 { return boolToInt(cmp(a(), au, b(), bu) > 0) }, nil
		case ">=":
			return func() int64 { return boolToInt(cmp(a(), au, b(), bu) >= 0) }, nil
		}
	case 3:
		if v.Op == "m" {
			sel, v1, v0 := ops[0], ops[1], ops[2]
			m := mask(rtl.Len(v.Operands[0]))
			return func() int64 {
				if sel()&m != 0 {
					return v1()
				}
				return v0()
			}, nil
		}
	}
	return nil, rtl.Errorf(rtl.TypeError, "Operator '%s' not implemented", v.Op)
}

// lhs compiles an assignment target. The returned function stores a value
// into the routine frame.
func (c *compiler) lhs(v rtl.Value) (lhsFn, error) {
	if err := checkWidth(v); err != nil {
		return nil, err
	}
	switch v := v.(type) {
	case *rtl.Signal:
		s := c.st.slot(v)
		i, ok := c.locals[s]
		if !ok {
			return nil, errors.Errorf("signal %v is not an output of the routine", v)
		}
		fr, sh := c.frame, v.Shape()
		return func(x int64) { fr[i] = rtl.Normalize(x, sh) }, nil
	case *rtl.Operator:
		if v.Op == "u" || v.Op == "s" {
			return c.lhs(v.Operands[0])
		}
	case *rtl.Slice:
		inner, err := c.lhs(v.Value)
		if err != nil {
			return nil, err
		}
		cur, err := c.rhs(v.Value, true)
		if err != nil {
			return nil, err
		}
		m, start := mask(v.Stop-v.Start), uint(v.Start)
		return func(x int64) { inner(cur()&^(m<<start) | (x&m)<<start) }, nil
	case *rtl.Part:
		inner, err := c.lhs(v.Value)
		if err != nil {
			return nil, err
		}
		cur, err := c.rhs(v.Value, true)
		if err != nil {
			return nil, err
		}
		off, err := c.masked(v.Offset, false)
		if err != nil {
			return nil, err
		}
		m, stride := mask(v.Width), int64(v.Stride)
		return func(x int64) {
			o := uint64(stride * off())
			inner(cur()&^(m<<o) | (x&m)<<o)
		}, nil
	case *rtl.Cat:
		type part struct {
			f   lhsFn
			m   int64
			off uint
		}
		var parts []part
		off := 0
		for _, p := range v.Parts {
			f, err := c.lhs(p)
			if err != nil {
				return nil, err
			}
			parts = append(parts, part{f, mask(rtl.Len(p)), uint(off)})
			off += rtl.Len(p)
		}
		return func(x int64) {
			for _, p := range parts {
				p.f(x >> p.off & p.m)
			}
		}, nil
	case *rtl.ArrayProxy:
		if len(v.Elems) == 0 {
			return func(int64) {}, nil
		}
		idx, err := c.masked(v.Index, false)
		if err != nil {
			return nil, err
		}
		elems := make([]lhsFn, len(v.Elems))
		for i, e := range v.Elems {
			if elems[i], err = c.lhs(e); err != nil {
				return nil, err
			}
		}
		return func(x int64) {
			i := idx()
			if i < 0 || i >= int64(len(elems)) {
				i = int64(len(elems) - 1)
			}
			elems[i](x)
		}, nil
	}
	return nil, rtl.Errorf(rtl.TypeError, "Value %v cannot be assigned to", v)
}

func (c *compiler) statements(stmts []rtl.Statement) (func(), error) {
	fs := make([]func(), 0, len(stmts))
	for _, s := range stmts {
		f, err := c.statement(s)
		if err != nil {
			return nil, err
		}
		fs = append(fs, f)
	}
	switch len(fs) {
	case 0:
		return func() {}, nil
	case 1:
		return fs[0], nil
	}
	return func() {
		for _, f := range fs {
			f()
		}
	}, nil
}

type switchCase struct {
	masks  []int64
	values []int64
	body   func()
}

func (sc *switchCase) match(t int64) bool {
	if sc.masks == nil {
		return true
	}
	for i, m := range sc.masks {
		if t&m == sc.values[i] {
			return true
		}
	}
	return false
}

func parsePattern(p string) (m, v int64) {
	for _, r := range p {
		m <<= 1
		v <<= 1
		switch r {
		case '0':
			m |= 1
		case '1':
			m |= 1
			v |= 1
		}
	}
	return m, v
}

func (c *compiler) statement(s rtl.Statement) (func(), error) {
	switch s := s.(type) {
	case *rtl.Assign:
		rhs, err := c.signed(s.RHS, false)
		if err != nil {
			return nil, err
		}
		lhs, err := c.lhs(s.LHS)
		if err != nil {
			return nil, err
		}
		return func() { lhs(rhs()) }, nil
	case *rtl.Switch:
		test, err := c.masked(s.Test, false)
		if err != nil {
			return nil, err
		}
		cases := make([]switchCase, 0, len(s.Cases))
		for _, sc := range s.Cases {
			body, err := c.statements(sc.Body)
			if err != nil {
				return nil, err
			}
			cs := switchCase{body: body}
			if len(sc.Patterns) > 0 {
				for _, p := range sc.Patterns {
					m, v := parsePattern(p)
					cs.masks = append(cs.masks, m)
					cs.values = append(cs.values, v)
				}
			}
			cases = append(cases, cs)
		}
		return func() {
			t := test()
			for i := range cases {
				if cases[i].match(t) {
					cases[i].body()
					return
				}
			}
		}, nil
	case *rtl.Property:
		test, err := c.masked(s.Test, false)
		if err != nil {
			return nil, err
		}
		check, err := c.lhs(s.Check)
		if err != nil {
			return nil, err
		}
		en, err := c.lhs(s.Enable)
		if err != nil {
			return nil, err
		}
		return func() {
			check(boolToInt(test() != 0))
			en(1)
		}, nil
	}
	return nil, rtl.Errorf(rtl.TypeError, "Statement %v cannot be simulated", s)
}

// routine is a compiled group of statements. run computes the pending
// values of outputs.
type routine struct {
	outputs []*slot
	frame   []int64
	body    func()
	comb    bool
}

func (r *routine) run() {
	for i, s := range r.outputs {
		if r.comb {
			r.frame[i] = s.sig.Reset
		} else {
			r.frame[i] = s.next
		}
	}
	r.body()
	for i, s := range r.outputs {
		s.set(r.frame[i])
	}
}

// compileRoutine compiles stmts into a routine driving outputs and every
// other signal assigned by stmts. If inputs is not nil, it receives the
// signals read by the routine.
func compileRoutine(st *state, outputs *rtl.SignalSet, stmts []rtl.Statement, comb bool, inputs *rtl.SignalSet) (*routine, error) {
	outs := outputs.Union(rtl.StatementsLHS(stmts))
	r := &routine{comb: comb}
	c := &compiler{st: st, inputs: inputs, locals: make(map[*slot]int)}
	for _, sig := range outs.Signals() {
		s := st.slot(sig)
		c.locals[s] = len(r.outputs)
		r.outputs = append(r.outputs, s)
	}
	r.frame = make([]int64, len(r.outputs))
	c.frame = r.frame
	body, err := c.statements(stmts)
	if err != nil {
		return nil, err
	}
	r.body = body
	return r, nil
}

// evalValue compiles v for a one-shot evaluation against committed values.
func evalValue(st *state, v rtl.Value) (int64, error) {
	c := &compiler{st: st}
	f, err := c.rhs(v, false)
	if err != nil {
		return 0, err
	}
	return rtl.Normalize(f(), v.Shape()), nil
}
