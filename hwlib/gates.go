// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

// Package hwlib provides a library of basic components built with rtl:
// logic gates, multiplexers, adders, registers and counters.
//
// Components are structs whose exported *rtl.Signal fields are tagged as
// ports, see rtl.PortsOf. Use Prepare to prepare a component with its
// ports.
//
package hwlib

import "github.com/db47h/rtl"

const (
	pA   = "a"
	pB   = "b"
	pIn  = "in"
	pOut = "out"
	pSel = "sel"
)

func port(width int, name string) *rtl.Signal {
	return rtl.NewSignal(width, rtl.Name(name))
}

// GateOp identifies the function of a Gate.
//
type GateOp int

// Gate functions.
//
const (
	OpNot GateOp = iota
	OpAnd
	OpNand
	OpOr
	OpNor
	OpXor
	OpXnor
)

var opNames = [...]string{"NOT", "AND", "NAND", "OR", "NOR", "XOR", "XNOR"}

func (op GateOp) String() string { return opNames[op] }

// Gate is a bitwise logic gate. B is nil for NOT gates.
//
//	Inputs: a[width], b[width]
//	Outputs: out[width]
//	Function: out = a op b
//
type Gate struct {
	A   *rtl.Signal `rtl:"in"`
	B   *rtl.Signal `rtl:"in"`
	Out *rtl.Signal `rtl:"out"`
	Op  GateOp
}

// NewGate returns a new gate of the given width.
//
func NewGate(op GateOp, width int) *Gate {
	g := &Gate{A: port(width, pA), Out: port(width, pOut), Op: op}
	if op != OpNot {
		g.B = port(width, pB)
	}
	return g
}

// Not returns a NOT gate.
//
func Not(width int) *Gate { return NewGate(OpNot, width) }

// And returns an AND gate.
//
func And(width int) *Gate { return NewGate(OpAnd, width) }

// Nand returns a NAND gate.
//
func Nand(width int) *Gate { return NewGate(OpNand, width) }

// Or returns an OR gate.
//
func Or(width int) *Gate { return NewGate(OpOr, width) }

// Nor returns a NOR gate.
//
func Nor(width int) *Gate { return NewGate(OpNor, width) }

// Xor returns a XOR gate.
//
func Xor(width int) *Gate { return NewGate(OpXor, width) }

// Xnor returns a XNOR gate.
//
func Xnor(width int) *Gate { return NewGate(OpXnor, width) }

// Elaborate implements rtl.Elaboratable.
//
func (g *Gate) Elaborate(platform interface{}) (rtl.Elaboratable, error) {
	var v rtl.Value
	switch g.Op {
	case OpNot:
		v = rtl.Not(g.A)
	case OpAnd:
		v = rtl.And(g.A, g.B)
	case OpNand:
		v = rtl.Not(rtl.And(g.A, g.B))
	case OpOr:
		v = rtl.Or(g.A, g.B)
	case OpNor:
		v = rtl.Not(rtl.Or(g.A, g.B))
	case OpXor:
		v = rtl.Xor(g.A, g.B)
	case OpXnor:
		v = rtl.Not(rtl.Xor(g.A, g.B))
	default:
		return nil, rtl.Errorf(rtl.ValueError, "unknown gate function %d", int(g.Op))
	}
	m := rtl.NewModule()
	m.Comb(rtl.NewAssign(g.Out, v))
	return m, nil
}

// Reduce is a multi-way gate that reduces all bits of its input.
//
//	Inputs: in[width]
//	Outputs: out
//	Function: out = in[0] op in[1] op ... in[width-1]
//
type Reduce struct {
	In  *rtl.Signal `rtl:"in"`
	Out *rtl.Signal `rtl:"out"`
	Op  GateOp
}

// AndNWay returns a multi-way AND gate.
//
func AndNWay(width int) *Reduce { return &Reduce{port(width, pIn), port(1, pOut), OpAnd} }

// OrNWay returns a multi-way OR gate.
//
func OrNWay(width int) *Reduce { return &Reduce{port(width, pIn), port(1, pOut), OpOr} }

// XorNWay returns a parity gate.
//
func XorNWay(width int) *Reduce { return &Reduce{port(width, pIn), port(1, pOut), OpXor} }

// Elaborate implements rtl.Elaboratable.
//
func (r *Reduce) Elaborate(platform interface{}) (rtl.Elaboratable, error) {
	var v rtl.Value
	switch r.Op {
	case OpAnd:
		v = rtl.All(r.In)
	case OpOr:
		v = rtl.Any(r.In)
	case OpXor:
		v = rtl.Parity(r.In)
	default:
		return nil, rtl.Errorf(rtl.ValueError, "%v cannot be used as a reduction", r.Op)
	}
	m := rtl.NewModule()
	m.Comb(rtl.NewAssign(r.Out, v))
	return m, nil
}
