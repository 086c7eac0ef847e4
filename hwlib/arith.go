// Copyright 2018 Denis Bernard <db47h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package hwlib

import "github.com/db47h/rtl"

// HalfAdder is a half adder.
//
//	Inputs: a, b
//	Outputs: s, c
//	Function: s = lsb(a + b)
//	          c = msb(a + b)
//
type HalfAdder struct {
	A *rtl.Signal `rtl:"in"`
	B *rtl.Signal `rtl:"in"`
	S *rtl.Signal `rtl:"out"`
	C *rtl.Signal `rtl:"out"`
}

// NewHalfAdder returns a new half adder.
//
func NewHalfAdder() *HalfAdder {
	return &HalfAdder{port(1, pA), port(1, pB), port(1, "s"), port(1, "c")}
}

// Elaborate implements rtl.Elaboratable.
//
func (h *HalfAdder) Elaborate(platform interface{}) (rtl.Elaboratable, error) {
	m := rtl.NewModule()
	m.Comb(
		rtl.NewAssign(h.S, rtl.Xor(h.A, h.B)),
		rtl.NewAssign(h.C, rtl.And(h.A, h.B)),
	)
	return m, nil
}

// FullAdder is a 3 bits adder.
//
//	Inputs: a, b, cin
//	Outputs: s, cout
//	Function: s = lsb(a + b + cin)
//	          cout = msb(a + b + cin)
//
type FullAdder struct {
	A    *rtl.Signal `rtl:"in"`
	B    *rtl.Signal `rtl:"in"`
	Cin  *rtl.Signal `rtl:"in"`
	S    *rtl.Signal `rtl:"out"`
	Cout *rtl.Signal `rtl:"out"`
}

// NewFullAdder returns a new full adder.
//
func NewFullAdder() *FullAdder {
	return &FullAdder{port(1, pA), port(1, pB), port(1, "cin"), port(1, "s"), port(1, "cout")}
}

// Elaborate implements rtl.Elaboratable. The full adder is built from two
// half adders.
//
func (a *FullAdder) Elaborate(platform interface{}) (rtl.Elaboratable, error) {
	m := rtl.NewModule()
	h0, h1 := NewHalfAdder(), NewHalfAdder()
	m.Submodule("h0", h0)
	m.Submodule("h1", h1)
	m.Comb(
		rtl.NewAssign(h0.A, a.A),
		rtl.NewAssign(h0.B, a.B),
		rtl.NewAssign(h1.A, h0.S),
		rtl.NewAssign(h1.B, a.Cin),
		rtl.NewAssign(a.S, h1.S),
		rtl.NewAssign(a.Cout, rtl.Or(h0.C, h1.C)),
	)
	return m, nil
}

// Adder is an N-bits adder.
//
//	Inputs: a[width], b[width]
//	Outputs: out[width], c
//
type Adder struct {
	A   *rtl.Signal `rtl:"in"`
	B   *rtl.Signal `rtl:"in"`
	Out *rtl.Signal `rtl:"out"`
	C   *rtl.Signal `rtl:"out"`
}

// NewAdder returns a new N-bits adder.
//
func NewAdder(width int) *Adder {
	return &Adder{port(width, pA), port(width, pB), port(width, pOut), port(1, "c")}
}

// Elaborate implements rtl.Elaboratable.
//
func (a *Adder) Elaborate(platform interface{}) (rtl.Elaboratable, error) {
	m := rtl.NewModule()
	m.Comb(rtl.NewAssign(rtl.Concat(a.Out, a.C), rtl.Add(a.A, a.B)))
	return m, nil
}

// ALU is the arithmetic logic unit of the Hack computer.
//
//	Inputs: x[width], y[width], zx, nx, zy, ny, f, no
//	Outputs: out[width], zr, ng
//	Function: if zx { x = 0 }
//	          if nx { x = ^x }
//	          if zy { y = 0 }
//	          if ny { y = ^y }
//	          if f { out = x + y } else { out = x & y }
//	          if no { out = ^out }
//	          zr = out == 0
//	          ng = out < 0
//
type ALU struct {
	X   *rtl.Signal `rtl:"in"`
	Y   *rtl.Signal `rtl:"in"`
	Zx  *rtl.Signal `rtl:"in"`
	Nx  *rtl.Signal `rtl:"in"`
	Zy  *rtl.Signal `rtl:"in"`
	Ny  *rtl.Signal `rtl:"in"`
	F   *rtl.Signal `rtl:"in"`
	No  *rtl.Signal `rtl:"in"`
	Out *rtl.Signal `rtl:"out"`
	Zr  *rtl.Signal `rtl:"out"`
	Ng  *rtl.Signal `rtl:"out"`
}

// NewALU returns a new ALU.
//
func NewALU(width int) *ALU {
	return &ALU{
		X: port(width, "x"), Y: port(width, "y"),
		Zx: port(1, "zx"), Nx: port(1, "nx"), Zy: port(1, "zy"), Ny: port(1, "ny"),
		F: port(1, "f"), No: port(1, "no"),
		Out: port(width, pOut), Zr: port(1, "zr"), Ng: port(1, "ng"),
	}
}

// Elaborate implements rtl.Elaboratable.
//
func (a *ALU) Elaborate(platform interface{}) (rtl.Elaboratable, error) {
	m := rtl.NewModule()
	width := rtl.Len(a.X)
	x := rtl.NewSignal(width, rtl.Name("x_in"))
	y := rtl.NewSignal(width, rtl.Name("y_in"))
	o := rtl.NewSignal(width, rtl.Name("f_out"))

	operand := func(dst, src, z, n *rtl.Signal) {
		m.If(z, func() {
			m.Comb(rtl.NewAssign(dst, rtl.Mux(n, rtl.NewConst(-1, rtl.Unsigned(width)), 0)))
		})
		m.Else(func() {
			m.Comb(rtl.NewAssign(dst, rtl.Mux(n, rtl.Not(src), src)))
		})
	}
	operand(x, a.X, a.Zx, a.Nx)
	operand(y, a.Y, a.Zy, a.Ny)

	m.If(a.F, func() {
		m.Comb(rtl.NewAssign(o, rtl.Add(x, y)))
	})
	m.Else(func() {
		m.Comb(rtl.NewAssign(o, rtl.And(x, y)))
	})
	m.Comb(
		rtl.NewAssign(a.Out, rtl.Mux(a.No, rtl.Not(o), o)),
		rtl.NewAssign(a.Zr, rtl.Eq(a.Out, 0)),
		rtl.NewAssign(a.Ng, rtl.Bit(a.Out, -1)),
	)
	return m, nil
}
