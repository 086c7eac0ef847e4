// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package hwlib

import (
	"math/bits"
	"strconv"

	"github.com/db47h/rtl"
)

// Mux is a 2-way multiplexer.
//
//	Inputs: a[width], b[width], sel
//	Outputs: out[width]
//	Function: if sel == 0 { out = a } else { out = b }
//
type Mux struct {
	A   *rtl.Signal `rtl:"in"`
	B   *rtl.Signal `rtl:"in"`
	Sel *rtl.Signal `rtl:"in"`
	Out *rtl.Signal `rtl:"out"`
}

// NewMux returns a new multiplexer.
//
func NewMux(width int) *Mux {
	return &Mux{port(width, pA), port(width, pB), port(1, pSel), port(width, pOut)}
}

// Elaborate implements rtl.Elaboratable.
//
func (x *Mux) Elaborate(platform interface{}) (rtl.Elaboratable, error) {
	m := rtl.NewModule()
	m.Comb(rtl.NewAssign(x.Out, rtl.Mux(x.Sel, x.B, x.A)))
	return m, nil
}

// DMux is a 2-way demultiplexer.
//
//	Inputs: in[width], sel
//	Outputs: a[width], b[width]
//	Function: if sel == 0 { a = in; b = 0 } else { a = 0; b = in }
//
type DMux struct {
	In  *rtl.Signal `rtl:"in"`
	Sel *rtl.Signal `rtl:"in"`
	A   *rtl.Signal `rtl:"out"`
	B   *rtl.Signal `rtl:"out"`
}

// NewDMux returns a new demultiplexer.
//
func NewDMux(width int) *DMux {
	return &DMux{port(width, pIn), port(1, pSel), port(width, pA), port(width, pB)}
}

// Elaborate implements rtl.Elaboratable.
//
func (x *DMux) Elaborate(platform interface{}) (rtl.Elaboratable, error) {
	m := rtl.NewModule()
	m.If(x.Sel, func() {
		m.Comb(rtl.NewAssign(x.B, x.In))
	})
	m.Else(func() {
		m.Comb(rtl.NewAssign(x.A, x.In))
	})
	return m, nil
}

func selWidth(ways int) int {
	if ways <= 1 {
		return 1
	}
	return bits.Len(uint(ways - 1))
}

// MuxN is an N-way multiplexer. Out is 0 if sel is out of range.
//
//	Inputs: in[ways][width], sel
//	Outputs: out[width]
//	Function: out = in[sel]
//
type MuxN struct {
	In  []*rtl.Signal `rtl:"in"`
	Sel *rtl.Signal   `rtl:"in"`
	Out *rtl.Signal   `rtl:"out"`
}

// NewMuxN returns a new N-way multiplexer.
//
func NewMuxN(ways, width int) *MuxN {
	x := &MuxN{Sel: port(selWidth(ways), pSel), Out: port(width, pOut)}
	for i := 0; i < ways; i++ {
		x.In = append(x.In, port(width, pIn+strconv.Itoa(i)))
	}
	return x
}

// Elaborate implements rtl.Elaboratable.
//
func (x *MuxN) Elaborate(platform interface{}) (rtl.Elaboratable, error) {
	m := rtl.NewModule()
	m.Switch(x.Sel, func() {
		for i, in := range x.In {
			in := in
			m.Case(i)(func() {
				m.Comb(rtl.NewAssign(x.Out, in))
			})
		}
	})
	return m, nil
}

// DMuxN is an N-way demultiplexer.
//
//	Inputs: in[width], sel
//	Outputs: out[ways][width]
//	Function: out[sel] = in, other outputs are 0
//
type DMuxN struct {
	In  *rtl.Signal   `rtl:"in"`
	Sel *rtl.Signal   `rtl:"in"`
	Out []*rtl.Signal `rtl:"out"`
}

// NewDMuxN returns a new N-way demultiplexer.
//
func NewDMuxN(ways, width int) *DMuxN {
	x := &DMuxN{In: port(width, pIn), Sel: port(selWidth(ways), pSel)}
	for i := 0; i < ways; i++ {
		x.Out = append(x.Out, port(width, pOut+strconv.Itoa(i)))
	}
	return x
}

// Elaborate implements rtl.Elaboratable.
//
func (x *DMuxN) Elaborate(platform interface{}) (rtl.Elaboratable, error) {
	m := rtl.NewModule()
	for i, o := range x.Out {
		m.Comb(rtl.NewAssign(o, rtl.Mux(rtl.Eq(x.Sel, i), x.In, 0)))
	}
	return m, nil
}
