package rtl_test

import (
	"fmt"
	"strings"

	"github.com/db47h/rtl"
	"github.com/db47h/rtl/sim"
)

// mux4 is a custom 4 bits mux.
//
type mux4 struct {
	A   [4]*rtl.Signal `rtl:"in"`     // input bus "a"
	B   [4]*rtl.Signal `rtl:"in"`     // input bus "b"
	S   *rtl.Signal    `rtl:"in,sel"` // single bit, the second tag value forces the port name to "sel"
	Out [4]*rtl.Signal `rtl:"out"`    // output bus "out"

	gates bool
}

func newMux4(gates bool) *mux4 {
	m := &mux4{S: rtl.NewSignal(1, rtl.Name("sel")), gates: gates}
	for i := range m.A {
		m.A[i] = rtl.NewSignal(1, rtl.Name(fmt.Sprintf("a%d", i)))
		m.B[i] = rtl.NewSignal(1, rtl.Name(fmt.Sprintf("b%d", i)))
		m.Out[i] = rtl.NewSignal(1, rtl.Name(fmt.Sprintf("out%d", i)))
	}
	return m
}

// Elaborate implements rtl.Elaboratable.
//
func (m *mux4) Elaborate(platform interface{}) (rtl.Elaboratable, error) {
	mod := rtl.NewModule()
	if m.gates {
		for i := range m.Out {
			mod.Comb(rtl.NewAssign(m.Out[i], rtl.Or(rtl.And(m.S, m.B[i]), rtl.And(rtl.Not(m.S), m.A[i]))))
		}
		return mod, nil
	}
	mod.If(m.S, func() {
		for i, b := range m.B {
			mod.Comb(rtl.NewAssign(m.Out[i], b))
		}
	})
	mod.Else(func() {
		for i, a := range m.A {
			mod.Comb(rtl.NewAssign(m.Out[i], a))
		}
	})
	return mod, nil
}

func bus(sigs [4]*rtl.Signal) rtl.Value {
	return rtl.Concat(sigs[0], sigs[1], sigs[2], sigs[3])
}

// PortsOf example with a custom mux4
func ExamplePortsOf() {
	mux := newMux4(false)
	ports, err := rtl.PortsOf(mux)
	if err != nil {
		panic(err)
	}
	var names []string
	for _, p := range ports {
		names = append(names, p.Name)
	}
	fmt.Println(strings.Join(names, " "))

	s, err := sim.New(mux, sim.WithPrepareOptions(rtl.Ports(rtl.PortValues(ports)...)))
	if err != nil {
		panic(err)
	}
	defer s.Close()
	s.AddProcess(func(ctx *sim.Ctx) {
		ctx.Set(bus(mux.A), 1)
		ctx.Set(bus(mux.B), 15)
		for _, sel := range []int64{0, 1} {
			ctx.Set(mux.S, sel)
			ctx.Settle()
			fmt.Printf("a=1, b=15, sel=%d => out=%d\n", sel, ctx.Get(bus(mux.Out)))
		}
	})
	if err = s.Run(); err != nil {
		panic(err)
	}

	// Output:
	// a[0] a[1] a[2] a[3] b[0] b[1] b[2] b[3] sel out[0] out[1] out[2] out[3]
	// a=1, b=15, sel=0 => out=1
	// a=1, b=15, sel=1 => out=15
}
