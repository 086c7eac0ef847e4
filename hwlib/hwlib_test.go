package hwlib_test

import (
	"testing"

	"github.com/db47h/rtl"
	hl "github.com/db47h/rtl/hwlib"
	"github.com/db47h/rtl/rtltest"
	"github.com/db47h/rtl/sim"
	"github.com/stretchr/testify/require"
)

func simulate(t *testing.T, c rtl.Elaboratable, fn func(ctx *sim.Ctx)) {
	t.Helper()
	f, err := hl.Prepare(c)
	require.NoError(t, err)
	rtltest.Simulate(t, f, fn)
}

// truthTable checks a combinational part against fn for every combination
// of values of ins.
func truthTable(t *testing.T, c rtl.Elaboratable, ins []*rtl.Signal, outs []*rtl.Signal, fn func(in []int64) []int64) {
	t.Helper()
	total := 1
	for _, in := range ins {
		total <<= uint(rtl.Len(in))
	}
	simulate(t, c, func(ctx *sim.Ctx) {
		vals := make([]int64, len(ins))
		for i := 0; i < total; i++ {
			n := i
			for k, in := range ins {
				w := rtl.Len(in)
				vals[k] = int64(n & (1<<uint(w) - 1))
				n >>= uint(w)
				ctx.Set(in, vals[k])
			}
			ctx.Settle()
			exp := fn(vals)
			for o, out := range outs {
				if got := ctx.Get(out); got != exp[o] {
					t.Errorf("%v => %s = %d, got %d", vals, out.Name, exp[o], got)
				}
			}
		}
	})
}

func TestPrepare_ports(t *testing.T) {
	a := hl.NewAdder(4)
	f, err := hl.Prepare(a)
	require.NoError(t, err)
	dirs := map[*rtl.Signal]rtl.PortDir{}
	for _, d := range []rtl.PortDir{rtl.In, rtl.Out} {
		for _, p := range f.IterPorts(d) {
			dirs[p.(*rtl.Signal)] = d
		}
	}
	require.Equal(t, map[*rtl.Signal]rtl.PortDir{a.A: rtl.In, a.B: rtl.In, a.Out: rtl.Out, a.C: rtl.Out}, dirs)
}
