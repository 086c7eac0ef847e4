package hwlib_test

import (
	"testing"
	"testing/quick"

	"github.com/db47h/rtl"
	hl "github.com/db47h/rtl/hwlib"
	"github.com/db47h/rtl/rtltest"
	"github.com/db47h/rtl/sim"
	"github.com/stretchr/testify/assert"
)

func TestHalfAdder(t *testing.T) {
	h := hl.NewHalfAdder()
	truthTable(t, h, []*rtl.Signal{h.A, h.B}, []*rtl.Signal{h.S, h.C}, func(in []int64) []int64 {
		s := in[0] + in[1]
		return []int64{s & 1, s >> 1}
	})
}

// fullAdder is a behavioral full adder.
type fullAdder struct {
	A    *rtl.Signal `rtl:"in"`
	B    *rtl.Signal `rtl:"in"`
	Cin  *rtl.Signal `rtl:"in"`
	S    *rtl.Signal `rtl:"out"`
	Cout *rtl.Signal `rtl:"out"`
}

func (a *fullAdder) Elaborate(platform interface{}) (rtl.Elaboratable, error) {
	m := rtl.NewModule()
	m.Comb(rtl.NewAssign(rtl.Concat(a.S, a.Cout), rtl.Add(rtl.Add(a.A, a.B), a.Cin)))
	return m, nil
}

func TestFullAdder(t *testing.T) {
	ref := &fullAdder{rtl.NewSignal(1), rtl.NewSignal(1), rtl.NewSignal(1), rtl.NewSignal(1), rtl.NewSignal(1)}
	rtltest.CompareParts(t, 16, hl.NewFullAdder(), ref)
}

func TestAdder(t *testing.T) {
	a := hl.NewAdder(8)
	simulate(t, a, func(ctx *sim.Ctx) {
		f := func(x, y uint8) bool {
			ctx.Set(a.A, int64(x))
			ctx.Set(a.B, int64(y))
			ctx.Settle()
			sum := int64(x) + int64(y)
			return ctx.Get(a.Out) == sum&0xff && ctx.Get(a.C) == sum>>8
		}
		assert.NoError(t, quick.Check(f, nil))
	})
}

type aluCtl struct {
	zx, nx, zy, ny, f, no bool
}

func alu(x, y uint16, c aluCtl) uint16 {
	if c.zx {
		x = 0
	}
	if c.nx {
		x = ^x
	}
	if c.zy {
		y = 0
	}
	if c.ny {
		y = ^y
	}
	var out uint16
	if c.f {
		out = x + y
	} else {
		out = x & y
	}
	if c.no {
		out = ^out
	}
	return out
}

func TestALU(t *testing.T) {
	a := hl.NewALU(16)
	set := func(ctx *sim.Ctx, s *rtl.Signal, b bool) {
		ctx.Set(s, b2i(b))
	}
	simulate(t, a, func(ctx *sim.Ctx) {
		// Hack ALU function table, with x = 5 and y = 3.
		td := []struct {
			ctl aluCtl
			out int16
		}{
			{aluCtl{true, false, true, false, true, false}, 0},
			{aluCtl{true, true, true, true, true, true}, 1},
			{aluCtl{true, true, true, false, true, false}, -1},
			{aluCtl{false, false, true, true, false, false}, 5},
			{aluCtl{true, true, false, false, false, false}, 3},
			{aluCtl{false, false, true, true, false, true}, ^5},
			{aluCtl{false, false, true, true, true, true}, -5},
			{aluCtl{false, true, true, true, true, true}, 6},
			{aluCtl{false, false, true, true, true, false}, 4},
			{aluCtl{false, false, false, false, true, false}, 8},
			{aluCtl{false, true, false, false, true, true}, 2},
			{aluCtl{false, false, false, true, true, true}, -2},
			{aluCtl{false, false, false, false, false, false}, 1},
			{aluCtl{false, true, false, true, false, true}, 7},
		}
		ctx.Set(a.X, 5)
		ctx.Set(a.Y, 3)
		for _, d := range td {
			set(ctx, a.Zx, d.ctl.zx)
			set(ctx, a.Nx, d.ctl.nx)
			set(ctx, a.Zy, d.ctl.zy)
			set(ctx, a.Ny, d.ctl.ny)
			set(ctx, a.F, d.ctl.f)
			set(ctx, a.No, d.ctl.no)
			ctx.Settle()
			assert.Equal(t, int64(uint16(d.out)), ctx.Get(a.Out), "%+v", d.ctl)
			assert.Equal(t, b2i(d.out == 0), ctx.Get(a.Zr), "%+v zr", d.ctl)
			assert.Equal(t, b2i(d.out < 0), ctx.Get(a.Ng), "%+v ng", d.ctl)
		}

		f := func(x, y uint16, ctl uint8) bool {
			c := aluCtl{ctl&1 != 0, ctl&2 != 0, ctl&4 != 0, ctl&8 != 0, ctl&16 != 0, ctl&32 != 0}
			ctx.Set(a.X, int64(x))
			ctx.Set(a.Y, int64(y))
			set(ctx, a.Zx, c.zx)
			set(ctx, a.Nx, c.nx)
			set(ctx, a.Zy, c.zy)
			set(ctx, a.Ny, c.ny)
			set(ctx, a.F, c.f)
			set(ctx, a.No, c.no)
			ctx.Settle()
			exp := alu(x, y, c)
			return ctx.Get(a.Out) == int64(exp) &&
				ctx.Get(a.Zr) == b2i(exp == 0) &&
				ctx.Get(a.Ng) == b2i(int16(exp) < 0)
		}
		assert.NoError(t, quick.Check(f, nil))
	})
}
