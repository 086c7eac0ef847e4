package rtl

import (
	"testing"

	"github.com/db47h/rtl/internal/diag"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureWarnings records diagnostics until the end of the test.
func captureWarnings(t *testing.T) *test.Hook {
	t.Helper()
	l := diag.Logger()
	old := l.ReplaceHooks(make(logrus.LevelHooks))
	h := test.NewLocal(l)
	t.Cleanup(func() { l.ReplaceHooks(old) })
	return h
}

func warnings(h *test.Hook) []string {
	var msgs []string
	for _, e := range h.AllEntries() {
		if e.Level == logrus.WarnLevel {
			msgs = append(msgs, e.Message)
		}
	}
	return msgs
}

func mustPanicKind(t *testing.T, kind ErrorKind, f func()) {
	t.Helper()
	err := Catch(f)
	require.Error(t, err)
	k, ok := KindOf(err)
	require.True(t, ok, "%v", err)
	assert.Equal(t, kind, k, "%v", err)
}

func TestConst(t *testing.T) {
	td := []struct {
		c     *Const
		shape Shape
		value int64
	}{
		{C(0), Unsigned(1), 0},
		{C(10), Unsigned(4), 10},
		{C(-1), Signed(1), -1},
		{C(-10), Signed(5), -10},
		{NewConst(10, 2), Unsigned(2), 2},
		{NewConst(-1, 4), Signed(4), -1},
		{NewConst(-1, Unsigned(4)), Unsigned(4), 15},
		{NewConst(7, Signed(3)), Signed(3), -1},
		{NewConst(-1, Unsigned(64)), Unsigned(64), -1},
	}
	for _, d := range td {
		assert.Equal(t, d.shape, d.c.Shape(), "%v", d.c)
		assert.Equal(t, d.value, d.c.Value, "%v", d.c)
	}
	assert.Equal(t, uint64(15), NewConst(-1, 4).Uint64())
	assert.Equal(t, "(const 4'sd-1)", NewConst(-1, 4).String())
}

func TestConstCast(t *testing.T) {
	c, err := ConstCast(Concat(NewConst(1, 2), NewConst(3, 2)))
	require.NoError(t, err)
	assert.Equal(t, Unsigned(4), c.Shape())
	assert.Equal(t, int64(13), c.Value)

	c, err = ConstCast(NewSlice(C(10), 1, 3))
	require.NoError(t, err)
	assert.Equal(t, Unsigned(2), c.Shape())
	assert.Equal(t, int64(1), c.Value)

	c, err = ConstCast(true)
	require.NoError(t, err)
	assert.Equal(t, int64(1), c.Value)

	_, err = ConstCast(NewSignal(4))
	assert.True(t, IsKind(err, TypeError), "%v", err)
	_, err = ConstCast(3.5)
	assert.True(t, IsKind(err, TypeError), "%v", err)
}

func TestOperator_shapes(t *testing.T) {
	u4, u8 := NewSignal(4), NewSignal(8)
	s4 := NewSignal(Signed(4))
	td := []struct {
		v     Value
		shape Shape
	}{
		{Not(u4), Unsigned(4)},
		{Neg(u4), Signed(5)},
		{Bool(u8), Unsigned(1)},
		{Any(u8), Unsigned(1)},
		{All(u8), Unsigned(1)},
		{Parity(u8), Unsigned(1)},
		{AsSigned(u4), Signed(4)},
		{AsUnsigned(s4), Unsigned(4)},
		{Add(u4, u8), Unsigned(9)},
		{Add(u4, s4), Signed(6)},
		{Sub(u4, u4), Signed(5)},
		{Mul(u4, s4), Signed(8)},
		{FloorDiv(u8, u4), Unsigned(8)},
		{FloorDiv(u8, s4), Signed(9)},
		{Mod(u8, u4), Unsigned(4)},
		{And(u4, s4), Signed(5)},
		{Or(s4, u8), Signed(9)},
		{Xor(s4, s4), Signed(4)},
		{Eq(u4, u8), Unsigned(1)},
		{Lt(s4, u8), Unsigned(1)},
		{Shl(u4, NewSignal(2)), Unsigned(7)},
		{Shr(s4, NewSignal(2)), Signed(4)},
		{Mux(u8, u4, s4), Signed(5)},
		{Add(NewConst(-1, 4), NewConst(1, 4)), Signed(6)},
	}
	for _, d := range td {
		assert.Equal(t, d.shape, d.v.Shape(), "%v", d.v)
	}
}

func TestOperator_errors(t *testing.T) {
	u4 := NewSignal(4)
	mustPanicKind(t, TypeError, func() { Shl(u4, NewSignal(Signed(2))) })
	mustPanicKind(t, OverflowError, func() { Shl(u4, NewSignal(32)) })
	mustPanicKind(t, ValueError, func() { AsSigned(NewSignal(0)) })
	mustPanicKind(t, TypeError, func() { NewOperator("?", u4, u4) })
	mustPanicKind(t, TypeError, func() { Add(u4, "foo") })
}

func TestSlice(t *testing.T) {
	v := NewSignal(8)
	s := Slc(v, 2, -2)
	assert.Equal(t, 2, s.Start)
	assert.Equal(t, 6, s.Stop)
	assert.Equal(t, Unsigned(4), s.Shape())

	b := Bit(v, -1)
	assert.Equal(t, 7, b.Start)
	assert.Equal(t, Unsigned(1), b.Shape())

	assert.Equal(t, Unsigned(8), Slc(v, -100, 100).Shape())
	assert.Equal(t, Unsigned(4), SlcStep(v, 0, 8, 2).Shape())
	assert.Equal(t, Unsigned(3), SlcStep(v, 7, 4, -1).Shape())

	mustPanicKind(t, IndexError, func() { Bit(v, 8) })
	mustPanicKind(t, IndexError, func() { NewSlice(v, 5, 2) })
	mustPanicKind(t, IndexError, func() { NewSlice(v, 0, 9) })
	mustPanicKind(t, ValueError, func() { SlcStep(v, 0, 8, 0) })
	mustPanicKind(t, SyntaxError, func() { Index(v, NewSignal(3)) })
	assert.Equal(t, 3, Index(v, 3).(*Slice).Start)
}

func TestSelect(t *testing.T) {
	v, off := NewSignal(16), NewSignal(2)
	p := BitSelect(v, off, 4).(*Part)
	assert.Equal(t, 1, p.Stride)
	assert.Equal(t, Unsigned(4), p.Shape())
	p = WordSelect(v, off, 4).(*Part)
	assert.Equal(t, 4, p.Stride)

	s := WordSelect(v, 2, 4).(*Slice)
	assert.Equal(t, 8, s.Start)
	assert.Equal(t, 12, s.Stop)

	mustPanicKind(t, TypeError, func() { BitSelect(v, NewSignal(Signed(2)), 4) })
}

func TestCat(t *testing.T) {
	h := captureWarnings(t)
	a, b := NewSignal(3), NewSignal(Signed(5))
	c := Concat(a, b, 1)
	assert.Equal(t, Unsigned(9), c.Shape())
	assert.Empty(t, warnings(h))
	Concat(a, 2)
	assert.Equal(t, []string{"Argument #2 of Cat() is a bare integer 2 used in bit vector context; consider specifying the width explicitly using Const(2, 2) instead"}, warnings(h))
	assert.Equal(t, Unsigned(12), Replicate(a, 4).Shape())
}

func TestShifts(t *testing.T) {
	u, s := NewSignal(8), NewSignal(Signed(8))
	assert.Equal(t, Unsigned(11), ShiftLeft(u, 3).Shape())
	assert.Equal(t, Signed(11), ShiftLeft(s, 3).Shape())
	assert.Equal(t, Unsigned(5), ShiftRight(u, 3).Shape())
	assert.Equal(t, Unsigned(0), ShiftRight(u, 10).Shape())
	assert.Equal(t, Signed(1), ShiftRight(s, 10).Shape())
	assert.Equal(t, Unsigned(8), RotateLeft(u, -3).Shape())
	assert.Equal(t, Unsigned(8), RotateRight(u, 11).Shape())
}

func TestMatches(t *testing.T) {
	h := captureWarnings(t)
	v := NewSignal(4)
	m := Matches(v, "1-0-")
	assert.Equal(t, Unsigned(1), m.Shape())
	assert.Equal(t, "(== (& (sig $signal) (const 4'd10)) (const 4'd8))", m.String())
	assert.Equal(t, "(r| (cat (== (sig $signal) (const 1'd1)) (== (sig $signal) (const 2'd2))))", Matches(v, 1, 2).String())

	mustPanicKind(t, SyntaxError, func() { Matches(v, "10") })
	mustPanicKind(t, SyntaxError, func() { Matches(v, "10x0") })
	assert.Empty(t, warnings(h))

	assert.Equal(t, "(const 1'd1)", Matches(v).String())
	Matches(v, 16)
	assert.Len(t, warnings(h), 3)
}

func TestSignal(t *testing.T) {
	h := captureWarnings(t)
	s := NewSignal(4, Name("foo"), Reset(3), ResetLess(), Attrs(map[string]interface{}{"keep": 1}))
	assert.Equal(t, "foo", s.Name)
	assert.Equal(t, int64(3), s.Reset)
	assert.True(t, s.ResetLess)
	assert.Equal(t, 1, s.Attrs["keep"])
	assert.Equal(t, "(sig foo)", s.String())

	s = NewSignal(Signed(4), Reset(-1))
	assert.Equal(t, int64(-1), s.Reset)
	assert.Empty(t, warnings(h))

	s = NewSignal(2, Reset(7))
	assert.Equal(t, int64(3), s.Reset)
	assert.Len(t, warnings(h), 1)

	s = NewSignal(Range{0, 10}, Reset(9))
	assert.Equal(t, Unsigned(4), s.Shape())
	mustPanicKind(t, SyntaxError, func() { NewSignal(Range{0, 10}, Reset(10)) })
	mustPanicKind(t, SyntaxError, func() { NewSignal(Range{0, 10}, Reset(12)) })
	mustPanicKind(t, TypeError, func() { NewSignal(4, Reset(NewSignal(1))) })

	l := SignalLike(s, Name("bar"))
	assert.Equal(t, s.Shape(), l.Shape())
	assert.Equal(t, s.Reset, l.Reset)
	assert.Equal(t, "bar", l.Name)
	assert.True(t, l.DUID() > s.DUID())
}

type colorEnum []int64

func (e colorEnum) Members() []int64 { return e }
func (e colorEnum) Name(v int64) (string, bool) {
	switch v {
	case 0:
		return "RED", true
	case 1:
		return "GREEN", true
	}
	return "", false
}

func TestSignal_decoder(t *testing.T) {
	s := NewSignal(colorEnum{0, 1})
	assert.Equal(t, "GREEN/1", s.Format(1))
	assert.Equal(t, "3", s.Format(3))
	s = NewSignal(4, Decoder(func(v int64) string { return "x" }))
	assert.Equal(t, "x", s.Format(2))
	assert.Equal(t, "2", NewSignal(4).Format(2))
}

func TestLateBound(t *testing.T) {
	mustPanicKind(t, ValueError, func() { NewClockSignal(CombDomain) })
	mustPanicKind(t, ValueError, func() { NewResetSignal(CombDomain, false) })
	assert.Equal(t, "(clk sync)", NewClockSignal("sync").String())
	assert.Equal(t, "(rst pix)", NewResetSignal("pix", true).String())
	assert.Equal(t, "(anyconst 3's)", AnyConst(Signed(3)).String())
	assert.Equal(t, "(anyseq 2')", AnySeq(2).String())
}

func TestSample(t *testing.T) {
	s := NewSignal(4)
	p := Past(s, 2, "")
	assert.Equal(t, Unsigned(4), p.Shape())
	assert.Equal(t, "(sample (sig $signal) @ <default>[2])", p.String())
	assert.Equal(t, Unsigned(1), Rose(s, 0, "sync").Shape())
	assert.Equal(t, Unsigned(1), Fell(s, 0, "sync").Shape())
	assert.Equal(t, Unsigned(1), Stable(s, 0, "sync").Shape())
	mustPanicKind(t, TypeError, func() { Past(Add(s, 1), 1, "") })
	mustPanicKind(t, ValueError, func() { Past(s, -1, "") })
}

func TestCast(t *testing.T) {
	v := Cast(true)
	assert.Equal(t, "(const 1'd1)", v.String())
	v = Cast(uint8(200))
	assert.Equal(t, Unsigned(8), v.Shape())
	mustPanicKind(t, TypeError, func() { Cast(struct{}{}) })
}
