package rtl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignalKey(t *testing.T) {
	a, b := NewSignal(1), NewSignal(1)
	ka, err := SignalKeyOf(a)
	require.NoError(t, err)
	kb, _ := SignalKeyOf(b)
	kc, _ := SignalKeyOf(NewClockSignal("sync"))
	kr, _ := SignalKeyOf(NewResetSignal("sync", false))
	kc2, _ := SignalKeyOf(NewClockSignal("sync"))

	assert.True(t, ka.Less(kb))
	assert.False(t, kb.Less(ka))
	assert.True(t, kb.Less(kc))
	assert.True(t, kc.Less(kr))
	assert.Equal(t, kc, kc2)

	_, err = SignalKeyOf(C(1))
	assert.True(t, IsKind(err, TypeError), "%v", err)
}

func TestSignalDict(t *testing.T) {
	a, b, c := NewSignal(1), NewSignal(1), NewSignal(1)
	var d SignalDict[int]
	d.Set(c, 3)
	d.Set(a, 1)
	d.Set(b, 2)
	d.Set(a, 10)
	assert.Equal(t, 3, d.Len())
	assert.Equal(t, []Value{c, a, b}, d.Keys())
	v, ok := d.Get(a)
	assert.True(t, ok)
	assert.Equal(t, 10, v)

	d.Delete(c)
	assert.False(t, d.Has(c))
	assert.Equal(t, []Value{a, b}, d.Keys())
	v, _ = d.Get(b)
	assert.Equal(t, 2, v)

	clk := NewClockSignal("sync")
	d.Set(clk, 4)
	v, ok = d.Get(NewClockSignal("sync"))
	assert.True(t, ok)
	assert.Equal(t, 4, v)

	var seen []int
	d.Range(func(_ Value, v int) bool {
		seen = append(seen, v)
		return len(seen) < 2
	})
	assert.Equal(t, []int{10, 2}, seen)

	mustPanicKind(t, TypeError, func() { d.Set(C(0), 0) })
}

func TestSignalSet(t *testing.T) {
	a, b, c := NewSignal(1), NewSignal(1), NewSignal(1)
	s := NewSignalSet(a, b, a)
	assert.Equal(t, 2, s.Len())
	o := NewSignalSet(c, b)
	assert.Equal(t, []Value{a, b, c}, s.Union(o).Slice())
	assert.Equal(t, []Value{a}, s.Difference(o).Slice())
	assert.True(t, s.Intersects(o))
	assert.False(t, NewSignalSet(a).Intersects(NewSignalSet(c)))

	s.Add(NewResetSignal("sync", false))
	assert.Equal(t, []*Signal{a, b}, s.Signals())
	s.Delete(a)
	assert.False(t, s.Has(a))
	s.Update(nil)
	assert.Equal(t, 2, s.Len())
}

func TestValueKey(t *testing.T) {
	s := NewSignal(4)
	td := []struct {
		a, b  Value
		equal bool
	}{
		{C(1), C(1), true},
		{C(1), NewConst(1, 2), false},
		{s, s, true},
		{s, NewSignal(4), false},
		{Add(s, 1), Add(s, 1), true},
		{Add(s, 1), Sub(s, 1), false},
		{Slc(s, 0, 2), Slc(s, 0, 2), true},
		{Slc(s, 0, 2), Slc(s, 1, 3), false},
		{Concat(s, C(0)), Concat(s, C(0)), true},
		{NewClockSignal("a"), NewClockSignal("a"), true},
		{NewClockSignal("a"), NewResetSignal("a", false), false},
		{Past(s, 1, "sync"), Past(s, 1, "sync"), true},
		{Past(s, 1, "sync"), Past(s, 1, "pix"), false},
		{NewInitial(), NewInitial(), true},
	}
	for i, d := range td {
		ka, kb := KeyOf(d.a), KeyOf(d.b)
		assert.Equal(t, d.equal, ka.Equal(kb), "%d: %v == %v", i, d.a, d.b)
		if d.equal {
			assert.Equal(t, ka.Hash(), kb.Hash(), "%d: hash", i)
		}
	}
}

func TestValueDict(t *testing.T) {
	s := NewSignal(4)
	d := NewValueDict[string]()
	d.Set(Add(s, 1), "inc")
	d.Set(Slc(s, 0, 1), "lsb")
	d.Set(Add(s, 1), "plus one")
	assert.Equal(t, 2, d.Len())
	v, ok := d.Get(Add(s, 1))
	assert.True(t, ok)
	assert.Equal(t, "plus one", v)
	assert.False(t, d.Has(Add(s, 2)))

	set := NewValueSet(C(1), C(1), C(2))
	assert.Equal(t, 2, set.Len())
	assert.True(t, set.Has(C(2)))
	assert.Len(t, set.Slice(), 2)
}

func TestArray(t *testing.T) {
	a := NewArray(1, 2, NewSignal(Signed(3)))
	assert.Equal(t, 3, a.Len())
	require.NoError(t, a.Append(4))
	require.NoError(t, a.Insert(0, 0))
	require.NoError(t, a.Set(1, 5))
	require.NoError(t, a.Delete(4))
	assert.Equal(t, 4, a.Len())
	assert.Equal(t, int64(5), a.Elem(1).(*Const).Value)

	// constant indices keep the array mutable
	assert.Equal(t, a.Elem(2), a.Index(2))
	assert.Equal(t, a.Elem(3), a.Index(-1))
	assert.Equal(t, a.Elem(0), a.Index(-4))
	mustPanicKind(t, IndexError, func() { a.Index(4) })
	mustPanicKind(t, IndexError, func() { a.Index(-5) })
	st, _ := a.State()
	assert.Equal(t, Mutable, st)

	p := a.Index(NewSignal(2)).(*ArrayProxy)
	assert.Len(t, p.Elems, 4)
	assert.Equal(t, Signed(4), p.Shape())
	st, loc := a.State()
	assert.Equal(t, Frozen, st)
	assert.NotEmpty(t, loc.String())

	err := a.Append(1)
	assert.True(t, IsKind(err, ValueError), "%v", err)
	assert.True(t, IsKind(a.Set(0, 1), ValueError))
	assert.True(t, IsKind(a.Insert(0, 1), ValueError))
	assert.True(t, IsKind(a.Delete(0), ValueError))
}
