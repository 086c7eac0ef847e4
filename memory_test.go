package rtl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory(t *testing.T) {
	m := NewMemory(8, 4, MemName("mem"), MemInit(1, 2, 300))
	assert.Equal(t, "mem(0)", m.Word(0).Name)
	assert.Equal(t, []int64{1, 2, 300}, m.Init())
	assert.Equal(t, int64(44), m.Word(2).Reset)
	assert.Equal(t, int64(0), m.Word(3).Reset)

	require.NoError(t, m.SetInit(5))
	assert.Equal(t, int64(5), m.Word(0).Reset)
	assert.Equal(t, int64(0), m.Word(1).Reset)
	assert.True(t, IsKind(m.SetInit(1, 2, 3, 4, 5), ValueError))

	mustPanicKind(t, TypeError, func() { NewMemory(-1, 4) })
	mustPanicKind(t, TypeError, func() { NewMemory(8, -1) })
	mustPanicKind(t, ValueError, func() { NewMemory(8, 2, MemInit(1, 2, 3)) })
}

func TestMemory_ports(t *testing.T) {
	m := NewMemory(8, 4, MemName("mem"))
	mustPanicKind(t, ValueError, func() { m.ReadPort(OnDomain(CombDomain), NonTransparent()) })
	mustPanicKind(t, ValueError, func() { m.WritePort(Granularity(3)) })
	mustPanicKind(t, ValueError, func() { m.WritePort(Granularity(16)) })
	mustPanicKind(t, TypeError, func() { m.WritePort(Granularity(-1)) })

	rp := m.ReadPort()
	assert.Equal(t, "sync", rp.Domain)
	assert.True(t, rp.Transparent)
	assert.Equal(t, Unsigned(2), rp.Addr.Shape())
	assert.Equal(t, int64(1), rp.En.(*Signal).Reset)
	crp := m.ReadPort(OnDomain(CombDomain))
	assert.IsType(t, &Const{}, crp.En)
	wp := m.WritePort(Granularity(4))
	assert.Equal(t, 2, Len(wp.En))

	f, err := GetFragment(rp, nil)
	require.NoError(t, err)
	require.NotNil(t, f.Memory)
	assert.Len(t, f.Memory.Read, 2)
	assert.Len(t, f.Memory.Write, 1)
	assert.Len(t, f.Statements, 4)
	assert.Equal(t, []Value{crp.Data}, f.IterComb())
	sync := f.Drivers("sync")
	assert.True(t, sync.Has(rp.Data))
	for i := 0; i < 4; i++ {
		assert.True(t, sync.Has(m.Word(i)))
	}

	f, err = GetFragment(crp, nil)
	require.NoError(t, err)
	assert.Nil(t, f.Memory)
	assert.Empty(t, f.Statements)
	f, err = GetFragment(wp, nil)
	require.NoError(t, err)
	assert.Nil(t, f.Memory)
}

func TestMemory_writeOnly(t *testing.T) {
	m := NewMemory(4, 2)
	wp := m.WritePort(OnDomain("pix"))
	assert.Equal(t, 1, Len(wp.En))
	f, err := GetFragment(wp, nil)
	require.NoError(t, err)
	require.NotNil(t, f.Memory)
	assert.Equal(t, []string{"pix"}, f.DriverDomains())
	assert.Equal(t, []string{"pix"}, CollectDomains(f).Used())
}

func TestInstance(t *testing.T) {
	x := NewSignal(1, Name("x"))
	y := NewSignal(1, Name("y"))
	inst := NewInstance("SB_LUT4", P("LUT_INIT", 0x8000), A("keep", true), I("I0", x), O("O", y))
	assert.Equal(t, "(instance SB_LUT4)", inst.String())
	assert.Equal(t, []Param{{"LUT_INIT", 0x8000}}, inst.Instance.Params)
	assert.Equal(t, true, inst.Attrs["keep"])
	p, ok := inst.Instance.Port("O")
	require.True(t, ok)
	assert.Equal(t, Out, p.Dir)
	_, ok = inst.Instance.Port("I1")
	assert.False(t, ok)

	top := NewFragment()
	top.AddSubfragment(inst, "lut")
	pf, err := top.Prepare()
	require.NoError(t, err)
	assert.Equal(t, In, portDir(pf, x))
	lut := sub(t, pf, "lut")
	assert.Equal(t, In, portDir(lut, x))
	assert.Equal(t, Out, portDir(lut, y))
}
