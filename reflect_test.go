package rtl_test

import (
	"testing"

	"github.com/db47h/rtl"
	"github.com/db47h/rtl/rtltest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPortsOf(t *testing.T) {
	in := rtl.NewSignal(4)
	type component struct {
		In   *rtl.Signal   `rtl:"in"`
		Rst  *rtl.Signal   `rtl:"in,rst_n"`
		Nil  *rtl.Signal   `rtl:"out"`
		Data []*rtl.Signal `rtl:"inout,d"`
		priv int
	}
	d0, d1 := rtl.NewSignal(1), rtl.NewSignal(1)
	ports, err := rtl.PortsOf(&component{In: in, Rst: in, Data: []*rtl.Signal{d0, nil, d1}})
	require.NoError(t, err)
	assert.Equal(t, []rtl.PortSpec{
		{Name: "in", Dir: rtl.In, Signal: in},
		{Name: "rst_n", Dir: rtl.In, Signal: in},
		{Name: "d[0]", Dir: rtl.InOut, Signal: d0},
		{Name: "d[2]", Dir: rtl.InOut, Signal: d1},
	}, ports)
	assert.Equal(t, []rtl.Value{in, in, d0, d1}, rtl.PortValues(ports))

	td := []interface{}{
		(*component)(nil),
		42,
		&struct {
			X *rtl.Signal `rtl:"bogus"`
		}{},
		&struct {
			X *rtl.Signal `rtl:"in,x,y"`
		}{},
		&struct {
			X int `rtl:"in"`
		}{},
	}
	for _, d := range td {
		_, err := rtl.PortsOf(d)
		assert.Error(t, err, "%T", d)
	}
}

func TestPortsOf_compare(t *testing.T) {
	rtltest.CompareParts(t, 16, newMux4(false), newMux4(true))
}
