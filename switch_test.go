package rtl_test

import (
	"runtime"
	"strconv"
	"testing"

	"github.com/db47h/rtl"
	"github.com/db47h/rtl/rtltest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSwitch_caseLoc(t *testing.T) {
	h := rtltest.CaptureWarnings(t)
	s := rtl.NewSignal(2, rtl.Name("s"))
	_, file, line, _ := runtime.Caller(0)
	sw := rtl.NewSwitch(s,
		rtl.On([]interface{}{1}),
		rtl.Default(),
		rtl.On([]interface{}{1}),
	)
	require.Len(t, sw.Cases, 3)
	for i, c := range sw.Cases {
		assert.Equal(t, rtl.SrcLoc{File: file, Line: line + 2 + i}, c.Loc)
	}
	assert.Equal(t, rtl.SrcLoc{File: file, Line: line + 1}, sw.SrcLoc())

	entries := h.AllEntries()
	require.Len(t, entries, 1)
	assert.Equal(t, file+":"+strconv.Itoa(line+4), entries[0].Data["loc"])

	// cases built as literals take the location of the switch
	sw = rtl.NewSwitch(s, rtl.Case{Keys: []interface{}{2}})
	assert.Equal(t, sw.SrcLoc(), sw.Cases[0].Loc)
}
