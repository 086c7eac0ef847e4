package rtl

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClockDomain(t *testing.T) {
	sync := NewClockDomain("sync")
	assert.Equal(t, "clk", sync.Clk.Name)
	assert.Equal(t, "rst", sync.Rst.Name)
	assert.Equal(t, PosEdge, sync.ClkEdge)

	pix := NewClockDomain("cd_pix", ClkEdge(NegEdge), AsyncReset(), LocalDomain())
	assert.Equal(t, "pix", pix.Name)
	assert.Equal(t, "pix_clk", pix.Clk.Name)
	assert.Equal(t, "pix_rst", pix.Rst.Name)
	assert.Equal(t, NegEdge, pix.ClkEdge)
	assert.True(t, pix.AsyncReset)
	assert.True(t, pix.Local)

	nr := NewClockDomain("nr", NoReset())
	assert.Nil(t, nr.Rst)

	sync.Rename("video")
	assert.Equal(t, "video", sync.Name)
	assert.Equal(t, "video_clk", sync.Clk.Name)
	assert.Equal(t, "video_rst", sync.Rst.Name)
	assert.Equal(t, "(clock-domain 'video' (edge pos) (sig video_clk))", sync.String())

	mustPanicKind(t, ValueError, func() { NewClockDomain("") })
	mustPanicKind(t, ValueError, func() { NewClockDomain("cd_") })
	mustPanicKind(t, ValueError, func() { NewClockDomain(CombDomain) })
}
