package gspawn_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cat2neat/gspawn"
)

func newTestHandle() (*debugNetConn, *gspawn.Handle, *gspawn.Ref) {
	dc := &debugNetConn{}
	h, ref := gspawn.NewHandle(gspawn.NewBaseConn(dc))
	return dc, h, ref
}

func TestHandleParentThenWorker(t *testing.T) {
	t.Parallel()
	dc, h, parent := newTestHandle()
	var full int
	h.OnRelease(func(*gspawn.Handle) { full++ })
	assert.Equal(t, gspawn.StateAccepted, h.State())
	assert.Equal(t, 1, h.Refs())
	assert.Equal(t, gspawn.HolderParent, parent.Holder())

	worker := parent.Dup()
	assert.Equal(t, gspawn.HolderWorker, worker.Holder())
	assert.Equal(t, gspawn.StateDispatched, h.State())
	assert.Equal(t, 2, h.Refs())

	require.NoError(t, parent.Release())
	assert.Equal(t, gspawn.StateParentReleased, h.State())
	assert.Equal(t, 0, dc.Closed(), "worker still holds the connection")

	require.NoError(t, worker.Release())
	assert.Equal(t, gspawn.StateFullyReleased, h.State())
	assert.Equal(t, 1, dc.Closed())
	assert.Equal(t, 1, full)
}

func TestHandleWorkerThenParent(t *testing.T) {
	t.Parallel()
	dc, h, parent := newTestHandle()
	worker := parent.Dup()
	worker.Release()
	assert.Equal(t, gspawn.StateChildReleased, h.State())
	assert.Equal(t, 0, dc.Closed(), "parent still holds the connection")
	parent.Release()
	assert.Equal(t, gspawn.StateFullyReleased, h.State())
	assert.Equal(t, 1, dc.Closed())
}

func TestHandleRetainedParentKeepsConnOpen(t *testing.T) {
	t.Parallel()
	dc, h, parent := newTestHandle()
	worker := parent.Dup()
	worker.Release()
	// the parent never releases
	assert.Equal(t, gspawn.StateChildReleased, h.State())
	assert.Equal(t, 1, h.Refs())
	assert.Equal(t, 0, dc.Closed())
	assert.False(t, parent.Released())
}

func TestHandleDoubleRelease(t *testing.T) {
	t.Parallel()
	dc, h, parent := newTestHandle()
	var full int
	h.OnRelease(func(*gspawn.Handle) { full++ })
	worker := parent.Dup()
	for i := 0; i < 3; i++ {
		assert.NoError(t, worker.Release())
	}
	assert.Equal(t, 1, h.Refs(), "repeated release must not drop the parent's reference")
	assert.Equal(t, 0, dc.Closed())
	parent.Release()
	parent.Release()
	assert.Equal(t, 0, h.Refs())
	assert.Equal(t, 1, dc.Closed())
	assert.Equal(t, 1, full)
	assert.True(t, parent.Released())
	assert.True(t, worker.Released())
}

func TestHandleRemote(t *testing.T) {
	t.Parallel()
	dc, h, parent := newTestHandle()
	worker := parent.Remote()
	assert.Equal(t, gspawn.StateDispatched, h.State())
	assert.Equal(t, 1, h.Refs(), "remote references are counted by the kernel")

	parent.Release()
	assert.Equal(t, 1, dc.Closed(), "the parent's copy closes as soon as it is released")
	assert.Equal(t, gspawn.StateParentReleased, h.State())

	worker.Release()
	assert.Equal(t, gspawn.StateFullyReleased, h.State())
	assert.Equal(t, 1, dc.Closed())
}

func TestHandleReleaseUndispatched(t *testing.T) {
	t.Parallel()
	dc, h, parent := newTestHandle()
	var full int
	h.OnRelease(func(*gspawn.Handle) { full++ })
	parent.Release()
	assert.Equal(t, gspawn.StateFullyReleased, h.State())
	assert.Equal(t, 1, dc.Closed())
	assert.Equal(t, 1, full)
}

func TestHandleStateString(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "accepted", gspawn.StateAccepted.String())
	assert.Equal(t, "fully-released", gspawn.StateFullyReleased.String())
	assert.Equal(t, "worker", gspawn.HolderWorker.String())
}
