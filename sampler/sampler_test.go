package sampler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rbperf-go/rbperf/rubyabi"
)

func newTestController() *Controller {
	return &Controller{
		cfg:          DefaultConfig(),
		versionSlots: make(map[rubyabi.Version]uint32),
	}
}

func TestSlotForReusesSlotForSameVersion(t *testing.T) {
	c := newTestController()
	v := rubyabi.NewVersion(3, 1, 2)

	slot1, err := c.slotFor(v)
	require.NoError(t, err)
	slot2, err := c.slotFor(v)
	require.NoError(t, err)
	assert.Equal(t, slot1, slot2)
}

func TestSlotForAssignsDistinctSlots(t *testing.T) {
	c := newTestController()

	seen := map[uint32]bool{}
	for i := uint32(0); i < maxTrackedVersions; i++ {
		v := rubyabi.NewVersion(3, 0, i)
		slot, err := c.slotFor(v)
		require.NoError(t, err)
		assert.False(t, seen[slot], "slot %d reused across distinct versions", slot)
		seen[slot] = true
	}
}

func TestSlotForErrorsPastCapacity(t *testing.T) {
	c := newTestController()

	for i := uint32(0); i < maxTrackedVersions; i++ {
		_, err := c.slotFor(rubyabi.NewVersion(3, 0, i))
		require.NoError(t, err)
	}

	_, err := c.slotFor(rubyabi.NewVersion(2, 9, 9))
	assert.ErrorIs(t, err, ErrTooManyVersions)
}

func TestAttachUnknownMode(t *testing.T) {
	c := newTestController()
	c.cfg.Mode = AttachMode(99)

	err := c.Attach()
	assert.Error(t, err)
}

func TestAttachSyscallRequiresConfiguredSyscalls(t *testing.T) {
	c := newTestController()
	c.cfg.Mode = AttachSyscall
	c.cfg.Syscalls = nil

	err := c.attachSyscall()
	assert.Error(t, err)
}

func TestSyscallNumberResolvesKnownName(t *testing.T) {
	_, ok := syscallNumber("read")
	assert.True(t, ok)
}

func TestSyscallNumberRejectsUnknownName(t *testing.T) {
	_, ok := syscallNumber("not_a_real_syscall")
	assert.False(t, ok)
}

func TestReconcileDropCountsNoObjectsIsNoop(t *testing.T) {
	c := newTestController()
	assert.NotPanics(t, c.reconcileDropCounts)
}
