package transport

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rbperf-go/rbperf/ebpf"
)

func rawStack(t *testing.T, stack ebpf.RubyStack) []byte {
	t.Helper()
	buf := make([]byte, unsafe.Sizeof(stack))
	*(*ebpf.RubyStack)(unsafe.Pointer(&buf[0])) = stack
	return buf
}

func TestDecodeStackTooShort(t *testing.T) {
	var stats Stats
	_, ok := decodeStack([]byte{1, 2, 3}, &stats)
	assert.False(t, ok)
}

func TestDecodeStackComplete(t *testing.T) {
	var stats Stats
	want := ebpf.RubyStack{PID: 42, StackStatus: ebpf.StackComplete, Size: 3}
	got, ok := decodeStack(rawStack(t, want), &stats)
	require.True(t, ok)
	assert.Equal(t, want.PID, got.PID)
	assert.Equal(t, want.Size, got.Size)
	assert.Equal(t, uint64(0), stats.Snapshot().StackTruncated)
}

func TestDecodeStackTruncated(t *testing.T) {
	var stats Stats
	want := ebpf.RubyStack{PID: 42, StackStatus: ebpf.StackIncomplete, Size: ebpf.MaxStack}
	_, ok := decodeStack(rawStack(t, want), &stats)
	require.True(t, ok)
	assert.Equal(t, uint64(1), stats.Snapshot().StackTruncated)
}

func TestStatsAttribution(t *testing.T) {
	var stats Stats
	stats.AddLost(3)
	stats.AddPidUnknown()
	stats.AddVersionUnknown()
	stats.AddPidReuseMismatch()

	snap := stats.Snapshot()
	assert.Equal(t, uint64(3), snap.Lost)
	assert.Equal(t, uint64(1), snap.PidUnknown)
	assert.Equal(t, uint64(1), snap.VersionUnknown)
	assert.Equal(t, uint64(1), snap.PidReuseMismatch)
}

func TestNewUnknownTransportKind(t *testing.T) {
	_, err := New(ebpf.TransportKind(99), nil, 1)
	require.Error(t, err)
}

func TestPerfReaderStatsRefReflectsLiveStats(t *testing.T) {
	r := &perfReader{}
	r.StatsRef().AddPidUnknown()
	assert.Equal(t, uint64(1), r.Stats().PidUnknown)
}

func TestRingbufReaderStatsRefReflectsLiveStats(t *testing.T) {
	r := &ringbufReader{}
	r.StatsRef().AddVersionUnknown()
	assert.Equal(t, uint64(1), r.Stats().VersionUnknown)
}
