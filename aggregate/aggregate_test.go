package aggregate_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rbperf-go/rbperf/aggregate"
	"github.com/rbperf-go/rbperf/ebpf"
	"github.com/rbperf-go/rbperf/transport"
)

type fakeReader struct {
	events chan *transport.Event
	stats  transport.Stats
}

func newFakeReader() *fakeReader {
	return &fakeReader{events: make(chan *transport.Event, 16)}
}

func (f *fakeReader) Events() <-chan *transport.Event { return f.events }
func (f *fakeReader) Stats() transport.Snapshot       { return f.stats.Snapshot() }
func (f *fakeReader) StatsRef() *transport.Stats      { return &f.stats }
func (f *fakeReader) Close() error                    { close(f.events); return nil }

type fakeMirror struct {
	names map[uint32]string
}

func (m *fakeMirror) Resolve(id uint32) (ebpf.RubyFrame, error) {
	var f ebpf.RubyFrame
	copy(f.MethodName[:], m.names[id])
	return f, nil
}

func (m *fakeMirror) DisplayName(frame *ebpf.RubyFrame) string {
	for i, c := range frame.MethodName {
		if c == 0 {
			return string(frame.MethodName[:i])
		}
	}
	return string(frame.MethodName[:])
}

func (m *fakeMirror) Stats() (hits, misses uint64) { return 0, 0 }

func stackEvent(size uint32, status ebpf.StackStatus, frames ...uint32) *transport.Event {
	var stack ebpf.RubyStack
	stack.Size = size
	stack.StackStatus = status
	copy(stack.Frames[:], frames)
	return &transport.Event{Stack: stack}
}

func TestAggregatorFoldsIdenticalSequences(t *testing.T) {
	mirror := &fakeMirror{names: map[uint32]string{1: "foo", 2: "bar"}}
	agg := aggregate.New(mirror, 16)
	reader := newFakeReader()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		agg.Run(ctx, reader)
		close(done)
	}()

	reader.events <- stackEvent(2, ebpf.StackComplete, 1, 2)
	reader.events <- stackEvent(2, ebpf.StackComplete, 1, 2)
	reader.events <- stackEvent(1, ebpf.StackComplete, 2)

	time.Sleep(20 * time.Millisecond)
	cancel()
	<-done

	summary := agg.Summary()
	assert.Equal(t, uint64(3), summary.TotalSamples)
	assert.Equal(t, uint64(0), summary.Incomplete)
	require.Len(t, summary.Folded, 2)

	byCount := map[uint64][]string{}
	for _, f := range summary.Folded {
		byCount[f.Count] = f.Sequence
	}
	assert.Equal(t, []string{"foo", "bar"}, byCount[2])
	assert.Equal(t, []string{"bar"}, byCount[1])
}

func TestAggregatorSeparatesIncompleteBucket(t *testing.T) {
	mirror := &fakeMirror{names: map[uint32]string{1: "foo"}}
	agg := aggregate.New(mirror, 16)
	reader := newFakeReader()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		agg.Run(ctx, reader)
		close(done)
	}()

	reader.events <- stackEvent(1, ebpf.StackIncomplete, 1)
	time.Sleep(20 * time.Millisecond)
	cancel()
	<-done

	summary := agg.Summary()
	assert.Equal(t, uint64(1), summary.Incomplete)
	require.Len(t, summary.Folded, 1)
	assert.Equal(t, uint64(1), summary.Folded[0].Count)
}

func TestAggregatorEmitsSamples(t *testing.T) {
	mirror := &fakeMirror{names: map[uint32]string{1: "foo"}}
	agg := aggregate.New(mirror, 16)
	reader := newFakeReader()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		agg.Run(ctx, reader)
		close(done)
	}()

	reader.events <- stackEvent(1, ebpf.StackComplete, 1)

	select {
	case sample := <-agg.Samples:
		assert.Equal(t, []string{"foo"}, sample.Sequence)
		assert.False(t, sample.Incomplete)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for sample")
	}

	cancel()
	<-done
}
