// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package transport abstracts the two kernel-to-user delivery
// mechanisms a loaded rubywalk program can be configured to use: a
// per-CPU perf event array, read by a single reader goroutine that
// multiplexes every CPU's buffer, or a
// single global BPF ring buffer, read by one reader goroutine. Both
// transports decode the same RubyStack wire layout and feed it to a
// single Go channel.
package transport // import "github.com/rbperf-go/rbperf/transport"

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	cebpf "github.com/cilium/ebpf"

	"github.com/rbperf-go/rbperf/ebpf"
	"github.com/rbperf-go/rbperf/times"
)

// Event is a single decoded sample, timestamped at the moment this
// process received it rather than at kernel emission time: the
// restricted-loop program has no cheap access to bpf_ktime_get_ns at
// the point it calls bpf_perf_event_output/bpf_ringbuf_output without
// growing sample_state, so KTime here is a receive-side approximation.
type Event struct {
	Stack ebpf.RubyStack
	KTime times.KTime
	CPU   int
}

// Stats accumulates the per-sample soft-failure counts attributed to a
// transport per the original's attribution requirement. Lost and
// StackTruncated are incremented by the transport itself from what it
// can observe in the raw event stream; PidUnknown, VersionUnknown and
// PidReuseMismatch require cross-referencing the sampler's process
// table and are incremented by the sampler from the kernel's
// drop_reasons counters.
type Stats struct {
	lost             atomic.Uint64
	pidUnknown       atomic.Uint64
	versionUnknown   atomic.Uint64
	pidReuseMismatch atomic.Uint64
	stackTruncated   atomic.Uint64
	readErrors       atomic.Uint64
	noData           atomic.Uint64
}

func (s *Stats) AddLost(n uint64)     { s.lost.Add(n) }
func (s *Stats) AddPidUnknown()       { s.pidUnknown.Add(1) }
func (s *Stats) AddVersionUnknown()   { s.versionUnknown.Add(1) }
func (s *Stats) AddPidReuseMismatch() { s.pidReuseMismatch.Add(1) }
func (s *Stats) addStackTruncated()   { s.stackTruncated.Add(1) }
func (s *Stats) addReadError()        { s.readErrors.Add(1) }
func (s *Stats) addNoData()           { s.noData.Add(1) }

// Snapshot is a point-in-time copy of Stats suitable for logging or
// emitting as metrics, without exposing the atomics themselves.
type Snapshot struct {
	Lost             uint64
	PidUnknown       uint64
	VersionUnknown   uint64
	PidReuseMismatch uint64
	StackTruncated   uint64
	ReadErrors       uint64
	NoData           uint64
}

func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		Lost:             s.lost.Load(),
		PidUnknown:       s.pidUnknown.Load(),
		VersionUnknown:   s.versionUnknown.Load(),
		PidReuseMismatch: s.pidReuseMismatch.Load(),
		StackTruncated:   s.stackTruncated.Load(),
		ReadErrors:       s.readErrors.Load(),
		NoData:           s.noData.Load(),
	}
}

var sizeofRubyStack = int(unsafe.Sizeof(ebpf.RubyStack{}))

// decodeStack interprets raw as a RubyStack and records a
// StackTruncated soft failure when the kernel filled every slot of the
// frame array without reaching the bottom of the VM stack.
func decodeStack(raw []byte, stats *Stats) (ebpf.RubyStack, bool) {
	if len(raw) < sizeofRubyStack {
		return ebpf.RubyStack{}, false
	}
	stack := *(*ebpf.RubyStack)(unsafe.Pointer(&raw[0]))
	if stack.StackStatus == ebpf.StackIncomplete && stack.Size >= ebpf.MaxStack {
		stats.addStackTruncated()
	}
	return stack, true
}

// Reader is the interface both transport implementations satisfy: a
// channel of decoded events, drained by a single consumer goroutine
// (grounded on the teacher's tracehandler ingestion loop), plus
// best-effort error counters and a Close that stops the reader
// goroutine and releases the underlying map resources.
type Reader interface {
	Events() <-chan *Event
	Stats() Snapshot
	// StatsRef exposes the live Stats this reader accumulates into, so
	// a caller with cross-referenced drop-cause counts a transport
	// cannot observe on its own (PidUnknown, VersionUnknown,
	// PidReuseMismatch) can fold them in as they're detected.
	StatsRef() *Stats
	Close() error
}

// New builds the Reader matching kind against the loaded events map.
// bufferSize sizes the output channel; the caller should size it large
// enough that the consumer's processing latency never backs up into
// the reader goroutine's hot read loop.
func New(kind ebpf.TransportKind, eventsMap *cebpf.Map, bufferSize int) (Reader, error) {
	switch kind {
	case ebpf.TransportRingBuffer:
		return newRingbufReader(eventsMap, bufferSize)
	case ebpf.TransportPerfBuffer:
		return newPerfReader(eventsMap, bufferSize)
	default:
		return nil, fmt.Errorf("transport: unknown transport kind %d", kind)
	}
}
