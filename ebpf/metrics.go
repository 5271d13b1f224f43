// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package ebpf // import "github.com/rbperf-go/rbperf/ebpf"

import (
	"fmt"

	cebpf "github.com/cilium/ebpf"
)

// Drop-reason indices into the drop_reasons kernel map, a
// BPF_MAP_TYPE_PERCPU_ARRAY of cumulative counters incremented by
// record_sample's early-return paths: the ones that need
// cross-referencing the sampler's process table to attribute, rather
// than being directly observable from a transport's own event stream.
// Mirrors the teacher's own eBPFMetricsCollector indexing scheme
// (tracer.go), scaled down to these three causes.
const (
	DropReasonPidUnknown uint32 = iota
	DropReasonVersionUnknown
	DropReasonPidReuseMismatch
	DropReasonCount
)

// DropCounts is drop_reasons' per-reason cumulative total, summed
// across CPUs.
type DropCounts [DropReasonCount]uint64

// ReadDropCounts sums every CPU's slot of the drop_reasons map into a
// cumulative DropCounts. Callers that want deltas (matching
// transport.Stats's increment-by-one counters) must diff two calls
// themselves, the same way eBPFMetricsCollector diffs against
// previousMetricValue.
func ReadDropCounts(m *cebpf.Map) (DropCounts, error) {
	var counts DropCounts
	for i := uint32(0); i < DropReasonCount; i++ {
		var perCPU []uint64
		if err := m.Lookup(&i, &perCPU); err != nil {
			return DropCounts{}, fmt.Errorf("ebpf: failed to read drop_reasons[%d]: %w", i, err)
		}
		for _, v := range perCPU {
			counts[i] += v
		}
	}
	return counts, nil
}
