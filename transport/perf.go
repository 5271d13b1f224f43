// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package transport // import "github.com/rbperf-go/rbperf/transport"

import (
	"fmt"

	cebpf "github.com/cilium/ebpf"
	"github.com/cilium/ebpf/perf"
	log "github.com/sirupsen/logrus"

	"github.com/rbperf-go/rbperf/times"
)

// perfReader wraps a per-CPU perf event array. Every event written by
// the kernel wakes the reader immediately, grounded on
// startPerfEventMonitor's unconditional ReadInto loop.
type perfReader struct {
	rd     *perf.Reader
	events chan *Event
	stats  Stats
	done   chan struct{}
}

func newPerfReader(eventsMap *cebpf.Map, bufferSize int) (*perfReader, error) {
	rd, err := perf.NewReader(eventsMap, int(eventsMap.ValueSize())*8)
	if err != nil {
		return nil, fmt.Errorf("transport: failed to open perf reader: %w", err)
	}
	r := &perfReader{
		rd:     rd,
		events: make(chan *Event, bufferSize),
		done:   make(chan struct{}),
	}
	go r.run()
	return r, nil
}

func (r *perfReader) run() {
	defer close(r.done)
	var record perf.Record
	for {
		if err := r.rd.ReadInto(&record); err != nil {
			if err == perf.ErrClosed {
				return
			}
			r.stats.addReadError()
			continue
		}
		if record.LostSamples != 0 {
			r.stats.AddLost(record.LostSamples)
			continue
		}
		if len(record.RawSample) == 0 {
			r.stats.addNoData()
			continue
		}
		stack, ok := decodeStack(record.RawSample, &r.stats)
		if !ok {
			r.stats.addReadError()
			continue
		}
		select {
		case r.events <- &Event{Stack: stack, KTime: times.GetKTime(), CPU: record.CPU}:
		default:
			log.Warn("transport: perf event channel full, dropping sample")
		}
	}
}

func (r *perfReader) Events() <-chan *Event { return r.events }
func (r *perfReader) Stats() Snapshot       { return r.stats.Snapshot() }
func (r *perfReader) StatsRef() *Stats      { return &r.stats }
func (r *perfReader) Close() error {
	err := r.rd.Close()
	<-r.done
	close(r.events)
	return err
}
