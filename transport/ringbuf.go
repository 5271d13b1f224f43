// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package transport // import "github.com/rbperf-go/rbperf/transport"

import (
	"fmt"

	cebpf "github.com/cilium/ebpf"
	"github.com/cilium/ebpf/ringbuf"
	log "github.com/sirupsen/logrus"

	"github.com/rbperf-go/rbperf/times"
)

// ringbufReader wraps the single global BPF ring buffer. Unlike the
// per-CPU perf array, there is exactly one of these per loaded
// program regardless of CPU count.
type ringbufReader struct {
	rd     *ringbuf.Reader
	events chan *Event
	stats  Stats
	done   chan struct{}
}

func newRingbufReader(eventsMap *cebpf.Map, bufferSize int) (*ringbufReader, error) {
	rd, err := ringbuf.NewReader(eventsMap)
	if err != nil {
		return nil, fmt.Errorf("transport: failed to open ring buffer reader: %w", err)
	}
	r := &ringbufReader{
		rd:     rd,
		events: make(chan *Event, bufferSize),
		done:   make(chan struct{}),
	}
	go r.run()
	return r, nil
}

func (r *ringbufReader) run() {
	defer close(r.done)
	for {
		record, err := r.rd.Read()
		if err != nil {
			if err == ringbuf.ErrClosed {
				return
			}
			r.stats.addReadError()
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
		case r.events <- &Event{Stack: stack, KTime: times.GetKTime(), CPU: -1}:
		default:
			log.Warn("transport: ring buffer event channel full, dropping sample")
		}
	}
}

func (r *ringbufReader) Events() <-chan *Event { return r.events }
func (r *ringbufReader) Stats() Snapshot       { return r.stats.Snapshot() }
func (r *ringbufReader) StatsRef() *Stats      { return &r.stats }
func (r *ringbufReader) Close() error {
	err := r.rd.Close()
	<-r.done
	close(r.events)
	return err
}
