// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package aggregate folds the raw RubyStack samples a transport.Reader
// delivers into per-call-site counts, symbolizing frame ids through a
// frameintern.Mirror along the way. Grounded on tracehandler's
// accumulate-then-emit shape: a cache in front of repeated work, a
// counter map keyed by a hashable identity, and a periodic drain.
package aggregate // import "github.com/rbperf-go/rbperf/aggregate"

import (
	"context"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/rbperf-go/rbperf/ebpf"
	"github.com/rbperf-go/rbperf/transport"
)

// incompleteBucket is the distinguished sequence key for stacks that hit
// the tail-call budget or a corrupted pointer chase before reaching the
// end of the call stack. Kept separate so truncated stacks are visible
// without corrupting complete-stack statistics.
const incompleteBucket = "[incomplete]"

// Folded is one distinct call-site sequence and how many times it was
// sampled. Sequence is ordered innermost-frame-first, matching the
// order walk_ruby_stack appends frames in.
type Folded struct {
	Sequence []string
	Count    uint64
}

// Sample is a single resolved stack, emitted on the Aggregator's Samples
// channel for consumers that want per-sample data rather than folded
// counts (e.g. streaming exporters).
type Sample struct {
	PID         uint32
	CPU         int
	TimestampNS uint64
	Comm        string
	Sequence    []string
	Incomplete  bool
}

// Summary is the final, folded view of everything an Aggregator has
// seen, returned by Close.
type Summary struct {
	Folded       []Folded
	TotalSamples uint64
	Incomplete   uint64
	MirrorHits   uint64
	MirrorMisses uint64
}

// Mirror is the subset of frameintern.Mirror the aggregator needs.
type Mirror interface {
	Resolve(id uint32) (ebpf.RubyFrame, error)
	DisplayName(frame *ebpf.RubyFrame) string
	Stats() (hits, misses uint64)
}

// Aggregator consumes a transport.Reader's event stream and folds it
// into per-sequence counts. One Aggregator can serve several Readers:
// fan-in across readers happens by running Run against each reader's
// channel concurrently and sharing a single Aggregator instance,
// guarded by mu.
type Aggregator struct {
	mirror Mirror

	mu      sync.Mutex
	counts  map[string]*Folded
	samples uint64
	incompl uint64

	Samples chan Sample
}

// New builds an Aggregator that resolves frame ids through mirror.
// Samples is buffered so a slow consumer cannot stall the reader
// goroutines feeding Run; full buffers drop the new sample and log a
// warning, never block (per the per-sample-error handling this
// repository uses everywhere else: soft errors are counted and
// logged, never allowed to back-pressure the kernel's event delivery).
func New(mirror Mirror, sampleBuffer int) *Aggregator {
	return &Aggregator{
		mirror:  mirror,
		counts:  make(map[string]*Folded),
		Samples: make(chan Sample, sampleBuffer),
	}
}

// Run drains events from r until ctx is cancelled or r's channel closes,
// folding each into the running counts and forwarding a Sample on the
// Samples channel. Safe to call concurrently from multiple goroutines
// against the same Aggregator, one per transport.Reader.
func (a *Aggregator) Run(ctx context.Context, r transport.Reader) {
	events := r.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			a.handle(ev)
		}
	}
}

func (a *Aggregator) handle(ev *transport.Event) {
	stack := &ev.Stack
	incomplete := stack.StackStatus == ebpf.StackIncomplete

	a.mu.Lock()
	seq := make([]string, 0, stack.Size)
	for i := uint32(0); i < stack.Size && i < ebpf.MaxStack; i++ {
		frame, err := a.mirror.Resolve(stack.Frames[i])
		if err != nil {
			log.Debugf("aggregate: dropping unresolved frame id %d: %v", stack.Frames[i], err)
			continue
		}
		seq = append(seq, a.mirror.DisplayName(&frame))
	}

	a.samples++
	if incomplete {
		a.incompl++
		a.fold(incompleteBucket, seq)
	} else {
		a.fold(sequenceKey(seq), seq)
	}
	a.mu.Unlock()

	sample := Sample{
		PID:         stack.PID,
		CPU:         int(stack.CPU),
		TimestampNS: stack.TimestampNS,
		Comm:        cString(stack.Comm[:]),
		Sequence:    seq,
		Incomplete:  incomplete,
	}
	select {
	case a.Samples <- sample:
	default:
		log.Warn("aggregate: samples channel full, dropping sample")
	}
}

// fold must be called with a.mu held.
func (a *Aggregator) fold(key string, seq []string) {
	f, ok := a.counts[key]
	if !ok {
		f = &Folded{Sequence: seq}
		a.counts[key] = f
	}
	f.Count++
}

// sequenceKey collapses a frame sequence into the counts map key. Two
// sequences with identical display names collapse to one entry
// regardless of the underlying frame_ids, matching the mirror's own
// content-addressed dedup.
func sequenceKey(seq []string) string {
	if len(seq) == 0 {
		return ""
	}
	return strings.Join(seq, "\x00")
}

// Summary returns a snapshot of everything folded so far; safe to call
// while Run is still draining events.
func (a *Aggregator) Summary() Summary {
	a.mu.Lock()
	defer a.mu.Unlock()

	folded := make([]Folded, 0, len(a.counts))
	for _, f := range a.counts {
		folded = append(folded, *f)
	}
	hits, misses := a.mirror.Stats()
	return Summary{
		Folded:       folded,
		TotalSamples: a.samples,
		Incomplete:   a.incompl,
		MirrorHits:   hits,
		MirrorMisses: misses,
	}
}

// Close finalizes the aggregator: closes the Samples channel so
// downstream consumers observe the end of the run, and returns the
// final Summary. Callers must ensure no Run goroutine is still writing
// before calling Close.
func (a *Aggregator) Close() Summary {
	summary := a.Summary()
	close(a.Samples)
	return summary
}

func cString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
