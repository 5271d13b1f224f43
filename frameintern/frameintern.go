// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package frameintern provides the user-space mirror of the kernel's
// id_to_stack map: a content-addressed cache that avoids re-querying the
// kernel for frame ids already resolved, and avoids re-formatting
// identical frame content seen through different ids or pids.
package frameintern // import "github.com/rbperf-go/rbperf/frameintern"

import (
	"fmt"

	lru "github.com/elastic/go-freelru"
	"github.com/zeebo/xxh3"

	"github.com/rbperf-go/rbperf/ebpf"
)

// Source looks up a frame_id in the kernel's id_to_stack map. Production
// callers back this with a *cebpf.Map; tests back it with a plain map.
type Source interface {
	LookupFrame(id uint32) (ebpf.RubyFrame, bool)
}

// Default sizes for the two caches a Mirror holds. Both are tiny
// relative to typical process memory: a profiling run rarely sees more
// than a few thousand distinct call sites.
const (
	DefaultIDCacheSize   = 16384
	DefaultNameCacheSize = 16384
)

// NativeFrameSentinel is the method name the kernel walker writes for a
// frame read while iseq == NULL: a call site below the Ruby VM that this
// repository does not walk (walking native frames is out of scope).
const NativeFrameSentinel = "<native code>"

// contentKey is the xxh3 hash of a RubyFrame's method name, path and
// line number; two frames with identical content hash identically
// regardless of which frame_id the kernel happened to assign them,
// letting the name cache dedupe across pids and across kernel restarts
// (which reassign random frame_ids on every find_or_insert_frame).
type contentKey uint64

func hashFrame(f *ebpf.RubyFrame) contentKey {
	var buf [MaxHashInput]byte
	n := copy(buf[:], f.MethodName[:])
	n += copy(buf[n:], f.Path[:])
	buf[n] = byte(f.Lineno)
	buf[n+1] = byte(f.Lineno >> 8)
	buf[n+2] = byte(f.Lineno >> 16)
	buf[n+3] = byte(f.Lineno >> 24)
	return contentKey(xxh3.Hash(buf[:n+4]))
}

// MaxHashInput bounds the scratch buffer hashFrame hashes from; it must
// fit the largest RubyFrame plus its 4-byte line number.
const MaxHashInput = ebpf.MaxMethodNameLength + ebpf.MaxPathLength + 4

// Mirror is the user-space cache of kernel frame_id -> RubyFrame
// resolutions, plus a secondary cache of resolved display strings keyed
// by frame content rather than frame_id.
type Mirror struct {
	source Source

	ids   *lru.LRU[uint32, ebpf.RubyFrame]
	names *lru.LRU[contentKey, string]

	hits   uint64
	misses uint64
}

// NewMirror builds a Mirror backed by source, which resolves frame_ids
// this process has not yet seen.
func NewMirror(source Source) (*Mirror, error) {
	ids, err := lru.New[uint32, ebpf.RubyFrame](DefaultIDCacheSize,
		func(k uint32) uint32 { return k })
	if err != nil {
		return nil, fmt.Errorf("frameintern: failed to create id cache: %w", err)
	}
	names, err := lru.New[contentKey, string](DefaultNameCacheSize,
		func(k contentKey) uint32 { return uint32(k) })
	if err != nil {
		return nil, fmt.Errorf("frameintern: failed to create name cache: %w", err)
	}
	return &Mirror{source: source, ids: ids, names: names}, nil
}

// ErrUnknownFrameID is returned when a frame_id is absent from both the
// local cache and the kernel's id_to_stack map; this indicates either a
// corrupted stack_to_id/id_to_stack pair or a race with map eviction.
type ErrUnknownFrameID struct {
	ID uint32
}

func (e *ErrUnknownFrameID) Error() string {
	return fmt.Sprintf("frameintern: unknown frame_id %d", e.ID)
}

// Resolve returns the RubyFrame for id, consulting the local cache
// before falling back to the kernel map. Subsequent calls with the same
// id never touch the kernel map again (Testable Property 2: round-trip
// identity).
func (m *Mirror) Resolve(id uint32) (ebpf.RubyFrame, error) {
	if frame, ok := m.ids.Get(id); ok {
		m.hits++
		return frame, nil
	}
	m.misses++

	frame, ok := m.source.LookupFrame(id)
	if !ok {
		return ebpf.RubyFrame{}, &ErrUnknownFrameID{ID: id}
	}
	m.ids.Add(id, frame)
	return frame, nil
}

// DisplayName formats and caches frame's "path:lineno in 'method'"
// display string, keyed by frame content rather than frame_id, so
// identical call sites sampled from different processes or under
// different kernel-assigned ids still hit the cache.
func (m *Mirror) DisplayName(frame *ebpf.RubyFrame) string {
	key := hashFrame(frame)
	if name, ok := m.names.Get(key); ok {
		return name
	}

	method := cString(frame.MethodName[:])
	path := cString(frame.Path[:])
	if method == NativeFrameSentinel {
		name := method
		m.names.Add(key, name)
		return name
	}

	name := fmt.Sprintf("%s:%d in '%s'", path, frame.Lineno, method)
	m.names.Add(key, name)
	return name
}

// Stats reports cumulative hit/miss counts for the id cache.
func (m *Mirror) Stats() (hits, misses uint64) {
	return m.hits, m.misses
}

func cString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
