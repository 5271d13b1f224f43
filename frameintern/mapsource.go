// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package frameintern // import "github.com/rbperf-go/rbperf/frameintern"

import (
	cebpf "github.com/cilium/ebpf"

	"github.com/rbperf-go/rbperf/ebpf"
)

// MapSource resolves frame ids directly against the kernel's id_to_stack
// map, the slow path a Mirror falls back to on a cache miss.
type MapSource struct {
	idToStack *cebpf.Map
}

// NewMapSource wraps the id_to_stack map loaded by ebpf.Load.
func NewMapSource(idToStack *cebpf.Map) *MapSource {
	return &MapSource{idToStack: idToStack}
}

func (s *MapSource) LookupFrame(id uint32) (ebpf.RubyFrame, bool) {
	var frame ebpf.RubyFrame
	if err := s.idToStack.Lookup(&id, &frame); err != nil {
		return ebpf.RubyFrame{}, false
	}
	return frame, true
}
