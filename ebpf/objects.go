// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package ebpf // import "github.com/rbperf-go/rbperf/ebpf"

import (
	"bytes"
	"errors"

	cebpf "github.com/cilium/ebpf"
)

// ErrNoCompiledObject is returned by LoadCollectionSpec when the running
// architecture has no compiled rubywalk.bpf.c object embedded in this
// build. Producing that object is a separate build step; this repository
// ships the restricted-C source (rubywalk.bpf.c) and a loader that
// expects the result at a well-known embed path, not a compiler.
var ErrNoCompiledObject = errors.New("ebpf: no compiled rubywalk object embedded for this architecture")

// LoadCollectionSpec loads the eBPF map and program specifications from
// the embedded compiled object for the running architecture. It does not
// load anything into the kernel; callers rewrite map placeholders and
// config constants first, the way tracer.go's initializeMapsAndPrograms
// does.
func LoadCollectionSpec() (*cebpf.CollectionSpec, error) {
	if len(rubywalkObject) == 0 {
		return nil, ErrNoCompiledObject
	}
	return cebpf.LoadCollectionSpecFromReader(bytes.NewReader(rubywalkObject))
}
