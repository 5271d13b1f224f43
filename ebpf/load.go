// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package ebpf // import "github.com/rbperf-go/rbperf/ebpf"

import (
	"fmt"

	cebpf "github.com/cilium/ebpf"
	log "github.com/sirupsen/logrus"

	"github.com/rbperf-go/rbperf/rlimit"
)

// TransportKind selects which kernel-to-user delivery mechanism the
// events map is rewritten to before load.
type TransportKind int

const (
	TransportPerfBuffer TransportKind = iota
	TransportRingBuffer
)

// LoadOptions configures the const-volatile variables the kernel program
// reads (verbose, use_ringbuf, enable_pid_race_detector, filter_syscalls)
// and which map type the placeholder events map is rewritten to,
// mirroring tracer.go's constant-patching idiom.
type LoadOptions struct {
	Transport             TransportKind
	Verbose               bool
	EnablePIDRaceDetector bool
	FilterSyscalls        bool
}

// Objects holds the loaded, kernel-resident maps and programs for the
// Ruby stack walker.
type Objects struct {
	Maps     map[string]*cebpf.Map
	Programs map[string]*cebpf.Program
}

// Close unloads every map and program, logging but not failing on
// individual close errors, matching Tracer.Close's best-effort cleanup.
func (o *Objects) Close() {
	for name, p := range o.Programs {
		if err := p.Close(); err != nil {
			log.Errorf("ebpf: failed to close program %q: %v", name, err)
		}
	}
	for name, m := range o.Maps {
		if err := m.Close(); err != nil {
			log.Errorf("ebpf: failed to close map %q: %v", name, err)
		}
	}
}

// Load loads the rubywalk collection spec into the kernel: rewrites the
// events map placeholder to the configured transport type, patches the
// const-volatile tunables, loads every map, rewrites map references in
// the program bytecode, and loads every program in it. RLIMIT_MEMLOCK is
// maximized for the duration and restored afterward.
func Load(opts LoadOptions) (*Objects, error) {
	coll, err := LoadCollectionSpec()
	if err != nil {
		return nil, fmt.Errorf("ebpf: failed to load collection spec: %w", err)
	}

	eventsSpec, ok := coll.Maps["events"]
	if !ok {
		return nil, fmt.Errorf("ebpf: collection spec is missing the events map")
	}
	if opts.Transport == TransportRingBuffer {
		eventsSpec.Type = cebpf.RingBuf
		eventsSpec.KeySize = 0
		eventsSpec.ValueSize = 0
		eventsSpec.MaxEntries = 1 << 22 // 4 MiB ring, scaled by build flag upstream
	} else {
		eventsSpec.Type = cebpf.PerfEventArray
	}

	if err := coll.RewriteConstants(map[string]interface{}{
		"verbose":                  opts.Verbose,
		"use_ringbuf":              opts.Transport == TransportRingBuffer,
		"enable_pid_race_detector": opts.EnablePIDRaceDetector,
		"filter_syscalls":          opts.FilterSyscalls,
	}); err != nil {
		return nil, fmt.Errorf("ebpf: failed to rewrite constants: %w", err)
	}

	restoreRlimit, err := rlimit.MaximizeMemlock()
	if err != nil {
		return nil, fmt.Errorf("ebpf: failed to adjust rlimit: %w", err)
	}
	defer restoreRlimit()

	maps := make(map[string]*cebpf.Map, len(coll.Maps))
	for name, spec := range coll.Maps {
		m, err := cebpf.NewMap(spec)
		if err != nil {
			closeMaps(maps)
			return nil, fmt.Errorf("ebpf: failed to load map %q: %w", name, err)
		}
		maps[name] = m
	}

	//nolint:staticcheck
	if err := coll.RewriteMaps(maps); err != nil {
		closeMaps(maps)
		return nil, fmt.Errorf("ebpf: failed to rewrite map references: %w", err)
	}

	progs := make(map[string]*cebpf.Program, len(coll.Programs))
	for name, spec := range coll.Programs {
		p, err := cebpf.NewProgram(spec)
		if err != nil {
			closeMaps(maps)
			closePrograms(progs)
			return nil, fmt.Errorf("ebpf: failed to load program %q: %w", name, err)
		}
		progs[name] = p
	}

	tailcallMap, ok := maps["programs"]
	if !ok {
		closeMaps(maps)
		closePrograms(progs)
		return nil, fmt.Errorf("ebpf: collection spec is missing the programs tail-call map")
	}
	if walker, ok := progs["walk_ruby_stack"]; ok {
		idx := uint32(0) // RBPERF_STACK_READING_PROGRAM_IDX
		fd := uint32(walker.FD())
		if err := tailcallMap.Update(&idx, &fd, cebpf.UpdateAny); err != nil {
			closeMaps(maps)
			closePrograms(progs)
			return nil, fmt.Errorf("ebpf: failed to install tail-call target: %w", err)
		}
	}

	return &Objects{Maps: maps, Programs: progs}, nil
}

func closeMaps(maps map[string]*cebpf.Map) {
	for _, m := range maps {
		_ = m.Close()
	}
}

func closePrograms(progs map[string]*cebpf.Program) {
	for _, p := range progs {
		_ = p.Close()
	}
}
