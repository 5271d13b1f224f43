// Package procinspect locates a running CRuby process's interpreter
// binary, determines its Ruby version, and resolves the symbols the
// in-kernel stack walker needs to find the current execution context.
package procinspect // import "github.com/rbperf-go/rbperf/procinspect"

import (
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/rbperf-go/rbperf/libpf"
	"github.com/rbperf-go/rbperf/libpf/pfelf"
	"github.com/rbperf-go/rbperf/proc"
	"github.com/rbperf-go/rbperf/process"
	"github.com/rbperf-go/rbperf/remotememory"
	"github.com/rbperf-go/rbperf/rubyabi"
)

// Kind discriminates the reasons a process cannot be profiled, so callers
// can decide whether to skip the pid or abort the run entirely.
type Kind int

const (
	// NoRubyBinary means none of the process's mappings look like a CRuby
	// interpreter (no libruby.so, no statically linked ruby binary with
	// a ruby_version symbol).
	NoRubyBinary Kind = iota
	// RubyVersionNotFound means a ruby_version string could not be read
	// out of the candidate binary's rodata.
	RubyVersionNotFound
	// UnsupportedRubyVersion means the version was read but falls
	// outside rubyabi's supported range.
	UnsupportedRubyVersion
	// NoCurrentThreadSymbol means the version-appropriate "current
	// execution context" global could not be resolved in the binary's
	// symbol table.
	NoCurrentThreadSymbol
	// NoSuchProcess means the pid no longer exists by the time it was
	// inspected.
	NoSuchProcess
)

func (k Kind) String() string {
	switch k {
	case NoRubyBinary:
		return "no ruby binary"
	case RubyVersionNotFound:
		return "ruby version not found"
	case UnsupportedRubyVersion:
		return "unsupported ruby version"
	case NoCurrentThreadSymbol:
		return "current thread symbol not found"
	case NoSuchProcess:
		return "no such process"
	default:
		return "unknown"
	}
}

// InspectError is a per-process-fatal soft error: the caller should skip
// this pid and continue, never abort the run.
type InspectError struct {
	Kind Kind
	PID  libpf.PID
	Err  error
}

func (e *InspectError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("procinspect: pid %d: %s: %v", e.PID, e.Kind, e.Err)
	}
	return fmt.Sprintf("procinspect: pid %d: %s", e.PID, e.Kind)
}

func (e *InspectError) Unwrap() error { return e.Err }

func newErr(pid libpf.PID, kind Kind, err error) *InspectError {
	return &InspectError{Kind: kind, PID: pid, Err: err}
}

// Result is everything the sampler controller needs to attach the
// stack-walking program to pid: the offsets table for its Ruby version
// and the address of the global holding the current execution context.
type Result struct {
	PID                 libpf.PID
	Version             rubyabi.Version
	Offsets             *rubyabi.RubyVersionOffsets
	MainThreadAddr      uint64
	InterpreterBinary   string
	InterpreterLoadBias uint64
	// BinaryFileID identifies the interpreter binary's on-disk contents.
	// A caller that re-inspects a pid later can compare this against the
	// previous Result to tell a fresh exec under a reused pid from a
	// live process whose binary never changed underneath it.
	BinaryFileID libpf.FileID
}

// rubyVersionSymbol is the global CRuby exports carrying its own dotted
// version string in rodata, present in every build from 2.x onward.
const rubyVersionSymbol = "ruby_version"

// looksLikeRubyBinary is tried against each executable mapping's path
// to find the CRuby interpreter or libruby shared object.
func looksLikeRubyBinary(path string) bool {
	base := path
	if idx := strings.LastIndexByte(path, '/'); idx >= 0 {
		base = path[idx+1:]
	}
	return base == "ruby" || strings.HasPrefix(base, "ruby3") ||
		strings.HasPrefix(base, "ruby2") || strings.HasPrefix(base, "libruby")
}

// Inspect implements the five-step process inspection contract: find the
// CRuby binary among pid's mappings, read its version, look up offsets,
// resolve the current-thread symbol, and compute the symbol's load
// address using the mapping's file-offset-to-vaddr mapper.
func Inspect(proc_ process.Process) (*Result, error) {
	pid := proc_.PID()

	live, err := proc.IsPIDLive(pid)
	if err != nil {
		log.Debugf("procinspect: liveness check for pid %d failed: %v", pid, err)
	}
	if !live {
		return nil, newErr(pid, NoSuchProcess, nil)
	}

	mappings, _, err := proc_.GetMappings()
	if err != nil {
		return nil, newErr(pid, NoSuchProcess, err)
	}

	var rubyMapping *process.Mapping
	var elfFile *pfelf.File
	for i := range mappings {
		m := &mappings[i]
		if !m.IsExecutable() || m.IsAnonymous() || m.IsVDSO() {
			continue
		}
		if !looksLikeRubyBinary(m.Path.String()) {
			continue
		}
		f, openErr := proc_.OpenELF(m.Path.String())
		if openErr != nil {
			continue
		}
		if _, lookupErr := f.LookupSymbol(libpf.SymbolName(rubyVersionSymbol)); lookupErr != nil {
			f.Close()
			continue
		}
		rubyMapping = m
		elfFile = f
		break
	}
	if rubyMapping == nil {
		return nil, newErr(pid, NoRubyBinary, nil)
	}
	defer elfFile.Close()

	version, err := readRubyVersion(proc_.GetRemoteMemory(), elfFile, rubyMapping)
	if err != nil {
		return nil, newErr(pid, RubyVersionNotFound, err)
	}

	offsets, err := rubyabi.Lookup(version)
	if err != nil {
		return nil, newErr(pid, UnsupportedRubyVersion, err)
	}

	symName := libpf.SymbolName(rubyabi.CurrentThreadSymbol(version))
	symAddr, err := elfFile.LookupSymbolAddress(symName)
	if err != nil || symAddr == libpf.SymbolValueInvalid {
		return nil, newErr(pid, NoCurrentThreadSymbol,
			fmt.Errorf("symbol %q: %w", symName, err))
	}

	mapper := elfFile.GetAddressMapper()
	vaddr, ok := mapper.FileOffsetToVirtualAddress(uint64(symAddr))
	if !ok {
		vaddr = uint64(symAddr)
	}
	loadBias := rubyMapping.Vaddr - rubyMapping.FileOffset
	mainThreadAddr := loadBias + vaddr

	fileID, err := proc_.CalculateMappingFileID(rubyMapping)
	if err != nil {
		log.Debugf("procinspect: pid %d: could not hash interpreter binary: %v", pid, err)
	}

	return &Result{
		PID:                 pid,
		Version:             version,
		Offsets:             offsets,
		MainThreadAddr:      mainThreadAddr,
		InterpreterBinary:   rubyMapping.Path.String(),
		InterpreterLoadBias: loadBias,
		BinaryFileID:        fileID,
	}, nil
}

// readRubyVersion finds the ruby_version symbol's virtual address in the
// running process and reads the dotted version string out of its rodata.
func readRubyVersion(mem remotememory.RemoteMemory, f *pfelf.File, m *process.Mapping) (
	rubyabi.Version, error) {
	sym, err := f.LookupSymbol(rubyVersionSymbol)
	if err != nil {
		return 0, err
	}
	mapper := f.GetAddressMapper()
	vaddr, ok := mapper.FileOffsetToVirtualAddress(uint64(sym.Address))
	if !ok {
		vaddr = uint64(sym.Address)
	}
	loadBias := m.Vaddr - m.FileOffset
	addr := libpf.Address(loadBias + vaddr)

	raw := mem.String(addr)
	if raw == "" {
		return 0, errors.New("empty ruby_version string")
	}
	return rubyabi.ParseVersion(raw)
}
