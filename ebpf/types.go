// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package ebpf carries the restricted-loop kernel program source
// (rubywalk.bpf.c) and the Go-side map/program loader for it. The
// structs below mirror the kernel program's map value layouts byte for
// byte; field order and padding must stay in lockstep with
// rubywalk.bpf.c.
package ebpf // import "github.com/rbperf-go/rbperf/ebpf"

const (
	// MaxStack bounds the number of frames a single RubyStack can carry.
	MaxStack = 128
	// MaxStacksPerProgram bounds how many control frames a single
	// invocation of walk_ruby_stack chases before tail-calling itself.
	MaxStacksPerProgram = 16
	// BPFProgramsCount bounds the number of times walk_ruby_stack may
	// tail-call itself while chasing a single stack, matching
	// BPF_PROGRAMS_COUNT in types.h.
	BPFProgramsCount = MaxStack / MaxStacksPerProgram
	// MaxMethodNameLength and MaxPathLength bound the fixed-size string
	// fields copied out of the target process's Ruby heap.
	MaxMethodNameLength = 64
	MaxPathLength       = 128
)

// StackStatus mirrors rbperf's stack_status enum: whether a RubyStack's
// frames slice was fully walked to the end of the call stack, or cut
// short by a tail-call budget or a corrupted pointer chase.
type StackStatus uint8

const (
	StackComplete   StackStatus = 0
	StackIncomplete StackStatus = 1
)

// RubyFrame is the kernel's per-frame record: a fixed-size method name
// and source path plus the resolved line number. This is also the key
// type for the stack_to_id map, so its layout must be free of padding
// holes the verifier would otherwise treat as indeterminate bytes.
type RubyFrame struct {
	MethodName [MaxMethodNameLength]byte
	Path       [MaxPathLength]byte
	Lineno     int32
	_          [4]byte // pad to 8-byte alignment, matches kernel struct
}

// ProcessData is the pid_to_rb_thread map value: enough to locate a
// process's current Ruby thread without re-running procinspect on every
// sample. StartTime is zero until on_event's first sample for this pid;
// from then on it pins the sample to that exact task, guarding against
// pid reuse.
type ProcessData struct {
	RbFrameAddr uint64
	RbVersion   uint32
	_           [4]byte
	StartTime   uint64
}

// RubyStack is the events map's wire record: the profiling sample sent
// from kernel to user space.
type RubyStack struct {
	TimestampNS  uint64
	PID          uint32
	CPU          uint32
	SyscallID    uint32
	Comm         [16]byte
	Size         uint32
	ExpectedSize uint32
	StackStatus  StackStatus
	_            [3]byte
	Frames       [MaxStack]uint32
}

// SampleState is the per-CPU scratch state the walker threads through
// its tail-call chain; it never crosses the kernel/user boundary.
type SampleState struct {
	RbVersion             uint32
	BaseStack             uint64
	CFP                   uint64
	RubyStackProgramCount uint32
	Stack                 RubyStack
}

// KernelVersionOffsets mirrors RubyVersionOffsets as laid out for the
// version_specific_offsets map; this is the subset the kernel program
// dereferences directly, a flattened view of rubyabi.RubyVersionOffsets.
type KernelVersionOffsets struct {
	MainThreadOffset     uint32
	ECOffset             uint32
	VMOffset             uint8
	VMSizeOffset         uint8
	CFPOffset            uint8
	_                    uint8
	ControlFrameSizeof   uint32
	CFPIseqOffset        uint8
	BodyOffset           uint8
	IseqEncodedOffset    uint8
	IseqSizeOffset       uint8
	RubyLocationOffset   uint8
	PathOffset           uint8
	LabelOffset          uint8
	PathFlavour          uint8
	LineInfoSizeOffset   uint8
	LineInfoTableOffset  uint8
	SuccIndexTableOffset uint8
	_                    uint8
	AsOffset             uint8
	AsHeapOffset         uint8
	ArrayAsOffset        uint8
	ArrayAsHeapOffset    uint8
	RValueSizeof         uint32

	// The remaining fields feed read_ruby_lineno's in-kernel binary
	// search over the iseq's position table: PositionOffset/PositionSize
	// select the pre-2.6 flat-array layout (PositionSize != 0) versus the
	// post-2.6 succinct dictionary, LinenoOffset/InsnInfoEntrySizeof
	// describe the line-table entry shape for either layout, and the
	// Succ* fields are the succinct dictionary's small-block constants
	// (rubyabi.SuccDictBlockOffsets, invariant across every version this
	// registry carries today but still passed through per-slot rather
	// than hard-coded, since the table shape is itself version data).
	PositionOffset      uint8
	PositionSize        uint8
	LinenoOffset        uint8
	InsnInfoEntrySizeof uint8
	SuccSmallBlockRanks uint32
	SuccBlockBits       uint32
	SuccPart            uint32
	SuccBlockSizeof     uint32
	SuccImmediateTable  uint32
}
