// Package rubyabi implements the CRuby version-offsets registry: the
// compile-time table of struct-field offsets that the in-kernel stack
// walker needs to chase pointers through a target process's VM, plus
// the line-number resolution that reads the same tables.
//
// CRuby does not provide introspection for its internal struct layouts,
// so every offset below is hard-coded per version range, the same way
// the reference interpreter's own unwinder hard-codes them.
package rubyabi

// RUBY_T_* type tags, from ruby/internal/value_type.h. Identity is by
// masking RBasic.flags with rubyTMask.
const (
	RubyTString = 0x5
	RubyTArray  = 0x7
	RubyTMask   = 0x1f
)

// StringOnHeap is the RSTRING_NOEMBED flag bit; when set the string's
// bytes live on the heap behind a pointer instead of embedded inline.
const StringOnHeap = 1 << 13

// PathFlavour distinguishes the two layouts CRuby has used for
// rb_iseq_location_struct.pathobj across versions.
type PathFlavour int

const (
	// PathFlavourString means pathobj points directly at an RString.
	PathFlavourString PathFlavour = 0
	// PathFlavourArray means pathobj points at a 2-element RArray
	// of [realpath, path]; the realpath slot is read.
	PathFlavourArray PathFlavour = 1
)

// PathObjRealPathIndex is the slot within the [realpath, path] array
// variant of pathobj that holds the canonical path.
const PathObjRealPathIndex = 1

// RubyVersionOffsets is the per-version field-offset table consumed by
// the in-kernel walker (via the version_specific_offsets map) and by
// this package's line-number resolver. Field names mirror the spec's
// data model; values are byte offsets within the named C struct unless
// otherwise noted.
type RubyVersionOffsets struct {
	// MainThreadOffset is the offset of the main ractor/thread pointer
	// relative to the process's current-context global. Zero when the
	// global already points directly at the execution context.
	MainThreadOffset uint32
	// ECOffset is rb_ractor_struct.running_ec, or 0 pre-ractor versions
	// where the global already is the EC pointer.
	ECOffset uint32

	// VMOffset and VMSizeOffset are rb_execution_context_struct.vm_stack
	// and .vm_stack_size.
	VMOffset     uint8
	VMSizeOffset uint8
	// CFPOffset is rb_execution_context_struct.cfp.
	CFPOffset uint8

	// ControlFrameSizeof is sizeof(rb_control_frame_struct) for this
	// version range; it changed twice across supported versions.
	ControlFrameSizeof uint32
	// IseqOffset is rb_control_frame_struct.iseq.
	IseqOffset uint8

	// BodyOffset is rb_iseq_struct.body.
	BodyOffset uint8
	// IseqEncodedOffset is rb_iseq_constant_body.encoded.
	IseqEncodedOffset uint8
	// IseqSizeOffset is rb_iseq_constant_body.size (unused by the
	// walker directly but retained for completeness of the mirrored
	// offset table).
	IseqSizeOffset uint8

	// RubyLocationOffset is rb_iseq_constant_body.location.
	RubyLocationOffset uint8
	// PathOffset is rb_iseq_location_struct.pathobj, relative to the
	// start of rb_iseq_location_struct (added to RubyLocationOffset).
	PathOffset uint8
	// LabelOffset is rb_iseq_location_struct.base_label.
	LabelOffset uint8

	// PathFlavour selects how pathobj is interpreted for this version.
	PathFlavour PathFlavour

	// LineInfoSizeOffset is rb_iseq_constant_body.insn_info_size.
	LineInfoSizeOffset uint8
	// LineInfoTableOffset is rb_iseq_constant_body.insn_info_body.
	LineInfoTableOffset uint8
	// SuccIndexTableOffset is rb_iseq_constant_body.succ_index_table;
	// pre-2.6 versions (non-zero PositionSize) use LineInfoTableOffset
	// as a flat, binary-searchable array instead and do not read this
	// field.
	SuccIndexTableOffset uint8
	// IseqConstantBodySizeof is used to bound a single bulk-read of
	// the rb_iseq_constant_body struct during line-number resolution.
	IseqConstantBodySizeof uint32

	// LinenoOffset is iseq_insn_info_entry.line_no, the obsolete
	// (pre-2.6) flat-table entry layout.
	LinenoOffset        uint8
	PositionOffset       uint8
	PositionSize         uint8
	LinenoSize           uint8
	InsnInfoEntrySizeof  uint8

	// AsOffset is RString/RArray's "as" union offset (as.heap.ptr for
	// heap strings, as.ary / as.embed.ary for embedded ones).
	AsOffset     uint8
	AsHeapOffset uint8

	// ArrayAsOffset/ArrayAsHeapOffset mirror AsOffset/AsHeapOffset for
	// RArray, whose embedded-vs-heap layout differs from RString's.
	ArrayAsOffset     uint8
	ArrayAsHeapOffset uint8

	// RValueSizeof is sizeof(VALUE), always 8 on every 64-bit target
	// this registry supports.
	RValueSizeof uint32

	// SuccDictBlock carries the succinct table's small-block constants,
	// needed by the post-2.6 line-number binary search.
	SuccDictBlock SuccDictBlockOffsets

	// RunningECOffset is rb_ractor_struct.running_ec for Ruby >= 3.0,
	// architecture-dependent (padding differs between amd64/arm64).
	RunningECOffset uint32
}

// SuccDictBlockOffsets mirrors the succ_index_table_struct fields used
// to walk the succinct line-number table introduced in Ruby 2.6.
type SuccDictBlockOffsets struct {
	SmallBlockRanks uint32
	BlockBits       uint32
	SuccPart        uint32
	Sizeof          uint32
	ImmediateTable  uint32
}
