package rubyabi

import (
	"fmt"
	"regexp"
	"runtime"
	"strconv"
)

// versionRegex extracts a dotted X.Y.Z version out of the `ruby_version`
// global's rodata bytes.
var versionRegex = regexp.MustCompile(`(\d+)\.(\d+)\.(\d+)`)

// Version is a packed major*0x10000 + minor*0x100 + release triple,
// ordered numerically the way the version ranges below expect.
type Version uint32

func NewVersion(major, minor, release uint32) Version {
	return Version(major*0x10000 + minor*0x100 + release)
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", (v>>16)&0xff, (v>>8)&0xff, v&0xff)
}

// ParseVersion extracts a Version from a string such as "ruby 3.1.2"
// or "3.1.2p123", taking the first X.Y.Z match.
func ParseVersion(s string) (Version, error) {
	m := versionRegex.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("rubyabi: no version triple found in %q", s)
	}
	major, _ := strconv.Atoi(m[1])
	minor, _ := strconv.Atoi(m[2])
	release, _ := strconv.Atoi(m[3])
	return NewVersion(uint32(major), uint32(minor), uint32(release)), nil
}

// MinSupportedVersion and MaxSupportedVersion bound the closed set of
// Ruby versions this registry carries offsets for. An implementer
// extending support must add a branch below, not widen these bounds
// blindly: the branches themselves are what encode which layout a
// version actually used.
var (
	MinSupportedVersion = NewVersion(2, 5, 0)
	MaxSupportedVersion = NewVersion(3, 3, 0) // exclusive
)

// ErrUnsupportedVersion is returned by Lookup for versions outside the
// closed, supported range. It corresponds to the original's
// UnsupportedRubyVersion per-process-fatal soft error.
type ErrUnsupportedVersion struct {
	Version Version
}

func (e *ErrUnsupportedVersion) Error() string {
	return fmt.Sprintf("rubyabi: unsupported Ruby version %s (need >= %s and < %s)",
		e.Version, MinSupportedVersion, MaxSupportedVersion)
}

// currentThreadSymbol returns the global symbol name that holds a
// pointer to (something that chains to) the current execution context,
// for a given version. Older versions stored this directly; modern
// versions point at the single main ractor, which embeds running_ec.
func currentThreadSymbol(v Version) string {
	if v < NewVersion(2, 5, 0) {
		return "ruby_current_thread"
	}
	if v < NewVersion(3, 0, 0) {
		return "ruby_current_execution_context_ptr"
	}
	return "ruby_single_main_ractor"
}

// CurrentThreadSymbol is the exported form of currentThreadSymbol, used
// by the process inspector to know which symbol to resolve for a given
// detected version (original spec §4.1 step 4).
func CurrentThreadSymbol(v Version) string {
	return currentThreadSymbol(v)
}

// InterpreterEntrySymbol returns the symbol whose address range the
// process inspector should publish as the "main interpreter loop"
// hint, used by native-unwinding collaborators to recognize the
// Ruby->native transition. Kept even though this repository does not
// itself walk native frames (a Non-goal): the symbol is cheap to
// resolve and other collaborators in a full deployment rely on it.
func InterpreterEntrySymbol(v Version) string {
	if v < NewVersion(2, 6, 0) {
		return "ruby_exec_node"
	}
	return "rb_vm_exec"
}

// Lookup returns the offset table for v, or ErrUnsupportedVersion.
func Lookup(v Version) (*RubyVersionOffsets, error) {
	if v < MinSupportedVersion || v >= MaxSupportedVersion {
		return nil, &ErrUnsupportedVersion{Version: v}
	}

	o := &RubyVersionOffsets{
		VMOffset:     0,
		VMSizeOffset: 8,
		CFPOffset:    16,

		IseqOffset: 16,
		BodyOffset: 16,

		RValueSizeof: 8,

		RubyLocationOffset: 64,
		PathOffset:          0,
		LabelOffset:         8,

		IseqEncodedOffset: 8,
		IseqSizeOffset:    4,

		AsHeapOffset:      24,
		ArrayAsHeapOffset: 32,
		ArrayAsOffset:     16,

		SuccDictBlock: SuccDictBlockOffsets{
			SmallBlockRanks: 8,
			BlockBits:       16,
			SuccPart:        48,
			Sizeof:          80,
			ImmediateTable:  54,
		},
	}

	switch {
	case v < NewVersion(2, 6, 0):
		o.ControlFrameSizeof = 48
		o.LineInfoTableOffset = 112
		o.LineInfoSizeOffset = 200
		o.SuccIndexTableOffset = 144
		o.IseqConstantBodySizeof = 288
		o.PositionOffset, o.PositionSize = 0, 4
		o.LinenoOffset, o.LinenoSize = 4, 4
		o.InsnInfoEntrySizeof = 12
	case v < NewVersion(3, 1, 0):
		o.ControlFrameSizeof = 56
		o.LineInfoTableOffset = 120
		o.LineInfoSizeOffset = 136
		o.SuccIndexTableOffset = 144
		o.IseqConstantBodySizeof = 312
		o.PositionOffset, o.PositionSize = 0, 0
		o.LinenoOffset, o.LinenoSize = 0, 4
		o.InsnInfoEntrySizeof = 8
	default:
		o.ControlFrameSizeof = 64
		o.LineInfoTableOffset = 112
		o.LineInfoSizeOffset = 128
		o.SuccIndexTableOffset = 136
		o.IseqConstantBodySizeof = 320
		o.PositionOffset, o.PositionSize = 0, 0
		o.LinenoOffset, o.LinenoSize = 0, 4
		o.InsnInfoEntrySizeof = 12
	}

	if v < NewVersion(3, 2, 0) {
		o.AsOffset = 16
	} else {
		o.AsOffset = 24
	}

	// Path flavour: every version in the supported range stores pathobj
	// as a direct RString pointer in practice for the common case, but
	// CRuby's compiled-with-.rb-in-memory case (eval'd code) can surface
	// the [realpath, path] array variant. The walker must handle both,
	// so path flavour here records which one is the *default* for this
	// version family's registered build; the walker's runtime type tag
	// check (RUBY_T_STRING vs RUBY_T_ARRAY) is what actually decides,
	// matching the original spec's §4.3 read_frame description.
	o.PathFlavour = PathFlavourArray

	if v >= NewVersion(3, 0, 0) {
		if runtime.GOARCH == "arm64" {
			o.RunningECOffset = 0x218
		} else {
			o.RunningECOffset = 0x208
		}
		o.MainThreadOffset = 0
		o.ECOffset = o.RunningECOffset
	} else {
		// Pre-ractor versions: the global points directly at the EC.
		o.MainThreadOffset = 0
		o.ECOffset = 0
	}

	return o, nil
}
