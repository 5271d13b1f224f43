// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package ebpf // import "github.com/rbperf-go/rbperf/ebpf"

import "github.com/rbperf-go/rbperf/rubyabi"

// FlattenOffsets projects a rubyabi.RubyVersionOffsets table into the
// fixed-layout struct written to the version_specific_offsets map, so
// the kernel walker can dereference it directly. This includes the
// line-table fields read_ruby_lineno needs to binary-search the iseq's
// position table in-kernel, matching rubyabi.LineNumber's user-space
// algorithm (§9's redesign) rather than returning the table's last slot.
func FlattenOffsets(o *rubyabi.RubyVersionOffsets) KernelVersionOffsets {
	return KernelVersionOffsets{
		MainThreadOffset:     o.MainThreadOffset,
		ECOffset:             o.ECOffset,
		VMOffset:             o.VMOffset,
		VMSizeOffset:         o.VMSizeOffset,
		CFPOffset:            o.CFPOffset,
		ControlFrameSizeof:   o.ControlFrameSizeof,
		CFPIseqOffset:        o.IseqOffset,
		BodyOffset:           o.BodyOffset,
		IseqEncodedOffset:    o.IseqEncodedOffset,
		IseqSizeOffset:       o.IseqSizeOffset,
		RubyLocationOffset:   o.RubyLocationOffset,
		PathOffset:           o.PathOffset,
		LabelOffset:          o.LabelOffset,
		PathFlavour:          uint8(o.PathFlavour),
		LineInfoSizeOffset:   o.LineInfoSizeOffset,
		LineInfoTableOffset:  o.LineInfoTableOffset,
		SuccIndexTableOffset: o.SuccIndexTableOffset,
		AsOffset:             o.AsOffset,
		AsHeapOffset:         o.AsHeapOffset,
		ArrayAsOffset:        o.ArrayAsOffset,
		ArrayAsHeapOffset:    o.ArrayAsHeapOffset,
		RValueSizeof:         o.RValueSizeof,
		PositionOffset:       o.PositionOffset,
		PositionSize:         o.PositionSize,
		LinenoOffset:         o.LinenoOffset,
		InsnInfoEntrySizeof:  o.InsnInfoEntrySizeof,
		SuccSmallBlockRanks:  o.SuccDictBlock.SmallBlockRanks,
		SuccBlockBits:        o.SuccDictBlock.BlockBits,
		SuccPart:             o.SuccDictBlock.SuccPart,
		SuccBlockSizeof:      o.SuccDictBlock.Sizeof,
		SuccImmediateTable:   o.SuccDictBlock.ImmediateTable,
	}
}
