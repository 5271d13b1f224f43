package ebpf

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rbperf-go/rbperf/rubyabi"
)

func TestFlattenOffsetsPreservesFields(t *testing.T) {
	version, err := rubyabi.ParseVersion("3.1.2")
	assert.NoError(t, err)

	src, err := rubyabi.Lookup(version)
	assert.NoError(t, err)

	flat := FlattenOffsets(src)
	assert.Equal(t, src.MainThreadOffset, flat.MainThreadOffset)
	assert.Equal(t, src.ECOffset, flat.ECOffset)
	assert.Equal(t, src.ControlFrameSizeof, flat.ControlFrameSizeof)
	assert.Equal(t, src.IseqOffset, flat.CFPIseqOffset)
	assert.Equal(t, src.BodyOffset, flat.BodyOffset)
	assert.Equal(t, src.IseqEncodedOffset, flat.IseqEncodedOffset)
	assert.Equal(t, src.RubyLocationOffset, flat.RubyLocationOffset)
	assert.Equal(t, src.PathOffset, flat.PathOffset)
	assert.Equal(t, src.LabelOffset, flat.LabelOffset)
	assert.Equal(t, uint8(src.PathFlavour), flat.PathFlavour)
	assert.Equal(t, src.LineInfoSizeOffset, flat.LineInfoSizeOffset)
	assert.Equal(t, src.LineInfoTableOffset, flat.LineInfoTableOffset)
	assert.Equal(t, src.SuccIndexTableOffset, flat.SuccIndexTableOffset)
	assert.Equal(t, src.RValueSizeof, flat.RValueSizeof)
	assert.Equal(t, src.PositionOffset, flat.PositionOffset)
	assert.Equal(t, src.PositionSize, flat.PositionSize)
	assert.Equal(t, src.LinenoOffset, flat.LinenoOffset)
	assert.Equal(t, src.InsnInfoEntrySizeof, flat.InsnInfoEntrySizeof)
	assert.Equal(t, src.SuccDictBlock.SmallBlockRanks, flat.SuccSmallBlockRanks)
	assert.Equal(t, src.SuccDictBlock.BlockBits, flat.SuccBlockBits)
	assert.Equal(t, src.SuccDictBlock.SuccPart, flat.SuccPart)
	assert.Equal(t, src.SuccDictBlock.Sizeof, flat.SuccBlockSizeof)
	assert.Equal(t, src.SuccDictBlock.ImmediateTable, flat.SuccImmediateTable)
}
