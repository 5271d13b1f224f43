package rubyabi

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/bits"
)

// lineInfoSizeLimit bounds how much memory the binary search will
// allocate for a single iseq's line-info table. The value read from
// the target process cannot be validated any other way, so an upper
// bound guards against treating garbage as a huge allocation request.
const lineInfoSizeLimit = 1 * 1024 * 1024

// MemoryReader is the minimal interface the line-number resolver needs
// against a target process's (or a test fixture's) address space.
type MemoryReader interface {
	ReadAt(addr uint64, buf []byte) error
	Uint32At(addr uint64) (uint32, error)
	Uint64At(addr uint64) (uint64, error)
}

// LineNumber implements the redesigned (§9) line-number resolution:
// a binary search over the iseq's position table for the line
// corresponding to the greatest position <= pos, rather than the
// original rbperf behavior of always returning the iseq's last line.
// ebpf/rubywalk.bpf.c's read_ruby_lineno runs this same algorithm
// in-kernel against the sampled process's memory directly, so every
// emitted RubyFrame already carries its resolved line; this
// implementation exists as the tested, easier-to-audit reference it was
// ported from, and as a standalone tool for recomputing a line number
// against a process's memory outside of a live sampling run.
//
// iseqBody is the address of rb_iseq_constant_body; pc is the current
// control frame's program counter, exactly as received from the
// in-kernel walker's read_frame step.
func LineNumber(mem MemoryReader, o *RubyVersionOffsets, iseqBody, pc uint64) (uint32, error) {
	blob := make([]byte, o.IseqConstantBodySizeof)
	if err := mem.ReadAt(iseqBody, blob); err != nil {
		return 0, fmt.Errorf("rubyabi: read iseq_constant_body: %w", err)
	}

	iseqEncoded := binary.LittleEndian.Uint64(blob[o.IseqEncodedOffset : o.IseqEncodedOffset+8])
	size := binary.LittleEndian.Uint32(blob[o.LineInfoSizeOffset : o.LineInfoSizeOffset+4])

	if size == 0 {
		return 0, errors.New("rubyabi: iseq has no line-info entries")
	}
	if size == 1 {
		return binary.LittleEndian.Uint32(
			blob[o.LineInfoTableOffset : o.LineInfoTableOffset+4]), nil
	}
	if size > lineInfoSizeLimit {
		// Unvalidatable value from the target; report 0 rather than
		// risking an enormous read. The caller still gets path/method.
		return 0, nil
	}

	pos := (pc - iseqEncoded) / uint64(o.RValueSizeof)
	if pos != 0 {
		pos--
	}

	if o.SuccIndexTableOffset == 0 || o.PositionSize != 0 {
		// Pre-2.6 layout: a flat, sorted array of {position, line_no}.
		return obsoleteLineNo(mem, o, iseqBody, uint32(pos), size)
	}
	return succinctLineNo(mem, o, blob, pos)
}

// obsoleteLineNo binary-searches the pre-2.6 iseq_insn_info_entry
// table for the line whose position is the greatest one <= pos.
// Grounded on CRuby's own get_line_info binary search.
func obsoleteLineNo(mem MemoryReader, o *RubyVersionOffsets, iseqBody uint64,
	pos, size uint32) (uint32, error) {
	entrySize := uint32(o.InsnInfoEntrySizeof)
	tableAddr, err := mem.Uint64At(iseqBody + uint64(o.LineInfoTableOffset))
	if err != nil {
		return 0, fmt.Errorf("rubyabi: read line-info table pointer: %w", err)
	}

	blob := make([]byte, size*entrySize)
	if err := mem.ReadAt(tableAddr, blob); err != nil {
		return 0, fmt.Errorf("rubyabi: read line-info table: %w", err)
	}

	readEntry := func(i uint32) (entryPos, entryLine uint32) {
		base := i * entrySize
		entryPos = binary.LittleEndian.Uint32(
			blob[base+uint32(o.PositionOffset) : base+uint32(o.PositionOffset)+4])
		entryLine = binary.LittleEndian.Uint32(
			blob[base+uint32(o.LinenoOffset) : base+uint32(o.LinenoOffset)+4])
		return
	}

	left, right := uint32(1), size-1
	for left <= right {
		mid := left + (right-left)/2
		entryPos, entryLine := readEntry(mid)
		switch {
		case entryPos == pos:
			return entryLine, nil
		case entryPos < pos:
			left = mid + 1
		default:
			if mid == 0 {
				break
			}
			right = mid - 1
		}
	}

	if left >= size {
		_, line := readEntry(size - 1)
		return line, nil
	}
	entryPos, line := readEntry(left)
	if entryPos > pos && left > 0 {
		_, line = readEntry(left - 1)
	}
	return line, nil
}

// succinctLineNo implements the post-2.6 succ_index_lookup algorithm
// over the succinct position->line dictionary.
func succinctLineNo(mem MemoryReader, o *RubyVersionOffsets, bodyBlob []byte, pos uint64) (uint32, error) {
	succTableAddr := binary.LittleEndian.Uint64(
		bodyBlob[o.SuccIndexTableOffset : o.SuccIndexTableOffset+8])
	if succTableAddr == 0 {
		return 0, errors.New("rubyabi: no succinct line-info table")
	}

	block := o.SuccDictBlock
	var tableIndex uint32
	if pos < uint64(block.ImmediateTable) {
		i := pos / 9
		j := uint32(pos % 9)
		imm, err := mem.Uint64At(succTableAddr + i*8)
		if err != nil || imm == 0 {
			return 0, fmt.Errorf("rubyabi: read immediate table entry: %w", err)
		}
		tableIndex = immBlockRank(imm, j)
	} else {
		blockIndex := uint32((pos - uint64(block.ImmediateTable)) / 512)
		blockOffset := uint64(blockIndex * block.Sizeof)

		rank, err := mem.Uint32At(succTableAddr + uint64(block.SuccPart) + blockOffset)
		if err != nil || rank == 0 {
			return 0, fmt.Errorf("rubyabi: read block rank: %w", err)
		}

		blockBitIndex := uint32((pos - uint64(block.ImmediateTable)) % 512)
		smallBlockIndex := blockBitIndex / 64
		smallBlockOffset := uint64(smallBlockIndex) * 8

		smallBlockRanks, err := mem.Uint64At(succTableAddr + blockOffset +
			uint64(block.SuccPart+block.SmallBlockRanks))
		if err != nil || smallBlockRanks == 0 {
			return 0, fmt.Errorf("rubyabi: read small-block ranks: %w", err)
		}
		smallBlockPopcount := smallBlockRank(smallBlockRanks, smallBlockIndex)

		blockBits, err := mem.Uint64At(succTableAddr + blockOffset +
			uint64(block.SuccPart+block.BlockBits) + smallBlockOffset)
		if err != nil || blockBits == 0 {
			return 0, fmt.Errorf("rubyabi: read block bits: %w", err)
		}
		popCount := uint32(bits.OnesCount64(blockBits << (63 - blockBitIndex%64)))

		tableIndex = rank + smallBlockPopcount + popCount
	}
	tableIndex--

	lineTableAddr := binary.LittleEndian.Uint64(
		bodyBlob[o.LineInfoTableOffset : o.LineInfoTableOffset+8])
	if lineTableAddr == 0 {
		return 0, errors.New("rubyabi: no line table")
	}

	line, err := mem.Uint32At(lineTableAddr + uint64(tableIndex*uint32(o.InsnInfoEntrySizeof)))
	if err != nil {
		return 0, fmt.Errorf("rubyabi: read resolved line: %w", err)
	}
	return line, nil
}

// smallBlockRank and immBlockRank mirror CRuby's small_block_rank_get
// and imm_block_rank_get bit-packing macros (iseq.c).
func smallBlockRank(v uint64, i uint32) uint32 {
	if i == 0 {
		return 0
	}
	return uint32(v>>((i-1)*9)) & 0x1ff
}

func immBlockRank(v uint64, i uint32) uint32 {
	return uint32(v>>(i*7)) & 0x7f
}
