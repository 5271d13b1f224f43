package rubyabi

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeMemory is a flat byte-addressed fixture standing in for a target
// process's address space, keyed by absolute address for simplicity.
type fakeMemory struct {
	base uint64
	data []byte
}

func (m *fakeMemory) ReadAt(addr uint64, buf []byte) error {
	off := addr - m.base
	if off+uint64(len(buf)) > uint64(len(m.data)) {
		return assertErrOutOfRange
	}
	copy(buf, m.data[off:off+uint64(len(buf))])
	return nil
}

func (m *fakeMemory) Uint32At(addr uint64) (uint32, error) {
	var b [4]byte
	if err := m.ReadAt(addr, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func (m *fakeMemory) Uint64At(addr uint64) (uint64, error) {
	var b [8]byte
	if err := m.ReadAt(addr, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

type simpleError string

func (e simpleError) Error() string { return string(e) }

var assertErrOutOfRange = simpleError("fakeMemory: address out of range")

// buildObsoleteFixture lays out an iseq_constant_body followed by an
// obsolete-format line-info table with the given (position, line)
// pairs, for a pre-2.6 offsets table.
func buildObsoleteFixture(o *RubyVersionOffsets, iseqEncoded uint64, entries [][2]uint32) (*fakeMemory, uint64, uint64) {
	const bodyAddr = 0x10000
	const tableAddr = 0x20000

	body := make([]byte, o.IseqConstantBodySizeof)
	binary.LittleEndian.PutUint64(body[o.IseqEncodedOffset:], iseqEncoded)
	binary.LittleEndian.PutUint32(body[o.LineInfoSizeOffset:], uint32(len(entries)))
	binary.LittleEndian.PutUint64(body[o.LineInfoTableOffset:], tableAddr)

	table := make([]byte, len(entries)*int(o.InsnInfoEntrySizeof))
	for i, e := range entries {
		base := i * int(o.InsnInfoEntrySizeof)
		binary.LittleEndian.PutUint32(table[base+int(o.PositionOffset):], e[0])
		binary.LittleEndian.PutUint32(table[base+int(o.LinenoOffset):], e[1])
	}

	mem := &fakeMemory{base: bodyAddr, data: append(body, make([]byte, tableAddr-bodyAddr-uint64(len(body)))...)}
	mem.data = append(mem.data, table...)
	return mem, bodyAddr, tableAddr
}

func TestLineNumberObsoleteBinarySearch(t *testing.T) {
	o, err := Lookup(NewVersion(2, 5, 0))
	require.NoError(t, err)

	const iseqEncoded = 0x30000
	entries := [][2]uint32{{0, 10}, {4, 11}, {9, 13}, {20, 20}}
	mem, bodyAddr, _ := buildObsoleteFixture(o, iseqEncoded, entries)

	// pos = (pc - iseqEncoded)/8 - 1. Choose pc so pos lands between
	// table entries to exercise "greatest position <= pos".
	pc := iseqEncoded + 8*12 // pos = 12-1 = 11 -> greatest pos<=11 is 9 -> line 13
	line, err := LineNumber(mem, o, bodyAddr, pc)
	require.NoError(t, err)
	assert.EqualValues(t, 13, line)

	pc = iseqEncoded + 8*1 // pos = 0 -> exact match entry {0,10}
	line, err = LineNumber(mem, o, bodyAddr, pc)
	require.NoError(t, err)
	assert.EqualValues(t, 10, line)
}

func TestLineNumberSingleEntryShortCircuit(t *testing.T) {
	o, err := Lookup(NewVersion(2, 5, 0))
	require.NoError(t, err)

	const bodyAddr = 0x10000
	body := make([]byte, o.IseqConstantBodySizeof)
	binary.LittleEndian.PutUint32(body[o.LineInfoSizeOffset:], 1)
	binary.LittleEndian.PutUint32(body[o.LineInfoTableOffset:], 42)
	mem := &fakeMemory{base: bodyAddr, data: body}

	line, err := LineNumber(mem, o, bodyAddr, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 42, line)
}

func TestLineNumberOversizedTableIsRejected(t *testing.T) {
	o, err := Lookup(NewVersion(2, 5, 0))
	require.NoError(t, err)

	const bodyAddr = 0x10000
	body := make([]byte, o.IseqConstantBodySizeof)
	binary.LittleEndian.PutUint32(body[o.LineInfoSizeOffset:], 1<<21) // well over the 1MB guard
	mem := &fakeMemory{base: bodyAddr, data: body}

	line, err := LineNumber(mem, o, bodyAddr, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 0, line)
}

// sparseMemory is a map-backed fixture for tests that need several
// disjoint address ranges, unlike the contiguous fakeMemory above.
type sparseMemory struct {
	b map[uint64]byte
}

func newSparseMemory() *sparseMemory { return &sparseMemory{b: map[uint64]byte{}} }

func (m *sparseMemory) putUint64(addr, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	for i, x := range b {
		m.b[addr+uint64(i)] = x
	}
}

func (m *sparseMemory) putUint32(addr uint64, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	for i, x := range b {
		m.b[addr+uint64(i)] = x
	}
}

func (m *sparseMemory) ReadAt(addr uint64, buf []byte) error {
	for i := range buf {
		buf[i] = m.b[addr+uint64(i)]
	}
	return nil
}

func (m *sparseMemory) Uint32At(addr uint64) (uint32, error) {
	var b [4]byte
	_ = m.ReadAt(addr, b[:])
	return binary.LittleEndian.Uint32(b[:]), nil
}

func (m *sparseMemory) Uint64At(addr uint64) (uint64, error) {
	var b [8]byte
	_ = m.ReadAt(addr, b[:])
	return binary.LittleEndian.Uint64(b[:]), nil
}

func TestLineNumberSuccinctImmediateTable(t *testing.T) {
	o, err := Lookup(NewVersion(3, 2, 0))
	require.NoError(t, err)

	const bodyAddr = 0x10000
	const succTableAddr = 0x20000
	const lineTableAddr = 0x30000
	const iseqEncoded = 0x40000

	mem := newSparseMemory()
	mem.putUint64(bodyAddr+uint64(o.IseqEncodedOffset), iseqEncoded)
	mem.putUint32(bodyAddr+uint64(o.LineInfoSizeOffset), 2)
	mem.putUint64(bodyAddr+uint64(o.SuccIndexTableOffset), succTableAddr)
	mem.putUint64(bodyAddr+uint64(o.LineInfoTableOffset), lineTableAddr)

	// pos = (pc-iseqEncoded)/8 - 1 = 0 for pc = iseqEncoded+8.
	// i=0, j=0 -> tableIndex = imm&0x7f, then decremented.
	mem.putUint64(succTableAddr, 5) // tableIndex = 5 -> 4 after decrement
	entrySize := uint64(o.InsnInfoEntrySizeof)
	mem.putUint32(lineTableAddr+4*entrySize+uint64(o.LinenoOffset), 77)

	line, err := LineNumber(mem, o, bodyAddr, iseqEncoded+8)
	require.NoError(t, err)
	assert.EqualValues(t, 77, line)
}
