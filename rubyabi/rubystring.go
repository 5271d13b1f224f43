package rubyabi

import "fmt"

// ReadRubyString mirrors the in-kernel walker's read_ruby_string: given
// the address of an RString object, it returns the decoded bytes,
// branching on the RSTRING_NOEMBED flag bit the same way the C walker
// does. This is not on the hot path (the kernel program does the real
// work); it exists so the string-layout contract can be property-
// tested against fixtures without a live kernel program.
func ReadRubyString(mem MemoryReader, o *RubyVersionOffsets, addr uint64, maxLen int) (string, error) {
	flags, err := mem.Uint64At(addr)
	if err != nil {
		return "", fmt.Errorf("rubyabi: read RBasic.flags: %w", err)
	}
	if flags&RubyTMask != RubyTString {
		return "", fmt.Errorf("rubyabi: object at 0x%x is not a string", addr)
	}

	var strAddr uint64
	if flags&StringOnHeap == StringOnHeap {
		strAddr, err = mem.Uint64At(addr + uint64(o.AsHeapOffset))
		if err != nil {
			return "", fmt.Errorf("rubyabi: read heap string pointer: %w", err)
		}
		return readCString(mem, strAddr, maxLen)
	}
	return readCString(mem, addr+uint64(o.AsOffset), maxLen)
}

// ReadPathObjRealPath mirrors read_frame's pathobj resolution: pathobj
// is either a direct RString, or (PathFlavourArray) a 2-element RArray
// whose realpath slot is itself an indirection to an RString.
func ReadPathObjRealPath(mem MemoryReader, o *RubyVersionOffsets, addr uint64, maxLen int) (string, error) {
	flags, err := mem.Uint64At(addr)
	if err != nil {
		return "", fmt.Errorf("rubyabi: read pathobj flags: %w", err)
	}

	switch flags & RubyTMask {
	case RubyTString:
		return ReadRubyString(mem, o, addr, maxLen)
	case RubyTArray:
		dataAddr, err := readArrayDataPtr(mem, o, addr, flags)
		if err != nil {
			return "", err
		}
		slot := dataAddr + PathObjRealPathIndex*uint64(o.RValueSizeof)
		strAddr, err := mem.Uint64At(slot)
		if err != nil {
			return "", fmt.Errorf("rubyabi: read pathobj array slot: %w", err)
		}
		return ReadRubyString(mem, o, strAddr, maxLen)
	default:
		return "", fmt.Errorf("rubyabi: unexpected pathobj type tag 0x%x", flags&RubyTMask)
	}
}

const rarrayEmbedFlag = 1 << 13

func readArrayDataPtr(mem MemoryReader, o *RubyVersionOffsets, addr, flags uint64) (uint64, error) {
	if flags&rarrayEmbedFlag == rarrayEmbedFlag {
		return addr + uint64(o.ArrayAsOffset), nil
	}
	ptr, err := mem.Uint64At(addr + uint64(o.ArrayAsHeapOffset))
	if err != nil {
		return 0, fmt.Errorf("rubyabi: read array heap pointer: %w", err)
	}
	return ptr, nil
}

func readCString(mem MemoryReader, addr uint64, maxLen int) (string, error) {
	buf := make([]byte, maxLen)
	if err := mem.ReadAt(addr, buf); err != nil {
		return "", fmt.Errorf("rubyabi: read string bytes: %w", err)
	}
	for i, b := range buf {
		if b == 0 {
			return string(buf[:i]), nil
		}
	}
	return string(buf), nil
}
