package ebpf

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
)

// TestStructSizes pins down the Go mirrors' layouts against the sizes
// the kernel struct definitions in types.h are hand-kept in sync with.
// A change here without a matching change in types.h silently breaks
// the map value layout the kernel program and the loader agree on.
func TestStructSizes(t *testing.T) {
	tests := []struct {
		name  string
		input uintptr
		want  uintptr
	}{
		{"RubyFrame", unsafe.Sizeof(RubyFrame{}), 200},
		{"ProcessData", unsafe.Sizeof(ProcessData{}), 24},
		{"RubyStack", unsafe.Sizeof(RubyStack{}), 560},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, tt.input)
		})
	}
}
