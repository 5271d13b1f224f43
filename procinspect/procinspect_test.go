package procinspect

import (
	"errors"
	"testing"

	"github.com/rbperf-go/rbperf/libpf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLooksLikeRubyBinary(t *testing.T) {
	cases := map[string]bool{
		"/usr/bin/ruby":                                true,
		"/usr/bin/ruby3.2":                              true,
		"/usr/lib/x86_64-linux-gnu/libruby-3.2.so.3.2": true,
		"/usr/bin/python3":                              false,
		"/usr/bin/rubyscript":                            false,
		"/usr/lib/libcrypto.so":                          false,
	}
	for path, want := range cases {
		assert.Equal(t, want, looksLikeRubyBinary(path), path)
	}
}

func TestInspectErrorUnwrap(t *testing.T) {
	inner := errors.New("boom")
	err := newErr(libpf.PID(42), RubyVersionNotFound, inner)

	require.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "pid 42")
	assert.Contains(t, err.Error(), "ruby version not found")
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "no ruby binary", NoRubyBinary.String())
	assert.Equal(t, "no such process", NoSuchProcess.String())
}
