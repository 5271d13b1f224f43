package rubyabi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVersion(t *testing.T) {
	v, err := ParseVersion("ruby 3.1.2p123 (2022-11-24 revision 41f) [x86_64-linux]")
	require.NoError(t, err)
	assert.Equal(t, NewVersion(3, 1, 2), v)
}

func TestParseVersionNoMatch(t *testing.T) {
	_, err := ParseVersion("not a version string")
	require.Error(t, err)
}

func TestLookupSupportedRange(t *testing.T) {
	for _, v := range []Version{
		NewVersion(2, 5, 0),
		NewVersion(2, 6, 0),
		NewVersion(3, 0, 0),
		NewVersion(3, 1, 0),
		NewVersion(3, 2, 9),
	} {
		o, err := Lookup(v)
		require.NoErrorf(t, err, "version %s should be supported", v)
		assert.NotZero(t, o.ControlFrameSizeof)
		assert.NotZero(t, o.RValueSizeof)
	}
}

func TestLookupUnsupportedVersion(t *testing.T) {
	_, err := Lookup(NewVersion(9, 9, 9))
	require.Error(t, err)
	var uerr *ErrUnsupportedVersion
	require.ErrorAs(t, err, &uerr)

	_, err = Lookup(NewVersion(1, 8, 7))
	require.Error(t, err)
}

func TestCurrentThreadSymbolByVersion(t *testing.T) {
	assert.Equal(t, "ruby_current_thread", CurrentThreadSymbol(NewVersion(2, 4, 0)))
	assert.Equal(t, "ruby_current_execution_context_ptr",
		CurrentThreadSymbol(NewVersion(2, 7, 0)))
	assert.Equal(t, "ruby_single_main_ractor", CurrentThreadSymbol(NewVersion(3, 1, 0)))
}

func TestControlFrameSizeofTransitions(t *testing.T) {
	pre26, _ := Lookup(NewVersion(2, 5, 9))
	at26, _ := Lookup(NewVersion(2, 6, 0))
	at31, _ := Lookup(NewVersion(3, 1, 0))

	assert.EqualValues(t, 48, pre26.ControlFrameSizeof)
	assert.EqualValues(t, 56, at26.ControlFrameSizeof)
	assert.EqualValues(t, 64, at31.ControlFrameSizeof)
}
