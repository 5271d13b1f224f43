package procinspect

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	testcontainers "github.com/testcontainers/testcontainers-go"

	"github.com/rbperf-go/rbperf/libpf/pfelf"
	"github.com/rbperf-go/rbperf/rubyabi"
)

// TestVersionAgainstRealInterpreters pulls a handful of the official "ruby"
// Docker images, extracts their interpreter binary, and checks that
// rubyabi.ParseVersion and rubyabi.Lookup agree with the tag the image
// actually ships. This is the static half of procinspect.Inspect (symbol
// lookup and rodata string extraction) exercised against real CRuby
// binaries instead of a hand-built fixture.
func TestVersionAgainstRealInterpreters(t *testing.T) {
	for _, tc := range []struct {
		tag         string
		wantSupport bool
	}{
		{"3.1-slim", true},
		{"3.2-slim", true},
		{"2.4-slim", false}, // below rubyabi.MinSupportedVersion
	} {
		t.Run(tc.tag, func(t *testing.T) {
			target := cacheRubyBinary(t, tc.tag)

			f, err := pfelf.Open(target)
			require.NoError(t, err)
			defer f.Close()

			version, err := readStaticRubyVersion(f)
			require.NoError(t, err)

			_, lookupErr := rubyabi.Lookup(version)
			if tc.wantSupport {
				require.NoError(t, lookupErr)
			} else {
				require.Error(t, lookupErr)
				var unsupported *rubyabi.ErrUnsupportedVersion
				require.ErrorAs(t, lookupErr, &unsupported)
			}
		})
	}
}

// readStaticRubyVersion mirrors readRubyVersion but reads the rodata string
// straight out of the on-disk ELF instead of a live process's remote
// memory: there is no running interpreter here, just its binary.
func readStaticRubyVersion(f *pfelf.File) (rubyabi.Version, error) {
	sym, err := f.LookupSymbol(rubyVersionSymbol)
	if err != nil {
		return 0, err
	}
	mapper := f.GetAddressMapper()
	vaddr, ok := mapper.FileOffsetToVirtualAddress(uint64(sym.Address))
	if !ok {
		vaddr = uint64(sym.Address)
	}

	buf := make([]byte, 64)
	n, err := f.ReadVirtualMemory(buf, int64(vaddr))
	if err != nil && n == 0 {
		return 0, err
	}
	buf = buf[:n]
	if idx := bytes.IndexByte(buf, 0); idx >= 0 {
		buf = buf[:idx]
	}
	return rubyabi.ParseVersion(string(buf))
}

// cacheRubyBinary pulls docker.io/library/ruby:<tag> once per test run and
// copies its interpreter binary to a local cache directory, the same
// pull-once/extract-once shape the teacher uses for its offset-extraction
// integration tests.
func cacheRubyBinary(t *testing.T, tag string) string {
	baseDir := filepath.Join(os.TempDir(), "rbperf_ruby_artifacts", tag)
	target := filepath.Join(baseDir, "ruby")

	if _, err := os.Stat(target); os.IsNotExist(err) {
		require.NoError(t, os.MkdirAll(baseDir, 0o755))
		getRubyFromImage(t, "docker.io/library/ruby:"+tag, target)
	}
	return target
}

func getRubyFromImage(t *testing.T, image, target string) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image: image,
		},
		Started: false,
	})
	require.NoError(t, err)

	rc, err := container.CopyFileFromContainer(ctx, "/usr/local/bin/ruby")
	require.NoError(t, err)
	defer rc.Close()

	f, err := os.Create(target)
	require.NoError(t, err)
	defer f.Close()

	_, err = io.Copy(f, rc)
	require.NoError(t, err)
}
