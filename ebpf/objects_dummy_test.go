//go:build dummy

// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package ebpf

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadCollectionSpecNoObject(t *testing.T) {
	_, err := LoadCollectionSpec()
	require.ErrorIs(t, err, ErrNoCompiledObject)
}
