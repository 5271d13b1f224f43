/*
 * Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
 * or more contributor license agreements. Licensed under the Apache License 2.0.
 * See the file "LICENSE" for details.
 */

package proc

import (
	"os"
	"testing"

	"github.com/rbperf-go/rbperf/libpf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsPIDLiveSelf(t *testing.T) {
	live, err := IsPIDLive(libpf.PID(os.Getpid()))
	require.NoError(t, err)
	assert.True(t, live)
}

func TestIsPIDLiveUnusedPID(t *testing.T) {
	// PID 1 is always init/systemd and alive in any container or host;
	// pick a PID far outside the live range instead.
	const implausiblePID = 1 << 22
	live, err := IsPIDLive(libpf.PID(implausiblePID))
	require.NoError(t, err)
	assert.False(t, live)
}

func TestListPIDsContainsSelf(t *testing.T) {
	pids, err := ListPIDs()
	require.NoError(t, err)

	self := libpf.PID(os.Getpid())
	found := false
	for _, p := range pids {
		if p == self {
			found = true
			break
		}
	}
	assert.True(t, found, "ListPIDs should include the current process")
}
