/*
 * Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
 * or more contributor license agreements. Licensed under the Apache License 2.0.
 * See the file "LICENSE" for details.
 */

// Package proc provides functionality for enumerating and probing
// processes via /proc.
package proc

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"golang.org/x/sys/unix"

	"github.com/rbperf-go/rbperf/libpf"
)

const defaultMountPoint = "/proc"

// ListPIDs from the proc filesystem mount point and return a list of libpf.PID to be processed
func ListPIDs() ([]libpf.PID, error) {
	pids := make([]libpf.PID, 0)
	files, err := os.ReadDir(defaultMountPoint)
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		// Make sure this is a PID file entry
		if !f.IsDir() {
			continue
		}
		pid, err := strconv.ParseUint(f.Name(), 10, 32)
		if err != nil {
			continue
		}
		pids = append(pids, libpf.PID(pid))
	}
	return pids, nil
}

// IsPIDLive checks if a PID belongs to a live process. It will never produce a false negative but
// may produce a false positive (e.g. due to permissions) in which case an error will also be
// returned.
func IsPIDLive(pid libpf.PID) (bool, error) {
	// A kill syscall with a 0 signal is documented to still do the check
	// whether the process exists: https://linux.die.net/man/2/kill
	err := unix.Kill(int(pid), 0)
	if err == nil {
		return true, nil
	}

	var errno unix.Errno
	if errors.As(err, &errno) {
		switch errno {
		case unix.ESRCH:
			return false, nil
		case unix.EPERM:
			// continue with procfs fallback
		default:
			return true, err
		}
	}

	path := fmt.Sprintf("%s/%d/maps", defaultMountPoint, pid)
	_, err = os.Stat(path)

	if err != nil && os.IsNotExist(err) {
		return false, nil
	}

	return true, err
}
