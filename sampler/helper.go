// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package sampler // import "github.com/rbperf-go/rbperf/sampler"

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// getOnlineCPUIDs reads online CPUs from /sys/devices/system/cpu/online
// and reports the core IDs as a list of integers.
func getOnlineCPUIDs() ([]int, error) {
	cpuPath := "/sys/devices/system/cpu/online"
	buf, err := os.ReadFile(cpuPath)
	if err != nil {
		return nil, fmt.Errorf("could not read %s: %w", cpuPath, err)
	}
	return readCPURange(string(buf))
}

// readCPURange parses the comma/range syntax /sys/devices/system/cpu/online
// uses (e.g. "0-3,5,7-8").
func readCPURange(cpuRangeStr string) ([]int, error) {
	var cpus []int
	cpuRangeStr = strings.Trim(cpuRangeStr, "\n ")
	for _, cpuRange := range strings.Split(cpuRangeStr, ",") {
		rangeOp := strings.SplitN(cpuRange, "-", 2)
		first, err := strconv.ParseUint(rangeOp[0], 10, 32)
		if err != nil {
			return nil, err
		}
		if len(rangeOp) == 1 {
			cpus = append(cpus, int(first))
			continue
		}
		last, err := strconv.ParseUint(rangeOp[1], 10, 32)
		if err != nil {
			return nil, err
		}
		for n := first; n <= last; n++ {
			cpus = append(cpus, int(n))
		}
	}
	return cpus, nil
}

// hasProbeReadBug returns true if the given Linux kernel version is
// affected by a bug that can freeze the system under heavy
// bpf_probe_read_user traffic, which rubywalk.bpf.c's read_frame /
// read_ruby_string generate plenty of. Controller.Attach does not call
// this yet (surfacing it is the embedder's call once it parses
// /proc/version), but it is kept here rather than dropped since any
// caller building a preflight check needs exactly this table.
func hasProbeReadBug(major, minor, patch uint32) bool {
	if major == 5 && minor >= 19 {
		return true
	} else if major == 6 {
		switch minor {
		case 0, 2:
			return true
		case 1:
			return patch < 36
		case 3:
			return patch < 10
		default:
			return false
		}
	}
	return false
}
