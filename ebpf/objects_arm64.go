//go:build arm64 && !dummy

// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package ebpf // import "github.com/rbperf-go/rbperf/ebpf"

import (
	_ "embed"
)

//go:embed objects/rubywalk.bpf.o.arm64
var rubywalkObject []byte
