//go:build dummy

// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package ebpf // import "github.com/rbperf-go/rbperf/ebpf"

// objects_dummy.go satisfies build requirements where the compiled
// rubywalk object does not exist, regardless of architecture.

var rubywalkObject []byte
