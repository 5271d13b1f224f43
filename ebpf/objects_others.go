//go:build !amd64 && !arm64 && !dummy

// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package ebpf // import "github.com/rbperf-go/rbperf/ebpf"

// objects_others.go satisfies build requirements on architectures this
// repository has no compiled rubywalk object for.

var rubywalkObject []byte
