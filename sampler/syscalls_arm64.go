//go:build arm64

// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package sampler // import "github.com/rbperf-go/rbperf/sampler"

import "golang.org/x/sys/unix"

// syscallNumbers maps a syscall name to its arm64 syscall number.
// arm64 uses the generic 64-bit syscall ABI, which drops several
// legacy syscalls amd64 still exposes in favor of their *at / p*
// replacements (open -> openat, poll -> ppoll, select -> pselect6,
// epoll_wait -> epoll_pwait, nanosleep -> clock_nanosleep, accept ->
// accept4); those replacement names are what Config.Syscalls must use
// on this architecture.
var syscallNumbers = map[string]uint32{
	"read":             uint32(unix.SYS_READ),
	"write":            uint32(unix.SYS_WRITE),
	"openat":           uint32(unix.SYS_OPENAT),
	"close":            uint32(unix.SYS_CLOSE),
	"clock_nanosleep":  uint32(unix.SYS_CLOCK_NANOSLEEP),
	"futex":            uint32(unix.SYS_FUTEX),
	"ppoll":            uint32(unix.SYS_PPOLL),
	"pselect6":         uint32(unix.SYS_PSELECT6),
	"epoll_pwait":      uint32(unix.SYS_EPOLL_PWAIT),
	"clock_gettime":    uint32(unix.SYS_CLOCK_GETTIME),
	"mmap":             uint32(unix.SYS_MMAP),
	"munmap":           uint32(unix.SYS_MUNMAP),
	"brk":              uint32(unix.SYS_BRK),
	"rt_sigaction":     uint32(unix.SYS_RT_SIGACTION),
	"execve":           uint32(unix.SYS_EXECVE),
	"clone":            uint32(unix.SYS_CLONE),
	"wait4":            uint32(unix.SYS_WAIT4),
	"getpid":           uint32(unix.SYS_GETPID),
	"recvfrom":         uint32(unix.SYS_RECVFROM),
	"sendto":           uint32(unix.SYS_SENDTO),
	"accept4":          uint32(unix.SYS_ACCEPT4),
	"connect":          uint32(unix.SYS_CONNECT),
	"fcntl":            uint32(unix.SYS_FCNTL),
}

// syscallNumber resolves name to this architecture's syscall number.
func syscallNumber(name string) (uint32, bool) {
	id, ok := syscallNumbers[name]
	return id, ok
}
