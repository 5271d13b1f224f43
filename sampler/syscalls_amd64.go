//go:build amd64

// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package sampler // import "github.com/rbperf-go/rbperf/sampler"

import "golang.org/x/sys/unix"

// syscallNumbers maps a syscall name, as an operator would name it in
// Config.Syscalls, to its amd64 syscall number. Covers the syscalls
// CRuby's own blocking primitives (Kernel#sleep, IO, Mutex#synchronize,
// Process.wait) resolve to on this architecture; not every Linux
// syscall has an entry.
var syscallNumbers = map[string]uint32{
	"read":          uint32(unix.SYS_READ),
	"write":         uint32(unix.SYS_WRITE),
	"open":          uint32(unix.SYS_OPEN),
	"openat":        uint32(unix.SYS_OPENAT),
	"close":         uint32(unix.SYS_CLOSE),
	"nanosleep":     uint32(unix.SYS_NANOSLEEP),
	"futex":         uint32(unix.SYS_FUTEX),
	"poll":          uint32(unix.SYS_POLL),
	"select":        uint32(unix.SYS_SELECT),
	"epoll_wait":    uint32(unix.SYS_EPOLL_WAIT),
	"clock_gettime": uint32(unix.SYS_CLOCK_GETTIME),
	"mmap":          uint32(unix.SYS_MMAP),
	"munmap":        uint32(unix.SYS_MUNMAP),
	"brk":           uint32(unix.SYS_BRK),
	"rt_sigaction":  uint32(unix.SYS_RT_SIGACTION),
	"execve":        uint32(unix.SYS_EXECVE),
	"clone":         uint32(unix.SYS_CLONE),
	"wait4":         uint32(unix.SYS_WAIT4),
	"getpid":        uint32(unix.SYS_GETPID),
	"recvfrom":      uint32(unix.SYS_RECVFROM),
	"sendto":        uint32(unix.SYS_SENDTO),
	"accept":        uint32(unix.SYS_ACCEPT),
	"connect":       uint32(unix.SYS_CONNECT),
	"fcntl":         uint32(unix.SYS_FCNTL),
}

// syscallNumber resolves name to this architecture's syscall number.
func syscallNumber(name string) (uint32, bool) {
	id, ok := syscallNumbers[name]
	return id, ok
}
