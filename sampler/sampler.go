// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package sampler drives the profiling run's lifecycle: it loads the
// kernel program, attaches it in one of two modes, registers target
// processes, and hands the resulting event stream to a caller-supplied
// transport.Reader consumer. Grounded on tracer.go's NewTracer /
// AttachTracer / EnableProfiling / Close lifecycle and its
// github.com/elastic/go-perf per-CPU perf.Event attachment pattern.
package sampler // import "github.com/rbperf-go/rbperf/sampler"

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	cebpf "github.com/cilium/ebpf"
	"github.com/cilium/ebpf/link"
	"github.com/elastic/go-perf"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/rbperf-go/rbperf/ebpf"
	"github.com/rbperf-go/rbperf/frameintern"
	"github.com/rbperf-go/rbperf/libpf/xsync"
	"github.com/rbperf-go/rbperf/periodiccaller"
	"github.com/rbperf-go/rbperf/procinspect"
	"github.com/rbperf-go/rbperf/process"
	"github.com/rbperf-go/rbperf/rubyabi"
	"github.com/rbperf-go/rbperf/transport"
)

// dropReconcileInterval is how often Enable's background goroutine
// polls drop_reasons and folds deltas into the most recently opened
// reader's Stats.
const dropReconcileInterval = 2 * time.Second

// AttachMode selects which of the two attach points described in the
// sampler controller's lifecycle drives sampling.
type AttachMode int

const (
	// AttachCPUTimer opens one SOFTWARE:CPU_CLOCK perf_event per online
	// CPU at Config.SamplesPerSecond and attaches on_event to each.
	AttachCPUTimer AttachMode = iota
	// AttachSyscall attaches on_event_syscall to the raw_syscalls/sys_enter
	// tracepoint; every entry of a syscall named in Config.Syscalls, on
	// every CPU, samples the calling thread's Ruby stack.
	AttachSyscall
)

// maxTrackedVersions bounds how many distinct Ruby versions a single
// Controller can track concurrently: version_specific_offsets is an
// 8-entry BPF_MAP_TYPE_ARRAY, and ProcessData.rb_version is the index
// into it, not rubyabi's own packed Version encoding.
const maxTrackedVersions = 8

// ErrTooManyVersions is returned by RegisterProcess when a ninth
// distinct Ruby version would need to be tracked concurrently.
var ErrTooManyVersions = errors.New("sampler: too many distinct ruby versions tracked concurrently")

// ErrNoSuchProcess mirrors procinspect's NoSuchProcess kind for callers
// that only hold a sampler.Config and want to classify errors without
// importing procinspect directly.
var ErrNoSuchProcess = errors.New("sampler: no such process")

// Config carries everything the controller needs that isn't parsed from
// flags or files here; this repository validates, it does not parse
// (the CLI surface is the embedder's responsibility).
type Config struct {
	Mode                  AttachMode
	SamplesPerSecond      uint64
	Transport             ebpf.TransportKind
	TransportBufferSize   int
	Verbose               bool
	EnablePIDRaceDetector bool
	// Syscalls names the syscall-mode allow-list: AttachSyscall samples
	// only the listed syscalls' sys_enter events, by name (e.g.
	// "nanosleep", "read"), resolved to this architecture's syscall
	// number via syscallNumber. Required, and otherwise ignored, when
	// Mode is AttachSyscall.
	Syscalls []string
}

// DefaultConfig matches the values the teacher's own Tracer.Config picks
// when unset: 19 Hz frequency sampling (prime, to avoid lockstep with
// periodic workloads), perf-buffer transport, the race detector on.
func DefaultConfig() Config {
	return Config{
		Mode:                  AttachCPUTimer,
		SamplesPerSecond:      19,
		Transport:             ebpf.TransportPerfBuffer,
		TransportBufferSize:   4096,
		EnablePIDRaceDetector: true,
	}
}

// Controller owns the loaded kernel program, the open perf events
// attached to it, and the per-version offset slots registered
// processes are mapped into. One Controller corresponds to one
// profiling run.
type Controller struct {
	cfg  Config
	objs *ebpf.Objects

	mu           sync.Mutex
	versionSlots map[rubyabi.Version]uint32
	nextSlot     uint32

	// perfEntrypoints holds the CPU-timer perf events opened on the
	// system, guarded the way Tracer.perfEntrypoints is: the slice
	// itself, not just its contents, is protected against concurrent
	// Attach/Enable/Close calls.
	perfEntrypoints xsync.RWMutex[[]*perf.Event]
	tphook          link.Link

	readers []transport.Reader

	prevDropCounts    ebpf.DropCounts
	stopDropReconcile context.CancelFunc

	RunID uuid.UUID
}

// New loads the kernel program per cfg and returns a Controller ready
// for RegisterProcess and Attach. Mirrors NewTracer's "load, don't
// attach yet" split.
func New(cfg Config) (*Controller, error) {
	objs, err := ebpf.Load(ebpf.LoadOptions{
		Transport:             cfg.Transport,
		Verbose:               cfg.Verbose,
		EnablePIDRaceDetector: cfg.EnablePIDRaceDetector,
		FilterSyscalls:        cfg.Mode == AttachSyscall && len(cfg.Syscalls) > 0,
	})
	if err != nil {
		return nil, fmt.Errorf("sampler: failed to load kernel program: %w", err)
	}
	return &Controller{
		cfg:          cfg,
		objs:         objs,
		versionSlots: make(map[rubyabi.Version]uint32),
		RunID:        uuid.New(),
	}, nil
}

// RegisterProcess inspects proc_ and, if it is a supported CRuby
// process, writes its ProcessData into pid_to_rb_thread and allocates
// (or reuses) a version_specific_offsets slot for its Ruby version.
// Returns the procinspect.InspectError unmodified on a per-process-fatal
// error: callers should log it and skip the pid, never abort the run.
func (c *Controller) RegisterProcess(proc_ process.Process) (*procinspect.Result, error) {
	result, err := procinspect.Inspect(proc_)
	if err != nil {
		return nil, err
	}

	slot, err := c.slotFor(result.Version)
	if err != nil {
		return nil, err
	}

	pidMap, ok := c.objs.Maps["pid_to_rb_thread"]
	if !ok {
		return nil, errors.New("sampler: pid_to_rb_thread map missing from loaded objects")
	}

	pid := uint32(result.PID)
	data := ebpf.ProcessData{
		RbFrameAddr: result.MainThreadAddr,
		RbVersion:   slot,
	}
	if err := pidMap.Update(&pid, &data, cebpf.UpdateAny); err != nil {
		return nil, fmt.Errorf("sampler: failed to register pid %d: %w", pid, err)
	}

	offsetsMap, ok := c.objs.Maps["version_specific_offsets"]
	if !ok {
		return nil, errors.New("sampler: version_specific_offsets map missing from loaded objects")
	}
	flat := ebpf.FlattenOffsets(result.Offsets)
	if err := offsetsMap.Update(&slot, &flat, cebpf.UpdateAny); err != nil {
		return nil, fmt.Errorf("sampler: failed to write offsets for slot %d: %w", slot, err)
	}

	return result, nil
}

// UnregisterProcess removes pid from pid_to_rb_thread; the version slot
// it used is left allocated, since other live processes on the same
// Ruby version may still reference it.
func (c *Controller) UnregisterProcess(pid uint32) error {
	pidMap, ok := c.objs.Maps["pid_to_rb_thread"]
	if !ok {
		return errors.New("sampler: pid_to_rb_thread map missing from loaded objects")
	}
	if err := pidMap.Delete(&pid); err != nil && !errors.Is(err, cebpf.ErrKeyNotExist) {
		return fmt.Errorf("sampler: failed to unregister pid %d: %w", pid, err)
	}
	return nil
}

func (c *Controller) slotFor(v rubyabi.Version) (uint32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if slot, ok := c.versionSlots[v]; ok {
		return slot, nil
	}
	if c.nextSlot >= maxTrackedVersions {
		return 0, ErrTooManyVersions
	}
	slot := c.nextSlot
	c.versionSlots[v] = slot
	c.nextSlot++
	return slot, nil
}

// Attach opens the perf events for cfg.Mode and attaches the loaded
// kernel program to each, but does not yet enable sampling; callers
// call Enable once consumers are reading from Readers.
func (c *Controller) Attach() error {
	switch c.cfg.Mode {
	case AttachCPUTimer:
		return c.attachCPUTimer()
	case AttachSyscall:
		return c.attachSyscall()
	default:
		return fmt.Errorf("sampler: unknown attach mode %d", c.cfg.Mode)
	}
}

func (c *Controller) attachCPUTimer() error {
	prog, ok := c.objs.Programs["on_event"]
	if !ok {
		return errors.New("sampler: on_event program missing from loaded objects")
	}

	attr := new(perf.Attr)
	attr.SetSampleFreq(c.cfg.SamplesPerSecond)
	if err := perf.CPUClock.Configure(attr); err != nil {
		return fmt.Errorf("sampler: failed to configure cpu-clock perf event: %w", err)
	}

	cpus, err := getOnlineCPUIDs()
	if err != nil {
		return fmt.Errorf("sampler: failed to enumerate online cpus: %w", err)
	}

	events := c.perfEntrypoints.WLock()
	defer c.perfEntrypoints.WUnlock(&events)
	for _, id := range cpus {
		ev, err := perf.Open(attr, perf.AllThreads, id, nil)
		if err != nil {
			return fmt.Errorf("sampler: failed to open perf event on cpu %d: %w", id, err)
		}
		if err := ev.SetBPF(uint32(prog.FD())); err != nil {
			return fmt.Errorf("sampler: failed to attach program to perf event on cpu %d: %w", id, err)
		}
		*events = append(*events, ev)
	}
	return nil
}

func (c *Controller) attachSyscall() error {
	if len(c.cfg.Syscalls) == 0 {
		return errors.New("sampler: AttachSyscall requires Config.Syscalls to name at least one syscall")
	}
	if err := c.populateSyscallFilter(); err != nil {
		return err
	}

	prog, ok := c.objs.Programs["on_event_syscall"]
	if !ok {
		return errors.New("sampler: on_event_syscall program missing from loaded objects")
	}
	hook, err := link.Tracepoint("raw_syscalls", "sys_enter", prog, nil)
	if err != nil {
		return fmt.Errorf("sampler: failed to attach syscall tracepoint: %w", err)
	}
	c.mu.Lock()
	c.tphook = hook
	c.mu.Unlock()
	return nil
}

// populateSyscallFilter resolves every name in Config.Syscalls to this
// architecture's syscall number via syscallNumber and writes it into the
// kernel's target_syscalls allow-list, which on_event_syscall consults
// before record_sample runs.
func (c *Controller) populateSyscallFilter() error {
	filterMap, ok := c.objs.Maps["target_syscalls"]
	if !ok {
		return errors.New("sampler: target_syscalls map missing from loaded objects")
	}
	for _, name := range c.cfg.Syscalls {
		id, ok := syscallNumber(name)
		if !ok {
			return fmt.Errorf("sampler: unknown syscall name %q for this architecture", name)
		}
		present := uint8(1)
		if err := filterMap.Update(&id, &present, cebpf.UpdateAny); err != nil {
			return fmt.Errorf("sampler: failed to register syscall filter for %q: %w", name, err)
		}
	}
	return nil
}

// Enable starts delivering samples: enables every open perf event (no-op
// under AttachSyscall, where the tracepoint link is already live once
// attached) and opens one transport.Reader. In perf-buffer transport
// mode the reader multiplexes every CPU's slot of the shared
// BPF_MAP_TYPE_PERF_EVENT_ARRAY; in ring-buffer mode there is exactly
// one reader regardless of CPU count.
func (c *Controller) Enable() (transport.Reader, error) {
	events := c.perfEntrypoints.RLock()
	for _, ev := range *events {
		if err := ev.Enable(); err != nil {
			c.perfEntrypoints.RUnlock(&events)
			return nil, fmt.Errorf("sampler: failed to enable perf event: %w", err)
		}
	}
	c.perfEntrypoints.RUnlock(&events)

	eventsMap, ok := c.objs.Maps["events"]
	if !ok {
		return nil, errors.New("sampler: events map missing from loaded objects")
	}
	reader, err := transport.New(c.cfg.Transport, eventsMap, c.cfg.TransportBufferSize)
	if err != nil {
		return nil, fmt.Errorf("sampler: failed to open transport reader: %w", err)
	}

	c.mu.Lock()
	c.readers = append(c.readers, reader)
	if c.stopDropReconcile == nil {
		ctx, cancel := context.WithCancel(context.Background())
		c.stopDropReconcile = cancel
		periodiccaller.Start(ctx, dropReconcileInterval, c.reconcileDropCounts)
	}
	c.mu.Unlock()
	return reader, nil
}

// reconcileDropCounts reads the kernel's cumulative drop_reasons
// counters, diffs them against the previous read, and folds the delta
// for each reason into the most recently opened reader's Stats via the exported
// Add* methods transport.Stats carries specifically for this purpose.
// Logs and skips a reconcile pass on a read error rather than treating
// it as fatal: a missed pass is caught up by the next tick's delta.
func (c *Controller) reconcileDropCounts() {
	if c.objs == nil {
		return
	}
	dropMap, ok := c.objs.Maps["drop_reasons"]
	if !ok {
		return
	}
	counts, err := ebpf.ReadDropCounts(dropMap)
	if err != nil {
		log.Errorf("sampler: failed to read drop_reasons: %v", err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	deltaPidUnknown := counts[ebpf.DropReasonPidUnknown] - c.prevDropCounts[ebpf.DropReasonPidUnknown]
	deltaVersionUnknown := counts[ebpf.DropReasonVersionUnknown] - c.prevDropCounts[ebpf.DropReasonVersionUnknown]
	deltaPidReuseMismatch := counts[ebpf.DropReasonPidReuseMismatch] - c.prevDropCounts[ebpf.DropReasonPidReuseMismatch]
	c.prevDropCounts = counts

	if len(c.readers) == 0 {
		return
	}
	// Attribute to the most recently opened reader: Enable is normally
	// called once per run, but if called again the older reader's
	// Stats should stop accumulating drops from a kernel program it no
	// longer reads events from.
	stats := c.readers[len(c.readers)-1].StatsRef()
	for i := uint64(0); i < deltaPidUnknown; i++ {
		stats.AddPidUnknown()
	}
	for i := uint64(0); i < deltaVersionUnknown; i++ {
		stats.AddVersionUnknown()
	}
	for i := uint64(0); i < deltaPidReuseMismatch; i++ {
		stats.AddPidReuseMismatch()
	}
}

// Mirror returns a frameintern.Mirror backed by this Controller's loaded
// id_to_stack map, ready to resolve frame ids out of samples the
// returned transport.Reader(s) deliver.
func (c *Controller) Mirror() (*frameintern.Mirror, error) {
	idToStack, ok := c.objs.Maps["id_to_stack"]
	if !ok {
		return nil, errors.New("sampler: id_to_stack map missing from loaded objects")
	}
	return frameintern.NewMirror(&mapSource{m: idToStack})
}

type mapSource struct {
	m *cebpf.Map
}

func (s *mapSource) LookupFrame(id uint32) (ebpf.RubyFrame, bool) {
	var frame ebpf.RubyFrame
	if err := s.m.Lookup(&id, &frame); err != nil {
		return ebpf.RubyFrame{}, false
	}
	return frame, true
}

// Close tears down the profiling run: disables and closes every perf
// event, detaches the tracepoint hook if attached, closes every open
// transport.Reader (draining remaining samples per the teardown step of
// the controller lifecycle), and unloads the kernel program. Safe to
// call multiple times.
func (c *Controller) Close() {
	entrypoints := c.perfEntrypoints.WLock()
	events := *entrypoints
	*entrypoints = nil
	c.perfEntrypoints.WUnlock(&entrypoints)

	c.mu.Lock()
	hook := c.tphook
	c.tphook = nil
	readers := c.readers
	c.readers = nil
	stopDropReconcile := c.stopDropReconcile
	c.stopDropReconcile = nil
	c.mu.Unlock()

	if stopDropReconcile != nil {
		stopDropReconcile()
	}

	for _, ev := range events {
		if err := ev.Disable(); err != nil {
			log.Errorf("sampler: failed to disable perf event: %v", err)
		}
		if err := ev.Close(); err != nil {
			log.Errorf("sampler: failed to close perf event: %v", err)
		}
	}
	if hook != nil {
		if err := hook.Close(); err != nil {
			log.Errorf("sampler: failed to close tracepoint hook: %v", err)
		}
	}
	for _, r := range readers {
		if err := r.Close(); err != nil {
			log.Errorf("sampler: failed to close transport reader: %v", err)
		}
	}
	if c.objs != nil {
		c.objs.Close()
	}
}
