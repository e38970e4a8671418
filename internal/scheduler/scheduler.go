// Package scheduler arms a single daily rollup trigger and lets callers
// replace it at runtime without ever holding two pending timers.
package scheduler

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/newsletter-agent/pkg/logger"
)

// State of the handle
type State string

const (
	StateIdle      State = "idle"
	StateScheduled State = "scheduled"
	StateRunning   State = "running"
)

// Job is the work executed on every trigger
type Job func(ctx context.Context)

var timePattern = regexp.MustCompile(`^([01]\d|2[0-3]):([0-5]\d)$`)

// ParseTime parses a 24h HH:MM wall-clock time
func ParseTime(s string) (int, int, error) {
	m := timePattern.FindStringSubmatch(s)
	if m == nil {
		return 0, 0, fmt.Errorf("invalid time %q: expected HH:MM", s)
	}
	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	return hour, minute, nil
}

// Handle owns the daily trigger. The zero value is not usable; call New.
type Handle struct {
	cron *cron.Cron
	job  Job
	loc  *time.Location
	log  *logger.Logger

	mu      sync.Mutex
	entryID cron.EntryID
	armed   bool
	at      string

	running atomic.Int32
	runMu   sync.Mutex
	manual  sync.WaitGroup
}

// New creates an idle handle that fires job in loc. A nil loc means local time.
func New(job Job, loc *time.Location, log *logger.Logger) *Handle {
	if loc == nil {
		loc = time.Local
	}
	log = log.WithComponent("scheduler")

	return &Handle{
		cron: cron.New(
			cron.WithLogger(cronLogger{log}),
			cron.WithLocation(loc),
		),
		job: job,
		loc: loc,
		log: log,
	}
}

// Start arms the daily trigger at hhmm and starts the timer loop
func (h *Handle) Start(hhmm string) error {
	if err := h.Rearm(hhmm); err != nil {
		return err
	}
	h.cron.Start()
	return nil
}

// Rearm replaces the pending trigger with one at hhmm. An invalid time leaves
// the current arming untouched. Runs already in progress are not affected.
func (h *Handle) Rearm(hhmm string) error {
	hour, minute, err := ParseTime(hhmm)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.armed {
		h.cron.Remove(h.entryID)
		h.armed = false
	}

	id, err := h.cron.AddFunc(fmt.Sprintf("%d %d * * *", minute, hour), func() {
		h.run("scheduled")
	})
	if err != nil {
		return fmt.Errorf("failed to schedule rollup: %w", err)
	}

	h.entryID = id
	h.armed = true
	h.at = hhmm

	h.log.Info().Str("time", hhmm).Time("next", h.nextLocked()).Msg("Rollup scheduled")
	return nil
}

// Cancel removes the pending trigger, if any
func (h *Handle) Cancel() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.armed {
		return
	}
	h.cron.Remove(h.entryID)
	h.armed = false
	h.at = ""
	h.log.Info().Msg("Rollup schedule cancelled")
}

// TriggerNow starts an out-of-band run in the background. It returns false
// when a run is already in progress. The armed trigger is left as is.
func (h *Handle) TriggerNow() bool {
	if !h.runMu.TryLock() {
		h.log.Warn().Msg("Rollup already running, manual trigger ignored")
		return false
	}

	h.manual.Add(1)
	go func() {
		defer h.manual.Done()
		defer h.runMu.Unlock()
		h.execute("manual")
	}()
	return true
}

// State reports the current state
func (h *Handle) State() State {
	if h.running.Load() > 0 {
		return StateRunning
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.armed {
		return StateScheduled
	}
	return StateIdle
}

// Time returns the armed HH:MM, or "" when idle
func (h *Handle) Time() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.at
}

// Next returns the next trigger time, or the zero time when nothing is armed
func (h *Handle) Next() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.nextLocked()
}

func (h *Handle) nextLocked() time.Time {
	if !h.armed {
		return time.Time{}
	}
	entry := h.cron.Entry(h.entryID)
	if !entry.Next.IsZero() {
		return entry.Next
	}
	// not computed until the timer loop picks the entry up
	if entry.Schedule == nil {
		return time.Time{}
	}
	return entry.Schedule.Next(time.Now().In(h.loc))
}

// Pending returns the number of registered triggers
func (h *Handle) Pending() int {
	return len(h.cron.Entries())
}

// Stop halts the timer loop and waits for in-flight runs or ctx expiry
func (h *Handle) Stop(ctx context.Context) error {
	cronDone := h.cron.Stop()

	manualDone := make(chan struct{})
	go func() {
		h.manual.Wait()
		close(manualDone)
	}()

	for _, done := range []<-chan struct{}{cronDone.Done(), manualDone} {
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// run executes the job unless another run is in progress
func (h *Handle) run(trigger string) {
	if !h.runMu.TryLock() {
		h.log.Warn().Str("trigger", trigger).Msg("Previous rollup still running, skipping")
		return
	}
	defer h.runMu.Unlock()
	h.execute(trigger)
}

func (h *Handle) execute(trigger string) {
	h.running.Add(1)
	defer h.running.Add(-1)

	defer func() {
		if r := recover(); r != nil {
			h.log.Error().Interface("panic", r).Str("trigger", trigger).Msg("Rollup panicked")
		}
	}()

	h.log.Info().Str("trigger", trigger).Msg("Running rollup")
	h.job(context.Background())
}

// cronLogger adapts our logger for cron
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
