// Package capture implements the bounded, time-windowed streaming capture
// pipeline: a background loop polls the probe and fans each sample out to
// the in-memory ring buffer (live chart) and the open window (CSV
// persistence), rotating windows on wall-clock boundaries.
package capture

import (
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/powerlab/wattlog/pkg/events"
	"github.com/powerlab/wattlog/pkg/probe"
	"github.com/powerlab/wattlog/pkg/types"
)

// State is the externally visible controller state.
type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StateStopping State = "stopping"
	StateError    State = "error"
)

var (
	// ErrAlreadyRunning is returned by Start while a session is active.
	ErrAlreadyRunning = pkgerrors.New("capture already running")

	// ErrNotRunning is returned by Stop when no session is active.
	ErrNotRunning = pkgerrors.New("capture not running")

	// ErrBusy is returned by Start while a stop is still in flight. Start
	// never blocks on a pending transition; callers retry once the daemon
	// reports idle.
	ErrBusy = pkgerrors.New("capture busy with a state transition")
)

// Options configure one capture session.
type Options struct {
	// WindowDuration is the wall-clock window size. Boundaries align to
	// multiples of it, so the first window of a session may be shorter.
	WindowDuration time.Duration

	// RingCapacity is the live-view ring buffer size in samples.
	RingCapacity int

	// LogDir receives one CSV file per sealed window.
	LogDir string

	// SamplePeriod is one probe tick. It bounds both the read timeout and
	// the stop latency.
	SamplePeriod time.Duration

	// MaxWindows stops the session after this many sealed windows.
	// 0 means unlimited.
	MaxWindows int
}

func (o *Options) normalize() {
	if o.WindowDuration <= 0 {
		o.WindowDuration = time.Minute
	}
	if o.RingCapacity <= 0 {
		o.RingCapacity = 1024
	}
	if o.SamplePeriod <= 0 {
		o.SamplePeriod = 100 * time.Millisecond
	}
	if o.LogDir == "" {
		o.LogDir = "."
	}
}

// Status is the controller state reported to callers.
type Status struct {
	State         State     `json:"state"`
	SessionID     string    `json:"sessionId,omitempty"`
	StartedAt     time.Time `json:"startedAt"`
	WindowIndex   int       `json:"windowIndex"`
	SampleCount   int64     `json:"sampleCount"`
	Windows       []Meta    `json:"windows,omitempty"`
	PendingReseal int       `json:"pendingReseal"`
	LastError     string    `json:"lastError,omitempty"`
}

// Controller owns the capture session state machine
// (Idle → Running → Stopping → Idle, Running → Error → Idle). One
// goroutine polls the probe and fills ring and window; a second flushes
// sealed windows so a slow disk never stalls ingestion. Exactly one
// session is active at a time.
type Controller struct {
	dev probe.Device
	hub *events.Hub

	mu        sync.Mutex
	state     State
	opts      Options
	sessionID string
	startedAt time.Time
	ring      *Ring
	sealed    []Meta
	failed    []*Window
	lastErr   error

	windowIndex atomic.Int64
	sampleCount atomic.Int64

	// Owned by the capture goroutine between Start and finish.
	cur *Window

	stopc     chan struct{}
	donec     chan struct{}
	flushc    chan *Window
	flushDone chan struct{}
}

// NewController returns an idle controller for the given probe. Events are
// published to hub; a nil hub disables publishing.
func NewController(dev probe.Device, hub *events.Hub) *Controller {
	return &Controller{
		dev:   dev,
		hub:   hub,
		state: StateIdle,
	}
}

// Start opens the probe and begins a capture session. Valid from Idle and
// from Error (a fresh attempt clears the previous fault). Returns
// ErrAlreadyRunning from Running and ErrBusy (fail fast, no blocking)
// while a stop is in flight.
func (c *Controller) Start(opts Options) error {
	opts.normalize()

	c.mu.Lock()
	switch c.state {
	case StateRunning:
		c.mu.Unlock()
		return ErrAlreadyRunning
	case StateStopping:
		c.mu.Unlock()
		return ErrBusy
	case StateError:
		c.lastErr = nil
	}

	if err := os.MkdirAll(opts.LogDir, 0755); err != nil {
		c.state = StateError
		c.lastErr = err
		c.mu.Unlock()
		return pkgerrors.Wrapf(err, "failed to create log dir %s", opts.LogDir)
	}

	if err := c.dev.Open(); err != nil {
		c.state = StateError
		c.lastErr = err
		c.mu.Unlock()
		return pkgerrors.Wrap(err, "failed to open probe")
	}

	now := time.Now()
	c.opts = opts
	c.sessionID = uuid.NewString()
	c.startedAt = now
	c.ring = NewRing(opts.RingCapacity)
	c.sealed = nil
	c.failed = nil
	c.lastErr = nil
	c.windowIndex.Store(0)
	c.sampleCount.Store(0)
	c.cur = newWindow(opts.LogDir, 0, windowStart(now, opts.WindowDuration), opts.WindowDuration)
	c.stopc = make(chan struct{})
	c.donec = make(chan struct{})
	c.flushc = make(chan *Window, 4)
	c.flushDone = make(chan struct{})
	c.state = StateRunning
	c.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"session": c.sessionID,
		"device":  c.dev.String(),
		"window":  opts.WindowDuration,
		"logDir":  opts.LogDir,
	}).Info("capture session started")
	c.publishState(StateRunning, "")

	go c.flusher()
	go c.run()

	return nil
}

// Stop halts the running session: the capture goroutine observes the stop
// within one sample period, stops the probe and seals the open window, so
// a partial window is persisted rather than discarded.
func (c *Controller) Stop() error {
	c.mu.Lock()
	if c.state != StateRunning {
		st := c.state
		c.mu.Unlock()
		if st == StateStopping {
			return ErrBusy
		}
		return ErrNotRunning
	}
	c.state = StateStopping
	session := c.sessionID
	stopc, donec := c.stopc, c.donec
	c.mu.Unlock()

	c.publishState(StateStopping, "")
	close(stopc)
	<-donec

	logrus.WithField("session", session).Info("capture session stopped")
	return nil
}

// Status reports the controller state. Safe to call from any goroutine.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := Status{
		State:         c.state,
		SessionID:     c.sessionID,
		StartedAt:     c.startedAt,
		WindowIndex:   int(c.windowIndex.Load()),
		SampleCount:   c.sampleCount.Load(),
		Windows:       append([]Meta(nil), c.sealed...),
		PendingReseal: len(c.failed),
	}
	if c.lastErr != nil {
		st.LastError = c.lastErr.Error()
	}
	return st
}

// Snapshot returns a copy of the current ring buffer contents. Returns nil
// before the first session.
func (c *Controller) Snapshot() []types.Sample {
	c.mu.Lock()
	ring := c.ring
	c.mu.Unlock()

	if ring == nil {
		return nil
	}
	return ring.Snapshot()
}

// Reseal retries flushing windows whose seal failed, e.g. after the
// operator freed disk space. Returns the metadata of the windows flushed
// on this attempt and the first error still standing.
func (c *Controller) Reseal() ([]Meta, error) {
	c.mu.Lock()
	pending := c.failed
	c.failed = nil
	c.mu.Unlock()

	var (
		metas    []Meta
		still    []*Window
		firstErr error
	)
	for _, w := range pending {
		meta, err := w.Seal()
		if err != nil {
			sealFailuresTotal.Inc()
			if firstErr == nil {
				firstErr = err
			}
			still = append(still, w)
			continue
		}
		windowsSealedTotal.Inc()
		metas = append(metas, meta)
		c.mu.Lock()
		c.sealed = append(c.sealed, meta)
		c.mu.Unlock()
		c.hub.Publish(events.CaptureWindow, windowEvent(meta))
		logrus.WithField("path", meta.Path).Info("window resealed")
	}

	if len(still) > 0 {
		c.mu.Lock()
		c.failed = append(still, c.failed...)
		c.mu.Unlock()
	}
	return metas, firstErr
}

// run is the capture loop, sole writer to ring and current window.
func (c *Controller) run() {
	defer close(c.donec)

	for {
		select {
		case <-c.stopc:
			c.finish(nil)
			return
		default:
		}

		s, err := c.dev.ReadSample(c.opts.SamplePeriod)
		switch {
		case err == nil:
		case errors.Is(err, probe.ErrReadTimeout):
			// No sample this tick.
			readTimeoutsTotal.Inc()
			continue
		default:
			logrus.WithError(err).Error("probe read failed, capture session aborted")
			c.finish(err)
			return
		}

		if !c.cur.Contains(s.Time) {
			if c.opts.MaxWindows > 0 && int(c.windowIndex.Load())+1 >= c.opts.MaxWindows {
				c.finish(nil)
				return
			}
			c.rotate(s.Time)
		}

		if err := c.cur.Accept(s); err != nil {
			// Only possible if rotation regressed; surface loudly.
			logrus.WithError(err).Error("sample rejected by open window")
		}
		c.ring.Push(s)
		c.sampleCount.Add(1)
		samplesTotal.Inc()
		c.hub.Publish(events.CaptureSample, s)
	}
}

// rotate seals the current window off the hot path and opens the next one,
// so ingestion continues while the old file is still being written.
func (c *Controller) rotate(now time.Time) {
	old := c.cur
	old.close()

	idx := int(c.windowIndex.Add(1))
	c.cur = newWindow(c.opts.LogDir, idx, windowStart(now, c.opts.WindowDuration), c.opts.WindowDuration)

	select {
	case c.flushc <- old:
	default:
		// Flusher backlog is full; seal inline rather than drop the window.
		c.seal(old)
	}
}

// finish leaves the hot path: stops the probe, drains the flusher, seals
// the in-flight window and settles the final state.
func (c *Controller) finish(cause error) {
	if err := c.dev.Close(); err != nil {
		logrus.WithError(err).Warn("failed to close probe")
	}

	close(c.flushc)
	<-c.flushDone

	// Partial window is sealed, not discarded: no sample loss on stop or
	// device fault.
	c.seal(c.cur)

	c.mu.Lock()
	if cause != nil {
		c.state = StateError
		c.lastErr = cause
	} else {
		c.state = StateIdle
	}
	c.mu.Unlock()

	if cause != nil {
		c.publishState(StateError, cause.Error())
	} else {
		c.publishState(StateIdle, "")
	}
}

func (c *Controller) flusher() {
	defer close(c.flushDone)
	for w := range c.flushc {
		c.seal(w)
	}
}

func (c *Controller) seal(w *Window) {
	meta, err := w.Seal()
	if err != nil {
		sealFailuresTotal.Inc()
		logrus.WithError(err).WithField("path", meta.Path).Error("window seal failed, samples retained for reseal")
		c.mu.Lock()
		c.failed = append(c.failed, w)
		c.mu.Unlock()
		return
	}

	windowsSealedTotal.Inc()
	c.mu.Lock()
	c.sealed = append(c.sealed, meta)
	c.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"path":    meta.Path,
		"samples": meta.Samples,
	}).Debug("window sealed")
	c.hub.Publish(events.CaptureWindow, windowEvent(meta))
}

func (c *Controller) publishState(s State, errMsg string) {
	c.hub.Publish(events.CaptureState, events.StateEvent{
		State: string(s),
		Error: errMsg,
		Ts:    time.Now().Unix(),
	})
}

func windowEvent(m Meta) events.WindowEvent {
	return events.WindowEvent{
		Index:   m.Index,
		Start:   m.Start,
		End:     m.End,
		Samples: m.Samples,
		Path:    m.Path,
	}
}
