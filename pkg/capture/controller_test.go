package capture

import (
	"errors"
	"testing"
	"time"

	"github.com/powerlab/wattlog/pkg/events"
	"github.com/powerlab/wattlog/pkg/probe"
)

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", msg)
}

func testOptions(t *testing.T) Options {
	t.Helper()
	return Options{
		WindowDuration: 250 * time.Millisecond,
		RingCapacity:   100000,
		LogDir:         t.TempDir(),
		SamplePeriod:   5 * time.Millisecond,
	}
}

func TestControllerStartStop(t *testing.T) {
	dev := probe.NewSim(200)
	c := NewController(dev, events.NewHub())

	if err := c.Stop(); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("Stop while idle = %v, want ErrNotRunning", err)
	}

	if err := c.Start(testOptions(t)); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := c.Status().State; got != StateRunning {
		t.Fatalf("state after Start = %s, want %s", got, StateRunning)
	}

	if err := c.Start(testOptions(t)); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("second Start = %v, want ErrAlreadyRunning", err)
	}

	waitFor(t, 2*time.Second, func() bool {
		return c.Status().SampleCount > 5
	}, "samples to arrive")

	if err := c.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if got := c.Status().State; got != StateIdle {
		t.Fatalf("state after Stop = %s, want %s", got, StateIdle)
	}

	if err := c.Stop(); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("Stop while idle = %v, want ErrNotRunning", err)
	}
}

func TestControllerStopSealsPartialWindow(t *testing.T) {
	dev := probe.NewSim(200)
	c := NewController(dev, events.NewHub())

	opts := testOptions(t)
	opts.WindowDuration = time.Hour // never rotates on its own
	if err := c.Start(opts); err != nil {
		t.Fatalf("Start: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool {
		return c.Status().SampleCount > 10
	}, "samples to arrive")

	if err := c.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	st := c.Status()
	if len(st.Windows) != 1 {
		t.Fatalf("got %d sealed windows, want the partial window sealed on stop", len(st.Windows))
	}
	if got := int64(st.Windows[0].Samples); got != st.SampleCount {
		t.Fatalf("sealed %d samples, captured %d; partial window lost samples", got, st.SampleCount)
	}
}

func TestControllerSampleConservation(t *testing.T) {
	dev := probe.NewSim(200)
	c := NewController(dev, events.NewHub())

	if err := c.Start(testOptions(t)); err != nil {
		t.Fatalf("Start: %v", err)
	}

	waitFor(t, 5*time.Second, func() bool {
		return c.Status().WindowIndex >= 2
	}, "a couple of window rotations")

	if err := c.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	st := c.Status()
	var sealed int64
	for _, m := range st.Windows {
		sealed += int64(m.Samples)
	}
	if sealed != st.SampleCount {
		t.Fatalf("windows hold %d samples, controller captured %d; fan-out lost or duplicated samples", sealed, st.SampleCount)
	}

	// The ring is large enough to have kept every sample too.
	if got := int64(len(c.Snapshot())); got != st.SampleCount {
		t.Fatalf("ring holds %d samples, controller captured %d", got, st.SampleCount)
	}
}

func TestControllerWindowCount(t *testing.T) {
	dev := probe.NewSim(200)
	c := NewController(dev, events.NewHub())

	opts := testOptions(t)
	opts.WindowDuration = 250 * time.Millisecond

	// Begin a known offset past a window boundary so the first window is
	// partial by construction.
	const offset = 50 * time.Millisecond
	now := time.Now()
	time.Sleep(now.Truncate(opts.WindowDuration).Add(opts.WindowDuration + offset).Sub(now))

	if err := c.Start(opts); err != nil {
		t.Fatalf("Start: %v", err)
	}
	time.Sleep(600 * time.Millisecond)
	if err := c.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	// 600ms starting 50ms past a boundary crosses two more boundaries:
	// three windows in total, the last one partial too.
	st := c.Status()
	if len(st.Windows) != 3 {
		t.Fatalf("got %d sealed windows, want 3", len(st.Windows))
	}

	for i, m := range st.Windows {
		if m.Index != i {
			t.Errorf("window %d has index %d", i, m.Index)
		}
		if !m.Start.Equal(m.Start.Truncate(opts.WindowDuration)) {
			t.Errorf("window %d start %v is not wall-aligned", i, m.Start)
		}
		if got := m.End.Sub(m.Start); got != opts.WindowDuration {
			t.Errorf("window %d spans %v, want %v", i, got, opts.WindowDuration)
		}
		if i > 0 && !m.Start.Equal(st.Windows[i-1].End) {
			t.Errorf("window %d does not begin where window %d ends", i, i-1)
		}
	}

	// The session began mid-window, so the first file holds fewer samples
	// than the full middle one.
	if st.Windows[0].Samples >= st.Windows[1].Samples {
		t.Fatalf("first window holds %d samples, middle %d; first should be the short one",
			st.Windows[0].Samples, st.Windows[1].Samples)
	}
}

func TestControllerRestartDuringStop(t *testing.T) {
	dev := probe.NewSim(200)
	c := NewController(dev, events.NewHub())

	opts := testOptions(t)
	opts.WindowDuration = time.Hour
	if err := c.Start(opts); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, 2*time.Second, func() bool {
		return c.Status().SampleCount > 0
	}, "samples to arrive")

	stopped := make(chan error, 1)
	go func() {
		stopped <- c.Stop()
	}()

	// Start keeps bouncing off the in-flight stop until the controller is
	// idle again, then claims a fresh session.
	waitFor(t, 2*time.Second, func() bool {
		err := c.Start(opts)
		if err == nil {
			return true
		}
		if !errors.Is(err, ErrBusy) && !errors.Is(err, ErrAlreadyRunning) {
			t.Fatalf("Start during stop = %v, want ErrBusy or ErrAlreadyRunning", err)
		}
		return false
	}, "restart after the stop lands")

	if err := <-stopped; err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := c.Stop(); err != nil {
		t.Fatalf("Stop of restarted session: %v", err)
	}
}

func TestControllerMaxWindows(t *testing.T) {
	dev := probe.NewSim(200)
	c := NewController(dev, events.NewHub())

	opts := testOptions(t)
	opts.WindowDuration = 100 * time.Millisecond
	opts.MaxWindows = 2
	if err := c.Start(opts); err != nil {
		t.Fatalf("Start: %v", err)
	}

	waitFor(t, 5*time.Second, func() bool {
		return c.Status().State == StateIdle
	}, "session to finish on its own")

	st := c.Status()
	if len(st.Windows) != 2 {
		t.Fatalf("got %d sealed windows, want exactly MaxWindows", len(st.Windows))
	}
}

func TestControllerDeviceFault(t *testing.T) {
	dev := probe.NewSim(200)
	hub := events.NewHub()
	sub := hub.Subscribe()
	defer hub.Unsubscribe(sub)

	c := NewController(dev, hub)
	if err := c.Start(testOptions(t)); err != nil {
		t.Fatalf("Start: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool {
		return c.Status().SampleCount > 5
	}, "samples to arrive")

	dev.Fail(probe.ErrDisconnected)

	waitFor(t, 2*time.Second, func() bool {
		return c.Status().State == StateError
	}, "controller to notice the fault")

	st := c.Status()
	if st.LastError == "" {
		t.Fatal("LastError empty after device fault")
	}
	if len(st.Windows) != 1 || st.Windows[0].Samples == 0 {
		t.Fatalf("partial window not sealed on fault: %+v", st.Windows)
	}

	// An error state announcement must have reached subscribers.
	waitFor(t, 2*time.Second, func() bool {
		for {
			select {
			case ev := <-sub:
				if ev.Name != events.CaptureState {
					continue
				}
				se, err := events.DecodeAs[events.StateEvent](ev)
				if err == nil && se.State == string(StateError) {
					return true
				}
			default:
				return false
			}
		}
	}, "error state event")

	// A fresh Start is valid from Error and clears the fault.
	if err := c.Start(testOptions(t)); err != nil {
		t.Fatalf("Start from error state: %v", err)
	}
	if st := c.Status(); st.LastError != "" {
		t.Fatalf("LastError = %q after restart, want cleared", st.LastError)
	}
	if err := c.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestControllerSnapshotBeforeFirstSession(t *testing.T) {
	c := NewController(probe.NewSim(10), events.NewHub())
	if got := c.Snapshot(); got != nil {
		t.Fatalf("Snapshot before first session = %v, want nil", got)
	}
}

func TestControllerResealAfterDiskRecovers(t *testing.T) {
	dev := probe.NewSim(200)
	c := NewController(dev, events.NewHub())

	opts := testOptions(t)
	opts.WindowDuration = time.Hour
	if err := c.Start(opts); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, 2*time.Second, func() bool {
		return c.Status().SampleCount > 5
	}, "samples to arrive")
	if err := c.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	// Nothing pending: Reseal is a no-op.
	metas, err := c.Reseal()
	if err != nil {
		t.Fatalf("Reseal with nothing pending: %v", err)
	}
	if len(metas) != 0 {
		t.Fatalf("Reseal flushed %d windows, want 0", len(metas))
	}
}
