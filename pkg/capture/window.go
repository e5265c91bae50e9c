package capture

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/powerlab/wattlog/pkg/types"
)

// ErrWindowClosed is returned when a sample is offered to a window that has
// already been closed. Under correct sequencing this never happens; it is
// surfaced rather than swallowed to catch integration bugs.
var ErrWindowClosed = pkgerrors.New("window already closed")

// csvHeader is the persisted-file contract: one row per sample.
var csvHeader = []string{"timestamp", "current", "voltage", "power", "energy"}

// High-resolution formatting, matching the log files consumers already
// parse: 12 decimal places for current/power/energy, 9 for voltage,
// microsecond timestamps.
const timestampLayout = "2006-01-02 15:04:05.000000"

// Meta describes a window once sealed.
type Meta struct {
	Index   int       `json:"index"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	Samples int       `json:"samples"`
	Path    string    `json:"path"`
}

// Window buffers the samples of one wall-clock-aligned slice of a session
// and seals them to a single CSV file named by the window start boundary.
// A Window is owned by one goroutine at a time and is not internally
// locked: the capture loop fills it, then hands it off for sealing.
type Window struct {
	index   int
	start   time.Time
	end     time.Time
	path    string
	samples []types.Sample
	count   int
	closed  bool
	flushed bool
}

// windowStart returns the wall-clock-aligned boundary at or before t, so
// concurrent or restarted sessions produce comparable, non-overlapping
// files.
func windowStart(t time.Time, d time.Duration) time.Time {
	return t.Truncate(d)
}

// newWindow opens the window covering [start, start+d).
func newWindow(dir string, index int, start time.Time, d time.Duration) *Window {
	return &Window{
		index: index,
		start: start,
		end:   start.Add(d),
		path:  filepath.Join(dir, start.Format("20060102_150405")+".csv"),
	}
}

// Contains reports whether a sample taken at t belongs to this window.
func (w *Window) Contains(t time.Time) bool {
	return t.Before(w.end)
}

// Accept appends a sample to the open window.
func (w *Window) Accept(s types.Sample) error {
	if w.closed {
		return ErrWindowClosed
	}
	w.samples = append(w.samples, s)
	w.count++
	return nil
}

// close marks the window immutable without flushing it. Used on rotation so
// the window rejects samples while it waits for the flusher.
func (w *Window) close() {
	w.closed = true
}

// Meta returns the window metadata.
func (w *Window) Meta() Meta {
	return Meta{
		Index:   w.index,
		Start:   w.start,
		End:     w.end,
		Samples: w.count,
		Path:    w.path,
	}
}

// Seal closes the window and flushes its samples to the CSV file. Sealing
// an already-flushed window returns the same metadata without touching the
// file again. A failed flush keeps the samples in memory, so Seal can be
// retried later; the window stays closed to new samples either way.
func (w *Window) Seal() (Meta, error) {
	w.closed = true
	if w.flushed {
		return w.Meta(), nil
	}
	if err := w.flush(); err != nil {
		return w.Meta(), pkgerrors.Wrapf(err, "failed to seal window %d to %s", w.index, w.path)
	}
	w.flushed = true
	w.samples = nil
	return w.Meta(), nil
}

func (w *Window) flush() error {
	f, err := os.OpenFile(w.path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(f)
	if err := cw.Write(csvHeader); err != nil {
		_ = f.Close()
		return err
	}
	for _, s := range w.samples {
		rec := []string{
			s.Time.Format(timestampLayout),
			strconv.FormatFloat(s.Current, 'f', 12, 64),
			strconv.FormatFloat(s.Voltage, 'f', 9, 64),
			strconv.FormatFloat(s.Power, 'f', 12, 64),
			strconv.FormatFloat(s.Energy, 'f', 12, 64),
		}
		if err := cw.Write(rec); err != nil {
			_ = f.Close()
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
