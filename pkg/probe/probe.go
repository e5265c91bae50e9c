// Package probe is the boundary to the USB energy-measurement probe. The
// vendor SDK owns signal acquisition and calibration; this package only
// defines the device contract the capture pipeline polls against, plus a
// simulated probe for machines without hardware.
package probe

import (
	"time"

	"github.com/powerlab/wattlog/pkg/types"
)

// Device is a single energy probe. Implementations never retry on their
// own; reconnect policy belongs to the caller.
type Device interface {
	// Open claims the probe. Returns ErrNotFound when no probe is attached.
	Open() error

	// Close releases the probe handle.
	Close() error

	// ReadSample blocks up to timeout for the next sample. Returns
	// ErrReadTimeout when no sample arrived in time (not a fault, the
	// caller just polls again) and ErrDisconnected when the probe went
	// away mid-session.
	ReadSample(timeout time.Duration) (types.Sample, error)

	// String identifies the device for logs and the device list.
	String() string
}

// Info describes an attached probe.
type Info struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Scan lists attached probes. Without a vendor SDK binding linked in, the
// scan reports the simulated probe so the daemon is usable end to end.
func Scan() []Info {
	return []Info{
		{ID: "sim0", Name: "simulated probe"},
	}
}
