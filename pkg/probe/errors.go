package probe

import pkgerrors "github.com/pkg/errors"

var (
	// ErrNotFound is returned when no probe is attached.
	ErrNotFound = pkgerrors.New("probe not found")

	// ErrDisconnected is returned when the probe went away mid-session.
	ErrDisconnected = pkgerrors.New("probe disconnected")

	// ErrReadTimeout means no sample was produced within the read timeout.
	// The caller treats it as "no sample this tick" and polls again.
	ErrReadTimeout = pkgerrors.New("probe read timed out")
)
