package config

import "github.com/sirupsen/logrus"

type Config interface {
	// WindowSeconds is the wall-clock window size for CSV rotation.
	WindowSeconds() int
	// RingCapacity is the live-view ring buffer size in samples.
	RingCapacity() int
	// LogDir is where sealed window files are written.
	LogDir() string
	// SampleRateHint is the expected probe rate in Hz. Used only for
	// buffer sizing and the poll tick, never enforced on the device.
	SampleRateHint() float64
	// ListenAddress is an optional TCP address serving the same API to
	// web clients. Empty disables the TCP listener.
	ListenAddress() string
	AllowNonRootAccess() bool

	SetWindowSeconds(int)
	SetLogDir(string)

	// Load reads the configuration from the source.
	Load() error
	// Save saves the configuration to the source.
	Save() error

	// LogrusFields exposes the effective configuration for startup logs.
	LogrusFields() logrus.Fields
}
