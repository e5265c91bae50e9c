package types

import "time"

// Sample is a single probe reading. Time comes from time.Now at read time,
// so it carries both the wall clock (used for window boundaries and CSV
// timestamps) and the monotonic reading (used for ordering).
type Sample struct {
	Time    time.Time `json:"time"`
	Current float64   `json:"current"` // amperes
	Voltage float64   `json:"voltage"` // volts
	Power   float64   `json:"power"`   // watts
	Energy  float64   `json:"energy"`  // cumulative joules since the probe was opened
}
