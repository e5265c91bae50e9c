package probe

import (
	"errors"
	"testing"
	"time"
)

func TestSimReadBeforeOpen(t *testing.T) {
	s := NewSim(100)
	if _, err := s.ReadSample(time.Second); !errors.Is(err, ErrDisconnected) {
		t.Fatalf("ReadSample before Open = %v, want ErrDisconnected", err)
	}
}

func TestSimTimeoutShorterThanPeriod(t *testing.T) {
	s := NewSim(1) // one sample per second
	if err := s.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	start := time.Now()
	_, err := s.ReadSample(10 * time.Millisecond)
	if !errors.Is(err, ErrReadTimeout) {
		t.Fatalf("ReadSample = %v, want ErrReadTimeout", err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("timeout took %v, should return after roughly the timeout", elapsed)
	}
}

func TestSimSamplesAreMonotonic(t *testing.T) {
	s := NewSim(200)
	if err := s.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	var lastTime time.Time
	var lastEnergy float64
	for i := 0; i < 20; i++ {
		sample, err := s.ReadSample(time.Second)
		if err != nil {
			t.Fatalf("ReadSample: %v", err)
		}
		if !sample.Time.After(lastTime) {
			t.Fatalf("sample %d time %v not after %v", i, sample.Time, lastTime)
		}
		if sample.Energy < lastEnergy {
			t.Fatalf("sample %d energy %v decreased from %v", i, sample.Energy, lastEnergy)
		}
		if sample.Current < 0 {
			t.Fatalf("sample %d negative current %v", i, sample.Current)
		}
		if sample.Voltage < 4 || sample.Voltage > 6 {
			t.Fatalf("sample %d voltage %v outside the USB envelope", i, sample.Voltage)
		}
		lastTime = sample.Time
		lastEnergy = sample.Energy
	}
}

func TestSimFailInjectsOneFault(t *testing.T) {
	s := NewSim(200)
	if err := s.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	s.Fail(ErrDisconnected)
	if _, err := s.ReadSample(time.Second); !errors.Is(err, ErrDisconnected) {
		t.Fatalf("ReadSample after Fail = %v, want the injected error", err)
	}

	// The fault is one-shot.
	if _, err := s.ReadSample(time.Second); err != nil {
		t.Fatalf("ReadSample after the fault drained = %v, want nil", err)
	}
}

func TestSimDoubleOpen(t *testing.T) {
	s := NewSim(100)
	if err := s.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	if err := s.Open(); err == nil {
		t.Fatal("second Open succeeded, want an error")
	}
}

func TestScanReportsSimulatedProbe(t *testing.T) {
	infos := Scan()
	if len(infos) == 0 {
		t.Fatal("Scan returned no probes")
	}
	if infos[0].ID != "sim0" {
		t.Fatalf("first probe ID = %q, want sim0", infos[0].ID)
	}
}
