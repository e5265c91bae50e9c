package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewFileMissingFileUsesDefaults(t *testing.T) {
	f, err := NewFile(filepath.Join(t.TempDir(), "wattlog.json"))
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}

	if got := f.WindowSeconds(); got != 60 {
		t.Errorf("WindowSeconds() = %d, want 60", got)
	}
	if got := f.RingCapacity(); got != 1200 {
		// 2 windows * 60 s * 10 Hz hint.
		t.Errorf("RingCapacity() = %d, want 1200", got)
	}
	if got := f.LogDir(); got != "/var/log/wattlog" {
		t.Errorf("LogDir() = %q, want /var/log/wattlog", got)
	}
	if got := f.SampleRateHint(); got != 10 {
		t.Errorf("SampleRateHint() = %v, want 10", got)
	}
	if got := f.ListenAddress(); got != "" {
		t.Errorf("ListenAddress() = %q, want empty", got)
	}
	if f.AllowNonRootAccess() {
		t.Error("AllowNonRootAccess() = true, want false")
	}
}

func TestRingCapacityDerivation(t *testing.T) {
	cases := []struct {
		name          string
		windowSeconds int
		hint          float64
		want          int
	}{
		{name: "short window keeps the floor", windowSeconds: 10, hint: 10, want: 1024},
		{name: "long window grows the ring", windowSeconds: 300, hint: 10, want: 6000},
		{name: "fast probe grows the ring", windowSeconds: 60, hint: 100, want: 12000},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			f := NewFileFromConfig(&RawFileConfig{
				WindowSeconds:  &c.windowSeconds,
				SampleRateHint: &c.hint,
			}, "")
			if got := f.RingCapacity(); got != c.want {
				t.Fatalf("RingCapacity() = %d, want %d", got, c.want)
			}
		})
	}
}

func TestExplicitRingCapacityWins(t *testing.T) {
	capacity := 77
	f := NewFileFromConfig(&RawFileConfig{RingCapacity: &capacity}, "")
	if got := f.RingCapacity(); got != 77 {
		t.Fatalf("RingCapacity() = %d, want the explicit 77", got)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wattlog.json")

	f, err := NewFile(path)
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}

	f.SetWindowSeconds(120)
	f.SetLogDir("/tmp/wattlog-test")
	if err := f.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	g, err := NewFile(path)
	if err != nil {
		t.Fatalf("NewFile after Save: %v", err)
	}
	if got := g.WindowSeconds(); got != 120 {
		t.Errorf("WindowSeconds() = %d, want 120", got)
	}
	if got := g.LogDir(); got != "/tmp/wattlog-test" {
		t.Errorf("LogDir() = %q, want /tmp/wattlog-test", got)
	}
	// Untouched fields still resolve to defaults.
	if got := g.SampleRateHint(); got != 10 {
		t.Errorf("SampleRateHint() = %v, want 10", got)
	}
}

func TestLoadEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wattlog.json")
	if err := os.WriteFile(path, []byte("  \n"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	f, err := NewFile(path)
	if err != nil {
		t.Fatalf("NewFile on empty file: %v", err)
	}
	if got := f.WindowSeconds(); got != 60 {
		t.Fatalf("WindowSeconds() = %d, want the default", got)
	}
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wattlog.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, err := NewFile(path); err == nil {
		t.Fatal("NewFile accepted malformed JSON")
	}
}

func TestSetWindowSecondsRejectsNonPositive(t *testing.T) {
	f := NewFileFromConfig(&RawFileConfig{}, "")
	defer func() {
		if recover() == nil {
			t.Fatal("SetWindowSeconds(0) did not panic")
		}
	}()
	f.SetWindowSeconds(0)
}
