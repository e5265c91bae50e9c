package scheduler

import (
	"sync/atomic"
	"testing"
	"time"

	pkgerrors "github.com/pkg/errors"
)

var errTask = pkgerrors.New("task failed")

func TestSetInvalidExpression(t *testing.T) {
	s := New(func() error { return nil }, nil)
	if err := s.Set("not a cron expression"); err == nil {
		t.Fatal("Set accepted an invalid cron expression")
	}
	if expr, _ := s.Next(); expr != "" {
		t.Fatalf("invalid Set left expression %q behind", expr)
	}
}

func TestSetAndClear(t *testing.T) {
	s := New(func() error { return nil }, nil)

	if err := s.Set("0 9 * * *"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	expr, next := s.Next()
	if expr != "0 9 * * *" {
		t.Fatalf("expression = %q", expr)
	}
	if next.IsZero() {
		t.Fatal("next run not computed")
	}

	s.Clear()
	expr, next = s.Next()
	if expr != "" || !next.IsZero() {
		t.Fatalf("after Clear: expr=%q next=%v, want empty", expr, next)
	}
}

func TestScheduledTaskFires(t *testing.T) {
	var fired atomic.Int32
	s := New(func() error {
		fired.Add(1)
		return nil
	}, nil)
	s.Start()
	defer s.Stop()

	// Six-field expression with seconds: fire every second.
	if err := s.Set("* * * * * *"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if fired.Load() > 0 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("scheduled task never fired")
}

func TestTaskErrorNotifies(t *testing.T) {
	errc := make(chan string, 1)
	s := New(func() error {
		return errTask
	}, func(msg string) {
		select {
		case errc <- msg:
		default:
		}
	})
	s.Start()
	defer s.Stop()

	if err := s.Set("* * * * * *"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	select {
	case msg := <-errc:
		if msg != errTask.Error() {
			t.Fatalf("notified %q, want %q", msg, errTask.Error())
		}
	case <-time.After(3 * time.Second):
		t.Fatal("OnError never called")
	}
}

func TestStopIsIdempotent(t *testing.T) {
	s := New(func() error { return nil }, nil)
	s.Start()
	s.Stop()
	s.Stop()
}
