package probe

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/powerlab/wattlog/pkg/types"
)

// Sim is a software probe that synthesizes a plausible load profile at a
// fixed sample rate. It stands in for the vendor SDK on machines without
// hardware attached and backs the capture tests.
type Sim struct {
	mu       sync.Mutex
	open     bool
	rate     float64
	period   time.Duration
	energy   float64
	last     time.Time
	phase    float64
	rnd      *rand.Rand
	failWith error
}

// NewSim returns a simulated probe producing samples at rate Hz.
func NewSim(rate float64) *Sim {
	if rate <= 0 {
		rate = 10
	}
	return &Sim{
		rate:   rate,
		period: time.Duration(float64(time.Second) / rate),
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (s *Sim) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.open {
		return pkgerrors.New("probe already open")
	}
	s.open = true
	s.energy = 0
	s.last = time.Time{}
	logrus.WithField("rate", s.rate).Debug("simulated probe opened")
	return nil
}

func (s *Sim) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = false
	logrus.Debug("simulated probe closed")
	return nil
}

// Fail makes the next ReadSample return err, emulating a USB fault.
func (s *Sim) Fail(err error) {
	s.mu.Lock()
	s.failWith = err
	s.mu.Unlock()
}

func (s *Sim) ReadSample(timeout time.Duration) (types.Sample, error) {
	s.mu.Lock()
	if !s.open {
		s.mu.Unlock()
		return types.Sample{}, ErrDisconnected
	}
	if err := s.failWith; err != nil {
		s.failWith = nil
		s.mu.Unlock()
		return types.Sample{}, err
	}
	period := s.period
	s.mu.Unlock()

	if timeout < period {
		time.Sleep(timeout)
		return types.Sample{}, ErrReadTimeout
	}
	time.Sleep(period)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return types.Sample{}, ErrDisconnected
	}

	now := time.Now()
	// One full load swing roughly every 30 seconds.
	s.phase += 2 * math.Pi / (s.rate * 30)

	voltage := 5.0 + 0.002*s.rnd.NormFloat64()
	current := 0.25 + 0.2*math.Sin(s.phase) + 0.005*s.rnd.NormFloat64()
	if current < 0 {
		current = 0
	}
	power := voltage * current
	if !s.last.IsZero() {
		s.energy += power * now.Sub(s.last).Seconds()
	}
	s.last = now

	return types.Sample{
		Time:    now,
		Current: current,
		Voltage: voltage,
		Power:   power,
		Energy:  s.energy,
	}, nil
}

func (s *Sim) String() string {
	return fmt.Sprintf("simulated probe (%g Hz)", s.rate)
}
