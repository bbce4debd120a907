package geoloc

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"
)

// SimProvider is a simulated sensor that drives a slow circle around a
// base coordinate, for agents running without real GPS hardware.
type SimProvider struct {
	BaseLat  float64
	BaseLng  float64
	RadiusM  float64
	Interval time.Duration

	mu    sync.Mutex
	angle float64
}

// NewSimProvider simulates a vehicle circling base at roughly radiusM
// meters, emitting a fix per interval on watches.
func NewSimProvider(baseLat, baseLng, radiusM float64, interval time.Duration) *SimProvider {
	return &SimProvider{
		BaseLat:  baseLat,
		BaseLng:  baseLng,
		RadiusM:  radiusM,
		Interval: interval,
		angle:    rand.Float64() * 2 * math.Pi,
	}
}

func (s *SimProvider) next() Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.angle += 0.05
	// ~111km per degree of latitude.
	dLat := s.RadiusM * math.Sin(s.angle) / 111_000
	dLng := s.RadiusM * math.Cos(s.angle) / (111_000 * math.Cos(s.BaseLat*math.Pi/180))
	return Position{
		Latitude:  s.BaseLat + dLat,
		Longitude: s.BaseLng + dLng,
		At:        time.Now(),
	}
}

// Current returns the next simulated fix immediately.
func (s *SimProvider) Current(ctx context.Context, opts Options) (Position, error) {
	select {
	case <-ctx.Done():
		return Position{}, &SensorError{Code: CodeTimeout, Reason: "simulated fix cancelled"}
	default:
		return s.next(), nil
	}
}

// Watch emits a simulated fix per interval until cancelled.
func (s *SimProvider) Watch(opts Options, onPos func(Position), onErr func(error)) CancelFunc {
	interval := s.Interval
	if interval <= 0 {
		interval = time.Second
	}
	stop := make(chan struct{})
	var once sync.Once
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				onPos(s.next())
			}
		}
	}()
	return func() { once.Do(func() { close(stop) }) }
}
