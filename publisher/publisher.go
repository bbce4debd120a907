// Package publisher implements collector-side location sharing: an
// initial one-shot fix, a continuous sensor watch that only refreshes
// the last-known sample, and a fixed-interval upload of whatever that
// sample currently is. Decoupling the watch from the uploads bounds
// network traffic no matter how often the sensor reports.
package publisher

import (
	"context"
	"sync"
	"time"

	"github.com/apex/log"

	"wastetrack/api"
	"wastetrack/client"
	"wastetrack/geoloc"
	"wastetrack/notify"
)

const (
	// DefaultInterval is the cadence of the periodic upload.
	DefaultInterval = 10 * time.Second

	fixTimeout = 15 * time.Second
	fixMaxAge  = 5 * time.Second
)

// Publisher shares the device position while active. A Publisher is
// either idle or sharing; transitions happen only through Start, Stop,
// and Close.
type Publisher struct {
	client      *client.Client
	geo         geoloc.Provider
	notify      notify.Notifier
	collectorID string
	interval    time.Duration

	// OnPreview, when set, receives every sensor sample for display.
	OnPreview func(geoloc.Position)

	mu          sync.Mutex
	sharing     bool
	last        *geoloc.Position
	cancelWatch geoloc.CancelFunc
	stopTicker  chan struct{}
	wg          sync.WaitGroup
}

// New builds a publisher for the given collector identity. An empty
// collectorID disables uploads (samples are still observed for
// preview). n may be nil.
func New(c *client.Client, geo geoloc.Provider, n notify.Notifier, collectorID string) *Publisher {
	if n == nil {
		n = notify.Discard()
	}
	return &Publisher{
		client:      c,
		geo:         geo,
		notify:      n,
		collectorID: collectorID,
		interval:    DefaultInterval,
	}
}

// SetInterval overrides the upload cadence. Effective on the next
// Start.
func (p *Publisher) SetInterval(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.interval = d
}

// Sharing reports whether the publisher is currently active.
func (p *Publisher) Sharing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sharing
}

// LastPosition returns the most recent sensor sample, or nil.
func (p *Publisher) LastPosition() *geoloc.Position {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last == nil {
		return nil
	}
	pos := *p.last
	return &pos
}

// Start enters the sharing state: it requests an initial fix (uploaded
// immediately when obtained), starts the continuous watch, and starts
// the periodic upload ticker. Calling Start while sharing is a no-op.
func (p *Publisher) Start(ctx context.Context) {
	opts := geoloc.Options{HighAccuracy: true, Timeout: fixTimeout, MaximumAge: fixMaxAge}

	p.mu.Lock()
	if p.sharing {
		p.mu.Unlock()
		return
	}
	p.sharing = true
	stop := make(chan struct{})
	p.stopTicker = stop
	interval := p.interval
	p.mu.Unlock()

	// Initial one-shot fix. Failure only notifies; sharing stays on
	// and the watch may still deliver a fix later. Not tracked by the
	// waitgroup so Stop never blocks on a pending fix.
	go func() {
		fctx, cancel := context.WithTimeout(ctx, fixTimeout)
		defer cancel()
		pos, err := p.geo.Current(fctx, opts)
		if err != nil {
			p.sensorError(err)
			return
		}
		p.record(pos)
		if p.collectorID != "" {
			if err := p.upload(ctx, pos); err != nil {
				log.Errorf("failed to send initial location: %v", err)
			}
		}
	}()

	// Continuous watch: refreshes the last-known sample and the
	// preview, never uploads.
	cancelWatch := p.geo.Watch(opts, p.record, p.sensorError)
	p.mu.Lock()
	p.cancelWatch = cancelWatch
	p.mu.Unlock()

	// Periodic upload of the last-known sample. Ticks with no sample
	// yet are skipped entirely.
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				last := p.LastPosition()
				if last == nil || p.collectorID == "" {
					continue
				}
				if err := p.upload(ctx, *last); err != nil {
					log.Errorf("failed to send location: %v", err)
				}
			}
		}
	}()

	p.notify.Success("Location sharing started")
}

// Stop leaves the sharing state: the watch and ticker are cancelled
// first, then an offline marker (no coordinates) is uploaded best
// effort.
func (p *Publisher) Stop(ctx context.Context) {
	if !p.halt() {
		return
	}
	if err := p.client.Post(ctx, api.LocationUpdateEndpoint, api.LocationUpdateArgs{IsOnline: false}, nil); err != nil {
		// Ignored: the backend will age the entry out on its own.
		log.Debugf("offline marker not delivered: %v", err)
	}
	p.notify.Info("Location sharing stopped")
}

// Close tears the publisher down without sending the offline marker.
// The teardown path must not wait on network I/O.
func (p *Publisher) Close() {
	p.halt()
}

// halt cancels the watch and ticker and flips the state to idle.
// It returns false when the publisher was already idle.
func (p *Publisher) halt() bool {
	p.mu.Lock()
	if !p.sharing {
		p.mu.Unlock()
		return false
	}
	p.sharing = false
	cancelWatch := p.cancelWatch
	p.cancelWatch = nil
	stop := p.stopTicker
	p.stopTicker = nil
	p.mu.Unlock()

	if cancelWatch != nil {
		cancelWatch()
	}
	if stop != nil {
		close(stop)
	}
	p.wg.Wait()
	return true
}

func (p *Publisher) record(pos geoloc.Position) {
	p.mu.Lock()
	p.last = &pos
	p.mu.Unlock()
	if p.OnPreview != nil {
		p.OnPreview(pos)
	}
}

func (p *Publisher) sensorError(err error) {
	switch geoloc.Code(err) {
	case geoloc.CodePermissionDenied:
		p.notify.Error("Location permission denied")
	case geoloc.CodeTimeout:
		p.notify.Info("Waiting for GPS fix...")
	default:
		log.Warnf("position error: %v", err)
	}
}

func (p *Publisher) upload(ctx context.Context, pos geoloc.Position) error {
	lat, lng := pos.Latitude, pos.Longitude
	args := api.LocationUpdateArgs{
		Latitude:  &lat,
		Longitude: &lng,
		Timestamp: pos.At.UTC().Format(time.RFC3339),
		IsOnline:  true,
	}
	return p.client.Post(ctx, api.LocationUpdateEndpoint, args, nil)
}
