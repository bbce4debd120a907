// Package tracker implements the resident-side live feed of collector
// positions: a server-sent-events stream when available, downgraded
// exactly once to fixed-interval polling for the rest of the
// tracker's lifetime if the stream fails.
package tracker

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/apex/log"

	"wastetrack/api"
	"wastetrack/client"
	"wastetrack/models"
)

// DefaultPollInterval is the snapshot polling cadence after stream
// fallback.
const DefaultPollInterval = 5 * time.Second

// Mode identifies which live-update channel is active.
type Mode string

const (
	ModeStreaming Mode = "streaming"
	ModePolling   Mode = "polling"
)

// Tracker subscribes to the collectors' live locations and hands each
// complete marker set to OnUpdate. The set is replaced wholesale on
// every event; collectors absent from the latest payload disappear.
type Tracker struct {
	client   *client.Client
	interval time.Duration
	onUpdate func([]models.Marker)

	mu     sync.Mutex
	mode   Mode
	stop   chan struct{}
	wg     sync.WaitGroup
	active bool
}

// New builds a tracker delivering marker sets to onUpdate.
func New(c *client.Client, onUpdate func([]models.Marker)) *Tracker {
	return &Tracker{
		client:   c,
		interval: DefaultPollInterval,
		onUpdate: onUpdate,
		mode:     ModeStreaming,
	}
}

// SetPollInterval overrides the fallback polling cadence. Effective on
// the next Start.
func (t *Tracker) SetPollInterval(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.interval = d
}

// Mode reports the active channel.
func (t *Tracker) Mode() Mode {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.mode
}

// Start begins the subscription. Calling Start while running is a
// no-op.
func (t *Tracker) Start(ctx context.Context) {
	t.mu.Lock()
	if t.active {
		t.mu.Unlock()
		return
	}
	t.active = true
	t.mode = ModeStreaming
	t.stop = make(chan struct{})
	stop := t.stop
	t.mu.Unlock()

	t.wg.Add(1)
	go t.run(ctx, stop)
}

// Stop tears the subscription down: the poll ticker is cleared and
// any open stream closed.
func (t *Tracker) Stop() {
	t.mu.Lock()
	if !t.active {
		t.mu.Unlock()
		return
	}
	t.active = false
	close(t.stop)
	t.mu.Unlock()
	t.wg.Wait()
}

func (t *Tracker) run(ctx context.Context, stop chan struct{}) {
	defer t.wg.Done()

	s, err := openStream(ctx, t.client.HTTPClient(), t.client.StreamURL())
	if err != nil {
		log.Warnf("live stream unavailable, falling back to polling: %v", err)
		t.poll(ctx, stop)
		return
	}

	for {
		select {
		case <-stop:
			s.close()
			return
		case payload, ok := <-s.events:
			if !ok {
				// Stream errored or ended: torn down once, then
				// polling for the remainder of this tracker's life.
				s.close()
				log.Warnf("live stream lost, falling back to polling")
				t.poll(ctx, stop)
				return
			}
			t.deliver(payload)
		}
	}
}

// poll fetches the snapshot immediately and then on every tick until
// stopped. The stream is never reopened.
func (t *Tracker) poll(ctx context.Context, stop chan struct{}) {
	t.mu.Lock()
	t.mode = ModePolling
	interval := t.interval
	t.mu.Unlock()

	t.fetchOnce(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			t.fetchOnce(ctx)
		}
	}
}

func (t *Tracker) fetchOnce(ctx context.Context) {
	var locations api.LocationMap
	if err := t.client.Get(ctx, api.LocationsEndpoint, &locations); err != nil {
		log.Warnf("failed to fetch collector locations: %v", err)
		t.onUpdate([]models.Marker{})
		return
	}
	t.onUpdate(models.BuildMarkers(locations))
}

func (t *Tracker) deliver(payload []byte) {
	var locations api.LocationMap
	if err := json.Unmarshal(payload, &locations); err != nil {
		// Parse errors are ignored; the next event replaces the set.
		return
	}
	t.onUpdate(models.BuildMarkers(locations))
}
