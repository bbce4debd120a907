// Package locations keeps the live collector positions. The registry
// is purely in-memory: the backend is the source of truth only for the
// current moment, and a collector going offline simply drops out of
// the map.
package locations

import (
	"encoding/json"
	"sync"
	"time"

	"wastetrack/api"
)

// Registry holds collector id -> live location and fans each change
// out to stream subscribers as a marshaled snapshot.
type Registry struct {
	mu      sync.Mutex
	entries api.LocationMap
	subs    map[chan []byte]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		entries: make(api.LocationMap),
		subs:    make(map[chan []byte]struct{}),
	}
}

// Update applies a location upload from the given collector. An
// offline upload removes the collector from the map; an online upload
// without coordinates is ignored.
func (r *Registry) Update(collectorID string, args api.LocationUpdateArgs, info api.CollectorInfo) {
	r.mu.Lock()
	if !args.IsOnline {
		delete(r.entries, collectorID)
	} else {
		if args.Latitude == nil || args.Longitude == nil {
			r.mu.Unlock()
			return
		}
		ts := args.Timestamp
		if ts == "" {
			ts = time.Now().UTC().Format(time.RFC3339)
		}
		r.entries[collectorID] = api.LocationRecord{
			Latitude:      args.Latitude,
			Longitude:     args.Longitude,
			Timestamp:     ts,
			CollectorInfo: &info,
		}
	}
	payload := r.marshalLocked()
	subs := make([]chan []byte, 0, len(r.subs))
	for ch := range r.subs {
		subs = append(subs, ch)
	}
	r.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- payload:
		default:
			// Slow subscriber: skip this event, the next one carries
			// the full state anyway.
		}
	}
}

// Remove drops a collector, used when an admin deletes the account.
func (r *Registry) Remove(collectorID string) {
	r.Update(collectorID, api.LocationUpdateArgs{IsOnline: false}, api.CollectorInfo{})
}

// Snapshot returns a copy of the current mapping.
func (r *Registry) Snapshot() api.LocationMap {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(api.LocationMap, len(r.entries))
	for id, rec := range r.entries {
		out[id] = rec
	}
	return out
}

// Subscribe registers a stream subscriber. The returned channel
// receives marshaled snapshots, starting with the current one; cancel
// must be called on disconnect.
func (r *Registry) Subscribe() (<-chan []byte, func()) {
	ch := make(chan []byte, 8)
	r.mu.Lock()
	r.subs[ch] = struct{}{}
	ch <- r.marshalLocked()
	r.mu.Unlock()

	cancel := func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.subs, ch)
	}
	return ch, cancel
}

func (r *Registry) marshalLocked() []byte {
	payload, err := json.Marshal(r.entries)
	if err != nil {
		return []byte("{}")
	}
	return payload
}
