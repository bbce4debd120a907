package locations

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wastetrack/api"
)

func f(v float64) *float64 { return &v }

func onlineAt(lat, lng float64) api.LocationUpdateArgs {
	return api.LocationUpdateArgs{Latitude: f(lat), Longitude: f(lng), IsOnline: true, Timestamp: "2026-01-02T03:04:05Z"}
}

func TestUpdateAndSnapshot(t *testing.T) {
	r := NewRegistry()
	r.Update("c1", onlineAt(1, 2), api.CollectorInfo{VehicleNumber: "V1"})

	snap := r.Snapshot()
	require.Len(t, snap, 1)
	rec := snap["c1"]
	assert.Equal(t, 1.0, *rec.Latitude)
	assert.Equal(t, 2.0, *rec.Longitude)
	assert.Equal(t, "2026-01-02T03:04:05Z", rec.Timestamp)
	require.NotNil(t, rec.CollectorInfo)
	assert.Equal(t, "V1", rec.CollectorInfo.VehicleNumber)
}

func TestOfflineRemovesEntry(t *testing.T) {
	r := NewRegistry()
	r.Update("c1", onlineAt(1, 2), api.CollectorInfo{})
	r.Update("c1", api.LocationUpdateArgs{IsOnline: false}, api.CollectorInfo{})

	assert.Empty(t, r.Snapshot())
}

func TestOnlineWithoutCoordinatesIsIgnored(t *testing.T) {
	r := NewRegistry()
	r.Update("c1", api.LocationUpdateArgs{IsOnline: true, Latitude: f(1)}, api.CollectorInfo{})

	assert.Empty(t, r.Snapshot())
}

func TestMissingTimestampIsFilledIn(t *testing.T) {
	r := NewRegistry()
	r.Update("c1", api.LocationUpdateArgs{Latitude: f(1), Longitude: f(2), IsOnline: true}, api.CollectorInfo{})

	assert.NotEmpty(t, r.Snapshot()["c1"].Timestamp)
}

func TestSnapshotIsACopy(t *testing.T) {
	r := NewRegistry()
	r.Update("c1", onlineAt(1, 2), api.CollectorInfo{})

	snap := r.Snapshot()
	delete(snap, "c1")
	assert.Len(t, r.Snapshot(), 1)
}

func TestSubscribeReceivesInitialAndUpdates(t *testing.T) {
	r := NewRegistry()
	r.Update("c1", onlineAt(1, 2), api.CollectorInfo{})

	ch, cancel := r.Subscribe()
	defer cancel()

	var initial api.LocationMap
	require.NoError(t, json.Unmarshal(<-ch, &initial))
	assert.Len(t, initial, 1)

	r.Update("c2", onlineAt(3, 4), api.CollectorInfo{})
	var next api.LocationMap
	require.NoError(t, json.Unmarshal(<-ch, &next))
	assert.Len(t, next, 2)

	r.Update("c1", api.LocationUpdateArgs{IsOnline: false}, api.CollectorInfo{})
	var final api.LocationMap
	require.NoError(t, json.Unmarshal(<-ch, &final))
	require.Len(t, final, 1)
	assert.Contains(t, final, "c2")
}

func TestCancelledSubscriberGetsNothing(t *testing.T) {
	r := NewRegistry()
	ch, cancel := r.Subscribe()
	<-ch // initial snapshot
	cancel()

	r.Update("c1", onlineAt(1, 2), api.CollectorInfo{})
	select {
	case payload, ok := <-ch:
		if ok {
			t.Fatalf("received %q after cancel", payload)
		}
	default:
	}
}

func TestRemove(t *testing.T) {
	r := NewRegistry()
	r.Update("c1", onlineAt(1, 2), api.CollectorInfo{})
	r.Remove("c1")

	assert.Empty(t, r.Snapshot())
}
