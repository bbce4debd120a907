package publisher

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wastetrack/api"
	"wastetrack/client"
	"wastetrack/geoloc"
)

// fakeProvider is a hand-driven sensor: Current returns a canned fix
// and Emit pushes samples into active watches.
type fakeProvider struct {
	mu         sync.Mutex
	currentPos geoloc.Position
	currentErr error
	onPos      func(geoloc.Position)
	onErr      func(error)
	cancelled  bool
}

func (f *fakeProvider) Current(ctx context.Context, opts geoloc.Options) (geoloc.Position, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.currentPos, f.currentErr
}

func (f *fakeProvider) Watch(opts geoloc.Options, onPos func(geoloc.Position), onErr func(error)) geoloc.CancelFunc {
	f.mu.Lock()
	f.onPos = onPos
	f.onErr = onErr
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		f.cancelled = true
		f.onPos = nil
		f.onErr = nil
		f.mu.Unlock()
	}
}

func (f *fakeProvider) Emit(pos geoloc.Position) {
	f.mu.Lock()
	fn := f.onPos
	f.mu.Unlock()
	if fn != nil {
		fn(pos)
	}
}

func (f *fakeProvider) Fail(err error) {
	f.mu.Lock()
	fn := f.onErr
	f.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}

func (f *fakeProvider) Cancelled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancelled
}

// uploadRecorder collects location update bodies.
type uploadRecorder struct {
	mu      sync.Mutex
	uploads []api.LocationUpdateArgs
}

func (u *uploadRecorder) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var args api.LocationUpdateArgs
		json.NewDecoder(r.Body).Decode(&args)
		u.mu.Lock()
		u.uploads = append(u.uploads, args)
		u.mu.Unlock()
		w.Write([]byte(`{}`))
	})
}

func (u *uploadRecorder) count() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.uploads)
}

func (u *uploadRecorder) all() []api.LocationUpdateArgs {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make([]api.LocationUpdateArgs, len(u.uploads))
	copy(out, u.uploads)
	return out
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestStartUploadsInitialFix(t *testing.T) {
	rec := &uploadRecorder{}
	srv := httptest.NewServer(rec.handler())
	defer srv.Close()

	geo := &fakeProvider{currentPos: geoloc.Position{Latitude: 13.1, Longitude: -16.2, At: time.Now()}}
	p := New(client.New(srv.URL, nil), geo, nil, "c1")
	p.SetInterval(time.Hour) // keep the ticker out of this test
	defer p.Close()

	p.Start(context.Background())

	waitFor(t, func() bool { return rec.count() == 1 }, "initial fix was not uploaded")
	up := rec.all()[0]
	assert.True(t, up.IsOnline)
	require.NotNil(t, up.Latitude)
	assert.Equal(t, 13.1, *up.Latitude)
	assert.NotEmpty(t, up.Timestamp)
}

func TestWatchSamplesDoNotUploadButTicksDo(t *testing.T) {
	rec := &uploadRecorder{}
	srv := httptest.NewServer(rec.handler())
	defer srv.Close()

	geo := &fakeProvider{currentPos: geoloc.Position{Latitude: 1, Longitude: 1, At: time.Now()}}
	p := New(client.New(srv.URL, nil), geo, nil, "c1")
	p.SetInterval(200 * time.Millisecond)
	defer p.Close()

	var previews int
	var mu sync.Mutex
	p.OnPreview = func(geoloc.Position) {
		mu.Lock()
		previews++
		mu.Unlock()
	}

	p.Start(context.Background())
	waitFor(t, func() bool { return rec.count() == 1 }, "initial fix was not uploaded")

	// Watch samples refresh the last-known position only.
	geo.Emit(geoloc.Position{Latitude: 2, Longitude: 2, At: time.Now()})
	geo.Emit(geoloc.Position{Latitude: 3, Longitude: 3, At: time.Now()})
	assert.Equal(t, 1, rec.count(), "watch samples must not upload")

	// The next tick sends whatever the last-known sample is.
	waitFor(t, func() bool {
		uploads := rec.all()
		if len(uploads) < 2 {
			return false
		}
		last := uploads[len(uploads)-1]
		return last.Latitude != nil && *last.Latitude == 3.0
	}, "tick upload with the last watch sample did not happen")

	mu.Lock()
	assert.GreaterOrEqual(t, previews, 2)
	mu.Unlock()
}

func TestStopCancelsWatchAndTickerAndSendsOfflineMarker(t *testing.T) {
	rec := &uploadRecorder{}
	srv := httptest.NewServer(rec.handler())
	defer srv.Close()

	geo := &fakeProvider{currentPos: geoloc.Position{Latitude: 1, Longitude: 1, At: time.Now()}}
	p := New(client.New(srv.URL, nil), geo, nil, "c1")
	p.SetInterval(60 * time.Millisecond)

	p.Start(context.Background())
	waitFor(t, func() bool { return rec.count() >= 1 }, "no upload before stop")

	p.Stop(context.Background())

	assert.True(t, geo.Cancelled(), "stop must clear the sensor watch")
	assert.False(t, p.Sharing())

	// The final upload is the offline marker, without coordinates.
	uploads := rec.all()
	final := uploads[len(uploads)-1]
	assert.False(t, final.IsOnline)
	assert.Nil(t, final.Latitude)
	assert.Nil(t, final.Longitude)

	// A full tick interval later nothing further was uploaded.
	before := rec.count()
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, before, rec.count(), "uploads continued after stop")
}

func TestCloseSkipsOfflineMarker(t *testing.T) {
	rec := &uploadRecorder{}
	srv := httptest.NewServer(rec.handler())
	defer srv.Close()

	geo := &fakeProvider{currentPos: geoloc.Position{Latitude: 1, Longitude: 1, At: time.Now()}}
	p := New(client.New(srv.URL, nil), geo, nil, "c1")
	p.SetInterval(time.Hour)

	p.Start(context.Background())
	waitFor(t, func() bool { return rec.count() == 1 }, "initial fix was not uploaded")

	p.Close()

	assert.True(t, geo.Cancelled())
	for _, up := range rec.all() {
		assert.True(t, up.IsOnline, "teardown must not send the offline marker")
	}
}

func TestNoUploadsWithoutCollectorIdentity(t *testing.T) {
	rec := &uploadRecorder{}
	srv := httptest.NewServer(rec.handler())
	defer srv.Close()

	geo := &fakeProvider{currentPos: geoloc.Position{Latitude: 1, Longitude: 1, At: time.Now()}}
	p := New(client.New(srv.URL, nil), geo, nil, "")
	p.SetInterval(50 * time.Millisecond)
	defer p.Close()

	p.Start(context.Background())
	geo.Emit(geoloc.Position{Latitude: 2, Longitude: 2, At: time.Now()})
	time.Sleep(130 * time.Millisecond)

	assert.Zero(t, rec.count())
	require.NotNil(t, p.LastPosition(), "samples are still observed for preview")
}

func TestSensorErrorsKeepSharingOn(t *testing.T) {
	rec := &uploadRecorder{}
	srv := httptest.NewServer(rec.handler())
	defer srv.Close()

	geo := &fakeProvider{currentErr: &geoloc.SensorError{Code: geoloc.CodeTimeout, Reason: "no fix"}}
	n := &recordingNotifier{}
	p := New(client.New(srv.URL, nil), geo, n, "c1")
	p.SetInterval(time.Hour)
	defer p.Close()

	p.Start(context.Background())
	waitFor(t, func() bool { return n.infoCount() == 1 }, "timeout notification missing")

	geo.Fail(&geoloc.SensorError{Code: geoloc.CodePermissionDenied, Reason: "denied"})
	waitFor(t, func() bool { return n.errorCount() == 1 }, "permission notification missing")

	assert.True(t, p.Sharing(), "sensor errors must not stop sharing")
}

type recordingNotifier struct {
	mu     sync.Mutex
	infos  []string
	errors []string
}

func (r *recordingNotifier) Success(msg string) {}
func (r *recordingNotifier) Info(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.infos = append(r.infos, msg)
}
func (r *recordingNotifier) Error(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, msg)
}
func (r *recordingNotifier) infoCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.infos)
}
func (r *recordingNotifier) errorCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.errors)
}
