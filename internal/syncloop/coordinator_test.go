package syncloop

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"cavacolor/internal/artwork"
	"cavacolor/internal/history"
	"cavacolor/internal/palette"
	"cavacolor/internal/playback"
	"cavacolor/internal/visualizer"
)

type observeResult struct {
	obs *playback.Observation
	err error
}

// scriptedObserver returns results in order and repeats the last one.
type scriptedObserver struct {
	mu      sync.Mutex
	results []observeResult
	calls   int
	changes chan struct{}
}

func (o *scriptedObserver) Observe(ctx context.Context) (*playback.Observation, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	i := o.calls
	if i >= len(o.results) {
		i = len(o.results) - 1
	}
	o.calls++
	r := o.results[i]
	return r.obs, r.err
}

func (o *scriptedObserver) Calls() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.calls
}

type notifyingObserver struct {
	*scriptedObserver
}

func (o notifyingObserver) Changes() <-chan struct{} { return o.changes }

type fakeFetcher struct {
	fetched []playback.TrackID
	err     error
}

func (f *fakeFetcher) Fetch(_ context.Context, track playback.TrackID, loc playback.ArtworkLocation) (*artwork.Image, error) {
	f.fetched = append(f.fetched, track)
	if f.err != nil {
		return nil, f.err
	}
	return &artwork.Image{Track: track, Location: loc, Format: artwork.FormatPNG, Data: []byte(loc)}, nil
}

type fakeExtractor struct{}

func (fakeExtractor) Extract(img *artwork.Image, n int) (palette.Palette, error) {
	var c palette.Color
	for i, b := range img.Data {
		c.R += b * byte(i+1)
		c.G ^= b
	}
	return palette.Uniform(c, n), nil
}

type fakeSync struct {
	mu     sync.Mutex
	writes []palette.Palette
	errs   []error
}

func (s *fakeSync) Sync(p palette.Palette, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		if err != nil {
			return err
		}
	}
	s.writes = append(s.writes, p)
	return nil
}

func (s *fakeSync) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.writes)
}

type fakeReloader struct {
	calls int
	err   error
}

func (r *fakeReloader) Reload(context.Context) (int, error) {
	r.calls++
	return 1, r.err
}

type fakeRecorder struct {
	entries []history.Entry
	err     error
}

func (r *fakeRecorder) Record(_ context.Context, e history.Entry) (*history.Entry, error) {
	r.entries = append(r.entries, e)
	return &e, r.err
}

func track(id string) observeResult {
	return observeResult{obs: &playback.Observation{
		Track:   playback.TrackID(id),
		Artwork: playback.ArtworkLocation("https://img.example/" + id),
		Title:   "Title " + id,
		Artist:  "Artist",
		Source:  playback.SourceMPRIS,
	}}
}

func newTestCoordinator(t *testing.T, obs playback.Observer, fetch *fakeFetcher, sync *fakeSync, extra ...Option) *Coordinator {
	t.Helper()
	c, err := New(obs, fetch, fakeExtractor{}, sync, Options{
		ConfigPath:    "/tmp/cava/config",
		PaletteSize:   3,
		PollInterval:  time.Second,
		BackoffMax:    10 * time.Second,
		EscalateAfter: 3,
	}, extra...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func step(t *testing.T, c *Coordinator) time.Duration {
	t.Helper()
	delay, err := c.Step(context.Background())
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	return delay
}

func TestStepDebouncesSameTrack(t *testing.T) {
	obs := &scriptedObserver{results: []observeResult{track("a")}}
	fetch := &fakeFetcher{}
	sync := &fakeSync{}
	c := newTestCoordinator(t, obs, fetch, sync)

	for i := 0; i < 5; i++ {
		if delay := step(t, c); delay != time.Second {
			t.Fatalf("expected poll interval, got %s", delay)
		}
	}
	if sync.Writes() != 1 || len(fetch.fetched) != 1 {
		t.Fatalf("expected one fetch and one write, got %d fetches %d writes", len(fetch.fetched), sync.Writes())
	}
	if got := c.Snapshot(); got.LastTrack != "a" || !got.LastWriteSucceeded || got.State != StateIdle {
		t.Fatalf("unexpected state %+v", got)
	}
}

func TestStepChangeTriggersWriteInOrder(t *testing.T) {
	obs := &scriptedObserver{results: []observeResult{track("a"), track("a"), track("b")}}
	fetch := &fakeFetcher{}
	sync := &fakeSync{}
	c := newTestCoordinator(t, obs, fetch, sync)

	for i := 0; i < 3; i++ {
		step(t, c)
	}
	if len(fetch.fetched) != 2 || fetch.fetched[0] != "a" || fetch.fetched[1] != "b" {
		t.Fatalf("unexpected fetch order %v", fetch.fetched)
	}
	if sync.Writes() != 2 {
		t.Fatalf("expected two writes, got %d", sync.Writes())
	}
}

func TestStepNothingPlayingKeepsLastTrack(t *testing.T) {
	obs := &scriptedObserver{results: []observeResult{track("a"), {}, track("a")}}
	sync := &fakeSync{}
	c := newTestCoordinator(t, obs, &fakeFetcher{}, sync)
	for i := 0; i < 3; i++ {
		step(t, c)
	}
	if sync.Writes() != 1 {
		t.Fatalf("resuming the same track should not rewrite, got %d writes", sync.Writes())
	}
}

func TestStepFailureBacksOffAndRetries(t *testing.T) {
	obs := &scriptedObserver{results: []observeResult{track("a")}}
	fetch := &fakeFetcher{}
	sync := &fakeSync{errs: []error{
		fmt.Errorf("%w: denied", visualizer.ErrUnwritable),
		fmt.Errorf("%w: denied", visualizer.ErrUnwritable),
		fmt.Errorf("%w: denied", visualizer.ErrUnwritable),
		fmt.Errorf("%w: denied", visualizer.ErrUnwritable),
		fmt.Errorf("%w: denied", visualizer.ErrUnwritable),
	}}
	c := newTestCoordinator(t, obs, fetch, sync)

	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 10 * time.Second}
	for i, w := range want {
		if got := step(t, c); got != w {
			t.Fatalf("failure %d: expected backoff %s, got %s", i+1, w, got)
		}
		snap := c.Snapshot()
		if snap.State != StateBackoff || snap.ConsecutiveFailures != i+1 || snap.LastTrack != "" {
			t.Fatalf("unexpected state after failure %d: %+v", i+1, snap)
		}
	}

	if got := step(t, c); got != time.Second {
		t.Fatalf("expected poll interval after recovery, got %s", got)
	}
	snap := c.Snapshot()
	if snap.LastTrack != "a" || snap.ConsecutiveFailures != 0 || sync.Writes() != 1 {
		t.Fatalf("expected recovery, got %+v with %d writes", snap, sync.Writes())
	}
}

func TestStepFetchFailureIsRetriedForSameTrack(t *testing.T) {
	obs := &scriptedObserver{results: []observeResult{track("a")}}
	fetch := &fakeFetcher{err: fmt.Errorf("%w: http 503", artwork.ErrUnavailable)}
	sync := &fakeSync{}
	c := newTestCoordinator(t, obs, fetch, sync)

	step(t, c)
	fetch.err = nil
	step(t, c)
	if len(fetch.fetched) != 2 || sync.Writes() != 1 {
		t.Fatalf("expected retry of failed track, got %d fetches %d writes", len(fetch.fetched), sync.Writes())
	}
}

func TestStepObserverErrorIsUnchanged(t *testing.T) {
	obs := &scriptedObserver{results: []observeResult{{err: fmt.Errorf("%w: no bus", playback.ErrUnavailable)}}}
	sync := &fakeSync{}
	c := newTestCoordinator(t, obs, &fakeFetcher{}, sync)
	if got := step(t, c); got != time.Second {
		t.Fatalf("expected poll interval, got %s", got)
	}
	if snap := c.Snapshot(); snap.State != StateIdle || snap.ConsecutiveFailures != 0 {
		t.Fatalf("unexpected state %+v", snap)
	}
	if sync.Writes() != 0 {
		t.Fatal("unexpected write")
	}
}

func TestStepRateLimitHonorsRetryAfter(t *testing.T) {
	obs := &scriptedObserver{results: []observeResult{{err: &playback.RateLimitError{RetryAfter: 30 * time.Second}}}}
	c := newTestCoordinator(t, obs, &fakeFetcher{}, &fakeSync{})
	if got := step(t, c); got != 30*time.Second {
		t.Fatalf("expected retry-after delay, got %s", got)
	}
}

func TestStepAuthExpiredIsFatal(t *testing.T) {
	obs := &scriptedObserver{results: []observeResult{
		{err: fmt.Errorf("%w: token expired", playback.ErrAuthExpired)},
		track("a"),
	}}
	sync := &fakeSync{}
	c := newTestCoordinator(t, obs, &fakeFetcher{}, sync)

	_, err := c.Step(context.Background())
	if !errors.Is(err, playback.ErrAuthExpired) {
		t.Fatalf("expected ErrAuthExpired, got %v", err)
	}
	if c.Snapshot().State != StateFatal {
		t.Fatalf("expected fatal state, got %s", c.Snapshot().State)
	}
	if sync.Writes() != 0 {
		t.Fatal("unexpected write after auth failure")
	}
}

func TestRunStopsOnAuthExpired(t *testing.T) {
	obs := &scriptedObserver{results: []observeResult{
		track("a"),
		{err: fmt.Errorf("%w: token expired", playback.ErrAuthExpired)},
		track("b"),
	}}
	sync := &fakeSync{}
	c, err := New(obs, &fakeFetcher{}, fakeExtractor{}, sync, Options{
		ConfigPath:   "/tmp/cava/config",
		PollInterval: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Run(ctx); !errors.Is(err, playback.ErrAuthExpired) {
		t.Fatalf("expected ErrAuthExpired from Run, got %v", err)
	}
	if obs.Calls() != 2 || sync.Writes() != 1 {
		t.Fatalf("expected no polls after auth failure, got %d polls %d writes", obs.Calls(), sync.Writes())
	}
}

func TestRunReturnsNilOnCancel(t *testing.T) {
	obs := &scriptedObserver{results: []observeResult{track("a")}}
	c := newTestCoordinator(t, obs, &fakeFetcher{}, &fakeSync{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	deadline := time.After(5 * time.Second)
	for obs.Calls() == 0 {
		select {
		case <-deadline:
			t.Fatal("loop did not poll")
		case <-time.After(time.Millisecond):
		}
	}
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected nil on cancel, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestRunWakesOnChangeNotification(t *testing.T) {
	base := &scriptedObserver{results: []observeResult{track("a"), track("b")}, changes: make(chan struct{}, 1)}
	sync := &fakeSync{}
	c, err := New(notifyingObserver{base}, &fakeFetcher{}, fakeExtractor{}, sync, Options{
		ConfigPath:   "/tmp/cava/config",
		PollInterval: time.Hour,
		BackoffMax:   time.Hour,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	deadline := time.After(5 * time.Second)
	for sync.Writes() < 1 {
		select {
		case <-deadline:
			t.Fatal("first write did not happen")
		case <-time.After(time.Millisecond):
		}
	}
	base.changes <- struct{}{}
	for sync.Writes() < 2 {
		select {
		case <-deadline:
			t.Fatal("change notification did not trigger a poll")
		case <-time.After(time.Millisecond):
		}
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestStepReloadsAndRecords(t *testing.T) {
	obs := &scriptedObserver{results: []observeResult{track("a")}}
	reloader := &fakeReloader{err: errors.New("permission denied")}
	recorder := &fakeRecorder{}
	c := newTestCoordinator(t, obs, &fakeFetcher{}, &fakeSync{}, WithReloader(reloader), WithRecorder(recorder))

	step(t, c)
	if reloader.calls != 1 {
		t.Fatalf("expected reload, got %d", reloader.calls)
	}
	if len(recorder.entries) != 1 {
		t.Fatalf("expected one history entry, got %d", len(recorder.entries))
	}
	entry := recorder.entries[0]
	if entry.TrackID != "a" || len(entry.Colors) != 3 || entry.ConfigPath != "/tmp/cava/config" {
		t.Fatalf("unexpected entry %+v", entry)
	}
	if snap := c.Snapshot(); !snap.LastWriteSucceeded || snap.ConsecutiveFailures != 0 {
		t.Fatalf("reload failure must not fail the cycle: %+v", snap)
	}
}

func TestEscalationOncePerStreak(t *testing.T) {
	obs := &scriptedObserver{results: []observeResult{track("a")}}
	missing := fmt.Errorf("%w: /tmp/cava/config", visualizer.ErrMissingFile)
	sync := &fakeSync{errs: []error{missing, missing, missing, missing, missing}}
	c := newTestCoordinator(t, obs, &fakeFetcher{}, sync)

	for i := 0; i < 2; i++ {
		step(t, c)
	}
	if c.escalated {
		t.Fatal("escalated before threshold")
	}
	step(t, c)
	if !c.escalated {
		t.Fatal("expected escalation at threshold")
	}
	step(t, c)
	step(t, c)
	if !c.escalated {
		t.Fatal("escalation flag should persist through the streak")
	}
	step(t, c)
	if c.escalated {
		t.Fatal("successful sync should end the streak")
	}
	if c.Snapshot().State == StateFatal {
		t.Fatal("misconfiguration must not be fatal")
	}
}

func TestStatusReportsLastPalette(t *testing.T) {
	obs := &scriptedObserver{results: []observeResult{track("a")}}
	c := newTestCoordinator(t, obs, &fakeFetcher{}, &fakeSync{})
	step(t, c)
	status := c.Status()
	if status.LastPalette.Len() != 3 || status.LastObservation == nil || status.LastObservation.Track != "a" {
		t.Fatalf("unexpected status %+v", status)
	}
	if status.LastApplied.IsZero() || status.LastError != "" {
		t.Fatalf("unexpected status %+v", status)
	}
}

func TestBackoffDelay(t *testing.T) {
	cases := []struct {
		failures int
		want     time.Duration
	}{
		{0, time.Second},
		{1, time.Second},
		{2, 2 * time.Second},
		{4, 8 * time.Second},
		{6, 20 * time.Second},
		{64, 20 * time.Second},
	}
	for _, tc := range cases {
		if got := backoffDelay(time.Second, 20*time.Second, tc.failures); got != tc.want {
			t.Fatalf("backoffDelay(%d) = %s, want %s", tc.failures, got, tc.want)
		}
	}
}

func TestNewValidatesCollaborators(t *testing.T) {
	obs := &scriptedObserver{results: []observeResult{{}}}
	if _, err := New(nil, &fakeFetcher{}, fakeExtractor{}, &fakeSync{}, Options{ConfigPath: "x"}); err == nil {
		t.Fatal("expected error without observer")
	}
	if _, err := New(obs, &fakeFetcher{}, fakeExtractor{}, &fakeSync{}, Options{}); err == nil {
		t.Fatal("expected error without config path")
	}
}
