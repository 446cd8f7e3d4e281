package evaluation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kmalloy/sitejudge/api/schemas"
	"github.com/kmalloy/sitejudge/internal/config"
)

// stubDispatcher records lifecycle actions and can fail session init for a
// chosen website key prefix.
type stubDispatcher struct {
	mu          sync.Mutex
	actions     []schemas.Action
	failInitFor string
}

func (d *stubDispatcher) Dispatch(_ context.Context, action schemas.Action) *schemas.ActionResult {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.actions = append(d.actions, action)

	res := &schemas.ActionResult{
		SessionName: action.SessionName,
		Type:        action.Type,
		Status:      schemas.StatusSuccess,
	}
	if action.Type == schemas.ActionInitSession && d.failInitFor != "" &&
		len(action.SessionName) >= len(d.failInitFor) &&
		action.SessionName[:len(d.failInitFor)] == d.failInitFor {
		res.Status = schemas.StatusError
		res.ErrorCode = "EXECUTION_FAILURE"
		res.ErrorDetails = "browser unreachable"
	}
	return res
}

func (d *stubDispatcher) ofType(t schemas.ActionType) []schemas.Action {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []schemas.Action
	for _, a := range d.actions {
		if a.Type == t {
			out = append(out, a)
		}
	}
	return out
}

// stubRecorder returns a canned recording per website and tracks peak
// concurrency.
type stubRecorder struct {
	delay      time.Duration
	errFor     string
	inFlight   atomic.Int32
	peak       atomic.Int32
	recordings atomic.Int32
}

func (r *stubRecorder) Record(ctx context.Context, sessionName string, website schemas.Website, feature schemas.Feature, _ string) *schemas.SiteRecording {
	cur := r.inFlight.Add(1)
	defer r.inFlight.Add(-1)
	for {
		prev := r.peak.Load()
		if cur <= prev || r.peak.CompareAndSwap(prev, cur) {
			break
		}
	}
	if r.delay > 0 {
		select {
		case <-time.After(r.delay):
		case <-ctx.Done():
		}
	}
	r.recordings.Add(1)

	rec := &schemas.SiteRecording{
		Website:     website,
		Feature:     feature,
		SessionName: sessionName,
		Transcript:  "transcript for " + website.Key,
		Steps:       3,
	}
	if website.Key == r.errFor {
		rec.Err = "robot challenge could not be resolved"
		rec.Transcript = ""
	}
	return rec
}

type stubComparer struct {
	mu       sync.Mutex
	got      []schemas.SiteRecording
	err      error
	markdown string
}

func (c *stubComparer) Compare(_ context.Context, feature schemas.Feature, _ string, recordings []schemas.SiteRecording) (*schemas.ComparisonReport, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.got = recordings
	if c.err != nil {
		return nil, c.err
	}
	websites := make([]string, 0, len(recordings))
	for _, rec := range recordings {
		websites = append(websites, rec.Website.Key)
	}
	return &schemas.ComparisonReport{
		Feature:     feature,
		Websites:    websites,
		Markdown:    c.markdown,
		GeneratedAt: time.Now(),
	}, nil
}

type stubWriter struct {
	mu           sync.Mutex
	recordings   []string
	comparisons  []string
	recordingErr error
}

func (w *stubWriter) WriteRecording(rec *schemas.SiteRecording) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.recordingErr != nil {
		return "", w.recordingErr
	}
	path := fmt.Sprintf("out/%s_recording.md", rec.Website.Key)
	w.recordings = append(w.recordings, path)
	return path, nil
}

func (w *stubWriter) WriteComparison(report *schemas.ComparisonReport) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	path := fmt.Sprintf("out/comparison_%s.md", report.Feature)
	w.comparisons = append(w.comparisons, path)
	return path, nil
}

type stubLocator struct {
	links []string
	err   error
}

func (l *stubLocator) Locate(_ context.Context, _ string) ([]string, error) {
	return l.links, l.err
}

func testEvalConfig() config.EvaluationConfig {
	return config.EvaluationConfig{
		Websites: []config.WebsiteConfig{
			{Key: "booking", URL: "https://www.booking.com"},
			{Key: "agoda", URL: "https://www.agoda.com"},
		},
		Features:       []string{string(schemas.FeatureAutocomplete)},
		Parallelism:    2,
		MaxSteps:       10,
		SessionTimeout: time.Minute,
		Destination:    "Zurich",
		CheckIn:        "2026-09-20",
		CheckOut:       "2026-09-23",
	}
}

func TestRunnerRun(t *testing.T) {
	dispatcher := &stubDispatcher{}
	recorder := &stubRecorder{}
	comparer := &stubComparer{markdown: "| Checks | booking | agoda |"}
	writer := &stubWriter{}

	runner := NewRunner(testEvalConfig(), dispatcher, recorder, comparer, writer, nil, zap.NewNop())
	results, err := runner.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)

	result := results[0]
	require.NoError(t, result.Err)
	assert.Equal(t, schemas.FeatureAutocomplete, result.Feature)
	require.Len(t, result.Recordings, 2)
	assert.Equal(t, "booking", result.Recordings[0].Website.Key)
	assert.Equal(t, "agoda", result.Recordings[1].Website.Key)
	require.NotNil(t, result.Report)
	assert.Equal(t, []string{"booking", "agoda"}, result.Report.Websites)
	assert.Len(t, result.RecordingPaths, 2)
	assert.Equal(t, "out/comparison_autocomplete_for_destinations_hotels.md", result.ReportPath)

	// One session opened and closed per website. Session names carry a
	// timestamp, so compare everything else.
	wantInits := []schemas.Action{
		{Type: schemas.ActionInitSession, URL: "https://www.agoda.com"},
		{Type: schemas.ActionInitSession, URL: "https://www.booking.com"},
	}
	diff := cmp.Diff(wantInits, dispatcher.ofType(schemas.ActionInitSession),
		cmpopts.IgnoreFields(schemas.Action{}, "SessionName"),
		cmpopts.SortSlices(func(a, b schemas.Action) bool { return a.URL < b.URL }))
	assert.Empty(t, diff)
	assert.Len(t, dispatcher.ofType(schemas.ActionClose), 2)
	for _, init := range dispatcher.ofType(schemas.ActionInitSession) {
		assert.NotEmpty(t, init.SessionName)
	}
}

func TestRunnerParallelismBound(t *testing.T) {
	cfg := testEvalConfig()
	cfg.Parallelism = 1
	recorder := &stubRecorder{delay: 20 * time.Millisecond}

	runner := NewRunner(cfg, &stubDispatcher{}, recorder, &stubComparer{}, &stubWriter{}, nil, zap.NewNop())
	_, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(2), recorder.recordings.Load())
	assert.Equal(t, int32(1), recorder.peak.Load())
}

func TestRunnerSiteFailureIsolation(t *testing.T) {
	recorder := &stubRecorder{errFor: "agoda"}
	comparer := &stubComparer{}

	runner := NewRunner(testEvalConfig(), &stubDispatcher{}, recorder, comparer, &stubWriter{}, nil, zap.NewNop())
	results, err := runner.Run(context.Background())
	require.NoError(t, err)

	result := results[0]
	require.NoError(t, result.Err)
	assert.Empty(t, result.Recordings[0].Err)
	assert.Contains(t, result.Recordings[1].Err, "robot challenge")
	// The failed site still reaches the comparison.
	require.Len(t, comparer.got, 2)
}

func TestRunnerSessionInitFailure(t *testing.T) {
	dispatcher := &stubDispatcher{failInitFor: "booking_"}
	recorder := &stubRecorder{}

	runner := NewRunner(testEvalConfig(), dispatcher, recorder, &stubComparer{}, &stubWriter{}, nil, zap.NewNop())
	results, err := runner.Run(context.Background())
	require.NoError(t, err)

	result := results[0]
	assert.Contains(t, result.Recordings[0].Err, "session init failed")
	assert.Contains(t, result.Recordings[0].Err, "browser unreachable")
	assert.Empty(t, result.Recordings[1].Err)
	// Only the surviving session records and closes.
	assert.Equal(t, int32(1), recorder.recordings.Load())
	assert.Len(t, dispatcher.ofType(schemas.ActionClose), 1)
}

func TestRunnerUnknownFeature(t *testing.T) {
	cfg := testEvalConfig()
	cfg.Features = []string{"checkout_flow"}

	runner := NewRunner(cfg, &stubDispatcher{}, &stubRecorder{}, &stubComparer{}, &stubWriter{}, nil, zap.NewNop())
	_, err := runner.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid feature "checkout_flow"`)
}

func TestRunnerComparisonFailure(t *testing.T) {
	comparer := &stubComparer{err: errors.New("model overloaded")}

	runner := NewRunner(testEvalConfig(), &stubDispatcher{}, &stubRecorder{}, comparer, &stubWriter{}, nil, zap.NewNop())
	results, err := runner.Run(context.Background())
	require.NoError(t, err)

	result := results[0]
	require.Error(t, result.Err)
	assert.Contains(t, result.Err.Error(), "model overloaded")
	assert.Nil(t, result.Report)
	assert.Empty(t, result.ReportPath)
	// Recordings are still persisted before the comparison runs.
	assert.Len(t, result.RecordingPaths, 2)
}

func TestRunnerReplayLinks(t *testing.T) {
	locator := &stubLocator{links: []string{"https://replay.example/one.mp4"}}

	runner := NewRunner(testEvalConfig(), &stubDispatcher{}, &stubRecorder{}, &stubComparer{}, &stubWriter{}, locator, zap.NewNop())
	results, err := runner.Run(context.Background())
	require.NoError(t, err)

	for _, rec := range results[0].Recordings {
		assert.Equal(t, []string{"https://replay.example/one.mp4"}, rec.ReplayLinks)
	}
}

func TestRunnerReplayLookupFailureNonFatal(t *testing.T) {
	locator := &stubLocator{err: errors.New("access denied")}

	runner := NewRunner(testEvalConfig(), &stubDispatcher{}, &stubRecorder{}, &stubComparer{}, &stubWriter{}, locator, zap.NewNop())
	results, err := runner.Run(context.Background())
	require.NoError(t, err)

	result := results[0]
	require.NoError(t, result.Err)
	for _, rec := range result.Recordings {
		assert.Empty(t, rec.ReplayLinks)
		assert.Empty(t, rec.Err)
	}
}

func TestRunnerContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := testEvalConfig()
	runner := NewRunner(cfg, &stubDispatcher{}, &stubRecorder{}, &stubComparer{}, &stubWriter{}, nil, zap.NewNop())
	results, err := runner.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, results)
}
