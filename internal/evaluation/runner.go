// Package evaluation orchestrates full evaluation runs: per feature it
// records every configured website in parallel, compares the recordings,
// and hands the artifacts to the report writer.
package evaluation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kmalloy/sitejudge/api/schemas"
	"github.com/kmalloy/sitejudge/internal/agent"
	"github.com/kmalloy/sitejudge/internal/config"
)

// SiteRecorder runs one feature recording against one live browser session.
// Implemented by agent.Recorder.
type SiteRecorder interface {
	Record(ctx context.Context, sessionName string, website schemas.Website, feature schemas.Feature, featureInstruction string) *schemas.SiteRecording
}

// Comparer turns a set of site recordings into a cross-site report.
// Implemented by agent.Evaluator.
type Comparer interface {
	Compare(ctx context.Context, feature schemas.Feature, featureInstruction string, recordings []schemas.SiteRecording) (*schemas.ComparisonReport, error)
}

// ReportWriter persists run artifacts. Implemented by reporting.Writer.
type ReportWriter interface {
	WriteRecording(rec *schemas.SiteRecording) (string, error)
	WriteComparison(report *schemas.ComparisonReport) (string, error)
}

// ReplayLocator resolves replay links for a finished browser session.
// Implemented by recording.Locator; optional.
type ReplayLocator interface {
	Locate(ctx context.Context, sessionName string) ([]string, error)
}

// FeatureResult is the outcome of one feature across all websites. Err is
// set when the comparison or report writing failed; the recordings that
// succeeded are still present.
type FeatureResult struct {
	Feature        schemas.Feature
	Recordings     []schemas.SiteRecording
	Report         *schemas.ComparisonReport
	RecordingPaths []string
	ReportPath     string
	Err            error
}

// Runner drives an evaluation run end to end.
type Runner struct {
	cfg        config.EvaluationConfig
	dispatcher agent.ActionDispatcher
	recorder   SiteRecorder
	evaluator  Comparer
	writer     ReportWriter
	locator    ReplayLocator
	logger     *zap.Logger
	now        func() time.Time
}

// NewRunner wires a runner from its collaborators. locator may be nil when
// session replay lookup is disabled.
func NewRunner(cfg config.EvaluationConfig, dispatcher agent.ActionDispatcher, recorder SiteRecorder, evaluator Comparer, writer ReportWriter, locator ReplayLocator, logger *zap.Logger) *Runner {
	return &Runner{
		cfg:        cfg,
		dispatcher: dispatcher,
		recorder:   recorder,
		evaluator:  evaluator,
		writer:     writer,
		locator:    locator,
		logger:     logger.Named("runner"),
		now:        time.Now,
	}
}

// Run evaluates every configured feature in order. Website recordings within
// a feature run concurrently, bounded by the configured parallelism. A site
// that fails keeps its error in the recording and the run continues; the
// returned error is reserved for configuration problems and context
// cancellation.
func (r *Runner) Run(ctx context.Context) ([]FeatureResult, error) {
	features := make([]schemas.Feature, 0, len(r.cfg.Features))
	for _, name := range r.cfg.Features {
		feature := schemas.Feature(name)
		if _, err := agent.FeaturePrompt(feature, r.cfg.Destination, r.cfg.CheckIn, r.cfg.CheckOut); err != nil {
			return nil, fmt.Errorf("invalid feature %q: %w", name, err)
		}
		features = append(features, feature)
	}

	results := make([]FeatureResult, 0, len(features))
	for _, feature := range features {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		results = append(results, r.runFeature(ctx, feature))
	}
	return results, nil
}

func (r *Runner) runFeature(ctx context.Context, feature schemas.Feature) FeatureResult {
	instruction, _ := agent.FeaturePrompt(feature, r.cfg.Destination, r.cfg.CheckIn, r.cfg.CheckOut)
	result := FeatureResult{
		Feature:    feature,
		Recordings: make([]schemas.SiteRecording, len(r.cfg.Websites)),
	}

	r.logger.Info("starting feature evaluation",
		zap.String("feature", string(feature)),
		zap.Int("websites", len(r.cfg.Websites)),
		zap.Int("parallelism", r.cfg.Parallelism))

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Parallelism)
	for i, site := range r.cfg.Websites {
		g.Go(func() error {
			rec := r.recordSite(gctx, feature, instruction, site)
			// The artifact is written as soon as the site finishes, so a
			// crash later in the run loses nothing.
			path, err := r.writer.WriteRecording(rec)

			mu.Lock()
			defer mu.Unlock()
			result.Recordings[i] = *rec
			if err != nil {
				r.logger.Error("failed to write recording",
					zap.String("website", site.Key), zap.Error(err))
				result.Err = err
				return nil
			}
			result.RecordingPaths = append(result.RecordingPaths, path)
			return nil
		})
	}
	// Goroutines isolate their failures inside the recordings.
	_ = g.Wait()

	report, err := r.evaluator.Compare(ctx, feature, instruction, result.Recordings)
	if err != nil {
		r.logger.Error("comparison failed", zap.String("feature", string(feature)), zap.Error(err))
		result.Err = err
		return result
	}
	result.Report = report

	path, err := r.writer.WriteComparison(report)
	if err != nil {
		r.logger.Error("failed to write comparison report", zap.Error(err))
		result.Err = err
		return result
	}
	result.ReportPath = path
	return result
}

// recordSite owns the full session lifecycle for one website: open the
// session on the site URL, record under the session timeout, close. Every
// failure mode ends up in the recording's Err field.
func (r *Runner) recordSite(ctx context.Context, feature schemas.Feature, instruction string, site config.WebsiteConfig) *schemas.SiteRecording {
	website := schemas.Website{Key: site.Key, URL: site.URL, Instructions: site.Instructions}
	sessionName := fmt.Sprintf("%s_%s_%s", site.Key, feature, r.now().UTC().Format("20060102_150405"))

	if r.cfg.SessionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.SessionTimeout)
		defer cancel()
	}

	logger := r.logger.With(zap.String("website", site.Key), zap.String("session", sessionName))
	logger.Info("opening session", zap.String("url", site.URL))

	res := r.dispatcher.Dispatch(ctx, schemas.Action{
		Type:        schemas.ActionInitSession,
		SessionName: sessionName,
		URL:         site.URL,
	})
	if res.Status != schemas.StatusSuccess {
		logger.Error("session init failed",
			zap.String("code", res.ErrorCode), zap.String("details", res.ErrorDetails))
		return &schemas.SiteRecording{
			Website:     website,
			Feature:     feature,
			SessionName: sessionName,
			StartedAt:   r.now(),
			FinishedAt:  r.now(),
			Err:         fmt.Sprintf("session init failed: %s: %s", res.ErrorCode, res.ErrorDetails),
		}
	}
	defer func() {
		// Close even when the session timeout already fired.
		closeRes := r.dispatcher.Dispatch(context.WithoutCancel(ctx), schemas.Action{
			Type:        schemas.ActionClose,
			SessionName: sessionName,
		})
		if closeRes.Status != schemas.StatusSuccess {
			logger.Warn("session close failed", zap.String("code", closeRes.ErrorCode))
		}
	}()

	rec := r.recorder.Record(ctx, sessionName, website, feature, instruction)
	r.attachReplayLinks(ctx, rec, logger)

	logger.Info("recording finished",
		zap.Int("steps", rec.Steps),
		zap.Int("observations", len(rec.Observations)),
		zap.Bool("failed", rec.Err != ""))
	return rec
}

// attachReplayLinks looks up session replay links when a locator is
// configured. Lookup failures never fail the recording.
func (r *Runner) attachReplayLinks(ctx context.Context, rec *schemas.SiteRecording, logger *zap.Logger) {
	if r.locator == nil {
		return
	}
	links, err := r.locator.Locate(context.WithoutCancel(ctx), rec.SessionName)
	if err != nil {
		logger.Warn("replay link lookup failed", zap.Error(err))
		return
	}
	rec.ReplayLinks = links
}
