// internal/orchestrator/orchestrator.go
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"restaurant-insights/internal/common/logger"
	"restaurant-insights/internal/common/metrics"
	"restaurant-insights/internal/models"

	apperrors "restaurant-insights/internal/common/errors"
)

// Place id length bounds accepted by ValidatePlaceID.
const (
	minPlaceIDLength = 10
	maxPlaceIDLength = 200
)

// ReviewProvider is the review store surface the orchestrator drives.
type ReviewProvider interface {
	GetReviews(ctx context.Context, placeID string, maxCount int) (*models.ReviewFetchResult, error)
	ClearCache(ctx context.Context, placeID string) error
	CacheDiagnostics(ctx context.Context) (models.CacheDiagnostics, error)
}

// ReviewAnalyzer is the summary store surface the orchestrator drives.
type ReviewAnalyzer interface {
	AnalyzeReviews(ctx context.Context, reviews []models.Review, restaurantName string) (*models.AnalysisOutcome, error)
	ClearCache(ctx context.Context, key string) error
	CacheDiagnostics(ctx context.Context) (models.CacheDiagnostics, error)
}

// Request describes one analysis run.
type Request struct {
	PlaceID        string
	RestaurantName string
	MaxReviews     int
}

// ProgressFunc receives human-readable progress updates during a
// synchronous run. May be nil.
type ProgressFunc func(message string, percent int)

// EventType tags the entries on an async run's event channel.
type EventType string

const (
	EventProgress  EventType = "progress"
	EventCompleted EventType = "completed"
	EventFailed    EventType = "failed"
)

// Event is one update from an async analysis run. Exactly one terminal
// event (completed or failed) is sent before the channel closes.
type Event struct {
	Type      EventType
	SessionID string
	Message   string
	Percent   int
	Result    *models.CombinedResult
	Err       error
}

// CacheStatus aggregates diagnostics across both caches.
type CacheStatus struct {
	Reviews         models.CacheDiagnostics `json:"reviews"`
	Analysis        models.CacheDiagnostics `json:"analysis"`
	ResultAvailable bool                    `json:"resultAvailable"`
	IsAnalyzing     bool                    `json:"isAnalyzing"`
}

// Orchestrator runs the two-stage review pipeline. At most one run is in
// flight at a time; a second call while busy fails fast rather than queueing.
type Orchestrator struct {
	reviews  ReviewProvider
	analyzer ReviewAnalyzer
	logger   logger.Logger

	mu          sync.Mutex
	isAnalyzing bool
	lastResult  *models.CombinedResult

	now func() time.Time
}

func New(reviews ReviewProvider, analyzer ReviewAnalyzer, log logger.Logger) *Orchestrator {
	return &Orchestrator{
		reviews:  reviews,
		analyzer: analyzer,
		logger:   log.With(map[string]interface{}{"component": "orchestrator"}),
		now:      time.Now,
	}
}

// Analyze runs the full pipeline synchronously: fetch reviews, analyze
// them, combine the results. Terminal errors carry the stage they failed in.
func (o *Orchestrator) Analyze(ctx context.Context, req Request, progress ProgressFunc) (*models.CombinedResult, error) {
	if err := o.acquire(); err != nil {
		return nil, err
	}
	defer o.release()

	session := &models.AnalysisSession{
		ID:      uuid.NewString(),
		PlaceID: req.PlaceID,
		Status:  models.SessionPending,
	}
	result, err := o.run(ctx, session, req, progress)
	if err != nil {
		stdErr := apperrors.Normalize(err, apperrors.StageUnexpected)
		metrics.AnalysesFailed.WithLabelValues(stdErr.Stage, string(stdErr.Code)).Inc()
		o.logger.Error("analysis failed", map[string]interface{}{
			"sessionId": session.ID,
			"placeId":   req.PlaceID,
			"stage":     stdErr.Stage,
			"code":      string(stdErr.Code),
		})
		return nil, stdErr
	}

	o.mu.Lock()
	o.lastResult = result
	o.mu.Unlock()
	return result, nil
}

// run executes the pipeline stages for one session. A panic anywhere in
// the pipeline surfaces as an error instead of tearing down the caller.
func (o *Orchestrator) run(ctx context.Context, session *models.AnalysisSession, req Request, progress ProgressFunc) (result *models.CombinedResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			session.Status = models.SessionFailed
			err = apperrors.NewUnexpectedError(fmt.Errorf("panic during analysis: %v", r))
		}
	}()

	if err := ValidatePlaceID(req.PlaceID); err != nil {
		return nil, err
	}

	report := func(message string, percent int) {
		session.ProgressPercent = percent
		session.LastMessage = message
		if progress != nil {
			progress(message, percent)
		}
	}

	o.logger.Info("starting analysis", map[string]interface{}{
		"sessionId": session.ID,
		"placeId":   req.PlaceID,
	})
	start := o.now()

	session.Status = models.SessionFetchingReviews
	report("Fetching restaurant reviews...", 10)

	reviewResult, err := o.reviews.GetReviews(ctx, req.PlaceID, req.MaxReviews)
	if err != nil {
		session.Status = models.SessionFailed
		return nil, apperrors.Normalize(err, apperrors.StageReviewFetch)
	}

	bundle := reviewResult.Bundle
	restaurantName := req.RestaurantName
	if restaurantName == "" {
		restaurantName = bundle.PlaceName
	}
	if restaurantName == "" {
		restaurantName = "Unknown Restaurant"
	}

	session.Status = models.SessionAnalyzing
	report(fmt.Sprintf("Analyzing %d reviews...", len(bundle.Reviews)), 50)

	outcome, err := o.analyzer.AnalyzeReviews(ctx, bundle.Reviews, restaurantName)
	if err != nil {
		session.Status = models.SessionFailed
		return nil, apperrors.Normalize(err, apperrors.StageAnalysis)
	}

	session.Status = models.SessionCompleted
	report("Analysis complete!", 100)

	result = &models.CombinedResult{
		PlaceID:        req.PlaceID,
		RestaurantName: restaurantName,
		ReviewMetadata: models.ReviewMetadata{
			TotalReviews:     len(bundle.Reviews),
			AggregateRating:  bundle.AggregateRating,
			TotalRatingCount: bundle.TotalRatingCount,
			FromCache:        reviewResult.FromCache,
		},
		Analysis:          outcome.Analysis,
		AnalysisFromCache: outcome.FromCache,
		CompletedAt:       o.now(),
	}

	o.logger.Info("analysis completed", map[string]interface{}{
		"sessionId":      session.ID,
		"restaurantName": restaurantName,
		"durationMs":     o.now().Sub(start).Milliseconds(),
		"usedFallback":   outcome.Analysis.UsedFallback,
	})
	return result, nil
}

// AnalyzeAsync runs the pipeline in a goroutine and streams progress over
// the returned channel. The channel is closed after the terminal event.
func (o *Orchestrator) AnalyzeAsync(ctx context.Context, req Request) (<-chan Event, error) {
	if err := o.acquire(); err != nil {
		return nil, err
	}

	session := &models.AnalysisSession{
		ID:      uuid.NewString(),
		PlaceID: req.PlaceID,
		Status:  models.SessionPending,
	}

	// Buffered so a slow consumer never blocks the pipeline: at most
	// three progress events plus one terminal event are ever sent.
	events := make(chan Event, 8)

	go func() {
		// Release before close: the closed channel is the caller's signal
		// that the run is over, so the guard must already be free when the
		// last receive returns.
		defer close(events)
		defer o.release()

		progress := func(message string, percent int) {
			events <- Event{
				Type:      EventProgress,
				SessionID: session.ID,
				Message:   message,
				Percent:   percent,
			}
		}

		result, err := o.run(ctx, session, req, progress)
		if err != nil {
			stdErr := apperrors.Normalize(err, apperrors.StageUnexpected)
			metrics.AnalysesFailed.WithLabelValues(stdErr.Stage, string(stdErr.Code)).Inc()
			events <- Event{Type: EventFailed, SessionID: session.ID, Err: stdErr}
			return
		}

		o.mu.Lock()
		o.lastResult = result
		o.mu.Unlock()
		events <- Event{Type: EventCompleted, SessionID: session.ID, Result: result}
	}()

	return events, nil
}

func (o *Orchestrator) acquire() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.isAnalyzing {
		return apperrors.NewAnalysisInProgressError()
	}
	o.isAnalyzing = true
	return nil
}

func (o *Orchestrator) release() {
	o.mu.Lock()
	o.isAnalyzing = false
	o.mu.Unlock()
}

// LastResult returns the most recent completed result, if any.
func (o *Orchestrator) LastResult() *models.CombinedResult {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastResult
}

// Status reports both caches plus the in-flight flag.
func (o *Orchestrator) Status(ctx context.Context) (CacheStatus, error) {
	reviewDiag, err := o.reviews.CacheDiagnostics(ctx)
	if err != nil {
		return CacheStatus{}, err
	}
	analysisDiag, err := o.analyzer.CacheDiagnostics(ctx)
	if err != nil {
		return CacheStatus{}, err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	return CacheStatus{
		Reviews:         reviewDiag,
		Analysis:        analysisDiag,
		ResultAvailable: o.lastResult != nil,
		IsAnalyzing:     o.isAnalyzing,
	}, nil
}

// ClearAllCaches empties both caches and drops the last result. The first
// failure is returned but both clears are always attempted.
func (o *Orchestrator) ClearAllCaches(ctx context.Context) error {
	reviewErr := o.reviews.ClearCache(ctx, "")
	analysisErr := o.analyzer.ClearCache(ctx, "")

	o.mu.Lock()
	o.lastResult = nil
	o.mu.Unlock()

	if reviewErr != nil {
		return reviewErr
	}
	return analysisErr
}

// ValidatePlaceID checks the shape of a place id without calling out.
func ValidatePlaceID(placeID string) error {
	if len(placeID) < minPlaceIDLength || len(placeID) > maxPlaceIDLength {
		return apperrors.NewInvalidInputError(
			fmt.Sprintf("placeId length must be between %d and %d characters", minPlaceIDLength, maxPlaceIDLength))
	}
	return nil
}
