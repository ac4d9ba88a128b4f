// internal/reviews/store.go
package reviews

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"restaurant-insights/internal/common/cache"
	"restaurant-insights/internal/common/config"
	"restaurant-insights/internal/common/logger"
	"restaurant-insights/internal/common/metrics"
	"restaurant-insights/internal/models"
	"restaurant-insights/internal/places"

	apperrors "restaurant-insights/internal/common/errors"
)

// DetailsFetcher is the slice of the places client the store depends on.
type DetailsFetcher interface {
	Details(ctx context.Context, placeID string) (*places.PlaceDetails, error)
}

// Store fetches and caches reviews per place. Cache entries are keyed by
// place id and expire after the configured TTL; expired entries are left in
// place and overwritten by the next successful fetch.
type Store struct {
	fetcher    DetailsFetcher
	cache      cache.Store
	ttl        time.Duration
	maxCount   int
	maxRetries int
	logger     logger.Logger

	now   func() time.Time
	sleep func(time.Duration)
}

func NewStore(fetcher DetailsFetcher, cacheStore cache.Store, cfg config.ReviewsConfig, httpCfg config.HTTPConfig, log logger.Logger) *Store {
	return &Store{
		fetcher:    fetcher,
		cache:      cacheStore,
		ttl:        cfg.CacheTTL,
		maxCount:   cfg.MaxCount,
		maxRetries: httpCfg.MaxRetries,
		logger:     log.With(map[string]interface{}{"component": "reviews"}),
		now:        time.Now,
		sleep:      time.Sleep,
	}
}

// GetReviews returns the cached or freshly fetched review bundle for a
// place, truncated to maxCount.
func (s *Store) GetReviews(ctx context.Context, placeID string, maxCount int) (*models.ReviewFetchResult, error) {
	if strings.TrimSpace(placeID) == "" {
		return nil, apperrors.NewInvalidInputError("empty placeId")
	}

	if maxCount < 1 {
		maxCount = 1
	}
	if maxCount > s.maxCount {
		maxCount = s.maxCount
	}

	if bundle, ok := s.cachedBundle(ctx, placeID); ok {
		s.logger.Info("using cached reviews", map[string]interface{}{
			"placeId":     placeID,
			"reviewCount": len(bundle.Reviews),
		})
		return &models.ReviewFetchResult{
			Bundle:    bundle.Truncated(maxCount),
			FromCache: true,
		}, nil
	}

	s.logger.Info("fetching fresh reviews", map[string]interface{}{"placeId": placeID})
	bundle, err := s.fetchBundle(ctx, placeID)
	if err != nil {
		return nil, err
	}

	// Zero qualifying reviews is not cached: transient emptiness must not
	// poison the cache for a full TTL window.
	if len(bundle.Reviews) == 0 {
		return nil, apperrors.NewNoReviewsFoundError(placeID)
	}

	entry, err := cache.NewEntry(placeID, bundle, s.now())
	if err != nil {
		return nil, apperrors.NewUnexpectedError(err)
	}
	if err := s.cache.Put(ctx, entry); err != nil {
		// Persist failures are reported but the fetched data is still good.
		s.logger.Error("failed to persist review cache", map[string]interface{}{
			"placeId": placeID,
			"error":   err.Error(),
		})
	}

	return &models.ReviewFetchResult{
		Bundle:    bundle.Truncated(maxCount),
		FromCache: false,
	}, nil
}

func (s *Store) cachedBundle(ctx context.Context, placeID string) (models.ReviewBundle, bool) {
	entry, ok, err := s.cache.Get(ctx, placeID)
	if err != nil {
		s.logger.Warn("review cache read failed", map[string]interface{}{
			"placeId": placeID,
			"error":   err.Error(),
		})
		return models.ReviewBundle{}, false
	}
	if !ok {
		metrics.CacheReads.WithLabelValues("reviews", "miss").Inc()
		return models.ReviewBundle{}, false
	}
	if entry.Expired(s.now(), s.ttl) {
		metrics.CacheReads.WithLabelValues("reviews", "expired").Inc()
		return models.ReviewBundle{}, false
	}

	var bundle models.ReviewBundle
	if err := entry.Decode(&bundle); err != nil {
		s.logger.Warn("corrupt review cache entry", map[string]interface{}{
			"placeId": placeID,
			"error":   err.Error(),
		})
		return models.ReviewBundle{}, false
	}
	metrics.CacheReads.WithLabelValues("reviews", "hit").Inc()
	return bundle, true
}

func (s *Store) fetchBundle(ctx context.Context, placeID string) (models.ReviewBundle, error) {
	var details *places.PlaceDetails
	var lastErr error

	for attempt := 0; attempt < s.maxRetries; attempt++ {
		details, lastErr = s.fetcher.Details(ctx, placeID)
		if lastErr == nil {
			break
		}
		s.logger.Warn("review fetch attempt failed", map[string]interface{}{
			"placeId": placeID,
			"attempt": attempt + 1,
			"error":   lastErr.Error(),
		})
		if attempt < s.maxRetries-1 {
			s.sleep(time.Duration(math.Pow(2, float64(attempt))) * time.Second)
		}
	}
	if lastErr != nil {
		return models.ReviewBundle{}, apperrors.NewReviewFetchFailedError(lastErr)
	}

	filtered := make([]models.Review, 0, len(details.Reviews))
	for _, review := range details.Reviews {
		review.Text = strings.TrimSpace(review.Text)
		if review.HasSubstantialText() {
			filtered = append(filtered, review)
		}
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].Time > filtered[j].Time
	})

	return models.ReviewBundle{
		PlaceID:          placeID,
		PlaceName:        details.Name,
		AggregateRating:  details.Rating,
		TotalRatingCount: details.UserRatingsTotal,
		Reviews:          filtered,
		FetchedAt:        s.now(),
	}, nil
}

// ClearCache removes one place's entry, or every entry when placeID is empty.
func (s *Store) ClearCache(ctx context.Context, placeID string) error {
	if placeID != "" {
		return s.cache.Delete(ctx, placeID)
	}
	return s.cache.Clear(ctx)
}

// CacheDiagnostics reports cache size and how many entries are past TTL.
// Expired entries are counted, never removed here.
func (s *Store) CacheDiagnostics(ctx context.Context) (models.CacheDiagnostics, error) {
	entries, err := s.cache.Entries(ctx)
	if err != nil {
		return models.CacheDiagnostics{}, err
	}

	diag := models.CacheDiagnostics{TotalEntries: len(entries)}
	now := s.now()
	for _, entry := range entries {
		if entry.Expired(now, s.ttl) {
			diag.ExpiredEntries++
		}
		var bundle models.ReviewBundle
		if err := entry.Decode(&bundle); err == nil {
			diag.TotalReviews += len(bundle.Reviews)
		}
	}
	return diag, nil
}
