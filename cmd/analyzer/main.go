// cmd/analyzer/main.go
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"restaurant-insights/internal/analysis"
	"restaurant-insights/internal/common/cache"
	"restaurant-insights/internal/common/config"
	"restaurant-insights/internal/common/logger"
	"restaurant-insights/internal/common/observability"
	"restaurant-insights/internal/genai"
	"restaurant-insights/internal/models"
	"restaurant-insights/internal/orchestrator"
	"restaurant-insights/internal/places"
	"restaurant-insights/internal/restaurants"
	"restaurant-insights/internal/reviews"
)

const (
	reviewCacheFile   = "reviews.json"
	analysisCacheFile = "analysis.json"

	reviewCachePrefix   = "insights:reviews:"
	analysisCachePrefix = "insights:analysis:"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	var (
		mode       = flag.String("mode", "analyze", "analyze | search | status | clear-cache | self-test")
		placeID    = flag.String("place", "", "place id to analyze")
		name       = flag.String("name", "", "restaurant name for context")
		maxReviews = flag.Int("max-reviews", 0, "maximum reviews to fetch (0 = default)")
		address    = flag.String("address", "", "search around this address")
		lat        = flag.Float64("lat", 0, "search latitude")
		lng        = flag.Float64("lng", 0, "search longitude")
		radius     = flag.Int("radius", 0, "search radius in meters (0 = default)")
		minReviews = flag.Int("min-reviews", 0, "minimum review count for search results")
		maxResults = flag.Int("max-results", 0, "maximum search results")
		format     = flag.String("format", "text", "output format: text | json")
		async      = flag.Bool("async", false, "stream analysis progress events")
	)
	flag.Parse()

	zapLog := logger.New("info", "console")
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}
	zapLog = logger.New(cfg.Logging.Level, cfg.Logging.Format)
	log = logger.NewZapAdapter(zapLog)

	obs := observability.New("analyzer")
	defer obs.Shutdown()

	ctx := context.Background()

	reviewCache, analysisCache, closeCaches, err := buildCaches(ctx, cfg, zapLog)
	if err != nil {
		zapLog.Fatal("cache init failed", zap.Error(err))
	}
	defer closeCaches()

	placesClient := places.NewClient(cfg.Maps, log)
	genaiClient := genai.NewClient(cfg.GenAI, log)
	reviewStore := reviews.NewStore(placesClient, reviewCache, cfg.Reviews, cfg.HTTP, log)
	analysisStore := analysis.NewStore(genaiClient, analysisCache, cfg.Analysis, log)
	orch := orchestrator.New(reviewStore, analysisStore, log)
	discovery := restaurants.NewService(placesClient, cfg.Search, log)

	if cfg.Metrics.Enabled {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				json.NewEncoder(w).Encode(map[string]string{
					"status": "healthy",
					"time":   time.Now().Format(time.RFC3339),
				})
			})
			zapLog.Info("metrics server listening", zap.String("address", cfg.Metrics.Address))
			if err := http.ListenAndServe(cfg.Metrics.Address, mux); err != nil {
				zapLog.Error("metrics server failed", zap.Error(err))
			}
		}()
	}

	switch *mode {
	case "analyze":
		if *placeID == "" {
			zapLog.Fatal("analyze mode requires -place")
		}
		req := orchestrator.Request{
			PlaceID:        *placeID,
			RestaurantName: *name,
			MaxReviews:     *maxReviews,
		}
		if req.MaxReviews == 0 {
			req.MaxReviews = cfg.Reviews.DefaultCount
		}
		runAnalyze(ctx, orch, obs, req, *format, *async, zapLog)

	case "search":
		runSearch(ctx, discovery, *address, *lat, *lng, *radius, *minReviews, *maxResults, *format, zapLog)

	case "status":
		status, err := orch.Status(ctx)
		if err != nil {
			zapLog.Fatal("cache status failed", zap.Error(err))
		}
		printJSON(status)

	case "clear-cache":
		if err := orch.ClearAllCaches(ctx); err != nil {
			zapLog.Fatal("cache clear failed", zap.Error(err))
		}
		zapLog.Info("all caches cleared")

	case "self-test":
		if err := genaiClient.SelfTest(ctx); err != nil {
			zapLog.Fatal("generative endpoint self test failed", zap.Error(err))
		}
		zapLog.Info("generative endpoint reachable")

	default:
		zapLog.Fatal("unknown mode", zap.String("mode", *mode))
	}
}

// buildCaches constructs the two cache stores on the configured backend.
func buildCaches(ctx context.Context, cfg *config.Config, zapLog *zap.Logger) (cache.Store, cache.Store, func(), error) {
	if cfg.Cache.Backend == "redis" {
		var reviewCache, analysisCache *cache.RedisStore
		err := retryWithBackoff(func() error {
			reviewCache = cache.NewRedisStore(cache.RedisOptions{
				Address:  cfg.Cache.Redis.Address,
				Password: cfg.Cache.Redis.Password,
				DB:       cfg.Cache.Redis.DB,
				Prefix:   reviewCachePrefix,
			})
			analysisCache = cache.NewRedisStore(cache.RedisOptions{
				Address:  cfg.Cache.Redis.Address,
				Password: cfg.Cache.Redis.Password,
				DB:       cfg.Cache.Redis.DB,
				Prefix:   analysisCachePrefix,
			})
			return reviewCache.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			return nil, nil, nil, err
		}
		zapLog.Info("Redis cache connected")
		closer := func() {
			reviewCache.Close()
			analysisCache.Close()
		}
		return reviewCache, analysisCache, closer, nil
	}

	if err := os.MkdirAll(cfg.Cache.Dir, 0o755); err != nil {
		return nil, nil, nil, err
	}
	reviewCache := cache.NewFileStore(cfg.Cache.FilePath(reviewCacheFile))
	analysisCache := cache.NewFileStore(cfg.Cache.FilePath(analysisCacheFile))
	return reviewCache, analysisCache, func() {}, nil
}

func runAnalyze(ctx context.Context, orch *orchestrator.Orchestrator, obs *observability.Observability, req orchestrator.Request, format string, async bool, zapLog *zap.Logger) {
	start := time.Now()

	if async {
		events, err := orch.AnalyzeAsync(ctx, req)
		if err != nil {
			zapLog.Fatal("analysis failed to start", zap.Error(err))
		}
		for event := range events {
			switch event.Type {
			case orchestrator.EventProgress:
				fmt.Printf("[%3d%%] %s\n", event.Percent, event.Message)
			case orchestrator.EventCompleted:
				obs.RecordAnalysisProcessed(ctx, "success")
				obs.RecordAnalysisDuration(ctx, time.Since(start), "success")
				printResult(event.Result, format, zapLog)
			case orchestrator.EventFailed:
				obs.RecordAnalysisProcessed(ctx, "failure")
				obs.RecordAnalysisDuration(ctx, time.Since(start), "failure")
				zapLog.Fatal("analysis failed", zap.Error(event.Err))
			}
		}
		return
	}

	result, err := orch.Analyze(ctx, req, func(message string, percent int) {
		fmt.Printf("[%3d%%] %s\n", percent, message)
	})
	if err != nil {
		obs.RecordAnalysisProcessed(ctx, "failure")
		obs.RecordAnalysisDuration(ctx, time.Since(start), "failure")
		zapLog.Fatal("analysis failed", zap.Error(err))
	}
	obs.RecordAnalysisProcessed(ctx, "success")
	obs.RecordAnalysisDuration(ctx, time.Since(start), "success")
	printResult(result, format, zapLog)
}

func runSearch(ctx context.Context, discovery *restaurants.Service, address string, lat, lng float64, radius, minReviews, maxResults int, format string, zapLog *zap.Logger) {
	params := restaurants.SearchParams{
		Latitude:   lat,
		Longitude:  lng,
		Radius:     radius,
		MinReviews: minReviews,
		MaxResults: maxResults,
	}

	var err error
	var found []models.Restaurant
	if address != "" {
		found, err = discovery.FindNearbyAddress(ctx, address, params)
	} else {
		found, err = discovery.FindNearby(ctx, params)
	}
	if err != nil {
		zapLog.Fatal("search failed", zap.Error(err))
	}

	if format == "json" {
		printJSON(found)
		return
	}
	for i, r := range found {
		open := ""
		if r.OpenNow != nil {
			if *r.OpenNow {
				open = " (open now)"
			} else {
				open = " (closed)"
			}
		}
		fmt.Printf("%d. %s — %.1f★ (%d reviews), %s, %s away%s\n",
			i+1, r.Name, r.Rating, r.TotalRatingCount, r.PriceText, r.DistanceText, open)
	}
}

func printResult(result *models.CombinedResult, format string, zapLog *zap.Logger) {
	if format == "json" {
		out, err := orchestrator.ExportJSON(result)
		if err != nil {
			zapLog.Fatal("export failed", zap.Error(err))
		}
		fmt.Println(out)
		return
	}
	text, err := orchestrator.ExportText(result)
	if err != nil {
		zapLog.Fatal("export failed", zap.Error(err))
	}
	fmt.Println(text)
}

func printJSON(v interface{}) {
	data, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(data))
}
