// test/e2e/e2e_test.go
//
// End-to-end pipeline tests: real stores and orchestrator wired against
// stubbed provider and model endpoints. No external services required.
package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restaurant-insights/internal/analysis"
	"restaurant-insights/internal/common/cache"
	"restaurant-insights/internal/common/config"
	"restaurant-insights/internal/common/logger"
	"restaurant-insights/internal/genai"
	"restaurant-insights/internal/orchestrator"
	"restaurant-insights/internal/places"
	"restaurant-insights/internal/reviews"
)

const e2ePlaceID = "ChIJ_e2e_test_place"

// pipelineEnv is one fully wired pipeline backed by temp-dir file caches.
type pipelineEnv struct {
	orch         *orchestrator.Orchestrator
	placesServer *httptest.Server
	genaiServer  *httptest.Server

	detailsCalls int
	modelCalls   int
}

func newPipelineEnv(t *testing.T, modelHandler http.HandlerFunc) *pipelineEnv {
	t.Helper()
	env := &pipelineEnv{}

	env.placesServer = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		env.detailsCalls++
		assert.Equal(t, e2ePlaceID, r.URL.Query().Get("place_id"))
		fmt.Fprint(w, `{
			"status": "OK",
			"result": {
				"name": "Trattoria Da Enzo",
				"rating": 4.6,
				"user_ratings_total": 812,
				"reviews": [
					{"text": "Best carbonara I have ever had, the pasta is divine", "rating": 5, "time": 300},
					{"text": "Lovely staff and a great wine selection all around", "rating": 4, "time": 200},
					{"text": "A bit cramped on weekends but worth every minute", "rating": 4, "time": 100}
				]
			}
		}`)
	}))
	t.Cleanup(env.placesServer.Close)

	env.genaiServer = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		env.modelCalls++
		modelHandler(w, r)
	}))
	t.Cleanup(env.genaiServer.Close)

	log := logger.NewNoOpLogger()
	dir := t.TempDir()

	placesClient := places.NewClient(config.MapsConfig{
		APIKey:        "maps-key",
		PlacesBaseURL: env.placesServer.URL,
		Timeout:       5,
	}, log)

	reviewStore := reviews.NewStore(placesClient,
		cache.NewFileStore(filepath.Join(dir, "reviews.json")),
		config.ReviewsConfig{CacheTTL: time.Hour, MaxCount: 500},
		config.HTTPConfig{MaxRetries: 3},
		log,
	)

	genaiClient := genai.NewClient(config.GenAIConfig{
		APIKey:              "genai-key",
		BaseURL:             env.genaiServer.URL,
		Models:              []string{"model-a"},
		MaxRetries:          1,
		FirstAttemptTimeout: 5 * time.Second,
		RetryTimeout:        5 * time.Second,
		Temperature:         0.1,
		TopK:                40,
		TopP:                0.95,
		MaxOutputTokens:     1024,
	}, log)

	analysisStore := analysis.NewStore(genaiClient,
		cache.NewFileStore(filepath.Join(dir, "analysis.json")),
		config.AnalysisConfig{CacheTTL: 24 * time.Hour, MaxReviews: 30},
		log,
	)

	env.orch = orchestrator.New(reviewStore, analysisStore, log)
	return env
}

func modelJSONHandler(text string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := genai.ModelResponse{
			Candidates: []genai.Candidate{
				{Content: genai.Content{Parts: []genai.Part{{Text: text}}}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}
}

func TestPipeline_FullAnalysis(t *testing.T) {
	env := newPipelineEnv(t, modelJSONHandler(`{
		"cuisine_type": "Italian",
		"ambience": "Cozy and bustling",
		"highlights": ["Fresh pasta", "Friendly staff"],
		"complaints": ["Cramped seating"],
		"overall_sentiment": "Very positive",
		"price_range": "$$ - Moderate",
		"best_dishes": ["Carbonara"],
		"service_quality": "Excellent"
	}`))

	var percents []int
	result, err := env.orch.Analyze(context.Background(),
		orchestrator.Request{PlaceID: e2ePlaceID, MaxReviews: 10},
		func(message string, percent int) { percents = append(percents, percent) })
	require.NoError(t, err)

	assert.Equal(t, "Trattoria Da Enzo", result.RestaurantName)
	assert.Equal(t, 3, result.ReviewMetadata.TotalReviews)
	assert.Equal(t, "Italian", result.Analysis.CuisineType)
	assert.False(t, result.Analysis.UsedFallback)
	assert.Equal(t, []int{10, 50, 100}, percents)

	report, err := orchestrator.ExportText(result)
	require.NoError(t, err)
	assert.Contains(t, report, "Restaurant: Trattoria Da Enzo")
	assert.Contains(t, report, "• Fresh pasta")
}

func TestPipeline_SecondRunServedFromCaches(t *testing.T) {
	env := newPipelineEnv(t, modelJSONHandler(`{"cuisine_type": "Italian", "overall_sentiment": "Very positive"}`))
	ctx := context.Background()
	req := orchestrator.Request{PlaceID: e2ePlaceID}

	first, err := env.orch.Analyze(ctx, req, nil)
	require.NoError(t, err)
	assert.False(t, first.ReviewMetadata.FromCache)
	assert.False(t, first.AnalysisFromCache)

	second, err := env.orch.Analyze(ctx, req, nil)
	require.NoError(t, err)
	assert.True(t, second.ReviewMetadata.FromCache)
	assert.True(t, second.AnalysisFromCache)
	assert.Equal(t, first.Analysis, second.Analysis)

	assert.Equal(t, 1, env.detailsCalls)
	assert.Equal(t, 1, env.modelCalls)
}

func TestPipeline_ModelOutageDegradesToFallback(t *testing.T) {
	env := newPipelineEnv(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	result, err := env.orch.Analyze(context.Background(),
		orchestrator.Request{PlaceID: e2ePlaceID}, nil)
	require.NoError(t, err, "model outage must degrade, not fail the run")

	assert.True(t, result.Analysis.UsedFallback)
	assert.Equal(t, "Italian", result.Analysis.CuisineType, "keyword fallback still detects the cuisine")
	assert.NotEmpty(t, result.Analysis.OverallSentiment)
}

func TestPipeline_AsyncRun(t *testing.T) {
	env := newPipelineEnv(t, modelJSONHandler(`{"cuisine_type": "Italian"}`))

	events, err := env.orch.AnalyzeAsync(context.Background(),
		orchestrator.Request{PlaceID: e2ePlaceID})
	require.NoError(t, err)

	var last orchestrator.Event
	count := 0
	for event := range events {
		last = event
		count++
	}
	assert.Equal(t, 4, count)
	assert.Equal(t, orchestrator.EventCompleted, last.Type)
	require.NotNil(t, last.Result)
	assert.Equal(t, "Trattoria Da Enzo", last.Result.RestaurantName)
}

func TestPipeline_StatusAndCacheClear(t *testing.T) {
	env := newPipelineEnv(t, modelJSONHandler(`{"cuisine_type": "Italian"}`))
	ctx := context.Background()

	_, err := env.orch.Analyze(ctx, orchestrator.Request{PlaceID: e2ePlaceID}, nil)
	require.NoError(t, err)

	status, err := env.orch.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, status.Reviews.TotalEntries)
	assert.Equal(t, 1, status.Analysis.TotalEntries)
	assert.True(t, status.ResultAvailable)

	require.NoError(t, env.orch.ClearAllCaches(ctx))

	status, err = env.orch.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, status.Reviews.TotalEntries)
	assert.Equal(t, 0, status.Analysis.TotalEntries)
	assert.False(t, status.ResultAvailable)

	// Next run goes back to the provider.
	_, err = env.orch.Analyze(ctx, orchestrator.Request{PlaceID: e2ePlaceID}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, env.detailsCalls)
}
