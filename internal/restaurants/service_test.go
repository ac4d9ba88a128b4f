// internal/restaurants/service_test.go
package restaurants

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restaurant-insights/internal/common/config"
	"restaurant-insights/internal/common/logger"
	"restaurant-insights/internal/models"
	"restaurant-insights/internal/places"

	apperrors "restaurant-insights/internal/common/errors"
)

type fakeSearcher struct {
	restaurants []models.Restaurant
	searchErr   error

	distances    []places.DistanceResult
	distancesErr error

	geocodeLat float64
	geocodeLng float64
	geocodeErr error

	gotRadius       int
	gotDestinations [][2]float64
}

func (f *fakeSearcher) NearbySearch(ctx context.Context, lat, lng float64, radius int) ([]models.Restaurant, error) {
	f.gotRadius = radius
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.restaurants, nil
}

func (f *fakeSearcher) WalkingDistances(ctx context.Context, originLat, originLng float64, destinations [][2]float64) ([]places.DistanceResult, error) {
	f.gotDestinations = destinations
	if f.distancesErr != nil {
		return nil, f.distancesErr
	}
	return f.distances, nil
}

func (f *fakeSearcher) Geocode(ctx context.Context, address string) (float64, float64, error) {
	if f.geocodeErr != nil {
		return 0, 0, f.geocodeErr
	}
	return f.geocodeLat, f.geocodeLng, nil
}

func testSearchConfig() config.SearchConfig {
	return config.SearchConfig{
		DefaultRadius:     1000,
		MinRadius:         100,
		MaxRadius:         5000,
		DefaultMinReviews: 100,
		DefaultMaxResults: 5,
	}
}

func intPtr(v int) *int { return &v }

func newTestService(searcher *fakeSearcher) *Service {
	return NewService(searcher, testSearchConfig(), logger.NewNoOpLogger())
}

func TestService_FindNearby_FilterSortTruncate(t *testing.T) {
	searcher := &fakeSearcher{
		restaurants: []models.Restaurant{
			{PlaceID: "low-count", Name: "Too Few Reviews", Rating: 4.9, TotalRatingCount: 50},
			{PlaceID: "unrated", Name: "Unrated", Rating: 0, TotalRatingCount: 900},
			{PlaceID: "a", Name: "A", Rating: 4.5, TotalRatingCount: 200},
			{PlaceID: "b", Name: "B", Rating: 4.7, TotalRatingCount: 150},
			{PlaceID: "c", Name: "C", Rating: 4.5, TotalRatingCount: 400},
		},
		distances: []places.DistanceResult{
			{OK: true, DistanceMeters: 250, DistanceText: "0.3 km", DurationText: "4 mins"},
			{OK: true, DistanceMeters: 900, DistanceText: "0.9 km", DurationText: "12 mins"},
			{OK: true, DistanceMeters: 1200, DistanceText: "1.2 km", DurationText: "15 mins"},
		},
	}
	service := newTestService(searcher)

	results, err := service.FindNearby(context.Background(), SearchParams{
		Latitude:  41.89,
		Longitude: 12.47,
	})
	require.NoError(t, err)

	// Rating descending, review count breaks ties; the low-count and
	// unrated candidates are dropped.
	require.Len(t, results, 3)
	assert.Equal(t, "b", results[0].PlaceID)
	assert.Equal(t, "c", results[1].PlaceID)
	assert.Equal(t, "a", results[2].PlaceID)

	assert.Equal(t, 250, results[0].DistanceMeters)
	assert.Equal(t, "4 mins", results[0].WalkingDuration)
}

func TestService_FindNearby_MaxResults(t *testing.T) {
	var restaurants []models.Restaurant
	for i := 0; i < 10; i++ {
		restaurants = append(restaurants, models.Restaurant{
			PlaceID:          string(rune('a' + i)),
			Rating:           4.0,
			TotalRatingCount: 100 + i,
		})
	}
	searcher := &fakeSearcher{restaurants: restaurants, distancesErr: errors.New("skip")}
	service := newTestService(searcher)

	results, err := service.FindNearby(context.Background(), SearchParams{Latitude: 1, Longitude: 1, MaxResults: 2})
	require.NoError(t, err)
	assert.Len(t, results, 2)
	assert.Len(t, searcher.gotDestinations, 2, "only surviving results go to the distance matrix")
}

func TestService_FindNearby_RadiusClamping(t *testing.T) {
	tests := []struct {
		name     string
		radius   int
		expected int
	}{
		{"zero uses default", 0, 1000},
		{"below minimum clamps up", 10, 100},
		{"above maximum clamps down", 50000, 5000},
		{"in range passes through", 2500, 2500},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			searcher := &fakeSearcher{}
			service := newTestService(searcher)

			_, err := service.FindNearby(context.Background(), SearchParams{Latitude: 1, Longitude: 1, Radius: tt.radius})
			require.NoError(t, err)
			assert.Equal(t, tt.expected, searcher.gotRadius)
		})
	}
}

func TestService_FindNearby_InvalidCoordinates(t *testing.T) {
	service := newTestService(&fakeSearcher{})

	tests := []struct {
		name string
		lat  float64
		lng  float64
	}{
		{"latitude too high", 91, 0},
		{"latitude too low", -91, 0},
		{"longitude too high", 0, 181},
		{"longitude too low", 0, -181},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.FindNearby(context.Background(), SearchParams{Latitude: tt.lat, Longitude: tt.lng})
			require.Error(t, err)
			assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.CodeOf(err))
		})
	}
}

func TestService_FindNearby_DistanceMatrixFallback(t *testing.T) {
	// Rome city center to the Colosseum, roughly 1.8 km apart.
	searcher := &fakeSearcher{
		restaurants: []models.Restaurant{
			{PlaceID: "a", Rating: 4.5, TotalRatingCount: 200, Latitude: 41.8902, Longitude: 12.4922},
		},
		distancesErr: errors.New("matrix quota exceeded"),
	}
	service := newTestService(searcher)

	results, err := service.FindNearby(context.Background(), SearchParams{Latitude: 41.9028, Longitude: 12.4964})
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.InDelta(t, 1450, results[0].DistanceMeters, 150)
	assert.Contains(t, results[0].DistanceText, "km")
	assert.Contains(t, results[0].WalkingDuration, "min")
}

func TestService_FindNearby_PerElementFallback(t *testing.T) {
	searcher := &fakeSearcher{
		restaurants: []models.Restaurant{
			{PlaceID: "routable", Rating: 4.6, TotalRatingCount: 300, Latitude: 41.8902, Longitude: 12.4922},
			{PlaceID: "unroutable", Rating: 4.4, TotalRatingCount: 300, Latitude: 41.8916, Longitude: 12.4768},
		},
		distances: []places.DistanceResult{
			{OK: true, DistanceMeters: 1700, DistanceText: "1.7 km", DurationText: "22 mins"},
			{OK: false},
		},
	}
	service := newTestService(searcher)

	results, err := service.FindNearby(context.Background(), SearchParams{Latitude: 41.9028, Longitude: 12.4964})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "1.7 km", results[0].DistanceText)
	// The second result gets the straight-line estimate.
	assert.Greater(t, results[1].DistanceMeters, 0)
	assert.NotEmpty(t, results[1].WalkingDuration)
}

func TestService_FindNearby_ZeroDistance(t *testing.T) {
	searcher := &fakeSearcher{
		restaurants: []models.Restaurant{
			{PlaceID: "here", Rating: 4.0, TotalRatingCount: 150, Latitude: 41.9028, Longitude: 12.4964},
		},
		distancesErr: errors.New("unavailable"),
	}
	service := newTestService(searcher)

	results, err := service.FindNearby(context.Background(), SearchParams{Latitude: 41.9028, Longitude: 12.4964})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "< 1 min", results[0].WalkingDuration)
}

func TestService_FindNearby_PriceText(t *testing.T) {
	searcher := &fakeSearcher{
		restaurants: []models.Restaurant{
			{PlaceID: "free", Rating: 4.0, TotalRatingCount: 150, PriceLevel: intPtr(0)},
			{PlaceID: "cheap", Rating: 4.0, TotalRatingCount: 140, PriceLevel: intPtr(1)},
			{PlaceID: "lux", Rating: 4.0, TotalRatingCount: 130, PriceLevel: intPtr(4)},
			{PlaceID: "unknown", Rating: 4.0, TotalRatingCount: 120},
		},
		distancesErr: errors.New("unavailable"),
	}
	service := newTestService(searcher)

	results, err := service.FindNearby(context.Background(), SearchParams{Latitude: 1, Longitude: 1})
	require.NoError(t, err)
	require.Len(t, results, 4)

	assert.Equal(t, "Free", results[0].PriceText)
	assert.Equal(t, "Inexpensive ($)", results[1].PriceText)
	assert.Equal(t, "Very Expensive ($$$$)", results[2].PriceText)
	assert.Equal(t, "Price not available", results[3].PriceText)
}

func TestService_FindNearbyAddress(t *testing.T) {
	t.Run("geocode then search", func(t *testing.T) {
		searcher := &fakeSearcher{
			geocodeLat: 41.9,
			geocodeLng: 12.5,
			restaurants: []models.Restaurant{
				{PlaceID: "a", Rating: 4.5, TotalRatingCount: 200},
			},
			distancesErr: errors.New("unavailable"),
		}
		service := newTestService(searcher)

		results, err := service.FindNearbyAddress(context.Background(), "Via del Corso, Rome", SearchParams{})
		require.NoError(t, err)
		assert.Len(t, results, 1)
	})

	t.Run("geocode failure propagates", func(t *testing.T) {
		searcher := &fakeSearcher{
			geocodeErr: apperrors.NewGeocodingFailedError("nowhere", errors.New("ZERO_RESULTS")),
		}
		service := newTestService(searcher)

		_, err := service.FindNearbyAddress(context.Background(), "nowhere", SearchParams{})
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeGeocodingFailed, apperrors.CodeOf(err))
	})
}

func TestService_FindNearby_SearchErrorPropagates(t *testing.T) {
	searcher := &fakeSearcher{searchErr: apperrors.NewPlacesAPIError("OVER_QUERY_LIMIT", "quota")}
	service := newTestService(searcher)

	_, err := service.FindNearby(context.Background(), SearchParams{Latitude: 1, Longitude: 1})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodePlacesAPI, apperrors.CodeOf(err))
}

func TestFormatDistance(t *testing.T) {
	assert.Equal(t, "500 m", formatDistance(500))
	assert.Equal(t, "1.5 km", formatDistance(1500))
}
