// internal/restaurants/service.go
package restaurants

import (
	"context"
	"fmt"
	"math"
	"sort"

	"restaurant-insights/internal/common/config"
	"restaurant-insights/internal/common/logger"
	"restaurant-insights/internal/models"
	"restaurant-insights/internal/places"

	apperrors "restaurant-insights/internal/common/errors"
)

const (
	earthRadiusMeters = 6371000
	walkingSpeedKmh   = 5
)

// NearbySearcher is the slice of the places client the service depends on.
type NearbySearcher interface {
	NearbySearch(ctx context.Context, lat, lng float64, radius int) ([]models.Restaurant, error)
	WalkingDistances(ctx context.Context, originLat, originLng float64, destinations [][2]float64) ([]places.DistanceResult, error)
	Geocode(ctx context.Context, address string) (float64, float64, error)
}

// SearchParams narrows and ranks a nearby search.
type SearchParams struct {
	Latitude   float64
	Longitude  float64
	Radius     int
	MinReviews int
	MaxResults int
}

// Service finds and ranks nearby restaurants.
type Service struct {
	searcher NearbySearcher
	cfg      config.SearchConfig
	logger   logger.Logger
}

func NewService(searcher NearbySearcher, cfg config.SearchConfig, log logger.Logger) *Service {
	return &Service{
		searcher: searcher,
		cfg:      cfg,
		logger:   log.With(map[string]interface{}{"component": "restaurants"}),
	}
}

// FindNearby searches around a coordinate, keeps places with enough reviews
// and a nonzero rating, ranks by rating then review count, and augments the
// top results with walking distance.
func (s *Service) FindNearby(ctx context.Context, params SearchParams) ([]models.Restaurant, error) {
	if !validCoordinates(params.Latitude, params.Longitude) {
		return nil, apperrors.NewInvalidInputError(
			fmt.Sprintf("invalid coordinates %f,%f", params.Latitude, params.Longitude))
	}
	params = s.applyDefaults(params)

	s.logger.Info("searching for restaurants", map[string]interface{}{
		"lat":        params.Latitude,
		"lng":        params.Longitude,
		"radius":     params.Radius,
		"minReviews": params.MinReviews,
	})

	candidates, err := s.searcher.NearbySearch(ctx, params.Latitude, params.Longitude, params.Radius)
	if err != nil {
		return nil, err
	}

	filtered := make([]models.Restaurant, 0, len(candidates))
	for _, r := range candidates {
		if r.TotalRatingCount >= params.MinReviews && r.Rating > 0 {
			filtered = append(filtered, r)
		}
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		if filtered[i].Rating != filtered[j].Rating {
			return filtered[i].Rating > filtered[j].Rating
		}
		return filtered[i].TotalRatingCount > filtered[j].TotalRatingCount
	})
	if len(filtered) > params.MaxResults {
		filtered = filtered[:params.MaxResults]
	}

	for i := range filtered {
		filtered[i].PriceText = formatPriceLevel(filtered[i].PriceLevel)
	}
	s.augmentDistances(ctx, params.Latitude, params.Longitude, filtered)

	s.logger.Info("restaurant search completed", map[string]interface{}{
		"found": len(filtered),
	})
	return filtered, nil
}

// FindNearbyAddress geocodes an address and searches around it.
func (s *Service) FindNearbyAddress(ctx context.Context, address string, params SearchParams) ([]models.Restaurant, error) {
	lat, lng, err := s.searcher.Geocode(ctx, address)
	if err != nil {
		return nil, err
	}
	params.Latitude = lat
	params.Longitude = lng
	return s.FindNearby(ctx, params)
}

func (s *Service) applyDefaults(params SearchParams) SearchParams {
	if params.Radius == 0 {
		params.Radius = s.cfg.DefaultRadius
	}
	if params.Radius < s.cfg.MinRadius {
		params.Radius = s.cfg.MinRadius
	}
	if params.Radius > s.cfg.MaxRadius {
		params.Radius = s.cfg.MaxRadius
	}
	if params.MinReviews <= 0 {
		params.MinReviews = s.cfg.DefaultMinReviews
	}
	if params.MaxResults <= 0 {
		params.MaxResults = s.cfg.DefaultMaxResults
	}
	return params
}

// augmentDistances fills walking distance from the distance matrix, with a
// straight-line estimate for destinations the provider cannot route.
func (s *Service) augmentDistances(ctx context.Context, originLat, originLng float64, restaurants []models.Restaurant) {
	if len(restaurants) == 0 {
		return
	}

	destinations := make([][2]float64, len(restaurants))
	for i, r := range restaurants {
		destinations[i] = [2]float64{r.Latitude, r.Longitude}
	}

	results, err := s.searcher.WalkingDistances(ctx, originLat, originLng, destinations)
	if err != nil {
		s.logger.Warn("distance matrix unavailable, estimating distances", map[string]interface{}{
			"error": err.Error(),
		})
		results = nil
	}

	for i := range restaurants {
		if results != nil && i < len(results) && results[i].OK {
			restaurants[i].DistanceMeters = results[i].DistanceMeters
			restaurants[i].DistanceText = results[i].DistanceText
			restaurants[i].WalkingDuration = results[i].DurationText
			continue
		}
		meters := haversineMeters(originLat, originLng, restaurants[i].Latitude, restaurants[i].Longitude)
		restaurants[i].DistanceMeters = int(meters)
		restaurants[i].DistanceText = formatDistance(meters)
		restaurants[i].WalkingDuration = estimateWalkingTime(meters)
	}
}

func haversineMeters(lat1, lng1, lat2, lng2 float64) float64 {
	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	deltaLat := (lat2 - lat1) * math.Pi / 180
	deltaLng := (lng2 - lng1) * math.Pi / 180

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*math.Sin(deltaLng/2)*math.Sin(deltaLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusMeters * c
}

func formatDistance(meters float64) string {
	if meters < 1000 {
		return fmt.Sprintf("%.0f m", meters)
	}
	return fmt.Sprintf("%.1f km", meters/1000)
}

func estimateWalkingTime(meters float64) string {
	minutes := int((meters / 1000) / walkingSpeedKmh * 60)
	if minutes <= 0 {
		return "< 1 min"
	}
	return fmt.Sprintf("%d min", minutes)
}

func formatPriceLevel(level *int) string {
	if level == nil {
		return "Price not available"
	}
	switch *level {
	case 0:
		return "Free"
	case 1:
		return "Inexpensive ($)"
	case 2:
		return "Moderate ($$)"
	case 3:
		return "Expensive ($$$)"
	case 4:
		return "Very Expensive ($$$$)"
	default:
		return "Price not available"
	}
}

func validCoordinates(lat, lng float64) bool {
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}
