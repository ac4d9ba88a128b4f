// internal/places/client.go
package places

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"restaurant-insights/internal/common/config"
	commonhttp "restaurant-insights/internal/common/http"
	"restaurant-insights/internal/common/logger"
	"restaurant-insights/internal/common/metrics"
	"restaurant-insights/internal/models"

	apperrors "restaurant-insights/internal/common/errors"
)

// statusOK is the provider's success marker in every JSON response body.
const statusOK = "OK"

// Client is a typed wrapper over the mapping provider's HTTP APIs. All
// methods are single-shot; retry policy belongs to the callers that need it.
type Client struct {
	apiKey           string
	placesBaseURL    string
	geocodingBaseURL string
	distanceBaseURL  string
	http             *commonhttp.Client
	logger           logger.Logger
}

func NewClient(cfg config.MapsConfig, log logger.Logger) *Client {
	return &Client{
		apiKey:           cfg.APIKey,
		placesBaseURL:    cfg.PlacesBaseURL,
		geocodingBaseURL: cfg.GeocodingBaseURL,
		distanceBaseURL:  cfg.DistanceBaseURL,
		http:             commonhttp.NewClient(time.Duration(cfg.Timeout) * time.Second),
		logger:           log.With(map[string]interface{}{"component": "places"}),
	}
}

// PlaceDetails is the subset of the details response the pipeline consumes.
type PlaceDetails struct {
	Name             string
	Rating           float64
	UserRatingsTotal int
	Reviews          []models.Review
}

type rawReview struct {
	Text                    string `json:"text"`
	Rating                  int    `json:"rating"`
	AuthorName              string `json:"author_name"`
	Time                    int64  `json:"time"`
	RelativeTimeDescription string `json:"relative_time_description"`
	Language                string `json:"language"`
}

type detailsResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Result       struct {
		Name             string      `json:"name"`
		Rating           float64     `json:"rating"`
		UserRatingsTotal int         `json:"user_ratings_total"`
		Reviews          []rawReview `json:"reviews"`
	} `json:"result"`
}

// Details fetches name, rating, rating count and reviews for one place.
// Reviews come back newest first.
func (c *Client) Details(ctx context.Context, placeID string) (*PlaceDetails, error) {
	params := url.Values{}
	params.Set("place_id", placeID)
	params.Set("fields", "name,reviews,rating,user_ratings_total")
	params.Set("reviews_sort", "newest")
	params.Set("key", c.apiKey)

	var resp detailsResponse
	if err := c.getJSON(ctx, "places", c.placesBaseURL+"/details/json", params, &resp); err != nil {
		return nil, err
	}
	if resp.Status != statusOK {
		return nil, apperrors.NewPlacesAPIError(resp.Status, resp.ErrorMessage)
	}

	details := &PlaceDetails{
		Name:             resp.Result.Name,
		Rating:           resp.Result.Rating,
		UserRatingsTotal: resp.Result.UserRatingsTotal,
		Reviews:          make([]models.Review, 0, len(resp.Result.Reviews)),
	}
	for _, raw := range resp.Result.Reviews {
		details.Reviews = append(details.Reviews, models.Review{
			Text:                    raw.Text,
			Rating:                  raw.Rating,
			AuthorName:              raw.AuthorName,
			Time:                    raw.Time,
			RelativeTimeDescription: raw.RelativeTimeDescription,
			Language:                raw.Language,
		})
	}
	sort.SliceStable(details.Reviews, func(i, j int) bool {
		return details.Reviews[i].Time > details.Reviews[j].Time
	})
	return details, nil
}

type nearbyResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Results      []struct {
		PlaceID          string  `json:"place_id"`
		Name             string  `json:"name"`
		Rating           float64 `json:"rating"`
		UserRatingsTotal int     `json:"user_ratings_total"`
		PriceLevel       *int    `json:"price_level"`
		Vicinity         string  `json:"vicinity"`
		Geometry         struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
		OpeningHours *struct {
			OpenNow *bool `json:"open_now"`
		} `json:"opening_hours"`
	} `json:"results"`
}

// NearbySearch lists restaurants around a coordinate. Results are raw
// provider entries; filtering and ranking happen in the discovery service.
func (c *Client) NearbySearch(ctx context.Context, lat, lng float64, radius int) ([]models.Restaurant, error) {
	params := url.Values{}
	params.Set("location", fmt.Sprintf("%f,%f", lat, lng))
	params.Set("radius", strconv.Itoa(radius))
	params.Set("type", "restaurant")
	params.Set("key", c.apiKey)

	var resp nearbyResponse
	if err := c.getJSON(ctx, "places", c.placesBaseURL+"/nearbysearch/json", params, &resp); err != nil {
		return nil, err
	}
	if resp.Status != statusOK {
		return nil, apperrors.NewPlacesAPIError(resp.Status, resp.ErrorMessage)
	}

	restaurants := make([]models.Restaurant, 0, len(resp.Results))
	for _, raw := range resp.Results {
		r := models.Restaurant{
			PlaceID:          raw.PlaceID,
			Name:             raw.Name,
			Rating:           raw.Rating,
			TotalRatingCount: raw.UserRatingsTotal,
			PriceLevel:       raw.PriceLevel,
			Vicinity:         raw.Vicinity,
			Latitude:         raw.Geometry.Location.Lat,
			Longitude:        raw.Geometry.Location.Lng,
		}
		if raw.OpeningHours != nil {
			r.OpenNow = raw.OpeningHours.OpenNow
		}
		restaurants = append(restaurants, r)
	}
	return restaurants, nil
}

type geocodeResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Results      []struct {
		FormattedAddress string `json:"formatted_address"`
		Geometry         struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

// Geocode converts an address into coordinates.
func (c *Client) Geocode(ctx context.Context, address string) (float64, float64, error) {
	if address == "" {
		return 0, 0, apperrors.NewInvalidInputError("empty address")
	}

	params := url.Values{}
	params.Set("address", address)
	params.Set("key", c.apiKey)

	var resp geocodeResponse
	if err := c.getJSON(ctx, "geocoding", c.geocodingBaseURL+"/json", params, &resp); err != nil {
		return 0, 0, apperrors.NewGeocodingFailedError(address, err)
	}
	if resp.Status != statusOK || len(resp.Results) == 0 {
		return 0, 0, apperrors.NewGeocodingFailedError(address, fmt.Errorf("status %s: %s", resp.Status, resp.ErrorMessage))
	}

	loc := resp.Results[0].Geometry.Location
	return loc.Lat, loc.Lng, nil
}

// ReverseGeocode converts coordinates into a formatted address.
func (c *Client) ReverseGeocode(ctx context.Context, lat, lng float64) (string, error) {
	params := url.Values{}
	params.Set("latlng", fmt.Sprintf("%f,%f", lat, lng))
	params.Set("key", c.apiKey)

	var resp geocodeResponse
	if err := c.getJSON(ctx, "geocoding", c.geocodingBaseURL+"/json", params, &resp); err != nil {
		return "", err
	}
	if resp.Status != statusOK || len(resp.Results) == 0 {
		return "", apperrors.NewPlacesAPIError(resp.Status, resp.ErrorMessage)
	}
	return resp.Results[0].FormattedAddress, nil
}

// DistanceResult is one origin-to-destination walking measurement.
type DistanceResult struct {
	DistanceMeters int
	DistanceText   string
	DurationText   string
	OK             bool
}

type distanceResponse struct {
	Status string `json:"status"`
	Rows   []struct {
		Elements []struct {
			Status   string `json:"status"`
			Distance struct {
				Value int    `json:"value"`
				Text  string `json:"text"`
			} `json:"distance"`
			Duration struct {
				Text string `json:"text"`
			} `json:"duration"`
		} `json:"elements"`
	} `json:"rows"`
}

// WalkingDistances measures walking distance and time from one origin to
// each destination. The result slice is index-aligned with destinations;
// unreachable destinations come back with OK=false.
func (c *Client) WalkingDistances(ctx context.Context, originLat, originLng float64, destinations [][2]float64) ([]DistanceResult, error) {
	if len(destinations) == 0 {
		return nil, nil
	}

	dests := ""
	for i, d := range destinations {
		if i > 0 {
			dests += "|"
		}
		dests += fmt.Sprintf("%f,%f", d[0], d[1])
	}

	params := url.Values{}
	params.Set("origins", fmt.Sprintf("%f,%f", originLat, originLng))
	params.Set("destinations", dests)
	params.Set("mode", "walking")
	params.Set("key", c.apiKey)

	var resp distanceResponse
	if err := c.getJSON(ctx, "distancematrix", c.distanceBaseURL+"/json", params, &resp); err != nil {
		return nil, err
	}
	if resp.Status != statusOK || len(resp.Rows) == 0 {
		return nil, apperrors.NewPlacesAPIError(resp.Status, "distance matrix request rejected")
	}

	results := make([]DistanceResult, len(destinations))
	for i, element := range resp.Rows[0].Elements {
		if i >= len(results) {
			break
		}
		if element.Status != statusOK {
			continue
		}
		results[i] = DistanceResult{
			DistanceMeters: element.Distance.Value,
			DistanceText:   element.Distance.Text,
			DurationText:   element.Duration.Text,
			OK:             true,
		}
	}
	return results, nil
}

func (c *Client) getJSON(ctx context.Context, api, endpoint string, params url.Values, out interface{}) error {
	req, err := http.NewRequest(http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	start := time.Now()
	resp, err := c.http.DoWithContext(ctx, req)
	metrics.ExternalRequestDuration.WithLabelValues(api).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ExternalRequests.WithLabelValues(api, "network_error").Inc()
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	metrics.ExternalRequests.WithLabelValues(api, strconv.Itoa(resp.StatusCode)).Inc()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
