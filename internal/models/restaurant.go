// internal/models/restaurant.go
package models

// Restaurant is one discovery result, augmented with walking distance.
type Restaurant struct {
	PlaceID          string  `json:"placeId"`
	Name             string  `json:"name"`
	Rating           float64 `json:"rating"`
	TotalRatingCount int     `json:"totalRatingCount"`
	PriceLevel       *int    `json:"priceLevel,omitempty"`
	PriceText        string  `json:"priceText,omitempty"`
	Vicinity         string  `json:"vicinity,omitempty"`
	Latitude         float64 `json:"latitude"`
	Longitude        float64 `json:"longitude"`
	DistanceMeters   int     `json:"distanceMeters,omitempty"`
	DistanceText     string  `json:"distanceText,omitempty"`
	WalkingDuration  string  `json:"walkingDuration,omitempty"`
	OpenNow          *bool   `json:"openNow,omitempty"`
}
