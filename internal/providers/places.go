package providers

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/yashagarwalkdu25/Insufficient-Tokens-sub000/internal/state"
)

// priceLevelINR converts the Places enum to a rough per-person spend.
var priceLevelINR = map[string]float64{
	"PRICE_LEVEL_FREE":           0,
	"PRICE_LEVEL_INEXPENSIVE":    200,
	"PRICE_LEVEL_MODERATE":       500,
	"PRICE_LEVEL_EXPENSIVE":      1500,
	"PRICE_LEVEL_VERY_EXPENSIVE": 3000,
}

// activityDurations maps place types to a default visit length in hours.
var activityDurations = map[string]float64{
	"museum":          2.5,
	"tourist_attraction": 2,
	"park":            1.5,
	"hindu_temple":    1.5,
	"place_of_worship": 1.5,
	"amusement_park":  4,
	"zoo":             3,
	"shopping_mall":   2,
	"restaurant":      1.5,
	"art_gallery":     1.5,
}

// PlacesClient queries the Google Places text-search API.
type PlacesClient struct {
	apiKey  string
	http    httpDoer
	logger  *zap.Logger
	baseURL string
}

// NewPlacesClient builds the adapter.
func NewPlacesClient(apiKey string, http httpDoer, logger *zap.Logger) *PlacesClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PlacesClient{
		apiKey:  apiKey,
		http:    http,
		logger:  logger.Named("places"),
		baseURL: "https://places.googleapis.com/v1/places:searchText",
	}
}

// Configured reports whether an API key is present.
func (c *PlacesClient) Configured() bool { return c.apiKey != "" }

type placesResponse struct {
	Places []struct {
		ID          string `json:"id"`
		DisplayName struct {
			Text string `json:"text"`
		} `json:"displayName"`
		Types    []string `json:"types"`
		Location struct {
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
		} `json:"location"`
		Rating               float64 `json:"rating"`
		PriceLevel           string  `json:"priceLevel"`
		NationalPhoneNumber  string  `json:"nationalPhoneNumber"`
		GoogleMapsURI        string  `json:"googleMapsUri"`
		RegularOpeningHours  struct {
			WeekdayDescriptions []string `json:"weekdayDescriptions"`
		} `json:"regularOpeningHours"`
	} `json:"places"`
}

// SearchActivities returns activity candidates for a destination, biased by
// the traveler's interests when provided.
func (c *PlacesClient) SearchActivities(ctx context.Context, destination string, interests []string) ([]state.ActivityOption, string) {
	if !c.Configured() {
		return nil, "google places key not configured"
	}

	query := "top attractions in " + destination
	if len(interests) > 0 {
		query = fmt.Sprintf("%s things to do in %s", strings.Join(interests, " "), destination)
	}

	var resp placesResponse
	doc, err := c.http.PostJSON(ctx, "places", c.baseURL,
		map[string]any{"textQuery": query, "maxResultCount": 15},
		map[string]string{
			"X-Goog-Api-Key":   c.apiKey,
			"X-Goog-FieldMask": "places.id,places.displayName,places.types,places.location,places.rating,places.priceLevel,places.nationalPhoneNumber,places.googleMapsUri,places.regularOpeningHours",
		})
	if err != nil {
		return nil, reasonf("places search failed: %v", err)
	}
	if err := decodeInto(doc, &resp); err != nil {
		return nil, reasonf("places payload malformed: %v", err)
	}
	if len(resp.Places) == 0 {
		return nil, "no places returned for " + destination
	}

	var out []state.ActivityOption
	for _, p := range resp.Places {
		if p.DisplayName.Text == "" {
			continue
		}
		opt := state.ActivityOption{
			ID:            stableID("activity", p.ID, p.DisplayName.Text),
			Name:          p.DisplayName.Text,
			Category:      primaryCategory(p.Types),
			DurationHours: visitDuration(p.Types),
			PriceINR:      priceLevelINR[p.PriceLevel],
			Lat:           p.Location.Latitude,
			Lon:           p.Location.Longitude,
			Phone:         p.NationalPhoneNumber,
			Rating:        p.Rating,
			BookingURL:    p.GoogleMapsURI,
			Source:        state.SourceAPI,
			Verified:      true,
		}
		if len(p.RegularOpeningHours.WeekdayDescriptions) > 0 {
			opt.OpeningHours = p.RegularOpeningHours.WeekdayDescriptions[0]
		}
		out = append(out, opt)
	}
	if len(out) == 0 {
		return nil, "places payload had no usable entries"
	}
	return out, ""
}

func primaryCategory(types []string) string {
	for _, t := range types {
		if _, ok := activityDurations[t]; ok {
			return t
		}
	}
	if len(types) > 0 {
		return types[0]
	}
	return "attraction"
}

func visitDuration(types []string) float64 {
	for _, t := range types {
		if d, ok := activityDurations[t]; ok {
			return d
		}
	}
	return 2
}
