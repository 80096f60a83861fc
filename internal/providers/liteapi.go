package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/yashagarwalkdu25/Insufficient-Tokens-sub000/internal/state"
)

// starNightlyINR estimates a nightly rate from the star class when the rates
// endpoint returns nothing.
var starNightlyINR = map[int]float64{
	1: 800,
	2: 1500,
	3: 3000,
	4: 6000,
	5: 15000,
}

// LiteAPIClient searches hotels via the LiteAPI data endpoints.
type LiteAPIClient struct {
	apiKey  string
	http    httpDoer
	logger  *zap.Logger
	baseURL string
}

// NewLiteAPIClient builds the adapter.
func NewLiteAPIClient(apiKey string, http httpDoer, logger *zap.Logger) *LiteAPIClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LiteAPIClient{
		apiKey:  apiKey,
		http:    http,
		logger:  logger.Named("liteapi"),
		baseURL: "https://api.liteapi.travel/v3.0",
	}
}

// Configured reports whether an API key is present.
func (c *LiteAPIClient) Configured() bool { return c.apiKey != "" }

type liteAPIHotel struct {
	ID        json.Number `json:"id"`
	Name      string      `json:"name"`
	Address   string      `json:"address"`
	Latitude  float64     `json:"latitude"`
	Longitude float64     `json:"longitude"`
	Stars     float64     `json:"stars"`
	Phone     string      `json:"phone"`
}

type liteAPIRate struct {
	HotelID json.Number `json:"hotelId"`
	Price   float64     `json:"price"`
}

// SearchHotels returns normalized hotel candidates for a city. Nightly rates
// come from the rates endpoint when available, otherwise from the star-class
// estimate table (tagged "estimated").
func (c *LiteAPIClient) SearchHotels(ctx context.Context, cityName string, checkin, checkout time.Time, adults, nights int) ([]state.HotelOption, string) {
	if !c.Configured() {
		return nil, "liteapi key not configured"
	}
	if nights < 1 {
		nights = 1
	}

	var payload struct {
		Data   []liteAPIHotel `json:"data"`
		Hotels []liteAPIHotel `json:"hotels"`
	}
	err := c.http.GetJSONInto(ctx, "hotels", c.baseURL+"/data/hotels",
		map[string]string{"countryCode": "IN", "cityName": cityName},
		map[string]string{"X-API-Key": c.apiKey},
		&payload)
	if err != nil {
		return nil, reasonf("hotel search failed: %v", err)
	}
	hotels := payload.Data
	if len(hotels) == 0 {
		hotels = payload.Hotels
	}
	if len(hotels) == 0 {
		return nil, "no hotels returned for " + cityName
	}
	if len(hotels) > 15 {
		hotels = hotels[:15]
	}

	rates := c.fetchRates(ctx, hotels, checkin, checkout, adults)

	var out []state.HotelOption
	for _, h := range hotels {
		if h.Name == "" {
			continue
		}
		opt := state.HotelOption{
			ID:      stableID("hotel", h.ID.String(), h.Name),
			Name:    h.Name,
			Address: h.Address,
			Lat:     h.Latitude,
			Lon:     h.Longitude,
			Stars:   h.Stars,
			Phone:   h.Phone,
			Source:  state.SourceAPI,
		}
		if nightly, ok := rates[h.ID.String()]; ok && nightly > 0 {
			opt.PricePerNightINR = nightly
			opt.Verified = true
		} else {
			opt.PricePerNightINR = estimateNightly(h.Stars)
			opt.Source = state.SourceEstimated
		}
		opt.TotalPriceINR = opt.PricePerNightINR * float64(nights)
		out = append(out, opt)
	}
	if len(out) == 0 {
		return nil, "hotel payload had no usable entries"
	}
	return out, ""
}

// fetchRates asks the optional rates endpoint; failures degrade to the
// star-class estimate.
func (c *LiteAPIClient) fetchRates(ctx context.Context, hotels []liteAPIHotel, checkin, checkout time.Time, adults int) map[string]float64 {
	ids := make([]string, 0, len(hotels))
	for _, h := range hotels {
		if h.ID.String() != "" {
			ids = append(ids, h.ID.String())
		}
	}
	if len(ids) == 0 {
		return nil
	}

	var payload struct {
		Data []liteAPIRate `json:"data"`
	}
	err := c.http.GetJSONInto(ctx, "hotels", c.baseURL+"/data/rates",
		map[string]string{
			"hotelIds": strings.Join(ids, ","),
			"checkin":  checkin.Format("2006-01-02"),
			"checkout": checkout.Format("2006-01-02"),
			"adults":   fmt.Sprintf("%d", adults),
		},
		map[string]string{"X-API-Key": c.apiKey},
		&payload)
	if err != nil {
		c.logger.Debug("rates endpoint unavailable", zap.Error(err))
		return nil
	}
	rates := make(map[string]float64, len(payload.Data))
	for _, r := range payload.Data {
		rates[r.HotelID.String()] = r.Price
	}
	return rates
}

func estimateNightly(stars float64) float64 {
	s := int(stars + 0.5)
	if s < 1 {
		s = 2
	}
	if s > 5 {
		s = 5
	}
	return starNightlyINR[s]
}
