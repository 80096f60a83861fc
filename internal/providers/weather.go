package providers

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/yashagarwalkdu25/Insufficient-Tokens-sub000/internal/state"
)

// wmoConditions maps WMO weather codes to short human labels.
var wmoConditions = map[int]string{
	0:  "Clear sky",
	1:  "Mainly clear",
	2:  "Partly cloudy",
	3:  "Overcast",
	45: "Fog",
	48: "Depositing rime fog",
	51: "Light drizzle",
	53: "Moderate drizzle",
	55: "Dense drizzle",
	61: "Slight rain",
	63: "Moderate rain",
	65: "Heavy rain",
	71: "Slight snow",
	73: "Moderate snow",
	75: "Heavy snow",
	80: "Rain showers",
	81: "Moderate rain showers",
	82: "Violent rain showers",
	95: "Thunderstorm",
	96: "Thunderstorm with hail",
	99: "Thunderstorm with heavy hail",
}

// WMOCondition returns the label for a code, or "Unknown".
func WMOCondition(code int) string {
	if c, ok := wmoConditions[code]; ok {
		return c
	}
	return "Unknown"
}

// WeatherClient fetches daily forecasts from Open-Meteo. No key required.
type WeatherClient struct {
	http    httpDoer
	logger  *zap.Logger
	baseURL string
}

// NewWeatherClient builds the adapter.
func NewWeatherClient(http httpDoer, logger *zap.Logger) *WeatherClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WeatherClient{
		http:    http,
		logger:  logger.Named("weather"),
		baseURL: "https://api.open-meteo.com/v1/forecast",
	}
}

type openMeteoDaily struct {
	Daily struct {
		Time                     []string  `json:"time"`
		Temperature2mMax         []float64 `json:"temperature_2m_max"`
		Temperature2mMin         []float64 `json:"temperature_2m_min"`
		PrecipitationSum         []float64 `json:"precipitation_sum"`
		PrecipitationProbability []float64 `json:"precipitation_probability_max"`
		WeatherCode              []int     `json:"weather_code"`
		WindSpeed10mMax          []float64 `json:"wind_speed_10m_max"`
	} `json:"daily"`
}

// Forecast returns the daily outlook over [start, end]. Open-Meteo covers at
// most 16 days ahead; beyond that the window is clamped and noted in the
// summary.
func (c *WeatherClient) Forecast(ctx context.Context, destination string, lat, lon float64, start, end time.Time) (*state.WeatherSummary, string) {
	horizon := time.Now().UTC().AddDate(0, 0, 15)
	clamped := false
	if end.After(horizon) {
		end = horizon
		clamped = true
	}
	if start.After(end) {
		return nil, "trip window beyond the forecast horizon"
	}

	var resp openMeteoDaily
	err := c.http.GetJSONInto(ctx, "weather", c.baseURL,
		map[string]string{
			"latitude":   fmt.Sprintf("%.4f", lat),
			"longitude":  fmt.Sprintf("%.4f", lon),
			"daily":      "temperature_2m_max,temperature_2m_min,precipitation_sum,precipitation_probability_max,weather_code,wind_speed_10m_max",
			"timezone":   "Asia/Kolkata",
			"start_date": start.Format("2006-01-02"),
			"end_date":   end.Format("2006-01-02"),
		}, nil, &resp)
	if err != nil {
		return nil, reasonf("weather request failed: %v", err)
	}
	if len(resp.Daily.Time) == 0 {
		return nil, "empty forecast for " + destination
	}

	summary := &state.WeatherSummary{
		Destination: destination,
		Source:      state.SourceAPI,
	}
	rainy := 0
	for i, date := range resp.Daily.Time {
		day := state.WeatherDay{Date: date}
		if i < len(resp.Daily.Temperature2mMax) {
			day.TempMaxC = resp.Daily.Temperature2mMax[i]
		}
		if i < len(resp.Daily.Temperature2mMin) {
			day.TempMinC = resp.Daily.Temperature2mMin[i]
		}
		if i < len(resp.Daily.PrecipitationSum) {
			day.PrecipMM = resp.Daily.PrecipitationSum[i]
		}
		if i < len(resp.Daily.PrecipitationProbability) {
			day.PrecipProbPct = resp.Daily.PrecipitationProbability[i]
		}
		if i < len(resp.Daily.WeatherCode) {
			day.WeatherCode = resp.Daily.WeatherCode[i]
			day.Condition = WMOCondition(day.WeatherCode)
		}
		if i < len(resp.Daily.WindSpeed10mMax) {
			day.WindMaxKPH = resp.Daily.WindSpeed10mMax[i]
		}
		if day.PrecipProbPct >= 50 {
			rainy++
		}
		summary.Days = append(summary.Days, day)
	}

	summary.Summary = fmt.Sprintf("%d day(s) forecast, %d with likely rain", len(summary.Days), rainy)
	if clamped {
		summary.Summary += "; later dates are beyond the 16-day forecast horizon"
	}
	return summary, ""
}
