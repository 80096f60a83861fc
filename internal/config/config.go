// Package config holds all runtime settings for the trip planning engine.
// Every credential is optional: a missing key disables the corresponding
// provider adapter, which then reports itself as unconfigured instead of
// failing the run.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Settings is the root configuration threaded into the engine at construction.
type Settings struct {
	// LLM configuration
	LLM LLMSettings `yaml:"llm"`

	// External provider credentials
	Providers ProviderSettings `yaml:"providers"`

	// Persistence
	DatabasePath string `yaml:"database_path"`
	RedisAddr    string `yaml:"redis_addr"`

	// Cache TTLs per namespace
	Cache CacheSettings `yaml:"cache"`

	// HTTP behavior
	HTTPTimeout   time.Duration `yaml:"http_timeout"`
	RetryAttempts int           `yaml:"retry_attempts"`

	// Run behavior
	RunDeadline        time.Duration `yaml:"run_deadline"`
	ParallelBranches   bool          `yaml:"parallel_branches"`
	SessionTTL         time.Duration `yaml:"session_ttl"`
	SharedTripTTL      time.Duration `yaml:"shared_trip_ttl"`
	Debug              bool          `yaml:"debug"`
	DisableTracing     bool          `yaml:"disable_tracing"`
	ServerListenAddr   string        `yaml:"server_listen_addr"`
	NominatimUserAgent string        `yaml:"nominatim_user_agent"`
}

// LLMSettings configures the chat-completions client.
type LLMSettings struct {
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	BaseURL     string  `yaml:"base_url"`
	Temperature float32 `yaml:"temperature"`
}

// ProviderSettings holds credentials for the travel data providers.
type ProviderSettings struct {
	AmadeusClientID     string `yaml:"amadeus_client_id"`
	AmadeusClientSecret string `yaml:"amadeus_client_secret"`
	LiteAPIKey          string `yaml:"liteapi_key"`
	GooglePlacesKey     string `yaml:"google_places_key"`
	GoogleDirectionsKey string `yaml:"google_directions_key"`
	OpenWeatherMapKey   string `yaml:"openweathermap_key"`
	RedditClientID      string `yaml:"reddit_client_id"`
	RedditClientSecret  string `yaml:"reddit_client_secret"`
	TavilyAPIKey        string `yaml:"tavily_api_key"`
}

// CacheSettings holds per-namespace TTLs for the two-tier response cache.
type CacheSettings struct {
	FlightsTTL time.Duration `yaml:"flights_ttl"`
	HotelsTTL  time.Duration `yaml:"hotels_ttl"`
	WeatherTTL time.Duration `yaml:"weather_ttl"`
	PlacesTTL  time.Duration `yaml:"places_ttl"`
	SearchTTL  time.Duration `yaml:"search_ttl"`
}

// Default returns settings with all tunables at their documented defaults.
func Default() *Settings {
	return &Settings{
		LLM: LLMSettings{
			Model:       "gpt-4o-mini",
			BaseURL:     "https://api.openai.com/v1",
			Temperature: 0.1,
		},
		DatabasePath: "trip_planner.db",
		Cache: CacheSettings{
			FlightsTTL: 30 * time.Minute,
			HotelsTTL:  time.Hour,
			WeatherTTL: 2 * time.Hour,
			PlacesTTL:  24 * time.Hour,
			SearchTTL:  time.Hour,
		},
		HTTPTimeout:        10 * time.Second,
		RetryAttempts:      3,
		RunDeadline:        5 * time.Minute,
		ParallelBranches:   true,
		SessionTTL:         24 * time.Hour,
		SharedTripTTL:      7 * 24 * time.Hour,
		ServerListenAddr:   ":8080",
		NominatimUserAgent: "trip-planner/1.0 (itinerary research)",
	}
}

// Load builds settings from defaults, an optional YAML file, and environment
// overrides, in that order of precedence.
func Load(path string) (*Settings, error) {
	s := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, s); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}
	s.applyEnv()
	return s, nil
}

// FromEnv builds settings from defaults plus environment variables only.
func FromEnv() *Settings {
	s := Default()
	s.applyEnv()
	return s
}

func (s *Settings) applyEnv() {
	setString(&s.LLM.APIKey, "OPENAI_API_KEY")
	setString(&s.LLM.Model, "OPENAI_MODEL")
	setString(&s.LLM.BaseURL, "OPENAI_BASE_URL")

	setString(&s.Providers.AmadeusClientID, "AMADEUS_CLIENT_ID")
	setString(&s.Providers.AmadeusClientSecret, "AMADEUS_CLIENT_SECRET")
	setString(&s.Providers.LiteAPIKey, "LITEAPI_KEY")
	setString(&s.Providers.GooglePlacesKey, "GOOGLE_PLACES_KEY")
	setString(&s.Providers.GoogleDirectionsKey, "GOOGLE_DIRECTIONS_KEY")
	setString(&s.Providers.OpenWeatherMapKey, "OPENWEATHERMAP_KEY")
	setString(&s.Providers.RedditClientID, "REDDIT_CLIENT_ID")
	setString(&s.Providers.RedditClientSecret, "REDDIT_CLIENT_SECRET")
	setString(&s.Providers.TavilyAPIKey, "TAVILY_API_KEY")

	setString(&s.DatabasePath, "TRIP_PLANNER_DB")
	setString(&s.RedisAddr, "REDIS_ADDR")
	setString(&s.ServerListenAddr, "TRIP_PLANNER_LISTEN")

	setDuration(&s.Cache.FlightsTTL, "CACHE_TTL_FLIGHTS")
	setDuration(&s.Cache.HotelsTTL, "CACHE_TTL_HOTELS")
	setDuration(&s.Cache.WeatherTTL, "CACHE_TTL_WEATHER")
	setDuration(&s.Cache.PlacesTTL, "CACHE_TTL_PLACES")
	setDuration(&s.Cache.SearchTTL, "CACHE_TTL_SEARCH")
	setDuration(&s.HTTPTimeout, "HTTP_TIMEOUT")
	setDuration(&s.RunDeadline, "RUN_DEADLINE")
	setDuration(&s.SessionTTL, "SESSION_TTL")
	setDuration(&s.SharedTripTTL, "SHARED_TRIP_TTL")

	setBool(&s.Debug, "TRIP_PLANNER_DEBUG")
	setBool(&s.DisableTracing, "TRIP_PLANNER_NO_TRACE")
	if v, ok := os.LookupEnv("PARALLEL_BRANCHES"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			s.ParallelBranches = b
		}
	}
}

// HasLLM reports whether the chat-completions client is usable.
func (s *Settings) HasLLM() bool { return s.LLM.APIKey != "" }

// TTLFor returns the cache TTL for a provider namespace.
func (s *Settings) TTLFor(namespace string) time.Duration {
	switch namespace {
	case "flights":
		return s.Cache.FlightsTTL
	case "hotels":
		return s.Cache.HotelsTTL
	case "weather":
		return s.Cache.WeatherTTL
	case "places":
		return s.Cache.PlacesTTL
	default:
		return s.Cache.SearchTTL
	}
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

func setBool(dst *bool, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
