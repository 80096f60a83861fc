// Package geo provides geocoding for the planner: a curated Indian city
// gazetteer checked first, a rate-limited Nominatim fallback, and great-circle
// distance math.
package geo

import (
	"context"
	_ "embed"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"
)

//go:embed destinations.yaml
var destinationsYAML []byte

// Point is a WGS84 coordinate.
type Point struct {
	Lat float64 `yaml:"lat" json:"lat"`
	Lon float64 `yaml:"lon" json:"lon"`
}

// City is one curated gazetteer entry.
type City struct {
	Name       string   `yaml:"name" json:"name"`
	State      string   `yaml:"state" json:"state"`
	Lat        float64  `yaml:"lat" json:"lat"`
	Lon        float64  `yaml:"lon" json:"lon"`
	IATA       string   `yaml:"iata,omitempty" json:"iata,omitempty"`
	BestMonths []int    `yaml:"best_months,omitempty" json:"best_months,omitempty"`
	Tags       []string `yaml:"tags,omitempty" json:"tags,omitempty"`
	Aliases    []string `yaml:"aliases,omitempty" json:"aliases,omitempty"`
}

// Point returns the city's coordinate.
func (c City) Point() Point { return Point{Lat: c.Lat, Lon: c.Lon} }

// SeasonFit reports whether the month falls in the city's best season.
func (c City) SeasonFit(month int) bool {
	for _, m := range c.BestMonths {
		if m == month {
			return true
		}
	}
	return false
}

// HasTag reports whether the city carries the (case-insensitive) tag.
func (c City) HasTag(tag string) bool {
	tag = strings.ToLower(tag)
	for _, t := range c.Tags {
		if strings.ToLower(t) == tag {
			return true
		}
	}
	return false
}

// nominatimClient is the HTTP dependency for the free-geocoder fallback.
type nominatimClient interface {
	GetJSONInto(ctx context.Context, namespace, url string, params, headers map[string]string, out any) error
}

// Resolver geocodes place names: gazetteer first, then Nominatim.
type Resolver struct {
	cities  []City
	byName  map[string]*City
	http    nominatimClient
	limiter *rate.Limiter
	ua      string
	baseURL string
	logger  *zap.Logger
}

// NewResolver loads the embedded gazetteer. httpClient may be nil, disabling
// the Nominatim fallback.
func NewResolver(httpClient nominatimClient, userAgent string, logger *zap.Logger) (*Resolver, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var payload struct {
		Cities []City `yaml:"cities"`
	}
	if err := yaml.Unmarshal(destinationsYAML, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse destinations dataset: %w", err)
	}

	r := &Resolver{
		cities: payload.Cities,
		byName: make(map[string]*City, len(payload.Cities)*2),
		http:   httpClient,
		// Nominatim usage policy requires at most one request per second.
		limiter: rate.NewLimiter(rate.Limit(1), 1),
		ua:      userAgent,
		baseURL: "https://nominatim.openstreetmap.org/search",
		logger:  logger.Named("geo"),
	}
	for i := range r.cities {
		c := &r.cities[i]
		r.byName[strings.ToLower(c.Name)] = c
		for _, a := range c.Aliases {
			r.byName[strings.ToLower(a)] = c
		}
	}
	return r, nil
}

// Cities returns the full gazetteer.
func (r *Resolver) Cities() []City { return r.cities }

// Lookup finds a curated city by name or alias.
func (r *Resolver) Lookup(name string) (City, bool) {
	c, ok := r.byName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return City{}, false
	}
	return *c, true
}

// Resolve geocodes a place: curated dictionary, then Nominatim. The second
// return distinguishes curated hits so callers can tag provenance.
func (r *Resolver) Resolve(ctx context.Context, place string) (Point, bool, error) {
	if c, ok := r.Lookup(place); ok {
		return c.Point(), true, nil
	}
	if r.http == nil {
		return Point{}, false, fmt.Errorf("no coordinates for %q", place)
	}
	if err := r.limiter.Wait(ctx); err != nil {
		return Point{}, false, err
	}

	var results []struct {
		Lat string `json:"lat"`
		Lon string `json:"lon"`
	}
	err := r.http.GetJSONInto(ctx, "places", r.baseURL,
		map[string]string{"q": place, "format": "json", "limit": "1"},
		map[string]string{"User-Agent": r.ua},
		&results)
	if err != nil {
		return Point{}, false, fmt.Errorf("geocoding %q failed: %w", place, err)
	}
	if len(results) == 0 {
		return Point{}, false, fmt.Errorf("no geocoding result for %q", place)
	}
	var p Point
	if _, err := fmt.Sscanf(results[0].Lat, "%f", &p.Lat); err != nil {
		return Point{}, false, fmt.Errorf("bad latitude for %q: %w", place, err)
	}
	if _, err := fmt.Sscanf(results[0].Lon, "%f", &p.Lon); err != nil {
		return Point{}, false, fmt.Errorf("bad longitude for %q: %w", place, err)
	}
	return p, false, nil
}

const earthRadiusKM = 6371.0

// HaversineKM returns the great-circle distance between two points.
func HaversineKM(a, b Point) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKM * math.Asin(math.Sqrt(h))
}
