package geo

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestResolver(t *testing.T) *Resolver {
	t.Helper()
	r, err := NewResolver(nil, "test-agent", zap.NewNop())
	require.NoError(t, err)
	return r
}

func TestHaversineIdentity(t *testing.T) {
	p := Point{Lat: 28.6139, Lon: 77.2090}
	assert.Zero(t, HaversineKM(p, p))
}

func TestHaversineDelhiMumbai(t *testing.T) {
	delhi := Point{Lat: 28.6139, Lon: 77.2090}
	mumbai := Point{Lat: 19.0760, Lon: 72.8777}
	d := HaversineKM(delhi, mumbai)
	assert.InDelta(t, 1154, d, 20, "Delhi-Mumbai great-circle distance")
}

func TestLookupAliases(t *testing.T) {
	r := newTestResolver(t)

	c, ok := r.Lookup("bombay")
	require.True(t, ok)
	assert.Equal(t, "Mumbai", c.Name)

	c, ok = r.Lookup("  RISHIKESH ")
	require.True(t, ok)
	assert.Equal(t, "Uttarakhand", c.State)
	assert.True(t, c.HasTag("adventure"))

	_, ok = r.Lookup("atlantis")
	assert.False(t, ok)
}

func TestSeasonFit(t *testing.T) {
	r := newTestResolver(t)
	leh, ok := r.Lookup("leh")
	require.True(t, ok)
	assert.True(t, leh.SeasonFit(7))
	assert.False(t, leh.SeasonFit(1))
}

type fakeGeocoder struct {
	calls int
}

func (f *fakeGeocoder) GetJSONInto(_ context.Context, _, _ string, params, headers map[string]string, out any) error {
	f.calls++
	raw := `[{"lat": "15.4909", "lon": "73.8278"}]`
	return json.Unmarshal([]byte(raw), out)
}

func TestResolveFallsBackToNominatim(t *testing.T) {
	fc := &fakeGeocoder{}
	r, err := NewResolver(fc, "test-agent", zap.NewNop())
	require.NoError(t, err)

	// Curated hit does not touch the geocoder.
	p, curated, err := r.Resolve(context.Background(), "Jaipur")
	require.NoError(t, err)
	assert.True(t, curated)
	assert.InDelta(t, 26.9124, p.Lat, 0.001)
	assert.Zero(t, fc.calls)

	// Unknown place goes to Nominatim.
	p, curated, err = r.Resolve(context.Background(), "Calangute Beach")
	require.NoError(t, err)
	assert.False(t, curated)
	assert.InDelta(t, 15.4909, p.Lat, 0.001)
	assert.Equal(t, 1, fc.calls)
}
