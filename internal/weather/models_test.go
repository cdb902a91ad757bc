package weather

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const currentFixture = `{
	"name": "London",
	"coord": {"lat": 51.51, "lon": -0.13},
	"main": {"temp": 18.4, "feels_like": 17.9, "pressure": 1012, "humidity": 72},
	"weather": [{"description": "light rain", "icon": "10d"}],
	"wind": {"speed": 4.1, "deg": 250},
	"sys": {"country": "GB", "sunrise": 1748750000, "sunset": 1748810000},
	"visibility": 10000,
	"dt": 1748775600,
	"timezone": 3600
}`

func TestParseCurrentAndDisplayName(t *testing.T) {
	p, err := ParseCurrent([]byte(currentFixture))
	require.NoError(t, err)
	assert.Equal(t, "London, GB", p.DisplayName())
	require.NotNil(t, p.Coord)
	assert.Equal(t, 51.51, p.Coord.Lat)
}

func TestDisplayNameSkipsCountryWhenPresent(t *testing.T) {
	p := &CurrentPayload{Name: "London, GB"}
	p.Sys.Country = "GB"
	assert.Equal(t, "London, GB", p.DisplayName())

	p = &CurrentPayload{Name: "Paris"}
	assert.Equal(t, "Paris", p.DisplayName())
}

func TestBuildSnapshot(t *testing.T) {
	p, err := ParseCurrent([]byte(currentFixture))
	require.NoError(t, err)

	snap := BuildSnapshot(p, UnitMetric)
	assert.Equal(t, "London, GB", snap.LocationName)
	assert.Equal(t, "18°C", snap.Temperature)
	assert.Equal(t, "18°C", snap.FeelsLike)
	assert.Equal(t, "1012 hPa", snap.Pressure)
	assert.Equal(t, "72%", snap.Humidity)
	assert.Equal(t, "10.0 km", snap.VisibilityKM)
	assert.Equal(t, "4.1 m/s", snap.WindSpeed)
	assert.Equal(t, "WSW", snap.WindDirection)
	assert.Equal(t, "Light rain", snap.Condition)
	assert.Equal(t, "10d", snap.Icon)
}

func TestParseCurrentInvalid(t *testing.T) {
	_, err := ParseCurrent([]byte("not json"))
	require.Error(t, err)
}

func TestWindDegreeToCardinal(t *testing.T) {
	tests := []struct {
		deg  float64
		want string
	}{
		{0, "N"},
		{45, "NE"},
		{90, "E"},
		{180, "S"},
		{270, "W"},
		{359, "N"},
		{250, "WSW"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, WindDegreeToCardinal(tt.deg), "deg %v", tt.deg)
	}
}
