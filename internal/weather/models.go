package weather

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

// Unit is the temperature unit requested from the remote source. The source
// returns values pre-converted, so no arithmetic happens on our side.
type Unit string

const (
	UnitMetric   Unit = "metric"
	UnitImperial Unit = "imperial"
	UnitStandard Unit = "standard"
)

// ParseUnit normalizes a user-supplied unit string. Anything unrecognized
// falls back to the standard (Kelvin) unit, matching the remote API default.
func ParseUnit(s string) Unit {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "metric", "celsius", "c", "°c":
		return UnitMetric
	case "imperial", "fahrenheit", "f", "°f":
		return UnitImperial
	default:
		return UnitStandard
	}
}

// Symbol returns the display suffix for temperatures in this unit.
func (u Unit) Symbol() string {
	switch u {
	case UnitMetric:
		return "°C"
	case UnitImperial:
		return "°F"
	default:
		return "K"
	}
}

// Param returns the value of the "units" request modifier for this unit.
func (u Unit) Param() string {
	switch u {
	case UnitMetric, UnitImperial:
		return string(u)
	default:
		return string(UnitStandard)
	}
}

// CurrentPayload mirrors the remote current-weather response body. Only the
// fields the app reads are declared; the raw bytes are what gets cached and
// published, so undeclared fields survive the round trip.
type CurrentPayload struct {
	Name  string `json:"name"`
	Coord *struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	} `json:"coord"`
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		Pressure  int     `json:"pressure"`
		Humidity  int     `json:"humidity"`
	} `json:"main"`
	Weather []struct {
		Description string `json:"description"`
		Icon        string `json:"icon"`
	} `json:"weather"`
	Wind struct {
		Speed float64 `json:"speed"`
		Deg   float64 `json:"deg"`
	} `json:"wind"`
	Sys struct {
		Country string `json:"country"`
		Sunrise int64  `json:"sunrise"`
		Sunset  int64  `json:"sunset"`
	} `json:"sys"`
	Visibility int   `json:"visibility"`
	Dt         int64 `json:"dt"`
	Timezone   int   `json:"timezone"` // UTC offset, seconds
}

// ParseCurrent decodes a raw current-weather payload.
func ParseCurrent(raw []byte) (*CurrentPayload, error) {
	var p CurrentPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("parse current weather payload: %w", err)
	}
	return &p, nil
}

// DisplayName returns the canonical location name: city plus country code,
// unless the country is blank or already part of the bare name.
func (p *CurrentPayload) DisplayName() string {
	country := p.Sys.Country
	if country == "" || strings.Contains(p.Name, country) {
		return p.Name
	}
	return p.Name + ", " + country
}

// Snapshot is the display-ready view of a current-weather payload. Immutable
// once built; a new fetch supersedes it wholesale.
type Snapshot struct {
	LocationName  string  `json:"locationName"`
	Lat           float64 `json:"lat"`
	Lon           float64 `json:"lon"`
	ObservedAt    string  `json:"observedAt"`
	Temperature   string  `json:"temperature"`
	FeelsLike     string  `json:"feelsLike"`
	Pressure      string  `json:"pressure"`
	Humidity      string  `json:"humidity"`
	VisibilityKM  string  `json:"visibilityKm"`
	WindSpeed     string  `json:"windSpeed"`
	WindDirection string  `json:"windDirection"`
	Sunrise       string  `json:"sunrise"`
	Sunset        string  `json:"sunset"`
	Condition     string  `json:"condition"`
	Icon          string  `json:"icon"`
}

// BuildSnapshot renders a parsed payload into its display view.
func BuildSnapshot(p *CurrentPayload, unit Unit) Snapshot {
	snap := Snapshot{
		LocationName:  p.DisplayName(),
		ObservedAt:    FormatLocal(p.Dt, p.Timezone, "Mon, Jan 02, 15:04"),
		Temperature:   fmt.Sprintf("%d%s", int(math.Round(p.Main.Temp)), unit.Symbol()),
		FeelsLike:     fmt.Sprintf("%d%s", int(math.Round(p.Main.FeelsLike)), unit.Symbol()),
		Pressure:      fmt.Sprintf("%d hPa", p.Main.Pressure),
		Humidity:      fmt.Sprintf("%d%%", p.Main.Humidity),
		VisibilityKM:  fmt.Sprintf("%.1f km", float64(p.Visibility)/1000),
		WindSpeed:     fmt.Sprintf("%.1f %s", p.Wind.Speed, windUnit(unit)),
		WindDirection: WindDegreeToCardinal(p.Wind.Deg),
		Sunrise:       FormatLocal(p.Sys.Sunrise, p.Timezone, "15:04"),
		Sunset:        FormatLocal(p.Sys.Sunset, p.Timezone, "15:04"),
	}
	if p.Coord != nil {
		snap.Lat = p.Coord.Lat
		snap.Lon = p.Coord.Lon
	}
	if len(p.Weather) > 0 {
		snap.Condition = titleCase(p.Weather[0].Description)
		snap.Icon = p.Weather[0].Icon
	}
	return snap
}

// FormatLocal renders an epoch-seconds timestamp shifted by the location's
// UTC offset. The shifted instant is formatted in UTC so the wall clock shows
// the location's local time.
func FormatLocal(epoch int64, offsetSeconds int, layout string) string {
	return time.Unix(epoch+int64(offsetSeconds), 0).UTC().Format(layout)
}

var cardinals = [16]string{
	"N", "NNE", "NE", "ENE", "E", "ESE", "SE", "SSE",
	"S", "SSW", "SW", "WSW", "W", "WNW", "NW", "NNW",
}

// WindDegreeToCardinal maps a wind direction in degrees to a 16-point
// compass label.
func WindDegreeToCardinal(deg float64) string {
	idx := int(math.Round(math.Mod(deg, 360)/22.5)) % 16
	if idx < 0 {
		idx += 16
	}
	return cardinals[idx]
}

func windUnit(u Unit) string {
	if u == UnitImperial {
		return "mph"
	}
	return "m/s"
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
