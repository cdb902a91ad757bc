package weather

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"
)

// ErrForecastListMissing is returned when a forecast payload carries no
// sample list. Callers use it to tell "source guaranteed no data" apart from
// "no payload published yet".
var ErrForecastListMissing = errors.New("forecast list missing")

const (
	// dateLabelLayout is the year-less bucket key for forecast samples.
	dateLabelLayout = "Jan 02"

	maxForecastDays = 5
)

// ForecastSample is one raw 3-hour-interval forecast entry.
type ForecastSample struct {
	Dt   int64 `json:"dt"`
	Main struct {
		TempMin float64 `json:"temp_min"`
		TempMax float64 `json:"temp_max"`
	} `json:"main"`
	Weather []struct {
		Description string `json:"description"`
		Icon        string `json:"icon"`
	} `json:"weather"`
}

// ForecastPayload mirrors the remote forecast response body.
type ForecastPayload struct {
	City struct {
		Name     string `json:"name"`
		Timezone int    `json:"timezone"` // UTC offset, seconds
	} `json:"city"`
	List []ForecastSample `json:"list"`
}

// ParseForecast decodes a raw forecast payload.
func ParseForecast(raw []byte) (*ForecastPayload, error) {
	var p ForecastPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("parse forecast payload: %w", err)
	}
	return &p, nil
}

// DailySummary is the aggregated, display-ready representation of one
// calendar day's forecast samples. Derived on demand, never persisted.
type DailySummary struct {
	Date         string  `json:"date"`
	DayOfWeek    string  `json:"dayOfWeek"`
	TempMin      float64 `json:"tempMin"`
	TempMax      float64 `json:"tempMax"`
	TempMinLabel string  `json:"tempMinLabel"`
	TempMaxLabel string  `json:"tempMaxLabel"`
	Condition    string  `json:"condition"`
	Icon         string  `json:"icon"`
}

// Aggregate buckets a raw forecast payload's 3-hour samples into calendar
// days (local to the payload's UTC offset) and computes a summary per day:
// min across temp_min, max across temp_max, the most frequent condition
// description (ties broken by first appearance), and the icon of the sample
// closest to midday (local hour 11-15), falling back to the day's first
// sample. At most 5 chronologically earliest days are returned.
func Aggregate(raw []byte, unit Unit) ([]DailySummary, error) {
	payload, err := ParseForecast(raw)
	if err != nil {
		return nil, err
	}
	if len(payload.List) == 0 {
		return nil, ErrForecastListMissing
	}

	offset := payload.City.Timezone

	buckets := make(map[string][]ForecastSample)
	var order []string
	for _, sample := range payload.List {
		label := FormatLocal(sample.Dt, offset, dateLabelLayout)
		if _, seen := buckets[label]; !seen {
			order = append(order, label)
		}
		buckets[label] = append(buckets[label], sample)
	}

	// Chronological order by re-parsing the year-less label. A label that
	// fails to parse sorts as the zero time rather than being dropped.
	sort.SliceStable(order, func(i, j int) bool {
		return parseDateLabel(order[i]).Before(parseDateLabel(order[j]))
	})
	if len(order) > maxForecastDays {
		order = order[:maxForecastDays]
	}

	summaries := make([]DailySummary, 0, len(order))
	for _, label := range order {
		samples := buckets[label]
		summaries = append(summaries, summarizeDay(label, samples, offset, unit))
	}
	return summaries, nil
}

func summarizeDay(label string, samples []ForecastSample, offset int, unit Unit) DailySummary {
	minTemp := math.Inf(1)
	maxTemp := math.Inf(-1)

	counts := make(map[string]int)
	var conditionOrder []string
	for _, s := range samples {
		if s.Main.TempMin < minTemp {
			minTemp = s.Main.TempMin
		}
		if s.Main.TempMax > maxTemp {
			maxTemp = s.Main.TempMax
		}
		cond := "N/A"
		if len(s.Weather) > 0 {
			cond = s.Weather[0].Description
		}
		if counts[cond] == 0 {
			conditionOrder = append(conditionOrder, cond)
		}
		counts[cond]++
	}

	// Majority condition; first-seen wins a tie.
	condition := "N/A"
	best := 0
	for _, cond := range conditionOrder {
		if counts[cond] > best {
			best = counts[cond]
			condition = cond
		}
	}

	icon := middayIcon(samples, offset)

	first := samples[0]
	return DailySummary{
		Date:         label,
		DayOfWeek:    FormatLocal(first.Dt, offset, "Mon"),
		TempMin:      minTemp,
		TempMax:      maxTemp,
		TempMinLabel: fmt.Sprintf("%d%s", int(math.Round(minTemp)), unit.Symbol()),
		TempMaxLabel: fmt.Sprintf("%d%s", int(math.Round(maxTemp)), unit.Symbol()),
		Condition:    titleCase(condition),
		Icon:         icon,
	}
}

// middayIcon picks the icon of the sample whose local hour falls in the
// 11:00-15:00 window, approximating midday weather. When no sample lands in
// the window the day's first sample decides.
func middayIcon(samples []ForecastSample, offset int) string {
	pick := samples[0]
	for _, s := range samples {
		hour := time.Unix(s.Dt+int64(offset), 0).UTC().Hour()
		if hour >= 11 && hour <= 15 {
			pick = s
			break
		}
	}
	if len(pick.Weather) > 0 {
		return pick.Weather[0].Icon
	}
	return ""
}

func parseDateLabel(label string) time.Time {
	t, err := time.Parse(dateLabelLayout, label)
	if err != nil {
		return time.Time{}
	}
	return t
}
