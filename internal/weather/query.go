package weather

import (
	"errors"
	"net/url"
	"regexp"
	"strings"
)

// ErrInvalidQuery is returned when a location query matches none of the
// accepted input shapes. The check happens before any network call.
var ErrInvalidQuery = errors.New("invalid location query")

// QueryKind identifies how a free-form location query will be looked up.
type QueryKind int

const (
	QueryCity QueryKind = iota
	QueryCityCountry
	QueryZip
	QueryCoords
)

// Query is a classified location query ready to be turned into request
// parameters.
type Query struct {
	Kind QueryKind
	Raw  string

	// Populated depending on Kind.
	Name    string // city or "city,CC"
	Zip     string
	Country string
	Lat     string
	Lon     string
}

var (
	cityRe   = regexp.MustCompile(`^[a-zA-Z\s,-]+$`)
	digitsRe = regexp.MustCompile(`^\d+$`)
	alphaRe  = regexp.MustCompile(`^[a-zA-Z]+$`)
	numberRe = regexp.MustCompile(`^-?\d+(\.\d+)?$`)
)

// ClassifyQuery maps a user-typed location string to a lookup kind:
// bare alphabetic input is a city-name lookup (commas allowed, so
// "London,uk" resolves here too), "digits,CC" a postal-code lookup and
// "number,number" a coordinate lookup. Anything else is rejected.
func ClassifyQuery(input string) (Query, error) {
	q := Query{Raw: input}
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return q, ErrInvalidQuery
	}

	if cityRe.MatchString(trimmed) {
		q.Kind = QueryCity
		q.Name = trimmed
		return q, nil
	}

	parts := strings.Split(trimmed, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	if len(parts) == 2 {
		switch {
		case digitsRe.MatchString(parts[0]) && alphaRe.MatchString(parts[1]) && len(parts[1]) == 2:
			q.Kind = QueryZip
			q.Zip = parts[0]
			q.Country = parts[1]
			return q, nil
		case numberRe.MatchString(parts[0]) && numberRe.MatchString(parts[1]):
			q.Kind = QueryCoords
			q.Lat = parts[0]
			q.Lon = parts[1]
			return q, nil
		}
	}

	return q, ErrInvalidQuery
}

// Values returns the lookup parameters for this query, without the API key
// or unit modifier.
func (q Query) Values() url.Values {
	v := url.Values{}
	switch q.Kind {
	case QueryZip:
		v.Set("zip", q.Zip+","+q.Country)
	case QueryCoords:
		v.Set("lat", q.Lat)
		v.Set("lon", q.Lon)
	default:
		v.Set("q", q.Name)
	}
	return v
}
