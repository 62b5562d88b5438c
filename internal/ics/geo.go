package ics

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	ical "github.com/arran4/golang-ical"

	"neucal/internal/model"
)

// propertyAppleLocation carries a "geo:lat,lon" URI in feeds exported from
// Apple Calendar.
const propertyAppleLocation ical.ComponentProperty = "X-APPLE-STRUCTURED-LOCATION"

// geoValue is one of the coordinate shapes seen in real feeds.
type geoValue interface {
	isGeoValue()
}

// geoPoint is an already structured latitude/longitude pair.
type geoPoint struct {
	Latitude  float64
	Longitude float64
}

// geoTuple is an ordered pair of unparsed components.
type geoTuple []string

// geoText is a raw coordinate string, usually "lat;lon".
type geoText string

func (geoPoint) isGeoValue() {}
func (geoTuple) isGeoValue() {}
func (geoText) isGeoValue()  {}

type geoStrategy func(geoValue) (model.Geo, bool)

// geoStrategies are tried in order; the first to produce two finite
// numbers wins.
var geoStrategies = []geoStrategy{
	geoFromPoint,
	geoFromTuple,
	geoFromSemicolon,
	geoFromNumbers,
}

var numberPattern = regexp.MustCompile(`[-+]?(?:\d*\.\d+|\d+)`)

func resolveGeo(v geoValue) (*model.Geo, bool) {
	if v == nil {
		return nil, false
	}
	for _, strategy := range geoStrategies {
		if g, ok := strategy(v); ok {
			return &g, true
		}
	}
	return nil, false
}

func geoFromPoint(v geoValue) (model.Geo, bool) {
	p, ok := v.(geoPoint)
	if !ok {
		return model.Geo{}, false
	}
	return makeGeo(p.Latitude, p.Longitude)
}

func geoFromTuple(v geoValue) (model.Geo, bool) {
	t, ok := v.(geoTuple)
	if !ok || len(t) < 2 {
		return model.Geo{}, false
	}
	return parsePair(t[0], t[1])
}

func geoFromSemicolon(v geoValue) (model.Geo, bool) {
	s, ok := v.(geoText)
	if !ok || !strings.Contains(string(s), ";") {
		return model.Geo{}, false
	}
	parts := strings.Split(string(s), ";")
	return parsePair(parts[0], parts[1])
}

func geoFromNumbers(v geoValue) (model.Geo, bool) {
	s, ok := v.(geoText)
	if !ok {
		return model.Geo{}, false
	}
	nums := numberPattern.FindAllString(string(s), 2)
	if len(nums) < 2 {
		return model.Geo{}, false
	}
	return parsePair(nums[0], nums[1])
}

func parsePair(lat, lon string) (model.Geo, bool) {
	la, err := strconv.ParseFloat(strings.TrimSpace(lat), 64)
	if err != nil {
		return model.Geo{}, false
	}
	lo, err := strconv.ParseFloat(strings.TrimSpace(lon), 64)
	if err != nil {
		return model.Geo{}, false
	}
	return makeGeo(la, lo)
}

func makeGeo(lat, lon float64) (model.Geo, bool) {
	if !finite(lat) || !finite(lon) {
		return model.Geo{}, false
	}
	return model.Geo{Latitude: lat, Longitude: lon}, true
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// geoCandidates lists the coordinate values carried by ve, most
// authoritative first.
func geoCandidates(ve *ical.VEvent) []geoValue {
	var out []geoValue

	if p := ve.GetProperty(ical.ComponentPropertyGeo); p != nil && strings.TrimSpace(p.Value) != "" {
		val := strings.TrimSpace(p.Value)
		switch {
		case strings.Contains(val, ";"):
			out = append(out, geoText(val))
		case strings.Count(val, ",") == 1:
			out = append(out, geoTuple(strings.Split(val, ",")), geoText(val))
		default:
			out = append(out, geoText(val))
		}
	}

	if p := ve.GetProperty(propertyAppleLocation); p != nil {
		if v := appleGeo(p.Value); v != nil {
			out = append(out, v)
		}
	}

	return out
}

// appleGeo decodes a "geo:lat,lon[;params]" URI.
func appleGeo(val string) geoValue {
	val = strings.TrimSpace(val)
	if len(val) < 4 || !strings.EqualFold(val[:4], "geo:") {
		return nil
	}
	body := val[4:]
	if i := strings.IndexByte(body, ';'); i >= 0 {
		body = body[:i]
	}
	parts := strings.Split(body, ",")
	if len(parts) >= 2 {
		if g, ok := parsePair(parts[0], parts[1]); ok {
			return geoPoint{Latitude: g.Latitude, Longitude: g.Longitude}
		}
	}
	return geoText(body)
}

// extractGeo resolves the first usable coordinate pair of ve.
func extractGeo(ve *ical.VEvent) *model.Geo {
	for _, v := range geoCandidates(ve) {
		if g, ok := resolveGeo(v); ok {
			return g
		}
	}
	return nil
}
