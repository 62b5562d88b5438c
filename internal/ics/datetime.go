package ics

import (
	"errors"
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"neucal/internal/model"
)

// dateTime is the split form of a DTSTART/DTEND value. Time is "" for
// date-only values; both are "" when the property is absent.
type dateTime struct {
	Date string
	Time string
}

var (
	dateLayouts     = []string{"20060102", "2006-01-02"}
	dateTimeLayouts = []string{"20060102T150405", "20060102T1504", "2006-01-02T15:04:05"}
)

// extractDateTime reads prop from ve and splits it into date and time of
// day. Values in UTC or with a known TZID are converted to loc; floating
// values are taken as written.
func extractDateTime(ve *ical.VEvent, prop ical.ComponentProperty, loc *time.Location) (dateTime, error) {
	p := ve.GetProperty(prop)
	if p == nil {
		return dateTime{}, nil
	}

	val := strings.TrimSpace(p.Value)
	if val == "" {
		return dateTime{}, errors.New("empty date value")
	}

	if isDateOnly(p.ICalParameters, val) {
		d, err := parseWithLayouts(dateLayouts, val, time.UTC)
		if err != nil {
			return dateTime{}, err
		}
		return dateTime{Date: d.Format(model.DateLayout)}, nil
	}

	t, err := parseDateTime(val, param(p.ICalParameters, "TZID"), loc)
	if err != nil {
		return dateTime{}, err
	}
	return dateTime{
		Date: t.Format(model.DateLayout),
		Time: t.Format(model.TimeLayout),
	}, nil
}

// isDateOnly reports VALUE=DATE, or a value without a time part.
func isDateOnly(params map[string][]string, val string) bool {
	if strings.EqualFold(param(params, "VALUE"), "DATE") {
		return true
	}
	return !strings.ContainsAny(val, "Tt")
}

func parseDateTime(val, tzid string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}

	// UTC form, e.g. 20240310T140000Z
	if strings.HasSuffix(val, "Z") || strings.HasSuffix(val, "z") {
		t, err := parseWithLayouts(dateTimeLayouts, val[:len(val)-1], time.UTC)
		if err != nil {
			return time.Time{}, err
		}
		return t.In(loc), nil
	}

	if tzid != "" {
		if src, err := time.LoadLocation(strings.Trim(tzid, `"`)); err == nil {
			t, err := parseWithLayouts(dateTimeLayouts, val, src)
			if err != nil {
				return time.Time{}, err
			}
			return t.In(loc), nil
		}
		// Unknown zone names (e.g. Windows ones): keep the wall clock.
	}

	// Floating local time.
	return parseWithLayouts(dateTimeLayouts, val, time.UTC)
}

func parseWithLayouts(layouts []string, val string, loc *time.Location) (time.Time, error) {
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, val, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date value %q", val)
}

// param returns the first value of a property parameter, matching the
// name case-insensitively.
func param(params map[string][]string, name string) string {
	if vs, ok := params[name]; ok && len(vs) > 0 {
		return vs[0]
	}
	for k, vs := range params {
		if strings.EqualFold(k, name) && len(vs) > 0 {
			return vs[0]
		}
	}
	return ""
}
