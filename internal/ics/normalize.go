package ics

import (
	"fmt"
	"sort"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "neucal/internal/log"
	"neucal/internal/metrics"
	"neucal/internal/model"
)

// UnknownSummary is used when not even SUMMARY can be read from a record.
const UnknownSummary = "Unknown Event"

// maxDate stands in for a missing start date when sorting.
const maxDate = "9999-12-31"

// Field names used in logs and the records_recovered metric.
const (
	fieldStart       = "start"
	fieldEnd         = "end"
	fieldLocation    = "location"
	fieldDescription = "description"
	fieldURL         = "url"
	fieldGeo         = "geo"
	fieldCategories  = "categories"
	fieldRRule       = "rrule"
	fieldRecord      = "record"
)

// Options controls normalization.
type Options struct {
	// Location is the display timezone for UTC and TZID date-times.
	// If nil, time.Local is used.
	Location *time.Location

	// Metrics, if set, counts fields that fell back to defaults.
	Metrics *metrics.Metrics
}

// NormalizeAll converts every VEVENT of cal into a model.Event, sorted by
// start date with undated events last. It never fails: a record that
// cannot be read still yields an event with default fields.
func NormalizeAll(cal *ical.Calendar, opts Options) []model.Event {
	if cal == nil {
		return []model.Event{}
	}

	vevents := cal.Events()
	events := make([]model.Event, 0, len(vevents))
	for _, ve := range vevents {
		events = append(events, Normalize(ve, opts))
	}

	SortByStartDate(events)
	return events
}

// SortByStartDate orders events by start date, keeping source order for
// equal dates and putting undated events last.
func SortByStartDate(events []model.Event) {
	sort.SliceStable(events, func(i, j int) bool {
		return sortKey(events[i]) < sortKey(events[j])
	})
}

func sortKey(ev model.Event) string {
	if ev.StartDate == "" {
		return maxDate
	}
	return ev.StartDate
}

// Normalize converts a single VEVENT. Each field is read independently; a
// field that fails to parse takes its default without affecting the rest.
// An unexpected failure outside the field readers yields a summary-only
// event.
func Normalize(ve *ical.VEvent, opts Options) (ev model.Event) {
	defer func() {
		if r := recover(); r != nil {
			ev = placeholder(ve)
			appLog.Error("event normalization failed", fmt.Errorf("panic: %v", r), "summary", ev.Summary)
			countRecovered(opts.Metrics, fieldRecord)
		}
	}()

	n := &normalizer{ve: ve, opts: opts}
	return n.event()
}

type normalizer struct {
	ve   *ical.VEvent
	opts Options
	ev   model.Event
}

func (n *normalizer) event() model.Event {
	n.ev = model.Event{
		Summary:    propertyText(n.ve, ical.ComponentPropertySummary),
		Categories: []string{},
	}

	n.field(fieldStart, func() error {
		dt, err := extractDateTime(n.ve, ical.ComponentPropertyDtStart, n.opts.Location)
		n.ev.StartDate, n.ev.StartTime = dt.Date, dt.Time
		return err
	})
	n.field(fieldEnd, func() error {
		dt, err := extractDateTime(n.ve, ical.ComponentPropertyDtEnd, n.opts.Location)
		n.ev.EndDate, n.ev.EndTime = dt.Date, dt.Time
		return err
	})
	n.field(fieldLocation, func() error {
		n.ev.Location = propertyText(n.ve, ical.ComponentPropertyLocation)
		return nil
	})
	n.field(fieldDescription, func() error {
		n.ev.Description = propertyText(n.ve, ical.ComponentPropertyDescription)
		return nil
	})
	n.field(fieldURL, func() error {
		n.ev.URL = strings.TrimSpace(propertyText(n.ve, ical.ComponentPropertyUrl))
		return nil
	})
	n.field(fieldGeo, func() error {
		n.ev.Geo = extractGeo(n.ve)
		return nil
	})
	n.field(fieldCategories, func() error {
		n.ev.Categories = resolveCategories(categorySource(n.ve))
		return nil
	})
	n.field(fieldRRule, func() error {
		if p := n.ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
			n.ev.RRule = strings.TrimSpace(p.Value)
		}
		return nil
	})

	return n.ev
}

// field runs one field reader. On error or panic the field is reset to its
// default.
func (n *normalizer) field(name string, read func() error) {
	defer func() {
		if r := recover(); r != nil {
			n.reset(name)
			n.recovered(name, fmt.Errorf("panic: %v", r))
		}
	}()
	if err := read(); err != nil {
		n.reset(name)
		n.recovered(name, err)
	}
}

func (n *normalizer) reset(name string) {
	switch name {
	case fieldStart:
		n.ev.StartDate, n.ev.StartTime = "", ""
	case fieldEnd:
		n.ev.EndDate, n.ev.EndTime = "", ""
	case fieldLocation:
		n.ev.Location = ""
	case fieldDescription:
		n.ev.Description = ""
	case fieldURL:
		n.ev.URL = ""
	case fieldGeo:
		n.ev.Geo = nil
	case fieldCategories:
		n.ev.Categories = []string{}
	case fieldRRule:
		n.ev.RRule = ""
	}
}

func (n *normalizer) recovered(name string, err error) {
	appLog.Debug("event field defaulted", "field", name, "summary", n.ev.Summary, "err", err)
	countRecovered(n.opts.Metrics, name)
}

func countRecovered(m *metrics.Metrics, field string) {
	if m != nil {
		m.RecordsRecovered.WithLabelValues(field).Inc()
	}
}

// placeholder builds the summary-only event used when a record cannot be
// normalized at all.
func placeholder(ve *ical.VEvent) (ev model.Event) {
	ev = model.Event{Summary: UnknownSummary, Categories: []string{}}
	defer func() {
		_ = recover()
	}()
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		ev.Summary = decodeText([]byte(p.Value))
	}
	return ev
}
