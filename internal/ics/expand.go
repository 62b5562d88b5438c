package ics

import (
	"errors"
	"time"

	"github.com/teambition/rrule-go"

	appLog "neucal/internal/log"
	"neucal/internal/model"
)

const (
	defaultMaxOccurrencesPerEvent = 500
)

// ExpandConfig controls how recurrence expansion is performed.
type ExpandConfig struct {
	// From / To are the inclusive YYYY-MM-DD window for occurrences.
	From string
	To   string

	// MaxOccurrencesPerEvent is a safety cap to avoid extremely large
	// expansions. If zero, defaultMaxOccurrencesPerEvent is used.
	MaxOccurrencesPerEvent int
}

// ExpandRecurrences returns events plus one extra event per RRULE
// occurrence of each recurring event that starts inside the window. The
// original record is kept as is; occurrences copy it with shifted dates.
// The result is sorted by start date.
func ExpandRecurrences(events []model.Event, cfg ExpandConfig) ([]model.Event, error) {
	from, err := time.Parse(model.DateLayout, cfg.From)
	if err != nil {
		return nil, err
	}
	to, err := time.Parse(model.DateLayout, cfg.To)
	if err != nil {
		return nil, err
	}
	if to.Before(from) {
		return nil, errors.New("expand: To is before From")
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	out := make([]model.Event, 0, len(events))
	for _, ev := range events {
		out = append(out, ev)
		if ev.RRule == "" || ev.StartDate == "" {
			continue
		}
		out = append(out, expandEvent(ev, from, to, cfg.MaxOccurrencesPerEvent)...)
	}

	SortByStartDate(out)
	return out, nil
}

// expandEvent lists the occurrences of ev within [from, to], skipping the
// one that coincides with ev itself.
func expandEvent(ev model.Event, from, to time.Time, limit int) []model.Event {
	start, err := eventStart(ev)
	if err != nil {
		appLog.Debug("expand: bad start", "summary", ev.Summary, "err", err)
		return nil
	}

	r, err := rrule.StrToRRule(ev.RRule)
	if err != nil {
		appLog.Error("expand: failed to parse RRULE", err, "summary", ev.Summary, "rrule", ev.RRule)
		return nil
	}
	r.DTStart(start)

	// Occurrences are compared on wall-clock dates; the window end is the
	// last instant of the To day.
	occTimes := r.Between(from, to.Add(24*time.Hour-time.Nanosecond), true)
	if len(occTimes) > limit {
		appLog.Warn("expand: truncated occurrences", "summary", ev.Summary, "cap", limit)
		occTimes = occTimes[:limit]
	}

	// Multi-day events keep their length in days.
	var span int
	if ev.EndDate != "" {
		startDay, _ := time.Parse(model.DateLayout, ev.StartDate)
		if end, err := time.Parse(model.DateLayout, ev.EndDate); err == nil && !end.Before(startDay) {
			span = int(end.Sub(startDay).Hours() / 24)
		}
	}

	out := make([]model.Event, 0, len(occTimes))
	for _, occ := range occTimes {
		date := occ.Format(model.DateLayout)
		if date == ev.StartDate {
			continue
		}
		copyEv := ev
		copyEv.Categories = append([]string(nil), ev.Categories...)
		copyEv.StartDate = date
		if ev.EndDate != "" {
			copyEv.EndDate = occ.AddDate(0, 0, span).Format(model.DateLayout)
		}
		out = append(out, copyEv)
	}
	return out
}

// eventStart rebuilds the wall-clock start of ev in UTC.
func eventStart(ev model.Event) (time.Time, error) {
	if ev.StartTime == "" {
		return time.Parse(model.DateLayout, ev.StartDate)
	}
	return time.Parse(model.DateLayout+" "+model.TimeLayout, ev.StartDate+" "+ev.StartTime)
}
