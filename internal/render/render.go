// Package render turns event query results into the plain text replies
// returned to tool callers.
package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/go-wordwrap"

	"neucal/internal/calendar"
	"neucal/internal/model"
)

// DescriptionWidth is the column at which event descriptions are wrapped.
const DescriptionWidth = 80

// Today lists the events of one day.
func Today(events []model.Event, today string) string {
	if len(events) == 0 {
		return "No events scheduled for today."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Events for today (%s):\n\n", today)
	for i, ev := range events {
		fmt.Fprintf(&b, "%d. %s%s%s\n", i+1, ev.Summary, atTime(ev), locationLine("\n", ev))
		fmt.Fprintf(&b, "   URL: %s\n\n", ev.URL)
	}
	return b.String()
}

// Upcoming lists events grouped by day.
func Upcoming(events []model.Event, days int) string {
	if len(events) == 0 {
		return fmt.Sprintf("No events scheduled for the next %d days.", days)
	}
	header := fmt.Sprintf("Upcoming events for the next %d days:\n\n", days)
	return header + byDay(events)
}

// Search lists events matching a free-text query.
func Search(events []model.Event, query string, days int) string {
	if len(events) == 0 {
		return fmt.Sprintf("No events matching '%s' found in the next %d days.", query, days)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Events matching '%s' in the next %d days:\n\n", query, days)
	for i, ev := range events {
		fmt.Fprintf(&b, "%d. %s (%s%s)%s\n", i+1, ev.Summary, dateOrNone(ev), atTime(ev), locationLine("\n", ev))
		fmt.Fprintf(&b, "   URL: %s\n\n", ev.URL)
	}
	return b.String()
}

// ByCategory lists events of one category grouped by day.
func ByCategory(events []model.Event, category string, days int) string {
	if len(events) == 0 {
		return fmt.Sprintf("No events in category '%s' found in the next %d days.", category, days)
	}
	header := fmt.Sprintf("Events in category '%s' for the next %d days:\n\n", category, days)
	return header + byDay(events)
}

// Details prints every field of each matching event.
func Details(events []model.Event, name string) string {
	if len(events) == 0 {
		return fmt.Sprintf("No events found matching '%s'.", name)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Details for events matching '%s':\n\n", name)
	for i, ev := range events {
		fmt.Fprintf(&b, "--- Event %d: %s ---\n", i+1, ev.Summary)
		fmt.Fprintf(&b, "Date: %s%s", dateOrNone(ev), atTime(ev))
		if ev.EndTime != "" {
			fmt.Fprintf(&b, " to %s", ev.EndTime)
		}
		b.WriteString("\n")
		if ev.Location != "" {
			fmt.Fprintf(&b, "Location: %s\n", ev.Location)
		}
		if len(ev.Categories) > 0 {
			fmt.Fprintf(&b, "Categories: %s\n", strings.Join(ev.Categories, ", "))
		}
		if ev.Geo != nil {
			fmt.Fprintf(&b, "Coordinates: %v, %v\n", ev.Geo.Latitude, ev.Geo.Longitude)
		}
		fmt.Fprintf(&b, "URL: %s\n\n", ev.URL)
		fmt.Fprintf(&b, "Description:\n%s\n\n", wrapDescription(ev.Description))
		fmt.Fprintf(&b, "%s\n\n", strings.Repeat("-", DescriptionWidth))
	}
	return b.String()
}

// Categories prints a numbered list of category names.
func Categories(categories []string) string {
	if len(categories) == 0 {
		return "No categories found in the calendar."
	}

	var b strings.Builder
	b.WriteString("Available event categories:\n\n")
	for i, c := range categories {
		fmt.Fprintf(&b, "%d. %s\n", i+1, c)
	}
	return b.String()
}

// Failure renders an error as a reply instead of failing the call.
func Failure(action string, err error) string {
	return fmt.Sprintf("Error %s: %v", action, err)
}

func byDay(events []model.Event) string {
	var b strings.Builder
	for _, g := range calendar.GroupByDate(events) {
		fmt.Fprintf(&b, "--- %s, %s ---\n", weekday(g.Date), g.Date)
		for _, ev := range g.Events {
			fmt.Fprintf(&b, "* %s%s%s\n", ev.Summary, atTime(ev), locationLine("\n   ", ev))
			fmt.Fprintf(&b, "  URL: %s\n\n", ev.URL)
		}
	}
	return b.String()
}

func weekday(date string) string {
	t, err := time.Parse(model.DateLayout, date)
	if err != nil {
		return "Unknown day"
	}
	return t.Weekday().String()
}

func atTime(ev model.Event) string {
	if ev.StartTime == "" {
		return ""
	}
	return " at " + ev.StartTime
}

func locationLine(prefix string, ev model.Event) string {
	if ev.Location == "" {
		return ""
	}
	return prefix + "Location: " + ev.Location
}

func dateOrNone(ev model.Event) string {
	if ev.StartDate == "" {
		return "No date"
	}
	return ev.StartDate
}

// wrapDescription undoes leftover literal escapes some feeds double-encode
// and wraps each paragraph.
func wrapDescription(s string) string {
	s = strings.NewReplacer(`\n`, "\n", `\,`, ",").Replace(s)
	paragraphs := strings.Split(s, "\n")
	for i, p := range paragraphs {
		paragraphs[i] = wordwrap.WrapString(strings.TrimSpace(p), DescriptionWidth)
	}
	return strings.Join(paragraphs, "\n")
}
