package model

import "encoding/json"

// DateLayout and TimeLayout are the fixed-width output forms for event
// dates and times. Fixed width keeps string comparison equal to
// chronological comparison.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// Geo is a latitude/longitude pair in decimal degrees.
type Geo struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Event is one calendar entry after normalization. Every field is always
// set: missing values are "" (dates, times, strings), nil (Geo) or an
// empty slice (Categories).
type Event struct {
	Summary string

	// StartDate / EndDate are YYYY-MM-DD, or "" when unknown.
	StartDate string
	EndDate   string

	// StartTime / EndTime are HH:MM (24h), or "" for all-day values.
	StartTime string
	EndTime   string

	Location    string
	Description string
	URL         string

	Geo        *Geo
	Categories []string

	// RRule is the raw RRULE value of a recurring record, if any.
	RRule string
}

// HasStartDate reports whether the event carries a start date.
func (e Event) HasStartDate() bool {
	return e.StartDate != ""
}

type eventJSON struct {
	Summary     string   `json:"summary"`
	StartDate   *string  `json:"start_date"`
	StartTime   *string  `json:"start_time"`
	EndDate     *string  `json:"end_date"`
	EndTime     *string  `json:"end_time"`
	Location    string   `json:"location"`
	Description string   `json:"description"`
	URL         string   `json:"url"`
	Geo         *Geo     `json:"geo"`
	Categories  []string `json:"categories"`
	RRule       string   `json:"rrule"`
}

// MarshalJSON writes absent dates and times as null and categories as a
// list even when empty.
func (e Event) MarshalJSON() ([]byte, error) {
	cats := e.Categories
	if cats == nil {
		cats = []string{}
	}
	return json.Marshal(eventJSON{
		Summary:     e.Summary,
		StartDate:   optional(e.StartDate),
		StartTime:   optional(e.StartTime),
		EndDate:     optional(e.EndDate),
		EndTime:     optional(e.EndTime),
		Location:    e.Location,
		Description: e.Description,
		URL:         e.URL,
		Geo:         e.Geo,
		Categories:  cats,
		RRule:       e.RRule,
	})
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
