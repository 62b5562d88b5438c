package ics

import (
	"strings"
	"testing"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neucal/internal/metrics"
	"neucal/internal/model"
)

func parseCalendar(t *testing.T, events ...string) *ical.Calendar {
	t.Helper()
	var b strings.Builder
	b.WriteString("BEGIN:VCALENDAR\nVERSION:2.0\nPRODID:-//neucal//test//EN\n")
	for _, ev := range events {
		b.WriteString("BEGIN:VEVENT\n")
		b.WriteString(strings.TrimSpace(ev))
		b.WriteString("\nEND:VEVENT\n")
	}
	b.WriteString("END:VCALENDAR\n")

	cal, err := ical.ParseCalendar(strings.NewReader(strings.ReplaceAll(b.String(), "\n", "\r\n")))
	require.NoError(t, err)
	return cal
}

func newYork(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	return loc
}

func TestNormalize_FullRecord(t *testing.T) {
	cal := parseCalendar(t, `
UID:fair@test
SUMMARY:Spring Career Fair
DTSTART;TZID=America/New_York:20240312T100000
DTEND;TZID=America/New_York:20240312T153000
LOCATION:Curry Student Center
DESCRIPTION:Meet employers
URL:https://calendar.example.edu/event/fair
GEO:42.3393;-71.0875
CATEGORIES:Career, Networking
RRULE:FREQ=WEEKLY;COUNT=2`)

	events := NormalizeAll(cal, Options{Location: newYork(t)})
	require.Len(t, events, 1)

	assert.Equal(t, model.Event{
		Summary:     "Spring Career Fair",
		StartDate:   "2024-03-12",
		StartTime:   "10:00",
		EndDate:     "2024-03-12",
		EndTime:     "15:30",
		Location:    "Curry Student Center",
		Description: "Meet employers",
		URL:         "https://calendar.example.edu/event/fair",
		Geo:         &model.Geo{Latitude: 42.3393, Longitude: -71.0875},
		Categories:  []string{"Career", "Networking"},
		RRule:       "FREQ=WEEKLY;COUNT=2",
	}, events[0])
}

func TestNormalize_MissingFieldsTakeDefaults(t *testing.T) {
	cal := parseCalendar(t, `
UID:bare@test
SUMMARY:Bare`)

	ev := NormalizeAll(cal, Options{})[0]
	assert.Equal(t, "Bare", ev.Summary)
	assert.Empty(t, ev.StartDate)
	assert.Empty(t, ev.StartTime)
	assert.Empty(t, ev.EndDate)
	assert.Empty(t, ev.EndTime)
	assert.Empty(t, ev.Location)
	assert.Empty(t, ev.Description)
	assert.Empty(t, ev.URL)
	assert.Nil(t, ev.Geo)
	assert.NotNil(t, ev.Categories)
	assert.Empty(t, ev.Categories)
}

func TestNormalize_DateOnlyHasNoTime(t *testing.T) {
	cal := parseCalendar(t, `
UID:allday@test
SUMMARY:Reading Day
DTSTART;VALUE=DATE:20240315
DTEND;VALUE=DATE:20240316`)

	ev := NormalizeAll(cal, Options{})[0]
	assert.Equal(t, "2024-03-15", ev.StartDate)
	assert.Empty(t, ev.StartTime)
	assert.Equal(t, "2024-03-16", ev.EndDate)
	assert.Empty(t, ev.EndTime)
}

func TestNormalize_UTCConvertedToDisplayZone(t *testing.T) {
	cal := parseCalendar(t, `
UID:late@test
SUMMARY:Late Lecture
DTSTART:20240116T030000Z`)

	ev := NormalizeAll(cal, Options{Location: newYork(t)})[0]
	assert.Equal(t, "2024-01-15", ev.StartDate)
	assert.Equal(t, "22:00", ev.StartTime)
}

func TestNormalize_FloatingTimeKept(t *testing.T) {
	cal := parseCalendar(t, `
UID:float@test
SUMMARY:Floating
DTSTART:20240310T181500`)

	ev := NormalizeAll(cal, Options{Location: newYork(t)})[0]
	assert.Equal(t, "2024-03-10", ev.StartDate)
	assert.Equal(t, "18:15", ev.StartTime)
}

func TestNormalize_MalformedRecordIsolated(t *testing.T) {
	m := metrics.New()
	cal := parseCalendar(t,
		`
UID:broken@test
SUMMARY:Broken Date
DTSTART:next tuesday-ish
LOCATION:Snell Library`,
		`
UID:good@test
SUMMARY:Good Event
DTSTART:20240310T140000`)

	events := NormalizeAll(cal, Options{Metrics: m})
	require.Len(t, events, 2)

	// Undated events sort last.
	assert.Equal(t, "Good Event", events[0].Summary)
	assert.Equal(t, "2024-03-10", events[0].StartDate)

	broken := events[1]
	assert.Equal(t, "Broken Date", broken.Summary)
	assert.Empty(t, broken.StartDate)
	assert.Empty(t, broken.StartTime)
	assert.Equal(t, "Snell Library", broken.Location, "sibling fields survive")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RecordsRecovered.WithLabelValues(fieldStart)))
}

func TestNormalizeAll_SortedStable(t *testing.T) {
	cal := parseCalendar(t,
		"UID:1\nSUMMARY:C\nDTSTART:20240312",
		"UID:2\nSUMMARY:undated-1",
		"UID:3\nSUMMARY:A1\nDTSTART:20240310T090000",
		"UID:4\nSUMMARY:B\nDTSTART:20240311",
		"UID:5\nSUMMARY:A2\nDTSTART:20240310",
		"UID:6\nSUMMARY:undated-2",
	)

	events := NormalizeAll(cal, Options{})
	var summaries []string
	for _, ev := range events {
		summaries = append(summaries, ev.Summary)
	}
	assert.Equal(t, []string{"A1", "A2", "B", "C", "undated-1", "undated-2"}, summaries)

	for i := 1; i < len(events); i++ {
		if events[i].StartDate == "" {
			continue
		}
		assert.LessOrEqual(t, events[i-1].StartDate, events[i].StartDate)
	}
	for _, ev := range events {
		assert.NotEqual(t, maxDate, ev.StartDate)
	}
}

func TestNormalize_CategoriesCommaString(t *testing.T) {
	cal := parseCalendar(t, "UID:c@test\nSUMMARY:Cats\nCATEGORIES:Workshop, Lecture ,Sports")

	ev := NormalizeAll(cal, Options{})[0]
	assert.Equal(t, []string{"Workshop", "Lecture", "Sports"}, ev.Categories)
}

func TestNormalize_CategoriesMultipleLines(t *testing.T) {
	cal := parseCalendar(t, "UID:c@test\nSUMMARY:Cats\nCATEGORIES:Arts,Music\nCATEGORIES:Music\nCATEGORIES: ,Film")

	ev := NormalizeAll(cal, Options{})[0]
	assert.Equal(t, []string{"Arts", "Music", "Music", "Film"}, ev.Categories)
}

func TestNormalize_GeoSemicolon(t *testing.T) {
	cal := parseCalendar(t, "UID:g@test\nSUMMARY:Geo\nGEO:42.34;-71.08")

	ev := NormalizeAll(cal, Options{})[0]
	require.NotNil(t, ev.Geo)
	assert.Equal(t, model.Geo{Latitude: 42.34, Longitude: -71.08}, *ev.Geo)
}

func TestNormalize_GeoUnparseable(t *testing.T) {
	cal := parseCalendar(t, "UID:g@test\nSUMMARY:Geo\nGEO:somewhere on campus")

	ev := NormalizeAll(cal, Options{})[0]
	assert.Nil(t, ev.Geo)
}

func TestNormalize_TextUnescaped(t *testing.T) {
	cal := parseCalendar(t, `UID:t@test
SUMMARY:Talk\; Q&A
DESCRIPTION:Line one\nLine two`)

	ev := NormalizeAll(cal, Options{})[0]
	assert.Equal(t, "Talk; Q&A", ev.Summary)
	assert.Equal(t, "Line one\nLine two", ev.Description)
}

func TestNormalize_LiteralBackslashKept(t *testing.T) {
	cal := parseCalendar(t, `UID:b@test
SUMMARY:Backup C:\\new folder
LOCATION:Room \\n12`)

	ev := NormalizeAll(cal, Options{})[0]
	assert.Equal(t, `Backup C:\new folder`, ev.Summary)
	assert.Equal(t, `Room \n12`, ev.Location)
}

func TestNormalize_CategoriesEscapedCommaSplits(t *testing.T) {
	cal := parseCalendar(t, `UID:c@test
SUMMARY:Cats
CATEGORIES:Arts\, Culture,Sports`)

	ev := NormalizeAll(cal, Options{})[0]
	assert.Equal(t, []string{"Arts", "Culture", "Sports"}, ev.Categories)
}

func TestNormalize_NilRecordUsesPlaceholder(t *testing.T) {
	m := metrics.New()
	ev := Normalize(nil, Options{Metrics: m})

	assert.Equal(t, UnknownSummary, ev.Summary)
	assert.Empty(t, ev.StartDate)
	assert.Nil(t, ev.Geo)
	assert.Equal(t, []string{}, ev.Categories)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RecordsRecovered.WithLabelValues(fieldRecord)))
}

func TestNormalizeAll_NilCalendar(t *testing.T) {
	assert.Equal(t, []model.Event{}, NormalizeAll(nil, Options{}))
}

func TestNormalizer_FieldPanicIsLocal(t *testing.T) {
	n := &normalizer{ev: model.Event{Summary: "x", Location: "kept", Categories: []string{"a"}}}
	n.field(fieldCategories, func() error {
		panic("boom")
	})

	assert.Equal(t, []string{}, n.ev.Categories)
	assert.Equal(t, "kept", n.ev.Location)
}
