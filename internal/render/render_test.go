package render

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"neucal/internal/model"
)

func TestToday(t *testing.T) {
	out := Today([]model.Event{
		{Summary: "Robotics Workshop", StartDate: "2024-03-10", StartTime: "13:00", Location: "EXP 610", URL: "https://e/1"},
		{Summary: "Reading Day", StartDate: "2024-03-10", URL: "https://e/2"},
	}, "2024-03-10")

	assert.Equal(t, "Events for today (2024-03-10):\n\n"+
		"1. Robotics Workshop at 13:00\nLocation: EXP 610\n   URL: https://e/1\n\n"+
		"2. Reading Day\n   URL: https://e/2\n\n", out)

	assert.Equal(t, "No events scheduled for today.", Today(nil, "2024-03-10"))
}

func TestUpcomingGroupsByDay(t *testing.T) {
	out := Upcoming([]model.Event{
		{Summary: "A", StartDate: "2024-03-10", StartTime: "09:00"},
		{Summary: "B", StartDate: "2024-03-11", Location: "Quad"},
	}, 7)

	assert.Equal(t, "Upcoming events for the next 7 days:\n\n"+
		"--- Sunday, 2024-03-10 ---\n* A at 09:00\n  URL: \n\n"+
		"--- Monday, 2024-03-11 ---\n* B\n   Location: Quad\n  URL: \n\n", out)

	assert.Equal(t, "No events scheduled for the next 3 days.", Upcoming(nil, 3))
}

func TestSearch(t *testing.T) {
	out := Search([]model.Event{{Summary: "Chess", StartDate: "2024-03-12", StartTime: "18:00"}}, "chess", 30)
	assert.Contains(t, out, "1. Chess (2024-03-12 at 18:00)\n")
	assert.Equal(t, "No events matching 'x' found in the next 30 days.", Search(nil, "x", 30))
}

func TestByCategory(t *testing.T) {
	out := ByCategory([]model.Event{{Summary: "Hockey", StartDate: "2024-03-13"}}, "athletics", 30)
	assert.True(t, strings.HasPrefix(out, "Events in category 'athletics' for the next 30 days:\n\n--- Wednesday, 2024-03-13 ---\n"))
	assert.Equal(t, "No events in category 'x' found in the next 30 days.", ByCategory(nil, "x", 30))
}

func TestDetails(t *testing.T) {
	out := Details([]model.Event{{
		Summary:     "Career Fair",
		StartDate:   "2024-03-12",
		StartTime:   "10:00",
		EndTime:     "15:30",
		Location:    "Curry",
		Categories:  []string{"Career", "Networking"},
		Geo:         &model.Geo{Latitude: 42.34, Longitude: -71.08},
		URL:         "https://e/fair",
		Description: `Bring resumes\nDress code\, business casual`,
	}}, "career")

	assert.Contains(t, out, "--- Event 1: Career Fair ---\n")
	assert.Contains(t, out, "Date: 2024-03-12 at 10:00 to 15:30\n")
	assert.Contains(t, out, "Location: Curry\n")
	assert.Contains(t, out, "Categories: Career, Networking\n")
	assert.Contains(t, out, "Coordinates: 42.34, -71.08\n")
	assert.Contains(t, out, "Description:\nBring resumes\nDress code, business casual\n\n")
	assert.Contains(t, out, strings.Repeat("-", 80))

	undated := Details([]model.Event{{Summary: "TBA"}}, "tba")
	assert.Contains(t, undated, "Date: No date\n")
	assert.NotContains(t, undated, "Location:")

	assert.Equal(t, "No events found matching 'zzz'.", Details(nil, "zzz"))
}

func TestWrapDescription(t *testing.T) {
	long := strings.Repeat("word ", 40)
	for _, line := range strings.Split(wrapDescription(long), "\n") {
		assert.LessOrEqual(t, len(line), DescriptionWidth)
	}
}

func TestCategories(t *testing.T) {
	assert.Equal(t, "Available event categories:\n\n1. Arts\n2. STEM\n", Categories([]string{"Arts", "STEM"}))
	assert.Equal(t, "No categories found in the calendar.", Categories(nil))
}

func TestFailure(t *testing.T) {
	assert.Equal(t, "Error listing categories: offline", Failure("listing categories", errors.New("offline")))
}
