// Package calendar answers event queries over the normalized feed. It
// keeps no state of its own: every call reads the current document from
// the feed cache and normalizes it again.
package calendar

import (
	"context"
	"sort"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/samber/lo"
	"golang.org/x/text/cases"

	"neucal/internal/ics"
	appLog "neucal/internal/log"
	"neucal/internal/model"
)

// Default look-ahead windows, in days.
const (
	DefaultUpcomingDays = 7
	DefaultSearchDays   = 30
	DefaultCategoryDays = 30
)

// DocumentSource provides the current raw calendar document.
type DocumentSource interface {
	Document(ctx context.Context) (*ical.Calendar, error)
}

// Service runs the event queries.
type Service struct {
	source   DocumentSource
	location *time.Location
	opts     ics.Options
	now      func() time.Time
	expand   bool
}

// Option configures a Service.
type Option func(*Service)

// WithLocation sets the timezone that defines "today" and into which
// event times are converted.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.location = loc
		}
	}
}

// WithNormalizeOptions sets the options passed to the normalizer. Its
// Location is overridden by WithLocation.
func WithNormalizeOptions(o ics.Options) Option {
	return func(s *Service) {
		s.opts = o
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithRecurrenceExpansion adds one event per RRULE occurrence inside the
// query window for recurring records.
func WithRecurrenceExpansion(enabled bool) Option {
	return func(s *Service) {
		s.expand = enabled
	}
}

// New creates a Service reading from src.
func New(src DocumentSource, opts ...Option) *Service {
	s := &Service{
		source:   src,
		location: time.Local,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.opts.Location = s.location
	return s
}

// Today returns the date "today" in the service timezone.
func (s *Service) Today() string {
	return s.now().In(s.location).Format(model.DateLayout)
}

// Window returns the inclusive [today, today+days] date range.
func (s *Service) Window(days int) (from, to string) {
	if days < 0 {
		days = 0
	}
	today := s.now().In(s.location)
	return today.Format(model.DateLayout), today.AddDate(0, 0, days).Format(model.DateLayout)
}

// All returns every normalized event, sorted by start date.
func (s *Service) All(ctx context.Context) ([]model.Event, error) {
	doc, err := s.source.Document(ctx)
	if err != nil {
		return nil, err
	}
	return ics.NormalizeAll(doc, s.opts), nil
}

// inWindow loads the events and keeps those starting in [from, to],
// expanding recurrences first when enabled.
func (s *Service) inWindow(ctx context.Context, from, to string) ([]model.Event, error) {
	events, err := s.All(ctx)
	if err != nil {
		return nil, err
	}

	if s.expand {
		expanded, err := ics.ExpandRecurrences(events, ics.ExpandConfig{From: from, To: to})
		if err != nil {
			appLog.Error("recurrence expansion failed", err, "from", from, "to", to)
		} else {
			events = expanded
		}
	}

	return lo.Filter(events, func(ev model.Event, _ int) bool {
		return ev.StartDate != "" && from <= ev.StartDate && ev.StartDate <= to
	}), nil
}

// TodayEvents returns the events starting today.
func (s *Service) TodayEvents(ctx context.Context) ([]model.Event, error) {
	today := s.Today()
	return s.inWindow(ctx, today, today)
}

// Upcoming returns the events starting within the next days days,
// today included.
func (s *Service) Upcoming(ctx context.Context, days int) ([]model.Event, error) {
	from, to := s.Window(days)
	return s.inWindow(ctx, from, to)
}

// Search returns upcoming events whose summary or description contains
// query, ignoring case.
func (s *Service) Search(ctx context.Context, query string, days int) ([]model.Event, error) {
	from, to := s.Window(days)
	events, err := s.inWindow(ctx, from, to)
	if err != nil {
		return nil, err
	}
	m := newMatcher(query)
	return lo.Filter(events, func(ev model.Event, _ int) bool {
		return m.in(ev.Summary) || m.in(ev.Description)
	}), nil
}

// ByCategory returns upcoming events with a category containing category,
// ignoring case.
func (s *Service) ByCategory(ctx context.Context, category string, days int) ([]model.Event, error) {
	from, to := s.Window(days)
	events, err := s.inWindow(ctx, from, to)
	if err != nil {
		return nil, err
	}
	m := newMatcher(category)
	return lo.Filter(events, func(ev model.Event, _ int) bool {
		return lo.ContainsBy(ev.Categories, m.in)
	}), nil
}

// Details returns every event, dated or not, whose summary contains name,
// ignoring case.
func (s *Service) Details(ctx context.Context, name string) ([]model.Event, error) {
	events, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	m := newMatcher(name)
	return lo.Filter(events, func(ev model.Event, _ int) bool {
		return m.in(ev.Summary)
	}), nil
}

// Categories returns the distinct non-empty categories across all events,
// sorted alphabetically.
func (s *Service) Categories(ctx context.Context) ([]string, error) {
	events, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	all := lo.FlatMap(events, func(ev model.Event, _ int) []string {
		return ev.Categories
	})
	uniq := lo.Uniq(lo.Compact(all))
	sort.Strings(uniq)
	return uniq, nil
}

// DateGroup is the events of one start date.
type DateGroup struct {
	Date   string
	Events []model.Event
}

// GroupByDate groups events by start date in ascending date order,
// keeping the input order within each date. Undated events are dropped.
func GroupByDate(events []model.Event) []DateGroup {
	byDate := lo.GroupBy(
		lo.Filter(events, func(ev model.Event, _ int) bool { return ev.HasStartDate() }),
		func(ev model.Event) string { return ev.StartDate },
	)
	dates := lo.Keys(byDate)
	sort.Strings(dates)

	groups := make([]DateGroup, 0, len(dates))
	for _, d := range dates {
		groups = append(groups, DateGroup{Date: d, Events: byDate[d]})
	}
	return groups
}

// matcher does case-insensitive substring matching using Unicode case
// folding.
type matcher struct {
	needle string
}

func newMatcher(s string) matcher {
	return matcher{needle: fold(s)}
}

func (m matcher) in(haystack string) bool {
	return strings.Contains(fold(haystack), m.needle)
}

func fold(s string) string {
	// Casers keep state, so one per call.
	return cases.Fold().String(s)
}
