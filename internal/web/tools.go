package web

import (
	"context"
	"fmt"

	"neucal/internal/calendar"
	"neucal/internal/model"
	"neucal/internal/render"
)

// Tool names exposed to callers.
const (
	ToolToday      = "get_today_events"
	ToolUpcoming   = "get_upcoming_events"
	ToolSearch     = "search_events"
	ToolByCategory = "get_events_by_category"
	ToolDetails    = "get_event_details"
	ToolCategories = "list_categories"
)

// toolArgs is the JSON body of a tool call. Days is a pointer so an
// explicit 0 can be told apart from "not given".
type toolArgs struct {
	Days      *int   `json:"days,omitempty"`
	Query     string `json:"query,omitempty"`
	Category  string `json:"category,omitempty"`
	EventName string `json:"event_name,omitempty"`
}

func (a toolArgs) days(def int) int {
	if a.Days == nil {
		return def
	}
	return *a.Days
}

// paramDescriptor describes one tool argument in /api/tools.
type paramDescriptor struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Required bool   `json:"required"`
	Default  any    `json:"default,omitempty"`
}

// toolDescriptor is the listing shape of a tool.
type toolDescriptor struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Params      []paramDescriptor `json:"params"`
}

// toolResult is what a tool produces before rendering.
type toolResult struct {
	events     []model.Event
	categories []string
	text       string
}

type tool struct {
	toolDescriptor
	// action names the operation in failure replies ("Error <action>: ...").
	action string
	run    func(ctx context.Context, svc *calendar.Service, args toolArgs) (toolResult, error)
}

// ArgError reports a missing or invalid tool argument.
type ArgError struct {
	Tool  string
	Param string
}

func (e *ArgError) Error() string {
	return fmt.Sprintf("%s: missing required argument %q", e.Tool, e.Param)
}

func daysParam(def int) paramDescriptor {
	return paramDescriptor{Name: "days", Type: "integer", Default: def}
}

func toolTable() []tool {
	return []tool{
		{
			toolDescriptor: toolDescriptor{
				Name:        ToolToday,
				Description: "Get all events happening today.",
				Params:      []paramDescriptor{},
			},
			action: "retrieving today's events",
			run: func(ctx context.Context, svc *calendar.Service, _ toolArgs) (toolResult, error) {
				events, err := svc.TodayEvents(ctx)
				if err != nil {
					return toolResult{}, err
				}
				return toolResult{events: events, text: render.Today(events, svc.Today())}, nil
			},
		},
		{
			toolDescriptor: toolDescriptor{
				Name:        ToolUpcoming,
				Description: "Get upcoming events for the next N days, grouped by day.",
				Params:      []paramDescriptor{daysParam(calendar.DefaultUpcomingDays)},
			},
			action: "retrieving upcoming events",
			run: func(ctx context.Context, svc *calendar.Service, args toolArgs) (toolResult, error) {
				days := args.days(calendar.DefaultUpcomingDays)
				events, err := svc.Upcoming(ctx, days)
				if err != nil {
					return toolResult{}, err
				}
				return toolResult{events: events, text: render.Upcoming(events, days)}, nil
			},
		},
		{
			toolDescriptor: toolDescriptor{
				Name:        ToolSearch,
				Description: "Search upcoming events whose title or description contains the query.",
				Params: []paramDescriptor{
					{Name: "query", Type: "string", Required: true},
					daysParam(calendar.DefaultSearchDays),
				},
			},
			action: "searching events",
			run: func(ctx context.Context, svc *calendar.Service, args toolArgs) (toolResult, error) {
				if args.Query == "" {
					return toolResult{}, &ArgError{Tool: ToolSearch, Param: "query"}
				}
				days := args.days(calendar.DefaultSearchDays)
				events, err := svc.Search(ctx, args.Query, days)
				if err != nil {
					return toolResult{}, err
				}
				return toolResult{events: events, text: render.Search(events, args.Query, days)}, nil
			},
		},
		{
			toolDescriptor: toolDescriptor{
				Name:        ToolByCategory,
				Description: "Get upcoming events in a category, grouped by day.",
				Params: []paramDescriptor{
					{Name: "category", Type: "string", Required: true},
					daysParam(calendar.DefaultCategoryDays),
				},
			},
			action: "retrieving events by category",
			run: func(ctx context.Context, svc *calendar.Service, args toolArgs) (toolResult, error) {
				if args.Category == "" {
					return toolResult{}, &ArgError{Tool: ToolByCategory, Param: "category"}
				}
				days := args.days(calendar.DefaultCategoryDays)
				events, err := svc.ByCategory(ctx, args.Category, days)
				if err != nil {
					return toolResult{}, err
				}
				return toolResult{events: events, text: render.ByCategory(events, args.Category, days)}, nil
			},
		},
		{
			toolDescriptor: toolDescriptor{
				Name:        ToolDetails,
				Description: "Get full details of every event whose title contains the name.",
				Params:      []paramDescriptor{{Name: "event_name", Type: "string", Required: true}},
			},
			action: "retrieving event details",
			run: func(ctx context.Context, svc *calendar.Service, args toolArgs) (toolResult, error) {
				if args.EventName == "" {
					return toolResult{}, &ArgError{Tool: ToolDetails, Param: "event_name"}
				}
				events, err := svc.Details(ctx, args.EventName)
				if err != nil {
					return toolResult{}, err
				}
				return toolResult{events: events, text: render.Details(events, args.EventName)}, nil
			},
		},
		{
			toolDescriptor: toolDescriptor{
				Name:        ToolCategories,
				Description: "List all event categories in the calendar.",
				Params:      []paramDescriptor{},
			},
			action: "listing categories",
			run: func(ctx context.Context, svc *calendar.Service, _ toolArgs) (toolResult, error) {
				cats, err := svc.Categories(ctx)
				if err != nil {
					return toolResult{}, err
				}
				return toolResult{categories: cats, text: render.Categories(cats)}, nil
			},
		},
	}
}
