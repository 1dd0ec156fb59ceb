package api

import (
	"time"

	"github.com/schedly/schedly/internal/dates"
	"github.com/schedly/schedly/internal/notion"
)

// dayFilter resolves the dueDate query parameter (a bare day or an
// RFC 3339 instant, defaulting to today) to a concrete local day and
// builds the widened server-side range filter for it.
func (s *Server) dayFilter(dueDateParam string, loc *time.Location) (map[string]interface{}, string, error) {
	day := dates.CurrentDay(loc)
	if dueDateParam != "" {
		resolved, err := dates.ResolveDay(dueDateParam, loc)
		if err != nil {
			return nil, "", err
		}
		day = resolved
	}
	filter, err := dates.BuildDayRangeFilter("Due Date", day, loc)
	if err != nil {
		return nil, "", err
	}
	return filter, day, nil
}

// inDay applies the exact local-day membership test to a page; the
// server-side filter is deliberately wider than one day.
func inDay(page *notion.Page, loc *time.Location, day string) bool {
	start := page.DateStart("Due Date")
	if start == "" {
		return false
	}
	return dates.InDay(start, loc, day)
}

func pageToItem(page *notion.Page) calendarItem {
	return calendarItem{
		ID:          page.ID,
		Title:       page.TitleText("Name"),
		Description: page.RichText("Description"),
		DueDate:     page.DateStart("Due Date"),
		Done:        page.Checkbox("Done"),
	}
}
