package ledger

import (
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// Selection is the filter state driving every panel request. It is mutated
// only through filter interaction and is never persisted.
type Selection struct {
	Year     int
	Month    int
	Day      int
	View     ViewMode
	Entity   EntityType
	EntityPK int64
}

// NewSelection returns a month view selection anchored at now.
func NewSelection(entity EntityType, pk int64, now time.Time) Selection {
	return Selection{
		Year:     now.Year(),
		Month:    int(now.Month()),
		Day:      now.Day(),
		View:     ViewMonth,
		Entity:   entity,
		EntityPK: pk,
	}
}

// DaysInMonth returns the calendar day count for year/month, leap years included.
func DaysInMonth(year, month int) int {
	if month < 1 || month > 12 {
		return 0
	}
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// DayList enumerates the selectable days of the selected month.
func (s Selection) DayList() []int {
	n := DaysInMonth(s.Year, s.Month)
	days := make([]int, n)
	for i := range days {
		days[i] = i + 1
	}
	return days
}

// SetYear changes the year and clamps the day into range.
func (s *Selection) SetYear(year int) {
	s.Year = year
	s.clampDay()
}

// SetMonth changes the month and clamps the day into range.
func (s *Selection) SetMonth(month int) {
	if month < 1 || month > 12 {
		return
	}
	s.Month = month
	s.clampDay()
}

// SetDay changes the day when it exists in the selected month.
func (s *Selection) SetDay(day int) {
	if day < 1 || day > DaysInMonth(s.Year, s.Month) {
		return
	}
	s.Day = day
}

// SetView changes the view mode.
func (s *Selection) SetView(view ViewMode) {
	s.View = view
}

func (s *Selection) clampDay() {
	if last := DaysInMonth(s.Year, s.Month); s.Day > last {
		s.Day = last
	}
	if s.Day < 1 {
		s.Day = 1
	}
}

// DateToken renders the unpadded Y-M-D token the backend expects for view.
func (s Selection) DateToken(view ViewMode) string {
	switch view {
	case ViewYear:
		return fmt.Sprintf("%d-1-1", s.Year)
	case ViewDay:
		return fmt.Sprintf("%d-%d-%d", s.Year, s.Month, s.Day)
	default:
		return fmt.Sprintf("%d-%d-1", s.Year, s.Month)
	}
}

// Labels are the dependent UI labels recomputed on every selection change.
type Labels struct {
	Year  string
	Month string
	Day   string
	View  string
}

// Labels computes the dropdown labels for the selection.
func (s Selection) Labels() Labels {
	month := ""
	if s.Month >= 1 && s.Month <= 12 {
		month = time.Month(s.Month).String()
	}
	view := "Month"
	switch s.View {
	case ViewDay:
		view = "Day"
	case ViewYear:
		view = "Year"
	}
	return Labels{
		Year:  strconv.Itoa(s.Year),
		Month: month,
		Day:   strconv.Itoa(s.Day),
		View:  view,
	}
}

// Request is a typed backend request descriptor.
type Request struct {
	Method string
	Path   string
}

// String implements fmt.Stringer.
func (r Request) String() string {
	return r.Method + " " + r.Path
}

func (s Selection) base() string {
	return fmt.Sprintf("/ledger/api/%s/%d", s.Entity, s.EntityPK)
}

// LedgerRequest addresses the ledger table payload for view.
func (s Selection) LedgerRequest(view ViewMode) Request {
	return Request{
		Method: http.MethodGet,
		Path:   fmt.Sprintf("%s/ledger/date/%s/view/%s/", s.base(), s.DateToken(view), view),
	}
}

// BillboardRequest addresses the chart bundle for view.
func (s Selection) BillboardRequest(view ViewMode) Request {
	return Request{
		Method: http.MethodGet,
		Path:   fmt.Sprintf("%s/billboard/date/%s/view/%s/", s.base(), s.DateToken(view), view),
	}
}

// DetailRequest addresses the HTML detail fragment of a ledger row.
func (s Selection) DetailRequest(view ViewMode, rowID int64) Request {
	return Request{
		Method: http.MethodGet,
		Path:   fmt.Sprintf("%s/%d/ledger/template/date/%s/view/%s/", s.base(), rowID, s.DateToken(view), view),
	}
}

// BreakdownRequest addresses the JSON detail breakdown of a ledger row.
func (s Selection) BreakdownRequest(view ViewMode, rowID int64) Request {
	return Request{
		Method: http.MethodGet,
		Path:   fmt.Sprintf("%s/%d/ledger/details/date/%s/view/%s/", s.base(), rowID, s.DateToken(view), view),
	}
}

// ActionRequest addresses a confirmation action endpoint.
func (s Selection) ActionRequest(action string) Request {
	return Request{
		Method: http.MethodPost,
		Path:   fmt.Sprintf("%s/action/%s/", s.base(), action),
	}
}
