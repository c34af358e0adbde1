package ledgerhttp

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/guildledger/ledgerboard/internal/ledger"
	"github.com/guildledger/ledgerboard/internal/ledger/dashboard"
)

// filterForm is the dropdown, search and sort state carried in the query.
type filterForm struct {
	Year  int    `validate:"omitempty,gte=2003,lte=9999"`
	Month int    `validate:"omitempty,gte=1,lte=12"`
	Day   int    `validate:"omitempty,gte=1,lte=31"`
	View  string `validate:"omitempty,oneof=day month year"`
	Query string `validate:"max=100"`
	Sort  string `validate:"omitempty,oneof=name bounty ess mining misc costs total"`
	Desc  bool
	// Render=full loads every panel before the page is written.
	Render string `validate:"omitempty,oneof=full"`
}

type validationError struct {
	field string
}

func (v validationError) Error() string {
	return fmt.Sprintf("invalid %s", v.field)
}

func (h *Handler) parseFilters(r *http.Request) (filterForm, error) {
	q := r.URL.Query()
	var form filterForm
	ints := []struct {
		name string
		dest *int
	}{
		{"year", &form.Year},
		{"month", &form.Month},
		{"day", &form.Day},
	}
	for _, f := range ints {
		raw := strings.TrimSpace(q.Get(f.name))
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			return filterForm{}, validationError{field: f.name}
		}
		*f.dest = v
	}
	form.View = strings.ToLower(strings.TrimSpace(q.Get("view")))
	form.Query = strings.TrimSpace(q.Get("q"))
	form.Sort = strings.ToLower(strings.TrimSpace(q.Get("sort")))
	form.Render = strings.ToLower(strings.TrimSpace(q.Get("render")))
	if raw := q.Get("desc"); raw != "" {
		desc, err := strconv.ParseBool(raw)
		if err != nil {
			return filterForm{}, validationError{field: "desc"}
		}
		form.Desc = desc
	}

	if err := h.validate.Struct(form); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return filterForm{}, validationError{field: strings.ToLower(fieldErrs[0].Field())}
		}
		return filterForm{}, err
	}
	return form, nil
}

func (f filterForm) apply(sel *ledger.Selection) {
	if f.Year > 0 {
		sel.SetYear(f.Year)
	}
	if f.Month > 0 {
		sel.SetMonth(f.Month)
	}
	if f.Day > 0 {
		sel.SetDay(f.Day)
	}
	if f.View != "" {
		sel.SetView(ledger.ViewMode(f.View))
	}
}

func (f filterForm) gridView() dashboard.GridView {
	return dashboard.GridView{SortKey: f.Sort, Desc: f.Desc, Query: f.Query}
}

// selection resolves the entity route parameters and query filters into a
// selection anchored at the handler clock.
func (h *Handler) selection(r *http.Request) (ledger.Selection, filterForm, error) {
	entity, err := ledger.ParseEntityType(chi.URLParam(r, "entity"))
	if err != nil {
		return ledger.Selection{}, filterForm{}, validationError{field: "entity"}
	}
	pk, err := strconv.ParseInt(chi.URLParam(r, "pk"), 10, 64)
	if err != nil || pk <= 0 {
		return ledger.Selection{}, filterForm{}, validationError{field: "pk"}
	}
	form, err := h.parseFilters(r)
	if err != nil {
		return ledger.Selection{}, filterForm{}, err
	}
	sel := ledger.NewSelection(entity, pk, h.now().UTC())
	form.apply(&sel)
	return sel, form, nil
}

func parseRowID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "row"), 10, 64)
	if err != nil || id <= 0 {
		return 0, validationError{field: "row"}
	}
	return id, nil
}
