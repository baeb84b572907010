package budget_store

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrInvalidFilter = errors.New("invalid budget filter")

// sortColumns maps the sortable fields accepted on the wire to their SQL expressions.
var sortColumns = map[string]string{
	"budgetPlanId":    "bp.id",
	"projectName":     "p.name",
	"employeeName":    "e.name",
	"month":           "m.position",
	"statusName":      "s.name",
	"budgetAllocated": "bp.budget_allocated",
	"hoursPlanned":    "bp.hours_planned",
	"cost":            "cost",
}

// Filter narrows and pages the budget listing. The zero value lists everything in id
// order.
type Filter struct {
	PageNumber  int
	PageSize    int
	SortColumn  string
	SortDesc    bool
	Search      string
	ProjectIds  []int
	EmployeeIds []int
	MonthIds    []int
	StatusIds   []int
	BudgetMin   *decimal.Decimal
	BudgetMax   *decimal.Decimal
	HoursMin    *decimal.Decimal
	HoursMax    *decimal.Decimal
}

func (f Filter) sortExpression() string {
	column, ok := sortColumns[f.SortColumn]
	if !ok {
		column = "bp.id"
	}
	if f.SortDesc {
		return column + " DESC, bp.id DESC"
	}
	return column + " ASC, bp.id ASC"
}

func (f Filter) offset() int {
	if f.PageNumber <= 1 || f.PageSize <= 0 {
		return 0
	}
	return (f.PageNumber - 1) * f.PageSize
}

// ParseFilter reads a Filter from query parameters. Id lists are comma separated or
// repeated. Absent parameters leave the filter unrestricted.
func ParseFilter(query url.Values) (Filter, error) {
	var f Filter
	var err error

	if f.PageNumber, err = intParam(query, "pageNumber"); err != nil {
		return Filter{}, err
	}
	if f.PageSize, err = intParam(query, "pageSize"); err != nil {
		return Filter{}, err
	}
	if f.PageNumber < 0 || f.PageSize < 0 {
		return Filter{}, fmt.Errorf("%w: paging values must not be negative", ErrInvalidFilter)
	}

	f.SortColumn = query.Get("sortColumn")
	if f.SortColumn != "" {
		if _, ok := sortColumns[f.SortColumn]; !ok {
			return Filter{}, fmt.Errorf("%w: cannot sort by %q", ErrInvalidFilter, f.SortColumn)
		}
	}
	switch strings.ToLower(query.Get("sortDirection")) {
	case "", "asc":
	case "desc":
		f.SortDesc = true
	default:
		return Filter{}, fmt.Errorf("%w: sort direction must be asc or desc", ErrInvalidFilter)
	}

	f.Search = strings.TrimSpace(query.Get("search"))

	for name, dst := range map[string]*[]int{
		"projectIds":  &f.ProjectIds,
		"employeeIds": &f.EmployeeIds,
		"monthIds":    &f.MonthIds,
		"statusIds":   &f.StatusIds,
	} {
		if *dst, err = intListParam(query, name); err != nil {
			return Filter{}, err
		}
	}

	for name, dst := range map[string]**decimal.Decimal{
		"budgetMin": &f.BudgetMin,
		"budgetMax": &f.BudgetMax,
		"hoursMin":  &f.HoursMin,
		"hoursMax":  &f.HoursMax,
	} {
		if *dst, err = decimalParam(query, name); err != nil {
			return Filter{}, err
		}
	}

	return f, nil
}

func intParam(query url.Values, name string) (int, error) {
	raw := query.Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be a whole number", ErrInvalidFilter, name)
	}
	return v, nil
}

func intListParam(query url.Values, name string) ([]int, error) {
	var ids []int
	for _, raw := range query[name] {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.Atoi(part)
			if err != nil {
				return nil, fmt.Errorf("%w: %s contains %q", ErrInvalidFilter, name, part)
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func decimalParam(query url.Values, name string) (*decimal.Decimal, error) {
	raw := strings.TrimSpace(query.Get(name))
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be numeric", ErrInvalidFilter, name)
	}
	return &d, nil
}
