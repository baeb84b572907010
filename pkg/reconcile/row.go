package reconcile

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/empbudget/budgetgrid/pkg/budget"
	"github.com/shopspring/decimal"
)

// Number is a numeric cell parsed once at the snapshot boundary. Raw keeps the cell
// text so validation messages can refer to what the user typed.
type Number struct {
	Raw   string
	Value decimal.Decimal
	// Valid is false when Raw is not blank and not a number.
	Valid bool
}

func (n Number) Blank() bool {
	return n.Raw == ""
}

// Zero reports whether the cell is blank or holds the number zero.
func (n Number) Zero() bool {
	return n.Blank() || (n.Valid && n.Value.IsZero())
}

// Row is the typed form of one grid row. Fields are positional in the
// budget.Columns order; cells beyond the row width read as blank.
type Row struct {
	// Index is the row position in the sheet; the header is row 0.
	Index           int
	Id              Number
	Project         string
	Employee        string
	Month           string
	Status          string
	BudgetAllocated Number
	HoursPlanned    Number
	Comments        string
	Cost            Number
}

func ParseRow(index int, cells []any) Row {
	return Row{
		Index:           index,
		Id:              parseNumber(cellAt(cells, budget.ColumnId)),
		Project:         cellText(cellAt(cells, budget.ColumnProject)),
		Employee:        cellText(cellAt(cells, budget.ColumnEmployee)),
		Month:           cellText(cellAt(cells, budget.ColumnMonth)),
		Status:          cellText(cellAt(cells, budget.ColumnStatus)),
		BudgetAllocated: parseNumber(cellAt(cells, budget.ColumnBudgetAllocated)),
		HoursPlanned:    parseNumber(cellAt(cells, budget.ColumnHoursPlanned)),
		Comments:        cellText(cellAt(cells, budget.ColumnComments)),
		Cost:            parseNumber(cellAt(cells, budget.ColumnCost)),
	}
}

// blank reports whether every business field of the row is blank or zero. The id
// and the computed cost are not business fields.
func (r Row) blank() bool {
	return r.Project == "" &&
		r.Employee == "" &&
		r.Month == "" &&
		r.Status == "" &&
		r.BudgetAllocated.Zero() &&
		r.HoursPlanned.Zero() &&
		r.Comments == ""
}

// missingDropdown reports a blank dropdown whose stored link is set. Without a stored
// record every blank dropdown is missing.
func (r Row) missingDropdown(stored *budget.Record) bool {
	missing := func(name string, storedId func(budget.Record) int) bool {
		if name != "" {
			return false
		}
		return stored == nil || storedId(*stored) != 0
	}
	return missing(r.Project, func(s budget.Record) int { return s.ProjectId }) ||
		missing(r.Employee, func(s budget.Record) int { return s.EmployeeId }) ||
		missing(r.Month, func(s budget.Record) int { return s.MonthId }) ||
		missing(r.Status, func(s budget.Record) int { return s.StatusId })
}

// hasId reports whether the id cell holds anything other than blank or zero.
func (r Row) hasId() bool {
	return !r.Id.Zero()
}

// Snapshot is the latest captured state of the sheet: data rows in order, header
// excluded.
type Snapshot struct {
	Rows  []Row
	cells [][]any
}

// NewSnapshot builds a snapshot from raw cell values as emitted by the grid widget.
// Row 0 is the header and is never parsed as data.
func NewSnapshot(cells [][]any) Snapshot {
	rows := make([]Row, 0, max(len(cells)-1, 0))
	for i := 1; i < len(cells); i++ {
		rows = append(rows, ParseRow(i, cells[i]))
	}
	return Snapshot{Rows: rows, cells: cells}
}

// CellValue returns the raw value at the given sheet position, or nil when out of range.
func (s Snapshot) CellValue(row, col int) any {
	if row < 0 || row >= len(s.cells) {
		return nil
	}
	return cellAt(s.cells[row], col)
}

// RowCount is the number of sheet rows including the header.
func (s Snapshot) RowCount() int {
	return len(s.cells)
}

func cellAt(cells []any, col int) any {
	if col < 0 || col >= len(cells) {
		return nil
	}
	return cells[col]
}

func cellText(v any) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(value)
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(value), 'f', -1, 32)
	case int:
		return strconv.Itoa(value)
	case int64:
		return strconv.FormatInt(value, 10)
	case int32:
		return strconv.FormatInt(int64(value), 10)
	case json.Number:
		return value.String()
	case decimal.Decimal:
		return value.String()
	case bool:
		return strconv.FormatBool(value)
	default:
		return strings.TrimSpace(fmt.Sprint(value))
	}
}

func parseNumber(v any) Number {
	raw := cellText(v)
	switch value := v.(type) {
	case float64:
		return Number{Raw: raw, Value: decimal.NewFromFloat(value), Valid: true}
	case float32:
		return Number{Raw: raw, Value: decimal.NewFromFloat32(value), Valid: true}
	case int:
		return Number{Raw: raw, Value: decimal.NewFromInt(int64(value)), Valid: true}
	case int64:
		return Number{Raw: raw, Value: decimal.NewFromInt(value), Valid: true}
	case int32:
		return Number{Raw: raw, Value: decimal.NewFromInt32(value), Valid: true}
	case decimal.Decimal:
		return Number{Raw: raw, Value: value, Valid: true}
	}
	if raw == "" {
		return Number{Valid: true}
	}
	// Spreadsheets commonly format thousands with commas.
	d, err := decimal.NewFromString(strings.ReplaceAll(raw, ",", ""))
	if err != nil {
		return Number{Raw: raw}
	}
	return Number{Raw: raw, Value: d, Valid: true}
}
