package grid

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/empbudget/budgetgrid/pkg/budget"
	"github.com/empbudget/budgetgrid/pkg/reference"
)

const (
	headerBackground   = "#dbe5f1"
	readOnlyBackground = "#f2f2f2"
	editableBackground = "#ffffff"
)

type StatusStyle struct {
	Background string
	Color      string
}

// Options are the presentation settings of the projection.
type Options struct {
	SheetName string
	// BlankRows is the number of empty rows appended for new entries.
	BlankRows    int
	BudgetMin    float64
	BudgetMax    float64
	HoursMin     float64
	HoursMax     float64
	StatusStyles map[string]StatusStyle
}

// Build projects the records onto a workbook description. It is a pure function of
// its arguments.
func Build(records []budget.View, lookups reference.Lookups, editable bool, opts Options) Workbook {
	b := builder{lookups: lookups, editable: editable, opts: opts}

	rows := make([]Row, 0, 1+len(records)+opts.BlankRows)
	rows = append(rows, b.headerRow())
	for _, record := range records {
		rows = append(rows, b.recordRow(len(rows), record))
	}
	for i := 0; i < opts.BlankRows; i++ {
		rows = append(rows, b.blankRow(len(rows)))
	}

	columns := make([]Column, 0, len(budget.Columns))
	for _, c := range budget.Columns {
		columns = append(columns, Column{Index: c.Index, Width: c.Width})
	}

	return Workbook{Sheets: []Sheet{{
		Name:          opts.SheetName,
		Rows:          rows,
		Columns:       columns,
		FrozenRows:    1,
		FrozenColumns: 1,
	}}}
}

type builder struct {
	lookups  reference.Lookups
	editable bool
	opts     Options
}

func (b builder) headerRow() Row {
	cells := make([]Cell, 0, len(budget.Columns))
	for _, c := range budget.Columns {
		cells = append(cells, Cell{Index: c.Index, Value: c.Title, Bold: true, Background: headerBackground, Locked: true})
	}
	return Row{Index: 0, Cells: cells}
}

func (b builder) recordRow(index int, v budget.View) Row {
	cells := []Cell{
		b.idCell(int(v.BudgetPlanId)),
		b.dropdownCell(budget.ColumnProject, reference.Project, v.ProjectName),
		b.dropdownCell(budget.ColumnEmployee, reference.Employee, v.EmployeeName),
		b.dropdownCell(budget.ColumnMonth, reference.Month, v.Month),
		b.statusCell(v.StatusName),
		b.numberCell(budget.ColumnBudgetAllocated, v.BudgetAllocated.InexactFloat64(), b.opts.BudgetMin, b.opts.BudgetMax, "Budget Allocated"),
		b.numberCell(budget.ColumnHoursPlanned, v.HoursPlanned.InexactFloat64(), b.opts.HoursMin, b.opts.HoursMax, "Hours Planned"),
		b.textCell(budget.ColumnComments, v.Comments),
		b.computedCell(budget.ColumnCost, v.Cost.InexactFloat64()),
	}
	return Row{Index: index, Cells: cells}
}

func (b builder) blankRow(index int) Row {
	cells := []Cell{
		b.idCell(nil),
		b.dropdownCell(budget.ColumnProject, reference.Project, nil),
		b.dropdownCell(budget.ColumnEmployee, reference.Employee, nil),
		b.dropdownCell(budget.ColumnMonth, reference.Month, nil),
		b.statusCell(nil),
		b.numberCell(budget.ColumnBudgetAllocated, nil, b.opts.BudgetMin, b.opts.BudgetMax, "Budget Allocated"),
		b.numberCell(budget.ColumnHoursPlanned, nil, b.opts.HoursMin, b.opts.HoursMax, "Hours Planned"),
		b.textCell(budget.ColumnComments, nil),
		b.computedCell(budget.ColumnCost, nil),
	}
	return Row{Index: index, Cells: cells}
}

func (b builder) idCell(value any) Cell {
	return Cell{Index: budget.ColumnId, Value: value, Background: readOnlyBackground, Locked: true}
}

func (b builder) computedCell(index int, value any) Cell {
	return Cell{Index: index, Value: value, Background: readOnlyBackground, Locked: true}
}

func (b builder) dropdownCell(index int, kind reference.Kind, value any) Cell {
	if !b.editable {
		return Cell{Index: index, Value: value, Background: readOnlyBackground, Locked: true}
	}
	return Cell{
		Index:      index,
		Value:      value,
		Background: editableBackground,
		Validation: &Validation{
			DataType:        "list",
			From:            listFormula(b.lookups.Names(kind)),
			AllowNulls:      true,
			ShowButton:      true,
			Type:            "reject",
			MessageTemplate: fmt.Sprintf("Choose a %s from the list.", strings.ToLower(kind.Title())),
		},
	}
}

func (b builder) statusCell(value any) Cell {
	cell := b.dropdownCell(budget.ColumnStatus, reference.Status, value)
	name, _ := value.(string)
	if style, ok := b.opts.StatusStyles[name]; ok {
		cell.Background = style.Background
		cell.Color = style.Color
	}
	return cell
}

func (b builder) numberCell(index int, value any, minimum, maximum float64, title string) Cell {
	if !b.editable {
		return Cell{Index: index, Value: value, Background: readOnlyBackground, Locked: true}
	}
	return Cell{
		Index:      index,
		Value:      value,
		Background: editableBackground,
		Validation: &Validation{
			DataType:        "number",
			ComparerType:    "between",
			From:            formatNumber(minimum),
			To:              formatNumber(maximum),
			AllowNulls:      true,
			Type:            "reject",
			MessageTemplate: fmt.Sprintf("%s must be between %s and %s.", title, formatNumber(minimum), formatNumber(maximum)),
		},
	}
}

func (b builder) textCell(index int, value any) Cell {
	if !b.editable {
		return Cell{Index: index, Value: value, Background: readOnlyBackground, Locked: true}
	}
	return Cell{Index: index, Value: value, Background: editableBackground}
}

// listFormula renders choices as a quoted, comma separated list literal. Embedded
// quotes are doubled.
func listFormula(names []string) string {
	quoted := make([]string, 0, len(names))
	for _, name := range names {
		quoted = append(quoted, strings.ReplaceAll(name, `"`, `""`))
	}
	return `"` + strings.Join(quoted, ",") + `"`
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
