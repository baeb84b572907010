package budget

import "strings"

// Column positions of a budget sheet row. The order is shared by the grid
// projection, the reconciliation engine and file import/export.
const (
	ColumnId = iota
	ColumnProject
	ColumnEmployee
	ColumnMonth
	ColumnStatus
	ColumnBudgetAllocated
	ColumnHoursPlanned
	ColumnComments
	ColumnCost
	ColumnCount
)

type Column struct {
	Index int
	Title string
	Width float64
	// Aliases are extra header texts accepted when importing files.
	Aliases []string
}

var Columns = []Column{
	{Index: ColumnId, Title: "BudgetPlanId", Width: 110, Aliases: []string{"Id", "Budget Plan Id"}},
	{Index: ColumnProject, Title: "Project Name", Width: 180, Aliases: []string{"Project"}},
	{Index: ColumnEmployee, Title: "Employee Name", Width: 180, Aliases: []string{"Employee"}},
	{Index: ColumnMonth, Title: "Month", Width: 100},
	{Index: ColumnStatus, Title: "Status", Width: 120, Aliases: []string{"Status Name"}},
	{Index: ColumnBudgetAllocated, Title: "Budget Allocated", Width: 130, Aliases: []string{"Budget"}},
	{Index: ColumnHoursPlanned, Title: "Hours Planned", Width: 120, Aliases: []string{"Hours"}},
	{Index: ColumnComments, Title: "Comments", Width: 260},
	{Index: ColumnCost, Title: "Cost", Width: 110},
}

// Titles returns the header row texts in column order.
func Titles() []string {
	titles := make([]string, 0, len(Columns))
	for _, c := range Columns {
		titles = append(titles, c.Title)
	}
	return titles
}

// ColumnByHeader finds the column a header text refers to, ignoring case and
// surrounding whitespace.
func ColumnByHeader(header string) (Column, bool) {
	header = strings.TrimSpace(header)
	for _, c := range Columns {
		if strings.EqualFold(c.Title, header) {
			return c, true
		}
		for _, alias := range c.Aliases {
			if strings.EqualFold(alias, header) {
				return c, true
			}
		}
	}
	return Column{}, false
}
