package reconcile

import (
	"fmt"
	"unicode/utf8"

	"github.com/empbudget/budgetgrid/pkg/budget"
	"github.com/empbudget/budgetgrid/pkg/reference"
	"github.com/shopspring/decimal"
)

type Tag int

const (
	Empty Tag = iota
	New
	Update
	Invalid
)

func (t Tag) String() string {
	switch t {
	case Empty:
		return "empty"
	case New:
		return "new"
	case Update:
		return "update"
	case Invalid:
		return "invalid"
	}
	return fmt.Sprintf("tag(%d)", int(t))
}

// Policy holds the business rules that differ between deployments.
type Policy struct {
	// RequirePositiveBudget rejects a zero budget; by default zero is allowed.
	RequirePositiveBudget bool
	// StrictReferences turns unresolved dropdown names into validation errors instead
	// of silently linking them to reference.Unresolved.
	StrictReferences bool
}

// UnresolvedReference is a dropdown name that matched nothing in its lookup list.
type UnresolvedReference struct {
	RowIndex int
	Kind     reference.Kind
	Name     string
}

type Classification struct {
	Tag        Tag
	Record     budget.Record
	Errors     []ValidationError
	Unresolved []UnresolvedReference
}

// Classify decides what one row means. A row carrying an id never classifies as
// New or Empty: clearing an existing row must not silently drop or recreate it.
func Classify(row Row, lookups reference.Lookups, policy Policy) Classification {
	return classify(row, lookups, policy, nil)
}

// classify checks the row against the stored record of the same id, when known. A
// blank dropdown is only missing if the stored record links to something; a record
// saved with an unresolved link keeps it until the user picks a value.
func classify(row Row, lookups reference.Lookups, policy Policy, stored *budget.Record) Classification {
	var errs []ValidationError
	fail := func(message string) {
		errs = append(errs, ValidationError{RowIndex: row.Index, Message: message})
	}

	id, idValid := planId(row.Id)
	if !idValid {
		fail(MsgInvalidId)
	}
	if !row.hasId() && row.blank() {
		return Classification{Tag: Empty}
	}

	if row.missingDropdown(stored) {
		fail(MsgMissingDropdowns)
	}

	switch {
	case !row.BudgetAllocated.Valid:
		fail(MsgBudgetNotNumeric)
	case row.BudgetAllocated.Value.IsNegative():
		fail(MsgBudgetNegative)
	case policy.RequirePositiveBudget && row.BudgetAllocated.Value.IsZero():
		fail(MsgBudgetNotPositive)
	}

	switch {
	case !row.HoursPlanned.Valid:
		fail(MsgHoursNotNumeric)
	case row.HoursPlanned.Value.IsNegative():
		fail(MsgHoursNegative)
	}

	if utf8.RuneCountInString(row.Comments) > budget.MaxCommentLength {
		fail(MsgCommentsTooLong)
	}

	record := budget.Record{
		BudgetPlanId:    id,
		BudgetAllocated: row.BudgetAllocated.Value,
		HoursPlanned:    row.HoursPlanned.Value,
		Comments:        row.Comments,
		Cost:            row.Cost.Value,
	}
	var unresolved []UnresolvedReference
	resolve := func(kind reference.Kind, name string) int {
		id := lookups.Resolve(kind, name)
		if id == reference.Unresolved && name != "" {
			unresolved = append(unresolved, UnresolvedReference{RowIndex: row.Index, Kind: kind, Name: name})
			if policy.StrictReferences {
				fail(fmt.Sprintf(msgUnresolvedTemplate, kind.Title(), name))
			}
		}
		return id
	}
	record.ProjectId = resolve(reference.Project, row.Project)
	record.EmployeeId = resolve(reference.Employee, row.Employee)
	record.MonthId = resolve(reference.Month, row.Month)
	record.StatusId = resolve(reference.Status, row.Status)

	if len(errs) > 0 {
		return Classification{Tag: Invalid, Errors: errs}
	}
	if id.Persisted() {
		return Classification{Tag: Update, Record: record, Unresolved: unresolved}
	}
	return Classification{Tag: New, Record: record, Unresolved: unresolved}
}

// planId converts the id cell. Blank and zero mean Unsaved; anything else must be a
// positive whole number.
func planId(n Number) (budget.PlanId, bool) {
	if n.Zero() {
		return budget.Unsaved, true
	}
	if !n.Valid || !n.Value.IsInteger() || !n.Value.IsPositive() {
		return budget.Unsaved, false
	}
	if n.Value.GreaterThan(decimal.NewFromInt(int64(budget.MaxPlanId))) {
		return budget.Unsaved, false
	}
	return budget.PlanId(n.Value.IntPart()), true
}
