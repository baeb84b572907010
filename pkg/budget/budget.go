package budget

import (
	"math"

	"github.com/shopspring/decimal"
)

// MaxCommentLength is the maximum number of characters allowed in Record.Comments.
const MaxCommentLength = 200

// PlanId identifies a persisted budget plan row. Unsaved is the only id a record
// carries before the backend has assigned one.
type PlanId int

const Unsaved PlanId = 0

// MaxPlanId is the largest id the store can assign; ids are SERIAL columns.
const MaxPlanId PlanId = math.MaxInt32

func (id PlanId) Persisted() bool {
	return id > 0
}

// Record is the canonical budget plan row exchanged with the backend. Foreign keys
// equal to reference.Unresolved mean "no linkage".
type Record struct {
	BudgetPlanId    PlanId
	ProjectId       int
	EmployeeId      int
	MonthId         int
	StatusId        int
	BudgetAllocated decimal.Decimal
	HoursPlanned    decimal.Decimal
	Comments        string
	// Cost is computed by the backend and only ever displayed.
	Cost decimal.Decimal
}

// SameContent reports whether two records carry the same editable values.
// Cost is ignored because it is never sent by the client.
func (r Record) SameContent(other Record) bool {
	return r.BudgetPlanId == other.BudgetPlanId &&
		r.ProjectId == other.ProjectId &&
		r.EmployeeId == other.EmployeeId &&
		r.MonthId == other.MonthId &&
		r.StatusId == other.StatusId &&
		r.BudgetAllocated.Equal(other.BudgetAllocated) &&
		r.HoursPlanned.Equal(other.HoursPlanned) &&
		r.Comments == other.Comments
}

// View is a Record joined with the display names of its references.
type View struct {
	Record
	ProjectName  string
	EmployeeName string
	Month        string
	StatusName   string
}
