package reconcile

import (
	"github.com/empbudget/budgetgrid/pkg/budget"
	"github.com/empbudget/budgetgrid/pkg/reference"
)

// Result is the outcome of one reconciliation pass. Creates and Updates are disjoint
// and only populated when Errors is empty.
type Result struct {
	Creates    []budget.Record
	Updates    []budget.Record
	Errors     ValidationErrors
	Unresolved []UnresolvedReference
	// Skipped counts rows classified Empty.
	Skipped int
	// Unchanged counts updates dropped by DropUnchanged.
	Unchanged int
}

// Valid reports a pass without validation errors.
func (r Result) Valid() bool {
	return len(r.Errors) == 0
}

// Empty reports a clean pass that produced no operations.
func (r Result) Empty() bool {
	return r.Valid() && len(r.Creates) == 0 && len(r.Updates) == 0
}

// Records returns creates followed by updates, the payload of a bulk upsert.
func (r Result) Records() []budget.Record {
	records := make([]budget.Record, 0, len(r.Creates)+len(r.Updates))
	records = append(records, r.Creates...)
	return append(records, r.Updates...)
}

// Reconcile classifies every data row of the snapshot in order. If any row is
// invalid the batches are discarded: a pass either saves everything or nothing.
func Reconcile(snapshot Snapshot, lookups reference.Lookups, policy Policy) Result {
	return ReconcileAgainst(snapshot, nil, lookups, policy)
}

// ReconcileAgainst is Reconcile with rows checked against the records currently
// persisted, so a row left as it was loaded is never rejected for links the backend
// already holds as unset.
func ReconcileAgainst(snapshot Snapshot, current []budget.Record, lookups reference.Lookups, policy Policy) Result {
	byId := make(map[budget.PlanId]budget.Record, len(current))
	for _, record := range current {
		byId[record.BudgetPlanId] = record
	}

	var result Result
	for _, row := range snapshot.Rows {
		var stored *budget.Record
		if id, ok := planId(row.Id); ok && id.Persisted() {
			if record, found := byId[id]; found {
				stored = &record
			}
		}
		c := classify(row, lookups, policy, stored)
		switch c.Tag {
		case Empty:
			result.Skipped++
		case New:
			result.Creates = append(result.Creates, c.Record)
		case Update:
			result.Updates = append(result.Updates, c.Record)
		case Invalid:
			result.Errors = append(result.Errors, c.Errors...)
		}
		result.Unresolved = append(result.Unresolved, c.Unresolved...)
	}
	if !result.Valid() {
		result.Creates = nil
		result.Updates = nil
	}
	return result
}

// DropUnchanged removes updates whose content equals the currently persisted record,
// leaving the minimal set of operations. Updates of ids not in current are kept and
// left for the backend to accept or reject.
func (r Result) DropUnchanged(current []budget.Record) Result {
	byId := make(map[budget.PlanId]budget.Record, len(current))
	for _, record := range current {
		byId[record.BudgetPlanId] = record
	}
	updates := make([]budget.Record, 0, len(r.Updates))
	for _, update := range r.Updates {
		if existing, ok := byId[update.BudgetPlanId]; ok && existing.SameContent(update) {
			r.Unchanged++
			continue
		}
		updates = append(updates, update)
	}
	r.Updates = updates
	return r
}
